// Package errors provides structured error types for jira-feedback.
package errors

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Code represents a unique error code.
type Code string

// Error codes for jira-feedback.
const (
	// Jira transport errors
	CodeNetwork                Code = "JIRA_NETWORK_ERROR"
	CodeIssueCreationFailed    Code = "JIRA_ISSUE_CREATION_FAILED"
	CodeAttachmentUploadFailed Code = "JIRA_ATTACHMENT_UPLOAD_FAILED"
	CodeResponseInvalid        Code = "JIRA_RESPONSE_INVALID"

	// Config errors
	CodeConfigInvalid Code = "CONFIG_INVALID"
	CodeConfigMissing Code = "CONFIG_MISSING"

	// Credential errors
	CodeCredentialUnavailable Code = "CREDENTIAL_UNAVAILABLE"
)

// Category groups error codes for exit status mapping.
type Category int

const (
	CategoryUnknown Category = iota
	CategoryBadRequest
	CategoryRemote
	CategoryPartial
	CategoryUnavailable
)

// codeCategories maps error codes to their categories.
var codeCategories = map[Code]Category{
	CodeNetwork:                CategoryUnavailable,
	CodeIssueCreationFailed:    CategoryRemote,
	CodeAttachmentUploadFailed: CategoryPartial,
	CodeResponseInvalid:        CategoryRemote,
	CodeConfigInvalid:          CategoryBadRequest,
	CodeConfigMissing:          CategoryBadRequest,
	CodeCredentialUnavailable:  CategoryBadRequest,
}

// ExitCode returns the process exit status for a category.
func (c Category) ExitCode() int {
	switch c {
	case CategoryBadRequest:
		return 2
	case CategoryRemote:
		return 3
	case CategoryPartial:
		return 4
	case CategoryUnavailable:
		return 5
	default:
		return 1
	}
}

// FeedbackError is the structured error type for jira-feedback.
type FeedbackError struct {
	Code Code   `json:"code"`
	What string `json:"what"`
	Why  string `json:"why,omitempty"`
	Fix  string `json:"fix,omitempty"`

	// StatusCode and Body are set for errors produced from an HTTP response.
	StatusCode int    `json:"status_code,omitempty"`
	Body       string `json:"body,omitempty"`

	Cause error `json:"-"`
}

// Error implements the error interface.
func (e *FeedbackError) Error() string {
	var b strings.Builder
	b.WriteString(e.What)
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " (status %d)", e.StatusCode)
	}
	if e.Why != "" {
		b.WriteString(": ")
		b.WriteString(e.Why)
	}
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

// Unwrap returns the underlying cause.
func (e *FeedbackError) Unwrap() error {
	return e.Cause
}

// UserMessage returns a user-friendly message for CLI output.
func (e *FeedbackError) UserMessage() string {
	var b strings.Builder
	b.WriteString("Error: ")
	b.WriteString(e.What)
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " (HTTP %d)", e.StatusCode)
	}
	if e.Why != "" {
		b.WriteString("\n\nWhy: ")
		b.WriteString(e.Why)
	}
	if e.Body != "" {
		b.WriteString("\n\nResponse: ")
		b.WriteString(e.Body)
	}
	if e.Fix != "" {
		b.WriteString("\n\nFix: ")
		b.WriteString(e.Fix)
	}
	return b.String()
}

// Category returns the error category.
func (e *FeedbackError) Category() Category {
	if cat, ok := codeCategories[e.Code]; ok {
		return cat
	}
	return CategoryUnknown
}

// ExitCode returns the process exit status for this error.
func (e *FeedbackError) ExitCode() int {
	return e.Category().ExitCode()
}

// MarshalJSON implements json.Marshaler.
func (e *FeedbackError) MarshalJSON() ([]byte, error) {
	type alias FeedbackError
	aux := struct {
		*alias
		CauseMsg string `json:"cause,omitempty"`
	}{
		alias: (*alias)(e),
	}
	if e.Cause != nil {
		aux.CauseMsg = e.Cause.Error()
	}
	return json.Marshal(aux)
}

// Is reports whether target is a FeedbackError with the same code.
func (e *FeedbackError) Is(target error) bool {
	t, ok := target.(*FeedbackError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// WithCause returns a copy of the error with the given cause.
func (e *FeedbackError) WithCause(err error) *FeedbackError {
	c := *e
	c.Cause = err
	return &c
}

// --- Error constructors ---

// ErrNetwork returns an error for a transport-level failure during step
// (for example "create issue" or "upload attachment").
func ErrNetwork(step string, cause error) *FeedbackError {
	return &FeedbackError{
		Code:  CodeNetwork,
		What:  fmt.Sprintf("network error during %s", step),
		Fix:   "Check connectivity to your Jira site and try again",
		Cause: cause,
	}
}

// ErrIssueCreationFailed returns an error for a rejected create-issue call.
func ErrIssueCreationFailed(status int, body string) *FeedbackError {
	return &FeedbackError{
		Code:       CodeIssueCreationFailed,
		What:       "issue creation failed",
		Fix:        "Check the project key, issue type and that the account may create issues",
		StatusCode: status,
		Body:       body,
	}
}

// ErrAttachmentUploadFailed returns an error for a rejected attachment upload.
// The issue itself was created and is named in Why.
func ErrAttachmentUploadFailed(issueID string, status int, reason string) *FeedbackError {
	return &FeedbackError{
		Code:       CodeAttachmentUploadFailed,
		What:       "attachment upload failed",
		Why:        fmt.Sprintf("issue %s was created without its screenshot", issueID),
		Fix:        "Attach the screenshot manually or check attachment permissions",
		StatusCode: status,
		Body:       reason,
	}
}

// ErrResponseInvalid returns an error for a response body that could not be decoded.
func ErrResponseInvalid(what string, cause error) *FeedbackError {
	return &FeedbackError{
		Code:  CodeResponseInvalid,
		What:  fmt.Sprintf("invalid response from %s", what),
		Cause: cause,
	}
}

// ErrConfigInvalid returns an error for invalid configuration.
func ErrConfigInvalid(field, reason string) *FeedbackError {
	return &FeedbackError{
		Code: CodeConfigInvalid,
		What: fmt.Sprintf("invalid configuration: %s", field),
		Why:  reason,
		Fix:  "Check .feedback/config.yaml and fix the invalid field",
	}
}

// ErrConfigMissing returns an error for missing configuration.
func ErrConfigMissing(field, fix string) *FeedbackError {
	return &FeedbackError{
		Code: CodeConfigMissing,
		What: fmt.Sprintf("missing required configuration: %s", field),
		Why:  "This field is required but not set",
		Fix:  fix,
	}
}

// ErrCredentialUnavailable returns an error when no API token can be resolved.
func ErrCredentialUnavailable(envVar string) *FeedbackError {
	return &FeedbackError{
		Code: CodeCredentialUnavailable,
		What: "no Jira API token available",
		Why:  fmt.Sprintf("neither --token, %s nor the system keyring provided one", envVar),
		Fix:  "Run 'jira-feedback auth login' or export " + envVar,
	}
}

// AsFeedbackError attempts to convert an error to a FeedbackError.
// Returns nil if the error is not a FeedbackError.
func AsFeedbackError(err error) *FeedbackError {
	var fbErr *FeedbackError
	if As(err, &fbErr) {
		return fbErr
	}
	return nil
}

// As is a convenience wrapper for errors.As.
func As(err error, target any) bool {
	return asError(err, target)
}

// asError implements errors.As behavior.
func asError(err error, target any) bool {
	if err == nil {
		return false
	}
	if fbErr, ok := err.(*FeedbackError); ok {
		if t, ok := target.(**FeedbackError); ok {
			*t = fbErr
			return true
		}
	}
	if unwrapper, ok := err.(interface{ Unwrap() error }); ok {
		return asError(unwrapper.Unwrap(), target)
	}
	return false
}

// HasCode reports whether err carries a FeedbackError with the given code.
func HasCode(err error, code Code) bool {
	fbErr := AsFeedbackError(err)
	return fbErr != nil && fbErr.Code == code
}
