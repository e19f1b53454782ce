// Package jira files feedback as Jira Cloud issues.
// It creates issues via the Jira REST API v3 and uploads screenshots as attachments.
package jira

import (
	"strings"

	apperrors "github.com/randalmurphal/jira-feedback/internal/errors"
)

// DefaultIssueType is used when Details.IssueType is empty.
const DefaultIssueType = "Bug"

// Details identifies the Jira site, account and target project for a submission.
// Details are supplied by the caller and never persisted.
type Details struct {
	// Domain is the Atlassian site name: "acme" for https://acme.atlassian.net.
	Domain string
	// Email and APIToken are used for basic auth.
	Email    string
	APIToken string

	ProjectKey string
	IssueType  string // defaults to "Bug"
	ParentKey  string // optional
	Labels     []string

	// BaseURL overrides the site derived from Domain (e.g., a proxy or test server).
	BaseURL string
}

// SiteURL returns the Jira site root, without a trailing slash.
func (d Details) SiteURL() string {
	if d.BaseURL != "" {
		return strings.TrimRight(d.BaseURL, "/")
	}
	return "https://" + d.Domain + ".atlassian.net"
}

// EffectiveIssueType returns the issue type name, applying the default.
func (d Details) EffectiveIssueType() string {
	if d.IssueType == "" {
		return DefaultIssueType
	}
	return d.IssueType
}

// Validate reports the first missing required field.
func (d Details) Validate() error {
	if err := d.ValidateAccount(); err != nil {
		return err
	}
	if d.ProjectKey == "" {
		return apperrors.ErrConfigMissing("jira.project_key", "Set jira.project_key in config or pass --project")
	}
	return nil
}

// ValidateAccount checks only the fields needed to authenticate.
func (d Details) ValidateAccount() error {
	if d.Domain == "" && d.BaseURL == "" {
		return apperrors.ErrConfigMissing("jira.domain", "Set jira.domain in config or FEEDBACK_JIRA_DOMAIN")
	}
	if d.Email == "" {
		return apperrors.ErrConfigMissing("jira.email", "Set jira.email in config or FEEDBACK_JIRA_EMAIL")
	}
	if d.APIToken == "" {
		return apperrors.ErrConfigMissing("jira API token", "Run 'jira-feedback auth login' or set FEEDBACK_JIRA_TOKEN")
	}
	return nil
}

// Feedback is what the user submitted: free text plus an optional PNG screenshot.
type Feedback struct {
	Text       string
	Screenshot []byte
}

// Result describes a submission. When the attachment upload fails, Submit
// returns a Result alongside the error because the issue already exists.
type Result struct {
	SubmissionID string
	IssueID      string
	IssueKey     string
	Summary      string
	// Attachment is the uploaded screenshot file name, empty when none was uploaded.
	Attachment string
}

// IssueURL returns the browse URL for the created issue, or "" if no key is known.
func (r *Result) IssueURL(site string) string {
	if r == nil || r.IssueKey == "" {
		return ""
	}
	return strings.TrimRight(site, "/") + "/browse/" + r.IssueKey
}
