package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	apperrors "github.com/randalmurphal/jira-feedback/internal/errors"
)

// PrintError prints an error to stderr.
// FeedbackErrors use their user-facing format, or JSON with --json.
func PrintError(err error) {
	printError(os.Stderr, err)
}

func printError(w io.Writer, err error) {
	fe := apperrors.AsFeedbackError(err)
	if fe == nil {
		_, _ = fmt.Fprintf(w, "Error: %v\n", err)
		return
	}

	if jsonOut {
		data, mErr := json.MarshalIndent(fe, "", "  ")
		if mErr == nil {
			_, _ = fmt.Fprintln(w, string(data))
			return
		}
	}

	_, _ = fmt.Fprintln(w, fe.UserMessage())
	if verbose {
		_, _ = fmt.Fprintf(w, "\nCode: %s\n", fe.Code)
		if fe.Cause != nil {
			_, _ = fmt.Fprintf(w, "Cause: %v\n", fe.Cause)
		}
	}
}

// ExitCode maps err to a process exit status: 0 for nil, the error
// category's status for FeedbackErrors, 1 otherwise.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	if fe := apperrors.AsFeedbackError(err); fe != nil {
		return fe.ExitCode()
	}
	return 1
}
