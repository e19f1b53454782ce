package jira

import (
	"fmt"
	"strings"
	"time"

	"github.com/ctreminiom/go-atlassian/v2/pkg/infra/models"
)

// DefaultSummary is used when the feedback text is blank.
const DefaultSummary = "Feedback"

// Summary derives the issue summary from feedback text: the text before the
// first period, trimmed. Text without a period is used whole. Blank text
// yields "Feedback".
func Summary(text string) string {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return DefaultSummary
	}
	if i := strings.IndexByte(trimmed, '.'); i >= 0 {
		return strings.TrimSpace(trimmed[:i])
	}
	return trimmed
}

// BuildIssuePayload assembles the create-issue body. Parent and labels are
// only included when set.
func BuildIssuePayload(d Details, summary string, description *models.CommentNodeScheme) *models.IssueScheme {
	fields := &models.IssueFieldsScheme{
		Summary:     summary,
		IssueType:   &models.IssueTypeScheme{Name: d.EffectiveIssueType()},
		Project:     &models.ProjectScheme{Key: d.ProjectKey},
		Description: description,
	}
	if d.ParentKey != "" {
		fields.Parent = &models.ParentScheme{Key: d.ParentKey}
	}
	if len(d.Labels) > 0 {
		fields.Labels = append([]string(nil), d.Labels...)
	}
	return &models.IssueScheme{Fields: fields}
}

// ScreenshotName returns the attachment file name for a screenshot taken at t.
func ScreenshotName(t time.Time) string {
	return fmt.Sprintf("screenshot-%d.png", t.UnixMilli())
}
