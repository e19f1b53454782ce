// Package feedback turns a captured payload into a Jira issue: it builds the
// ADF description, submits it and records the attempt in the history.
package feedback

import (
	"context"
	"log/slog"

	"github.com/randalmurphal/jira-feedback/internal/adf"
	"github.com/randalmurphal/jira-feedback/internal/db"
	apperrors "github.com/randalmurphal/jira-feedback/internal/errors"
	"github.com/randalmurphal/jira-feedback/internal/jira"
	"github.com/randalmurphal/jira-feedback/internal/metadata"
)

// Payload is everything captured for one piece of feedback.
type Payload struct {
	Text       string
	Screenshot []byte
	// Device details are rendered in insertion order.
	Device adf.Details
	// Metadata is rendered under "Custom data"; nil omits the section.
	Metadata *metadata.Value
	// Format overrides the service default when set.
	Format adf.Format
	// SkipScreenshot files the issue without uploading Screenshot.
	SkipScreenshot bool
	// Source labels the history entry ("cli", a batch file path).
	Source string
}

// Recorder stores submission attempts.
type Recorder interface {
	RecordSubmission(ctx context.Context, s *db.Submission) error
}

// Service files payloads against one Jira project.
type Service struct {
	details   jira.Details
	submitter *jira.Submitter
	format    adf.Format
	history   Recorder
	logger    *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithFormat sets the default render format.
func WithFormat(f adf.Format) Option {
	return func(s *Service) { s.format = f }
}

// WithHistory records every attempt in r.
func WithHistory(r Recorder) Option {
	return func(s *Service) { s.history = r }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// NewService creates a Service that submits with submitter using details.
func NewService(details jira.Details, submitter *jira.Submitter, opts ...Option) *Service {
	s := &Service{
		details:   details,
		submitter: submitter,
		format:    adf.DefaultFormat,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Details returns the Jira details the service submits with.
func (s *Service) Details() jira.Details {
	return s.details
}

// FormatFor returns the format p renders with.
func (s *Service) FormatFor(p Payload) adf.Format {
	if p.Format != "" {
		return p.Format
	}
	return s.format
}

// Describe builds the ADF description for p without submitting it.
func (s *Service) Describe(p Payload) *adf.Node {
	return adf.BuildDescription(p.Text, p.Device, p.Metadata, s.FormatFor(p))
}

// File submits p. On an attachment failure the Result is returned with the
// error. History write failures are logged and never fail the submission.
func (s *Service) File(ctx context.Context, p Payload) (*jira.Result, error) {
	fb := jira.Feedback{Text: p.Text, Screenshot: p.Screenshot}
	result, err := s.submitter.Submit(ctx, s.details, fb, s.Describe(p), !p.SkipScreenshot)
	s.record(ctx, p, result, err)
	return result, err
}

func (s *Service) record(ctx context.Context, p Payload, result *jira.Result, submitErr error) {
	if s.history == nil {
		return
	}

	entry := &db.Submission{
		Source:     p.Source,
		Site:       s.details.SiteURL(),
		ProjectKey: s.details.ProjectKey,
		Summary:    jira.Summary(p.Text),
		Format:     string(s.FormatFor(p)),
		Outcome:    outcomeOf(result, submitErr),
	}
	if result != nil {
		entry.ID = result.SubmissionID
		entry.IssueID = result.IssueID
		entry.IssueKey = result.IssueKey
		entry.Attachment = result.Attachment
	}
	if submitErr != nil {
		entry.Error = submitErr.Error()
		if fe := apperrors.AsFeedbackError(submitErr); fe != nil {
			entry.ErrorCode = string(fe.Code)
			entry.StatusCode = fe.StatusCode
		}
	}

	// Record even when ctx was cancelled mid-submission.
	if err := s.history.RecordSubmission(context.WithoutCancel(ctx), entry); err != nil {
		s.logger.Warn("failed to record submission", "error", err)
	}
}

func outcomeOf(result *jira.Result, err error) db.Outcome {
	switch {
	case err == nil:
		return db.OutcomeCreated
	case result != nil:
		return db.OutcomePartial
	default:
		return db.OutcomeFailed
	}
}
