package jira

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/ctreminiom/go-atlassian/v2/pkg/infra/models"
	"github.com/google/uuid"
)

// StatusFunc is told when a submission starts (true) and ends (false).
type StatusFunc func(submitting bool)

// Submitter files feedback as Jira issues. A Submitter holds no per-submission
// state and may be shared; concurrent submissions are neither serialized nor
// deduplicated.
type Submitter struct {
	httpClient *http.Client
	onSubmit   StatusFunc
	logger     *slog.Logger
	now        func() time.Time
}

// Option configures a Submitter.
type Option func(*Submitter)

// WithHTTPClient sets the HTTP client used for both calls.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Submitter) { s.httpClient = c }
}

// WithStatusFunc registers a submitting-state callback.
func WithStatusFunc(fn StatusFunc) Option {
	return func(s *Submitter) { s.onSubmit = fn }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Submitter) { s.logger = l }
}

// WithClock sets the time source used for attachment names.
func WithClock(now func() time.Time) Option {
	return func(s *Submitter) { s.now = now }
}

// NewSubmitter creates a Submitter.
func NewSubmitter(opts ...Option) *Submitter {
	s := &Submitter{
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submit creates an issue for fb with the given description, then uploads
// the screenshot when includeScreenshot is set and one is present.
//
// The status callback fires true before any work and false on every exit.
// Nothing is retried. If the upload fails the issue stays created and the
// returned Result names it alongside the error.
func (s *Submitter) Submit(
	ctx context.Context,
	d Details,
	fb Feedback,
	description *models.CommentNodeScheme,
	includeScreenshot bool,
) (*Result, error) {
	s.notify(true)
	defer s.notify(false)

	id := uuid.NewString()
	logger := s.logger.With("submission", id, "project", d.ProjectKey)

	if err := d.Validate(); err != nil {
		return nil, err
	}
	client, err := NewClient(d, s.httpClient)
	if err != nil {
		return nil, err
	}

	summary := Summary(fb.Text)
	logger.Debug("creating issue", "summary", summary, "issue_type", d.EffectiveIssueType())

	created, err := client.CreateIssue(ctx, BuildIssuePayload(d, summary, description))
	if err != nil {
		logger.Warn("issue creation failed", "error", err)
		return nil, err
	}

	result := &Result{
		SubmissionID: id,
		IssueID:      created.ID,
		IssueKey:     created.Key,
		Summary:      summary,
	}
	logger.Info("issue created", "issue_id", created.ID, "issue_key", created.Key)

	if !includeScreenshot || len(fb.Screenshot) == 0 {
		return result, nil
	}

	name := ScreenshotName(s.now())
	if err := client.AddAttachment(ctx, created.ID, name, fb.Screenshot); err != nil {
		logger.Warn("screenshot upload failed", "issue_id", created.ID, "error", err)
		return result, err
	}
	result.Attachment = name
	logger.Debug("screenshot attached", "issue_id", created.ID, "file", name, "bytes", len(fb.Screenshot))

	return result, nil
}

func (s *Submitter) notify(submitting bool) {
	if s.onSubmit != nil {
		s.onSubmit(submitting)
	}
}
