package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a submission id is unknown.
var ErrNotFound = errors.New("submission not found")

// Outcome is how a submission ended.
type Outcome string

const (
	// OutcomeCreated means the issue exists with everything requested.
	OutcomeCreated Outcome = "created"
	// OutcomePartial means the issue was created but the screenshot upload failed.
	OutcomePartial Outcome = "partial"
	// OutcomeFailed means no issue was created.
	OutcomeFailed Outcome = "failed"
)

// Submission is one recorded submission attempt.
type Submission struct {
	ID        string
	CreatedAt time.Time
	// Source is where the feedback came from: "cli" or a batch file path.
	Source     string
	Site       string
	ProjectKey string
	Summary    string
	Format     string
	Outcome    Outcome
	IssueID    string
	IssueKey   string
	Attachment string
	ErrorCode  string
	StatusCode int
	Error      string
}

const submissionColumns = `id, created_at, source, site, project_key, summary, format, outcome,
	issue_id, issue_key, attachment, error_code, status_code, error`

// RecordSubmission inserts s. A missing ID is filled with a new UUID and a
// zero CreatedAt with the current time.
func (d *DB) RecordSubmission(ctx context.Context, s *Submission) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now()
	}
	if s.Outcome == "" {
		return fmt.Errorf("record submission %s: outcome is required", s.ID)
	}

	query := fmt.Sprintf("INSERT INTO submissions (%s) VALUES (%s)", submissionColumns, d.placeholders(14))
	_, err := d.driver.Exec(ctx, query,
		s.ID, s.CreatedAt.UnixMilli(), s.Source, s.Site, s.ProjectKey, s.Summary, s.Format, string(s.Outcome),
		s.IssueID, s.IssueKey, s.Attachment, s.ErrorCode, s.StatusCode, s.Error,
	)
	if err != nil {
		return fmt.Errorf("record submission %s: %w", s.ID, err)
	}
	return nil
}

// ListSubmissions returns the most recent submissions, newest first.
// A limit of zero or less returns all of them.
func (d *DB) ListSubmissions(ctx context.Context, limit int) ([]Submission, error) {
	query := fmt.Sprintf("SELECT %s FROM submissions ORDER BY created_at DESC, id", submissionColumns)
	var args []any
	if limit > 0 {
		query += " LIMIT " + d.driver.Placeholder(1)
		args = append(args, limit)
	}

	rows, err := d.driver.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var subs []Submission
	for rows.Next() {
		s, err := scanSubmission(rows)
		if err != nil {
			return nil, fmt.Errorf("list submissions: %w", err)
		}
		subs = append(subs, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	return subs, nil
}

// GetSubmission returns the submission with the given id.
func (d *DB) GetSubmission(ctx context.Context, id string) (*Submission, error) {
	query := fmt.Sprintf("SELECT %s FROM submissions WHERE id = %s", submissionColumns, d.driver.Placeholder(1))
	s, err := scanSubmission(d.driver.QueryRow(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get submission %s: %w", id, err)
	}
	return s, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSubmission(row scanner) (*Submission, error) {
	var (
		s         Submission
		createdAt int64
		outcome   string
	)
	err := row.Scan(
		&s.ID, &createdAt, &s.Source, &s.Site, &s.ProjectKey, &s.Summary, &s.Format, &outcome,
		&s.IssueID, &s.IssueKey, &s.Attachment, &s.ErrorCode, &s.StatusCode, &s.Error,
	)
	if err != nil {
		return nil, err
	}
	s.CreatedAt = time.UnixMilli(createdAt)
	s.Outcome = Outcome(outcome)
	return &s, nil
}
