package batch

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
	"golang.org/x/sync/errgroup"

	"github.com/randalmurphal/jira-feedback/internal/feedback"
	"github.com/randalmurphal/jira-feedback/internal/jira"
)

// Filer submits one payload. *feedback.Service implements it.
type Filer interface {
	File(ctx context.Context, p feedback.Payload) (*jira.Result, error)
}

// Result is the outcome for one payload file. Result is set whenever an
// issue was created, even if Err reports a failed screenshot upload.
type Result struct {
	Path   string
	Result *jira.Result
	Err    error
}

// Expand resolves doublestar patterns ("feedback/**/*.yaml") to files.
// Matches keep pattern order, are sorted within a pattern and are
// deduplicated. A pattern that matches nothing is an error.
func Expand(patterns []string) ([]string, error) {
	seen := make(map[string]bool)
	var paths []string
	for _, pattern := range patterns {
		matches, err := doublestar.FilepathGlob(pattern, doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("expand %q: %w", pattern, err)
		}
		if len(matches) == 0 {
			return nil, fmt.Errorf("no files match %q", pattern)
		}
		sort.Strings(matches)
		for _, m := range matches {
			if !seen[m] {
				seen[m] = true
				paths = append(paths, m)
			}
		}
	}
	return paths, nil
}

// Runner submits payload files side by side.
type Runner struct {
	filer       Filer
	concurrency int
	logger      *slog.Logger
	// Prepare, if set, adjusts each payload after loading.
	Prepare func(*feedback.Payload)
}

// NewRunner creates a Runner with at most concurrency submissions in flight.
func NewRunner(filer Filer, concurrency int, logger *slog.Logger) *Runner {
	if concurrency < 1 {
		concurrency = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{filer: filer, concurrency: concurrency, logger: logger}
}

// Run loads and submits every path. Submissions are independent: one failing
// does not stop the rest. Results are in the order of paths. Once ctx is
// done, files not yet started are reported with ctx's error.
func (r *Runner) Run(ctx context.Context, paths []string) []Result {
	results := make([]Result, len(paths))

	var g errgroup.Group
	g.SetLimit(r.concurrency)

	for i, path := range paths {
		results[i].Path = path
		g.Go(func() error {
			results[i].Result, results[i].Err = r.one(ctx, path)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func (r *Runner) one(ctx context.Context, path string) (*jira.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p, err := LoadFile(path)
	if err != nil {
		r.logger.Warn("skipping payload", "path", path, "error", err)
		return nil, err
	}
	if r.Prepare != nil {
		r.Prepare(&p)
	}

	res, err := r.filer.File(ctx, p)
	if err != nil {
		r.logger.Warn("payload submission failed", "path", path, "error", err)
	} else {
		r.logger.Info("payload submitted", "path", path, "issue_key", res.IssueKey)
	}
	return res, err
}

// Summary counts results by outcome.
type Summary struct {
	Created int // issue created with everything requested
	Partial int // issue created, screenshot upload failed
	Failed  int // no issue
}

// Summarize counts results.
func Summarize(results []Result) Summary {
	var s Summary
	for _, r := range results {
		switch {
		case r.Err == nil:
			s.Created++
		case r.Result != nil:
			s.Partial++
		default:
			s.Failed++
		}
	}
	return s
}
