package cli

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/jira-feedback/internal/batch"
	"github.com/randalmurphal/jira-feedback/internal/config"
	"github.com/randalmurphal/jira-feedback/internal/feedback"
)

// batchOutput is the --json shape of one batch entry.
type batchOutput struct {
	Path     string `json:"path"`
	Outcome  string `json:"outcome"`
	IssueKey string `json:"issue_key,omitempty"`
	URL      string `json:"url,omitempty"`
	Error    string `json:"error,omitempty"`
}

func newBatchCmd() *cobra.Command {
	var (
		concurrency  int
		noScreenshot bool
	)

	cmd := &cobra.Command{
		Use:   "batch <pattern>...",
		Short: "Submit many payload files",
		Long: `Submit every payload file matching the given patterns.

Patterns support ** (e.g. 'inbox/**/*.yaml'). Payload files are YAML or JSON:

  text: "Save button does nothing. Tried twice."
  screenshot: shots/save.png   # relative to the payload file
  format: bullets              # optional
  device:
    OS: iOS 17.2
    Model: iPhone 15
  metadata:
    user: {id: 42, plan: pro}

Submissions run side by side (batch.concurrency, default 4) and never
affect one another. Results are listed in file order.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("concurrency") {
				if err := config.ApplyFlag(appConfig, "batch.concurrency", strconv.Itoa(concurrency)); err != nil {
					return err
				}
			}
			if err := applyFlagOverrides(cmd, appConfig, jiraFlags); err != nil {
				return err
			}
			cfg := appConfig.Config

			paths, err := batch.Expand(args)
			if err != nil {
				return err
			}

			svc, closeFn, err := newService(cfg, nil)
			if err != nil {
				return err
			}
			defer closeFn()

			runner := batch.NewRunner(svc, cfg.Batch.Concurrency, slog.Default())
			if noScreenshot {
				runner.Prepare = func(p *feedback.Payload) { p.SkipScreenshot = true }
			}

			results := runner.Run(cmd.Context(), paths)
			summary := batch.Summarize(results)
			printBatch(cmd, svc.Details().SiteURL(), results, summary)

			if summary.Failed > 0 || summary.Partial > 0 {
				return fmt.Errorf("%d of %d payloads failed, %d filed without screenshot",
					summary.Failed, len(results), summary.Partial)
			}
			return nil
		},
	}

	addJiraFlags(cmd)
	cmd.Flags().IntVarP(&concurrency, "concurrency", "c", 0, "submissions in flight at once (overrides batch.concurrency)")
	cmd.Flags().BoolVar(&noScreenshot, "no-screenshot", false, "skip every screenshot upload")

	return cmd
}

func outcomeLabel(r batch.Result) string {
	switch {
	case r.Err == nil:
		return "created"
	case r.Result != nil:
		return "partial"
	default:
		return "failed"
	}
}

func batchEntries(site string, results []batch.Result) []batchOutput {
	entries := make([]batchOutput, len(results))
	for i, r := range results {
		entries[i] = batchOutput{Path: r.Path, Outcome: outcomeLabel(r)}
		if r.Result != nil {
			entries[i].IssueKey = r.Result.IssueKey
			entries[i].URL = r.Result.IssueURL(site)
		}
		if r.Err != nil {
			entries[i].Error = r.Err.Error()
		}
	}
	return entries
}

func printBatch(cmd *cobra.Command, site string, results []batch.Result, summary batch.Summary) {
	out := cmd.OutOrStdout()
	if jsonOut {
		_ = writeJSON(out, batchEntries(site, results))
		return
	}
	printBatchLines(cmd, site, results)
	_, _ = fmt.Fprintf(out, "\n%d created, %d partial, %d failed\n", summary.Created, summary.Partial, summary.Failed)
}

// printBatchLines prints one line per result, or one compact JSON object
// per line with --json.
func printBatchLines(cmd *cobra.Command, site string, results []batch.Result) {
	out := cmd.OutOrStdout()

	if jsonOut {
		for _, e := range batchEntries(site, results) {
			if data, err := json.Marshal(e); err == nil {
				_, _ = fmt.Fprintln(out, string(data))
			}
		}
		return
	}

	paint := newPainter(out)
	for _, r := range results {
		switch outcomeLabel(r) {
		case "created":
			_, _ = fmt.Fprintf(out, "%s %s  %s\n", paint.success("ok     "), r.Path, paint.key(r.Result.IssueKey))
		case "partial":
			_, _ = fmt.Fprintf(out, "%s %s  %s  %s\n", paint.warning("partial"), r.Path,
				paint.key(r.Result.IssueKey), paint.muted(r.Err.Error()))
		default:
			_, _ = fmt.Fprintf(out, "%s %s  %s\n", paint.failure("failed "), r.Path, paint.muted(r.Err.Error()))
		}
	}
}
