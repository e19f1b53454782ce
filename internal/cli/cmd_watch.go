package cli

import (
	"context"
	"errors"
	"log/slog"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/jira-feedback/internal/batch"
	"github.com/randalmurphal/jira-feedback/internal/feedback"
	"github.com/randalmurphal/jira-feedback/internal/watcher"
)

func newWatchCmd() *cobra.Command {
	var (
		debounce     time.Duration
		noScreenshot bool
	)

	cmd := &cobra.Command{
		Use:   "watch <dir>",
		Short: "Submit payload files as they land in a directory",
		Long: `Watch a directory (recursively) and submit each payload file written
to it once the file has been quiet for --debounce. Files already present
when the watch starts are left alone. A file is submitted again only if its
content changes.

Payload files use the same YAML or JSON layout as 'jira-feedback batch'.
Stop with Ctrl-C; submissions in progress are allowed to finish.

Example:
  jira-feedback watch ./inbox --label from-inbox`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := applyFlagOverrides(cmd, appConfig, jiraFlags); err != nil {
				return err
			}

			svc, closeFn, err := newService(appConfig.Config, nil)
			if err != nil {
				return err
			}
			defer closeFn()

			runner := batch.NewRunner(svc, 1, slog.Default())
			if noScreenshot {
				runner.Prepare = func(p *feedback.Payload) { p.SkipScreenshot = true }
			}

			// Handlers run on timer goroutines; keep output lines whole.
			var outMu sync.Mutex
			site := svc.Details().SiteURL()
			handle := func(ctx context.Context, path string) {
				results := runner.Run(ctx, []string{path})
				outMu.Lock()
				defer outMu.Unlock()
				printBatchLines(cmd, site, results)
			}

			w, err := watcher.New(&watcher.Config{
				Dir:      args[0],
				Handler:  handle,
				Logger:   slog.Default(),
				Debounce: debounce,
			})
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			err = w.Start(ctx)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}

	addJiraFlags(cmd)
	cmd.Flags().DurationVar(&debounce, "debounce", watcher.DefaultDebounce, "quiet period before a written file is submitted")
	cmd.Flags().BoolVar(&noScreenshot, "no-screenshot", false, "skip every screenshot upload")

	return cmd
}
