package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/randalmurphal/jira-feedback/internal/adf"
	"github.com/randalmurphal/jira-feedback/internal/config"
	"github.com/randalmurphal/jira-feedback/internal/credential"
	"github.com/randalmurphal/jira-feedback/internal/db"
	"github.com/randalmurphal/jira-feedback/internal/db/driver"
	apperrors "github.com/randalmurphal/jira-feedback/internal/errors"
	"github.com/randalmurphal/jira-feedback/internal/feedback"
	"github.com/randalmurphal/jira-feedback/internal/jira"
)

// jiraFlags maps command flags to the config keys they override.
var jiraFlags = map[string]string{
	"project":    "jira.project_key",
	"issue-type": "jira.issue_type",
	"parent":     "jira.parent_key",
	"label":      "jira.labels",
	"format":     "render.format",
}

// addJiraFlags registers the per-submission overrides shared by submit and batch.
func addJiraFlags(cmd *cobra.Command) {
	cmd.Flags().String("project", "", "Jira project key (overrides jira.project_key)")
	cmd.Flags().String("issue-type", "", "issue type name (overrides jira.issue_type)")
	cmd.Flags().String("parent", "", "parent issue key (overrides jira.parent_key)")
	cmd.Flags().StringSlice("label", nil, "issue label, repeatable (overrides jira.labels)")
	cmd.Flags().String("format", "", "metadata format: paragraphs, bullets, codeBlock or hybrid")
}

// applyFlagOverrides copies every changed flag in mapping onto tc.
func applyFlagOverrides(cmd *cobra.Command, tc *config.TrackedConfig, mapping map[string]string) error {
	for name, path := range mapping {
		f := cmd.Flags().Lookup(name)
		if f == nil || !f.Changed {
			continue
		}
		if err := config.ApplyFlag(tc, path, flagString(f)); err != nil {
			return fmt.Errorf("--%s: %w", name, err)
		}
	}
	return tc.Config.Validate()
}

func flagString(f *pflag.Flag) string {
	if sv, ok := f.Value.(pflag.SliceValue); ok {
		return strings.Join(sv.GetSlice(), ",")
	}
	return f.Value.String()
}

// parseDevice turns "key=value" pairs into ordered device details.
func parseDevice(pairs []string) (adf.Details, error) {
	var details adf.Details
	for _, pair := range pairs {
		k, v, ok := strings.Cut(pair, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid --device %q: want key=value", pair)
		}
		details = details.Add(k, strings.TrimSpace(v))
	}
	return details, nil
}

// readText picks the feedback text from args, a file ("-" for stdin), or
// piped stdin when neither is given.
func readText(args []string, file string, stdin io.Reader) (string, error) {
	switch {
	case len(args) > 0 && file != "":
		return "", fmt.Errorf("give the feedback text as arguments or --file, not both")
	case len(args) > 0:
		return strings.Join(args, " "), nil
	case file == "-":
		return readAll(stdin)
	case file != "":
		data, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("read feedback text: %w", err)
		}
		return string(data), nil
	case !isTerminal(stdin):
		return readAll(stdin)
	default:
		return "", fmt.Errorf("no feedback text: pass it as arguments, with --file, or on stdin")
	}
}

func readAll(r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("read feedback text: %w", err)
	}
	return strings.TrimRight(string(data), "\r\n"), nil
}

// resolveToken finds the API token for cfg's account. The keyring is only
// opened when the token environment variable is empty.
func resolveToken(cfg *config.Config) (string, error) {
	envVar := cfg.Jira.TokenEnvVar
	if envVar != "" && strings.TrimSpace(os.Getenv(envVar)) != "" {
		return credential.Resolve(nil, envVar, cfg.Jira.Domain, cfg.Jira.Email)
	}

	store, err := openStore()
	if err != nil {
		slog.Debug("keyring unavailable", "error", err)
		store = nil
	}
	return credential.Resolve(store, envVar, cfg.Jira.Domain, cfg.Jira.Email)
}

// openHistory opens the configured history store, or returns nil when
// history is disabled.
func openHistory(cfg *config.Config) (*db.DB, error) {
	if !cfg.History.Enabled {
		return nil, nil
	}
	dialect, err := driver.ParseDialect(cfg.History.Driver)
	if err != nil {
		return nil, apperrors.ErrConfigInvalid("history.driver", err.Error())
	}
	hist, err := db.OpenWithDialect(cfg.HistoryDSN(), dialect)
	if err != nil {
		return nil, fmt.Errorf("open history: %w", err)
	}
	return hist, nil
}

// newService wires a feedback service from the loaded config.
// The returned close function releases the history store.
func newService(cfg *config.Config, status jira.StatusFunc) (*feedback.Service, func(), error) {
	token, err := resolveToken(cfg)
	if err != nil {
		return nil, nil, err
	}
	details := cfg.JiraDetails(token)
	if err := details.Validate(); err != nil {
		return nil, nil, err
	}

	format, err := adf.ParseFormat(cfg.Render.Format)
	if err != nil {
		return nil, nil, apperrors.ErrConfigInvalid("render.format", err.Error())
	}

	logger := slog.Default()
	submitOpts := []jira.Option{jira.WithLogger(logger)}
	if status != nil {
		submitOpts = append(submitOpts, jira.WithStatusFunc(status))
	}
	opts := []feedback.Option{feedback.WithFormat(format), feedback.WithLogger(logger)}

	closeFn := func() {}
	hist, err := openHistory(cfg)
	if err != nil {
		// History is best-effort; submissions go ahead without it.
		logger.Warn("history disabled for this run", "error", err)
	} else if hist != nil {
		opts = append(opts, feedback.WithHistory(hist))
		closeFn = func() { _ = hist.Close() }
	}

	return feedback.NewService(details, jira.NewSubmitter(submitOpts...), opts...), closeFn, nil
}

// writeJSON prints v as indented JSON.
func writeJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
