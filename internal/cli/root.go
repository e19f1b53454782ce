// Package cli implements the jira-feedback command-line interface.
package cli

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/randalmurphal/jira-feedback/internal/config"
	"github.com/randalmurphal/jira-feedback/internal/credential"
)

var (
	cfgFile string
	verbose bool
	jsonOut bool
)

// appConfig is loaded before any subcommand runs.
var appConfig *config.TrackedConfig

// openStore opens the credential store. Tests swap in an in-memory keyring.
var openStore = credential.Open

// newRootCmd builds the command tree.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jira-feedback",
		Short: "File user feedback as Jira issues",
		Long: `jira-feedback files user feedback as Jira Cloud issues.

Each issue gets an Atlassian Document Format description built from the
feedback text, device details and a metadata tree, and the screenshot is
attached afterwards.

Quick start:
  jira-feedback auth login                     Store your Jira API token
  jira-feedback config set jira.domain acme    Point at acme.atlassian.net
  jira-feedback submit "Save button is broken" --screenshot shot.png
  jira-feedback batch 'inbox/**/*.yaml'        Submit many payload files
  jira-feedback watch ./inbox                  Submit payload files as they arrive
  jira-feedback history                        Show recent submissions`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return initConfig(cmd)
		},
	}

	// Global flags
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "extra config file layered over .feedback/config.yaml (yaml, json or toml)")
	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output (debug logging)")
	cmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "output as JSON")

	cmd.AddCommand(newSubmitCmd())
	cmd.AddCommand(newRenderCmd())
	cmd.AddCommand(newBatchCmd())
	cmd.AddCommand(newWatchCmd())
	cmd.AddCommand(newHistoryCmd())
	cmd.AddCommand(newAuthCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// Execute runs the CLI with os.Args.
func Execute() error {
	return newRootCmd().Execute()
}

// initConfig loads the layered configuration and installs the logger.
// FEEDBACK_VERBOSE=1 behaves like --verbose.
func initConfig(cmd *cobra.Command) error {
	v := viper.New()
	v.SetEnvPrefix("FEEDBACK")
	if err := v.BindPFlag("verbose", cmd.Root().PersistentFlags().Lookup("verbose")); err != nil {
		return fmt.Errorf("bind verbose flag: %w", err)
	}
	_ = v.BindEnv("verbose")
	verbose = v.GetBool("verbose")

	tc, err := loadConfig()
	if err != nil {
		return err
	}
	appConfig = tc

	setupLogging(cmd.ErrOrStderr(), tc.Config.Log, verbose)
	return nil
}

// loadConfig loads defaults, user and project files and the environment,
// then layers the --config file on top when one was given. The file is read
// by its own viper instance so flag and env bindings stay out of it.
func loadConfig() (*config.TrackedConfig, error) {
	tc, err := config.LoadWithSources()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if cfgFile == "" {
		return tc, nil
	}

	v := viper.New()
	v.SetConfigFile(cfgFile)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config %s: %w", cfgFile, err)
	}
	if err := config.MergeSettings(tc, v.AllSettings(), v.ConfigFileUsed()); err != nil {
		return nil, err
	}
	return tc, nil
}

// setupLogging replaces the default logger. Verbose forces debug.
func setupLogging(w io.Writer, cfg config.LogConfig, verbose bool) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	if verbose {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}
