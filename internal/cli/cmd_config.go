package cli

import (
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/randalmurphal/jira-feedback/internal/config"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "View and manage configuration",
		Long: `View and manage jira-feedback configuration.

Configuration is loaded from these sources, later ones winning:
  1. Built-in defaults
  2. User config: ~/.feedback/config.yaml
  3. Project config: .feedback/config.yaml
  4. --config file
  5. Environment variables (FEEDBACK_*)
  6. Command flags

Examples:
  jira-feedback config show --source
  jira-feedback config get jira.project_key
  jira-feedback config set jira.domain acme
  jira-feedback config set --project render.format hybrid`,
	}

	cmd.AddCommand(newConfigShowCmd())
	cmd.AddCommand(newConfigGetCmd())
	cmd.AddCommand(newConfigSetCmd())
	cmd.AddCommand(newConfigPathCmd())

	return cmd
}

func newConfigShowCmd() *cobra.Command {
	var showSource bool

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show merged configuration",
		Long: `Show the merged configuration from all sources.

By default, outputs valid YAML. Use --source to see where each value comes from.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			if showSource {
				printConfigWithSources(out, appConfig)
				return nil
			}
			return printConfigAsYAML(out, appConfig.Config)
		},
	}

	cmd.Flags().BoolVar(&showSource, "source", false, "show source for each value")
	return cmd
}

func newConfigGetCmd() *cobra.Command {
	var showSource bool

	cmd := &cobra.Command{
		Use:   "get <key>",
		Short: "Get a specific config value",
		Long: `Get a configuration value by dot-separated key (e.g. "jira.project_key").
Lists are printed comma-separated.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			value, err := appConfig.Config.GetValue(key)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if showSource {
				_, _ = fmt.Fprintf(out, "%s (from %s)\n", value, appConfig.GetTrackedSource(key))
			} else {
				_, _ = fmt.Fprintln(out, value)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&showSource, "source", false, "show source of the value")
	return cmd
}

func newConfigSetCmd() *cobra.Command {
	var setProject bool

	cmd := &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a config value",
		Long: `Set a configuration value.

Values are saved to the user config (~/.feedback/config.yaml) unless
--project is given, which saves to .feedback/config.yaml. Only the given key
is written; the rest of the file is left as it was. Lists are comma-separated.

Examples:
  jira-feedback config set jira.email me@acme.io
  jira-feedback config set jira.labels feedback,mobile
  jira-feedback config set --project jira.project_key FB`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, value := args[0], args[1]

			targetPath, err := configTarget(setProject)
			if err != nil {
				return err
			}
			if err := config.SetInFile(targetPath, key, value); err != nil {
				return fmt.Errorf("set %s: %w", key, err)
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Set %s = %s in %s\n", key, value, targetPath)
			return nil
		},
	}

	cmd.Flags().BoolVar(&setProject, "project", false, "save to project config (.feedback/config.yaml)")
	cmd.Flags().Bool("user", false, "save to user config (~/.feedback/config.yaml)")
	cmd.MarkFlagsMutuallyExclusive("project", "user")

	return cmd
}

func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Show config file locations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			userPath, err := configTarget(false)
			if err != nil {
				return err
			}
			projectPath, err := configTarget(true)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(out, "user:    %s%s\n", userPath, missingMark(userPath))
			_, _ = fmt.Fprintf(out, "project: %s%s\n", projectPath, missingMark(projectPath))
			if cfgFile != "" {
				_, _ = fmt.Fprintf(out, "file:    %s%s\n", cfgFile, missingMark(cfgFile))
			}
			return nil
		},
	}
}

func configTarget(project bool) (string, error) {
	if project {
		wd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("get working directory: %w", err)
		}
		return config.ProjectConfigPath(wd), nil
	}
	return config.UserConfigPath()
}

func missingMark(path string) string {
	if _, err := os.Stat(path); err != nil {
		return " (not found)"
	}
	return ""
}

// printConfigAsYAML outputs the config as valid YAML.
func printConfigAsYAML(out io.Writer, cfg *config.Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	_, _ = fmt.Fprint(out, string(data))
	return nil
}

// printConfigWithSources outputs config values with source annotations.
func printConfigWithSources(out io.Writer, tc *config.TrackedConfig) {
	paths := config.AllConfigPaths()
	sort.Strings(paths)

	for _, path := range paths {
		value, err := tc.Config.GetValue(path)
		if err != nil {
			continue
		}
		_, _ = fmt.Fprintf(out, "%s = %s (%s)\n", path, value, tc.GetTrackedSource(path))
	}
}
