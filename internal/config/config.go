// Package config provides configuration management for jira-feedback.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/randalmurphal/jira-feedback/internal/jira"
	"github.com/randalmurphal/jira-feedback/internal/util"
)

const (
	// ConfigFileName is the default config file name
	ConfigFileName = "config.yaml"
	// FeedbackDir is the configuration directory, both per project and under $HOME
	FeedbackDir = ".feedback"
	// DefaultTokenEnvVar holds the Jira API token unless jira.token_env_var says otherwise
	DefaultTokenEnvVar = "FEEDBACK_JIRA_TOKEN"
)

// JiraConfig identifies the Jira site and the project issues are filed in.
// The API token is deliberately not part of it; see internal/credential.
type JiraConfig struct {
	// Domain is the Atlassian site name ("acme" for acme.atlassian.net)
	Domain string `yaml:"domain"`
	Email  string `yaml:"email"`

	ProjectKey string   `yaml:"project_key"`
	IssueType  string   `yaml:"issue_type"`
	ParentKey  string   `yaml:"parent_key,omitempty"`
	Labels     []string `yaml:"labels,omitempty"`

	// BaseURL replaces https://{domain}.atlassian.net, e.g. for a proxy
	BaseURL string `yaml:"base_url,omitempty"`

	// TokenEnvVar names the environment variable checked for the API token
	TokenEnvVar string `yaml:"token_env_var"`
}

// RenderConfig controls how descriptions are built.
type RenderConfig struct {
	// Format is one of paragraphs, bullets, codeBlock, hybrid
	Format string `yaml:"format"`
}

// HistoryConfig controls the local submission history.
type HistoryConfig struct {
	Enabled bool `yaml:"enabled"`
	// Driver is "sqlite" or "postgres"
	Driver string `yaml:"driver"`
	// Path is the sqlite database file; a leading ~ is expanded
	Path string `yaml:"path"`
	// DSN is the postgres connection string
	DSN string `yaml:"dsn,omitempty"`
}

// BatchConfig controls batch submission.
type BatchConfig struct {
	// Concurrency bounds how many submissions run at once
	Concurrency int `yaml:"concurrency"`
}

// LogConfig controls the process logger.
type LogConfig struct {
	// Level is debug, info, warn or error
	Level string `yaml:"level"`
	// Format is text or json
	Format string `yaml:"format"`
}

// Config represents the jira-feedback configuration.
type Config struct {
	Jira    JiraConfig    `yaml:"jira"`
	Render  RenderConfig  `yaml:"render"`
	History HistoryConfig `yaml:"history"`
	Batch   BatchConfig   `yaml:"batch"`
	Log     LogConfig     `yaml:"log"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Jira: JiraConfig{
			IssueType:   jira.DefaultIssueType,
			TokenEnvVar: DefaultTokenEnvVar,
		},
		Render: RenderConfig{
			Format: "paragraphs",
		},
		History: HistoryConfig{
			Enabled: true,
			Driver:  "sqlite",
			Path:    filepath.Join("~", FeedbackDir, "history.db"),
		},
		Batch: BatchConfig{
			Concurrency: 4,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// UserConfigPath returns ~/.feedback/config.yaml.
func UserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home directory: %w", err)
	}
	return filepath.Join(home, FeedbackDir, ConfigFileName), nil
}

// ProjectConfigPath returns .feedback/config.yaml under dir.
func ProjectConfigPath(dir string) string {
	return filepath.Join(dir, FeedbackDir, ConfigFileName)
}

// LoadFrom reads a single config file over the defaults.
func LoadFrom(path string) (*Config, error) {
	tc := NewTrackedConfig()
	if err := mergeFromFile(tc, path, SourceFile); err != nil {
		return nil, err
	}
	return tc.Config, nil
}

// SaveTo writes the config as YAML, creating parent directories.
func (c *Config) SaveTo(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := util.WriteFileAtomic(path, data, 0644); err != nil {
		return fmt.Errorf("write config %s: %w", path, err)
	}
	return nil
}

// JiraDetails combines the Jira section with a resolved API token.
func (c *Config) JiraDetails(token string) jira.Details {
	return jira.Details{
		Domain:     c.Jira.Domain,
		Email:      c.Jira.Email,
		APIToken:   token,
		ProjectKey: c.Jira.ProjectKey,
		IssueType:  c.Jira.IssueType,
		ParentKey:  c.Jira.ParentKey,
		Labels:     append([]string(nil), c.Jira.Labels...),
		BaseURL:    c.Jira.BaseURL,
	}
}

// HistoryPath returns the sqlite history path with ~ expanded.
func (c *Config) HistoryPath() string {
	return expandHome(c.History.Path)
}

// HistoryDSN returns the data source for the configured history driver.
func (c *Config) HistoryDSN() string {
	if c.History.Driver == "postgres" {
		return c.History.DSN
	}
	return c.HistoryPath()
}

func expandHome(p string) string {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~"))
}
