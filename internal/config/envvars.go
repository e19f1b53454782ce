package config

import (
	"os"
	"strings"
)

// EnvVarMapping defines the mapping between environment variables and config paths.
// The API token is not here: it is read from jira.token_env_var at submit time.
var EnvVarMapping = map[string]string{
	"FEEDBACK_JIRA_DOMAIN":     "jira.domain",
	"FEEDBACK_JIRA_EMAIL":      "jira.email",
	"FEEDBACK_JIRA_PROJECT":    "jira.project_key",
	"FEEDBACK_JIRA_ISSUE_TYPE": "jira.issue_type",
	"FEEDBACK_JIRA_PARENT":     "jira.parent_key",
	"FEEDBACK_JIRA_LABELS":     "jira.labels",
	"FEEDBACK_JIRA_BASE_URL":   "jira.base_url",
	// Rendering
	"FEEDBACK_FORMAT": "render.format",
	// History
	"FEEDBACK_HISTORY_ENABLED": "history.enabled",
	"FEEDBACK_HISTORY_DRIVER":  "history.driver",
	"FEEDBACK_HISTORY_PATH":    "history.path",
	"FEEDBACK_HISTORY_DSN":     "history.dsn",
	// Batch
	"FEEDBACK_BATCH_CONCURRENCY": "batch.concurrency",
	// Logging
	"FEEDBACK_LOG_LEVEL":  "log.level",
	"FEEDBACK_LOG_FORMAT": "log.format",
}

// ApplyEnvVars applies environment variable overrides to a TrackedConfig.
// Values that do not parse for their field are ignored.
// Returns a list of paths that were overridden.
func ApplyEnvVars(tc *TrackedConfig) []string {
	var overridden []string

	for envVar, configPath := range EnvVarMapping {
		value := os.Getenv(envVar)
		if value == "" {
			continue
		}

		if err := tc.Config.SetValue(configPath, value); err == nil {
			tc.SetSource(configPath, SourceEnv)
			overridden = append(overridden, configPath)
		}
	}

	return overridden
}

// EnvVarForPath returns the environment variable bound to a config path, if any.
func EnvVarForPath(path string) string {
	for envVar, p := range EnvVarMapping {
		if p == path {
			return envVar
		}
	}
	return ""
}

// parseBool parses a boolean string, accepting the common spellings.
func parseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}
