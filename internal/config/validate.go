package config

import (
	"fmt"
	"slices"

	"github.com/randalmurphal/jira-feedback/internal/adf"
	apperrors "github.com/randalmurphal/jira-feedback/internal/errors"
)

var (
	validDrivers    = []string{"sqlite", "postgres"}
	validLogLevels  = []string{"debug", "info", "warn", "error"}
	validLogFormats = []string{"text", "json"}
)

// Validate checks settings that have a fixed set of values. Missing Jira
// fields are not checked here; they are reported when a submission needs them.
func (c *Config) Validate() error {
	if _, err := adf.ParseFormat(c.Render.Format); err != nil {
		return apperrors.ErrConfigInvalid("render.format", err.Error())
	}

	if !slices.Contains(validDrivers, c.History.Driver) {
		return apperrors.ErrConfigInvalid("history.driver",
			fmt.Sprintf("%q is not one of %v", c.History.Driver, validDrivers))
	}
	if c.History.Enabled {
		if c.History.Driver == "postgres" && c.History.DSN == "" {
			return apperrors.ErrConfigInvalid("history.dsn", "postgres history needs a connection string")
		}
		if c.History.Driver == "sqlite" && c.History.Path == "" {
			return apperrors.ErrConfigInvalid("history.path", "sqlite history needs a file path")
		}
	}

	if c.Batch.Concurrency < 1 {
		return apperrors.ErrConfigInvalid("batch.concurrency",
			fmt.Sprintf("must be at least 1, got %d", c.Batch.Concurrency))
	}

	if !slices.Contains(validLogLevels, c.Log.Level) {
		return apperrors.ErrConfigInvalid("log.level",
			fmt.Sprintf("%q is not one of %v", c.Log.Level, validLogLevels))
	}
	if !slices.Contains(validLogFormats, c.Log.Format) {
		return apperrors.ErrConfigInvalid("log.format",
			fmt.Sprintf("%q is not one of %v", c.Log.Format, validLogFormats))
	}

	return nil
}
