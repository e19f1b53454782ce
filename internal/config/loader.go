package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadWithSources loads configuration for the current directory.
func LoadWithSources() (*TrackedConfig, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("get working directory: %w", err)
	}
	return LoadWithSourcesFrom(wd)
}

// LoadWithSourcesFrom loads configuration with source tracking.
// Load order (later sources override earlier):
//  1. Built-in defaults
//  2. User config (~/.feedback/config.yaml) - optional
//  3. Project config (<dir>/.feedback/config.yaml) - optional
//  4. Environment variables (FEEDBACK_*)
//
// Flags are applied by the caller with ApplyFlag.
func LoadWithSourcesFrom(dir string) (*TrackedConfig, error) {
	tc := NewTrackedConfig()

	if userPath, err := UserConfigPath(); err == nil {
		if _, err := os.Stat(userPath); err == nil {
			if err := mergeFromFile(tc, userPath, SourceUser); err != nil {
				slog.Warn("failed to load user config", "path", userPath, "error", err)
			}
		}
	}

	projectPath := ProjectConfigPath(dir)
	if _, err := os.Stat(projectPath); err == nil {
		if err := mergeFromFile(tc, projectPath, SourceProject); err != nil {
			return nil, err // Project config errors are fatal
		}
	}

	ApplyEnvVars(tc)

	return tc, nil
}

// MergeFile layers an explicit config file (--config) over tc.
// Environment variables are re-applied so they keep precedence over files.
func MergeFile(tc *TrackedConfig, path string) error {
	if err := mergeFromFile(tc, path, SourceFile); err != nil {
		return err
	}
	ApplyEnvVars(tc)
	return nil
}

// ApplyFlag sets path to value and records it as a flag override.
func ApplyFlag(tc *TrackedConfig, path, value string) error {
	if err := tc.Config.SetValue(path, value); err != nil {
		return err
	}
	tc.SetSource(path, SourceFlag)
	return nil
}

// MergeSettings layers already-decoded settings (for example a file read
// by viper, which also accepts JSON and TOML) over tc. origin names the file
// for source tracking. Environment variables are re-applied afterwards.
func MergeSettings(tc *TrackedConfig, settings map[string]any, origin string) error {
	data, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("encode settings from %s: %w", origin, err)
	}
	if err := mergeData(tc, data, SourceFile, origin); err != nil {
		return err
	}
	ApplyEnvVars(tc)
	return nil
}

func mergeFromFile(tc *TrackedConfig, path string, source ConfigSource) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	return mergeData(tc, data, source, path)
}

// mergeData decodes data over tc.Config. yaml.v3 leaves fields absent from
// the document untouched, so only keys present in it change.
func mergeData(tc *TrackedConfig, data []byte, source ConfigSource, path string) error {
	// Parse into a map to track which fields are set
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(tc.Config); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	for _, key := range setPaths(raw, "") {
		tc.SetSourceWithPath(key, source, path)
	}
	return nil
}

// setPaths flattens a decoded YAML mapping into dotted leaf paths.
func setPaths(raw map[string]any, prefix string) []string {
	var paths []string
	for k, v := range raw {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if nested, ok := v.(map[string]any); ok {
			paths = append(paths, setPaths(nested, key)...)
			continue
		}
		paths = append(paths, key)
	}
	return paths
}
