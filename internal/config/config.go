// Package config handles application configuration and environment loading.
package config

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"strings"
)

// Config holds the engine's runtime configuration.
type Config struct {
	DBPath           string // path to the SQLite database file
	ScopeCatalogPath string // optional path to a scope catalog YAML override
	LogLevel         string // log level: debug, info, warn, error (default "info")
	Env              string // environment: "development" (default) or "production"

	// Warnings collects non-fatal warnings generated during config loading.
	// These are logged by the caller after the logger is initialised.
	Warnings []string
}

// SlogLevel maps the LogLevel string to an slog.Level.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// IsProduction returns true when running in production mode.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// LoadFromEnv loads configuration from environment variables.
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		DBPath:           os.Getenv("CIRCLE_DB_PATH"),
		ScopeCatalogPath: os.Getenv("SCOPE_CATALOG_PATH"),
		LogLevel:         os.Getenv("LOG_LEVEL"),
		Env:              os.Getenv("ENV"),
	}

	if cfg.DBPath == "" {
		cfg.DBPath = "circles.sqlite"
		cfg.Warnings = append(cfg.Warnings, "CIRCLE_DB_PATH not set — using ./circles.sqlite")
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}

	if cfg.ScopeCatalogPath != "" {
		if _, err := os.Stat(cfg.ScopeCatalogPath); err != nil {
			return nil, fmt.Errorf("SCOPE_CATALOG_PATH: %w", err)
		}
	}

	return cfg, nil
}

// LoadDotEnv reads a .env file and sets any variables not already in the environment.
// Lines must be in KEY=VALUE format. Comments (#) and blank lines are skipped.
func LoadDotEnv(path string) error {
	f, err := os.Open(path) //nolint:gosec // path is caller-controlled
	if err != nil {
		if os.IsNotExist(err) {
			return nil // .env not found is not an error
		}
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close() //nolint:errcheck

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		value = stripQuotes(value)
		// Only set if not already in the environment (env vars take precedence)
		if os.Getenv(key) == "" {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("setenv %s: %w", key, err)
			}
		}
	}
	return scanner.Err()
}

// stripQuotes removes surrounding double or single quotes from a value.
// Only strips if both the first and last characters are matching quotes.
func stripQuotes(s string) string {
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}
