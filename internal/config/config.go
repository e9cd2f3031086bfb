// Package config provides configuration loading and persistence for dirwarden.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Defaults.
const (
	DefaultMaxFiles             = 10
	DefaultCheckIntervalSeconds = 5
	DefaultBackupDir            = "backup"
	DefaultPruneSchedule        = "0 3 * * *"
	DefaultLogLevel             = "info"
	DefaultLogFormat            = "text"
	DefaultLogOutput            = "stderr"
)

// Config is the persisted monitor configuration.
type Config struct {
	MaxFiles             uint32        `toml:"max_files"`
	CheckIntervalSeconds uint32        `toml:"check_interval_seconds"`
	Backup               BackupConfig  `toml:"backup"`
	Logging              LoggingConfig `toml:"logging"`
	Metrics              MetricsConfig `toml:"metrics"`
}

// BackupConfig controls where backups go and how long they are kept.
type BackupConfig struct {
	// Dir is the backup root. A relative path is resolved against the
	// working directory.
	Dir string `toml:"dir"`
	// RetentionDays removes backups older than this many days. 0 keeps them forever.
	RetentionDays int `toml:"retention_days"`
	// PruneSchedule is a five-field cron expression.
	PruneSchedule string `toml:"prune_schedule"`
}

// LoggingConfig selects the log level, format and destination.
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
	Output string `toml:"output"`
}

// MetricsConfig enables the Prometheus endpoint when Listen is set.
type MetricsConfig struct {
	Listen string `toml:"listen"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		MaxFiles:             DefaultMaxFiles,
		CheckIntervalSeconds: DefaultCheckIntervalSeconds,
		Backup: BackupConfig{
			Dir:           DefaultBackupDir,
			PruneSchedule: DefaultPruneSchedule,
		},
		Logging: LoggingConfig{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
			Output: DefaultLogOutput,
		},
	}
}

// CheckInterval returns the tick period. An unset interval uses the default.
func (c *Config) CheckInterval() time.Duration {
	if c.CheckIntervalSeconds == 0 {
		return DefaultCheckIntervalSeconds * time.Second
	}
	return time.Duration(c.CheckIntervalSeconds) * time.Second
}

// BackupRoot returns the backup directory as an absolute path.
func (c *Config) BackupRoot() (string, error) {
	root, err := filepath.Abs(c.Backup.Dir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve backup directory %s: %w", c.Backup.Dir, err)
	}
	return root, nil
}

// Validate reports every invalid setting.
func (c *Config) Validate() []error {
	var errs []error

	if c.MaxFiles < 1 {
		errs = append(errs, fmt.Errorf("max_files must be >= 1"))
	}
	if c.CheckIntervalSeconds < 1 {
		errs = append(errs, fmt.Errorf("check_interval_seconds must be >= 1"))
	}
	if strings.TrimSpace(c.Backup.Dir) == "" {
		errs = append(errs, fmt.Errorf("backup.dir is required"))
	}
	if c.Backup.RetentionDays < 0 {
		errs = append(errs, fmt.Errorf("backup.retention_days must be >= 0 (got %d)", c.Backup.RetentionDays))
	}
	if c.Backup.RetentionDays > 0 {
		if err := validateSchedule(c.Backup.PruneSchedule); err != nil {
			errs = append(errs, fmt.Errorf("backup.prune_schedule: %w", err))
		}
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, fmt.Errorf("invalid logging.level: %s (expected: debug, info, warn, error)", c.Logging.Level))
	}
	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		errs = append(errs, fmt.Errorf("invalid logging.format: %s (expected: text, json)", c.Logging.Format))
	}
	if strings.TrimSpace(c.Logging.Output) == "" {
		errs = append(errs, fmt.Errorf("logging.output is required"))
	}

	return errs
}

// sanitize replaces every invalid setting with its default.
func (c *Config) sanitize() {
	d := Default()
	if c.MaxFiles < 1 {
		c.MaxFiles = d.MaxFiles
	}
	if c.CheckIntervalSeconds < 1 {
		c.CheckIntervalSeconds = d.CheckIntervalSeconds
	}
	if strings.TrimSpace(c.Backup.Dir) == "" {
		c.Backup.Dir = d.Backup.Dir
	}
	if c.Backup.RetentionDays < 0 {
		c.Backup.RetentionDays = 0
	}
	if c.Backup.RetentionDays > 0 && validateSchedule(c.Backup.PruneSchedule) != nil {
		c.Backup.PruneSchedule = d.Backup.PruneSchedule
	}
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
		c.Logging.Level = strings.ToLower(c.Logging.Level)
	default:
		c.Logging.Level = d.Logging.Level
	}
	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
		c.Logging.Format = strings.ToLower(c.Logging.Format)
	default:
		c.Logging.Format = d.Logging.Format
	}
	if strings.TrimSpace(c.Logging.Output) == "" {
		c.Logging.Output = d.Logging.Output
	}
}

// Dir returns the dirwarden config directory, respecting XDG_CONFIG_HOME.
// Defaults to ~/.config/dirwarden if XDG_CONFIG_HOME is not set.
func Dir() (string, error) {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "dirwarden"), nil
}

// DefaultPath returns the default config file location.
func DefaultPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}
