package app

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/dirwarden/internal/config"
	"github.com/blackwell-systems/dirwarden/internal/logger"
)

var (
	dbPath     string
	configPath string
	logLevel   string
	logFormat  string

	// appConfig is loaded once per invocation by the root pre-run hook.
	appConfig *config.Config
	logCloser io.Closer

	// RootCmd is the root command for dirwarden
	RootCmd = &cobra.Command{
		Use:   "dirwarden",
		Short: "Keep a directory under a file-count limit, with backups",
		Long: `dirwarden watches a directory and enforces a retention limit: when it
holds more than max_files files, the oldest are copied to a backup directory
and then removed. It also reports byte-identical duplicates and shows host
resource usage while it runs.

A file is never deleted unless its backup succeeded. Every cleanup is
journaled so it can be reviewed with 'dirwarden history' and undone with
'dirwarden restore'.

Examples:
  # Watch a directory in the foreground (Ctrl+C to stop)
  dirwarden watch /var/tmp/uploads

  # Keep at most 50 files, checking every 30 seconds, in the background
  dirwarden watch /var/tmp/uploads --max-files 50 --interval 30 --daemon

  # Preview what a cleanup would remove
  dirwarden clean /var/tmp/uploads --dry-run

  # Review past cleanups and restore a file
  dirwarden history
  dirwarden restore report-2024-01-01.csv`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: setup,
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if logCloser != nil {
				logCloser.Close()
			}
		},
	}
)

func init() {
	RootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "journal database path (default: ~/.dirwarden/dirwarden.db)")
	RootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file path (default: $XDG_CONFIG_HOME/dirwarden/config.toml)")
	RootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error (overrides config)")
	RootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format: text, json (overrides config)")

	RootCmd.SuggestionsMinimumDistance = 2
}

// Execute runs the root command
func Execute() error {
	return RootCmd.Execute()
}

// setup loads the config and installs the process-wide logger. A broken
// config file is logged and replaced by defaults; it never stops a command.
func setup(cmd *cobra.Command, args []string) error {
	path, err := getConfigPath()
	if err != nil {
		return fmt.Errorf("failed to get config path: %w", err)
	}

	cfg, loadErr := config.Load(path)
	appConfig = cfg

	lc := logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	}
	if logLevel != "" {
		lc.Level = logLevel
	}
	if logFormat != "" {
		lc.Format = logFormat
	}

	l, closer, err := logger.New(lc)
	if err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}
	slog.SetDefault(l)
	logCloser = closer

	if loadErr != nil {
		slog.Warn("config problem, using defaults where needed", "path", path, "error", loadErr)
	}
	return nil
}

// getConfigPath returns the config path, using the flag value or default
func getConfigPath() (string, error) {
	if configPath != "" {
		return configPath, nil
	}
	return config.DefaultPath()
}

// getStateDir returns ~/.dirwarden, creating it if needed.
func getStateDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	dir := filepath.Join(home, ".dirwarden")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create dirwarden directory: %w", err)
	}
	return dir, nil
}

// getDBPath returns the database path, using the flag value or default
func getDBPath() (string, error) {
	if dbPath != "" {
		return dbPath, nil
	}
	dir, err := getStateDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "dirwarden.db"), nil
}

// getDefaultPIDFile returns the default PID file path
func getDefaultPIDFile() (string, error) {
	dir, err := getStateDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "watch.pid"), nil
}

// getDefaultLogFile returns the default log file path
func getDefaultLogFile() (string, error) {
	dir, err := getStateDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "watch.log"), nil
}

// currentConfig returns the config loaded by setup, or defaults when a
// command runs without the root pre-run hook (tests).
func currentConfig() *config.Config {
	if appConfig == nil {
		return config.Default()
	}
	return appConfig
}
