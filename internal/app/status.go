package app

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/dirwarden/internal/output"
	"github.com/blackwell-systems/dirwarden/internal/store"
	"github.com/blackwell-systems/dirwarden/internal/watcher"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show daemon status, settings and cleanup totals",
	Long: `Display the state of the background monitor and the settings it uses.

Shows:
  • Daemon running status and PID
  • Config file and the settings in effect
  • Backup directory and retention
  • Totals from the cleanup journal`,
	Example: `  dirwarden status`,
	Args:    cobra.NoArgs,
	RunE:    runStatus,
}

func init() {
	RootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	pidFile, err := getDefaultPIDFile()
	if err != nil {
		return fmt.Errorf("failed to get PID file path: %w", err)
	}
	cfgPath, err := getConfigPath()
	if err != nil {
		return fmt.Errorf("failed to get config path: %w", err)
	}
	journalPath, err := getDBPath()
	if err != nil {
		return fmt.Errorf("failed to get database path: %w", err)
	}

	running, err := watcher.IsDaemonRunning(pidFile)
	if err != nil {
		return fmt.Errorf("failed to check daemon status: %w", err)
	}

	cfg := currentConfig()
	const label = "%-14s"

	if running {
		pid, _ := watcher.DaemonPID(pidFile)
		fmt.Printf(label+"running (PID %d, since %s)\n", "Daemon:", pid, daemonSince(pidFile))
	} else {
		fmt.Printf(label+"stopped (run 'dirwarden watch <dir> --daemon')\n", "Daemon:")
	}

	if _, err := os.Stat(cfgPath); err == nil {
		fmt.Printf(label+"%s\n", "Config:", cfgPath)
	} else {
		fmt.Printf(label+"%s (not created yet, using defaults)\n", "Config:", cfgPath)
	}
	fmt.Printf(label+"%d files\n", "Max files:", cfg.MaxFiles)
	fmt.Printf(label+"%s\n", "Interval:", cfg.CheckInterval())

	if root, err := cfg.BackupRoot(); err == nil {
		fmt.Printf(label+"%s\n", "Backups:", root)
	} else {
		fmt.Printf(label+"%v\n", "Backups:", err)
	}
	if cfg.Backup.RetentionDays > 0 {
		fmt.Printf(label+"%d days (prune at %q)\n", "Retention:", cfg.Backup.RetentionDays, cfg.Backup.PruneSchedule)
	} else {
		fmt.Printf(label+"keep forever\n", "Retention:")
	}
	if cfg.Metrics.Listen != "" {
		fmt.Printf(label+"http://%s/metrics\n", "Metrics:", cfg.Metrics.Listen)
	}

	fmt.Println()
	fmt.Printf(label+"%s\n", "Journal:", journalPath)

	totals, err := journalTotals(journalPath)
	switch {
	case errors.Is(err, store.ErrNotInitialized):
		fmt.Println("No cleanup runs recorded.")
		return nil
	case err != nil:
		return err
	}
	fmt.Print(output.RenderTotals(totals))
	return nil
}

// journalTotals reads the journal without creating it when it does not exist.
func journalTotals(path string) (*store.Totals, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, store.ErrNotInitialized
	}
	db, err := store.New(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()
	return db.Totals()
}

// daemonSince returns how long ago the PID file was written.
func daemonSince(pidFile string) string {
	fi, err := os.Stat(pidFile)
	if err != nil {
		return "unknown"
	}
	return formatDuration(time.Since(fi.ModTime()))
}

// formatDuration formats a duration in human-readable form
func formatDuration(d time.Duration) string {
	if d < 5*time.Second {
		return "just now"
	}
	if d < time.Minute {
		return fmt.Sprintf("%d seconds ago", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%d minutes ago", int(d.Minutes()))
	}
	if d < 24*time.Hour {
		return fmt.Sprintf("%d hours ago", int(d.Hours()))
	}
	days := int(d.Hours() / 24)
	if days == 1 {
		return "1 day ago"
	}
	return fmt.Sprintf("%d days ago", days)
}
