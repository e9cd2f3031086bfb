package app

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/dirwarden/internal/backup"
	"github.com/blackwell-systems/dirwarden/internal/output"
)

var (
	backupsDir    string
	backupsPrune  bool
	backupsFormat string

	backupsCmd = &cobra.Command{
		Use:   "backups",
		Short: "List backed-up files",
		Long: `List the files in the backup directory, newest first.

With --prune, remove backups older than backup.retention_days right away
instead of waiting for the scheduled prune.`,
		Example: `  dirwarden backups
  dirwarden backups --backup-dir /srv/backups/uploads
  dirwarden backups --prune`,
		Args: cobra.NoArgs,
		RunE: runBackups,
	}
)

func init() {
	backupsCmd.Flags().StringVar(&backupsDir, "backup-dir", "", "backup directory (default from config: ./backup)")
	backupsCmd.Flags().BoolVar(&backupsPrune, "prune", false, "remove backups older than the retention period")
	backupsCmd.Flags().StringVar(&backupsFormat, "format", "table", "output format: table, json, yaml")

	RootCmd.AddCommand(backupsCmd)
}

func runBackups(cmd *cobra.Command, args []string) error {
	cfg := currentConfig()
	backups, err := openBackups(cfg, backupsDir)
	if err != nil {
		return err
	}

	if backupsPrune {
		if err := pruneBackups(cmd.Context(), backups, cfg.Backup.RetentionDays); err != nil {
			return err
		}
	}

	entries, err := backups.List()
	if err != nil {
		return err
	}
	return writeFormatted(os.Stdout, backupsFormat, entries, func() string {
		return fmt.Sprintf("Backup directory: %s\n\n", backups.Root()) + output.RenderBackupTable(entries)
	})
}

func pruneBackups(ctx context.Context, backups *backup.Store, retentionDays int) error {
	if retentionDays <= 0 {
		fmt.Fprintln(os.Stderr, "Retention is disabled (backup.retention_days = 0); nothing pruned.")
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	journal, err := openJournal()
	if err != nil {
		return err
	}
	defer journal.Close()

	removed, err := backup.NewPruner(backups, journal, retentionDays).Prune(ctx)
	if err != nil {
		return fmt.Errorf("failed to prune backups: %w", err)
	}
	fmt.Fprintf(os.Stderr, "✓ Pruned %d backups older than %d days\n\n", removed, retentionDays)
	return nil
}
