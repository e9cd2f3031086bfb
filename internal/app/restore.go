package app

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/dirwarden/internal/backup"
	"github.com/blackwell-systems/dirwarden/internal/store"
)

var (
	restoreTo        string
	restoreBackupDir string
	restoreForce     bool

	restoreCmd = &cobra.Command{
		Use:   "restore <backup-name>",
		Short: "Copy a backed-up file back into place",
		Long: `Copy a file from the backup directory back to where it was removed from.

The original directory is taken from the cleanup journal; use --to when the
backup was never journaled or should go somewhere else. An existing file is
not replaced unless --force is given. The backup itself is kept.`,
		Example: `  dirwarden restore report-2024-01-01.csv
  dirwarden restore report-2024-01-01.csv --to /tmp/recovered
  dirwarden restore report-2024-01-01.csv --force`,
		Args: cobra.ExactArgs(1),
		RunE: runRestore,
	}
)

func init() {
	restoreCmd.Flags().StringVar(&restoreTo, "to", "", "directory to restore into (default: the file's original directory)")
	restoreCmd.Flags().StringVar(&restoreBackupDir, "backup-dir", "", "backup directory (default from config: ./backup)")
	restoreCmd.Flags().BoolVar(&restoreForce, "force", false, "replace an existing file")

	RootCmd.AddCommand(restoreCmd)
}

func runRestore(cmd *cobra.Command, args []string) error {
	name := args[0]

	backups, err := openBackups(currentConfig(), restoreBackupDir)
	if err != nil {
		return err
	}

	dest := restoreTo
	if dest == "" {
		dest, err = originalDir(filepath.Join(backups.Root(), name))
		if err != nil {
			return err
		}
	}

	path, err := backups.Restore(name, dest, restoreForce)
	if errors.Is(err, backup.ErrExists) {
		return fmt.Errorf("%w (use --force to replace it)", err)
	}
	if err != nil {
		return err
	}

	fmt.Printf("✓ Restored %s\n", path)
	return nil
}

// originalDir looks up the directory the backup at backupPath was taken from.
func originalDir(backupPath string) (string, error) {
	journal, err := openJournal()
	if err != nil {
		return "", err
	}
	defer journal.Close()

	o, err := journal.LatestOutcomeForBackup(backupPath)
	if errors.Is(err, store.ErrNotFound) {
		return "", fmt.Errorf("no journal entry for %s: pass --to to choose a directory", filepath.Base(backupPath))
	}
	if err != nil {
		return "", err
	}
	return filepath.Dir(o.Path), nil
}
