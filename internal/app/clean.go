package app

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/dirwarden/internal/cleanup"
	"github.com/blackwell-systems/dirwarden/internal/output"
	"github.com/blackwell-systems/dirwarden/internal/report"
	"github.com/blackwell-systems/dirwarden/internal/scanner"
)

var (
	cleanMaxFiles  uint32
	cleanBackupDir string
	cleanDryRun    bool
	cleanYes       bool

	cleanCmd = &cobra.Command{
		Use:   "clean <directory>",
		Short: "Run one cleanup pass on a directory",
		Long: `Run a single cleanup pass: if the directory holds more than max_files
files, back up the oldest excess files and delete them.

A file is deleted only after its backup succeeded. The run is journaled and
can be reviewed with 'dirwarden history'.`,
		Example: `  # Preview what would be removed
  dirwarden clean /var/tmp/uploads --dry-run

  # Keep the 20 newest files without prompting
  dirwarden clean /var/tmp/uploads --max-files 20 --yes`,
		Args: cobra.ExactArgs(1),
		RunE: runClean,
	}
)

func init() {
	cleanCmd.Flags().Uint32Var(&cleanMaxFiles, "max-files", 0, "maximum number of files to keep (default from config)")
	cleanCmd.Flags().StringVar(&cleanBackupDir, "backup-dir", "", "backup directory (default from config: ./backup)")
	cleanCmd.Flags().BoolVar(&cleanDryRun, "dry-run", false, "show what would be removed without removing")
	cleanCmd.Flags().BoolVar(&cleanYes, "yes", false, "skip confirmation prompt")

	RootCmd.AddCommand(cleanCmd)
}

func runClean(cmd *cobra.Command, args []string) error {
	dir, err := resolveDir(args[0])
	if err != nil {
		return err
	}

	cfg := currentConfig()
	maxFiles := cfg.MaxFiles
	if cmd.Flags().Changed("max-files") {
		if cleanMaxFiles < 1 {
			return errors.New("--max-files must be >= 1")
		}
		maxFiles = cleanMaxFiles
	}

	backups, err := openBackups(cfg, cleanBackupDir)
	if err != nil {
		return err
	}

	warnings := output.NewConsole(os.Stderr)
	inv, err := scanner.New(osFs, warnings).Scan(dir)
	if err != nil {
		return err
	}

	plan := cleanup.New(osFs, backups, nil).Plan(inv, maxFiles)
	if len(plan.Excess) == 0 {
		fmt.Printf("Nothing to clean up: %d files, limit %d.\n", len(inv), maxFiles)
		return nil
	}

	fmt.Printf("%d files in %s, limit %d. Files to back up and delete:\n\n", len(inv), dir, maxFiles)
	fmt.Print(output.RenderExcessTable(plan.Excess))
	fmt.Printf("\nBackup directory: %s\n\n", backups.Root())

	if cleanDryRun {
		fmt.Println("Dry-run mode: no files will be changed.")
		return nil
	}

	if !cleanYes && !confirmCleanup(len(plan.Excess)) {
		fmt.Println("Cleanup cancelled.")
		return nil
	}

	if err := backups.Ensure(); err != nil {
		return err
	}

	progress := output.NewProgress(len(plan.Excess), "Cleaning up")
	reporter := report.Multi(progress, report.NewLogReporter(nil))
	rep := cleanup.New(osFs, backups, reporter).Run(context.Background(), inv, maxFiles)
	rep.Directory = dir
	progress.Finish()

	fmt.Printf("\n✓ Deleted %d files, freed %s\n", rep.Deleted(), humanBytes(rep.BytesCleaned()))

	if failed := rep.Failed(); len(failed) > 0 {
		fmt.Printf("\n⚠️  %d failures (files kept):\n", len(failed))
		for _, o := range failed {
			fmt.Printf("  - %s: %v\n", o.Record.Path, o.Err)
		}
	}

	journal, err := openJournal()
	if err != nil {
		fmt.Fprintf(os.Stderr, "\nWarning: cleanup not journaled: %v\n", err)
	} else {
		defer journal.Close()
		if err := journal.SaveReport(rep); err != nil {
			fmt.Fprintf(os.Stderr, "\nWarning: cleanup not journaled: %v\n", err)
		} else {
			fmt.Printf("\nRun %s recorded. Review with: dirwarden history %s\n", rep.RunID, shortRunID(rep.RunID.String()))
		}
	}

	if len(rep.Failed()) > 0 {
		return fmt.Errorf("%d of %d files could not be cleaned up", len(rep.Failed()), rep.Excess)
	}
	return nil
}

// confirmCleanup prompts the user to confirm the cleanup.
func confirmCleanup(count int) bool {
	reader := bufio.NewReader(os.Stdin)

	fmt.Printf("Back up and delete %d files? [y/N]: ", count)

	response, err := reader.ReadString('\n')
	if err != nil {
		return false
	}

	response = strings.TrimSpace(strings.ToLower(response))
	return response == "y" || response == "yes"
}
