package app

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/blackwell-systems/dirwarden/internal/config"
	"github.com/blackwell-systems/dirwarden/internal/files"
	"github.com/blackwell-systems/dirwarden/internal/output"
	"github.com/blackwell-systems/dirwarden/internal/watcher"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Diagnose common issues and check system health",
	Long: `Runs diagnostic checks on your dirwarden setup.

Checks:
  • Config file parses and its settings are valid
  • Journal database can be created and opened
  • Backup directory is writable
  • Daemon is running
  • A scratch cleanup backs up and deletes files, and filesystem
    notifications arrive

Exits 1 when a critical check fails and 2 when only warnings were found.`,
	Args: cobra.NoArgs,
	RunE: runDoctor,
}

func init() {
	RootCmd.AddCommand(doctorCmd)
}

func runDoctor(cmd *cobra.Command, args []string) error {
	fmt.Println("Running dirwarden diagnostics...")
	fmt.Println()

	criticalIssues := 0
	warningIssues := 0

	// Check 1: config
	cfgPath, err := getConfigPath()
	if err != nil {
		fmt.Println("✗ Config path error:", err)
		criticalIssues++
	} else if _, statErr := os.Stat(cfgPath); os.IsNotExist(statErr) {
		fmt.Println("✓ No config file, using defaults:", cfgPath)
	} else if _, loadErr := config.Load(cfgPath); loadErr != nil {
		fmt.Println("⚠ Config problem:", loadErr)
		fmt.Println("  Action: fix the file or delete it to use defaults")
		warningIssues++
	} else {
		fmt.Println("✓ Config valid:", cfgPath)
	}
	cfg := currentConfig()

	// Check 2: journal
	journal, err := openJournal()
	if err != nil {
		fmt.Println("✗ Journal unavailable:", err)
		criticalIssues++
	} else {
		if err := journal.Ping(); err != nil {
			fmt.Println("✗ Journal not usable:", err)
			criticalIssues++
		} else if totals, err := journal.Totals(); err != nil {
			fmt.Println("⚠ Cannot read journal totals:", err)
			warningIssues++
		} else {
			fmt.Printf("✓ Journal ready (%d runs recorded)\n", totals.Runs)
		}
		journal.Close()
	}

	// Check 3: backup directory
	backups, err := openBackups(cfg, "")
	if err != nil {
		fmt.Println("✗", err)
		criticalIssues++
	} else if err := checkWritable(osFs, backups.Root()); err != nil {
		fmt.Println("✗ Backup directory not writable:", err)
		fmt.Println("  Files cannot be cleaned up until backups can be written")
		criticalIssues++
	} else {
		fmt.Println("✓ Backup directory writable:", backups.Root())
	}

	// Check 4: daemon (warning only)
	pidFile, err := getDefaultPIDFile()
	if err != nil {
		fmt.Println("⚠ Failed to get PID file path:", err)
		warningIssues++
	} else if running, err := watcher.IsDaemonRunning(pidFile); err != nil {
		fmt.Println("⚠ Failed to check daemon status:", err)
		warningIssues++
	} else if !running {
		fmt.Println("⚠ Daemon not running")
		fmt.Println("  Action: Run 'dirwarden watch <dir> --daemon'")
		warningIssues++
	} else if pid, err := watcher.DaemonPID(pidFile); err == nil {
		fmt.Printf("✓ Daemon running (PID %d)\n", pid)
	} else {
		fmt.Println("✓ Daemon running")
	}

	// Check 5: end-to-end self-test
	start := time.Now()
	spinner := output.NewSpinner("Running self-test...")
	spinner.Start()
	err = RunSelfTest(osFs, selfTestBase(), 5*time.Second)
	elapsed := time.Since(start).Round(time.Millisecond)
	switch {
	case err == nil:
		spinner.StopWithMessage(fmt.Sprintf("✓ Self-test: pass (%v)", elapsed))
	case errors.Is(err, errNoNotification):
		spinner.StopWithMessage(fmt.Sprintf("⚠ Self-test: cleanup works, notifications do not (%v)", elapsed))
		fmt.Printf("  %v\n", err)
		fmt.Println("  The monitor will fall back to checking on every interval")
		warningIssues++
	default:
		spinner.StopWithMessage(fmt.Sprintf("✗ Self-test: fail (%v)", elapsed))
		fmt.Printf("  %v\n", err)
		criticalIssues++
	}

	fmt.Println()
	if criticalIssues == 0 && warningIssues == 0 {
		fmt.Println("✓ All checks passed!")
		fmt.Println()
		fmt.Println("Next steps:")
		fmt.Println("  • Start monitoring: dirwarden watch <dir> --daemon")
		fmt.Println("  • Check status: dirwarden status")
		return nil
	}

	if criticalIssues > 0 {
		fmt.Printf("Found %d critical issue(s) and %d warning(s).\n", criticalIssues, warningIssues)
		return errors.New("diagnostics failed")
	}

	// Warnings only: exit 2 without main printing the error again.
	fmt.Printf("Found %d warning(s). dirwarden is functional but not fully healthy.\n", warningIssues)
	os.Exit(2)
	return nil
}

// checkWritable creates dir if needed and writes and removes a scratch file.
func checkWritable(fs afero.Fs, dir string) error {
	if err := fs.MkdirAll(dir, 0755); err != nil {
		return err
	}
	f, err := afero.TempFile(fs, dir, files.TempPrefix+"check-")
	if err != nil {
		return err
	}
	name := f.Name()
	f.Close()
	return fs.Remove(filepath.Clean(name))
}
