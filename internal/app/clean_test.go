package app

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/blackwell-systems/dirwarden/internal/backup"
	"github.com/blackwell-systems/dirwarden/internal/store"
)

// execute runs the root command with args against an isolated config and
// journal under state.
func execute(t *testing.T, state string, args ...string) error {
	t.Helper()

	RootCmd.SetOut(bytes.NewBuffer(nil))
	RootCmd.SetErr(bytes.NewBuffer(nil))
	defer RootCmd.SetOut(nil)
	defer RootCmd.SetErr(nil)

	full := append([]string{
		"--config", filepath.Join(state, "config.toml"),
		"--db", filepath.Join(state, "dirwarden.db"),
		"--log-level", "error",
	}, args...)
	RootCmd.SetArgs(full)
	return Execute()
}

func writeFiles(t *testing.T, dir string, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		name := filepath.Join(dir, fmt.Sprintf("file-%02d.dat", i))
		if err := os.WriteFile(name, []byte(fmt.Sprintf("content %d", i)), 0644); err != nil {
			t.Fatal(err)
		}
	}
}

func countFiles(t *testing.T, dir string) int {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	return len(entries)
}

func TestCleanRestoreFlow(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	state := t.TempDir()
	watched := t.TempDir()
	backups := t.TempDir()
	writeFiles(t, watched, 5)

	if err := execute(t, state, "clean", watched, "--max-files", "2", "--yes", "--backup-dir", backups); err != nil {
		t.Fatalf("clean error = %v", err)
	}

	if got := countFiles(t, watched); got != 2 {
		t.Errorf("files left = %d, want 2", got)
	}
	if got := countFiles(t, backups); got != 3 {
		t.Errorf("backups = %d, want 3", got)
	}

	journal, err := store.Open(filepath.Join(state, "dirwarden.db"))
	if err != nil {
		t.Fatal(err)
	}
	runs, err := journal.ListRuns(0)
	journal.Close()
	if err != nil {
		t.Fatalf("ListRuns() error = %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("ListRuns() = %d runs, want 1", len(runs))
	}
	if runs[0].Deleted != 3 || runs[0].Directory != watched {
		t.Errorf("run = %+v, want 3 deleted from %s", runs[0], watched)
	}

	entries, err := os.ReadDir(backups)
	if err != nil {
		t.Fatal(err)
	}
	name := entries[0].Name()

	if err := execute(t, state, "restore", name, "--backup-dir", backups); err != nil {
		t.Fatalf("restore error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(watched, name)); err != nil {
		t.Errorf("restored file missing: %v", err)
	}

	err = execute(t, state, "restore", name, "--backup-dir", backups)
	if !errors.Is(err, backup.ErrExists) {
		t.Errorf("second restore error = %v, want %v", err, backup.ErrExists)
	}
}

func TestCleanDryRun(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	state := t.TempDir()
	watched := t.TempDir()
	backups := t.TempDir()
	writeFiles(t, watched, 4)

	defer func() { cleanDryRun = false }()
	if err := execute(t, state, "clean", watched, "--max-files", "1", "--dry-run", "--backup-dir", backups); err != nil {
		t.Fatalf("clean --dry-run error = %v", err)
	}

	if got := countFiles(t, watched); got != 4 {
		t.Errorf("files left = %d, want 4", got)
	}
	if got := countFiles(t, backups); got != 0 {
		t.Errorf("backups = %d, want 0", got)
	}
}

func TestCleanRejectsZeroMaxFiles(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	state := t.TempDir()
	watched := t.TempDir()

	if err := execute(t, state, "clean", watched, "--max-files", "0", "--yes"); err == nil {
		t.Error("clean --max-files 0 expected error")
	}
}

func TestRestoreWithoutJournalNeedsTarget(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	state := t.TempDir()
	backups := t.TempDir()
	target := t.TempDir()
	if err := os.WriteFile(filepath.Join(backups, "orphan.txt"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	if err := execute(t, state, "restore", "orphan.txt", "--backup-dir", backups); err == nil {
		t.Error("restore without journal entry expected error")
	}

	defer func() { restoreTo = "" }()
	if err := execute(t, state, "restore", "orphan.txt", "--backup-dir", backups, "--to", target); err != nil {
		t.Fatalf("restore --to error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(target, "orphan.txt")); err != nil {
		t.Errorf("restored file missing: %v", err)
	}
}
