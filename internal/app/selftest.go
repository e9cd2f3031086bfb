package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/afero"

	"github.com/blackwell-systems/dirwarden/internal/backup"
	"github.com/blackwell-systems/dirwarden/internal/cleanup"
	"github.com/blackwell-systems/dirwarden/internal/report"
	"github.com/blackwell-systems/dirwarden/internal/scanner"
	"github.com/blackwell-systems/dirwarden/internal/watcher"
)

// selfTestFiles is how many files the self-test creates; it keeps one.
const selfTestFiles = 3

// errNoNotification marks a self-test whose cleanup worked but whose
// filesystem notification never arrived.
var errNoNotification = errors.New("filesystem notifications not working")

// RunSelfTest exercises the whole cleanup path in a scratch directory under
// base: it watches the directory, creates files, waits up to maxWait for a
// notification, then backs up and deletes the excess. It returns an error
// describing the first step that did not behave. When only the notification
// step failed the error wraps errNoNotification.
func RunSelfTest(fs afero.Fs, base string, maxWait time.Duration) error {
	work, err := afero.TempDir(fs, base, "dirwarden-selftest-")
	if err != nil {
		return fmt.Errorf("cannot create scratch directory: %w", err)
	}
	defer fs.RemoveAll(work)

	watched := filepath.Join(work, "watched")
	backupRoot := filepath.Join(work, "backup")
	if err := fs.MkdirAll(watched, 0755); err != nil {
		return fmt.Errorf("cannot create scratch directory: %w", err)
	}

	bridge, bridgeErr := watcher.NewBridge(watched, watcher.DefaultBuffer)
	if bridgeErr == nil {
		defer bridge.Stop()
	}

	for i := 0; i < selfTestFiles; i++ {
		name := filepath.Join(watched, fmt.Sprintf("file-%d.txt", i))
		if err := afero.WriteFile(fs, name, []byte(fmt.Sprintf("self-test %d\n", i)), 0644); err != nil {
			return fmt.Errorf("cannot write test file: %w", err)
		}
	}

	notify := bridgeErr == nil && waitForCreate(bridge, maxWait)

	var rec report.Recorder
	inv, err := scanner.New(fs, &rec).Scan(watched)
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}
	if len(inv) != selfTestFiles {
		return fmt.Errorf("scan found %d files, want %d", len(inv), selfTestFiles)
	}

	backups := backup.New(fs, backupRoot)
	if err := backups.Ensure(); err != nil {
		return err
	}
	rep := cleanup.New(fs, backups, &rec).Run(context.Background(), inv, 1)
	if failed := rep.Failed(); len(failed) > 0 {
		return fmt.Errorf("cleanup failed for %s: %w", failed[0].Record.Path, failed[0].Err)
	}
	if rep.Deleted() != selfTestFiles-1 {
		return fmt.Errorf("cleanup deleted %d files, want %d", rep.Deleted(), selfTestFiles-1)
	}

	entries, err := backups.List()
	if err != nil {
		return err
	}
	if len(entries) != selfTestFiles-1 {
		return fmt.Errorf("found %d backups, want %d", len(entries), selfTestFiles-1)
	}

	left, err := afero.ReadDir(fs, watched)
	if err != nil {
		return fmt.Errorf("cannot list scratch directory: %w", err)
	}
	if len(left) != 1 {
		return fmt.Errorf("%d files left after cleanup, want 1", len(left))
	}

	if bridgeErr != nil {
		return fmt.Errorf("%w: %v", errNoNotification, bridgeErr)
	}
	if !notify {
		return fmt.Errorf("%w: no event within %v", errNoNotification, maxWait)
	}
	return nil
}

func waitForCreate(b *watcher.Bridge, maxWait time.Duration) bool {
	timeout := time.After(maxWait)
	for {
		select {
		case ev, ok := <-b.Events():
			if !ok {
				return false
			}
			if ev.Op == watcher.Created {
				return true
			}
		case <-timeout:
			return false
		}
	}
}

// selfTestBase returns the directory the doctor self-test runs in.
func selfTestBase() string {
	if dir, err := getStateDir(); err == nil {
		return dir
	}
	return os.TempDir()
}
