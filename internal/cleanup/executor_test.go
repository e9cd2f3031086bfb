package cleanup

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/spf13/afero"

	"github.com/blackwell-systems/dirwarden/internal/backup"
	"github.com/blackwell-systems/dirwarden/internal/files"
	"github.com/blackwell-systems/dirwarden/internal/report"
	"github.com/blackwell-systems/dirwarden/internal/scanner"
)

var base = time.Date(2024, 2, 1, 8, 0, 0, 0, time.UTC)

// setupDir writes n files /data/fNN with increasing creation times and sizes
// NN+1 bytes, and returns their inventory.
func setupDir(t *testing.T, fs afero.Fs, n int) files.Inventory {
	t.Helper()
	for i := 0; i < n; i++ {
		path := fmt.Sprintf("/data/f%02d", i)
		content := make([]byte, i+1)
		for j := range content {
			content[j] = byte('a' + i)
		}
		if err := afero.WriteFile(fs, path, content, 0o644); err != nil {
			t.Fatal(err)
		}
		ts := base.Add(time.Duration(i) * time.Minute)
		if err := fs.Chtimes(path, ts, ts); err != nil {
			t.Fatal(err)
		}
	}
	inv, err := scanner.New(fs, nil).Scan("/data")
	if err != nil {
		t.Fatal(err)
	}
	return inv
}

// failingBackups fails for the listed paths and delegates to a real store
// for everything else.
type failingBackups struct {
	store *backup.Store
	fail  map[string]bool
}

func (b *failingBackups) Store(rec files.Record) (*backup.Result, error) {
	if b.fail[rec.Path] {
		return nil, &backup.Error{Path: rec.Path, Err: errors.New("no space left on device")}
	}
	return b.store.Store(rec)
}

// vanishingBackups backs up the file and then removes the source, simulating
// an external delete between backup and delete.
type vanishingBackups struct {
	fs    afero.Fs
	store *backup.Store
}

func (b *vanishingBackups) Store(rec files.Record) (*backup.Result, error) {
	res, err := b.store.Store(rec)
	if err != nil {
		return nil, err
	}
	b.fs.Remove(rec.Path)
	return res, nil
}

func newStore(t *testing.T, fs afero.Fs) *backup.Store {
	t.Helper()
	s := backup.New(fs, "/backup")
	if err := s.Ensure(); err != nil {
		t.Fatal(err)
	}
	return s
}

func remaining(t *testing.T, fs afero.Fs) int {
	t.Helper()
	inv, err := scanner.New(fs, nil).Scan("/data")
	if err != nil {
		t.Fatal(err)
	}
	return len(inv)
}

func TestRunDeletesOldestExcess(t *testing.T) {
	fs := afero.NewMemMapFs()
	inv := setupDir(t, fs, 12)
	var rec report.Recorder
	e := New(fs, newStore(t, fs), &rec)

	rep := e.Run(context.Background(), inv, 10)

	if rep.Excess != 2 || rep.Deleted() != 2 {
		t.Fatalf("Run() excess=%d deleted=%d, want 2 and 2", rep.Excess, rep.Deleted())
	}
	if rep.Outcomes[0].Record.Path != "/data/f00" || rep.Outcomes[1].Record.Path != "/data/f01" {
		t.Errorf("Run() processed %s, %s; want the two oldest", rep.Outcomes[0].Record.Path, rep.Outcomes[1].Record.Path)
	}

	stats := e.Stats()
	if stats.FilesDeleted != 2 {
		t.Errorf("FilesDeleted = %d, want 2", stats.FilesDeleted)
	}
	if stats.TotalBytesCleaned != 1+2 {
		t.Errorf("TotalBytesCleaned = %d, want 3", stats.TotalBytesCleaned)
	}
	if stats.LastCleanupAt == nil {
		t.Error("LastCleanupAt should be set")
	}
	if rep.BytesCleaned() != 3 {
		t.Errorf("BytesCleaned() = %d, want 3", rep.BytesCleaned())
	}

	if got := remaining(t, fs); got != 10 {
		t.Errorf("remaining files = %d, want 10", got)
	}
	if rec.Count(report.KindBackupOK) != 2 || rec.Count(report.KindDeleted) != 2 {
		t.Errorf("events: backup_ok=%d deleted=%d, want 2 and 2",
			rec.Count(report.KindBackupOK), rec.Count(report.KindDeleted))
	}
}

func TestRunBackupMatchesDeletedContent(t *testing.T) {
	fs := afero.NewMemMapFs()
	inv := setupDir(t, fs, 3)
	want, _ := afero.ReadFile(fs, "/data/f00")

	e := New(fs, newStore(t, fs), nil)
	rep := e.Run(context.Background(), inv, 2)

	if rep.Deleted() != 1 {
		t.Fatalf("Deleted() = %d, want 1", rep.Deleted())
	}
	got, err := afero.ReadFile(fs, rep.Outcomes[0].BackupPath)
	if err != nil {
		t.Fatalf("backup missing: %v", err)
	}
	if string(got) != string(want) {
		t.Errorf("backup content = %q, want %q", got, want)
	}
}

func TestRunWithinCapacity(t *testing.T) {
	fs := afero.NewMemMapFs()
	inv := setupDir(t, fs, 5)
	var rec report.Recorder
	e := New(fs, newStore(t, fs), &rec)

	for _, max := range []uint32{5, 10} {
		rep := e.Run(context.Background(), inv, max)
		if rep.Excess != 0 || len(rep.Outcomes) != 0 {
			t.Errorf("Run(max=%d) excess=%d outcomes=%d, want none", max, rep.Excess, len(rep.Outcomes))
		}
	}
	if e.Stats().FilesDeleted != 0 {
		t.Error("no file should be deleted within capacity")
	}
	if len(rec.Events()) != 0 {
		t.Errorf("got %d events, want 0", len(rec.Events()))
	}
}

func TestRunBackupFailureKeepsFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	inv := setupDir(t, fs, 5)
	var rec report.Recorder
	backups := &failingBackups{store: newStore(t, fs), fail: map[string]bool{"/data/f01": true}}
	e := New(fs, backups, &rec)

	rep := e.Run(context.Background(), inv, 2)

	if len(rep.Outcomes) != 3 {
		t.Fatalf("Run() outcomes = %d, want 3 (failure must not stop the run)", len(rep.Outcomes))
	}
	if rep.Outcomes[1].Status != StatusBackupFailed {
		t.Errorf("f01 status = %s, want %s", rep.Outcomes[1].Status, StatusBackupFailed)
	}
	if !errors.Is(rep.Outcomes[1].Err, backup.ErrBackupFailed) {
		t.Errorf("f01 err = %v, want ErrBackupFailed", rep.Outcomes[1].Err)
	}
	if _, err := fs.Stat("/data/f01"); err != nil {
		t.Error("file with failed backup must not be deleted")
	}
	if rep.Deleted() != 2 || e.Stats().FilesDeleted != 2 {
		t.Errorf("deleted = %d, stats = %d; want 2 and 2", rep.Deleted(), e.Stats().FilesDeleted)
	}
	if rec.Count(report.KindBackupFailed) != 1 {
		t.Errorf("BackupFailed events = %d, want 1", rec.Count(report.KindBackupFailed))
	}
	if len(rep.Failed()) != 1 {
		t.Errorf("Failed() = %d, want 1", len(rep.Failed()))
	}
}

func TestRunFileVanishesBeforeBackup(t *testing.T) {
	fs := afero.NewMemMapFs()
	inv := setupDir(t, fs, 3)
	if err := fs.Remove("/data/f00"); err != nil {
		t.Fatal(err)
	}
	var rec report.Recorder
	e := New(fs, newStore(t, fs), &rec)

	rep := e.Run(context.Background(), inv, 1)

	if rep.Outcomes[0].Status != StatusBackupFailed {
		t.Errorf("vanished file status = %s, want %s", rep.Outcomes[0].Status, StatusBackupFailed)
	}
	if rep.Outcomes[1].Status != StatusDeleted {
		t.Errorf("next file status = %s, want %s", rep.Outcomes[1].Status, StatusDeleted)
	}
	if e.Stats().FilesDeleted != 1 {
		t.Errorf("FilesDeleted = %d, want 1", e.Stats().FilesDeleted)
	}
}

func TestRunFileVanishesBeforeDelete(t *testing.T) {
	fs := afero.NewMemMapFs()
	inv := setupDir(t, fs, 3)
	var rec report.Recorder
	e := New(fs, &vanishingBackups{fs: fs, store: newStore(t, fs)}, &rec)

	rep := e.Run(context.Background(), inv, 1)

	for _, o := range rep.Outcomes {
		if o.Status != StatusDeleteFailed {
			t.Errorf("%s status = %s, want %s", o.Record.Path, o.Status, StatusDeleteFailed)
		}
		if !errors.Is(o.Err, ErrDeleteFailed) {
			t.Errorf("%s err = %v, want ErrDeleteFailed", o.Record.Path, o.Err)
		}
		if o.BackupPath == "" {
			t.Errorf("%s should record its backup path", o.Record.Path)
		}
	}
	if e.Stats().FilesDeleted != 0 || e.Stats().LastCleanupAt != nil {
		t.Errorf("stats changed after failed deletes: %+v", e.Stats())
	}
	if rec.Count(report.KindDeleteFailed) != 2 {
		t.Errorf("DeleteFailed events = %d, want 2", rec.Count(report.KindDeleteFailed))
	}
}

func TestRunStaleInventoryTwice(t *testing.T) {
	fs := afero.NewMemMapFs()
	inv := setupDir(t, fs, 4)
	e := New(fs, newStore(t, fs), nil)

	first := e.Run(context.Background(), inv, 2)
	second := e.Run(context.Background(), inv, 2)

	if first.Deleted() != 2 {
		t.Errorf("first run deleted %d, want 2", first.Deleted())
	}
	if second.Deleted() != 0 || len(second.Failed()) != 2 {
		t.Errorf("second run deleted=%d failed=%d, want 0 and 2", second.Deleted(), len(second.Failed()))
	}
	if e.Stats().FilesDeleted != 2 {
		t.Errorf("FilesDeleted = %d, want 2", e.Stats().FilesDeleted)
	}
}

func TestRunCancelledBetweenFiles(t *testing.T) {
	fs := afero.NewMemMapFs()
	inv := setupDir(t, fs, 5)

	ctx, cancel := context.WithCancel(context.Background())
	var rec report.Recorder
	// Cancel as soon as the first file is deleted.
	r := report.ReporterFunc(func(ev report.Event) {
		rec.Report(ev)
		if ev.Kind() == report.KindDeleted {
			cancel()
		}
	})
	e := New(fs, newStore(t, fs), r)

	rep := e.Run(ctx, inv, 1)

	if !rep.Interrupted {
		t.Error("report should be marked interrupted")
	}
	if len(rep.Outcomes) != 1 || rep.Outcomes[0].Status != StatusDeleted {
		t.Errorf("outcomes = %+v, want exactly one completed deletion", rep.Outcomes)
	}
	if rep.Excess != 4 {
		t.Errorf("Excess = %d, want 4", rep.Excess)
	}
}

func TestRunUsesClock(t *testing.T) {
	fs := afero.NewMemMapFs()
	inv := setupDir(t, fs, 2)
	fixed := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	e := New(fs, newStore(t, fs), nil, WithClock(func() time.Time { return fixed }))

	rep := e.Run(context.Background(), inv, 1)

	if !rep.StartedAt.Equal(fixed) || !rep.FinishedAt.Equal(fixed) {
		t.Errorf("report times = %v..%v, want %v", rep.StartedAt, rep.FinishedAt, fixed)
	}
	if got := e.Stats().LastCleanupAt; got == nil || !got.Equal(fixed) {
		t.Errorf("LastCleanupAt = %v, want %v", got, fixed)
	}
	if rep.Directory != "/data" {
		t.Errorf("Directory = %q, want /data", rep.Directory)
	}
}

func TestPlanDoesNotTouchFiles(t *testing.T) {
	fs := afero.NewMemMapFs()
	inv := setupDir(t, fs, 4)
	e := New(fs, newStore(t, fs), nil)

	d := e.Plan(inv, 1)
	if len(d.Excess) != 3 {
		t.Errorf("Plan() excess = %d, want 3", len(d.Excess))
	}
	if got := remaining(t, fs); got != 4 {
		t.Errorf("Plan() removed files: %d remain", got)
	}
}

