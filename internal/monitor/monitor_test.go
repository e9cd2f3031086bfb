package monitor

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/spf13/afero"

	"github.com/blackwell-systems/dirwarden/internal/backup"
	"github.com/blackwell-systems/dirwarden/internal/cleanup"
	"github.com/blackwell-systems/dirwarden/internal/config"
	"github.com/blackwell-systems/dirwarden/internal/report"
	"github.com/blackwell-systems/dirwarden/internal/scanner"
	"github.com/blackwell-systems/dirwarden/internal/watcher"
)

const (
	watchDir   = "/watch"
	backupRoot = "/backup"
)

type memConfigStore struct {
	mu      sync.Mutex
	cfg     *config.Config
	loadErr error
	saveErr error
	saved   []*config.Config
}

func (s *memConfigStore) Load() (*config.Config, error) {
	return s.cfg, s.loadErr
}

func (s *memConfigStore) Save(cfg *config.Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved = append(s.saved, cfg)
	return s.saveErr
}

func (s *memConfigStore) saves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.saved)
}

type memJournal struct {
	mu      sync.Mutex
	reports []*cleanup.Report
}

func (j *memJournal) SaveReport(rep *cleanup.Report) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.reports = append(j.reports, rep)
	return nil
}

type fakeSource struct {
	events  chan watcher.Event
	once    sync.Once
	stopped chan struct{}
}

func newFakeSource() *fakeSource {
	return &fakeSource{events: make(chan watcher.Event, 8), stopped: make(chan struct{})}
}

func (f *fakeSource) Events() <-chan watcher.Event { return f.events }

func (f *fakeSource) Stop() error {
	f.once.Do(func() {
		close(f.stopped)
		close(f.events)
	})
	return nil
}

type failingRoot struct{}

func (failingRoot) Ensure() error { return errors.New("read-only filesystem") }

type harness struct {
	fs      afero.Fs
	rec     *report.Recorder
	cycles  chan struct{}
	journal *memJournal
	configs *memConfigStore
	deps    Deps
}

func newHarness(t *testing.T, n int) *harness {
	t.Helper()

	fs := afero.NewMemMapFs()
	if err := fs.MkdirAll(watchDir, 0o755); err != nil {
		t.Fatal(err)
	}
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		writeFile(t, fs, fmt.Sprintf("f%02d.txt", i), fmt.Sprintf("content %d", i), base.Add(time.Duration(i)*time.Minute))
	}

	h := &harness{
		fs:      fs,
		rec:     &report.Recorder{},
		cycles:  make(chan struct{}, 16),
		journal: &memJournal{},
		configs: &memConfigStore{},
	}
	signal := report.ReporterFunc(func(ev report.Event) {
		if ev.Kind() == report.KindStatsSnapshot {
			select {
			case h.cycles <- struct{}{}:
			default:
			}
		}
	})
	r := report.Multi(h.rec, signal)

	cfg := config.Default()
	cfg.CheckIntervalSeconds = 3600
	store := backup.New(fs, backupRoot)

	h.deps = Deps{
		Dir:          watchDir,
		Config:       cfg,
		ConfigStore:  h.configs,
		FS:           fs,
		Reporter:     r,
		Executor:     cleanup.New(fs, store, r),
		Backups:      store,
		Journal:      h.journal,
		RefreshDelay: 10 * time.Millisecond,
	}
	return h
}

func writeFile(t *testing.T, fs afero.Fs, name, content string, created time.Time) {
	t.Helper()
	path := filepath.Join(watchDir, name)
	if err := afero.WriteFile(fs, path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := fs.Chtimes(path, created, created); err != nil {
		t.Fatal(err)
	}
}

func (h *harness) start(t *testing.T) (*Loop, context.CancelFunc, <-chan error) {
	t.Helper()
	loop, err := New(h.deps)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- loop.Run(ctx) }()
	t.Cleanup(cancel)
	return loop, cancel, done
}

func (h *harness) waitCycle(t *testing.T) {
	t.Helper()
	select {
	case <-h.cycles:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for a monitor cycle")
	}
}

func waitDone(t *testing.T, done <-chan error) error {
	t.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for Run to return")
		return nil
	}
}

func countFiles(t *testing.T, fs afero.Fs, dir string) int {
	t.Helper()
	entries, err := afero.ReadDir(fs, dir)
	if err != nil {
		t.Fatal(err)
	}
	return len(entries)
}

func TestRunCleansUpExcessAndStops(t *testing.T) {
	h := newHarness(t, 12)
	loop, cancel, done := h.start(t)

	h.waitCycle(t)
	if got := loop.State(); got != StateRunning {
		t.Errorf("State() = %v, want %v", got, StateRunning)
	}

	cancel()
	if err := waitDone(t, done); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if got := loop.State(); got != StateStopped {
		t.Errorf("State() = %v, want %v", got, StateStopped)
	}
	if got := countFiles(t, h.fs, watchDir); got != 10 {
		t.Errorf("remaining files = %d, want 10", got)
	}
	if got := countFiles(t, h.fs, backupRoot); got != 2 {
		t.Errorf("backups = %d, want 2", got)
	}
	if got := h.rec.Count(report.KindDeleted); got != 2 {
		t.Errorf("Deleted events = %d, want 2", got)
	}
	if got := h.rec.Count(report.KindStatus); got < 1 {
		t.Errorf("Status events = %d, want at least 1", got)
	}

	h.journal.mu.Lock()
	defer h.journal.mu.Unlock()
	if len(h.journal.reports) != 1 {
		t.Fatalf("journaled reports = %d, want 1", len(h.journal.reports))
	}
	if got := h.journal.reports[0].Directory; got != watchDir {
		t.Errorf("report Directory = %q, want %q", got, watchDir)
	}
	if got := h.configs.saves(); got != 1 {
		t.Errorf("config saves = %d, want 1", got)
	}
}

// lockCheckingJournal records whether lock was held when a report was saved.
type lockCheckingJournal struct {
	lock *sync.Mutex
	held []bool
}

func (j *lockCheckingJournal) SaveReport(rep *cleanup.Report) error {
	free := j.lock.TryLock()
	if free {
		j.lock.Unlock()
	}
	j.held = append(j.held, !free)
	return nil
}

func TestRunHoldsCleanupLockUntilJournaled(t *testing.T) {
	h := newHarness(t, 12)
	var mu sync.Mutex
	journal := &lockCheckingJournal{lock: &mu}
	h.deps.Journal = journal
	h.deps.CleanupLock = &mu

	_, cancel, done := h.start(t)
	h.waitCycle(t)
	cancel()
	if err := waitDone(t, done); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(journal.held) != 1 || !journal.held[0] {
		t.Errorf("lock held during SaveReport = %v, want [true]", journal.held)
	}
	if !mu.TryLock() {
		t.Fatal("cleanup lock still held after Run returned")
	}
	mu.Unlock()
}

func TestRunWithinCapacityJournalsNothing(t *testing.T) {
	h := newHarness(t, 3)
	_, cancel, done := h.start(t)

	h.waitCycle(t)
	cancel()
	waitDone(t, done)

	if got := countFiles(t, h.fs, watchDir); got != 3 {
		t.Errorf("remaining files = %d, want 3", got)
	}
	if len(h.journal.reports) != 0 {
		t.Errorf("journaled reports = %d, want 0", len(h.journal.reports))
	}
}

func TestRunReportsDuplicates(t *testing.T) {
	h := newHarness(t, 0)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	writeFile(t, h.fs, "a.txt", "same", base)
	writeFile(t, h.fs, "b.txt", "same", base.Add(time.Minute))
	writeFile(t, h.fs, "c.txt", "other", base.Add(2*time.Minute))

	_, cancel, done := h.start(t)
	h.waitCycle(t)
	cancel()
	waitDone(t, done)

	dups := h.rec.OfKind(report.KindDuplicateFound)
	if len(dups) != 1 {
		t.Fatalf("DuplicateFound events = %d, want 1", len(dups))
	}
	got := dups[0].(report.DuplicateFound)
	if got.Path != filepath.Join(watchDir, "b.txt") || got.Of != filepath.Join(watchDir, "a.txt") {
		t.Errorf("DuplicateFound = %+v, want b.txt of a.txt", got)
	}
}

func TestRunMissingDirectoryIsFatal(t *testing.T) {
	h := newHarness(t, 0)
	h.deps.Dir = "/does-not-exist"

	loop, _, done := h.start(t)
	err := waitDone(t, done)

	if !errors.Is(err, scanner.ErrDirectoryUnavailable) {
		t.Errorf("Run() error = %v, want ErrDirectoryUnavailable", err)
	}
	if got := h.rec.Count(report.KindFatal); got != 1 {
		t.Errorf("Fatal events = %d, want 1", got)
	}
	if _, err := h.fs.Stat(backupRoot); err == nil {
		t.Error("backup root was created for a missing directory")
	}
	if got := loop.State(); got != StateStopped {
		t.Errorf("State() = %v, want %v", got, StateStopped)
	}
}

func TestRunBackupRootFailureIsFatal(t *testing.T) {
	h := newHarness(t, 2)
	h.deps.Backups = failingRoot{}

	_, _, done := h.start(t)
	if err := waitDone(t, done); err == nil {
		t.Error("Run() error = nil, want backup root failure")
	}
	if got := h.rec.Count(report.KindFatal); got != 1 {
		t.Errorf("Fatal events = %d, want 1", got)
	}
}

func TestRunFallsBackToPolling(t *testing.T) {
	h := newHarness(t, 1)
	h.deps.NewBridge = func(string) (EventSource, error) {
		return nil, errors.New("inotify limit reached")
	}

	_, cancel, done := h.start(t)
	h.waitCycle(t)
	cancel()
	if err := waitDone(t, done); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if got := h.rec.Count(report.KindWarning); got != 1 {
		t.Errorf("Warning events = %d, want 1", got)
	}
}

func TestRunRefreshesOnEvent(t *testing.T) {
	h := newHarness(t, 2)
	h.deps.Config.MaxFiles = 2
	src := newFakeSource()
	h.deps.NewBridge = func(string) (EventSource, error) { return src, nil }

	_, cancel, done := h.start(t)
	h.waitCycle(t)

	writeFile(t, h.fs, "z-new.txt", "fresh", time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	src.events <- watcher.Event{Op: watcher.Created, Path: filepath.Join(watchDir, "z-new.txt")}
	h.waitCycle(t)

	cancel()
	waitDone(t, done)

	select {
	case <-src.stopped:
	default:
		t.Error("event source was not stopped")
	}
	if got := h.rec.Count(report.KindFileCreated); got != 1 {
		t.Errorf("FileCreated events = %d, want 1", got)
	}
	if got := countFiles(t, h.fs, watchDir); got != 2 {
		t.Errorf("remaining files = %d, want 2", got)
	}
	if _, err := h.fs.Stat(filepath.Join(watchDir, "f00.txt")); err == nil {
		t.Error("oldest file survived the refresh cleanup")
	}
}

func TestRunLoadsConfigFromStore(t *testing.T) {
	h := newHarness(t, 4)
	h.deps.Config = nil
	cfg := config.Default()
	cfg.MaxFiles = 1
	cfg.CheckIntervalSeconds = 3600
	h.configs.cfg = cfg

	loop, cancel, done := h.start(t)
	h.waitCycle(t)
	cancel()
	waitDone(t, done)

	if got := countFiles(t, h.fs, watchDir); got != 1 {
		t.Errorf("remaining files = %d, want 1", got)
	}
	if loop.Config() != cfg {
		t.Error("Config() does not return the loaded config")
	}
	if len(h.configs.saved) != 1 || h.configs.saved[0] != cfg {
		t.Errorf("saved configs = %v, want the loaded config once", h.configs.saved)
	}
}

func TestRunConfigLoadErrorUsesDefaults(t *testing.T) {
	h := newHarness(t, 1)
	h.deps.Config = nil
	h.configs.loadErr = errors.New("malformed")

	loop, cancel, done := h.start(t)
	h.waitCycle(t)
	cancel()
	waitDone(t, done)

	if got := loop.Config().MaxFiles; got != config.DefaultMaxFiles {
		t.Errorf("MaxFiles = %d, want %d", got, config.DefaultMaxFiles)
	}
	if got := h.rec.Count(report.KindWarning); got != 1 {
		t.Errorf("Warning events = %d, want 1", got)
	}
}

func TestRunConfigSaveFailureIsWarning(t *testing.T) {
	h := newHarness(t, 1)
	h.configs.saveErr = errors.New("disk full")

	_, cancel, done := h.start(t)
	h.waitCycle(t)
	cancel()
	if err := waitDone(t, done); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if got := h.rec.Count(report.KindWarning); got != 1 {
		t.Errorf("Warning events = %d, want 1", got)
	}
}

func TestNewValidatesDeps(t *testing.T) {
	h := newHarness(t, 0)

	tests := []struct {
		name   string
		mutate func(d *Deps)
	}{
		{"no dir", func(d *Deps) { d.Dir = "" }},
		{"no fs", func(d *Deps) { d.FS = nil }},
		{"no executor", func(d *Deps) { d.Executor = nil }},
		{"no backups", func(d *Deps) { d.Backups = nil }},
		{"no config", func(d *Deps) { d.Config = nil; d.ConfigStore = nil }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deps := h.deps
			tt.mutate(&deps)
			if _, err := New(deps); err == nil {
				t.Error("New() error = nil, want error")
			}
		})
	}
}

func TestStateString(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateStarting, "starting"},
		{StateRunning, "running"},
		{StateStopping, "stopping"},
		{StateStopped, "stopped"},
		{State(9), "State(9)"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", int32(tt.state), got, tt.want)
		}
	}
}
