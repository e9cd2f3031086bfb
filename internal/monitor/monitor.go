// Package monitor runs the retention loop for one directory: it rescans on
// a fixed interval and shortly after filesystem notifications, reports
// duplicates, cleans up excess files and journals each cleanup.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spf13/afero"

	"github.com/blackwell-systems/dirwarden/internal/cleanup"
	"github.com/blackwell-systems/dirwarden/internal/config"
	"github.com/blackwell-systems/dirwarden/internal/hashindex"
	"github.com/blackwell-systems/dirwarden/internal/metrics"
	"github.com/blackwell-systems/dirwarden/internal/report"
	"github.com/blackwell-systems/dirwarden/internal/scanner"
	"github.com/blackwell-systems/dirwarden/internal/watcher"
)

// DefaultRefreshDelay is how long the loop waits after the first
// notification of a burst before rescanning.
const DefaultRefreshDelay = 500 * time.Millisecond

// State is the lifecycle phase of a Loop.
type State int32

const (
	StateStarting State = iota
	StateRunning
	StateStopping
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// EventSource delivers filesystem notifications. *watcher.Bridge implements it.
type EventSource interface {
	Events() <-chan watcher.Event
	Stop() error
}

// ConfigStore loads settings at startup and persists them at shutdown.
// config.FileStore implements it.
type ConfigStore interface {
	Load() (*config.Config, error)
	Save(cfg *config.Config) error
}

// BackupRoot is created before the first cleanup.
type BackupRoot interface {
	Ensure() error
}

// Journal records cleanup runs. *store.Store implements it.
type Journal interface {
	SaveReport(rep *cleanup.Report) error
}

// Sampler provides host resource usage for the status display.
type Sampler interface {
	Sample() report.Resources
}

// Deps wires a Loop. Dir, FS, Executor and Backups are required. When Config
// is nil it is loaded from ConfigStore during startup. Scanner and Index
// default to instances over FS. A nil NewBridge runs tick-only.
type Deps struct {
	Dir          string
	Config       *config.Config
	ConfigStore  ConfigStore
	FS           afero.Fs
	Reporter     report.Reporter
	Scanner      *scanner.Scanner
	Index        *hashindex.Index
	Executor     *cleanup.Executor
	Backups      BackupRoot
	Journal      Journal
	Sampler      Sampler
	Metrics      *metrics.Collector
	NewBridge    func(dir string) (EventSource, error)
	RefreshDelay time.Duration
	Logger       *slog.Logger
	// CleanupLock, when set, is held from the start of a cleanup until its
	// report is journaled. Backup pruning takes the same lock.
	CleanupLock  sync.Locker
}

// Loop is the single goroutine that owns scanning, hashing and cleanup.
type Loop struct {
	deps     Deps
	cfg      *config.Config
	reporter report.Reporter
	logger   *slog.Logger
	source   EventSource
	state    atomic.Int32
}

// New validates deps and creates a Loop in the Starting state.
func New(deps Deps) (*Loop, error) {
	if deps.Dir == "" {
		return nil, errors.New("monitor: directory is required")
	}
	if deps.FS == nil {
		return nil, errors.New("monitor: filesystem is required")
	}
	if deps.Executor == nil {
		return nil, errors.New("monitor: cleanup executor is required")
	}
	if deps.Backups == nil {
		return nil, errors.New("monitor: backup root is required")
	}
	if deps.Config == nil && deps.ConfigStore == nil {
		return nil, errors.New("monitor: config or config store is required")
	}

	deps.Reporter = report.OrDiscard(deps.Reporter)
	if deps.Scanner == nil {
		deps.Scanner = scanner.New(deps.FS, deps.Reporter)
	}
	if deps.Index == nil {
		idx, err := hashindex.New(deps.FS, hashindex.DefaultCacheSize, deps.Reporter)
		if err != nil {
			return nil, fmt.Errorf("failed to create hash index: %w", err)
		}
		deps.Index = idx
	}
	if deps.RefreshDelay <= 0 {
		deps.RefreshDelay = DefaultRefreshDelay
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	return &Loop{
		deps:     deps,
		cfg:      deps.Config,
		reporter: deps.Reporter,
		logger:   deps.Logger.With("component", "monitor", "dir", deps.Dir),
	}, nil
}

// State returns the current lifecycle phase. It is safe to call from any goroutine.
func (l *Loop) State() State {
	return State(l.state.Load())
}

// Config returns the settings the loop runs with. It is nil until startup
// has loaded them.
func (l *Loop) Config() *config.Config {
	return l.cfg
}

func (l *Loop) setState(s State) {
	l.logger.Debug("state change", "from", l.State(), "to", s)
	l.state.Store(int32(s))
}

// Run executes the loop until ctx is cancelled. It returns an error only
// when startup fails: the directory is unavailable or the backup root
// cannot be created. Both are also reported as report.Fatal.
func (l *Loop) Run(ctx context.Context) error {
	if err := l.start(); err != nil {
		l.reporter.Report(report.Fatal{Err: err})
		l.setState(StateStopped)
		return err
	}

	l.setState(StateRunning)
	l.logger.Info("monitor started",
		"max_files", l.cfg.MaxFiles,
		"interval", l.cfg.CheckInterval(),
		"notifications", l.source != nil)

	var events <-chan watcher.Event
	if l.source != nil {
		events = l.source.Events()
	}

	l.cycle(ctx)

	ticker := time.NewTicker(l.cfg.CheckInterval())
	defer ticker.Stop()

	var refresh *time.Timer
	var refreshC <-chan time.Time
	defer func() {
		if refresh != nil {
			refresh.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			l.stop()
			return nil

		case <-ticker.C:
			l.cycle(ctx)

		case ev, ok := <-events:
			if !ok {
				// The bridge closed its channel; keep polling.
				events = nil
				continue
			}
			l.notify(ev)
			if refreshC == nil {
				refresh = time.NewTimer(l.deps.RefreshDelay)
				refreshC = refresh.C
			}

		case <-refreshC:
			refresh, refreshC = nil, nil
			l.cycle(ctx)
		}
	}
}

func (l *Loop) start() error {
	l.setState(StateStarting)

	if err := scanner.CheckDirectory(l.deps.FS, l.deps.Dir); err != nil {
		return err
	}

	if l.cfg == nil {
		cfg, err := l.deps.ConfigStore.Load()
		if err != nil {
			l.reporter.Report(report.Warning{Message: "config problem, using defaults where needed", Err: err})
		}
		if cfg == nil {
			cfg = config.Default()
		}
		l.cfg = cfg
	}

	if err := l.deps.Backups.Ensure(); err != nil {
		return err
	}

	if l.deps.NewBridge != nil {
		src, err := l.deps.NewBridge(l.deps.Dir)
		if err != nil {
			l.reporter.Report(report.Warning{Message: "filesystem notifications unavailable, polling only", Err: err})
		} else {
			l.source = src
		}
	}
	return nil
}

func (l *Loop) stop() {
	l.setState(StateStopping)

	if l.source != nil {
		if err := l.source.Stop(); err != nil {
			l.reporter.Report(report.Warning{Message: "failed to stop filesystem notifications", Err: err})
		}
	}

	if l.deps.ConfigStore != nil {
		if err := l.deps.ConfigStore.Save(l.cfg); err != nil {
			l.reporter.Report(report.Warning{Message: "failed to save config", Err: err})
		}
	}

	l.setState(StateStopped)
	l.logger.Info("monitor stopped")
}

func (l *Loop) notify(ev watcher.Event) {
	switch ev.Op {
	case watcher.Created:
		l.reporter.Report(report.FileCreated{Path: ev.Path})
	case watcher.Deleted:
		l.reporter.Report(report.FileDeleted{Path: ev.Path})
	}
}

// cycle runs one scan, status, duplicate and cleanup pass. Scan failures
// skip the pass; the next tick tries again.
func (l *Loop) cycle(ctx context.Context) {
	inv, err := l.deps.Scanner.Scan(l.deps.Dir)
	if err != nil {
		l.reporter.Report(report.Warning{Message: "scan failed", Err: err})
		return
	}
	l.reporter.Report(report.Scanned{Dir: l.deps.Dir, Count: len(inv)})

	status := report.Status{
		Dir:           l.deps.Dir,
		MaxFiles:      l.cfg.MaxFiles,
		CheckInterval: l.cfg.CheckInterval(),
		Files:         inv,
		Stats:         l.deps.Executor.Stats(),
	}
	if l.deps.Sampler != nil {
		status.Resources = l.deps.Sampler.Sample()
	}
	l.reporter.Report(status)

	dups := l.deps.Index.FindDuplicates(inv)
	for _, d := range dups {
		l.reporter.Report(report.DuplicateFound{Path: d.Path, Of: d.Of})
	}
	l.deps.Metrics.ObserveScan(len(inv), len(dups))

	if l.deps.CleanupLock != nil {
		l.deps.CleanupLock.Lock()
	}
	rep := l.deps.Executor.Run(ctx, inv, l.cfg.MaxFiles)
	rep.Directory = l.deps.Dir
	if rep.Excess > 0 {
		l.logger.Info("cleanup finished",
			"run_id", rep.RunID,
			"excess", rep.Excess,
			"deleted", rep.Deleted(),
			"failed", len(rep.Failed()),
			"interrupted", rep.Interrupted)
		if l.deps.Journal != nil {
			if err := l.deps.Journal.SaveReport(rep); err != nil {
				l.reporter.Report(report.Warning{Message: "failed to journal cleanup run", Err: err})
			}
		}
	}
	if l.deps.CleanupLock != nil {
		l.deps.CleanupLock.Unlock()
	}

	l.reporter.Report(report.StatsSnapshot{Stats: l.deps.Executor.Stats()})
}
