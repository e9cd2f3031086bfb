package watcher

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"

	"github.com/blackwell-systems/dirwarden/internal/metrics"
)

// DefaultBuffer is the event channel capacity used when none is given.
const DefaultBuffer = 64

// Op is the kind of change observed.
type Op int

const (
	Created Op = iota + 1
	Deleted
)

func (o Op) String() string {
	switch o {
	case Created:
		return "created"
	case Deleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// Event is a create or delete of a non-directory entry in the watched directory.
type Event struct {
	Op   Op
	Path string
}

// Bridge forwards filesystem notifications for a single directory onto a
// bounded channel.
type Bridge struct {
	dir     string
	fsw     *fsnotify.Watcher
	events  chan Event
	logger  *slog.Logger
	metrics *metrics.Collector

	// subdirs is only touched by the run goroutine.
	subdirs map[string]bool
	dropped atomic.Uint64

	stopOnce sync.Once
	stopErr  error
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// BridgeOption configures a Bridge.
type BridgeOption func(*Bridge)

// WithMetrics counts received and dropped events on c.
func WithMetrics(c *metrics.Collector) BridgeOption {
	return func(b *Bridge) { b.metrics = c }
}

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) BridgeOption {
	return func(b *Bridge) { b.logger = l }
}

// NewBridge starts watching dir (not its subdirectories). buffer <= 0 uses
// DefaultBuffer.
func NewBridge(dir string, buffer int, opts ...BridgeOption) (*Bridge, error) {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	b := &Bridge{
		dir:     dir,
		fsw:     fsw,
		events:  make(chan Event, buffer),
		logger:  slog.Default(),
		subdirs: make(map[string]bool),
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.logger = b.logger.With("component", "watcher", "dir", dir)

	// Known subdirectories, so their removal can be told apart from a file's.
	if entries, err := os.ReadDir(dir); err == nil {
		for _, e := range entries {
			if e.IsDir() {
				b.subdirs[filepath.Join(dir, e.Name())] = true
			}
		}
	}

	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	go b.run()
	return b, nil
}

// Events returns the channel events are delivered on. It is closed by Stop.
func (b *Bridge) Events() <-chan Event {
	return b.events
}

// Dropped returns how many events were discarded because the channel was full.
func (b *Bridge) Dropped() uint64 {
	return b.dropped.Load()
}

// Stop ends delivery and releases the OS watch. It is safe to call more than
// once; after the first call returns no further events are sent.
func (b *Bridge) Stop() error {
	b.stopOnce.Do(func() {
		close(b.stopCh)
		<-b.doneCh
		close(b.events)
		if err := b.fsw.Close(); err != nil {
			b.stopErr = fmt.Errorf("failed to close watcher: %w", err)
		}
	})
	return b.stopErr
}

func (b *Bridge) run() {
	defer close(b.doneCh)

	for {
		select {
		case <-b.stopCh:
			return

		case ev, ok := <-b.fsw.Events:
			if !ok {
				return
			}
			if out, ok := b.translate(ev); ok {
				b.send(out)
			}

		case err, ok := <-b.fsw.Errors:
			if !ok {
				return
			}
			b.logger.Warn("filesystem notification error", "error", err)
		}
	}
}

// translate maps a raw notification to an Event. Writes and permission
// changes are ignored. A rename is reported as a delete of the old name; the
// new name arrives separately as a create.
func (b *Bridge) translate(ev fsnotify.Event) (Event, bool) {
	if ev.Name == b.dir || filepath.Dir(ev.Name) != filepath.Clean(b.dir) {
		return Event{}, false
	}

	switch {
	case ev.Has(fsnotify.Create):
		if info, err := os.Lstat(ev.Name); err == nil && info.IsDir() {
			b.subdirs[ev.Name] = true
			return Event{}, false
		}
		return Event{Op: Created, Path: ev.Name}, true

	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		if b.subdirs[ev.Name] {
			delete(b.subdirs, ev.Name)
			return Event{}, false
		}
		return Event{Op: Deleted, Path: ev.Name}, true
	}

	return Event{}, false
}

func (b *Bridge) send(ev Event) {
	select {
	case b.events <- ev:
		b.metrics.WatchEvent(ev.Op.String())
	default:
		b.dropped.Add(1)
		b.metrics.WatchEvent("dropped")
		b.logger.Debug("event channel full, dropping event", "op", ev.Op.String(), "path", ev.Path)
	}
}
