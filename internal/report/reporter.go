package report

import (
	"log/slog"
	"sync"
)

// Reporter receives events. Implementations must not block for long; the
// monitor calls Report from its only scheduling goroutine.
type Reporter interface {
	Report(Event)
}

// ReporterFunc adapts a function to the Reporter interface.
type ReporterFunc func(Event)

// Report calls f(ev).
func (f ReporterFunc) Report(ev Event) { f(ev) }

// Discard drops every event.
var Discard Reporter = ReporterFunc(func(Event) {})

// OrDiscard returns r, or Discard when r is nil.
func OrDiscard(r Reporter) Reporter {
	if r == nil {
		return Discard
	}
	return r
}

type multi []Reporter

func (m multi) Report(ev Event) {
	for _, r := range m {
		r.Report(ev)
	}
}

// Multi fans every event out to each non-nil reporter in order.
func Multi(reporters ...Reporter) Reporter {
	var out multi
	for _, r := range reporters {
		if r != nil {
			out = append(out, r)
		}
	}
	return out
}

// LogReporter writes each event as a structured slog record.
type LogReporter struct {
	logger *slog.Logger
}

// NewLogReporter creates a LogReporter. A nil logger uses slog.Default().
func NewLogReporter(logger *slog.Logger) *LogReporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogReporter{logger: logger.With("component", "monitor")}
}

// Report implements Reporter.
func (l *LogReporter) Report(ev Event) {
	switch e := ev.(type) {
	case Scanned:
		l.logger.Debug("directory scanned", "dir", e.Dir, "files", e.Count)
	case FileCreated:
		l.logger.Info("file created", "path", e.Path)
	case FileDeleted:
		l.logger.Info("file removed externally", "path", e.Path)
	case DuplicateFound:
		l.logger.Info("duplicate file", "path", e.Path, "duplicate_of", e.Of)
	case StatFailed:
		l.logger.Warn("stat failed, file skipped", "path", e.Path, "error", e.Err)
	case HashFailed:
		l.logger.Warn("hash failed, file skipped for duplicate detection", "path", e.Path, "error", e.Err)
	case BackupOK:
		l.logger.Info("backup created", "path", e.Path, "backup", e.BackupPath)
	case BackupFailed:
		l.logger.Error("backup failed, file kept", "path", e.Path, "error", e.Err)
	case Deleted:
		l.logger.Info("file deleted", "path", e.Path, "size_bytes", e.SizeBytes)
	case DeleteFailed:
		l.logger.Error("delete failed", "path", e.Path, "error", e.Err)
	case StatsSnapshot:
		attrs := []any{
			"files_deleted", e.Stats.FilesDeleted,
			"bytes_cleaned", e.Stats.TotalBytesCleaned,
		}
		if e.Stats.LastCleanupAt != nil {
			attrs = append(attrs, "last_cleanup", *e.Stats.LastCleanupAt)
		}
		l.logger.Debug("cleanup stats", attrs...)
	case Status:
		l.logger.Debug("status", "dir", e.Dir, "files", len(e.Files), "max_files", e.MaxFiles)
	case Warning:
		if e.Err != nil {
			l.logger.Warn(e.Message, "error", e.Err)
		} else {
			l.logger.Warn(e.Message)
		}
	case Fatal:
		l.logger.Error("monitor stopped", "error", e.Err)
	default:
		l.logger.Debug("event", "kind", string(ev.Kind()))
	}
}

// Recorder keeps every event it receives. It is safe for concurrent use.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// Report implements Reporter.
func (r *Recorder) Report(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// OfKind returns the recorded events of the given kind, in order.
func (r *Recorder) OfKind(kind Kind) []Event {
	var out []Event
	for _, ev := range r.Events() {
		if ev.Kind() == kind {
			out = append(out, ev)
		}
	}
	return out
}

// Count returns how many events of the given kind were recorded.
func (r *Recorder) Count(kind Kind) int {
	return len(r.OfKind(kind))
}

// Reset discards all recorded events.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}
