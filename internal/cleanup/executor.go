// Package cleanup enforces the capacity limit on one directory by backing up
// and deleting the oldest excess files.
package cleanup

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"

	"github.com/blackwell-systems/dirwarden/internal/backup"
	"github.com/blackwell-systems/dirwarden/internal/files"
	"github.com/blackwell-systems/dirwarden/internal/metrics"
	"github.com/blackwell-systems/dirwarden/internal/report"
	"github.com/blackwell-systems/dirwarden/internal/retention"
)

// ErrDeleteFailed wraps the error from removing a file that was already
// backed up.
var ErrDeleteFailed = errors.New("delete failed")

// Backupper copies a file somewhere safe before it is removed.
type Backupper interface {
	Store(rec files.Record) (*backup.Result, error)
}

// Executor runs cleanup cycles and owns the cumulative Stats. It is not safe
// for concurrent use; the monitor drives it from a single goroutine.
type Executor struct {
	fs       afero.Fs
	backups  Backupper
	reporter report.Reporter
	metrics  *metrics.Collector
	stats    files.Stats
	now      func() time.Time
}

// Option configures an Executor.
type Option func(*Executor)

// WithMetrics records outcomes on c.
func WithMetrics(c *metrics.Collector) Option {
	return func(e *Executor) { e.metrics = c }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Executor) { e.now = now }
}

// New creates an Executor that removes files through fs after copying them
// with backups.
func New(fs afero.Fs, backups Backupper, r report.Reporter, opts ...Option) *Executor {
	e := &Executor{
		fs:       fs,
		backups:  backups,
		reporter: report.OrDiscard(r),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Plan returns the retention decision for inv without touching any file.
func (e *Executor) Plan(inv files.Inventory, maxFiles uint32) retention.Decision {
	return retention.Decide(inv, maxFiles)
}

// Stats returns a copy of the cumulative counters.
func (e *Executor) Stats() files.Stats {
	return e.stats.Snapshot()
}

// Run processes the excess files of inv oldest first. For each file the
// backup is attempted first; the file is deleted only if the backup
// succeeded, and stats change only if the delete succeeded. Every excess file
// yields exactly one of report.Deleted, report.BackupFailed or
// report.DeleteFailed, and a failure never stops the remaining files.
//
// ctx is checked between files only, so a file is never left half processed.
// A run stopped early is marked Interrupted.
func (e *Executor) Run(ctx context.Context, inv files.Inventory, maxFiles uint32) *Report {
	decision := e.Plan(inv, maxFiles)

	rep := &Report{
		RunID:     uuid.New(),
		StartedAt: e.now(),
		MaxFiles:  maxFiles,
		Scanned:   len(inv),
		Excess:    len(decision.Excess),
		Outcomes:  make([]Outcome, 0, len(decision.Excess)),
	}
	if len(inv) > 0 {
		rep.Directory = filepath.Dir(inv[0].Path)
	}

	for _, rec := range decision.Excess {
		if ctx.Err() != nil {
			rep.Interrupted = true
			break
		}
		rep.Outcomes = append(rep.Outcomes, e.process(rec))
	}

	rep.FinishedAt = e.now()
	if rep.Excess > 0 {
		e.metrics.ObserveCleanup(rep.Duration())
	}
	return rep
}

func (e *Executor) process(rec files.Record) Outcome {
	res, err := e.backups.Store(rec)
	if err != nil {
		e.metrics.BackupFailed()
		e.reporter.Report(report.BackupFailed{Path: rec.Path, Err: err})
		return Outcome{Record: rec, Status: StatusBackupFailed, Err: err}
	}

	storedAt := res.StoredAt
	e.reporter.Report(report.BackupOK{Path: rec.Path, BackupPath: res.Path})
	out := Outcome{Record: rec, BackupPath: res.Path, BackedUpAt: &storedAt}

	if err := e.fs.Remove(rec.Path); err != nil {
		err = fmt.Errorf("%w: %s: %v", ErrDeleteFailed, rec.Path, err)
		e.metrics.DeleteFailed()
		e.reporter.Report(report.DeleteFailed{Path: rec.Path, Err: err})
		out.Status = StatusDeleteFailed
		out.Err = err
		return out
	}

	e.stats.RecordDeletion(rec.SizeBytes, e.now())
	e.metrics.FileDeleted(rec.SizeBytes)
	e.reporter.Report(report.Deleted{Path: rec.Path, SizeBytes: rec.SizeBytes})
	out.Status = StatusDeleted
	return out
}
