// Package report defines the structured events the monitor emits and the
// sinks that consume them.
//
// Components never print directly. They hand an Event to a Reporter and carry
// on; the sink decides whether the event becomes a log record, a colored
// terminal line, or an entry in a test recorder.
package report

import (
	"time"

	"github.com/blackwell-systems/dirwarden/internal/files"
)

// Kind identifies an event type.
type Kind string

const (
	KindScanned        Kind = "scanned"
	KindFileCreated    Kind = "file_created"
	KindFileDeleted    Kind = "file_deleted"
	KindDuplicateFound Kind = "duplicate_found"
	KindStatFailed     Kind = "stat_failed"
	KindHashFailed     Kind = "hash_failed"
	KindBackupOK       Kind = "backup_ok"
	KindBackupFailed   Kind = "backup_failed"
	KindDeleted        Kind = "deleted"
	KindDeleteFailed   Kind = "delete_failed"
	KindStatsSnapshot  Kind = "stats_snapshot"
	KindStatus         Kind = "status"
	KindWarning        Kind = "warning"
	KindFatal          Kind = "fatal"
)

// Event is implemented by every event type in this package.
type Event interface {
	Kind() Kind
}

// Scanned is emitted after every inventory pass.
type Scanned struct {
	Dir   string
	Count int
}

// FileCreated is emitted when the watch bridge sees a new file.
type FileCreated struct {
	Path string
}

// FileDeleted is emitted when the watch bridge sees a file disappear.
type FileDeleted struct {
	Path string
}

// DuplicateFound pairs a file with the first-seen file holding the same content.
type DuplicateFound struct {
	Path string
	Of   string
}

// StatFailed reports a file skipped during a scan.
type StatFailed struct {
	Path string
	Err  error
}

// HashFailed reports a file skipped during duplicate detection.
type HashFailed struct {
	Path string
	Err  error
}

// BackupOK reports a completed backup copy.
type BackupOK struct {
	Path       string
	BackupPath string
}

// BackupFailed reports a backup that failed; the source file was kept.
type BackupFailed struct {
	Path string
	Err  error
}

// Deleted reports a file removed after a successful backup.
type Deleted struct {
	Path      string
	SizeBytes uint64
}

// DeleteFailed reports a backed-up file that could not be removed.
type DeleteFailed struct {
	Path string
	Err  error
}

// StatsSnapshot carries a copy of the running cleanup counters.
type StatsSnapshot struct {
	Stats files.Stats
}

// Resources is the host usage shown alongside the status table.
// A value is only meaningful when its Has flag is set.
type Resources struct {
	CPUPercent    float64
	HasCPU        bool
	MemoryPercent float64
	HasMemory     bool
	DiskPercent   float64
	HasDisk       bool
}

// Status is the periodic status display for one cycle.
type Status struct {
	Dir           string
	MaxFiles      uint32
	CheckInterval time.Duration
	Files         files.Inventory
	Stats         files.Stats
	Resources     Resources
}

// Warning reports a degraded but non-fatal condition (config, watch, journal).
type Warning struct {
	Message string
	Err     error
}

// Fatal reports the error that stopped the monitor.
type Fatal struct {
	Err error
}

func (Scanned) Kind() Kind        { return KindScanned }
func (FileCreated) Kind() Kind    { return KindFileCreated }
func (FileDeleted) Kind() Kind    { return KindFileDeleted }
func (DuplicateFound) Kind() Kind { return KindDuplicateFound }
func (StatFailed) Kind() Kind     { return KindStatFailed }
func (HashFailed) Kind() Kind     { return KindHashFailed }
func (BackupOK) Kind() Kind       { return KindBackupOK }
func (BackupFailed) Kind() Kind   { return KindBackupFailed }
func (Deleted) Kind() Kind        { return KindDeleted }
func (DeleteFailed) Kind() Kind   { return KindDeleteFailed }
func (StatsSnapshot) Kind() Kind  { return KindStatsSnapshot }
func (Status) Kind() Kind         { return KindStatus }
func (Warning) Kind() Kind        { return KindWarning }
func (Fatal) Kind() Kind          { return KindFatal }
