package store

import "time"

// timeFormat sorts lexically in time order, which the stale-backup query
// relies on. All stored times are UTC.
const timeFormat = "2006-01-02T15:04:05.000000000Z"

// Run is one journaled cleanup run.
type Run struct {
	ID           string    `json:"id" yaml:"id"`
	Directory    string    `json:"directory" yaml:"directory"`
	StartedAt    time.Time `json:"started_at" yaml:"started_at"`
	FinishedAt   time.Time `json:"finished_at" yaml:"finished_at"`
	MaxFiles     uint32    `json:"max_files" yaml:"max_files"`
	Scanned      int       `json:"scanned" yaml:"scanned"`
	Excess       int       `json:"excess" yaml:"excess"`
	Deleted      int       `json:"deleted" yaml:"deleted"`
	BytesCleaned uint64    `json:"bytes_cleaned" yaml:"bytes_cleaned"`
	Interrupted  bool      `json:"interrupted" yaml:"interrupted"`
}

// Outcome is one file processed by a run.
type Outcome struct {
	ID           int64      `json:"id" yaml:"id"`
	RunID        string     `json:"run_id" yaml:"run_id"`
	Path         string     `json:"path" yaml:"path"`
	SizeBytes    uint64     `json:"size_bytes" yaml:"size_bytes"`
	CreatedAt    time.Time  `json:"created_at" yaml:"created_at"`
	Status       string     `json:"status" yaml:"status"`
	BackupPath   string     `json:"backup_path,omitempty" yaml:"backup_path,omitempty"`
	BackedUpAt   *time.Time `json:"backed_up_at,omitempty" yaml:"backed_up_at,omitempty"`
	Error        string     `json:"error,omitempty" yaml:"error,omitempty"`
	BackupPruned bool       `json:"backup_pruned" yaml:"backup_pruned"`
}

// Totals aggregates the whole journal.
type Totals struct {
	Runs           int        `json:"runs" yaml:"runs"`
	FilesDeleted   int        `json:"files_deleted" yaml:"files_deleted"`
	BytesCleaned   uint64     `json:"bytes_cleaned" yaml:"bytes_cleaned"`
	BackupFailures int        `json:"backup_failures" yaml:"backup_failures"`
	DeleteFailures int        `json:"delete_failures" yaml:"delete_failures"`
	FirstRun       *time.Time `json:"first_run,omitempty" yaml:"first_run,omitempty"`
	LastRun        *time.Time `json:"last_run,omitempty" yaml:"last_run,omitempty"`
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeFormat)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeFormat, s)
}
