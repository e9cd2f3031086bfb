package cleanup

import (
	"time"

	"github.com/google/uuid"

	"github.com/blackwell-systems/dirwarden/internal/files"
)

// Status is the outcome of processing one excess file.
type Status string

const (
	StatusDeleted      Status = "deleted"
	StatusBackupFailed Status = "backup_failed"
	StatusDeleteFailed Status = "delete_failed"
)

// Outcome records what happened to one excess file.
type Outcome struct {
	Record     files.Record
	Status     Status
	BackupPath string
	BackedUpAt *time.Time
	Err        error
}

// Report summarises one cleanup run.
type Report struct {
	RunID       uuid.UUID
	Directory   string
	StartedAt   time.Time
	FinishedAt  time.Time
	MaxFiles    uint32
	Scanned     int
	Excess      int
	Outcomes    []Outcome
	Interrupted bool
}

// Deleted returns the number of files removed.
func (r *Report) Deleted() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Status == StatusDeleted {
			n++
		}
	}
	return n
}

// BytesCleaned returns the bytes removed from the directory.
func (r *Report) BytesCleaned() uint64 {
	var n uint64
	for _, o := range r.Outcomes {
		if o.Status == StatusDeleted {
			n += o.Record.SizeBytes
		}
	}
	return n
}

// Failed returns the outcomes that did not end in a deletion.
func (r *Report) Failed() []Outcome {
	var out []Outcome
	for _, o := range r.Outcomes {
		if o.Status != StatusDeleted {
			out = append(out, o)
		}
	}
	return out
}

// Duration returns how long the run took.
func (r *Report) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}
