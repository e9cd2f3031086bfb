// Package files holds the value types shared by the inventory, retention,
// backup and cleanup packages.
package files

import "time"

// TempPrefix starts the name of every in-progress copy dirwarden writes. Such
// files are never inventoried, listed as backups or cleaned up.
const TempPrefix = ".dirwarden-"

// Record is a snapshot of one regular file taken during a scan.
type Record struct {
	Path      string    `json:"path" yaml:"path"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
	SizeBytes uint64    `json:"size_bytes" yaml:"size_bytes"`
}

// Inventory is the ordered result of a single scan, in enumeration order.
type Inventory []Record

// Paths returns the record paths in inventory order.
func (inv Inventory) Paths() []string {
	paths := make([]string, len(inv))
	for i, rec := range inv {
		paths[i] = rec.Path
	}
	return paths
}

// TotalBytes returns the sum of all record sizes.
func (inv Inventory) TotalBytes() uint64 {
	var total uint64
	for _, rec := range inv {
		total += rec.SizeBytes
	}
	return total
}

// Stats holds the running cleanup counters for one monitor process.
type Stats struct {
	FilesDeleted      uint64
	TotalBytesCleaned uint64
	LastCleanupAt     *time.Time
}

// RecordDeletion accounts for one successfully deleted file.
func (s *Stats) RecordDeletion(sizeBytes uint64, at time.Time) {
	s.FilesDeleted++
	s.TotalBytesCleaned += sizeBytes
	t := at
	s.LastCleanupAt = &t
}

// Snapshot returns a copy that shares no memory with s.
func (s Stats) Snapshot() Stats {
	out := Stats{
		FilesDeleted:      s.FilesDeleted,
		TotalBytesCleaned: s.TotalBytesCleaned,
	}
	if s.LastCleanupAt != nil {
		t := *s.LastCleanupAt
		out.LastCleanupAt = &t
	}
	return out
}
