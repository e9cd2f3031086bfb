// Package retention decides which files exceed the configured capacity.
package retention

import (
	"sort"

	"github.com/blackwell-systems/dirwarden/internal/files"
)

// Decision is the outcome of applying the capacity policy to an inventory.
type Decision struct {
	// Keep holds the paths that stay in the directory.
	Keep map[string]bool
	// Excess lists the files to back up and remove, oldest first.
	Excess []files.Record
}

// Decide orders inv oldest first by creation time, breaking ties by the
// lexically smaller path, and marks everything beyond the newest maxFiles
// entries as excess. It does not touch the filesystem and returns the same
// Decision for the same input.
//
// A maxFiles of zero is treated as one; at least one file is always kept.
func Decide(inv files.Inventory, maxFiles uint32) Decision {
	if maxFiles == 0 {
		maxFiles = 1
	}

	ordered := make([]files.Record, len(inv))
	copy(ordered, inv)
	sort.SliceStable(ordered, func(i, j int) bool {
		return Older(ordered[i], ordered[j])
	})

	d := Decision{Keep: make(map[string]bool, len(ordered))}

	excess := 0
	if n := len(ordered); n > int(maxFiles) {
		excess = n - int(maxFiles)
	}
	if excess > 0 {
		d.Excess = ordered[:excess:excess]
	}
	for _, rec := range ordered[excess:] {
		d.Keep[rec.Path] = true
	}
	return d
}

// Older reports whether a sorts before b in retention order.
func Older(a, b files.Record) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.Path < b.Path
}
