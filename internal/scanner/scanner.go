// Package scanner builds the flat inventory of regular files in a directory.
package scanner

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/afero"

	"github.com/blackwell-systems/dirwarden/internal/report"
)

// ErrDirectoryUnavailable is returned when the monitored directory cannot be
// opened or listed.
var ErrDirectoryUnavailable = errors.New("directory unavailable")

// Scanner produces inventories of a single directory.
type Scanner struct {
	fs       afero.Fs
	reporter report.Reporter
}

// New creates a new Scanner reading through fs. Per-file problems are sent to r.
func New(fs afero.Fs, r report.Reporter) *Scanner {
	return &Scanner{fs: fs, reporter: report.OrDiscard(r)}
}

// CheckDirectory verifies that dir exists and is a directory.
func CheckDirectory(fs afero.Fs, dir string) error {
	info, err := fs.Stat(dir)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrDirectoryUnavailable, dir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", ErrDirectoryUnavailable, dir)
	}
	return nil
}

// regular reports whether mode describes a plain file (not a directory,
// symlink, socket, pipe or device).
func regular(mode os.FileMode) bool {
	return mode.IsRegular()
}
