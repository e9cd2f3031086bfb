// Package backup keeps copies of files before they are removed from the
// monitored directory, and prunes old copies on a schedule.
package backup

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/afero"
)

// ErrBackupFailed matches every error returned by Store.Store.
var ErrBackupFailed = errors.New("backup failed")

// ErrExists is returned by Restore when the destination already exists and
// overwriting was not requested.
var ErrExists = errors.New("destination already exists")

// Error describes a failed backup of one file.
type Error struct {
	Path string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("failed to back up %s: %v", e.Path, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrBackupFailed) match any *Error.
func (e *Error) Is(target error) bool { return target == ErrBackupFailed }

// Result describes a completed backup copy.
type Result struct {
	Source   string
	Path     string
	Bytes    int64
	StoredAt time.Time
}

// Entry is one file in the backup root.
type Entry struct {
	Name      string    `json:"name" yaml:"name"`
	Path      string    `json:"path" yaml:"path"`
	SizeBytes int64     `json:"size_bytes" yaml:"size_bytes"`
	ModTime   time.Time `json:"mod_time" yaml:"mod_time"`
}

// Store writes backups into a single flat directory. Backups of files with the
// same base name replace each other; the latest copy wins.
type Store struct {
	fs   afero.Fs
	root string
	now  func() time.Time
}

// New creates a Store rooted at root.
func New(fs afero.Fs, root string) *Store {
	return &Store{fs: fs, root: root, now: time.Now}
}

// Root returns the backup directory.
func (s *Store) Root() string {
	return s.root
}
