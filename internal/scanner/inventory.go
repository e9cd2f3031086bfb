package scanner

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/blackwell-systems/dirwarden/internal/files"
	"github.com/blackwell-systems/dirwarden/internal/report"
)

// Scan lists the immediate regular files of dir. Subdirectories, symlinks and
// in-progress dirwarden copies are skipped without descending. A file whose metadata cannot be read is
// reported as report.StatFailed and left out; only a failure to list dir
// itself is returned as an error.
func (s *Scanner) Scan(dir string) (files.Inventory, error) {
	// afero.ReadDir sorts by name, which keeps the enumeration order stable.
	entries, err := afero.ReadDir(s.fs, dir)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read %s: %v", ErrDirectoryUnavailable, dir, err)
	}

	inv := make(files.Inventory, 0, len(entries))
	for _, entry := range entries {
		if !regular(entry.Mode()) || strings.HasPrefix(entry.Name(), files.TempPrefix) {
			continue
		}

		path := filepath.Join(dir, entry.Name())

		// Re-stat: the listing may be stale by the time we get here.
		info, err := s.fs.Stat(path)
		if err != nil {
			s.reporter.Report(report.StatFailed{Path: path, Err: err})
			continue
		}
		if !regular(info.Mode()) {
			continue
		}

		inv = append(inv, files.Record{
			Path:      path,
			CreatedAt: files.CreationTime(info),
			SizeBytes: uint64(info.Size()),
		})
	}

	return inv, nil
}
