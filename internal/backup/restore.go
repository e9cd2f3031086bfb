package backup

import (
	"fmt"
	"os"
	"path/filepath"
)

// Restore copies the named backup into destDir and returns the restored path.
// An existing destination file is only replaced when overwrite is set. The
// backup itself is left in place.
func (s *Store) Restore(name, destDir string, overwrite bool) (string, error) {
	if err := validName(name); err != nil {
		return "", err
	}

	src := filepath.Join(s.root, name)
	if _, err := s.fs.Stat(src); err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("backup %s not found in %s", name, s.root)
		}
		return "", fmt.Errorf("failed to stat backup %s: %w", name, err)
	}

	info, err := s.fs.Stat(destDir)
	if err != nil {
		return "", fmt.Errorf("failed to access restore directory %s: %w", destDir, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("restore target %s is not a directory", destDir)
	}

	dst := filepath.Join(destDir, name)
	if !overwrite {
		if _, err := s.fs.Stat(dst); err == nil {
			return "", fmt.Errorf("%w: %s", ErrExists, dst)
		}
	}

	if _, err := copyAtomic(s.fs, src, dst); err != nil {
		return "", fmt.Errorf("failed to restore %s: %w", name, err)
	}
	return dst, nil
}
