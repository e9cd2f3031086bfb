package backup

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"

	"github.com/blackwell-systems/dirwarden/internal/files"
)

// Ensure creates the backup root if it does not exist.
func (s *Store) Ensure() error {
	if err := s.fs.MkdirAll(s.root, 0o755); err != nil {
		return fmt.Errorf("failed to create backup directory %s: %w", s.root, err)
	}
	return nil
}

// Store copies rec into the backup root under its base name. The copy is
// written to a temporary file, flushed, and renamed into place, so a partial
// copy never replaces an existing backup. Permissions and modification time
// are carried over from the source.
func (s *Store) Store(rec files.Record) (*Result, error) {
	dst := filepath.Join(s.root, filepath.Base(rec.Path))

	n, err := copyAtomic(s.fs, rec.Path, dst)
	if err != nil {
		return nil, &Error{Path: rec.Path, Err: err}
	}

	return &Result{
		Source:   rec.Path,
		Path:     dst,
		Bytes:    n,
		StoredAt: s.now(),
	}, nil
}

// List returns the backups in the root sorted by name. A missing root yields
// an empty list.
func (s *Store) List() ([]Entry, error) {
	infos, err := afero.ReadDir(s.fs, s.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read backup directory: %w", err)
	}

	var entries []Entry
	for _, info := range infos {
		if !info.Mode().IsRegular() || strings.HasPrefix(info.Name(), files.TempPrefix) {
			continue
		}
		entries = append(entries, Entry{
			Name:      info.Name(),
			Path:      filepath.Join(s.root, info.Name()),
			SizeBytes: info.Size(),
			ModTime:   info.ModTime(),
		})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

// Remove deletes a backup by name. Removing a missing backup is not an error.
func (s *Store) Remove(name string) error {
	if err := validName(name); err != nil {
		return err
	}
	if err := s.fs.Remove(filepath.Join(s.root, name)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove backup %s: %w", name, err)
	}
	return nil
}

// contains reports whether path names a file directly inside the root.
func (s *Store) contains(path string) bool {
	return filepath.Clean(filepath.Dir(path)) == filepath.Clean(s.root)
}

func validName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("invalid backup name %q", name)
	}
	return nil
}

// copyAtomic copies src to dst through a temporary file in dst's directory.
func copyAtomic(fs afero.Fs, src, dst string) (int64, error) {
	in, err := fs.Open(src)
	if err != nil {
		return 0, err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return 0, err
	}

	tmp, err := afero.TempFile(fs, filepath.Dir(dst), files.TempPrefix+"*")
	if err != nil {
		return 0, err
	}
	tmpName := tmp.Name()
	ok := false
	defer func() {
		if !ok {
			tmp.Close()
			fs.Remove(tmpName)
		}
	}()

	n, err := io.Copy(tmp, in)
	if err != nil {
		return 0, err
	}
	if err := tmp.Sync(); err != nil {
		return 0, err
	}
	if err := tmp.Close(); err != nil {
		return 0, err
	}
	if err := fs.Chmod(tmpName, info.Mode().Perm()); err != nil {
		return 0, err
	}
	if err := fs.Chtimes(tmpName, info.ModTime(), info.ModTime()); err != nil {
		return 0, err
	}
	if err := fs.Rename(tmpName, dst); err != nil {
		return 0, err
	}

	ok = true
	return n, nil
}
