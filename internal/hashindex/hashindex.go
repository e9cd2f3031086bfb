// Package hashindex detects byte-identical files by content digest.
package hashindex

import (
	"fmt"
	"io"

	"github.com/cespare/xxhash/v2"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/spf13/afero"

	"github.com/blackwell-systems/dirwarden/internal/files"
	"github.com/blackwell-systems/dirwarden/internal/report"
)

// chunkSize bounds memory use while hashing large files.
const chunkSize = 64 * 1024

// DefaultCacheSize is the number of digests kept between scans.
const DefaultCacheSize = 4096

// Digest is a 64-bit content hash.
type Digest uint64

func (d Digest) String() string {
	return fmt.Sprintf("%016x", uint64(d))
}

// HashError is returned when a file cannot be opened or read in full.
type HashError struct {
	Path string
	Err  error
}

func (e *HashError) Error() string {
	return fmt.Sprintf("failed to hash %s: %v", e.Path, e.Err)
}

func (e *HashError) Unwrap() error { return e.Err }

// Duplicate pairs a file with the first-seen file holding identical content.
type Duplicate struct {
	Path string `json:"path" yaml:"path"`
	Of   string `json:"of" yaml:"of"`
}

type cacheKey struct {
	path      string
	size      uint64
	createdAt int64
}

// Index hashes files and finds duplicates within an inventory.
type Index struct {
	fs       afero.Fs
	cache    *lru.Cache[cacheKey, Digest]
	reporter report.Reporter
}

// New creates an Index. cacheSize <= 0 uses DefaultCacheSize.
func New(fs afero.Fs, cacheSize int, r report.Reporter) (*Index, error) {
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	cache, err := lru.New[cacheKey, Digest](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create digest cache: %w", err)
	}
	return &Index{fs: fs, cache: cache, reporter: report.OrDiscard(r)}, nil
}

// Digest streams the file at path through xxhash64.
func (x *Index) Digest(path string) (Digest, error) {
	f, err := x.fs.Open(path)
	if err != nil {
		return 0, &HashError{Path: path, Err: err}
	}
	defer f.Close()

	h := xxhash.New()
	buf := make([]byte, chunkSize)
	if _, err := io.CopyBuffer(h, f, buf); err != nil {
		return 0, &HashError{Path: path, Err: err}
	}
	return Digest(h.Sum64()), nil
}

// digestRecord returns a cached digest when the record's size and creation
// time are unchanged since it was last hashed.
func (x *Index) digestRecord(rec files.Record) (Digest, error) {
	key := cacheKey{path: rec.Path, size: rec.SizeBytes, createdAt: rec.CreatedAt.UnixNano()}
	if d, ok := x.cache.Get(key); ok {
		return d, nil
	}
	d, err := x.Digest(rec.Path)
	if err != nil {
		return 0, err
	}
	x.cache.Add(key, d)
	return d, nil
}

// FindDuplicates walks inv once in order. The first file seen with a given
// digest is canonical; every later file with that digest is returned paired
// with it. Files that cannot be hashed are reported and skipped.
func (x *Index) FindDuplicates(inv files.Inventory) []Duplicate {
	seen := make(map[Digest]string, len(inv))
	var dups []Duplicate

	for _, rec := range inv {
		d, err := x.digestRecord(rec)
		if err != nil {
			x.reporter.Report(report.HashFailed{Path: rec.Path, Err: err})
			continue
		}
		if first, ok := seen[d]; ok {
			dups = append(dups, Duplicate{Path: rec.Path, Of: first})
			continue
		}
		seen[d] = rec.Path
	}

	return dups
}

// Purge drops every cached digest.
func (x *Index) Purge() {
	x.cache.Purge()
}

// cached reports whether a digest for rec is in the cache. Used by tests.
func (x *Index) cached(rec files.Record) bool {
	return x.cache.Contains(cacheKey{path: rec.Path, size: rec.SizeBytes, createdAt: rec.CreatedAt.UnixNano()})
}

