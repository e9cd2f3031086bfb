package backup

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/blackwell-systems/dirwarden/internal/files"
)

// rewriteSlack absorbs clock granularity when comparing a backup's on-disk
// change time with its journaled write time.
const rewriteSlack = time.Second

// StaleBackup is a backup whose most recent journaled write is old.
type StaleBackup struct {
	Path       string
	BackedUpAt time.Time
}

// Catalog records when each backup was last written. The cleanup journal
// implements it.
type Catalog interface {
	// StaleBackups returns backups whose most recent write is before cutoff
	// and which have not been pruned yet.
	StaleBackups(cutoff time.Time) ([]StaleBackup, error)
	// MarkBackupPruned records that the backup at path was removed.
	MarkBackupPruned(path string) error
}

// Pruner removes backups older than the retention period.
type Pruner struct {
	store         *Store
	catalog       Catalog
	retentionDays int
	lock          sync.Locker
	logger        *slog.Logger
	now           func() time.Time
}

// PrunerOption configures a Pruner.
type PrunerOption func(*Pruner)

// WithLock makes Prune hold l while it works. Share it with whatever backs
// files up and journals them, so a backup is never pruned between being
// written and being journaled.
func WithLock(l sync.Locker) PrunerOption {
	return func(p *Pruner) { p.lock = l }
}

// NewPruner creates a Pruner. retentionDays <= 0 disables pruning.
func NewPruner(store *Store, catalog Catalog, retentionDays int, opts ...PrunerOption) *Pruner {
	p := &Pruner{
		store:         store,
		catalog:       catalog,
		retentionDays: retentionDays,
		logger:        slog.Default().With("component", "backup.pruner"),
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Enabled reports whether a retention period is configured.
func (p *Pruner) Enabled() bool {
	return p.retentionDays > 0
}

// Prune removes stale backups and returns how many were removed. Paths the
// catalog lists outside the backup root are ignored, and so is a backup whose
// file was rewritten after its last journaled write: that copy belongs to a
// cleanup the journal has not recorded.
func (p *Pruner) Prune(ctx context.Context) (int, error) {
	if !p.Enabled() {
		return 0, nil
	}
	if p.lock != nil {
		p.lock.Lock()
		defer p.lock.Unlock()
	}

	cutoff := p.now().AddDate(0, 0, -p.retentionDays)
	stale, err := p.catalog.StaleBackups(cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to list stale backups: %w", err)
	}

	removed := 0
	for _, sb := range stale {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		path := sb.Path
		if !p.store.contains(path) {
			p.logger.Warn("skipping backup outside backup root", "path", path, "root", p.store.root)
			continue
		}
		if info, err := p.store.fs.Stat(path); err == nil {
			if written := files.CreationTime(info); written.After(sb.BackedUpAt.Add(rewriteSlack)) {
				p.logger.Warn("skipping backup rewritten since it was journaled",
					"path", path, "journaled_at", sb.BackedUpAt, "written_at", written)
				continue
			}
		}
		if err := p.store.fs.Remove(path); err != nil && !os.IsNotExist(err) {
			return removed, fmt.Errorf("failed to remove backup %s: %w", path, err)
		}
		if err := p.catalog.MarkBackupPruned(path); err != nil {
			return removed, fmt.Errorf("failed to mark %s pruned: %w", path, err)
		}
		removed++
	}

	if removed > 0 {
		p.logger.Info("pruned old backups", "removed", removed, "retention_days", p.retentionDays)
	} else {
		p.logger.Debug("no backups pruned", "retention_days", p.retentionDays)
	}
	return removed, nil
}
