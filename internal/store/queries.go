package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/blackwell-systems/dirwarden/internal/backup"
	"github.com/blackwell-systems/dirwarden/internal/cleanup"
)

// Run operations

// SaveReport journals a cleanup run and its per-file outcomes in a single
// transaction.
func (s *Store) SaveReport(rep *cleanup.Report) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO cleanup_runs
		(id, directory, started_at, finished_at, max_files, scanned, excess, deleted, bytes_cleaned, interrupted)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		rep.RunID.String(),
		rep.Directory,
		formatTime(rep.StartedAt),
		formatTime(rep.FinishedAt),
		rep.MaxFiles,
		rep.Scanned,
		rep.Excess,
		rep.Deleted(),
		int64(rep.BytesCleaned()),
		rep.Interrupted,
	)
	if err != nil {
		return wrapErr("failed to insert run", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO file_outcomes
		(run_id, path, size_bytes, created_at, status, backup_path, backed_up_at, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return wrapErr("failed to prepare outcome insert", err)
	}
	defer stmt.Close()

	for _, o := range rep.Outcomes {
		var backedUpAt sql.NullString
		if o.BackedUpAt != nil {
			backedUpAt = sql.NullString{String: formatTime(*o.BackedUpAt), Valid: true}
		}
		errMsg := ""
		if o.Err != nil {
			errMsg = o.Err.Error()
		}
		if _, err := stmt.Exec(
			rep.RunID.String(),
			o.Record.Path,
			int64(o.Record.SizeBytes),
			formatTime(o.Record.CreatedAt),
			string(o.Status),
			o.BackupPath,
			backedUpAt,
			errMsg,
		); err != nil {
			return fmt.Errorf("failed to insert outcome for %s: %w", o.Record.Path, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run: %w", err)
	}
	return nil
}

const runColumns = `id, directory, started_at, finished_at, max_files, scanned, excess, deleted, bytes_cleaned, interrupted`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	var r Run
	var startedAt, finishedAt string
	var bytesCleaned int64
	if err := row.Scan(
		&r.ID,
		&r.Directory,
		&startedAt,
		&finishedAt,
		&r.MaxFiles,
		&r.Scanned,
		&r.Excess,
		&r.Deleted,
		&bytesCleaned,
		&r.Interrupted,
	); err != nil {
		return nil, err
	}

	var err error
	if r.StartedAt, err = parseTime(startedAt); err != nil {
		return nil, fmt.Errorf("failed to parse started_at for run %s: %w", r.ID, err)
	}
	if r.FinishedAt, err = parseTime(finishedAt); err != nil {
		return nil, fmt.Errorf("failed to parse finished_at for run %s: %w", r.ID, err)
	}
	r.BytesCleaned = uint64(bytesCleaned)
	return &r, nil
}

// ListRuns returns the most recent runs first. limit <= 0 returns all runs.
func (s *Store) ListRuns(limit int) ([]*Run, error) {
	query := `SELECT ` + runColumns + ` FROM cleanup_runs ORDER BY started_at DESC, id`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, wrapErr("failed to list runs", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}
	return runs, nil
}

// GetRun returns the run whose ID is id or starts with id. An ambiguous
// prefix is an error.
func (s *Store) GetRun(id string) (*Run, error) {
	rows, err := s.db.Query(`SELECT `+runColumns+` FROM cleanup_runs WHERE id LIKE ? || '%' LIMIT 2`, id)
	if err != nil {
		return nil, wrapErr("failed to get run", err)
	}
	defer rows.Close()

	var found []*Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		found = append(found, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}

	switch len(found) {
	case 0:
		return nil, fmt.Errorf("run %s: %w", id, ErrNotFound)
	case 1:
		return found[0], nil
	default:
		return nil, fmt.Errorf("run id prefix %q is ambiguous", id)
	}
}

// Outcome operations

const outcomeColumns = `id, run_id, path, size_bytes, created_at, status, backup_path, backed_up_at, error, backup_pruned`

func scanOutcome(row rowScanner) (*Outcome, error) {
	var o Outcome
	var sizeBytes int64
	var createdAt string
	var backedUpAt sql.NullString
	if err := row.Scan(
		&o.ID,
		&o.RunID,
		&o.Path,
		&sizeBytes,
		&createdAt,
		&o.Status,
		&o.BackupPath,
		&backedUpAt,
		&o.Error,
		&o.BackupPruned,
	); err != nil {
		return nil, err
	}

	o.SizeBytes = uint64(sizeBytes)
	var err error
	if o.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("failed to parse created_at for %s: %w", o.Path, err)
	}
	if backedUpAt.Valid {
		t, err := parseTime(backedUpAt.String)
		if err != nil {
			return nil, fmt.Errorf("failed to parse backed_up_at for %s: %w", o.Path, err)
		}
		o.BackedUpAt = &t
	}
	return &o, nil
}

// ListOutcomes returns the outcomes of one run in processing order.
func (s *Store) ListOutcomes(runID string) ([]*Outcome, error) {
	rows, err := s.db.Query(`SELECT `+outcomeColumns+` FROM file_outcomes WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, wrapErr("failed to list outcomes", err)
	}
	defer rows.Close()

	var out []*Outcome
	for rows.Next() {
		o, err := scanOutcome(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan outcome: %w", err)
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating outcomes: %w", err)
	}
	return out, nil
}

// LatestOutcomeForBackup returns the most recent outcome that wrote
// backupPath, which records where the backed-up file originally lived.
func (s *Store) LatestOutcomeForBackup(backupPath string) (*Outcome, error) {
	row := s.db.QueryRow(`
		SELECT `+outcomeColumns+`
		FROM file_outcomes
		WHERE backup_path = ? AND backed_up_at IS NOT NULL
		ORDER BY backed_up_at DESC, id DESC
		LIMIT 1
	`, backupPath)

	o, err := scanOutcome(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("backup %s: %w", backupPath, ErrNotFound)
	}
	if err != nil {
		return nil, wrapErr("failed to look up backup", err)
	}
	return o, nil
}

// Totals aggregates every journaled run.
func (s *Store) Totals() (*Totals, error) {
	var t Totals
	var bytesCleaned int64
	var first, last sql.NullString

	err := s.db.QueryRow(`
		SELECT COUNT(*), COALESCE(SUM(deleted), 0), COALESCE(SUM(bytes_cleaned), 0),
		       MIN(started_at), MAX(started_at)
		FROM cleanup_runs
	`).Scan(&t.Runs, &t.FilesDeleted, &bytesCleaned, &first, &last)
	if err != nil {
		return nil, wrapErr("failed to compute totals", err)
	}
	t.BytesCleaned = uint64(bytesCleaned)

	if first.Valid {
		ts, err := parseTime(first.String)
		if err != nil {
			return nil, fmt.Errorf("failed to parse first run time: %w", err)
		}
		t.FirstRun = &ts
	}
	if last.Valid {
		ts, err := parseTime(last.String)
		if err != nil {
			return nil, fmt.Errorf("failed to parse last run time: %w", err)
		}
		t.LastRun = &ts
	}

	err = s.db.QueryRow(`
		SELECT
			COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0)
		FROM file_outcomes
	`, string(cleanup.StatusBackupFailed), string(cleanup.StatusDeleteFailed)).Scan(&t.BackupFailures, &t.DeleteFailures)
	if err != nil {
		return nil, wrapErr("failed to count failures", err)
	}

	return &t, nil
}

// Backup catalog operations

// StaleBackups returns the backups whose latest write is before cutoff and
// that have not been pruned, each with that latest write time.
func (s *Store) StaleBackups(cutoff time.Time) ([]backup.StaleBackup, error) {
	rows, err := s.db.Query(`
		SELECT backup_path, MAX(backed_up_at)
		FROM file_outcomes
		WHERE backup_path != '' AND backed_up_at IS NOT NULL
		GROUP BY backup_path
		HAVING MAX(backed_up_at) < ? AND MIN(backup_pruned) = 0
		ORDER BY backup_path
	`, formatTime(cutoff))
	if err != nil {
		return nil, wrapErr("failed to query stale backups", err)
	}
	defer rows.Close()

	var stale []backup.StaleBackup
	for rows.Next() {
		var path, latest string
		if err := rows.Scan(&path, &latest); err != nil {
			return nil, fmt.Errorf("failed to scan backup path: %w", err)
		}
		ts, err := parseTime(latest)
		if err != nil {
			return nil, fmt.Errorf("failed to parse backup time for %s: %w", path, err)
		}
		stale = append(stale, backup.StaleBackup{Path: path, BackedUpAt: ts})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating backups: %w", err)
	}
	return stale, nil
}

// MarkBackupPruned flags every outcome that wrote backupPath as pruned.
func (s *Store) MarkBackupPruned(backupPath string) error {
	_, err := s.db.Exec(`UPDATE file_outcomes SET backup_pruned = 1 WHERE backup_path = ?`, backupPath)
	return wrapErr("failed to mark backup pruned", err)
}
