package store

const schema = `
CREATE TABLE IF NOT EXISTS cleanup_runs (
    id TEXT PRIMARY KEY,
    directory TEXT NOT NULL,
    started_at TEXT NOT NULL,
    finished_at TEXT NOT NULL,
    max_files INTEGER NOT NULL,
    scanned INTEGER NOT NULL,
    excess INTEGER NOT NULL,
    deleted INTEGER NOT NULL,
    bytes_cleaned INTEGER NOT NULL,
    interrupted BOOLEAN NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS file_outcomes (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id TEXT NOT NULL,
    path TEXT NOT NULL,
    size_bytes INTEGER NOT NULL,
    created_at TEXT NOT NULL,
    status TEXT NOT NULL,
    backup_path TEXT NOT NULL DEFAULT '',
    backed_up_at TEXT,
    error TEXT NOT NULL DEFAULT '',
    backup_pruned BOOLEAN NOT NULL DEFAULT 0,
    FOREIGN KEY (run_id) REFERENCES cleanup_runs(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_runs_started ON cleanup_runs(started_at);
CREATE INDEX IF NOT EXISTS idx_outcomes_run ON file_outcomes(run_id);
CREATE INDEX IF NOT EXISTS idx_outcomes_backup ON file_outcomes(backup_path);
`
