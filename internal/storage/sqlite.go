package storage

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// DB wraps a sql.DB connection to a SQLite database.
type DB struct {
	db *sql.DB
}

// NewDB opens (or creates) a SQLite database at path and runs schema migrations.
func NewDB(path string) (*DB, error) {
	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	// Enable foreign keys.
	if _, err := sqlDB.Exec("PRAGMA foreign_keys = ON"); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	d := &DB{db: sqlDB}
	if err := d.migrate(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return d, nil
}

// Close closes the underlying database connection.
func (d *DB) Close() error {
	return d.db.Close()
}

// migrate creates all required tables if they do not already exist.
//
// The partial unique index on vouches enforces the single-active-edge
// invariant at the database level: re-vouching must update the existing
// row, and concurrent inserts for the same pair cannot both succeed.
func (d *DB) migrate() error {
	schema := `
CREATE TABLE IF NOT EXISTS agents (
    id TEXT PRIMARY KEY,
    verified INTEGER DEFAULT 0,
    reputation_score INTEGER DEFAULT 0,
    trust_tier TEXT DEFAULT 'newcomer',
    tasks_completed INTEGER DEFAULT 0,
    tasks_failed INTEGER DEFAULT 0,
    avg_review_rating REAL DEFAULT 0,
    review_count INTEGER DEFAULT 0,
    vouch_count INTEGER DEFAULT 0,
    vouched_by_count INTEGER DEFAULT 0,
    registered_at INTEGER NOT NULL,
    last_activity_at INTEGER NOT NULL,
    reputation_updated_at INTEGER DEFAULT 0
);

CREATE TABLE IF NOT EXISTS vouches (
    id TEXT PRIMARY KEY,
    voucher_id TEXT NOT NULL,
    vouchee_id TEXT NOT NULL,
    strength INTEGER NOT NULL,
    message TEXT,
    category TEXT,
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL,
    expires_at INTEGER,
    revoked_at INTEGER,
    FOREIGN KEY (voucher_id) REFERENCES agents(id),
    FOREIGN KEY (vouchee_id) REFERENCES agents(id)
);

CREATE TABLE IF NOT EXISTS reviews (
    id TEXT PRIMARY KEY,
    task_id TEXT NOT NULL,
    reviewer_id TEXT NOT NULL,
    reviewee_id TEXT NOT NULL,
    rating INTEGER NOT NULL,
    comment TEXT,
    created_at INTEGER NOT NULL,
    UNIQUE(task_id, reviewer_id)
);

CREATE TABLE IF NOT EXISTS tasks (
    id TEXT PRIMARY KEY,
    requester_id TEXT NOT NULL,
    claimer_id TEXT,
    status TEXT NOT NULL DEFAULT 'open',
    created_at INTEGER NOT NULL,
    completed_at INTEGER DEFAULT 0
);

CREATE TABLE IF NOT EXISTS reputation_history (
    id TEXT PRIMARY KEY,
    agent_id TEXT NOT NULL,
    score INTEGER NOT NULL,
    breakdown TEXT NOT NULL,
    reason TEXT NOT NULL,
    created_at INTEGER NOT NULL,
    FOREIGN KEY (agent_id) REFERENCES agents(id)
);

CREATE TABLE IF NOT EXISTS trust_path_cache (
    from_id TEXT NOT NULL,
    to_id TEXT NOT NULL,
    path TEXT NOT NULL,
    path_length INTEGER NOT NULL,
    trust_score REAL NOT NULL,
    calculated_at INTEGER NOT NULL,
    PRIMARY KEY (from_id, to_id)
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_vouches_active_pair
    ON vouches(voucher_id, vouchee_id) WHERE revoked_at IS NULL;
CREATE INDEX IF NOT EXISTS idx_vouches_voucher ON vouches(voucher_id);
CREATE INDEX IF NOT EXISTS idx_vouches_vouchee ON vouches(vouchee_id);
CREATE INDEX IF NOT EXISTS idx_reviews_reviewee ON reviews(reviewee_id);
CREATE INDEX IF NOT EXISTS idx_history_agent ON reputation_history(agent_id);
CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status);`
	_, err := d.db.Exec(schema)
	return err
}

// boolToInt converts a bool to an integer (0 or 1) for SQLite storage.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
