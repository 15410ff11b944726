package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// currentSchemaVersion is the latest schema version.
// Bump this when adding migrations.
const currentSchemaVersion = 1

// SQLiteLedger stores memory records in a local SQLite database. It backs
// deployments that have no remote table available and all ledger tests.
type SQLiteLedger struct {
	db *sql.DB
}

// OpenSQLite initializes the SQLite ledger at baseDir/auditor.db.
// The baseDir parameter allows tests to use t.TempDir().
func OpenSQLite(baseDir string) (*SQLiteLedger, error) {
	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create ledger directory: %w", err)
	}

	// Pragmas in the connection string apply to all pooled connections.
	dbPath := filepath.Join(baseDir, "auditor.db")
	dsn := dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger database: %w", err)
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}

	// Restrict permissions after the file exists (best-effort).
	_ = os.Chmod(dbPath, 0600)

	return &SQLiteLedger{db: db}, nil
}

// migrate applies schema migrations based on user_version.
func migrate(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	// Migration 0 -> 1: initial schema
	if version < 1 {
		schema := `
		CREATE TABLE IF NOT EXISTS sales_memory (
		  path             TEXT PRIMARY KEY,
		  owner            TEXT NOT NULL,
		  last_fingerprint TEXT NOT NULL,
		  last_summary     TEXT NOT NULL,
		  updated_at       INTEGER NOT NULL
		);
		`
		if _, err := db.Exec(schema); err != nil {
			return fmt.Errorf("failed to apply schema v1: %w", err)
		}
		if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
			return fmt.Errorf("failed to set schema version: %w", err)
		}
	}

	return nil
}

// Get returns the record for path, or (nil, nil) if none exists.
func (l *SQLiteLedger) Get(ctx context.Context, path string) (*Record, error) {
	query := `
		SELECT path, owner, last_fingerprint, last_summary, updated_at
		FROM sales_memory
		WHERE path = ?
	`
	row := l.db.QueryRowContext(ctx, query, path)

	var rec Record
	var updatedAt int64
	err := row.Scan(&rec.Path, &rec.Owner, &rec.LastFingerprint, &rec.LastSummary, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ledger lookup for %s failed: %w", path, err)
	}

	rec.UpdatedAt = time.Unix(updatedAt, 0)
	return &rec, nil
}

// Upsert inserts or replaces the record keyed by Path, last-writer-wins.
func (l *SQLiteLedger) Upsert(ctx context.Context, rec *Record) error {
	now := time.Now()
	query := `
		INSERT INTO sales_memory (path, owner, last_fingerprint, last_summary, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
		  owner            = excluded.owner,
		  last_fingerprint = excluded.last_fingerprint,
		  last_summary     = excluded.last_summary,
		  updated_at       = excluded.updated_at
	`
	_, err := l.db.ExecContext(ctx, query, rec.Path, rec.Owner, rec.LastFingerprint, rec.LastSummary, now.Unix())
	if err != nil {
		return fmt.Errorf("ledger upsert for %s failed: %w", rec.Path, err)
	}

	rec.UpdatedAt = now
	return nil
}

// Close closes the underlying database.
func (l *SQLiteLedger) Close() error {
	return l.db.Close()
}
