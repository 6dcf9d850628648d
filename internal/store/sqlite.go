package store

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements CacheStore on a local SQLite database.
type SQLiteStore struct {
	db *sqlx.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath,
// enables WAL mode, and runs any pending schema migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// runMigrations checks the current schema version and applies any
// outstanding migrations in order.
func (s *SQLiteStore) runMigrations() error {
	currentVersion := 0

	var tableCount int
	err := s.db.Get(
		&tableCount,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	)
	if err != nil {
		return fmt.Errorf("checking schema_version table: %w", err)
	}

	if tableCount > 0 {
		err = s.db.Get(&currentVersion, "SELECT COALESCE(MAX(version), 0) FROM schema_version")
		if err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if _, err := s.db.Exec(m.sql); err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
	}

	return nil
}

// ReplaceCache atomically replaces the persisted response-cache table
// with rows.
func (s *SQLiteStore) ReplaceCache(ctx context.Context, rows []CacheRow) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM response_cache"); err != nil {
		return fmt.Errorf("clearing response cache: %w", err)
	}

	const query = `
		INSERT INTO response_cache (key, payload, created_at, ttl_ns)
		VALUES (?, ?, ?, ?)`

	for _, row := range rows {
		_, err := tx.ExecContext(ctx, query,
			row.Key, row.Payload, row.CreatedAt.UTC(), int64(row.TTL),
		)
		if err != nil {
			return fmt.Errorf("persisting cache entry %q: %w", row.Key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing cache replace: %w", err)
	}

	return nil
}

// LoadCache returns every persisted cache entry.
func (s *SQLiteStore) LoadCache(ctx context.Context) ([]CacheRow, error) {
	var rows []CacheRow
	err := s.db.SelectContext(ctx, &rows,
		"SELECT key, payload, created_at, ttl_ns FROM response_cache",
	)
	if err != nil {
		return nil, fmt.Errorf("loading response cache: %w", err)
	}
	return rows, nil
}
