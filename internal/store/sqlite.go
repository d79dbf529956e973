package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

// DefaultGraphName is the document name used when none is configured.
const DefaultGraphName = "default"

// currentSchemaVersion tracks PRAGMA user_version:
// 1 - journey_graphs table
const currentSchemaVersion = 1

const schemaV1 = `
CREATE TABLE IF NOT EXISTS journey_graphs (
	name       TEXT PRIMARY KEY,
	document   TEXT NOT NULL,
	updated_at TEXT NOT NULL
)`

// SQLiteGraphStore implements GraphStore with one row per named document.
type SQLiteGraphStore struct {
	db   *sql.DB
	name string
}

// NewSQLiteGraphStore opens (creating if needed) the database at dbPath and
// stores the graph under the given document name.
func NewSQLiteGraphStore(dbPath, name string) (*SQLiteGraphStore, error) {
	if name == "" {
		name = DefaultGraphName
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// A single connection serializes writers and avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxIdleTime(10 * time.Minute)

	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := migrate(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteGraphStore{db: db, name: name}, nil
}

// migrate applies schema versions sequentially based on user_version.
func migrate(ctx context.Context, db *sql.DB) error {
	var version int
	if err := db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}

	if version < 1 {
		if _, err := db.ExecContext(ctx, schemaV1); err != nil {
			return fmt.Errorf("migrate to v1: %w", err)
		}
	}

	if _, err := db.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return nil
}

// Load reads the named document.
func (s *SQLiteGraphStore) Load(ctx context.Context) (Graph, error) {
	var document string
	err := s.db.QueryRowContext(ctx,
		`SELECT document FROM journey_graphs WHERE name = ?`, s.name).Scan(&document)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Graph{}, ErrNotFound
		}
		return Graph{}, fmt.Errorf("query journey graph: %w", err)
	}

	g, err := DecodeGraph([]byte(document))
	if err != nil {
		return Graph{}, fmt.Errorf("journey graph %q: %w", s.name, err)
	}
	return g, nil
}

// Save upserts the named document.
func (s *SQLiteGraphStore) Save(ctx context.Context, g Graph) error {
	data, err := EncodeGraph(g)
	if err != nil {
		return err
	}

	updatedAt := time.Now().UTC()
	if g.UpdatedAt != nil {
		updatedAt = g.UpdatedAt.UTC()
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO journey_graphs (name, document, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			document = excluded.document,
			updated_at = excluded.updated_at
	`, s.name, string(data), updatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("save journey graph: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteGraphStore) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}
