// Package state persists compile runs in a SQLite artifact store: the
// diagnostics, published catalog and column lineage of every saved run.
package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

// ErrNotFound is returned when a requested run does not exist.
var ErrNotFound = errors.New("run not found")

// Store is the SQLite artifact store.
type Store struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
}

// Open opens or creates the store at path. Use ":memory:" for an in-memory
// store. Missing parent directories are created.
// If logger is nil, a discard logger is used.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0750); err != nil {
				return nil, fmt.Errorf("failed to create state directory: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite", buildDSN(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// One connection: writes are serialized and ":memory:" stays one database.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping sqlite database: %w", err)
	}

	s := New(db, logger)
	s.path = path
	return s, nil
}

// New wraps an open database handle.
func New(db *sql.DB, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Store{db: db, logger: logger}
}

// Path returns the path the store was opened with.
func (s *Store) Path() string { return s.path }

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func buildDSN(path string) string {
	params := url.Values{}
	params.Add("_pragma", "foreign_keys(1)")
	params.Add("_pragma", "busy_timeout(5000)")
	if path != ":memory:" {
		params.Add("_pragma", "journal_mode(WAL)")
	}
	return path + "?" + params.Encode()
}
