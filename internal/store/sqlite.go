package store

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"sync"

	apperrors "github.com/FocuswithJustin/JuniperAlign/core/errors"
	"github.com/FocuswithJustin/JuniperAlign/core/sqlite"
	"github.com/FocuswithJustin/JuniperAlign/internal/logging"
)

const sqliteSchema = `CREATE TABLE IF NOT EXISTS items (
	key        TEXT PRIMARY KEY,
	value      BLOB NOT NULL,
	updated_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
)`

// SQLite stores items in a single table of a SQLite file.
type SQLite struct {
	path string

	mu sync.RWMutex
	db *sql.DB
}

// NewSQLite returns a store backed by the database file at path.
func NewSQLite(path string) *SQLite {
	return &SQLite{path: path}
}

func (s *SQLite) Initialize(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db != nil {
		return nil
	}

	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return apperrors.NewIO("create", dir, err)
		}
	}
	db, err := sqlite.Open(s.path)
	if err != nil {
		return apperrors.NewIO("open", s.path, err)
	}
	if err := sqlite.Configure(ctx, db, sqlite.DefaultPragmas()); err != nil {
		db.Close()
		return apperrors.NewIO("configure", s.path, err)
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return apperrors.NewIO("migrate", s.path, err)
	}
	s.db = db
	logging.Debug("sqlite store ready", "path", s.path, "driver", sqlite.DriverType())
	return nil
}

func (s *SQLite) IsReady() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.db != nil
}

func (s *SQLite) handle() (*sql.DB, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return nil, notReady(BackendSQLite)
	}
	return s.db, nil
}

func (s *SQLite) GetItem(ctx context.Context, key string) ([]byte, bool, error) {
	db, err := s.handle()
	if err != nil {
		return nil, false, err
	}
	var value []byte
	err = db.QueryRowContext(ctx, `SELECT value FROM items WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, apperrors.NewIO("read", key, err)
	}
	return value, true, nil
}

func (s *SQLite) SetItem(ctx context.Context, key string, value []byte) error {
	db, err := s.handle()
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx,
		`INSERT INTO items (key, value, updated_at) VALUES (?, ?, strftime('%s', 'now'))
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value)
	if err != nil {
		return apperrors.NewIO("write", key, err)
	}
	return nil
}

func (s *SQLite) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}
