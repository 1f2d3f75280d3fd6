// Package settings persists counter fields under named keys in a SQLite
// database shared by every fatrack process on the device (CLI, serve,
// widget). It is the cross-process analog of a shared preferences suite.
package settings

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS settings (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
)`

type Store struct {
	path string
	db   *sql.DB
}

// Open creates the database (and its directory) when missing and ensures the
// settings table exists.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open settings database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create settings table: %w", err)
	}

	return &Store{path: path, db: db}, nil
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Path returns the database location.
func (s *Store) Path() string {
	return s.path
}

// String returns the stored value for key, or def when the key is absent.
func (s *Store) String(key, def string) (string, error) {
	var value string
	err := s.db.QueryRow("SELECT value FROM settings WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return def, nil
	}
	if err != nil {
		return def, fmt.Errorf("failed to read setting %q: %w", key, err)
	}
	return value, nil
}

func (s *Store) SetString(key, value string) error {
	if _, err := s.db.Exec("INSERT OR REPLACE INTO settings (key, value) VALUES (?, ?)", key, value); err != nil {
		return fmt.Errorf("failed to write setting %q: %w", key, err)
	}
	return nil
}

func (s *Store) Float(key string, def float64) (float64, error) {
	raw, err := s.String(key, "")
	if err != nil || raw == "" {
		return def, err
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return def, fmt.Errorf("setting %q is not a number: %w", key, err)
	}
	return v, nil
}

func (s *Store) SetFloat(key string, value float64) error {
	return s.SetString(key, strconv.FormatFloat(value, 'f', -1, 64))
}

func (s *Store) Int(key string, def int) (int, error) {
	raw, err := s.String(key, "")
	if err != nil || raw == "" {
		return def, err
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def, fmt.Errorf("setting %q is not an integer: %w", key, err)
	}
	return v, nil
}

func (s *Store) SetInt(key string, value int) error {
	return s.SetString(key, strconv.Itoa(value))
}

func (s *Store) Int64(key string, def int64) (int64, error) {
	raw, err := s.String(key, "")
	if err != nil || raw == "" {
		return def, err
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return def, fmt.Errorf("setting %q is not an integer: %w", key, err)
	}
	return v, nil
}

func (s *Store) SetInt64(key string, value int64) error {
	return s.SetString(key, strconv.FormatInt(value, 10))
}

func (s *Store) Bool(key string, def bool) (bool, error) {
	raw, err := s.String(key, "")
	if err != nil || raw == "" {
		return def, err
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return def, fmt.Errorf("setting %q is not a boolean: %w", key, err)
	}
	return v, nil
}

func (s *Store) SetBool(key string, value bool) error {
	return s.SetString(key, strconv.FormatBool(value))
}
