package kv

import (
	"database/sql"
	"errors"
	"fmt"
)

// SQLite stores values in the kv table created by db.Open.
type SQLite struct {
	db *sql.DB
}

// NewSQLite returns a substrate over an opened database.
func NewSQLite(db *sql.DB) *SQLite {
	return &SQLite{db: db}
}

// Get implements Substrate.
func (s *SQLite) Get(key string) ([]byte, bool, error) {
	var value []byte
	err := s.db.QueryRow(`SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("reading key %s: %v: %w", key, err, ErrUnavailable)
	}
	return value, true, nil
}

// Set implements Substrate.
func (s *SQLite) Set(key string, value []byte) error {
	_, err := s.db.Exec(`
		INSERT INTO kv (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("writing key %s: %v: %w", key, err, ErrUnavailable)
	}
	return nil
}
