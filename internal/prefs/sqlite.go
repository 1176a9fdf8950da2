package prefs

import (
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

// SQLite stores preferences as JSON encoded values keyed by their string key.
type SQLite struct {
	db  *sql.DB
	log zerolog.Logger
}

func OpenSQLite(dbPath string, log zerolog.Logger) (*SQLite, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS prefs (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLite{db: db, log: log.With().Str("prefs", dbPath).Logger()}, nil
}

func (s *SQLite) Lookup(key string) (any, bool) {
	var raw string
	err := s.db.QueryRow(`SELECT value FROM prefs WHERE key = ?`, key).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, false
	}
	if err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("failed to query pref")
		return nil, false
	}

	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("failed to decode pref")
		return nil, false
	}
	return v, true
}

func (s *SQLite) Put(key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode pref: %w", err)
	}

	query := `INSERT INTO prefs (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`
	if _, err := s.db.Exec(query, key, string(raw)); err != nil {
		return fmt.Errorf("failed to store pref: %w", err)
	}
	return nil
}

func (s *SQLite) Remove(key string) error {
	if _, err := s.db.Exec(`DELETE FROM prefs WHERE key = ?`, key); err != nil {
		return fmt.Errorf("failed to delete pref: %w", err)
	}
	return nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}
