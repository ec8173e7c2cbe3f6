// Package store persists settings in SQLite. It is the fallback source of
// the Obsidian configuration when the config file carries no API key, and
// the place updateConfig writes to.
package store

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/ibeckermayer/tweetsaver/internal/types"
)

// Setting keys.
const (
	KeyAPIKey      = "apiKey"
	KeyBaseURL     = "baseUrl"
	KeyDefaultBase = "defaultBase"
)

// Store handles all database operations
type Store struct {
	db *sql.DB
}

// New creates a new Store with SQLite backend
func New(dbPath string) (*Store, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Get returns the value stored under key and whether it exists
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

// Set inserts or updates a list of key/value pairs in one transaction
func (s *Store) Set(ctx context.Context, kv map[string]string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for k, v := range kv {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO settings (key, value) VALUES (?, ?)
			ON CONFLICT(key) DO UPDATE SET
				value = excluded.value,
				updated_at = CURRENT_TIMESTAMP
		`, k, v)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// LoadConfiguration reads the Obsidian settings. Absent keys get their
// defaults.
func (s *Store) LoadConfiguration(ctx context.Context) (types.Configuration, error) {
	var cfg types.Configuration
	fields := []struct {
		key string
		dst *string
	}{
		{KeyAPIKey, &cfg.APIKey},
		{KeyBaseURL, &cfg.BaseURL},
		{KeyDefaultBase, &cfg.DefaultGroupName},
	}
	for _, f := range fields {
		v, _, err := s.Get(ctx, f.key)
		if err != nil {
			return types.Configuration{}, err
		}
		*f.dst = v
	}
	return cfg.WithDefaults(), nil
}

// SaveCredentials persists the API key and base address
func (s *Store) SaveCredentials(ctx context.Context, apiKey, baseURL string) error {
	if baseURL == "" {
		baseURL = types.DefaultBaseURL
	}
	return s.Set(ctx, map[string]string{
		KeyAPIKey:  apiKey,
		KeyBaseURL: baseURL,
	})
}

// SaveDefaultBase persists the selected base name
func (s *Store) SaveDefaultBase(ctx context.Context, name string) error {
	return s.Set(ctx, map[string]string{KeyDefaultBase: name})
}
