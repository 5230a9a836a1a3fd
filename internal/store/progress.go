package store

import (
	"database/sql"
	"fmt"
	"time"
)

// ProgressStore persists the progress cache as rows of a flat key/value
// table. It satisfies progress.Store.
type ProgressStore struct {
	db *sql.DB
}

func NewProgressStore(db *sql.DB) *ProgressStore {
	return &ProgressStore{db: db}
}

func (s *ProgressStore) Get(key string) (string, bool, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM progress_cache WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get progress %q: %w", key, err)
	}
	return value, true, nil
}

// Set upserts every key in one transaction.
func (s *ProgressStore) Set(values map[string]string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	for key, value := range values {
		_, err := tx.Exec(
			`INSERT INTO progress_cache (key, value, updated_at) VALUES (?, ?, ?)
			 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
			key, value, now,
		)
		if err != nil {
			return fmt.Errorf("set progress %q: %w", key, err)
		}
	}
	return tx.Commit()
}

func (s *ProgressStore) Clear(keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, key := range keys {
		if _, err := tx.Exec(`DELETE FROM progress_cache WHERE key = ?`, key); err != nil {
			return fmt.Errorf("clear progress %q: %w", key, err)
		}
	}
	return tx.Commit()
}
