package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const syncTokenKey = "matrix_next_batch"

// GetState reads one bot_state value. A missing key returns "".
func (s *Store) GetState(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		"SELECT value FROM bot_state WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read state %q: %w", key, err)
	}
	return value, nil
}

// SetState upserts one bot_state value.
func (s *Store) SetState(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO bot_state (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, value, time.Now())
	if err != nil {
		return fmt.Errorf("write state %q: %w", key, err)
	}
	return nil
}

// SyncToken returns the stored Matrix next-batch token, or "" on a fresh
// database.
func (s *Store) SyncToken(ctx context.Context) (string, error) {
	return s.GetState(ctx, syncTokenKey)
}

// SaveSyncToken persists the Matrix next-batch token so a restart resumes
// from where the last sync left off instead of replaying old messages.
func (s *Store) SaveSyncToken(ctx context.Context, token string) error {
	return s.SetState(ctx, syncTokenKey, token)
}
