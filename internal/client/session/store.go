// Package session persists the CLI login between runs in a local SQLite
// database. At most one session is stored.
package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

var ErrNoSession = errors.New("no saved session")

type Session struct {
	Username     string
	AccessToken  string
	RefreshToken string
	UpdatedAt    time.Time
}

type Store interface {
	Load(ctx context.Context) (*Session, error)
	Save(ctx context.Context, s *Session) error
	Clear(ctx context.Context) error
}

type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db, now: time.Now}
}

// Load returns the saved session or ErrNoSession.
func (r *SQLiteStore) Load(ctx context.Context) (*Session, error) {
	var (
		s       Session
		updated int64
	)

	err := r.db.QueryRowContext(ctx,
		`SELECT username, access_token, refresh_token, updated_at FROM session WHERE id = 1`,
	).Scan(&s.Username, &s.AccessToken, &s.RefreshToken, &updated)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNoSession
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	s.UpdatedAt = time.Unix(updated, 0).UTC()
	return &s, nil
}

// Save replaces the stored session and stamps UpdatedAt.
func (r *SQLiteStore) Save(ctx context.Context, s *Session) error {
	s.UpdatedAt = r.now().UTC().Truncate(time.Second)

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO session (id, username, access_token, refresh_token, updated_at)
		VALUES (1, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			username = excluded.username,
			access_token = excluded.access_token,
			refresh_token = excluded.refresh_token,
			updated_at = excluded.updated_at`,
		s.Username, s.AccessToken, s.RefreshToken, s.UpdatedAt.Unix())
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *SQLiteStore) Clear(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM session`); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
