package session

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tableExists(t *testing.T, db *sql.DB, name string) bool {
	t.Helper()
	var n int
	err := db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?`, name).Scan(&n)
	require.NoError(t, err)
	return n > 0
}

func newStore(t *testing.T) (*SQLiteStore, *sql.DB) {
	t.Helper()

	db, err := InitDatabase(context.Background(), filepath.Join(t.TempDir(), "session.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return NewSQLiteStore(db), db
}

func TestInitDatabase_CreatesTables(t *testing.T) {
	_, db := newStore(t)

	assert.True(t, tableExists(t, db, "goose_db_version"))
	assert.True(t, tableExists(t, db, "session"))
}

func TestRunMigrations_IsIdempotent(t *testing.T) {
	_, db := newStore(t)

	require.NoError(t, RunMigrations(context.Background(), db))
	assert.True(t, tableExists(t, db, "session"))
}

func TestLoad_Empty(t *testing.T) {
	s, _ := newStore(t)

	got, err := s.Load(context.Background())
	assert.ErrorIs(t, err, ErrNoSession)
	assert.Nil(t, got)
}

func TestSaveLoadClear(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()
	fixed := time.Date(2025, 3, 4, 5, 6, 7, 0, time.UTC)
	s.now = func() time.Time { return fixed }

	require.NoError(t, s.Save(ctx, &Session{Username: "janed", AccessToken: "a1", RefreshToken: "r1"}))

	got, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, &Session{Username: "janed", AccessToken: "a1", RefreshToken: "r1", UpdatedAt: fixed}, got)

	// second save replaces the single row
	require.NoError(t, s.Save(ctx, &Session{Username: "janed", AccessToken: "a2", RefreshToken: "r2"}))
	got, err = s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "a2", got.AccessToken)
	assert.Equal(t, "r2", got.RefreshToken)

	require.NoError(t, s.Clear(ctx))
	_, err = s.Load(ctx)
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestStore_ClosedDB(t *testing.T) {
	s, db := newStore(t)
	require.NoError(t, db.Close())

	_, err := s.Load(context.Background())
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoSession)

	assert.Error(t, s.Save(context.Background(), &Session{}))
	assert.Error(t, s.Clear(context.Background()))
}
