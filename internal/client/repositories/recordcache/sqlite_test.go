package recordcache

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"

	"github.com/carevault/carevault/internal/client/models"
	"github.com/carevault/carevault/internal/common"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`
CREATE TABLE records (
  period TEXT NOT NULL,
  subkey TEXT NOT NULL DEFAULT '',
  payload BLOB NOT NULL,
  version INTEGER NOT NULL DEFAULT 0,
  updated_at TIMESTAMP NOT NULL,
  PRIMARY KEY (period, subkey)
);
`)
	require.NoError(t, err)
	return db
}

func TestUpsert_InsertAndReplace(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, r.Upsert(ctx, &models.CachedRecord{
		Period: "2025-W14", Payload: []byte("ct1"), Version: 1, UpdatedAt: now,
	}))

	got, err := r.Get(ctx, "2025-W14", "")
	require.NoError(t, err)
	assert.Equal(t, []byte("ct1"), got.Payload)
	assert.Equal(t, int64(1), got.Version)

	// Replace by (period, subkey).
	require.NoError(t, r.Upsert(ctx, &models.CachedRecord{
		Period: "2025-W14", Payload: []byte("ct2"), Version: 2, UpdatedAt: now,
	}))
	got, err = r.Get(ctx, "2025-W14", "")
	require.NoError(t, err)
	assert.Equal(t, []byte("ct2"), got.Payload)
	assert.Equal(t, int64(2), got.Version)
}

func TestGet_SubkeySeparation(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	now := time.Now().UTC()
	require.NoError(t, r.Upsert(ctx, &models.CachedRecord{Period: "2025-W14", Payload: []byte("self"), UpdatedAt: now}))
	require.NoError(t, r.Upsert(ctx, &models.CachedRecord{Period: "2025-W14", Subkey: "mom", Payload: []byte("manual"), UpdatedAt: now}))

	got, err := r.Get(ctx, "2025-W14", "mom")
	require.NoError(t, err)
	assert.Equal(t, []byte("manual"), got.Payload)

	list, err := r.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestGet_NotFound(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))

	_, err := r.Get(context.Background(), "2025-W01", "")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestDeleteAndClear(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	now := time.Now().UTC()
	require.NoError(t, r.Upsert(ctx, &models.CachedRecord{Period: "2025-W14", Payload: []byte("a"), UpdatedAt: now}))
	require.NoError(t, r.Upsert(ctx, &models.CachedRecord{Period: "2025-W15", Payload: []byte("b"), UpdatedAt: now}))

	require.NoError(t, r.Delete(ctx, "2025-W14", ""))
	_, err := r.Get(ctx, "2025-W14", "")
	assert.ErrorIs(t, err, common.ErrorNotFound)

	require.NoError(t, r.Clear(ctx))
	list, err := r.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
}
