package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/and161185/birdwatch/internal/cache"
	"github.com/and161185/birdwatch/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDB_GetPutDelete(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	db, err := New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	k := cache.Key{Kind: cache.KindBird, ID: "b1"}
	_, err = db.Get(ctx, k)
	require.ErrorIs(t, err, cache.ErrMiss)

	at := time.Unix(1_700_000_000, 42)
	require.NoError(t, db.Put(ctx, k, cache.Entry{Data: []byte(`{"id":"b1"}`), StoredAt: at}))
	require.NoError(t, db.Put(ctx, k, cache.Entry{Data: []byte(`{"id":"b1","commonName":"Robin"}`), StoredAt: at}))

	e, err := db.Get(ctx, k)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"b1","commonName":"Robin"}`, string(e.Data))
	assert.True(t, at.Equal(e.StoredAt))

	require.NoError(t, db.Delete(ctx, k))
	_, err = db.Get(ctx, k)
	require.ErrorIs(t, err, cache.ErrMiss)
}

func TestDB_SurvivesReopen(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "cache.db")

	db, err := New(path)
	require.NoError(t, err)
	c := cache.New(db, time.Hour)
	require.NoError(t, c.Put(ctx, cache.Key{Kind: cache.KindUser, ID: "u1"}, model.User{ID: "u1", Username: "robin"}))
	require.NoError(t, db.Close())

	db, err = New(path)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	c = cache.New(db, time.Hour)

	u, err := cache.Fetch(ctx, c, cache.Key{Kind: cache.KindUser, ID: "u1"}, func(context.Context) (*model.User, error) {
		t.Fatal("loaded from backend despite a fresh entry")
		return nil, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "robin", u.Username)
}
