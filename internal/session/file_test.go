package session

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/and161185/birdwatch/internal/apitest"
	"github.com/and161185/birdwatch/internal/errs"
	"github.com/and161185/birdwatch/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeToken(t *testing.T) {
	t.Parallel()
	be := apitest.New(t)
	u := be.SeedUser("robin", "pw", "SUPER_USER")

	info, err := DecodeToken(be.Token(u))
	require.NoError(t, err)
	assert.Equal(t, u.ID, info.Subject)
	assert.Equal(t, "robin", info.Username)
	assert.Equal(t, "SUPER_USER", info.Role)
	assert.WithinDuration(t, time.Now().Add(time.Hour), info.ExpiresAt, time.Minute)

	_, err = DecodeToken("not-a-jwt")
	assert.Error(t, err)
}

func TestFileStore_SaveLoad(t *testing.T) {
	t.Parallel()
	dir := filepath.Join(t.TempDir(), "birdwatch")
	fs := NewFileStore(dir)

	_, err := fs.Load()
	require.ErrorIs(t, err, errs.ErrNoSession)

	id := &model.Identity{ID: "u1", Username: "robin"}
	require.NoError(t, fs.Save("opaque", id))

	st, err := os.Stat(fs.Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), st.Mode().Perm())

	got, err := fs.Load()
	require.NoError(t, err)
	assert.Equal(t, "opaque", got.Token)
	assert.Equal(t, "robin", got.Identity.Username)
	assert.WithinDuration(t, time.Now().Add(DefaultTTL), got.ExpiresAt, time.Minute)

	require.NoError(t, fs.Clear())
	require.NoError(t, fs.Clear())
	_, err = fs.Load()
	require.ErrorIs(t, err, errs.ErrNoSession)
}

func TestFileStore_ExpiryFromToken(t *testing.T) {
	t.Parallel()
	be := apitest.New(t)
	be.TTL = 10 * time.Minute
	u := be.SeedUser("robin", "pw", "BASIC_USER")
	tok := be.Token(u)

	fs := NewFileStore(t.TempDir())
	require.NoError(t, fs.Save(tok, nil))
	_, err := fs.Load()
	require.NoError(t, err)

	fs.WithClock(func() time.Time { return time.Now().Add(11 * time.Minute) })
	_, err = fs.Load()
	require.ErrorIs(t, err, errs.ErrNoSession)
}

func TestFileStore_Corrupt(t *testing.T) {
	t.Parallel()
	fs := NewFileStore(t.TempDir())
	require.NoError(t, os.WriteFile(fs.Path(), []byte("{"), 0o600))
	_, err := fs.Load()
	require.Error(t, err)
	assert.NotErrorIs(t, err, errs.ErrNoSession)
}
