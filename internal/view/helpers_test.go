package view

import (
	"context"
	"testing"
	"time"

	"github.com/and161185/birdwatch/internal/api"
	"github.com/and161185/birdwatch/internal/apitest"
	"github.com/and161185/birdwatch/internal/cache"
	"github.com/and161185/birdwatch/internal/guard"
	"github.com/and161185/birdwatch/internal/media"
	"github.com/and161185/birdwatch/internal/metrics"
	"github.com/and161185/birdwatch/internal/model"
	"github.com/and161185/birdwatch/internal/session"
	"github.com/stretchr/testify/require"
)

func newDeps(t *testing.T, be *apitest.Backend) (Deps, *metrics.Recorder) {
	t.Helper()
	rec := metrics.New()
	c, err := api.New(be.URL(), api.WithMetrics(rec))
	require.NoError(t, err)
	return Deps{
		API:     c,
		Session: session.New(c.Auth, nil),
		Guard:   guard.New(rec),
		Cache:   cache.New(cache.NewMemory(), time.Minute, cache.WithMetrics(rec)),
		Media:   media.NewResolver(be.URL()),
	}, rec
}

func signIn(t *testing.T, d Deps, username, password string) model.Identity {
	t.Helper()
	d.Session.Init(context.Background())
	id, err := d.Session.Login(context.Background(), model.Credentials{Username: username, Password: password})
	require.NoError(t, err)
	return id
}
