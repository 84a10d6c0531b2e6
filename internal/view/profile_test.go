package view

import (
	"context"
	"testing"

	"github.com/and161185/birdwatch/internal/apitest"
	"github.com/and161185/birdwatch/internal/badge"
	"github.com/and161185/birdwatch/internal/cache"
	"github.com/and161185/birdwatch/internal/errs"
	"github.com/and161185/birdwatch/internal/media"
	"github.com/and161185/birdwatch/internal/model"
	"github.com/and161185/birdwatch/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadProfile(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	be := apitest.New(t)
	robin := be.SeedUser("robin", "pw", "BASIC_USER")
	wren := be.SeedUser("wren", "pw", "BASIC_USER")
	heron := be.SeedBird("Great blue heron", "Ardea herodias")
	be.SeedPost(robin, "Heron", heron.ID, "")
	be.SeedGroup("Marsh Watchers", robin)
	be.Befriend(robin, wren)
	d, _ := newDeps(t, be)
	signIn(t, d, "wren", "pw")

	p, err := LoadProfile(ctx, d, robin.ID)
	require.NoError(t, err)
	assert.Equal(t, "robin", p.User.Username)
	require.Len(t, p.Friends, 1)
	require.Len(t, p.Groups, 1)
	require.Len(t, p.Posts, 1)
	require.NotEmpty(t, p.TopBirds)
	for _, b := range p.TopBirds {
		assert.NotEmpty(t, b.ID)
	}
	assert.Equal(t, be.URL()+media.DefaultProfilePicPath, p.Picture)
	assert.False(t, p.Self)
	assert.True(t, p.IsFriend)
	assert.False(t, p.CanFriend)

	require.Len(t, p.Badges, len(badge.Catalog))
	assert.True(t, p.Badges[0].Unlocked, "first sighting")
	assert.False(t, p.Badges[1].Unlocked)
}

func TestLoadProfile_MissingUser(t *testing.T) {
	t.Parallel()
	be := apitest.New(t)
	d, _ := newDeps(t, be)
	d.Session.Init(context.Background())

	_, err := LoadProfile(context.Background(), d, "u999")
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestFriendshipInvalidatesCache(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	be := apitest.New(t)
	robin := be.SeedUser("robin", "pw", "BASIC_USER")
	wren := be.SeedUser("wren", "pw", "BASIC_USER")
	d, _ := newDeps(t, be)
	signIn(t, d, "robin", "pw")

	p, err := LoadProfile(ctx, d, wren.ID)
	require.NoError(t, err)
	assert.True(t, p.CanFriend)

	require.NoError(t, Befriend(ctx, d, wren.ID))
	p, err = LoadProfile(ctx, d, wren.ID)
	require.NoError(t, err)
	assert.True(t, p.IsFriend)
	assert.True(t, p.User.HasFriend(robin.ID), "user record reloaded after the write")

	require.NoError(t, Unfriend(ctx, d, wren.ID))
	p, err = LoadProfile(ctx, d, wren.ID)
	require.NoError(t, err)
	assert.False(t, p.IsFriend)
}

func TestEditProfileReplacesIdentity(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	be := apitest.New(t)
	be.SeedUser("robin", "pw", "BASIC_USER")
	d, _ := newDeps(t, be)
	signIn(t, d, "robin", "pw")

	u, err := EditProfile(ctx, d, model.ProfileInput{FirstName: "Rob"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "Rob", u.FirstName)

	id, ok := d.Session.Identity()
	require.True(t, ok)
	assert.Equal(t, "Rob", id.FirstName)
	assert.Equal(t, session.Authenticated, d.Session.State())

	got, err := cache.Fetch(ctx, d.Cache, cache.Key{Kind: cache.KindUser, ID: id.ID}, func(context.Context) (*model.User, error) {
		t.Fatal("profile edit should have refreshed the cache")
		return nil, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "Rob", got.FirstName)
}

func TestOnboardClearsGate(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	be := apitest.New(t)
	d, _ := newDeps(t, be)
	d.Session.Init(ctx)

	_, err := d.Session.Signup(ctx, model.Credentials{Username: "fresh", Password: "pw"})
	require.NoError(t, err)
	assert.Equal(t, Route{Decision: Redirect, To: OnboardingPath}, Gate(d.Session.Snapshot(), "/feed"))

	_, err = Onboard(ctx, d, model.OnboardingInput{FirstName: "Fresh", LastName: "Bird", Location: "Boise, ID"}, nil)
	require.NoError(t, err)
	assert.Equal(t, Route{Decision: Allow, To: "/feed"}, Gate(d.Session.Snapshot(), "/feed"))
	id, _ := d.Session.Identity()
	assert.Equal(t, "Boise, ID", id.Location.String())
}

func TestSetRole(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	be := apitest.New(t)
	target := be.SeedUser("robin", "pw", "BASIC_USER")
	be.SeedUser("root", "pw", "SUPER_USER")
	d, _ := newDeps(t, be)
	signIn(t, d, "root", "pw")
	require.True(t, CanSetRole(d.Session.Snapshot()))

	u, err := SetRole(ctx, d, target.ID, "ADMIN_USER")
	require.NoError(t, err)
	assert.Equal(t, "ADMIN_USER", u.Role)

	assert.False(t, CanSetRole(session.Snapshot{State: session.Anonymous}))
}

func TestLoadProfile_ListFailuresShowEmpty(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	be := apitest.New(t)
	robin := be.SeedUser("robin", "pw", "BASIC_USER")
	wren := be.SeedUser("wren", "pw", "BASIC_USER")
	be.SeedPost(robin, "Heron", be.SeedBird("Great blue heron", "").ID, "")
	be.Befriend(robin, wren)
	d, _ := newDeps(t, be)
	d.Session.Init(ctx)

	be.Fail("GET /users/{id}/top-birds", 500, "")
	be.Fail("GET /users/{id}/friends", 500, `{"error":"boom"}`)
	p, err := LoadProfile(ctx, d, robin.ID)
	require.NoError(t, err)
	assert.Equal(t, "robin", p.User.Username)
	assert.Empty(t, p.TopBirds)
	assert.NotNil(t, p.TopBirds)
	assert.Empty(t, p.Friends)
	require.Len(t, p.Posts, 1)
	assert.True(t, p.Badges[0].Unlocked)
}
