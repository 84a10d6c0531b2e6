package api

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/and161185/birdwatch/internal/apitest"
	"github.com/and161185/birdwatch/internal/errs"
	"github.com/and161185/birdwatch/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBirds_CRUD(t *testing.T) {
	t.Parallel()
	be := apitest.New(t)
	admin := be.SeedUser("ada", "pw", "ADMIN_USER")
	c := loggedIn(t, be, admin)
	ctx := context.Background()

	created, err := c.Birds.Create(ctx, model.BirdInput{CommonName: "Kestrel", ScientificName: "Falco tinnunculus"},
		&model.Upload{Filename: "k.jpg", Body: strings.NewReader("jpeg")})
	require.NoError(t, err)
	assert.Equal(t, "/bird_images/k.jpg", created.ImageURL)

	got, err := c.Birds.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Kestrel", got.CommonName)

	found, err := c.Birds.Search(ctx, "falco")
	require.NoError(t, err)
	require.Len(t, found, 1)

	upd, err := c.Birds.Update(ctx, created.ID, model.BirdInput{CommonName: "Common Kestrel"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "Common Kestrel", upd.CommonName)
	assert.Equal(t, "/bird_images/k.jpg", upd.ImageURL)

	require.NoError(t, c.Birds.Delete(ctx, created.ID))
	all, err := c.Birds.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestBirds_DeleteForbiddenForBasicUser(t *testing.T) {
	t.Parallel()
	be := apitest.New(t)
	u := be.SeedUser("bob", "pw", "BASIC_USER")
	b := be.SeedBird("Robin", "")
	c := loggedIn(t, be, u)

	err := c.Birds.Delete(context.Background(), b.ID)
	require.ErrorIs(t, err, errs.ErrUnauthorized)
	assert.Equal(t, "Only admins can delete birds", Message(err))
}

func TestUsers_FriendsAndRole(t *testing.T) {
	t.Parallel()
	be := apitest.New(t)
	a := be.SeedUser("a", "pw", "SUPER_USER")
	b := be.SeedUser("b", "pw", "BASIC_USER")
	c := loggedIn(t, be, a)
	ctx := context.Background()

	require.NoError(t, c.Users.AddFriend(ctx, a.ID, b.ID))
	friends, err := c.Users.Friends(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, friends, 1)
	assert.Equal(t, b.ID, friends[0].ID)

	require.NoError(t, c.Users.RemoveFriend(ctx, a.ID, b.ID))
	friends, err = c.Users.Friends(ctx, a.ID)
	require.NoError(t, err)
	assert.Empty(t, friends)

	u, err := c.Users.UpdateRole(ctx, b.ID, "ADMIN_USER")
	require.NoError(t, err)
	assert.Equal(t, "ADMIN_USER", u.Role)

	_, err = c.Users.UpdateRole(ctx, b.ID, "ROOT")
	require.ErrorIs(t, err, errs.ErrValidation)
	assert.Equal(t, 1, be.Calls("PATCH /users/{id}/role"))
}

func TestUsers_ProfileAndOnboarding(t *testing.T) {
	t.Parallel()
	be := apitest.New(t)
	c := newClient(t, be.URL())
	ctx := context.Background()

	id, err := c.Auth.Signup(ctx, model.Credentials{Username: "wren", Password: "pw"})
	require.NoError(t, err)
	require.True(t, id.NeedsOnboarding())

	done, err := c.Users.Onboard(ctx, model.OnboardingInput{FirstName: "Jenny", LastName: "Wren", Location: "Boise, ID"},
		&model.Upload{Filename: "me.png", Body: strings.NewReader("png")})
	require.NoError(t, err)
	assert.False(t, done.NeedsOnboarding())
	assert.Equal(t, "Boise, ID", done.Location.String())
	assert.Equal(t, "/profile_pictures/me.png", done.ProfilePic)

	u, err := c.Users.UpdateProfile(ctx, id.ID, model.ProfileInput{FirstName: "Jen"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "Jen", u.FirstName)
	assert.Equal(t, "Wren", u.LastName)

	_, err = c.Users.Onboard(ctx, model.OnboardingInput{FirstName: "x"}, nil)
	require.ErrorIs(t, err, errs.ErrValidation)
}

func TestGroups_Lifecycle(t *testing.T) {
	t.Parallel()
	be := apitest.New(t)
	owner := be.SeedUser("owner", "pw", "BASIC_USER")
	joiner := be.SeedUser("joiner", "pw", "BASIC_USER")
	co := loggedIn(t, be, owner)
	cj := loggedIn(t, be, joiner)
	ctx := context.Background()

	g, err := co.Groups.Create(ctx, owner.ID, model.GroupInput{Name: "Raptors", Description: "hawks"}, nil)
	require.NoError(t, err)
	assert.Equal(t, owner.ID, g.Owner.UserID)

	require.NoError(t, cj.Groups.RequestJoin(ctx, g.ID, joiner.ID))
	err = cj.Groups.RequestJoin(ctx, g.ID, joiner.ID)
	require.ErrorIs(t, err, errs.ErrConflict)
	assert.Equal(t, "Join request already pending", Message(err))

	reqs, err := co.Groups.JoinRequests(ctx, g.ID)
	require.NoError(t, err)
	require.Len(t, reqs, 1)
	assert.Equal(t, joiner.ID, reqs[0].UserID)

	require.NoError(t, co.Groups.Approve(ctx, g.ID, joiner.ID))
	mine, err := cj.Users.Groups(ctx, joiner.ID)
	require.NoError(t, err)
	require.Len(t, mine, 1)

	renamed, err := co.Groups.Rename(ctx, g.ID, owner.ID, "Falcons")
	require.NoError(t, err)
	assert.Equal(t, "Falcons", renamed.Name)

	_, err = cj.Groups.Rename(ctx, g.ID, joiner.ID, "Mine now")
	require.ErrorIs(t, err, errs.ErrUnauthorized)

	require.NoError(t, cj.Groups.Leave(ctx, g.ID, joiner.ID))
	assert.Empty(t, be.Group(g.ID).Members)

	require.NoError(t, cj.Groups.RequestJoin(ctx, g.ID, joiner.ID))
	require.NoError(t, co.Groups.Deny(ctx, g.ID, joiner.ID))
	assert.Empty(t, be.Group(g.ID).Requests)

	list, err := co.Groups.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)

	require.NoError(t, co.Groups.Delete(ctx, g.ID, owner.ID))
	_, err = co.Groups.Get(ctx, g.ID)
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestGroups_RemoveMember(t *testing.T) {
	t.Parallel()
	be := apitest.New(t)
	owner := be.SeedUser("owner", "pw", "BASIC_USER")
	m := be.SeedUser("m", "pw", "BASIC_USER")
	g := be.SeedGroup("Owls", owner)
	cm := loggedIn(t, be, m)
	co := loggedIn(t, be, owner)
	ctx := context.Background()

	require.NoError(t, cm.Groups.RequestJoin(ctx, g.ID, m.ID))
	require.NoError(t, co.Groups.Approve(ctx, g.ID, m.ID))
	require.NoError(t, co.Groups.RemoveMember(ctx, g.ID, m.ID))
	assert.Equal(t, 1, be.Calls("DELETE /groups/{id}/members/{userId}/remove"))
	assert.Empty(t, be.Group(g.ID).Members)
}

func TestSightings_Lifecycle(t *testing.T) {
	t.Parallel()
	be := apitest.New(t)
	u := be.SeedUser("u", "pw", "BASIC_USER")
	other := be.SeedUser("o", "pw", "BASIC_USER")
	bird := be.SeedBird("Robin", "Turdus migratorius")
	c := loggedIn(t, be, u)
	co := loggedIn(t, be, other)
	ctx := context.Background()

	birdID := bird.ID
	post, err := c.Sightings.Create(ctx, u.ID, model.PostInput{
		Header: "Robin!", TextBody: "on the lawn", Bird: &birdID,
		Tags: &model.Tags{Latitude: "43.6", Longitude: "-116.2"},
	}, &model.Upload{Filename: "r.jpg", Body: strings.NewReader("jpeg")})
	require.NoError(t, err)
	assert.Equal(t, "/post_images/r.jpg", post.ImagePath())
	assert.Equal(t, bird.ID, post.BirdID())

	liked, err := co.Sightings.Like(ctx, post.ID, other.ID)
	require.NoError(t, err)
	assert.True(t, liked.LikedBy(other.ID))
	unliked, err := co.Sightings.Unlike(ctx, post.ID, other.ID)
	require.NoError(t, err)
	assert.False(t, unliked.LikedBy(other.ID))

	withComment, err := co.Sightings.AddComment(ctx, post.ID, other.ID, "nice")
	require.NoError(t, err)
	require.Len(t, withComment.Comments, 1)

	cm := withComment.Comments[0]
	cm.TextBody = "very nice"
	edited, err := co.Sightings.UpdateComment(ctx, post.ID, cm)
	require.NoError(t, err)
	assert.Equal(t, "very nice", edited.Comments[0].TextBody)

	_, err = c.Sightings.UpdateComment(ctx, post.ID, cm)
	require.ErrorIs(t, err, errs.ErrUnauthorized)

	cleared, err := co.Sightings.DeleteComment(ctx, post.ID, cm)
	require.NoError(t, err)
	assert.Empty(t, cleared.Comments)

	updated, err := c.Sightings.Update(ctx, post.ID, u.ID, model.PostInput{Header: "Robin", TextBody: "gone now"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "gone now", updated.TextBody)

	err = co.Sightings.Delete(ctx, post.ID, other.ID)
	require.ErrorIs(t, err, errs.ErrUnauthorized)

	feed, err := c.Sightings.List(ctx)
	require.NoError(t, err)
	require.Len(t, feed, 1)

	require.NoError(t, c.Sightings.Delete(ctx, post.ID, u.ID))
	_, err = c.Sightings.Get(ctx, post.ID)
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestSightings_CreateValidation(t *testing.T) {
	t.Parallel()
	be := apitest.New(t)
	u := be.SeedUser("u", "pw", "BASIC_USER")
	c := loggedIn(t, be, u)

	_, err := c.Sightings.Create(context.Background(), u.ID, model.PostInput{TextBody: "no header"}, nil)
	require.ErrorIs(t, err, errs.ErrValidation)
	assert.Equal(t, 0, be.Calls("POST /sightings"))
}

func TestSightings_ByGroup(t *testing.T) {
	t.Parallel()
	be := apitest.New(t)
	u := be.SeedUser("u", "pw", "BASIC_USER")
	g := be.SeedGroup("Waders", u)
	be.SeedPost(u, "Heron", "", g.ID)
	be.SeedPost(u, "Elsewhere", "", "")
	c := newClient(t, be.URL())

	posts, err := c.Sightings.ByGroup(context.Background(), g.ID)
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Equal(t, "Heron", posts[0].Header)
}

func TestSearch(t *testing.T) {
	t.Parallel()
	be := apitest.New(t)
	u := be.SeedUser("hawkeye", "pw", "BASIC_USER")
	f := be.SeedUser("hawkfan", "pw", "BASIC_USER")
	be.SeedUser("owlie", "pw", "BASIC_USER")
	be.Befriend(u, f)
	be.SeedBird("Red-tailed Hawk", "Buteo jamaicensis")
	be.SeedGroup("Hawk watchers", u)
	be.SeedPost(u, "Hawk overhead", "", "")
	c := loggedIn(t, be, u)
	ctx := context.Background()

	all, err := c.Search.All(ctx, "hawk")
	require.NoError(t, err)
	assert.Len(t, all.Birds, 1)
	assert.Len(t, all.Users, 2)
	assert.Len(t, all.Groups, 1)
	assert.Len(t, all.Posts, 1)

	friends, err := c.Search.Friends(ctx, "hawk")
	require.NoError(t, err)
	require.Len(t, friends, 1)
	assert.Equal(t, f.ID, friends[0].ID)

	mine, err := c.Search.MyGroups(ctx, "")
	require.NoError(t, err)
	assert.Len(t, mine, 1)

	birds, err := c.Search.Birds(ctx, "buteo")
	require.NoError(t, err)
	assert.Len(t, birds, 1)

	users, err := c.Search.Users(ctx, "owl")
	require.NoError(t, err)
	assert.Len(t, users, 1)

	groups, err := c.Search.Groups(ctx, "watchers")
	require.NoError(t, err)
	assert.Len(t, groups, 1)

	posts, err := c.Search.Posts(ctx, "overhead")
	require.NoError(t, err)
	assert.Len(t, posts, 1)

	anon := newClient(t, be.URL())
	_, err = anon.Search.Friends(ctx, "hawk")
	require.ErrorIs(t, err, errs.ErrUnauthorized)
	assert.Equal(t, http.StatusUnauthorized, StatusOf(err))
}
