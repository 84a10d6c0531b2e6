package api

import (
	"context"
	"net/http"

	"github.com/and161185/birdwatch/internal/model"
	"github.com/and161185/birdwatch/internal/validate"
)

// Users talks to /users. Collection reads treat 404 as empty.
type Users struct{ c *Client }

// List returns every account; a 404 is an empty list.
func (u *Users) List(ctx context.Context) ([]model.User, error) {
	return list[model.User](ctx, u.c, request{
		op: "users.list", action: "fetch users",
		method: http.MethodGet, path: "/users",
	})
}

// Get returns one user; a 404 is errs.ErrNotFound.
func (u *Users) Get(ctx context.Context, id string) (*model.User, error) {
	if err := validate.Required("id", id); err != nil {
		return nil, err
	}
	return one[model.User](ctx, u.c, request{
		op: "users.get", action: "fetch user",
		method: http.MethodGet, path: p("users", id), notFound: "User not found",
	})
}

// Friends returns the user's friends; a 404 is an empty list.
func (u *Users) Friends(ctx context.Context, id string) ([]model.User, error) {
	return list[model.User](ctx, u.c, request{
		op: "users.friends", action: "fetch friends",
		method: http.MethodGet, path: p("users", id, "friends"),
	})
}

// Groups returns the groups the user belongs to; a 404 is an empty list.
func (u *Users) Groups(ctx context.Context, id string) ([]model.Group, error) {
	return list[model.Group](ctx, u.c, request{
		op: "users.groups", action: "fetch user groups",
		method: http.MethodGet, path: p("users", id, "groups"),
	})
}

// Posts returns the user's sightings; a 404 is an empty list.
func (u *Users) Posts(ctx context.Context, id string) ([]model.Post, error) {
	return list[model.Post](ctx, u.c, request{
		op: "users.posts", action: "fetch user posts",
		method: http.MethodGet, path: p("users", id, "posts"),
	})
}

// TopBirds returns the species the user spotted most this month.
func (u *Users) TopBirds(ctx context.Context, id string) ([]model.Bird, error) {
	return list[model.Bird](ctx, u.c, request{
		op: "users.top_birds", action: "fetch top birds",
		method: http.MethodGet, path: p("users", id, "top-birds"),
	})
}

// AddFriend links id and friendID.
func (u *Users) AddFriend(ctx context.Context, id, friendID string) error {
	if err := validate.Required("id", id, "friend id", friendID); err != nil {
		return err
	}
	return u.c.do(ctx, request{
		op: "users.add_friend", action: "add friend",
		method: http.MethodPut, path: p("users", id, "friends", friendID),
	}, nil)
}

// RemoveFriend unlinks id and friendID.
func (u *Users) RemoveFriend(ctx context.Context, id, friendID string) error {
	if err := validate.Required("id", id, "friend id", friendID); err != nil {
		return err
	}
	return u.c.do(ctx, request{
		op: "users.remove_friend", action: "remove friend",
		method: http.MethodDelete, path: p("users", id, "friends", friendID),
	}, nil)
}

// UpdateRole sets the user's role label and returns the updated user.
func (u *Users) UpdateRole(ctx context.Context, id, role string) (*model.User, error) {
	in := model.RoleChange{Role: role}
	if err := validate.Required("id", id); err != nil {
		return nil, err
	}
	if err := validate.Struct(in); err != nil {
		return nil, err
	}
	return one[model.User](ctx, u.c, request{
		op: "users.update_role", action: "update user role",
		method: http.MethodPatch, path: p("users", id, "role"), body: in,
	})
}

// UpdateProfile patches names and, optionally, the profile picture.
func (u *Users) UpdateProfile(ctx context.Context, id string, in model.ProfileInput, photo *model.Upload) (*model.User, error) {
	if err := validate.Required("id", id); err != nil {
		return nil, err
	}
	if err := validate.Struct(in); err != nil {
		return nil, err
	}
	return one[model.User](ctx, u.c, request{
		op: "users.update_profile", action: "update profile",
		method: http.MethodPatch, path: p("users", id),
		form: newForm().jsonField("user", in).attach("image", photo),
	})
}

// Onboard completes a new account and returns the refreshed identity.
func (u *Users) Onboard(ctx context.Context, in model.OnboardingInput, photo *model.Upload) (*model.Identity, error) {
	if err := validate.Struct(in); err != nil {
		return nil, err
	}
	return one[model.Identity](ctx, u.c, request{
		op: "users.onboard", action: "complete onboarding",
		method: http.MethodPost, path: "/users/onboard",
		form: newForm().
			field("firstName", in.FirstName).
			field("lastName", in.LastName).
			field("location", in.Location).
			attach("profilePhoto", photo),
	})
}
