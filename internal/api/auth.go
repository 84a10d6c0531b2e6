package api

import (
	"context"
	"net/http"

	"github.com/and161185/birdwatch/internal/model"
	"github.com/and161185/birdwatch/internal/validate"
)

// Auth talks to /auth.
type Auth struct{ c *Client }

// Me returns the identity bound to the session cookie.
func (a *Auth) Me(ctx context.Context) (*model.Identity, error) {
	return one[model.Identity](ctx, a.c, request{
		op: "auth.me", action: "fetch current user",
		method: http.MethodGet, path: "/auth/me",
	})
}

// Login exchanges credentials for a session cookie and returns the identity.
func (a *Auth) Login(ctx context.Context, cr model.Credentials) (*model.Identity, error) {
	if err := validate.Struct(cr); err != nil {
		return nil, err
	}
	return one[model.Identity](ctx, a.c, request{
		op: "auth.login", action: "log in",
		method: http.MethodPost, path: "/auth/login", body: cr,
	})
}

// Signup creates an account, opens a session and returns the identity.
func (a *Auth) Signup(ctx context.Context, cr model.Credentials) (*model.Identity, error) {
	if err := validate.Struct(cr); err != nil {
		return nil, err
	}
	return one[model.Identity](ctx, a.c, request{
		op: "auth.signup", action: "sign up",
		method: http.MethodPost, path: "/auth/signup", body: cr,
	})
}

// Logout ends the session. The local cookie is dropped whatever the backend answers.
func (a *Auth) Logout(ctx context.Context) error {
	defer a.c.ClearSession()
	return a.c.do(ctx, request{
		op: "auth.logout", action: "log out",
		method: http.MethodPost, path: "/auth/logout",
	}, nil)
}
