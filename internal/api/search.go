package api

import (
	"context"
	"net/http"

	"github.com/and161185/birdwatch/internal/model"
)

// Search talks to /search.
type Search struct{ c *Client }

// All searches every entity kind at once.
func (s *Search) All(ctx context.Context, query string) (*model.SearchResults, error) {
	res, err := one[model.SearchResults](ctx, s.c, request{
		op: "search.all", action: "search",
		method: http.MethodGet, path: "/search", query: q("query", query),
	})
	if err != nil {
		return nil, err
	}
	if res.Birds == nil {
		res.Birds = []model.Bird{}
	}
	if res.Users == nil {
		res.Users = []model.User{}
	}
	if res.Groups == nil {
		res.Groups = []model.Group{}
	}
	if res.Posts == nil {
		res.Posts = []model.Post{}
	}
	return res, nil
}

// Birds searches the catalog.
func (s *Search) Birds(ctx context.Context, query string) ([]model.Bird, error) {
	return strict[model.Bird](ctx, s.c, s.req("birds", query))
}

// Users searches every account.
func (s *Search) Users(ctx context.Context, query string) ([]model.User, error) {
	return strict[model.User](ctx, s.c, s.req("users", query))
}

// Friends searches within the session user's friends.
func (s *Search) Friends(ctx context.Context, query string) ([]model.User, error) {
	return strict[model.User](ctx, s.c, s.req("friends", query))
}

// Groups searches every group.
func (s *Search) Groups(ctx context.Context, query string) ([]model.Group, error) {
	return strict[model.Group](ctx, s.c, s.req("groups", query))
}

// MyGroups searches within the session user's groups.
func (s *Search) MyGroups(ctx context.Context, query string) ([]model.Group, error) {
	return strict[model.Group](ctx, s.c, s.req("my-groups", query))
}

// Posts searches sightings.
func (s *Search) Posts(ctx context.Context, query string) ([]model.Post, error) {
	return strict[model.Post](ctx, s.c, s.req("posts", query))
}

func (s *Search) req(kind, query string) request {
	return request{
		op: "search." + kind, action: "search " + kind,
		method: http.MethodGet, path: p("search", kind), query: q("query", query),
	}
}
