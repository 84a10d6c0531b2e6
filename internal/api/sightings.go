package api

import (
	"context"
	"net/http"

	"github.com/and161185/birdwatch/internal/model"
	"github.com/and161185/birdwatch/internal/validate"
)

// Sightings talks to /sightings (posts).
type Sightings struct{ c *Client }

// List returns the feed; a 404 is an error, not an empty feed.
func (s *Sightings) List(ctx context.Context) ([]model.Post, error) {
	return strict[model.Post](ctx, s.c, request{
		op: "sightings.list", action: "fetch posts",
		method: http.MethodGet, path: "/sightings", notFound: "Posts not found",
	})
}

// Get returns one sighting; a 404 is errs.ErrNotFound.
func (s *Sightings) Get(ctx context.Context, id string) (*model.Post, error) {
	if err := validate.Required("id", id); err != nil {
		return nil, err
	}
	return one[model.Post](ctx, s.c, request{
		op: "sightings.get", action: "fetch post",
		method: http.MethodGet, path: p("sightings", id), notFound: "Post not found",
	})
}

// ByGroup returns a group's posts; a 404 is an empty list.
func (s *Sightings) ByGroup(ctx context.Context, groupID string) ([]model.Post, error) {
	return list[model.Post](ctx, s.c, request{
		op: "sightings.by_group", action: "fetch group posts",
		method: http.MethodGet, path: p("sightings", "group", groupID),
	})
}

// Create publishes a sighting by userID with an optional image.
func (s *Sightings) Create(ctx context.Context, userID string, in model.PostInput, image *model.Upload) (*model.Post, error) {
	if err := validate.Required("user id", userID); err != nil {
		return nil, err
	}
	if err := validate.Struct(in); err != nil {
		return nil, err
	}
	return one[model.Post](ctx, s.c, request{
		op: "sightings.create", action: "create post",
		method: http.MethodPost, path: "/sightings",
		form: newForm().jsonField("post", in).field("userId", userID).attach("image", image),
	})
}

// Update replaces a sighting owned by userID and returns the stored copy.
func (s *Sightings) Update(ctx context.Context, id, userID string, in model.PostInput, image *model.Upload) (*model.Post, error) {
	if err := validate.Required("id", id, "user id", userID); err != nil {
		return nil, err
	}
	if err := validate.Struct(in); err != nil {
		return nil, err
	}
	return one[model.Post](ctx, s.c, request{
		op: "sightings.update", action: "update post",
		method: http.MethodPut, path: p("sightings", id),
		form: newForm().jsonField("post", in).field("userId", userID).attach("image", image),
	})
}

// Delete removes a sighting on behalf of userID.
func (s *Sightings) Delete(ctx context.Context, id, userID string) error {
	if err := validate.Required("id", id, "user id", userID); err != nil {
		return err
	}
	return s.c.do(ctx, request{
		op: "sightings.delete", action: "delete post",
		method: http.MethodDelete, path: p("sightings", id), query: q("userId", userID),
	}, nil)
}

// Like adds userID to the post's likes and returns the updated post.
func (s *Sightings) Like(ctx context.Context, id, userID string) (*model.Post, error) {
	return s.react(ctx, id, userID, "like")
}

// Unlike removes userID from the post's likes and returns the updated post.
func (s *Sightings) Unlike(ctx context.Context, id, userID string) (*model.Post, error) {
	return s.react(ctx, id, userID, "unlike")
}

func (s *Sightings) react(ctx context.Context, id, userID, verb string) (*model.Post, error) {
	if err := validate.Required("id", id, "user id", userID); err != nil {
		return nil, err
	}
	return one[model.Post](ctx, s.c, request{
		op: "sightings." + verb, action: verb + " post",
		method: http.MethodPut, path: p("sightings", id, verb, userID),
	})
}

// AddComment appends a comment by userID and returns the updated post.
func (s *Sightings) AddComment(ctx context.Context, id, userID, text string) (*model.Post, error) {
	in := model.CommentInput{TextBody: text}
	if err := validate.Required("id", id, "user id", userID); err != nil {
		return nil, err
	}
	if err := validate.Struct(in); err != nil {
		return nil, err
	}
	return one[model.Post](ctx, s.c, request{
		op: "sightings.add_comment", action: "add comment",
		method: http.MethodPost, path: p("sightings", id, "comments"), query: q("userId", userID), body: in,
	})
}

// UpdateComment replaces a comment matched by the backend on author and timestamp.
func (s *Sightings) UpdateComment(ctx context.Context, id string, c model.Comment) (*model.Post, error) {
	if err := validate.Required("id", id); err != nil {
		return nil, err
	}
	if err := validate.Struct(model.CommentInput{TextBody: c.TextBody}); err != nil {
		return nil, err
	}
	return one[model.Post](ctx, s.c, request{
		op: "sightings.update_comment", action: "update comment",
		method: http.MethodPatch, path: p("sightings", id, "comments"), body: c,
	})
}

// DeleteComment removes c from the sighting and returns the updated post.
func (s *Sightings) DeleteComment(ctx context.Context, id string, c model.Comment) (*model.Post, error) {
	if err := validate.Required("id", id); err != nil {
		return nil, err
	}
	return one[model.Post](ctx, s.c, request{
		op: "sightings.delete_comment", action: "delete comment",
		method: http.MethodDelete, path: p("sightings", id, "comments"), body: c,
	})
}
