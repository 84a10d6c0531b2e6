package view

import (
	"context"
	"sync"

	"github.com/and161185/birdwatch/internal/model"
	"github.com/and161185/birdwatch/internal/role"
)

// Post is the detail page of one sighting.
type Post struct {
	d Deps

	mu   sync.Mutex
	post model.Post
}

// OpenPost loads a post. Anyone may read it.
func OpenPost(ctx context.Context, d Deps, id string) (*Post, error) {
	p, err := d.API.Sightings.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return &Post{d: d, post: *p}, nil
}

// Post returns the current local copy.
func (v *Post) Post() model.Post {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.post
}

// ImageURL is the absolute image URL, or "" for a post without one.
func (v *Post) ImageURL() string {
	return v.d.Media.Resolve(v.Post().ImagePath())
}

// CanEdit reports whether the actor may edit the post.
func (v *Post) CanEdit() bool { return v.owns(v.Post().User.UserID) }

// CanDelete reports whether the actor may delete the post.
func (v *Post) CanDelete() bool { return v.owns(v.Post().User.UserID) }

// CanDeleteComment reports whether the actor may remove c.
func (v *Post) CanDeleteComment(c model.Comment) bool { return v.owns(c.User.UserID) }

func (v *Post) owns(ownerID string) bool {
	snap := v.d.Session.Snapshot()
	if !snap.Authenticated() {
		return false
	}
	return role.CanPerformAction(snap.UserID(), snap.Role(), ownerID)
}

// Edit saves a new header and text.
func (v *Post) Edit(ctx context.Context, in model.PostInput, image *model.Upload) error {
	me, err := v.d.actor()
	if err != nil {
		return err
	}
	id := v.Post().ID
	return v.d.Guard.Do(ctx, "sightings.edit", id, func(ctx context.Context) error {
		updated, err := v.d.API.Sightings.Update(ctx, id, me.ID, in, image)
		if err != nil {
			return err
		}
		v.set(*updated)
		return nil
	})
}

// Delete removes the post.
func (v *Post) Delete(ctx context.Context) error {
	me, err := v.d.actor()
	if err != nil {
		return err
	}
	id := v.Post().ID
	return v.d.Guard.Do(ctx, "sightings.delete", id, func(ctx context.Context) error {
		return v.d.API.Sightings.Delete(ctx, id, me.ID)
	})
}

// Comment adds a reply; the local copy is replaced by the backend's post.
func (v *Post) Comment(ctx context.Context, text string) error {
	me, err := v.d.actor()
	if err != nil {
		return err
	}
	id := v.Post().ID
	return v.d.Guard.Do(ctx, "sightings.comment", id, func(ctx context.Context) error {
		updated, err := v.d.API.Sightings.AddComment(ctx, id, me.ID, text)
		if err != nil {
			return err
		}
		v.set(*updated)
		return nil
	})
}

// DeleteComment removes c and refreshes the local copy.
func (v *Post) DeleteComment(ctx context.Context, c model.Comment) error {
	if _, err := v.d.actor(); err != nil {
		return err
	}
	id := v.Post().ID
	return v.d.Guard.Do(ctx, "sightings.comment", id, func(ctx context.Context) error {
		updated, err := v.d.API.Sightings.DeleteComment(ctx, id, c)
		if err != nil {
			return err
		}
		v.set(*updated)
		return nil
	})
}

func (v *Post) set(p model.Post) {
	v.mu.Lock()
	v.post = p
	v.mu.Unlock()
}
