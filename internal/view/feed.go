package view

import (
	"context"
	"errors"
	"sync"

	"github.com/and161185/birdwatch/internal/api"
	"github.com/and161185/birdwatch/internal/errs"
	"github.com/and161185/birdwatch/internal/model"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Feed is the home page: every sighting plus, for a signed-in actor, their friends.
type Feed struct {
	d Deps

	mu      sync.Mutex
	gen     uint64
	posts   []model.Post
	friends []model.User
}

// NewFeed returns an empty feed.
func NewFeed(d Deps) *Feed { return &Feed{d: d} }

// Load fetches posts and friends in parallel, each on its own. A 404 from the
// post list shows as an empty feed; any other post failure empties the feed and
// is returned. A failed friends fetch is logged and leaves only the friends empty.
// Results of a load overtaken by a newer one are dropped.
func (f *Feed) Load(ctx context.Context) error {
	ticket := f.begin()
	snap := f.d.Session.Snapshot()
	log := f.d.logger()

	var (
		posts   []model.Post
		friends []model.User
		g       errgroup.Group
	)
	g.Go(func() error {
		var err error
		posts, err = f.d.API.Sightings.List(ctx)
		if errors.Is(err, errs.ErrNotFound) {
			return nil
		}
		return err
	})
	if snap.Authenticated() {
		g.Go(func() error {
			var err error
			if friends, err = f.d.API.Users.Friends(ctx, snap.UserID()); err != nil {
				log.Warn("feed friends load failed", zap.Error(err))
				friends = nil
			}
			return nil
		})
	}
	err := g.Wait()
	if err != nil {
		log.Warn("feed load failed", zap.Error(err))
		posts = nil
	}
	f.commit(ticket, posts, friends)
	return err
}

func (f *Feed) begin() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gen++
	return f.gen
}

func (f *Feed) commit(ticket uint64, posts []model.Post, friends []model.User) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if ticket != f.gen {
		return false
	}
	f.posts, f.friends = posts, friends
	return true
}

// Posts returns a copy of the loaded posts.
func (f *Feed) Posts() []model.Post {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.Post(nil), f.posts...)
}

// Friends returns a copy of the loaded friends.
func (f *Feed) Friends() []model.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.User(nil), f.friends...)
}

// CanCreatePost reports whether the create-post control is shown.
func (f *Feed) CanCreatePost() bool { return f.d.Session.Snapshot().Authenticated() }

// Open loads the detail view of a post. No session is required.
func (f *Feed) Open(ctx context.Context, id string) (*Post, error) {
	return OpenPost(ctx, f.d, id)
}

// Create publishes a sighting and puts it at the top of the feed.
func (f *Feed) Create(ctx context.Context, in model.PostInput, image *model.Upload) (*model.Post, error) {
	me, err := f.d.actor()
	if err != nil {
		return nil, err
	}
	var created *model.Post
	err = f.d.Guard.Do(ctx, "sightings.create", me.ID, func(ctx context.Context) error {
		created, err = f.d.API.Sightings.Create(ctx, me.ID, in, image)
		return err
	})
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.posts = append([]model.Post{*created}, f.posts...)
	f.mu.Unlock()
	return created, nil
}

// ToggleLike likes or unlikes a post for the actor. The local copy changes first
// and is reverted if the backend refuses.
func (f *Feed) ToggleLike(ctx context.Context, id string) error {
	me, err := f.d.actor()
	if err != nil {
		return err
	}
	return f.d.Guard.Do(ctx, "sightings.like", id, func(ctx context.Context) error {
		before, ok := f.patch(id, func(p *model.Post) { toggle(p, me.ID) })
		if !ok {
			return errs.ErrNotFound
		}

		var updated *model.Post
		if before.LikedBy(me.ID) {
			updated, err = f.d.API.Sightings.Unlike(ctx, id, me.ID)
		} else {
			updated, err = f.d.API.Sightings.Like(ctx, id, me.ID)
		}
		if err != nil {
			f.patch(id, func(p *model.Post) { *p = before })
			if !errors.Is(err, errs.ErrValidation) {
				f.d.logger().Info("like reverted", zap.String("post_id", id), zap.String("reason", api.Message(err)))
			}
			return err
		}
		f.patch(id, func(p *model.Post) { *p = *updated })
		return nil
	})
}

// patch applies fn to the post with id and returns its previous value.
func (f *Feed) patch(id string, fn func(*model.Post)) (model.Post, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.posts {
		if f.posts[i].ID == id {
			before := f.posts[i]
			before.Likes = append([]string(nil), before.Likes...)
			fn(&f.posts[i])
			return before, true
		}
	}
	return model.Post{}, false
}

func toggle(p *model.Post, userID string) {
	if p.LikedBy(userID) {
		kept := make([]string, 0, len(p.Likes))
		for _, id := range p.Likes {
			if id != userID {
				kept = append(kept, id)
			}
		}
		p.Likes = kept
		return
	}
	p.Likes = append(append([]string(nil), p.Likes...), userID)
}
