package view

import (
	"context"
	"sync"

	"github.com/and161185/birdwatch/internal/cache"
	"github.com/and161185/birdwatch/internal/media"
	"github.com/and161185/birdwatch/internal/model"
	"github.com/and161185/birdwatch/internal/role"
	"go.uber.org/zap"
)

// Catalog is the bird list page.
type Catalog struct {
	d Deps

	mu    sync.Mutex
	gen   uint64
	birds []model.Bird
}

// NewCatalog returns an empty catalog page.
func NewCatalog(d Deps) *Catalog { return &Catalog{d: d} }

// Load lists every bird, or those matching query. Loaded birds seed the cache.
// Results of a load overtaken by a newer one are dropped.
func (c *Catalog) Load(ctx context.Context, query string) error {
	ticket := c.begin()
	var (
		birds []model.Bird
		err   error
	)
	if query == "" {
		birds, err = c.d.API.Birds.List(ctx)
	} else {
		birds, err = c.d.API.Birds.Search(ctx, query)
	}
	if err != nil {
		c.d.logger().Warn("catalog load failed", zap.Error(err))
		return err
	}
	for _, b := range birds {
		if err := c.d.Cache.Put(ctx, birdKey(b.ID), b); err != nil {
			c.d.logger().Warn("cache write failed", zap.Error(err))
		}
	}
	c.commit(ticket, birds)
	return nil
}

func (c *Catalog) begin() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	return c.gen
}

func (c *Catalog) commit(ticket uint64, birds []model.Bird) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ticket != c.gen {
		return false
	}
	c.birds = birds
	return true
}

// Birds returns a copy of the loaded birds.
func (c *Catalog) Birds() []model.Bird {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]model.Bird(nil), c.birds...)
}

// Bird returns one bird, from the cache when fresh.
func (c *Catalog) Bird(ctx context.Context, id string) (*model.Bird, error) {
	return cache.Fetch(ctx, c.d.Cache, birdKey(id), func(ctx context.Context) (*model.Bird, error) {
		return c.d.API.Birds.Get(ctx, id)
	})
}

// ImageURL resolves a bird picture, falling back to the placeholder.
func (c *Catalog) ImageURL(b model.Bird) string {
	return c.d.Media.ResolveOr(b.ImageURL, media.DefaultBirdImage)
}

// CanEditBird reports whether catalog writes are offered. Birds have no owner,
// so only the role counts.
func (c *Catalog) CanEditBird() bool {
	snap := c.d.Session.Snapshot()
	return snap.Authenticated() && role.CanPerformAction(snap.UserID(), snap.Role(), "")
}

// Add creates a bird.
func (c *Catalog) Add(ctx context.Context, in model.BirdInput, image *model.Upload) (*model.Bird, error) {
	if _, err := c.d.actor(); err != nil {
		return nil, err
	}
	var created *model.Bird
	err := c.d.Guard.Do(ctx, "birds.create", in.CommonName, func(ctx context.Context) error {
		var err error
		created, err = c.d.API.Birds.Create(ctx, in, image)
		return err
	})
	if err != nil {
		return nil, err
	}
	if err := c.d.Cache.Put(ctx, birdKey(created.ID), created); err != nil {
		c.d.logger().Warn("cache write failed", zap.Error(err))
	}
	c.mu.Lock()
	c.birds = append(c.birds, *created)
	c.mu.Unlock()
	return created, nil
}

// Update edits a bird; the cached copy is dropped.
func (c *Catalog) Update(ctx context.Context, id string, in model.BirdInput, image *model.Upload) (*model.Bird, error) {
	if _, err := c.d.actor(); err != nil {
		return nil, err
	}
	var updated *model.Bird
	err := c.d.Guard.Do(ctx, "birds.update", id, func(ctx context.Context) error {
		var err error
		updated, err = c.d.API.Birds.Update(ctx, id, in, image)
		return err
	})
	if err != nil {
		return nil, err
	}
	c.d.Cache.Invalidate(ctx, birdKey(id))
	c.mu.Lock()
	replaceByID(c.birds, *updated, idOfBird)
	c.mu.Unlock()
	return updated, nil
}

// Remove deletes a bird.
func (c *Catalog) Remove(ctx context.Context, id string) error {
	if _, err := c.d.actor(); err != nil {
		return err
	}
	err := c.d.Guard.Do(ctx, "birds.delete", id, func(ctx context.Context) error {
		return c.d.API.Birds.Delete(ctx, id)
	})
	if err != nil {
		return err
	}
	c.d.Cache.Invalidate(ctx, birdKey(id))
	c.mu.Lock()
	kept := c.birds[:0:0]
	for _, b := range c.birds {
		if b.ID != id {
			kept = append(kept, b)
		}
	}
	c.birds = kept
	c.mu.Unlock()
	return nil
}

func birdKey(id string) cache.Key { return cache.Key{Kind: cache.KindBird, ID: id} }
