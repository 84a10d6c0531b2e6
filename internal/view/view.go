// Package view holds the page logic of the client: what each screen loads,
// which actions it offers the current actor, and how local state follows a write.
// It renders nothing; cmd/cli prints what a view exposes.
package view

import (
	"github.com/and161185/birdwatch/internal/api"
	"github.com/and161185/birdwatch/internal/cache"
	"github.com/and161185/birdwatch/internal/errs"
	"github.com/and161185/birdwatch/internal/guard"
	"github.com/and161185/birdwatch/internal/logging"
	"github.com/and161185/birdwatch/internal/media"
	"github.com/and161185/birdwatch/internal/model"
	"github.com/and161185/birdwatch/internal/session"
	"go.uber.org/zap"
)

// Deps are the collaborators shared by every view.
type Deps struct {
	API     *api.Client
	Session *session.Store
	Guard   *guard.Guard
	Cache   *cache.Cache
	Media   *media.Resolver
	Log     *zap.Logger
}

func (d Deps) actor() (model.Identity, error) {
	id, ok := d.Session.Identity()
	if !ok {
		return model.Identity{}, errs.ErrNoSession
	}
	return id, nil
}

func (d Deps) logger() *zap.Logger {
	return logging.OrNop(d.Log)
}

// replaceByID swaps the element with the same id, reporting whether one was found.
func replaceByID[T any](list []T, v T, id func(T) string) bool {
	for i := range list {
		if id(list[i]) == id(v) {
			list[i] = v
			return true
		}
	}
	return false
}

func idOfGroup(g model.Group) string { return g.ID }

func idOfBird(b model.Bird) string { return b.ID }
