package view

import (
	"context"
	"errors"
	"sync"

	"github.com/and161185/birdwatch/internal/errs"
	"github.com/and161185/birdwatch/internal/model"
	"github.com/and161185/birdwatch/internal/role"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	actionJoin   = "groups.join"
	actionLeave  = "groups.leave"
	actionDecide = "groups.decide"
)

// Groups is the groups page: every group and the actor's own.
type Groups struct {
	d Deps

	mu   sync.Mutex
	gen  uint64
	all  []model.Group
	mine []model.Group
}

// NewGroups returns an empty page.
func NewGroups(d Deps) *Groups { return &Groups{d: d} }

// Load fetches all groups and, when signed in, the actor's groups.
// A 404 from the group list shows as no groups; any other list failure empties
// the page and is returned. A failed fetch of the actor's groups is logged and
// leaves only those empty. Results of a load overtaken by a newer one are dropped.
func (g *Groups) Load(ctx context.Context) error {
	ticket := g.begin()
	snap := g.d.Session.Snapshot()
	log := g.d.logger()

	var (
		all, mine []model.Group
		eg        errgroup.Group
	)
	eg.Go(func() error {
		var err error
		all, err = g.d.API.Groups.List(ctx)
		if errors.Is(err, errs.ErrNotFound) {
			return nil
		}
		return err
	})
	if snap.Authenticated() {
		eg.Go(func() error {
			var err error
			if mine, err = g.d.API.Users.Groups(ctx, snap.UserID()); err != nil {
				log.Warn("my groups load failed", zap.Error(err))
				mine = nil
			}
			return nil
		})
	}
	err := eg.Wait()
	if err != nil {
		log.Warn("groups load failed", zap.Error(err))
		all = nil
	}
	g.commit(ticket, all, mine)
	return err
}

func (g *Groups) begin() uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.gen++
	return g.gen
}

func (g *Groups) commit(ticket uint64, all, mine []model.Group) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if ticket != g.gen {
		return false
	}
	g.all, g.mine = all, mine
	return true
}

// All returns a copy of every loaded group.
func (g *Groups) All() []model.Group {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]model.Group(nil), g.all...)
}

// Mine returns a copy of the actor's groups.
func (g *Groups) Mine() []model.Group {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]model.Group(nil), g.mine...)
}

// CanJoin reports whether the join control is offered for grp.
func (g *Groups) CanJoin(grp model.Group) bool {
	snap := g.d.Session.Snapshot()
	if !snap.Authenticated() {
		return false
	}
	me := snap.UserID()
	return !grp.IsMember(me) && !grp.HasRequested(me) && !g.Joining(grp.ID)
}

// Joining reports whether a join request for groupID is in flight.
func (g *Groups) Joining(groupID string) bool {
	return g.d.Guard.Busy(actionJoin + ":" + groupID)
}

// CanManage reports whether the actor may rename, delete or moderate grp.
func (g *Groups) CanManage(grp model.Group) bool {
	snap := g.d.Session.Snapshot()
	return snap.Authenticated() && role.CanPerformAction(snap.UserID(), snap.Role(), grp.Owner.UserID)
}

// RequestJoin asks to join groupID. A second call while the first is still
// running returns errs.ErrInFlight and sends nothing.
func (g *Groups) RequestJoin(ctx context.Context, groupID string) error {
	me, err := g.d.actor()
	if err != nil {
		return err
	}
	return g.d.Guard.Do(ctx, actionJoin, groupID, func(ctx context.Context) error {
		if err := g.d.API.Groups.RequestJoin(ctx, groupID, me.ID); err != nil {
			return err
		}
		g.refresh(ctx, groupID)
		return nil
	})
}

// Leave removes the actor from groupID.
func (g *Groups) Leave(ctx context.Context, groupID string) error {
	me, err := g.d.actor()
	if err != nil {
		return err
	}
	return g.d.Guard.Do(ctx, actionLeave, groupID, func(ctx context.Context) error {
		if err := g.d.API.Groups.Leave(ctx, groupID, me.ID); err != nil {
			return err
		}
		g.mu.Lock()
		g.mine = without(g.mine, groupID)
		g.mu.Unlock()
		g.refresh(ctx, groupID)
		return nil
	})
}

// Approve admits userID into groupID.
func (g *Groups) Approve(ctx context.Context, groupID, userID string) error {
	return g.decide(ctx, groupID, userID, true)
}

// Deny rejects the join request of userID.
func (g *Groups) Deny(ctx context.Context, groupID, userID string) error {
	return g.decide(ctx, groupID, userID, false)
}

func (g *Groups) decide(ctx context.Context, groupID, userID string, approve bool) error {
	if _, err := g.d.actor(); err != nil {
		return err
	}
	return g.d.Guard.Do(ctx, actionDecide, groupID+":"+userID, func(ctx context.Context) error {
		var err error
		if approve {
			err = g.d.API.Groups.Approve(ctx, groupID, userID)
		} else {
			err = g.d.API.Groups.Deny(ctx, groupID, userID)
		}
		if err != nil {
			return err
		}
		g.refresh(ctx, groupID)
		return nil
	})
}

// Create makes a group owned by the actor and adds it to both lists.
func (g *Groups) Create(ctx context.Context, in model.GroupInput, photo *model.Upload) (*model.Group, error) {
	me, err := g.d.actor()
	if err != nil {
		return nil, err
	}
	var created *model.Group
	err = g.d.Guard.Do(ctx, "groups.create", me.ID, func(ctx context.Context) error {
		created, err = g.d.API.Groups.Create(ctx, me.ID, in, photo)
		return err
	})
	if err != nil {
		return nil, err
	}
	g.mu.Lock()
	g.all = append(g.all, *created)
	g.mine = append(g.mine, *created)
	g.mu.Unlock()
	return created, nil
}

// refresh refetches one group after a membership write. A failed refetch
// keeps the old copy.
func (g *Groups) refresh(ctx context.Context, groupID string) {
	grp, err := g.d.API.Groups.Get(ctx, groupID)
	if err != nil {
		g.d.logger().Info("group refetch failed", zap.String("group_id", groupID), zap.Error(err))
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	replaceByID(g.all, *grp, idOfGroup)
	if !replaceByID(g.mine, *grp, idOfGroup) {
		if snap := g.d.Session.Snapshot(); grp.IsMember(snap.UserID()) {
			g.mine = append(g.mine, *grp)
		}
	}
}

func without(list []model.Group, id string) []model.Group {
	out := list[:0:0]
	for _, grp := range list {
		if grp.ID != id {
			out = append(out, grp)
		}
	}
	return out
}
