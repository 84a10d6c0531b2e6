package view

import (
	"context"
	"strconv"

	"github.com/and161185/birdwatch/internal/badge"
	"github.com/and161185/birdwatch/internal/cache"
	"github.com/and161185/birdwatch/internal/model"
	"github.com/and161185/birdwatch/internal/role"
	"github.com/and161185/birdwatch/internal/session"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Profile is a user's page.
type Profile struct {
	User      model.User     `json:"user"`
	Friends   []model.User   `json:"friends"`
	Groups    []model.Group  `json:"groups"`
	Posts     []model.Post   `json:"posts"`
	TopBirds  []model.Bird   `json:"topBirds"`
	Badges    []badge.Status `json:"badges"`
	Picture   string         `json:"picture"`
	Self      bool           `json:"self"`
	IsFriend  bool           `json:"isFriend"`
	CanFriend bool           `json:"canFriend"`
}

// LoadProfile fetches the user and their related lists in parallel.
// The user record is read through the cache and is the only fetch whose failure
// fails the page; a failed list is logged and shown empty.
func LoadProfile(ctx context.Context, d Deps, userID string) (*Profile, error) {
	var (
		p   Profile
		g   errgroup.Group
		log = d.logger().With(zap.String("user_id", userID))
	)
	g.Go(func() error {
		u, err := cache.Fetch(ctx, d.Cache, cache.Key{Kind: cache.KindUser, ID: userID}, func(ctx context.Context) (*model.User, error) {
			return d.API.Users.Get(ctx, userID)
		})
		if err != nil {
			return err
		}
		p.User = *u
		return nil
	})
	g.Go(func() error { p.Friends = orEmpty(ctx, log, "friends", userID, d.API.Users.Friends); return nil })
	g.Go(func() error { p.Groups = orEmpty(ctx, log, "groups", userID, d.API.Users.Groups); return nil })
	g.Go(func() error { p.Posts = orEmpty(ctx, log, "posts", userID, d.API.Users.Posts); return nil })
	g.Go(func() error { p.TopBirds = orEmpty(ctx, log, "top birds", userID, d.API.Users.TopBirds); return nil })
	if err := g.Wait(); err != nil {
		log.Warn("profile load failed", zap.Error(err))
		return nil, err
	}

	// top birds come back without ids
	for i := range p.TopBirds {
		if p.TopBirds[i].ID == "" {
			p.TopBirds[i].ID = strconv.Itoa(i)
		}
	}
	p.Badges = badge.Statuses(badge.Unlocked(p.User, p.Posts))
	p.Picture = d.Media.ProfilePic(p.User.ProfilePic)

	if snap := d.Session.Snapshot(); snap.Authenticated() {
		me := snap.UserID()
		p.Self = me == userID
		p.IsFriend = p.User.HasFriend(me)
		for _, f := range p.Friends {
			if f.ID == me {
				p.IsFriend = true
			}
		}
		p.CanFriend = !p.Self && !p.IsFriend
	}
	return &p, nil
}

// orEmpty runs one list fetch of a page. A failure is logged and yields an empty list.
func orEmpty[T any](ctx context.Context, log *zap.Logger, what, id string, fetch func(context.Context, string) ([]T, error)) []T {
	v, err := fetch(ctx, id)
	if err != nil {
		log.Warn("profile list load failed", zap.String("list", what), zap.Error(err))
		return []T{}
	}
	return v
}

// Befriend adds userID to the actor's friends.
func Befriend(ctx context.Context, d Deps, userID string) error {
	me, err := d.actor()
	if err != nil {
		return err
	}
	return d.Guard.Do(ctx, "users.befriend", userID, func(ctx context.Context) error {
		if err := d.API.Users.AddFriend(ctx, me.ID, userID); err != nil {
			return err
		}
		d.Cache.Invalidate(ctx, cache.Key{Kind: cache.KindUser, ID: me.ID})
		d.Cache.Invalidate(ctx, cache.Key{Kind: cache.KindUser, ID: userID})
		return nil
	})
}

// Unfriend removes userID from the actor's friends.
func Unfriend(ctx context.Context, d Deps, userID string) error {
	me, err := d.actor()
	if err != nil {
		return err
	}
	return d.Guard.Do(ctx, "users.befriend", userID, func(ctx context.Context) error {
		if err := d.API.Users.RemoveFriend(ctx, me.ID, userID); err != nil {
			return err
		}
		d.Cache.Invalidate(ctx, cache.Key{Kind: cache.KindUser, ID: me.ID})
		d.Cache.Invalidate(ctx, cache.Key{Kind: cache.KindUser, ID: userID})
		return nil
	})
}

// EditProfile saves the actor's profile and refreshes the session identity.
func EditProfile(ctx context.Context, d Deps, in model.ProfileInput, photo *model.Upload) (*model.User, error) {
	me, err := d.actor()
	if err != nil {
		return nil, err
	}
	u, err := d.API.Users.UpdateProfile(ctx, me.ID, in, photo)
	if err != nil {
		return nil, err
	}
	if err := d.Cache.Put(ctx, cache.Key{Kind: cache.KindUser, ID: u.ID}, u); err != nil {
		d.logger().Warn("cache write failed", zap.Error(err))
	}
	me.Username, me.FirstName, me.LastName = u.Username, u.FirstName, u.LastName
	if u.ProfilePic != "" {
		me.ProfilePic = u.ProfilePic
	}
	d.Session.Replace(me)
	return u, nil
}

// Onboard completes the actor's account and replaces the session identity.
func Onboard(ctx context.Context, d Deps, in model.OnboardingInput, photo *model.Upload) (*model.Identity, error) {
	if _, err := d.actor(); err != nil {
		return nil, err
	}
	id, err := d.API.Users.Onboard(ctx, in, photo)
	if err != nil {
		return nil, err
	}
	d.Cache.Invalidate(ctx, cache.Key{Kind: cache.KindUser, ID: id.ID})
	d.Session.Replace(*id)
	return id, nil
}

// CanSetRole reports whether the role editor is shown.
func CanSetRole(snap session.Snapshot) bool {
	return snap.Authenticated() && role.IsSuperUser(snap.Role())
}

// SetRole changes the role of userID.
func SetRole(ctx context.Context, d Deps, userID, newRole string) (*model.User, error) {
	if _, err := d.actor(); err != nil {
		return nil, err
	}
	u, err := d.API.Users.UpdateRole(ctx, userID, newRole)
	if err != nil {
		return nil, err
	}
	d.Cache.Invalidate(ctx, cache.Key{Kind: cache.KindUser, ID: userID})
	return u, nil
}
