// Package session holds the client's single authentication session.
//
// A Store starts Initializing, resolves exactly once through an identity probe,
// and afterwards moves between Authenticated and Anonymous only through explicit
// login, signup and logout. It is an ordinary value: create one per client and
// pass it to whatever needs it.
package session

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/and161185/birdwatch/internal/errs"
	"github.com/and161185/birdwatch/internal/logging"
	"github.com/and161185/birdwatch/internal/model"
	"go.uber.org/zap"
)

// ErrEmptyIdentity is returned when the backend accepts credentials but sends no user.
var ErrEmptyIdentity = fmt.Errorf("backend returned no identity: %w", errs.ErrUnauthorized)

// State is the lifecycle phase of a Store.
type State int

const (
	Initializing State = iota
	Authenticated
	Anonymous
)

func (s State) String() string {
	switch s {
	case Initializing:
		return "initializing"
	case Authenticated:
		return "authenticated"
	case Anonymous:
		return "anonymous"
	default:
		return "unknown"
	}
}

// Snapshot is an immutable view of the session. Identity is set only when Authenticated.
type Snapshot struct {
	State    State
	Identity *model.Identity
}

// Authenticated reports whether the snapshot carries an identity.
func (s Snapshot) Authenticated() bool { return s.State == Authenticated && s.Identity != nil }

// UserID returns the identity id or "".
func (s Snapshot) UserID() string {
	if s.Identity == nil {
		return ""
	}
	return s.Identity.ID
}

// Role returns the identity role or "".
func (s Snapshot) Role() string {
	if s.Identity == nil {
		return ""
	}
	return s.Identity.Role
}

// Authenticator is the backend side of the session.
type Authenticator interface {
	// Me returns the identity bound to the current credential.
	Me(ctx context.Context) (*model.Identity, error)
	// Login exchanges credentials for a session and returns its identity.
	Login(ctx context.Context, cr model.Credentials) (*model.Identity, error)
	// Signup creates an account and a session and returns its identity.
	Signup(ctx context.Context, cr model.Credentials) (*model.Identity, error)
	// Logout ends the session on the backend and drops the local credential.
	Logout(ctx context.Context) error
}

// Store is the session state machine.
type Store struct {
	auth Authenticator
	log  *zap.Logger

	cur   atomic.Pointer[Snapshot]
	gen   atomic.Uint64 // bumped on every transition
	probe sync.Once
	ready chan struct{}
	done  sync.Once

	mu   sync.Mutex // serialises transitions and guards subs
	subs map[int]func(Snapshot)
	next int
}

// New returns a Store in the Initializing state.
func New(auth Authenticator, log *zap.Logger) *Store {
	s := &Store{
		auth:  auth,
		log:   logging.OrNop(log),
		ready: make(chan struct{}),
		subs:  map[int]func(Snapshot){},
	}
	s.cur.Store(&Snapshot{State: Initializing})
	return s
}

// Snapshot returns the current state and identity in one read.
func (s *Store) Snapshot() Snapshot { return *s.cur.Load() }

// State returns the current state.
func (s *Store) State() State { return s.cur.Load().State }

// Identity returns a copy of the identity, or false when not Authenticated.
func (s *Store) Identity() (model.Identity, bool) {
	snap := s.cur.Load()
	if snap.Identity == nil {
		return model.Identity{}, false
	}
	return *snap.Identity, true
}

// Init probes the backend once per Store. Later and concurrent calls wait for the
// first probe and return its outcome. A failed probe resolves to Anonymous; it is
// logged, never returned.
func (s *Store) Init(ctx context.Context) Snapshot {
	s.probe.Do(func() {
		if s.State() != Initializing {
			s.markReady()
			return
		}
		start := s.gen.Load()
		id, err := s.auth.Me(ctx)

		s.mu.Lock()
		if s.gen.Load() != start {
			// a login or logout settled the state while the probe was out
			s.mu.Unlock()
			s.markReady()
			return
		}
		var next Snapshot
		if err != nil || empty(id) {
			if err != nil {
				s.log.Info("session probe failed, continuing anonymous", zap.Error(err))
			} else {
				s.log.Info("session probe returned no identity, continuing anonymous")
			}
			next = Snapshot{State: Anonymous}
		} else {
			next = Snapshot{State: Authenticated, Identity: clone(id)}
		}
		s.setLocked(next)
		s.mu.Unlock()
		s.markReady()
		s.notify(next)
	})
	return s.Snapshot()
}

// empty reports whether id carries no user; a 2xx with no body decodes to this.
func empty(id *model.Identity) bool { return id == nil || id.ID == "" }

// Wait blocks until the session has left Initializing or ctx is done.
func (s *Store) Wait(ctx context.Context) (Snapshot, error) {
	select {
	case <-s.ready:
		return s.Snapshot(), nil
	case <-ctx.Done():
		return s.Snapshot(), ctx.Err()
	}
}

// Ready is closed once the session has resolved.
func (s *Store) Ready() <-chan struct{} { return s.ready }

// Login authenticates as the returned identity. A success without a user is
// ErrEmptyIdentity.
// On failure the state is left unchanged.
func (s *Store) Login(ctx context.Context, cr model.Credentials) (model.Identity, error) {
	id, err := s.auth.Login(ctx, cr)
	if err != nil {
		return model.Identity{}, err
	}
	if empty(id) {
		return model.Identity{}, ErrEmptyIdentity
	}
	s.become(Snapshot{State: Authenticated, Identity: clone(id)})
	s.log.Info("session login", zap.String("user_id", id.ID))
	return *id, nil
}

// Signup creates an account and authenticates as it.
func (s *Store) Signup(ctx context.Context, cr model.Credentials) (model.Identity, error) {
	id, err := s.auth.Signup(ctx, cr)
	if err != nil {
		return model.Identity{}, err
	}
	if empty(id) {
		return model.Identity{}, ErrEmptyIdentity
	}
	s.become(Snapshot{State: Authenticated, Identity: clone(id)})
	s.log.Info("session signup", zap.String("user_id", id.ID))
	return *id, nil
}

// Logout always ends in Anonymous. A backend failure is logged and returned for
// information; the state is not reverted and nothing is retried.
func (s *Store) Logout(ctx context.Context) error {
	err := s.auth.Logout(ctx)
	s.become(Snapshot{State: Anonymous})
	if err != nil {
		s.log.Warn("session logout failed on backend, cleared locally", zap.Error(err))
	}
	return err
}

// Replace swaps in refreshed identity data without a state transition.
// It reports false, changing nothing, unless the session is Authenticated.
func (s *Store) Replace(id model.Identity) bool {
	s.mu.Lock()
	if s.cur.Load().State != Authenticated {
		s.mu.Unlock()
		return false
	}
	next := Snapshot{State: Authenticated, Identity: clone(&id)}
	s.cur.Store(&next)
	s.mu.Unlock()
	s.notify(next)
	return true
}

// Subscribe registers fn for every change; the returned func unregisters it.
// fn runs on the goroutine that caused the change.
func (s *Store) Subscribe(fn func(Snapshot)) (cancel func()) {
	s.mu.Lock()
	id := s.next
	s.next++
	s.subs[id] = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

func (s *Store) become(next Snapshot) {
	s.mu.Lock()
	s.setLocked(next)
	s.mu.Unlock()
	s.markReady()
	s.notify(next)
}

func (s *Store) setLocked(next Snapshot) {
	s.gen.Add(1)
	s.cur.Store(&next)
}

func (s *Store) markReady() {
	s.done.Do(func() { close(s.ready) })
}

func (s *Store) notify(snap Snapshot) {
	s.mu.Lock()
	fns := make([]func(Snapshot), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.mu.Unlock()
	for _, fn := range fns {
		fn(snap)
	}
}

func clone(id *model.Identity) *model.Identity {
	c := *id
	if id.OnboardingComplete != nil {
		v := *id.OnboardingComplete
		c.OnboardingComplete = &v
	}
	return &c
}
