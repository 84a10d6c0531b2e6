package session

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/and161185/birdwatch/internal/api"
	"github.com/and161185/birdwatch/internal/apitest"
	"github.com/and161185/birdwatch/internal/errs"
	"github.com/and161185/birdwatch/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ Authenticator = (*api.Auth)(nil)

type fakeAuth struct {
	mu        sync.Mutex
	me        *model.Identity
	meErr     error
	meGate    chan struct{}
	loginID   *model.Identity
	loginErr  error
	logoutErr error

	meCalls     atomic.Int32
	logoutCalls atomic.Int32
}

var _ Authenticator = (*fakeAuth)(nil)

func (f *fakeAuth) Me(ctx context.Context) (*model.Identity, error) {
	f.meCalls.Add(1)
	if f.meGate != nil {
		select {
		case <-f.meGate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.me, f.meErr
}

func (f *fakeAuth) Login(context.Context, model.Credentials) (*model.Identity, error) {
	return f.loginID, f.loginErr
}

func (f *fakeAuth) Signup(context.Context, model.Credentials) (*model.Identity, error) {
	return f.loginID, f.loginErr
}

func (f *fakeAuth) Logout(context.Context) error {
	f.logoutCalls.Add(1)
	return f.logoutErr
}

func TestStore_InitAuthenticated(t *testing.T) {
	t.Parallel()

	fa := &fakeAuth{me: &model.Identity{ID: "u1", Username: "robin", Role: "BASIC_USER"}}
	s := New(fa, nil)
	assert.Equal(t, Initializing, s.State())
	_, ok := s.Identity()
	assert.False(t, ok)

	snap := s.Init(context.Background())
	assert.Equal(t, Authenticated, snap.State)
	assert.Equal(t, "u1", snap.UserID())
	assert.Equal(t, "BASIC_USER", snap.Role())

	id, ok := s.Identity()
	require.True(t, ok)
	assert.Equal(t, "robin", id.Username)
}

func TestStore_ProbeFailureIsAnonymous(t *testing.T) {
	t.Parallel()

	fa := &fakeAuth{meErr: errors.New("connection refused")}
	s := New(fa, nil)

	snap := s.Init(context.Background())
	assert.Equal(t, Anonymous, snap.State)
	assert.Nil(t, snap.Identity)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	waited, err := s.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, Anonymous, waited.State)
}

func TestStore_EmptyBodyIsAnonymous(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	c, err := api.New(srv.URL)
	require.NoError(t, err)
	s := New(c.Auth, nil)

	snap := s.Init(context.Background())
	assert.Equal(t, Anonymous, snap.State)
	assert.Nil(t, snap.Identity)

	_, err = s.Login(context.Background(), model.Credentials{Username: "robin", Password: "pw"})
	require.ErrorIs(t, err, ErrEmptyIdentity)
	assert.ErrorIs(t, err, errs.ErrUnauthorized)
	assert.Equal(t, Anonymous, s.State())

	_, err = s.Signup(context.Background(), model.Credentials{Username: "robin", Password: "pw"})
	require.ErrorIs(t, err, ErrEmptyIdentity)
	assert.Equal(t, Anonymous, s.State())
}

func TestStore_BlankIdentityIsAnonymous(t *testing.T) {
	t.Parallel()

	fa := &fakeAuth{me: &model.Identity{}, loginID: &model.Identity{Username: "robin"}}
	s := New(fa, nil)
	assert.Equal(t, Anonymous, s.Init(context.Background()).State)

	_, err := s.Login(context.Background(), model.Credentials{Username: "robin", Password: "pw"})
	require.ErrorIs(t, err, ErrEmptyIdentity)
	assert.Equal(t, Anonymous, s.State())
}

func TestStore_InitRunsOnce(t *testing.T) {
	t.Parallel()

	fa := &fakeAuth{me: &model.Identity{ID: "u1"}, meGate: make(chan struct{})}
	s := New(fa, nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Init(context.Background())
		}()
	}
	close(fa.meGate)
	wg.Wait()
	s.Init(context.Background())

	assert.Equal(t, int32(1), fa.meCalls.Load())
	assert.Equal(t, Authenticated, s.State())
}

func TestStore_WaitBlocksUntilResolved(t *testing.T) {
	t.Parallel()

	fa := &fakeAuth{meErr: errors.New("401"), meGate: make(chan struct{})}
	s := New(fa, nil)
	go s.Init(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	snap, err := s.Wait(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, Initializing, snap.State)

	close(fa.meGate)
	snap, err = s.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Anonymous, snap.State)
}

func TestStore_LoginDuringProbeWins(t *testing.T) {
	t.Parallel()

	fa := &fakeAuth{
		meErr:   errors.New("401"),
		meGate:  make(chan struct{}),
		loginID: &model.Identity{ID: "u2"},
	}
	s := New(fa, nil)
	done := make(chan struct{})
	go func() {
		s.Init(context.Background())
		close(done)
	}()

	_, err := s.Login(context.Background(), model.Credentials{Username: "a", Password: "b"})
	require.NoError(t, err)
	close(fa.meGate)
	<-done

	assert.Equal(t, Authenticated, s.State())
	assert.Equal(t, "u2", s.Snapshot().UserID())
}

func TestStore_LoginFailureKeepsState(t *testing.T) {
	t.Parallel()

	fa := &fakeAuth{meErr: errors.New("401"), loginErr: errors.New("Invalid username or password")}
	s := New(fa, nil)
	s.Init(context.Background())

	_, err := s.Login(context.Background(), model.Credentials{Username: "a", Password: "b"})
	require.EqualError(t, err, "Invalid username or password")
	assert.Equal(t, Anonymous, s.State())
}

func TestStore_LogoutClearsEvenOnFailure(t *testing.T) {
	t.Parallel()

	fa := &fakeAuth{me: &model.Identity{ID: "u1"}, logoutErr: errors.New("boom")}
	s := New(fa, nil)
	s.Init(context.Background())
	require.Equal(t, Authenticated, s.State())

	err := s.Logout(context.Background())
	require.EqualError(t, err, "boom")
	assert.Equal(t, Anonymous, s.State())
	_, ok := s.Identity()
	assert.False(t, ok)
	assert.Equal(t, int32(1), fa.logoutCalls.Load())
}

func TestStore_Replace(t *testing.T) {
	t.Parallel()

	fa := &fakeAuth{meErr: errors.New("401")}
	s := New(fa, nil)
	assert.False(t, s.Replace(model.Identity{ID: "x"}), "no replace while initializing")
	s.Init(context.Background())
	assert.False(t, s.Replace(model.Identity{ID: "x"}), "no replace while anonymous")

	fa.loginID = &model.Identity{ID: "u1", FirstName: "Old"}
	_, err := s.Login(context.Background(), model.Credentials{Username: "a", Password: "b"})
	require.NoError(t, err)

	var seen []Snapshot
	cancel := s.Subscribe(func(sn Snapshot) { seen = append(seen, sn) })
	defer cancel()

	assert.True(t, s.Replace(model.Identity{ID: "u1", FirstName: "New"}))
	id, _ := s.Identity()
	assert.Equal(t, "New", id.FirstName)
	assert.Equal(t, Authenticated, s.State())
	require.Len(t, seen, 1)
	assert.Equal(t, "New", seen[0].Identity.FirstName)
}

func TestStore_IdentityIsACopy(t *testing.T) {
	t.Parallel()

	done := false
	src := &model.Identity{ID: "u1", OnboardingComplete: &done}
	s := New(&fakeAuth{me: src}, nil)
	s.Init(context.Background())

	src.ID = "mutated"
	*src.OnboardingComplete = true

	id, _ := s.Identity()
	assert.Equal(t, "u1", id.ID)
	assert.True(t, id.NeedsOnboarding())
}

func TestStore_AgainstBackend(t *testing.T) {
	t.Parallel()
	be := apitest.New(t)
	u := be.SeedUser("robin", "pw", "ADMIN_USER")

	c, err := api.New(be.URL())
	require.NoError(t, err)
	s := New(c.Auth, nil)
	assert.Equal(t, Anonymous, s.Init(context.Background()).State)

	id, err := s.Login(context.Background(), model.Credentials{Username: "robin", Password: "pw"})
	require.NoError(t, err)
	assert.Equal(t, u.ID, id.ID)

	fresh := New(c.Auth, nil)
	assert.Equal(t, Authenticated, fresh.Init(context.Background()).State, "cookie carries over to a new store")

	be.Fail("POST /auth/logout", 500, "")
	require.Error(t, s.Logout(context.Background()))
	assert.Equal(t, Anonymous, s.State())
	assert.Empty(t, c.SessionToken())
}
