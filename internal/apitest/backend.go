// Package apitest runs an in-memory bird-watching backend for tests.
//
// Routes mirror the real service closely enough for client tests: cookie sessions
// signed as HS256 JWTs, the same paths and status codes, and the same 404 habits.
// Every route counts its calls and can be forced to fail or block.
package apitest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/and161185/birdwatch/internal/model"
	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
)

// Claims is the payload of the session cookie.
type Claims struct {
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

type account struct {
	user      model.User
	password  passwordHash
	onboarded *bool
}

type fault struct {
	status int
	body   string
}

// Backend is the fake service. Zero value is not usable; use New.
type Backend struct {
	mu       sync.Mutex
	accounts map[string]*account // by id
	birds    map[string]model.Bird
	groups   map[string]model.Group
	posts    map[string]model.Post
	seq      int

	calls  map[string]int
	faults map[string]fault
	holds  map[string]chan struct{}

	secret []byte
	TTL    time.Duration
	srv    *httptest.Server
}

// New starts a Backend and closes it when t finishes.
func New(t testing.TB) *Backend {
	t.Helper()
	b := &Backend{
		accounts: map[string]*account{},
		birds:    map[string]model.Bird{},
		groups:   map[string]model.Group{},
		posts:    map[string]model.Post{},
		calls:    map[string]int{},
		faults:   map[string]fault{},
		holds:    map[string]chan struct{}{},
		secret:   []byte("apitest-secret"),
		TTL:      time.Hour,
	}
	b.srv = httptest.NewServer(b.routes())
	t.Cleanup(b.srv.Close)
	return b
}

// URL is the base URL of the server.
func (b *Backend) URL() string { return b.srv.URL }

// Calls returns how often the route "METHOD /pattern" was hit, e.g. "GET /users/{id}".
func (b *Backend) Calls(route string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[route]
}

// Fail makes route answer status with body until cleared with Fail(route, 0, "").
func (b *Backend) Fail(route string, status int, body string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if status == 0 {
		delete(b.faults, route)
		return
	}
	b.faults[route] = fault{status: status, body: body}
}

// Hold makes route wait until the returned func is called. entered is signalled
// once per request that reaches the route.
func (b *Backend) Hold(route string) (release func(), entered <-chan struct{}) {
	gate := make(chan struct{})
	in := make(chan struct{}, 16)
	b.mu.Lock()
	b.holds[route] = gate
	b.holds[route+"#entered"] = in
	b.mu.Unlock()
	var once sync.Once
	return func() { once.Do(func() { close(gate) }) }, in
}

// SeedUser stores an onboarded account and returns it.
func (b *Backend) SeedUser(username, password, role string) model.User {
	b.mu.Lock()
	defer b.mu.Unlock()
	done := true
	a := &account{
		user:      model.User{ID: b.next("u"), Username: username, Role: role, Posts: []string{}, Groups: []string{}},
		password:  hashPassword(password),
		onboarded: &done,
	}
	b.accounts[a.user.ID] = a
	return a.user
}

// SeedBird stores a catalog entry and returns it.
func (b *Backend) SeedBird(common, scientific string) model.Bird {
	b.mu.Lock()
	defer b.mu.Unlock()
	bird := model.Bird{ID: b.next("b"), CommonName: common, ScientificName: scientific}
	b.birds[bird.ID] = bird
	return bird
}

// SeedGroup stores a group owned by owner and returns it.
func (b *Backend) SeedGroup(name string, owner model.User) model.Group {
	b.mu.Lock()
	defer b.mu.Unlock()
	g := model.Group{
		ID: b.next("g"), Name: name,
		Owner:    summary(owner),
		Members:  []model.PostUser{},
		Requests: []model.PostUser{},
	}
	b.groups[g.ID] = g
	if a := b.accounts[owner.ID]; a != nil {
		a.user.Groups = append(a.user.Groups, g.ID)
	}
	return g
}

// SeedPost stores a post by author and returns it.
func (b *Backend) SeedPost(author model.User, header, birdID, groupID string) model.Post {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.createPost(b.accounts[author.ID], model.PostInput{
		Header: header, TextBody: header, Bird: optional(birdID), Group: optional(groupID),
	}, "")
}

// Befriend links two accounts both ways.
func (b *Backend) Befriend(x, y model.User) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.link(x.ID, y.ID)
}

// Group returns the stored group.
func (b *Backend) Group(id string) model.Group {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.groups[id]
}

// Post returns the stored post.
func (b *Backend) Post(id string) model.Post {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.posts[id]
}

// Token signs a session cookie for user, valid for TTL.
func (b *Backend) Token(u model.User) string {
	now := time.Now()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Username: u.Username,
		Role:     u.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(b.TTL)),
		},
	})
	s, err := tok.SignedString(b.secret)
	if err != nil {
		panic(err)
	}
	return s
}

func (b *Backend) next(prefix string) string {
	b.seq++
	return fmt.Sprintf("%s%03d", prefix, b.seq)
}

// ---- plumbing ----

func (b *Backend) handle(r chi.Router, method, pattern string, h http.HandlerFunc) {
	route := method + " " + pattern
	r.Method(method, pattern, http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		b.mu.Lock()
		b.calls[route]++
		f, failing := b.faults[route]
		gate := b.holds[route]
		entered := b.holds[route+"#entered"]
		b.mu.Unlock()

		if gate != nil {
			select {
			case entered <- struct{}{}:
			default:
			}
			<-gate
		}
		if failing {
			if f.body != "" {
				w.Header().Set("Content-Type", "application/json")
			}
			w.WriteHeader(f.status)
			_, _ = w.Write([]byte(f.body))
			return
		}
		h(w, req)
	}))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// session returns the account behind the jwt cookie, or nil.
func (b *Backend) session(r *http.Request) *account {
	ck, err := r.Cookie("jwt")
	if err != nil || ck.Value == "" {
		return nil
	}
	var c Claims
	_, err = jwt.ParseWithClaims(ck.Value, &c, func(*jwt.Token) (any, error) { return b.secret, nil },
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.accounts[c.Subject]
}

func (b *Backend) setSession(w http.ResponseWriter, u model.User) {
	http.SetCookie(w, &http.Cookie{
		Name: "jwt", Value: b.Token(u), Path: "/", HttpOnly: true,
		MaxAge: int(b.TTL / time.Second), SameSite: http.SameSiteLaxMode,
	})
}

func identity(a *account) model.Identity {
	return model.Identity{
		ID: a.user.ID, Username: a.user.Username, Role: a.user.Role,
		ProfilePic: a.user.ProfilePic, FirstName: a.user.FirstName, LastName: a.user.LastName,
		Location: a.user.Location, OnboardingComplete: a.onboarded,
	}
}

func summary(u model.User) model.PostUser {
	return model.PostUser{UserID: u.ID, Username: u.Username, ProfilePic: u.ProfilePic}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func (b *Backend) link(x, y string) {
	ax, ay := b.accounts[x], b.accounts[y]
	if ax == nil || ay == nil {
		return
	}
	if !ax.user.HasFriend(y) {
		ax.user.Friends = append(ax.user.Friends, y)
	}
	if !ay.user.HasFriend(x) {
		ay.user.Friends = append(ay.user.Friends, x)
	}
}

func without[T any](list []T, drop func(T) bool) []T {
	out := list[:0:0]
	for _, v := range list {
		if !drop(v) {
			out = append(out, v)
		}
	}
	return out
}

func contains(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}

func sortedValues[T any](m map[string]T, id func(T) string) []T {
	out := make([]T, 0, len(m))
	for _, v := range m {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return id(out[i]) < id(out[j]) })
	return out
}
