// Package cache keeps one normalized copy of each backend entity, keyed by kind and id.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/and161185/birdwatch/internal/logging"
	"github.com/and161185/birdwatch/internal/metrics"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Kinds of cached entity.
const (
	KindBird  = "bird"
	KindUser  = "user"
	KindGroup = "group"
	KindPost  = "post"
)

// ErrMiss is returned by a Store when the key is absent.
var ErrMiss = errors.New("cache miss")

// Key addresses one entity.
type Key struct {
	Kind string
	ID   string
}

func (k Key) String() string { return k.Kind + "/" + k.ID }

// Entry is a stored value with the time it was written.
type Entry struct {
	Data     []byte
	StoredAt time.Time
}

// Store holds raw JSON entries.
type Store interface {
	Get(ctx context.Context, k Key) (Entry, error)
	Put(ctx context.Context, k Key, e Entry) error
	Delete(ctx context.Context, k Key) error
}

// Memory is an in-process Store.
type Memory struct {
	mu sync.RWMutex
	m  map[Key]Entry
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory { return &Memory{m: map[Key]Entry{}} }

func (m *Memory) Get(_ context.Context, k Key) (Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.m[k]
	if !ok {
		return Entry{}, ErrMiss
	}
	return e, nil
}

func (m *Memory) Put(_ context.Context, k Key, e Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.m[k] = e
	return nil
}

func (m *Memory) Delete(_ context.Context, k Key) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.m, k)
	return nil
}

// Cache is a read-through layer over a Store with a freshness window.
type Cache struct {
	store Store
	ttl   time.Duration
	now   func() time.Time
	rec   *metrics.Recorder
	log   *zap.Logger
	group singleflight.Group
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock replaces the time source.
func WithClock(now func() time.Time) Option { return func(c *Cache) { c.now = now } }

// WithMetrics reports hits and misses to rec.
func WithMetrics(rec *metrics.Recorder) Option { return func(c *Cache) { c.rec = rec } }

// WithLogger sets the logger for store failures.
func WithLogger(l *zap.Logger) Option { return func(c *Cache) { c.log = l } }

// New wraps store. A ttl <= 0 disables reads from the store; writes still go through.
func New(store Store, ttl time.Duration, opts ...Option) *Cache {
	c := &Cache{store: store, ttl: ttl, now: time.Now}
	for _, o := range opts {
		o(c)
	}
	c.log = logging.OrNop(c.log)
	return c
}

// Put stores v under k.
func (c *Cache) Put(ctx context.Context, k Key, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("cache put %s: %w", k, err)
	}
	return c.store.Put(ctx, k, Entry{Data: b, StoredAt: c.now()})
}

// Invalidate drops k so the next Fetch goes to the backend.
func (c *Cache) Invalidate(ctx context.Context, k Key) {
	if err := c.store.Delete(ctx, k); err != nil {
		c.log.Warn("cache invalidate failed", zap.Stringer("key", k), zap.Error(err))
	}
}

func (c *Cache) lookup(ctx context.Context, k Key, out any) bool {
	if c.ttl <= 0 {
		return false
	}
	e, err := c.store.Get(ctx, k)
	if err != nil {
		if !errors.Is(err, ErrMiss) {
			c.log.Warn("cache read failed", zap.Stringer("key", k), zap.Error(err))
		}
		return false
	}
	if c.now().Sub(e.StoredAt) > c.ttl {
		return false
	}
	return json.Unmarshal(e.Data, out) == nil
}

// Fetch returns the cached value for k, or calls load and stores its result.
// Concurrent fetches of the same key share one load, which is not cancelled
// by any single caller. Every caller gets its own copy of the value.
func Fetch[T any](ctx context.Context, c *Cache, k Key, load func(context.Context) (*T, error)) (*T, error) {
	var v T
	if c.lookup(ctx, k, &v) {
		c.rec.CacheLookup(k.Kind, true)
		return &v, nil
	}
	c.rec.CacheLookup(k.Kind, false)

	res, err, _ := c.group.Do(k.String(), func() (any, error) {
		shared := context.WithoutCancel(ctx)
		got, err := load(shared)
		if err != nil {
			return nil, err
		}
		b, err := json.Marshal(got)
		if err != nil {
			return nil, fmt.Errorf("cache fetch %s: %w", k, err)
		}
		if err := c.store.Put(shared, k, Entry{Data: b, StoredAt: c.now()}); err != nil {
			c.log.Warn("cache write failed", zap.Stringer("key", k), zap.Error(err))
		}
		return b, nil
	})
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(res.([]byte), &v); err != nil {
		return nil, fmt.Errorf("cache fetch %s: %w", k, err)
	}
	return &v, nil
}
