// Package guard collapses duplicate user actions while one is still running.
package guard

import (
	"context"
	"sync"

	"github.com/and161185/birdwatch/internal/errs"
	"github.com/and161185/birdwatch/internal/metrics"
)

// Guard tracks in-flight actions by key. The zero value is not usable; use New.
type Guard struct {
	mu       sync.Mutex
	inflight map[string]struct{}
	rec      *metrics.Recorder
}

// New returns a Guard reporting suppressions to rec (nil is fine).
func New(rec *metrics.Recorder) *Guard {
	return &Guard{inflight: make(map[string]struct{}), rec: rec}
}

// TryAcquire marks key busy. It returns a release func, or false if key is already busy.
func (g *Guard) TryAcquire(key string) (func(), bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, busy := g.inflight[key]; busy {
		return nil, false
	}
	g.inflight[key] = struct{}{}
	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			delete(g.inflight, key)
			g.mu.Unlock()
		})
	}, true
}

// Busy reports whether key is in flight, e.g. to disable a control.
func (g *Guard) Busy(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, busy := g.inflight[key]
	return busy
}

// Do runs fn unless key is already in flight, in which case it returns errs.ErrInFlight
// without calling fn. The flag is set before fn starts and cleared after it returns.
func (g *Guard) Do(ctx context.Context, action, key string, fn func(context.Context) error) error {
	release, ok := g.TryAcquire(action + ":" + key)
	if !ok {
		g.rec.Suppressed(action)
		return errs.ErrInFlight
	}
	defer release()
	return fn(ctx)
}
