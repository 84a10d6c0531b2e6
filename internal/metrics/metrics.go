// Package metrics defines the client-side Prometheus metrics.
//
// Every Recorder owns its registry so tests and CLI runs never share state.
// A nil *Recorder is valid and records nothing.
package metrics

import (
	"io"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/common/expfmt"
)

const namespace = "birdwatch"

// Recorder groups the metric vectors of one client.
type Recorder struct {
	reg *prometheus.Registry

	// requests counts finished API calls.
	// Labels: op (e.g. "sightings.list"), code (HTTP status or "transport").
	requests *prometheus.CounterVec

	// latency measures API call duration by op.
	latency *prometheus.HistogramVec

	// suppressed counts duplicate actions dropped by the in-flight guard.
	suppressed *prometheus.CounterVec

	// cache counts entity cache lookups. Labels: kind, result ("hit"/"miss").
	cache *prometheus.CounterVec
}

// New registers all vectors on a fresh registry.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Recorder{
		reg: reg,
		requests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "requests_total",
			Help:      "Total number of API requests, by operation and status code.",
		}, []string{"op", "code"}),
		latency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "request_duration_seconds",
			Help:      "Duration of API requests from send to decoded response.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
		suppressed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "guard",
			Name:      "suppressed_total",
			Help:      "Duplicate actions dropped while an identical one was in flight.",
		}, []string{"action"}),
		cache: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "lookups_total",
			Help:      "Entity cache lookups, by entity kind and result.",
		}, []string{"kind", "result"}),
	}
}

// ObserveRequest records one API call. status 0 means the request never got a response.
func (r *Recorder) ObserveRequest(op string, status int, d time.Duration) {
	if r == nil {
		return
	}
	code := "transport"
	if status > 0 {
		code = strconv.Itoa(status)
	}
	r.requests.WithLabelValues(op, code).Inc()
	r.latency.WithLabelValues(op).Observe(d.Seconds())
}

// Suppressed records a dropped duplicate action.
func (r *Recorder) Suppressed(action string) {
	if r == nil {
		return
	}
	r.suppressed.WithLabelValues(action).Inc()
}

// CacheLookup records a cache hit or miss.
func (r *Recorder) CacheLookup(kind string, hit bool) {
	if r == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	r.cache.WithLabelValues(kind, result).Inc()
}

// Registry exposes the underlying registry, e.g. for testutil.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.reg
}

// WriteText encodes every gathered family in the Prometheus text format.
func (r *Recorder) WriteText(w io.Writer) error {
	if r == nil {
		return nil
	}
	mfs, err := r.reg.Gather()
	if err != nil {
		return err
	}
	enc := expfmt.NewEncoder(w, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range mfs {
		if err := enc.Encode(mf); err != nil {
			return err
		}
	}
	return nil
}
