// Package api contains one client per backend resource family.
//
// Every call issues exactly one HTTP request with the session cookie attached,
// maps non-2xx responses to *Error and decodes 2xx JSON into the declared shape.
// Nothing is retried.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/and161185/birdwatch/internal/errs"
	"github.com/and161185/birdwatch/internal/logging"
	"github.com/and161185/birdwatch/internal/metrics"
	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"
)

// SessionCookie is the cookie the backend issues on login and signup.
const SessionCookie = "jwt"

// RequestIDHeader carries a per-request id for log correlation.
const RequestIDHeader = "X-Request-ID"

const maxErrorBody = 64 << 10

// Client is the shared transport of the resource clients.
type Client struct {
	base *url.URL
	http *http.Client
	jar  http.CookieJar
	log  *zap.Logger
	rec  *metrics.Recorder

	Auth      *Auth
	Birds     *Birds
	Users     *Users
	Groups    *Groups
	Sightings *Sightings
	Search    *Search
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client. Its jar is used if set.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTimeout sets the per-request timeout of the default http.Client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

// WithLogger sets the request logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.log = logging.OrNop(l) }
}

// WithMetrics sets the request recorder.
func WithMetrics(r *metrics.Recorder) Option {
	return func(c *Client) { c.rec = r }
}

// New returns a Client talking to base, e.g. "http://localhost:8080".
func New(base string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimSuffix(base, "/"))
	if err != nil {
		return nil, fmt.Errorf("api: base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("api: base url %q: scheme must be http or https", base)
	}
	c := &Client{
		base: u,
		http: &http.Client{Timeout: 15 * time.Second},
		log:  zap.NewNop(),
	}
	for _, o := range opts {
		o(c)
	}
	if c.http.Jar == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, err
		}
		c.http.Jar = jar
	}
	c.jar = c.http.Jar

	c.Auth = &Auth{c: c}
	c.Birds = &Birds{c: c}
	c.Users = &Users{c: c}
	c.Groups = &Groups{c: c}
	c.Sightings = &Sightings{c: c}
	c.Search = &Search{c: c}
	return c, nil
}

// BaseURL returns the configured base.
func (c *Client) BaseURL() string { return c.base.String() }

// SessionToken returns the session cookie currently held for the backend, or "".
func (c *Client) SessionToken() string {
	for _, ck := range c.jar.Cookies(c.base) {
		if ck.Name == SessionCookie {
			return ck.Value
		}
	}
	return ""
}

// SetSessionToken seeds the jar with a previously saved session cookie.
func (c *Client) SetSessionToken(token string) {
	if token == "" {
		c.ClearSession()
		return
	}
	c.jar.SetCookies(c.base, []*http.Cookie{{Name: SessionCookie, Value: token, Path: "/"}})
}

// ClearSession drops the session cookie from the jar.
func (c *Client) ClearSession() {
	c.jar.SetCookies(c.base, []*http.Cookie{{Name: SessionCookie, Value: "", Path: "/", MaxAge: -1}})
}

// request describes one call.
type request struct {
	op       string // stable name for logs, metrics and generic messages
	action   string // "fetch user", used in "failed to <action>"
	method   string
	path     string
	query    url.Values
	body     any // JSON-encoded when non-nil
	form     *form
	notFound string // message used on 404 when the backend sends none
}

func (c *Client) endpoint(path string, q url.Values) string {
	u := *c.base
	u.Path = strings.TrimSuffix(u.Path, "/") + path
	if len(q) > 0 {
		u.RawQuery = q.Encode()
	}
	return u.String()
}

// do sends r and decodes a 2xx body into out (when out is non-nil).
func (c *Client) do(ctx context.Context, r request, out any) error {
	var (
		body        io.Reader
		contentType string
	)
	switch {
	case r.form != nil:
		b, ct, err := r.form.encode()
		if err != nil {
			return &Error{Op: r.op, Message: "failed to " + r.action, Err: err}
		}
		body, contentType = b, ct
	case r.body != nil:
		b, err := json.Marshal(r.body)
		if err != nil {
			return &Error{Op: r.op, Message: "failed to " + r.action, Err: err}
		}
		body, contentType = bytes.NewReader(b), "application/json"
	}

	req, err := http.NewRequestWithContext(ctx, r.method, c.endpoint(r.path, r.query), body)
	if err != nil {
		return &Error{Op: r.op, Message: "failed to " + r.action, Err: err}
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	rid, _ := uuid.NewV4()
	req.Header.Set(RequestIDHeader, rid.String())

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.rec.ObserveRequest(r.op, 0, time.Since(start))
		c.log.Warn("api",
			zap.String("op", r.op),
			zap.String("method", r.method),
			zap.String("path", r.path),
			zap.String("request_id", rid.String()),
			zap.Duration("dur", time.Since(start)),
			zap.Error(err),
		)
		return &Error{Op: r.op, Message: "failed to " + r.action, Err: errs.ErrTransport, Cause: err}
	}
	defer resp.Body.Close()

	// no payloads in logs, metadata only
	c.rec.ObserveRequest(r.op, resp.StatusCode, time.Since(start))
	c.log.Debug("api",
		zap.String("op", r.op),
		zap.String("method", r.method),
		zap.String("path", r.path),
		zap.Int("status", resp.StatusCode),
		zap.String("request_id", rid.String()),
		zap.Duration("dur", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.failure(r, resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &Error{Op: r.op, Status: resp.StatusCode, Message: "failed to " + r.action, Err: errs.ErrTransport, Cause: err}
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &Error{Op: r.op, Status: resp.StatusCode, Message: "failed to " + r.action, Cause: fmt.Errorf("decode: %w", err)}
	}
	return nil
}

func (c *Client) failure(r request, resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	e := &Error{Op: r.op, Status: resp.StatusCode, Err: sentinelFor(resp.StatusCode)}
	if msg := backendMessage(raw); msg != "" {
		e.Message = msg
		e.Descriptive = true
	} else if resp.StatusCode == http.StatusNotFound && r.notFound != "" {
		e.Message = r.notFound
	} else {
		e.Message = "failed to " + r.action
	}
	return e
}

// backendMessage extracts {"error": ...} or {"message": ...}, else the trimmed text body.
func backendMessage(raw []byte) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return ""
	}
	if raw[0] == '{' {
		var m struct {
			Error   string `json:"error"`
			Message string `json:"message"`
		}
		if json.Unmarshal(raw, &m) == nil {
			if m.Error != "" {
				return m.Error
			}
			return m.Message
		}
	}
	if raw[0] == '<' {
		return "" // html error pages carry nothing useful
	}
	return string(raw)
}

// list runs a collection GET; a 404 is an empty collection.
func list[T any](ctx context.Context, c *Client, r request) ([]T, error) {
	var out []T
	err := c.do(ctx, r, &out)
	if errors.Is(err, errs.ErrNotFound) {
		return []T{}, nil
	}
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []T{}
	}
	return out, nil
}

// strict runs a collection GET where a 404 is an error.
func strict[T any](ctx context.Context, c *Client, r request) ([]T, error) {
	var out []T
	if err := c.do(ctx, r, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []T{}
	}
	return out, nil
}

func one[T any](ctx context.Context, c *Client, r request) (*T, error) {
	var out T
	if err := c.do(ctx, r, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func p(segments ...string) string {
	var b strings.Builder
	for _, s := range segments {
		b.WriteByte('/')
		b.WriteString(url.PathEscape(s))
	}
	return b.String()
}

func q(kv ...string) url.Values {
	v := url.Values{}
	for i := 0; i+1 < len(kv); i += 2 {
		v.Set(kv[i], kv[i+1])
	}
	return v
}
