// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import "errors"

// Common sentinels across api/session/view layers.
var (
	// ErrNotFound indicates the backend has no such entity (HTTP 404 on a singular endpoint).
	ErrNotFound = errors.New("not found")

	// ErrUnauthorized indicates a missing or rejected session (HTTP 401/403).
	ErrUnauthorized = errors.New("unauthorized")

	// ErrConflict indicates the backend refused a write because of existing state (HTTP 409).
	ErrConflict = errors.New("conflict")

	// ErrValidation indicates input rejected on the client before any request was sent.
	ErrValidation = errors.New("validation")

	// ErrTransport indicates the request never produced an HTTP response.
	ErrTransport = errors.New("transport")

	// ErrInFlight indicates an identical action is already running and the duplicate was dropped.
	ErrInFlight = errors.New("already in flight")

	// ErrNoSession indicates an operation needs an authenticated identity and there is none.
	ErrNoSession = errors.New("no session (login required)")
)
