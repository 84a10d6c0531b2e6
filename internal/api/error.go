package api

import (
	"errors"
	"net/http"

	"github.com/and161185/birdwatch/internal/errs"
)

// Error is a failed API call.
//
// Message is the backend's own text when it sent one (Descriptive is then true),
// otherwise a generic "failed to <action>". Err is the errs sentinel for the status
// class, if any; Cause is the underlying transport or decode error, if any.
type Error struct {
	Op          string
	Status      int // 0 when no response was received
	Message     string
	Descriptive bool
	Err         error
	Cause       error
}

// Error returns the backend message, or the generic one when there was none.
func (e *Error) Error() string {
	if e.Cause != nil && !e.Descriptive {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

// Unwrap exposes the sentinel and the transport cause to errors.Is.
func (e *Error) Unwrap() []error {
	var out []error
	if e.Err != nil {
		out = append(out, e.Err)
	}
	if e.Cause != nil {
		out = append(out, e.Cause)
	}
	return out
}

// Transport reports whether no HTTP response was received.
func (e *Error) Transport() bool { return errors.Is(e.Err, errs.ErrTransport) && e.Status == 0 }

func sentinelFor(status int) error {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return errs.ErrUnauthorized
	case http.StatusNotFound:
		return errs.ErrNotFound
	case http.StatusConflict:
		return errs.ErrConflict
	default:
		return nil
	}
}

// Message returns the text to show the user for err: the backend message if the
// failure carried one, the generic message otherwise, or err.Error() for non-API errors.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Message
	}
	return err.Error()
}

// StatusOf returns the HTTP status of an API failure, or 0.
func StatusOf(err error) int {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Status
	}
	return 0
}
