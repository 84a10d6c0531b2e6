package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/and161185/birdwatch/internal/errs"
	"github.com/and161185/birdwatch/internal/model"
	"github.com/golang-jwt/jwt/v5"
)

// DefaultTTL is assumed when a token carries no expiry.
const DefaultTTL = 15 * time.Minute

// TokenInfo is what the client can read from a session cookie without the signing key.
type TokenInfo struct {
	Subject   string
	Username  string
	Role      string
	ExpiresAt time.Time // zero if absent
}

type tokenClaims struct {
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// DecodeToken reads the claims of a JWT without verifying its signature.
func DecodeToken(tok string) (TokenInfo, error) {
	var c tokenClaims
	if _, _, err := jwt.NewParser().ParseUnverified(tok, &c); err != nil {
		return TokenInfo{}, fmt.Errorf("decode session token: %w", err)
	}
	info := TokenInfo{Subject: c.Subject, Username: c.Username, Role: c.Role}
	if c.ExpiresAt != nil {
		info.ExpiresAt = c.ExpiresAt.Time
	}
	return info, nil
}

// Saved is the on-disk session.
type Saved struct {
	Token     string          `json:"token"`
	ExpiresAt time.Time       `json:"expires_at"`
	Identity  *model.Identity `json:"identity,omitempty"`
}

// FileStore persists the session cookie between CLI runs.
type FileStore struct {
	dir string
	now func() time.Time
}

// NewFileStore keeps session.json in dir.
func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir, now: time.Now}
}

// WithClock replaces the time source.
func (f *FileStore) WithClock(now func() time.Time) *FileStore {
	f.now = now
	return f
}

// Path is the session file location.
func (f *FileStore) Path() string { return filepath.Join(f.dir, "session.json") }

// Save writes token and identity; the expiry comes from the token, or now+DefaultTTL.
func (f *FileStore) Save(token string, id *model.Identity) error {
	exp := f.now().Add(DefaultTTL)
	if info, err := DecodeToken(token); err == nil && !info.ExpiresAt.IsZero() {
		exp = info.ExpiresAt
	}
	if err := os.MkdirAll(f.dir, 0o700); err != nil {
		return err
	}
	b, err := json.MarshalIndent(Saved{Token: token, ExpiresAt: exp, Identity: id}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(f.Path(), b, 0o600)
}

// Load returns the saved session, or an error wrapping errs.ErrNoSession when
// there is none or it has expired.
func (f *FileStore) Load() (Saved, error) {
	b, err := os.ReadFile(f.Path())
	if errors.Is(err, fs.ErrNotExist) {
		return Saved{}, errs.ErrNoSession
	}
	if err != nil {
		return Saved{}, err
	}
	var s Saved
	if err := json.Unmarshal(b, &s); err != nil {
		return Saved{}, fmt.Errorf("session file: %w", err)
	}
	if s.Token == "" || f.now().After(s.ExpiresAt) {
		return Saved{}, errs.ErrNoSession
	}
	return s, nil
}

// Clear removes the session file; a missing file is fine.
func (f *FileStore) Clear() error {
	err := os.Remove(f.Path())
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}
