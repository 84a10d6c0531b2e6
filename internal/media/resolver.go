// Package media turns backend-relative resource paths into fetchable URLs.
package media

import "strings"

const (
	// DefaultProfilePicPath is served by the backend for users without a photo.
	DefaultProfilePicPath = "/profile_pictures/default_pfp.jpg"
	// DefaultBirdImage is the placeholder shown for birds and posts without an image.
	DefaultBirdImage = "/default-bird.jpg"
)

// Resolver joins relative paths onto a configured base.
type Resolver struct {
	base string
}

// NewResolver returns a Resolver for base. A trailing slash on base is dropped;
// an empty base yields root-relative paths.
func NewResolver(base string) *Resolver {
	return &Resolver{base: strings.TrimSuffix(strings.TrimSpace(base), "/")}
}

// Base returns the normalised base.
func (r *Resolver) Base() string { return r.base }

// Resolve maps a resource path to a URL.
// Empty input gives "", absolute http(s) URLs are returned unchanged,
// and anything else gets exactly one leading slash and the base prefix.
// Resolve is idempotent on its own absolute results.
func (r *Resolver) Resolve(path string) string {
	if path == "" {
		return ""
	}
	if isAbsolute(path) {
		return path
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return r.base + path
}

// ResolveAPI resolves an API route against the same base.
func (r *Resolver) ResolveAPI(path string) string {
	return r.Resolve(path)
}

// ResolveOr resolves path, or fallback when path is empty.
func (r *Resolver) ResolveOr(path, fallback string) string {
	if path == "" {
		return r.Resolve(fallback)
	}
	return r.Resolve(path)
}

// DefaultProfilePic returns the URL of the placeholder avatar.
func (r *Resolver) DefaultProfilePic() string {
	return r.Resolve(DefaultProfilePicPath)
}

// ProfilePic resolves a user's photo, falling back to the placeholder avatar.
func (r *Resolver) ProfilePic(path string) string {
	return r.ResolveOr(path, DefaultProfilePicPath)
}

func isAbsolute(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}
