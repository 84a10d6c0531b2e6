// Package model defines the records exchanged with the bird-watching backend.
//
// Field names follow the backend JSON. The client never validates response shapes.
package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
)

// Identity is the authenticated user as returned by /auth/me, /auth/login and /auth/signup.
type Identity struct {
	ID                 string   `json:"id"`
	Username           string   `json:"username"`
	Role               string   `json:"role"`
	ProfilePic         string   `json:"profilePic,omitempty"`
	FirstName          string   `json:"firstName,omitempty"`
	LastName           string   `json:"lastName,omitempty"`
	Location           Location `json:"location,omitempty"`
	OnboardingComplete *bool    `json:"onboardingComplete,omitempty"` // nil on legacy accounts
}

// NeedsOnboarding reports whether the backend explicitly marked the account as not onboarded.
func (i Identity) NeedsOnboarding() bool {
	return i.OnboardingComplete != nil && !*i.OnboardingComplete
}

// Summary returns the embedded form used inside posts and groups.
func (i Identity) Summary() PostUser {
	return PostUser{UserID: i.ID, Username: i.Username, ProfilePic: i.ProfilePic}
}

// Location is either a coordinate pair or a free-form label such as "Boise, ID".
type Location struct {
	Latitude  string `json:"latitude,omitempty"`
	Longitude string `json:"longitude,omitempty"`
	Label     string `json:"-"` // set when the backend sent a plain string
}

// IsZero reports whether nothing is known about the location.
func (l Location) IsZero() bool {
	return l.Latitude == "" && l.Longitude == "" && l.Label == ""
}

// String renders the label or "lat, lon".
func (l Location) String() string {
	if l.Label != "" {
		return l.Label
	}
	if l.Latitude == "" && l.Longitude == "" {
		return ""
	}
	return l.Latitude + ", " + l.Longitude
}

// UnmarshalJSON accepts null, a string label or a {latitude, longitude} object
// whose members may be strings or numbers.
func (l *Location) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case len(b) == 0 || bytes.Equal(b, []byte("null")):
		*l = Location{}
		return nil
	case b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*l = Location{Label: s}
		return nil
	}
	var raw struct {
		Latitude  json.RawMessage `json:"latitude"`
		Longitude json.RawMessage `json:"longitude"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return fmt.Errorf("location: %w", err)
	}
	*l = Location{Latitude: scalar(raw.Latitude), Longitude: scalar(raw.Longitude)}
	return nil
}

// MarshalJSON writes a label as a string and coordinates as an object.
func (l Location) MarshalJSON() ([]byte, error) {
	if l.Label != "" {
		return json.Marshal(l.Label)
	}
	if l.Latitude == "" && l.Longitude == "" {
		return []byte("null"), nil
	}
	return json.Marshal(struct {
		Latitude  string `json:"latitude"`
		Longitude string `json:"longitude"`
	}{l.Latitude, l.Longitude})
}

func scalar(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	return string(raw)
}

// Coordinates is a decoded point.
type Coordinates struct {
	Latitude  float64
	Longitude float64
}

// FromPair reads the backend's [lat, lon] order.
func FromPair(p [2]float64) Coordinates {
	return Coordinates{Latitude: p[0], Longitude: p[1]}
}

// Format renders "lat, lon" with the given number of decimals.
func (c Coordinates) Format(decimals int) string {
	return strconv.FormatFloat(c.Latitude, 'f', decimals, 64) + ", " +
		strconv.FormatFloat(c.Longitude, 'f', decimals, 64)
}

// Location converts to the string form stored on users and post tags.
func (c Coordinates) Location() Location {
	return Location{
		Latitude:  strconv.FormatFloat(c.Latitude, 'f', -1, 64),
		Longitude: strconv.FormatFloat(c.Longitude, 'f', -1, 64),
	}
}

// User is a full account record.
type User struct {
	ID         string   `json:"id"`
	Username   string   `json:"username"`
	FirstName  string   `json:"firstName,omitempty"`
	LastName   string   `json:"lastName,omitempty"`
	ProfilePic string   `json:"profilePic,omitempty"`
	Location   Location `json:"location,omitempty"`
	Friends    []string `json:"friends,omitempty"` // user ids
	Posts      []string `json:"posts"`             // post ids
	Groups     []string `json:"groups"`            // group ids
	Role       string   `json:"role"`
}

// HasFriend reports whether id is in the friend list.
func (u User) HasFriend(id string) bool {
	for _, f := range u.Friends {
		if f == id {
			return true
		}
	}
	return false
}

// Bird is a species entry in the catalog.
type Bird struct {
	ID             string      `json:"id"`
	CommonName     string      `json:"commonName"`
	ScientificName string      `json:"scientificName,omitempty"`
	ImageURL       string      `json:"imageURL,omitempty"` // external URL or backend path
	Location       *[2]float64 `json:"location,omitempty"` // [lat, lon]
}

// PostUser is the user summary embedded in posts, comments and groups.
type PostUser struct {
	UserID     string `json:"userId"`
	Username   string `json:"username"`
	ProfilePic string `json:"profilePic,omitempty"`
}

// Group is a community of users.
type Group struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	Owner       PostUser    `json:"owner"`
	Members     []PostUser  `json:"members"`
	Requests    []PostUser  `json:"requests"`
	GroupPhoto  string      `json:"groupPhoto,omitempty"`
	Location    *[2]float64 `json:"location,omitempty"`
	Followers   int         `json:"followers,omitempty"`
}

// IsMember reports whether userID is the owner or a member.
func (g Group) IsMember(userID string) bool {
	if userID == "" {
		return false
	}
	if g.Owner.UserID == userID {
		return true
	}
	return containsUser(g.Members, userID)
}

// HasRequested reports whether userID has a pending join request.
func (g Group) HasRequested(userID string) bool {
	return userID != "" && containsUser(g.Requests, userID)
}

func containsUser(list []PostUser, id string) bool {
	for _, m := range list {
		if m.UserID == id {
			return true
		}
	}
	return false
}

// Tags carries the coordinates a post was made at.
type Tags struct {
	Latitude  string `json:"latitude,omitempty"`
	Longitude string `json:"longitude,omitempty"`
}

// Comment is a reply on a post. The backend identifies comments by content, not id.
type Comment struct {
	User      PostUser `json:"user"`
	TextBody  string   `json:"textBody"`
	Timestamp string   `json:"timestamp,omitempty"`
}

// Post is a sighting.
type Post struct {
	ID        string    `json:"id"`
	Header    string    `json:"header"`
	Tags      *Tags     `json:"tags,omitempty"`
	Bird      *string   `json:"bird"` // bird id or nil
	Flagged   bool      `json:"flagged"`
	Group     *string   `json:"group,omitempty"` // group id or nil
	Help      bool      `json:"help"`
	Likes     []string  `json:"likes"` // user ids
	Image     *string   `json:"image,omitempty"`
	TextBody  string    `json:"textBody"`
	Timestamp string    `json:"timestamp"`
	Comments  []Comment `json:"comments"`
	User      PostUser  `json:"user"`
}

// LikedBy reports whether userID is in the like list.
func (p Post) LikedBy(userID string) bool {
	for _, id := range p.Likes {
		if id == userID {
			return true
		}
	}
	return false
}

// BirdID returns the bird id or "".
func (p Post) BirdID() string {
	if p.Bird == nil {
		return ""
	}
	return *p.Bird
}

// GroupID returns the group id or "".
func (p Post) GroupID() string {
	if p.Group == nil {
		return ""
	}
	return *p.Group
}

// ImagePath returns the image path or "".
func (p Post) ImagePath() string {
	if p.Image == nil {
		return ""
	}
	return *p.Image
}

// SearchResults is the combined /search response.
type SearchResults struct {
	Birds  []Bird  `json:"birds"`
	Users  []User  `json:"users"`
	Groups []Group `json:"groups"`
	Posts  []Post  `json:"posts"`
}

// Upload is an optional file attached to a multipart write.
type Upload struct {
	Filename string
	Body     io.Reader
}
