// Package badge computes the achievements shown on a profile.
package badge

import "github.com/and161185/birdwatch/internal/model"

// Badge ids.
const (
	FirstSighting   = "first_sighting"
	Collector       = "collector"
	SocialButterfly = "social_butterfly"
	Photographer    = "photographer"
)

// Unlock thresholds.
const (
	minPosts   = 1
	minSpecies = 10
	minFriends = 3
	minLikes   = 5
)

// Badge is one achievement.
type Badge struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
}

// Catalog lists every badge in display order.
var Catalog = []Badge{
	{ID: FirstSighting, Name: "First Flight", Description: "Record your first bird sighting", Icon: "🐦"},
	{ID: Collector, Name: "Collector", Description: "Spot 10 different bird species", Icon: "🦅"},
	{ID: SocialButterfly, Name: "Social Butterfly", Description: "Make 5 friends", Icon: "🦋"},
	{ID: Photographer, Name: "Photographer", Description: "Get 20 likes on your sightings", Icon: "📸"},
}

// Unlocked returns the ids earned by user given their posts, in Catalog order.
func Unlocked(user model.User, posts []model.Post) []string {
	ids := make([]string, 0, len(Catalog))
	if len(posts) >= minPosts {
		ids = append(ids, FirstSighting)
	}

	species := map[string]struct{}{}
	likes := 0
	for _, p := range posts {
		if b := p.BirdID(); b != "" {
			species[b] = struct{}{}
		}
		likes += len(p.Likes)
	}
	if len(species) >= minSpecies {
		ids = append(ids, Collector)
	}
	if len(user.Friends) >= minFriends {
		ids = append(ids, SocialButterfly)
	}
	if likes >= minLikes {
		ids = append(ids, Photographer)
	}
	return ids
}

// Status pairs a badge with whether it is earned.
type Status struct {
	Badge
	Unlocked bool `json:"unlocked"`
}

// Statuses returns the whole Catalog marked against the unlocked ids.
func Statuses(unlocked []string) []Status {
	got := make(map[string]bool, len(unlocked))
	for _, id := range unlocked {
		got[id] = true
	}
	out := make([]Status, len(Catalog))
	for i, b := range Catalog {
		out[i] = Status{Badge: b, Unlocked: got[b.ID]}
	}
	return out
}
