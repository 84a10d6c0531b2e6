package badge

import (
	"fmt"
	"testing"

	"github.com/and161185/birdwatch/internal/model"
	"github.com/stretchr/testify/assert"
)

func posts(n int, bird func(i int) string, likes int) []model.Post {
	out := make([]model.Post, n)
	for i := range out {
		if b := bird(i); b != "" {
			out[i].Bird = &b
		}
		for j := 0; j < likes; j++ {
			out[i].Likes = append(out[i].Likes, fmt.Sprintf("u%d", j))
		}
	}
	return out
}

func TestUnlocked(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		user  model.User
		posts []model.Post
		want  []string
	}{
		{
			name: "nothing",
			want: []string{},
		},
		{
			name:  "first post",
			posts: posts(1, func(int) string { return "" }, 0),
			want:  []string{FirstSighting},
		},
		{
			name:  "ten species",
			posts: posts(10, func(i int) string { return fmt.Sprintf("b%d", i) }, 0),
			want:  []string{FirstSighting, Collector},
		},
		{
			name:  "repeated species do not count twice",
			posts: posts(12, func(i int) string { return fmt.Sprintf("b%d", i%9) }, 0),
			want:  []string{FirstSighting},
		},
		{
			name: "posts without a bird are ignored for species",
			posts: posts(15, func(i int) string {
				if i < 9 {
					return fmt.Sprintf("b%d", i)
				}
				return ""
			}, 0),
			want: []string{FirstSighting},
		},
		{
			name: "three friends",
			user: model.User{Friends: []string{"a", "b", "c"}},
			want: []string{SocialButterfly},
		},
		{
			name:  "likes add up across posts",
			posts: posts(3, func(int) string { return "" }, 2),
			want:  []string{FirstSighting, Photographer},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Unlocked(tt.user, tt.posts))
		})
	}
}

func TestStatuses(t *testing.T) {
	t.Parallel()
	st := Statuses([]string{Collector})
	assert.Len(t, st, len(Catalog))
	for _, s := range st {
		assert.Equal(t, s.ID == Collector, s.Unlocked, s.ID)
	}
	assert.Equal(t, "First Flight", st[0].Name)
}
