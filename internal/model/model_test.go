package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdentity_NeedsOnboarding(t *testing.T) {
	t.Parallel()

	var id Identity
	require.NoError(t, json.Unmarshal([]byte(`{"id":"1","username":"a","role":"BASIC_USER"}`), &id))
	assert.False(t, id.NeedsOnboarding(), "absent flag counts as onboarded")

	require.NoError(t, json.Unmarshal([]byte(`{"id":"1","onboardingComplete":false}`), &id))
	assert.True(t, id.NeedsOnboarding())

	require.NoError(t, json.Unmarshal([]byte(`{"id":"1","onboardingComplete":true}`), &id))
	assert.False(t, id.NeedsOnboarding())
}

func TestLocation_Decode(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want Location
	}{
		{`null`, Location{}},
		{`"Boise, ID"`, Location{Label: "Boise, ID"}},
		{`{"latitude":"43.6","longitude":"-116.2"}`, Location{Latitude: "43.6", Longitude: "-116.2"}},
		{`{"latitude":43.6,"longitude":-116.2}`, Location{Latitude: "43.6", Longitude: "-116.2"}},
	}
	for _, tc := range cases {
		var got Location
		require.NoError(t, json.Unmarshal([]byte(tc.in), &got), tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}
}

func TestLocation_StringAndEncode(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "Boise, ID", Location{Label: "Boise, ID"}.String())
	assert.Equal(t, "1, 2", Location{Latitude: "1", Longitude: "2"}.String())
	assert.True(t, Location{}.IsZero())

	b, err := json.Marshal(Location{Label: "x"})
	require.NoError(t, err)
	assert.JSONEq(t, `"x"`, string(b))
}

func TestCoordinates(t *testing.T) {
	t.Parallel()

	c := FromPair([2]float64{43.61234567, -116.2})
	assert.Equal(t, "43.6123, -116.2000", c.Format(4))
	assert.Equal(t, Location{Latitude: "43.61234567", Longitude: "-116.2"}, c.Location())
}

func TestGroupMembership(t *testing.T) {
	t.Parallel()

	g := Group{
		Owner:    PostUser{UserID: "o"},
		Members:  []PostUser{{UserID: "m"}},
		Requests: []PostUser{{UserID: "r"}},
	}
	assert.True(t, g.IsMember("o"))
	assert.True(t, g.IsMember("m"))
	assert.False(t, g.IsMember("r"))
	assert.False(t, g.IsMember(""))
	assert.True(t, g.HasRequested("r"))
	assert.False(t, g.HasRequested("m"))
}

func TestPost_Accessors(t *testing.T) {
	t.Parallel()

	var p Post
	require.NoError(t, json.Unmarshal([]byte(`{"id":"p","bird":null,"likes":["a"],"image":"/x.jpg"}`), &p))
	assert.Equal(t, "", p.BirdID())
	assert.Equal(t, "", p.GroupID())
	assert.Equal(t, "/x.jpg", p.ImagePath())
	assert.True(t, p.LikedBy("a"))
	assert.False(t, p.LikedBy("b"))
}
