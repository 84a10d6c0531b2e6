package role

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHasRole_Table(t *testing.T) {
	t.Parallel()

	roles := All()
	for i, actor := range roles {
		for j, required := range roles {
			got := HasRole(string(actor), required)
			if got != (i >= j) {
				t.Fatalf("HasRole(%s,%s)=%v, want %v", actor, required, got, i >= j)
			}
		}
	}
}

func TestHasRole_AbsentOrUnknownActor(t *testing.T) {
	t.Parallel()

	for _, actor := range []string{"", "MODERATOR", "admin_user"} {
		assert.True(t, HasRole(actor, Guest), "actor %q vs GUEST", actor)
		assert.False(t, HasRole(actor, BasicUser), "actor %q vs BASIC_USER", actor)
		assert.False(t, HasRole(actor, SuperUser), "actor %q vs SUPER_USER", actor)
	}
}

func TestIsOwner(t *testing.T) {
	t.Parallel()

	assert.True(t, IsOwner("u1", "u1"))
	assert.False(t, IsOwner("u1", "u2"))
	assert.False(t, IsOwner("", ""))
	assert.False(t, IsOwner("u1", ""))
	assert.False(t, IsOwner("", "u1"))
}

func TestCanPerformAction_OwnerOverride(t *testing.T) {
	t.Parallel()

	for _, r := range append(All(), "") {
		assert.True(t, CanPerformAction("u1", string(r), "u1"), "owner with role %q", r)
	}
}

func TestCanPerformAction_DefaultsToAdmin(t *testing.T) {
	t.Parallel()

	cases := []struct {
		role string
		want bool
	}{
		{"", false},
		{"GUEST", false},
		{"BASIC_USER", false},
		{"ADMIN_USER", true},
		{"SUPER_USER", true},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, CanPerformAction("u1", tc.role, "u2"), "role %q", tc.role)
	}
}

func TestCanPerformActionAt_ExplicitGate(t *testing.T) {
	t.Parallel()

	assert.True(t, CanPerformActionAt("u1", "BASIC_USER", "u2", BasicUser))
	assert.False(t, CanPerformActionAt("u1", "ADMIN_USER", "u2", SuperUser))
	assert.True(t, CanPerformActionAt("u1", "", "", Guest))
}

func TestParseAndHelpers(t *testing.T) {
	t.Parallel()

	r, ok := Parse("SUPER_USER")
	assert.True(t, ok)
	assert.Equal(t, SuperUser, r)
	assert.Equal(t, 3, r.Ordinal())

	_, ok = Parse("ROOT")
	assert.False(t, ok)

	assert.True(t, IsBasicUser("ADMIN_USER"))
	assert.False(t, IsBasicUser("GUEST"))
	assert.True(t, IsAdmin("SUPER_USER"))
	assert.False(t, IsAdmin("BASIC_USER"))
	assert.True(t, IsSuperUser("SUPER_USER"))
	assert.False(t, IsSuperUser("ADMIN_USER"))
}
