// Package role evaluates the fixed role hierarchy used to gate actions in the client.
//
// Results here only decide what the client offers; the backend enforces the real rules.
package role

// Role is a privilege label as the backend spells it.
type Role string

const (
	Guest     Role = "GUEST"
	BasicUser Role = "BASIC_USER"
	AdminUser Role = "ADMIN_USER"
	SuperUser Role = "SUPER_USER"
)

// DefaultAction is the role required by CanPerformAction when none is given.
const DefaultAction = AdminUser

var ordinals = map[Role]int{
	Guest:     0,
	BasicUser: 1,
	AdminUser: 2,
	SuperUser: 3,
}

// All returns the known roles from least to most privileged.
func All() []Role {
	return []Role{Guest, BasicUser, AdminUser, SuperUser}
}

// Valid reports whether r is one of the four known labels.
func (r Role) Valid() bool {
	_, ok := ordinals[r]
	return ok
}

// Ordinal returns the rank of r; unknown and empty labels rank as Guest.
func (r Role) Ordinal() int {
	return ordinals[r]
}

// String returns the wire label.
func (r Role) String() string { return string(r) }

// Parse converts a raw label; ok is false for anything outside the table.
func Parse(s string) (Role, bool) {
	r := Role(s)
	return r, r.Valid()
}

// HasRole reports whether actorRole ranks at or above required.
// An absent or unrecognised actor role ranks as Guest, so every actor satisfies Guest.
func HasRole(actorRole string, required Role) bool {
	return Role(actorRole).Ordinal() >= required.Ordinal()
}

// IsOwner reports whether actorID and ownerID name the same, present entity.
func IsOwner(actorID, ownerID string) bool {
	return actorID != "" && ownerID != "" && actorID == ownerID
}

// CanPerformAction gates a mutation of a resource owned by ownerID at DefaultAction.
func CanPerformAction(actorID, actorRole, ownerID string) bool {
	return CanPerformActionAt(actorID, actorRole, ownerID, DefaultAction)
}

// CanPerformActionAt allows the owner, or anyone at or above required.
func CanPerformActionAt(actorID, actorRole, ownerID string, required Role) bool {
	return IsOwner(actorID, ownerID) || HasRole(actorRole, required)
}

// IsBasicUser reports whether actorRole is BASIC_USER or above.
func IsBasicUser(actorRole string) bool { return HasRole(actorRole, BasicUser) }

// IsAdmin reports whether actorRole is ADMIN_USER or above.
func IsAdmin(actorRole string) bool { return HasRole(actorRole, AdminUser) }

// IsSuperUser reports whether actorRole is SUPER_USER.
func IsSuperUser(actorRole string) bool { return HasRole(actorRole, SuperUser) }
