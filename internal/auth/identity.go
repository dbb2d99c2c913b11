// Package auth provides the caller identity model and the bearer-token
// middleware of the catalogue API.
package auth

import "slices"

// Roles recognised by the catalogue.
const (
	RoleAdmin    = "ROLE_ADMIN"
	RoleEPOT     = "ROLE_EPOT"
	RoleProvider = "ROLE_PROVIDER"
	RoleUser     = "ROLE_USER"
)

// Identity is the caller of an operation, passed by value through the service
// layer. A zero Identity is an anonymous, read-only caller.
type Identity struct {
	UserID   string
	Email    string
	FullName string
	Roles    []string
}

// IsAnonymous reports whether the identity carries no authentication at all.
func (id Identity) IsAnonymous() bool {
	return id.UserID == "" && id.Email == "" && len(id.Roles) == 0
}

// HasRole reports whether the identity carries the given role.
func (id Identity) HasRole(role string) bool {
	return slices.Contains(id.Roles, role)
}

// IsAdmin reports whether the identity may perform moderation actions.
// EPOT members hold the same moderation rights as admins.
func (id Identity) IsAdmin() bool {
	return id.HasRole(RoleAdmin) || id.HasRole(RoleEPOT)
}

// Anonymous returns the unauthenticated identity.
func Anonymous() Identity { return Identity{} }

// System returns the identity the synchronization hooks act under.
func System() Identity {
	return Identity{
		UserID:   "system",
		FullName: "Catalogue System",
		Roles:    []string{RoleAdmin},
	}
}
