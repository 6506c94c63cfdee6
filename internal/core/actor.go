package core

import (
	"github.com/JonMunkholm/residents/internal/database"
)

// Roles.
const (
	RoleAdmin              = "admin"
	RoleFieldOfficer       = "field_officer"
	RolePanchayatSecretary = "panchayat_secretary"
)

// Roles lists every valid role.
var Roles = []string{RoleAdmin, RoleFieldOfficer, RolePanchayatSecretary}

// ValidRole reports whether r is a known role.
func ValidRole(r string) bool {
	for _, role := range Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Actor is the signed-in user an operation runs for.
type Actor struct {
	UserID       int64    `json:"id"`
	Username     string   `json:"username"`
	FullName     string   `json:"fullName"`
	Role         string   `json:"role"`
	Secretariats []string `json:"secretariats"`
}

// IsAdmin reports whether the actor is an administrator.
func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// HasRole reports whether the actor has one of roles.
func (a Actor) HasRole(roles ...string) bool {
	for _, r := range roles {
		if a.Role == r {
			return true
		}
	}
	return false
}

// CanEdit reports whether the actor may change resident fields.
// Panchayat secretaries are read-only.
func (a Actor) CanEdit() bool {
	return a.HasRole(RoleAdmin, RoleFieldOfficer)
}

// Scope restricts f to the residents the actor may see. Admins see
// everything; everyone else only their assigned secretariats.
func (a Actor) Scope(f database.ResidentFilter) database.ResidentFilter {
	if a.IsAdmin() {
		f.Restrict = false
		f.Secretariats = nil
		return f
	}
	f.Restrict = true
	f.Secretariats = append([]string(nil), a.Secretariats...)
	return f
}

// Covers reports whether r is inside the actor's scope.
func (a Actor) Covers(r database.Resident) bool {
	if a.IsAdmin() {
		return true
	}
	for _, s := range a.Secretariats {
		if s == r.Secretariat {
			return true
		}
	}
	return false
}

// SeesFullUID reports whether API responses carry unmasked UIDs for the actor.
func (a Actor) SeesFullUID() bool {
	return a.CanEdit()
}
