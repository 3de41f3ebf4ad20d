package domain

import "time"

// Role is the single hierarchy tier a directory entry belongs to.
type Role string

const (
	RoleIncharge     Role = "incharge"
	RoleSubAdmin     Role = "sub_admin"
	RoleCentralAdmin Role = "central_admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleIncharge, RoleSubAdmin, RoleCentralAdmin:
		return true
	}
	return false
}

// RoleForLevel maps an escalation level to the role that owns tickets there.
func RoleForLevel(level EscalationLevel) (Role, bool) {
	switch level {
	case LevelRoom:
		return RoleIncharge, true
	case LevelSub:
		return RoleSubAdmin, true
	case LevelCentral:
		return RoleCentralAdmin, true
	}
	return "", false
}

// DirectoryEntry is an account that can own tickets.
type DirectoryEntry struct {
	ID             string
	OrganisationID string
	Name           string
	Email          string
	Role           Role
	Active         bool
	CreatedOn      time.Time
	UpdatedOn      time.Time
}

// Room groups tickets and names the incharge responsible at level 0.
type Room struct {
	ID             string
	OrganisationID string
	Name           string
	InchargeID     *string
	CreatedOn      time.Time
	UpdatedOn      time.Time
}
