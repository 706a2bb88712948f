// Package role resolves team roles into capability answers. Two role
// sources exist historically, a per-team flag and a granular role table;
// both collapse into one question here: may this user record and manage
// attendance on behalf of others.
package role

import (
	"context"

	"rollcall/internal/attendance/ports"

	id "rollcall/pkg/domain"
)

// Role is a user's standing within a team.
type Role string

const (
	RoleMember Role = "member"
	RoleCoach  Role = "coach"
	RoleAdmin  Role = "admin"
)

// GrantsManualOverride reports whether the role carries the capability to
// check others in and out and to remove records.
func (r Role) GrantsManualOverride() bool {
	return r == RoleCoach || r == RoleAdmin
}

type Store interface {
	ports.TeamRoleService

	Assign(ctx context.Context, userID id.UserID, teamID id.TeamID, role Role) error
}
