// Package ports declares the interfaces the attendance engine consumes from
// the rest of the platform. Interface-driven so tests swap in-memory
// implementations without rewiring business code.
package ports

import (
	"context"

	"rollcall/internal/attendance/models"

	id "rollcall/pkg/domain"
)

// EventRepository resolves event configuration: visibility, location, time
// window, and the current QR secret version.
type EventRepository interface {
	Get(ctx context.Context, eventID id.EventID) (*models.Event, error)

	// BumpQRSecretVersion atomically increments the event's secret version,
	// invalidating every previously issued check-in token, and returns the new
	// version.
	BumpQRSecretVersion(ctx context.Context, eventID id.EventID) (int, error)
}

// GroupMembershipService is the source of truth for attendance group
// membership within a team.
type GroupMembershipService interface {
	GroupsOf(ctx context.Context, userID id.UserID, teamID id.TeamID) ([]id.GroupID, error)
}

// TeamRoleService collapses the team's overlapping role sources (per-team
// role flag plus granular role table) into capability answers, computed fresh
// per request.
type TeamRoleService interface {
	HasManualOverrideCapability(ctx context.Context, userID id.UserID, teamID id.TeamID) (bool, error)
}
