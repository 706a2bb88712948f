// Package authz composes time window, actor role, and event visibility into
// a single allow/deny decision for check-in requests.
package authz

import (
	"context"
	"fmt"
	"time"

	"rollcall/internal/attendance/models"
	"rollcall/internal/attendance/ports"
	"rollcall/internal/attendance/visibility"

	id "rollcall/pkg/domain"
	dErrors "rollcall/pkg/domain-errors"
)

// Gate decides whether an actor may record attendance for a target user on an
// event. Window widths are configuration; the gate never hardcodes them.
type Gate struct {
	leadWindow  time.Duration
	trailWindow time.Duration
	groups      ports.GroupMembershipService
}

// New constructs a Gate accepting check-ins from leadWindow before event
// start until trailWindow after event end.
func New(leadWindow, trailWindow time.Duration, groups ports.GroupMembershipService) *Gate {
	return &Gate{
		leadWindow:  leadWindow,
		trailWindow: trailWindow,
		groups:      groups,
	}
}

// Authorize evaluates the deny rules in order:
//
//  1. outside the widened event time window -> OUTSIDE_TIME_WINDOW
//  2. manual method requires the manual-override capability; visibility is
//     deliberately not checked (visibility gates self-service, not
//     administrative authority)
//  3. self check-in via qr/location requires the event to be visible to the
//     target user -> NOT_IN_ASSIGNED_GROUP otherwise
//  4. acting on another identity with a non-manual method -> NOT_AUTHORIZED
func (g *Gate) Authorize(ctx context.Context, actor models.ActorContext, targetUserID id.UserID, event *models.Event, method models.Method, now time.Time) error {
	windowStart := event.StartsAt.Add(-g.leadWindow)
	windowEnd := event.EndsAt.Add(g.trailWindow)
	if now.Before(windowStart) || now.After(windowEnd) {
		return dErrors.NewWithReason(dErrors.CodeForbidden, models.ReasonOutsideTimeWindow,
			fmt.Sprintf("check-in accepted between %s and %s", windowStart.Format(time.RFC3339), windowEnd.Format(time.RFC3339)))
	}

	if method == models.MethodManual {
		if !actor.Can(models.CapabilityManualOverride) {
			return dErrors.NewWithReason(dErrors.CodeForbidden, models.ReasonNotAuthorized,
				"manual attendance requires a coach or admin role for this team")
		}
		return nil
	}

	if actor.UserID != targetUserID {
		// Only manual supports acting on another identity.
		return dErrors.NewWithReason(dErrors.CodeForbidden, models.ReasonNotAuthorized,
			"qr and location check-ins are self-service only")
	}

	groupIDs, err := g.groups.GroupsOf(ctx, targetUserID, event.TeamID)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve group membership")
	}
	if !visibility.Visible(event, targetUserID, groupIDs) {
		return dErrors.NewWithReason(dErrors.CodeForbidden, models.ReasonNotInAssignedGroup,
			"event is restricted to groups you are not part of")
	}
	return nil
}
