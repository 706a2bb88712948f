// Package visibility answers whether an event is visible and self-joinable
// for a user. Pure predicates; no store access.
package visibility

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"

	"rollcall/internal/attendance/models"

	id "rollcall/pkg/domain"
)

// Visible reports whether the event is open to the user: always for
// full-team events, otherwise only when the user belongs to at least one of
// the event's assigned groups.
func Visible(event *models.Event, userID id.UserID, userGroupIDs []id.GroupID) bool {
	if event.Visibility == models.VisibilityFullTeam {
		return true
	}
	for _, assigned := range event.AssignedGroupIDs {
		for _, held := range userGroupIDs {
			if assigned == held {
				return true
			}
		}
	}
	return false
}

// FilterVisible returns the subset of events visible to the user, preserving
// order. Evaluations are independent, so large inputs are sharded across a
// bounded worker group.
func FilterVisible(ctx context.Context, events []*models.Event, userID id.UserID, userGroupIDs []id.GroupID) ([]*models.Event, error) {
	if len(events) == 0 {
		return nil, nil
	}

	keep := make([]bool, len(events))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))

	const shardSize = 64
	for start := 0; start < len(events); start += shardSize {
		start := start
		end := min(start+shardSize, len(events))
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			for i := start; i < end; i++ {
				keep[i] = Visible(events[i], userID, userGroupIDs)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	visible := make([]*models.Event, 0, len(events))
	for i, event := range events {
		if keep[i] {
			visible = append(visible, event)
		}
	}
	return visible, nil
}
