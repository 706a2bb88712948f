package visibility

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rollcall/internal/attendance/models"

	id "rollcall/pkg/domain"
)

func restrictedEvent(groups ...id.GroupID) *models.Event {
	return &models.Event{
		ID:               id.NewEventID(),
		TeamID:           id.NewTeamID(),
		Visibility:       models.VisibilityRestricted,
		AssignedGroupIDs: groups,
	}
}

func TestVisible(t *testing.T) {
	userID := id.NewUserID()
	g1 := id.NewGroupID()
	g2 := id.NewGroupID()
	g3 := id.NewGroupID()

	t.Run("full team event visible to everyone", func(t *testing.T) {
		event := &models.Event{Visibility: models.VisibilityFullTeam}
		assert.True(t, Visible(event, userID, nil))
	})

	t.Run("restricted event visible on group overlap", func(t *testing.T) {
		event := restrictedEvent(g1, g2)
		assert.True(t, Visible(event, userID, []id.GroupID{g3, g2}))
	})

	t.Run("restricted event hidden without overlap", func(t *testing.T) {
		event := restrictedEvent(g1)
		assert.False(t, Visible(event, userID, []id.GroupID{g2, g3}))
	})

	t.Run("restricted event hidden when user has no groups", func(t *testing.T) {
		event := restrictedEvent(g1)
		assert.False(t, Visible(event, userID, nil))
	})

	t.Run("restricted event with no assigned groups is hidden", func(t *testing.T) {
		event := restrictedEvent()
		assert.False(t, Visible(event, userID, []id.GroupID{g1}))
	})
}

func TestFilterVisible(t *testing.T) {
	userID := id.NewUserID()
	g1 := id.NewGroupID()
	userGroups := []id.GroupID{g1}

	t.Run("empty input", func(t *testing.T) {
		visible, err := FilterVisible(context.Background(), nil, userID, userGroups)
		require.NoError(t, err)
		assert.Empty(t, visible)
	})

	t.Run("preserves order across shards", func(t *testing.T) {
		// More events than one shard so the parallel path is exercised.
		const n = 300
		events := make([]*models.Event, 0, n)
		var wantIDs []id.EventID
		for i := 0; i < n; i++ {
			var event *models.Event
			if i%3 == 0 {
				event = restrictedEvent(g1)
				wantIDs = append(wantIDs, event.ID)
			} else {
				event = restrictedEvent(id.NewGroupID())
			}
			events = append(events, event)
		}

		visible, err := FilterVisible(context.Background(), events, userID, userGroups)
		require.NoError(t, err)
		require.Len(t, visible, len(wantIDs))
		for i, event := range visible {
			assert.Equal(t, wantIDs[i], event.ID)
		}
	})

	t.Run("cancelled context surfaces error", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		events := make([]*models.Event, 200)
		for i := range events {
			events[i] = restrictedEvent(g1)
		}
		_, err := FilterVisible(ctx, events, userID, userGroups)
		require.Error(t, err)
	})
}
