package audit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rollcall/internal/attendance/models"

	id "rollcall/pkg/domain"
)

func TestMemoryStoreAppendAndList(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()
	recordID := id.NewRecordID()
	actorID := id.NewUserID()
	now := time.Date(2026, 3, 14, 18, 0, 0, 0, time.UTC)

	first := &models.AuditLogEntry{
		RecordID:        recordID,
		Action:          models.AuditCheckIn,
		ActorID:         actorID,
		Timestamp:       now,
		ResultingStatus: models.StatusCheckedIn,
	}
	second := &models.AuditLogEntry{
		RecordID:        recordID,
		Action:          models.AuditCheckOut,
		ActorID:         actorID,
		Timestamp:       now.Add(time.Hour),
		ResultingStatus: models.StatusCheckedOut,
	}
	other := &models.AuditLogEntry{
		RecordID:        id.NewRecordID(),
		Action:          models.AuditCheckIn,
		ActorID:         actorID,
		Timestamp:       now,
		ResultingStatus: models.StatusCheckedIn,
	}

	require.NoError(t, store.Append(ctx, first))
	require.NoError(t, store.Append(ctx, second))
	require.NoError(t, store.Append(ctx, other))

	assert.Positive(t, first.ID)
	assert.Greater(t, second.ID, first.ID)

	entries, err := store.ListByRecord(ctx, recordID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, models.AuditCheckIn, entries[0].Action)
	assert.Equal(t, models.AuditCheckOut, entries[1].Action)

	t.Run("appended entries are insulated from caller mutation", func(t *testing.T) {
		first.Detail = "mutated after append"
		entries, err := store.ListByRecord(ctx, recordID)
		require.NoError(t, err)
		assert.Empty(t, entries[0].Detail)
	})
}
