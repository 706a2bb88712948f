package domain

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "rollcall/pkg/domain-errors"
)

// IDs must be valid, non-empty, non-nil UUIDs at trust boundaries.
func TestParseUUID_Invariants(t *testing.T) {
	t.Run("rejects empty string", func(t *testing.T) {
		_, err := ParseUserID("")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects invalid format", func(t *testing.T) {
		_, err := ParseEventID("not-a-uuid")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects nil UUID", func(t *testing.T) {
		_, err := ParseGroupID(uuid.Nil.String())
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("accepts valid UUID", func(t *testing.T) {
		valid := uuid.New()
		parsed, err := ParseUserID(valid.String())
		require.NoError(t, err)
		assert.Equal(t, UserID(valid), parsed)
	})
}

// TestTypeDistinction verifies the compiler enforces type safety.
// If this compiles, distinct ID types cannot be assigned to each other.
func TestTypeDistinction(t *testing.T) {
	userID := UserID(uuid.New())
	eventID := EventID(uuid.New())

	// These would fail to compile if types were interchangeable:
	// var _ UserID = eventID   // compile error
	// var _ EventID = userID   // compile error

	assert.NotEqual(t, uuid.UUID(userID), uuid.UUID(eventID))
}

func TestStringRoundTrip(t *testing.T) {
	recordID := NewRecordID()
	parsed, err := ParseRecordID(recordID.String())
	require.NoError(t, err)
	assert.Equal(t, recordID, parsed)
	assert.False(t, parsed.IsNil())
}
