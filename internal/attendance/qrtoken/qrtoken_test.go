package qrtoken

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rollcall/internal/attendance/models"

	id "rollcall/pkg/domain"
	dErrors "rollcall/pkg/domain-errors"
)

const testLifetime = 5 * time.Minute

func newTestEvent(version int) *models.Event {
	return &models.Event{
		ID:              id.NewEventID(),
		TeamID:          id.NewTeamID(),
		QRSecretVersion: version,
	}
}

func TestMintAndVerify(t *testing.T) {
	issuer := New("test-signing-key", testLifetime)
	event := newTestEvent(1)
	t0 := time.Date(2026, 3, 14, 18, 0, 0, 0, time.UTC)

	token, expiresAt, err := issuer.Mint(event.ID, event.QRSecretVersion, t0)
	require.NoError(t, err)
	assert.Equal(t, t0.Add(testLifetime), expiresAt)

	t.Run("valid just before expiry", func(t *testing.T) {
		require.NoError(t, issuer.Verify(token, event, t0.Add(4*time.Minute+59*time.Second)))
	})

	t.Run("expired just after lifetime", func(t *testing.T) {
		err := issuer.Verify(token, event, t0.Add(5*time.Minute+1*time.Second))
		require.Error(t, err)
		assert.True(t, dErrors.HasReason(err, models.ReasonQRExpired))
	})

	t.Run("rejected for a different event", func(t *testing.T) {
		other := newTestEvent(1)
		err := issuer.Verify(token, other, t0.Add(time.Minute))
		require.Error(t, err)
		assert.True(t, dErrors.HasReason(err, models.ReasonQREventMismatch))
	})

	t.Run("stale after secret regeneration", func(t *testing.T) {
		regenerated := &models.Event{ID: event.ID, QRSecretVersion: event.QRSecretVersion + 1}
		err := issuer.Verify(token, regenerated, t0.Add(time.Minute))
		require.Error(t, err)
		assert.True(t, dErrors.HasReason(err, models.ReasonQRStaleVersion))
	})

	t.Run("tampered token fails signature check", func(t *testing.T) {
		err := issuer.Verify(token+"x", event, t0.Add(time.Minute))
		require.Error(t, err)
		assert.True(t, dErrors.HasReason(err, models.ReasonQRInvalidSignature))
	})

	t.Run("token signed with another key is rejected", func(t *testing.T) {
		forged, _, err := New("attacker-key", testLifetime).Mint(event.ID, event.QRSecretVersion, t0)
		require.NoError(t, err)

		err = issuer.Verify(forged, event, t0.Add(time.Minute))
		require.Error(t, err)
		assert.True(t, dErrors.HasReason(err, models.ReasonQRInvalidSignature))
	})

	t.Run("garbage token is rejected", func(t *testing.T) {
		err := issuer.Verify("not-a-token", event, t0)
		require.Error(t, err)
		assert.True(t, dErrors.HasReason(err, models.ReasonQRInvalidSignature))
	})
}
