// Package qrtoken mints and verifies the signed, expiring tokens embedded in
// event check-in QR codes. A token binds an event and the secret version it
// was minted under, so regenerating an event's code invalidates every
// outstanding token without any revocation list.
package qrtoken

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"rollcall/internal/attendance/models"

	id "rollcall/pkg/domain"
	dErrors "rollcall/pkg/domain-errors"
)

// Claims are the signed contents of a check-in token.
type Claims struct {
	EventID       string `json:"event_id"`
	SecretVersion int    `json:"secret_version"`
	jwt.RegisteredClaims
}

// Issuer signs and verifies check-in tokens with a shared HMAC key.
type Issuer struct {
	signingKey []byte
	lifetime   time.Duration
}

// New constructs an Issuer. Lifetime bounds how long a minted token
// validates; expiry is carried inside the signed claims so it cannot be
// stripped.
func New(signingKey string, lifetime time.Duration) *Issuer {
	return &Issuer{
		signingKey: []byte(signingKey),
		lifetime:   lifetime,
	}
}

// Mint issues a token for the event at the given secret version.
func (i *Issuer) Mint(eventID id.EventID, secretVersion int, now time.Time) (token string, expiresAt time.Time, err error) {
	expiresAt = now.Add(i.lifetime)
	newToken := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		EventID:       eventID.String(),
		SecretVersion: secretVersion,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	})

	signed, err := newToken.SignedString(i.signingKey)
	if err != nil {
		return "", time.Time{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to sign check-in token")
	}
	return signed, expiresAt, nil
}

// Verify checks the token against the event's current configuration.
// Checks run in order: signature, expiry, event binding, secret version.
func (i *Issuer) Verify(token string, event *models.Event, now time.Time) error {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return i.signingKey, nil
	}, jwt.WithTimeFunc(func() time.Time { return now }))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return dErrors.NewWithReason(dErrors.CodeValidation, models.ReasonQRExpired,
				"check-in token has expired")
		}
		return dErrors.NewWithReason(dErrors.CodeValidation, models.ReasonQRInvalidSignature,
			"check-in token signature is invalid")
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return dErrors.NewWithReason(dErrors.CodeValidation, models.ReasonQRInvalidSignature,
			"check-in token claims are invalid")
	}

	if claims.EventID != event.ID.String() {
		return dErrors.NewWithReason(dErrors.CodeValidation, models.ReasonQREventMismatch,
			"check-in token was issued for a different event")
	}
	if claims.SecretVersion != event.QRSecretVersion {
		return dErrors.NewWithReason(dErrors.CodeValidation, models.ReasonQRStaleVersion,
			"check-in token was issued before the code was regenerated")
	}
	return nil
}
