package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores and infrastructure layers
// return these (optionally wrapped) so services can translate them into domain
// errors with wire-stable reasons.
//
// These represent factual states about resources, not validation failures:
// - ErrNotFound: entity does not exist in store (or only exists soft-deleted)
// - ErrConflict: a uniqueness guarantee rejected the write
// - ErrExpired: token or claim has passed its expiry
// - ErrAlreadyUsed: resource (device fingerprint claim) already consumed
// - ErrInvalidState: entity in wrong state for the requested transition
// - ErrUnavailable: backing service temporarily unreachable
//
// For validation errors (bad input, missing fields), use pkg/domain-errors directly.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrExpired      = errors.New("expired")
	ErrAlreadyUsed  = errors.New("already used")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
)
