// Package record persists attendance records and enforces the storage-level
// invariants the state machine depends on: at most one non-deleted record per
// (event, user), and at most one non-deleted, non-manual record per
// (event, device fingerprint).
package record

import (
	"context"
	"fmt"
	"time"

	"rollcall/internal/attendance/models"

	id "rollcall/pkg/domain"
	"rollcall/pkg/platform/sentinel"
)

// Conflict errors returned by Create. Both wrap sentinel.ErrConflict; the
// service translates them into wire reasons. An application-level existence
// check is not enough here: two concurrent check-ins can both pass a
// read-then-write check, so implementations must reject the losing write
// atomically (uniqueness constraint, or equivalent check under one lock).
var (
	ErrActiveRecordExists = fmt.Errorf("active attendance record already exists for event and user: %w", sentinel.ErrConflict)
	ErrDeviceInUse        = fmt.Errorf("device fingerprint already used by another user on this event: %w", sentinel.ErrConflict)
)

// Store is the persistence contract for attendance records. All reads filter
// soft-deleted rows; GetIncludingDeleted is the explicit audit-path escape
// hatch.
type Store interface {
	// Create inserts a new checked_in record. Returns ErrActiveRecordExists
	// or ErrDeviceInUse when a uniqueness invariant rejects the write.
	Create(ctx context.Context, rec *models.AttendanceRecord) error

	// GetActive returns the single non-deleted record for (event, user), or
	// sentinel.ErrNotFound.
	GetActive(ctx context.Context, eventID id.EventID, userID id.UserID) (*models.AttendanceRecord, error)

	// MarkCheckedOut performs the checked_in -> checked_out transition
	// atomically. Returns sentinel.ErrInvalidState when the record is already
	// checked out (checked_out_at is left unchanged) and sentinel.ErrNotFound
	// when no non-deleted record exists.
	MarkCheckedOut(ctx context.Context, eventID id.EventID, userID id.UserID, at time.Time) (*models.AttendanceRecord, error)

	// SoftDelete marks the active record deleted and returns it. Returns
	// sentinel.ErrNotFound when no non-deleted record exists.
	SoftDelete(ctx context.Context, eventID id.EventID, userID id.UserID, at time.Time, by id.UserID) (*models.AttendanceRecord, error)

	// ListByEvent returns all non-deleted records for an event, oldest first.
	ListByEvent(ctx context.Context, eventID id.EventID) ([]*models.AttendanceRecord, error)

	// ListByUser returns the user's non-deleted records with checked_in_at in
	// [from, to), oldest first.
	ListByUser(ctx context.Context, userID id.UserID, from, to time.Time) ([]*models.AttendanceRecord, error)

	// GetIncludingDeleted fetches a record by ID regardless of soft-delete
	// state. Audit path only; never used by standard reads.
	GetIncludingDeleted(ctx context.Context, recordID id.RecordID) (*models.AttendanceRecord, error)
}
