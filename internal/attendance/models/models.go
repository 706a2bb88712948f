// Package models holds the attendance domain types and their state
// transition rules. Stores persist these; services orchestrate them.
package models

import (
	"time"

	id "rollcall/pkg/domain"
	"rollcall/pkg/platform/sentinel"
)

// Method is how presence was established.
type Method string

const (
	MethodQR       Method = "qr"
	MethodLocation Method = "location"
	MethodManual   Method = "manual"
)

// IsValid reports whether m is a known check-in method.
func (m Method) IsValid() bool {
	switch m {
	case MethodQR, MethodLocation, MethodManual:
		return true
	}
	return false
}

// RequiresFingerprint reports whether records for this method carry a device
// fingerprint. Manual records never do; a privileged actor records attendance
// from their own device on someone else's behalf.
func (m Method) RequiresFingerprint() bool {
	return m == MethodQR || m == MethodLocation
}

// Status is the lifecycle state of a non-deleted attendance record.
type Status string

const (
	StatusCheckedIn  Status = "checked_in"
	StatusCheckedOut Status = "checked_out"
)

// VisibilityMode controls which team members may see and self-join an event.
type VisibilityMode string

const (
	VisibilityFullTeam   VisibilityMode = "full_team"
	VisibilityRestricted VisibilityMode = "restricted_to_groups"
)

// Location is the circular geofence around an event venue.
type Location struct {
	Latitude     float64
	Longitude    float64
	RadiusMeters float64
}

// Event is the slice of event configuration the check-in engine consumes.
// Scheduling, recurrence, and editing live in the calendar system.
type Event struct {
	ID       id.EventID
	TeamID   id.TeamID
	StartsAt time.Time
	EndsAt   time.Time

	// Location is nil for events whose check-in method is location-agnostic.
	Location *Location

	Visibility       VisibilityMode
	AssignedGroupIDs []id.GroupID

	// QRSecretVersion increments each time a coach regenerates the event's
	// code; outstanding tokens minted against older versions stop validating.
	QRSecretVersion int
}

// AttendanceGroup is a named subset of team members scoping event visibility.
// Membership is mutated by team-management workflows, not by this engine.
type AttendanceGroup struct {
	ID        id.GroupID
	TeamID    id.TeamID
	MemberIDs []id.UserID
}

// AttendanceRecord is one person's presence at one event. At most one
// non-deleted record exists per (event, user); the storage layer enforces
// this with a uniqueness constraint scoped to non-deleted rows.
type AttendanceRecord struct {
	ID      id.RecordID
	EventID id.EventID
	UserID  id.UserID
	Method  Method
	Status  Status

	// DeviceFingerprint is non-nil only for qr and location records.
	DeviceFingerprint *string

	CheckedInAt  time.Time
	CheckedOutAt *time.Time

	// ActorID is who performed the check-in: the user themselves for qr and
	// location, the coach or admin for manual.
	ActorID id.UserID

	IsDeleted bool
	DeletedAt *time.Time
	DeletedBy *id.UserID
}

// CanCheckOut validates the checked_in -> checked_out transition.
func (r *AttendanceRecord) CanCheckOut() error {
	if r.IsDeleted {
		return sentinel.ErrNotFound
	}
	if r.Status == StatusCheckedOut {
		return sentinel.ErrInvalidState
	}
	return nil
}

// ApplyCheckOut performs the terminal status change. Callers must have
// validated with CanCheckOut first.
func (r *AttendanceRecord) ApplyCheckOut(now time.Time) {
	r.Status = StatusCheckedOut
	r.CheckedOutAt = &now
}

// ApplySoftDelete marks the record deleted for audit-only retention. The
// record never returns to normal reads; a later check-in for the same
// (event, user) creates a new record.
func (r *AttendanceRecord) ApplySoftDelete(now time.Time, by id.UserID) {
	r.IsDeleted = true
	r.DeletedAt = &now
	r.DeletedBy = &by
}

// AuditAction names a recorded state transition.
type AuditAction string

const (
	AuditCheckIn          AuditAction = "check_in"
	AuditCheckOut         AuditAction = "check_out"
	AuditSoftDelete       AuditAction = "soft_delete"
	AuditTokenIssued      AuditAction = "token_issued"
	AuditSecretRegenerate AuditAction = "qr_secret_regenerated"
)

// AuditLogEntry is one immutable line in a record's history. Entries are
// append-only and are the sole path to soft-deleted data.
type AuditLogEntry struct {
	ID              int64
	RecordID        id.RecordID
	Action          AuditAction
	ActorID         id.UserID
	Timestamp       time.Time
	ResultingStatus Status
	Detail          string
}

// Capability is a granular permission resolved per request from the team's
// role sources.
type Capability string

// CapabilityManualOverride lets an actor record or correct attendance for any
// team member, bypassing visibility (visibility gates self-service, not
// administrative authority).
const CapabilityManualOverride Capability = "attendance:manual_override"

// ActorContext is the resolved identity and capability set for one request.
// It is computed fresh from all role sources and passed explicitly; nothing
// in the engine reads ambient session state.
type ActorContext struct {
	UserID       id.UserID
	Capabilities []Capability
}

// Can reports whether the actor holds the capability.
func (a ActorContext) Can(c Capability) bool {
	for _, held := range a.Capabilities {
		if held == c {
			return true
		}
	}
	return false
}

// Position is a client-reported location fix.
type Position struct {
	Latitude       float64
	Longitude      float64
	AccuracyMeters float64
}

// Evidence carries whatever proof accompanied a check-in request. Which
// fields matter depends on the method; validators ignore the rest.
type Evidence struct {
	QRToken           string
	Position          *Position
	DeviceFingerprint string
}
