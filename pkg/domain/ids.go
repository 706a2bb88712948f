// Package domain defines typed identifiers used across rollcall. Distinct ID
// types prevent cross-entity assignment at compile time; parsing enforces the
// invariant that IDs are valid, non-nil UUIDs at trust boundaries.
package domain

import (
	"github.com/google/uuid"

	dErrors "rollcall/pkg/domain-errors"
)

type (
	// UserID identifies a team member.
	UserID uuid.UUID
	// TeamID identifies a team.
	TeamID uuid.UUID
	// EventID identifies a schedulable team event.
	EventID uuid.UUID
	// GroupID identifies an attendance group within a team.
	GroupID uuid.UUID
	// RecordID identifies an attendance record.
	RecordID uuid.UUID
)

func parseUUID(raw string) (uuid.UUID, error) {
	if raw == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id must not be empty")
	}
	parsed, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "id must be a valid UUID")
	}
	if parsed == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id must not be the nil UUID")
	}
	return parsed, nil
}

// ParseUserID validates and converts a string into a UserID.
func ParseUserID(raw string) (UserID, error) {
	parsed, err := parseUUID(raw)
	return UserID(parsed), err
}

// ParseTeamID validates and converts a string into a TeamID.
func ParseTeamID(raw string) (TeamID, error) {
	parsed, err := parseUUID(raw)
	return TeamID(parsed), err
}

// ParseEventID validates and converts a string into an EventID.
func ParseEventID(raw string) (EventID, error) {
	parsed, err := parseUUID(raw)
	return EventID(parsed), err
}

// ParseGroupID validates and converts a string into a GroupID.
func ParseGroupID(raw string) (GroupID, error) {
	parsed, err := parseUUID(raw)
	return GroupID(parsed), err
}

// ParseRecordID validates and converts a string into a RecordID.
func ParseRecordID(raw string) (RecordID, error) {
	parsed, err := parseUUID(raw)
	return RecordID(parsed), err
}

// NewUserID generates a fresh UserID.
func NewUserID() UserID { return UserID(uuid.New()) }

// NewTeamID generates a fresh TeamID.
func NewTeamID() TeamID { return TeamID(uuid.New()) }

// NewEventID generates a fresh EventID.
func NewEventID() EventID { return EventID(uuid.New()) }

// NewGroupID generates a fresh GroupID.
func NewGroupID() GroupID { return GroupID(uuid.New()) }

// NewRecordID generates a fresh RecordID.
func NewRecordID() RecordID { return RecordID(uuid.New()) }

func (id UserID) String() string   { return uuid.UUID(id).String() }
func (id TeamID) String() string   { return uuid.UUID(id).String() }
func (id EventID) String() string  { return uuid.UUID(id).String() }
func (id GroupID) String() string  { return uuid.UUID(id).String() }
func (id RecordID) String() string { return uuid.UUID(id).String() }

func (id UserID) IsNil() bool   { return uuid.UUID(id) == uuid.Nil }
func (id TeamID) IsNil() bool   { return uuid.UUID(id) == uuid.Nil }
func (id EventID) IsNil() bool  { return uuid.UUID(id) == uuid.Nil }
func (id GroupID) IsNil() bool  { return uuid.UUID(id) == uuid.Nil }
func (id RecordID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
