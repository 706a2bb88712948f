// Package audit persists the append-only trail of attendance transitions.
// Entries are never edited or deleted; they are the sole way to recover
// soft-deleted history.
package audit

import (
	"context"

	"rollcall/internal/attendance/models"

	id "rollcall/pkg/domain"
)

// Store is the persistence contract for audit log entries.
type Store interface {
	// Append writes one immutable entry.
	Append(ctx context.Context, entry *models.AuditLogEntry) error

	// ListByRecord returns every entry for a record, oldest first.
	ListByRecord(ctx context.Context, recordID id.RecordID) ([]*models.AuditLogEntry, error)
}
