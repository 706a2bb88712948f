// Package event persists event configuration: schedule window, location,
// visibility mode, and the QR secret version the token validator pins
// against.
package event

import (
	"context"

	"rollcall/internal/attendance/models"
	"rollcall/internal/attendance/ports"
)

// Store is the persistence contract for events. It extends the read-side
// repository with the write the server needs to register events.
type Store interface {
	ports.EventRepository

	Create(ctx context.Context, event *models.Event) error
}
