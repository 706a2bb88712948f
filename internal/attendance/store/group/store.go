// Package group answers attendance group membership. Group rosters are
// written by team-management workflows; this engine only reads them, plus an
// upsert used for seeding and tests.
package group

import (
	"context"

	"rollcall/internal/attendance/models"
	"rollcall/internal/attendance/ports"
)

type Store interface {
	ports.GroupMembershipService

	Upsert(ctx context.Context, group *models.AttendanceGroup) error
}
