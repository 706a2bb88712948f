package record

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"rollcall/internal/attendance/models"

	id "rollcall/pkg/domain"
	"rollcall/pkg/platform/sentinel"
)

type MemoryStoreSuite struct {
	suite.Suite
	store *MemoryStore
	ctx   context.Context

	eventID id.EventID
	userID  id.UserID
	now     time.Time
}

func TestMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(MemoryStoreSuite))
}

func (s *MemoryStoreSuite) SetupTest() {
	s.store = NewMemory()
	s.ctx = context.Background()
	s.eventID = id.NewEventID()
	s.userID = id.NewUserID()
	s.now = time.Date(2026, 3, 14, 18, 30, 0, 0, time.UTC)
}

func (s *MemoryStoreSuite) newRecord(eventID id.EventID, userID id.UserID, fingerprint string) *models.AttendanceRecord {
	rec := &models.AttendanceRecord{
		ID:          id.NewRecordID(),
		EventID:     eventID,
		UserID:      userID,
		Method:      models.MethodQR,
		Status:      models.StatusCheckedIn,
		CheckedInAt: s.now,
		ActorID:     userID,
	}
	if fingerprint != "" {
		rec.DeviceFingerprint = &fingerprint
	}
	return rec
}

func (s *MemoryStoreSuite) TestCreateAndGetActive() {
	rec := s.newRecord(s.eventID, s.userID, "fp-1")
	s.Require().NoError(s.store.Create(s.ctx, rec))

	got, err := s.store.GetActive(s.ctx, s.eventID, s.userID)
	s.Require().NoError(err)
	s.Equal(rec.ID, got.ID)
	s.Equal(models.StatusCheckedIn, got.Status)
	s.Require().NotNil(got.DeviceFingerprint)
	s.Equal("fp-1", *got.DeviceFingerprint)
}

func (s *MemoryStoreSuite) TestCreateRejectsDuplicateActive() {
	s.Require().NoError(s.store.Create(s.ctx, s.newRecord(s.eventID, s.userID, "fp-1")))

	err := s.store.Create(s.ctx, s.newRecord(s.eventID, s.userID, "fp-2"))
	s.Require().ErrorIs(err, ErrActiveRecordExists)
	s.ErrorIs(err, sentinel.ErrConflict)
}

func (s *MemoryStoreSuite) TestCreateRejectsDeviceReuseByOtherUser() {
	s.Require().NoError(s.store.Create(s.ctx, s.newRecord(s.eventID, s.userID, "shared-fp")))

	err := s.store.Create(s.ctx, s.newRecord(s.eventID, id.NewUserID(), "shared-fp"))
	s.Require().ErrorIs(err, ErrDeviceInUse)
}

func (s *MemoryStoreSuite) TestDeviceReuseAllowedAcrossEvents() {
	s.Require().NoError(s.store.Create(s.ctx, s.newRecord(s.eventID, s.userID, "shared-fp")))
	s.Require().NoError(s.store.Create(s.ctx, s.newRecord(id.NewEventID(), id.NewUserID(), "shared-fp")))
}

func (s *MemoryStoreSuite) TestManualRecordsCarryNoFingerprintConflict() {
	manual := s.newRecord(s.eventID, s.userID, "")
	manual.Method = models.MethodManual
	s.Require().NoError(s.store.Create(s.ctx, manual))

	// A second manual record for another user also has a nil fingerprint and
	// must not collide.
	other := s.newRecord(s.eventID, id.NewUserID(), "")
	other.Method = models.MethodManual
	s.Require().NoError(s.store.Create(s.ctx, other))
}

func (s *MemoryStoreSuite) TestMarkCheckedOut() {
	s.Require().NoError(s.store.Create(s.ctx, s.newRecord(s.eventID, s.userID, "fp-1")))

	checkedOutAt := s.now.Add(time.Hour)
	rec, err := s.store.MarkCheckedOut(s.ctx, s.eventID, s.userID, checkedOutAt)
	s.Require().NoError(err)
	s.Equal(models.StatusCheckedOut, rec.Status)
	s.Require().NotNil(rec.CheckedOutAt)
	s.Equal(checkedOutAt, *rec.CheckedOutAt)

	s.Run("second check-out is a stable error", func() {
		_, err := s.store.MarkCheckedOut(s.ctx, s.eventID, s.userID, checkedOutAt.Add(time.Minute))
		s.Require().ErrorIs(err, sentinel.ErrInvalidState)

		got, err := s.store.GetActive(s.ctx, s.eventID, s.userID)
		s.Require().NoError(err)
		s.Equal(checkedOutAt, *got.CheckedOutAt)
	})

	s.Run("absent pair is not found", func() {
		_, err := s.store.MarkCheckedOut(s.ctx, id.NewEventID(), s.userID, checkedOutAt)
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *MemoryStoreSuite) TestSoftDeleteLifecycle() {
	rec := s.newRecord(s.eventID, s.userID, "fp-1")
	s.Require().NoError(s.store.Create(s.ctx, rec))

	admin := id.NewUserID()
	deleted, err := s.store.SoftDelete(s.ctx, s.eventID, s.userID, s.now.Add(time.Hour), admin)
	s.Require().NoError(err)
	s.True(deleted.IsDeleted)
	s.Require().NotNil(deleted.DeletedBy)
	s.Equal(admin, *deleted.DeletedBy)

	s.Run("deleted record leaves standard reads", func() {
		_, err := s.store.GetActive(s.ctx, s.eventID, s.userID)
		s.Require().ErrorIs(err, sentinel.ErrNotFound)

		listed, err := s.store.ListByEvent(s.ctx, s.eventID)
		s.Require().NoError(err)
		s.Empty(listed)
	})

	s.Run("deleted record reachable via audit path with data intact", func() {
		got, err := s.store.GetIncludingDeleted(s.ctx, rec.ID)
		s.Require().NoError(err)
		s.True(got.IsDeleted)
		s.Equal(rec.UserID, got.UserID)
		s.Require().NotNil(got.DeviceFingerprint)
		s.Equal("fp-1", *got.DeviceFingerprint)
	})

	s.Run("new check-in after delete creates a new record", func() {
		fresh := s.newRecord(s.eventID, s.userID, "fp-1")
		s.Require().NoError(s.store.Create(s.ctx, fresh))
		s.NotEqual(rec.ID, fresh.ID)
	})

	s.Run("deleting twice is not found", func() {
		// The first record is deleted and the second is active; delete the
		// active one, then the pair has nothing left to delete.
		_, err := s.store.SoftDelete(s.ctx, s.eventID, s.userID, s.now, admin)
		s.Require().NoError(err)
		_, err = s.store.SoftDelete(s.ctx, s.eventID, s.userID, s.now, admin)
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *MemoryStoreSuite) TestListByUserFiltersWindow() {
	base := s.now
	inWindow := s.newRecord(id.NewEventID(), s.userID, "")
	inWindow.Method = models.MethodManual
	inWindow.CheckedInAt = base

	before := s.newRecord(id.NewEventID(), s.userID, "")
	before.Method = models.MethodManual
	before.CheckedInAt = base.Add(-48 * time.Hour)

	s.Require().NoError(s.store.Create(s.ctx, inWindow))
	s.Require().NoError(s.store.Create(s.ctx, before))

	listed, err := s.store.ListByUser(s.ctx, s.userID, base.Add(-time.Hour), base.Add(time.Hour))
	s.Require().NoError(err)
	s.Require().Len(listed, 1)
	s.Equal(inWindow.ID, listed[0].ID)
}

// Exactly one of N concurrent check-ins for the same (event, user) commits.
func TestMemoryStoreConcurrentCreate(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()
	eventID := id.NewEventID()
	userID := id.NewUserID()
	now := time.Now()

	const goroutines = 50
	var wg sync.WaitGroup
	var created atomic.Int32
	var duplicates atomic.Int32

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rec := &models.AttendanceRecord{
				ID:          id.NewRecordID(),
				EventID:     eventID,
				UserID:      userID,
				Method:      models.MethodManual,
				Status:      models.StatusCheckedIn,
				CheckedInAt: now,
				ActorID:     userID,
			}
			switch err := store.Create(ctx, rec); err {
			case nil:
				created.Add(1)
			case ErrActiveRecordExists:
				duplicates.Add(1)
			}
		}()
	}
	wg.Wait()

	if created.Load() != 1 {
		t.Fatalf("expected exactly 1 create to win, got %d", created.Load())
	}
	if duplicates.Load() != goroutines-1 {
		t.Fatalf("expected %d duplicate errors, got %d", goroutines-1, duplicates.Load())
	}
}
