package record

import (
	"context"
	"sort"
	"sync"
	"time"

	"rollcall/internal/attendance/models"

	id "rollcall/pkg/domain"
	"rollcall/pkg/platform/sentinel"
)

// MemoryStore keeps records in process memory. The single mutex makes every
// check-and-insert atomic, giving the same invariant guarantees the Postgres
// partial unique indexes provide.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[id.RecordID]*models.AttendanceRecord
}

// NewMemory constructs an empty in-memory record store.
func NewMemory() *MemoryStore {
	return &MemoryStore{records: make(map[id.RecordID]*models.AttendanceRecord)}
}

func (s *MemoryStore) Create(ctx context.Context, rec *models.AttendanceRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.records {
		if existing.IsDeleted || existing.EventID != rec.EventID {
			continue
		}
		if existing.UserID == rec.UserID {
			return ErrActiveRecordExists
		}
		if rec.DeviceFingerprint != nil && existing.DeviceFingerprint != nil &&
			*existing.DeviceFingerprint == *rec.DeviceFingerprint {
			return ErrDeviceInUse
		}
	}

	clone := *rec
	s.records[rec.ID] = &clone
	return nil
}

func (s *MemoryStore) GetActive(ctx context.Context, eventID id.EventID, userID id.UserID) (*models.AttendanceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if rec := s.activeLocked(eventID, userID); rec != nil {
		clone := *rec
		return &clone, nil
	}
	return nil, sentinel.ErrNotFound
}

func (s *MemoryStore) MarkCheckedOut(ctx context.Context, eventID id.EventID, userID id.UserID, at time.Time) (*models.AttendanceRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := s.activeLocked(eventID, userID)
	if rec == nil {
		return nil, sentinel.ErrNotFound
	}
	if err := rec.CanCheckOut(); err != nil {
		return nil, err
	}
	rec.ApplyCheckOut(at)

	clone := *rec
	return &clone, nil
}

func (s *MemoryStore) SoftDelete(ctx context.Context, eventID id.EventID, userID id.UserID, at time.Time, by id.UserID) (*models.AttendanceRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := s.activeLocked(eventID, userID)
	if rec == nil {
		return nil, sentinel.ErrNotFound
	}
	rec.ApplySoftDelete(at, by)

	clone := *rec
	return &clone, nil
}

func (s *MemoryStore) ListByEvent(ctx context.Context, eventID id.EventID) ([]*models.AttendanceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.AttendanceRecord
	for _, rec := range s.records {
		if rec.IsDeleted || rec.EventID != eventID {
			continue
		}
		clone := *rec
		out = append(out, &clone)
	}
	sortByCheckIn(out)
	return out, nil
}

func (s *MemoryStore) ListByUser(ctx context.Context, userID id.UserID, from, to time.Time) ([]*models.AttendanceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.AttendanceRecord
	for _, rec := range s.records {
		if rec.IsDeleted || rec.UserID != userID {
			continue
		}
		if rec.CheckedInAt.Before(from) || !rec.CheckedInAt.Before(to) {
			continue
		}
		clone := *rec
		out = append(out, &clone)
	}
	sortByCheckIn(out)
	return out, nil
}

func (s *MemoryStore) GetIncludingDeleted(ctx context.Context, recordID id.RecordID) (*models.AttendanceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[recordID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	clone := *rec
	return &clone, nil
}

// activeLocked must be called holding s.mu.
func (s *MemoryStore) activeLocked(eventID id.EventID, userID id.UserID) *models.AttendanceRecord {
	for _, rec := range s.records {
		if !rec.IsDeleted && rec.EventID == eventID && rec.UserID == userID {
			return rec
		}
	}
	return nil
}

func sortByCheckIn(recs []*models.AttendanceRecord) {
	sort.Slice(recs, func(i, j int) bool {
		if recs[i].CheckedInAt.Equal(recs[j].CheckedInAt) {
			return recs[i].ID.String() < recs[j].ID.String()
		}
		return recs[i].CheckedInAt.Before(recs[j].CheckedInAt)
	})
}
