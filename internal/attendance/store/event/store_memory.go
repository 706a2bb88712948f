package event

import (
	"context"
	"fmt"
	"sync"

	"rollcall/internal/attendance/models"
	"rollcall/pkg/platform/sentinel"

	id "rollcall/pkg/domain"
)

// MemoryStore is a mutex-guarded map of events for tests and single-node
// deployments without Postgres.
type MemoryStore struct {
	mu     sync.RWMutex
	events map[id.EventID]*models.Event
}

func NewMemory() *MemoryStore {
	return &MemoryStore{events: make(map[id.EventID]*models.Event)}
}

func (s *MemoryStore) Create(ctx context.Context, event *models.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.events[event.ID]; ok {
		return fmt.Errorf("event %s: %w", event.ID, sentinel.ErrConflict)
	}
	s.events[event.ID] = cloneEvent(event)
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, eventID id.EventID) (*models.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	event, ok := s.events[eventID]
	if !ok {
		return nil, fmt.Errorf("event %s: %w", eventID, sentinel.ErrNotFound)
	}
	return cloneEvent(event), nil
}

func (s *MemoryStore) BumpQRSecretVersion(ctx context.Context, eventID id.EventID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	event, ok := s.events[eventID]
	if !ok {
		return 0, fmt.Errorf("event %s: %w", eventID, sentinel.ErrNotFound)
	}
	event.QRSecretVersion++
	return event.QRSecretVersion, nil
}

func cloneEvent(event *models.Event) *models.Event {
	clone := *event
	if event.Location != nil {
		loc := *event.Location
		clone.Location = &loc
	}
	if event.AssignedGroupIDs != nil {
		clone.AssignedGroupIDs = append([]id.GroupID(nil), event.AssignedGroupIDs...)
	}
	return &clone
}
