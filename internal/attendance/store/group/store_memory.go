package group

import (
	"context"
	"sync"

	"rollcall/internal/attendance/models"

	id "rollcall/pkg/domain"
)

// MemoryStore holds group rosters in process memory.
type MemoryStore struct {
	mu     sync.RWMutex
	groups map[id.GroupID]*models.AttendanceGroup
}

func NewMemory() *MemoryStore {
	return &MemoryStore{groups: make(map[id.GroupID]*models.AttendanceGroup)}
}

func (s *MemoryStore) Upsert(ctx context.Context, group *models.AttendanceGroup) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	clone := *group
	clone.MemberIDs = append([]id.UserID(nil), group.MemberIDs...)
	s.groups[group.ID] = &clone
	return nil
}

func (s *MemoryStore) GroupsOf(ctx context.Context, userID id.UserID, teamID id.TeamID) ([]id.GroupID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []id.GroupID
	for _, group := range s.groups {
		if group.TeamID != teamID {
			continue
		}
		for _, member := range group.MemberIDs {
			if member == userID {
				out = append(out, group.ID)
				break
			}
		}
	}
	return out, nil
}
