package role

import (
	"context"
	"sync"

	id "rollcall/pkg/domain"
)

type memberKey struct {
	userID id.UserID
	teamID id.TeamID
}

// MemoryStore holds role assignments in process memory.
type MemoryStore struct {
	mu    sync.RWMutex
	roles map[memberKey]Role
}

func NewMemory() *MemoryStore {
	return &MemoryStore{roles: make(map[memberKey]Role)}
}

func (s *MemoryStore) Assign(ctx context.Context, userID id.UserID, teamID id.TeamID, role Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.roles[memberKey{userID: userID, teamID: teamID}] = role
	return nil
}

func (s *MemoryStore) HasManualOverrideCapability(ctx context.Context, userID id.UserID, teamID id.TeamID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	role, ok := s.roles[memberKey{userID: userID, teamID: teamID}]
	return ok && role.GrantsManualOverride(), nil
}
