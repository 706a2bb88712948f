package audit

import (
	"context"
	"sync"

	"rollcall/internal/attendance/models"

	id "rollcall/pkg/domain"
)

// MemoryStore keeps audit entries in process memory, append-only.
type MemoryStore struct {
	mu      sync.RWMutex
	nextID  int64
	entries []*models.AuditLogEntry
}

// NewMemory constructs an empty in-memory audit store.
func NewMemory() *MemoryStore {
	return &MemoryStore{nextID: 1}
}

func (s *MemoryStore) Append(ctx context.Context, entry *models.AuditLogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	clone := *entry
	clone.ID = s.nextID
	s.nextID++
	s.entries = append(s.entries, &clone)
	entry.ID = clone.ID
	return nil
}

func (s *MemoryStore) ListByRecord(ctx context.Context, recordID id.RecordID) ([]*models.AuditLogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.AuditLogEntry
	for _, entry := range s.entries {
		if entry.RecordID == recordID {
			clone := *entry
			out = append(out, &clone)
		}
	}
	return out, nil
}
