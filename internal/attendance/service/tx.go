package service

import (
	"context"
	"sync"
	"time"

	"rollcall/internal/attendance/store/audit"
	"rollcall/internal/attendance/store/record"

	dErrors "rollcall/pkg/domain-errors"
)

// TxRunner is the atomic boundary for a record mutation and its audit entry.
// Either both land or neither does; a record must never exist without its
// trail, and the trail must never describe a write that was rolled back.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(records record.Store, entries audit.Store) error) error
}

const defaultTxTimeout = 5 * time.Second

// memoryTx serializes mutations over the in-memory stores with one coarse
// lock. Good enough for tests and single-node runs; the Postgres runner in
// cmd/server replaces it in production.
type memoryTx struct {
	mu      sync.Mutex
	records record.Store
	entries audit.Store
	timeout time.Duration
}

// NewMemoryTx wraps in-memory stores in a coarse-lock transaction runner.
func NewMemoryTx(records record.Store, entries audit.Store) TxRunner {
	return &memoryTx{records: records, entries: entries}
}

func (t *memoryTx) RunInTx(ctx context.Context, fn func(records record.Store, entries audit.Store) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	timeout := t.timeout
	if timeout == 0 {
		timeout = defaultTxTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	return fn(t.records, t.entries)
}
