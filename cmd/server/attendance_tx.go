package main

import (
	"context"
	"database/sql"
	"time"

	"rollcall/internal/attendance/service"
	auditStore "rollcall/internal/attendance/store/audit"
	recordStore "rollcall/internal/attendance/store/record"

	dErrors "rollcall/pkg/domain-errors"
)

const defaultAttendanceTxTimeout = 5 * time.Second

// attendancePostgresTx runs a record mutation and its audit entry in one
// database transaction.
type attendancePostgresTx struct {
	db      *sql.DB
	timeout time.Duration
}

func newAttendancePostgresTx(db *sql.DB) *attendancePostgresTx {
	return &attendancePostgresTx{db: db}
}

func (t *attendancePostgresTx) RunInTx(ctx context.Context, fn func(records recordStore.Store, entries auditStore.Store) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	timeout := t.timeout
	if timeout == 0 {
		timeout = defaultAttendanceTxTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(recordStore.NewPostgresTx(tx), auditStore.NewPostgresTx(tx)); err != nil {
		return err
	}
	return tx.Commit()
}

var _ service.TxRunner = (*attendancePostgresTx)(nil)
