package record

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"rollcall/internal/attendance/models"

	id "rollcall/pkg/domain"
	"rollcall/pkg/platform/sentinel"
)

// Partial unique index names; Create maps constraint violations back to
// typed errors by these.
const (
	constraintActiveEventUser   = "attendance_records_active_event_user_key"
	constraintActiveEventDevice = "attendance_records_active_event_device_key"
)

// querier is satisfied by both *sql.DB and *sql.Tx so the same store code
// runs standalone or inside a transaction.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// PostgresStore persists attendance records in PostgreSQL. The store is pure
// I/O; transition rules live on the models and in the service.
type PostgresStore struct {
	q querier
}

// NewPostgres constructs a PostgreSQL-backed record store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{q: db}
}

// NewPostgresTx constructs a record store bound to an open transaction.
func NewPostgresTx(tx *sql.Tx) *PostgresStore {
	return &PostgresStore{q: tx}
}

const recordColumns = `id, event_id, user_id, method, status, device_fingerprint,
	checked_in_at, checked_out_at, actor_id, is_deleted, deleted_at, deleted_by`

func (s *PostgresStore) Create(ctx context.Context, rec *models.AttendanceRecord) error {
	query := `
		INSERT INTO attendance_records
			(id, event_id, user_id, method, status, device_fingerprint, checked_in_at, actor_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := s.q.ExecContext(ctx, query,
		rec.ID.String(),
		rec.EventID.String(),
		rec.UserID.String(),
		string(rec.Method),
		string(rec.Status),
		rec.DeviceFingerprint,
		rec.CheckedInAt,
		rec.ActorID.String(),
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return s.translateUniqueViolation(ctx, pqErr, rec)
		}
		return fmt.Errorf("create attendance record: %w", err)
	}
	return nil
}

// translateUniqueViolation maps a 23505 back to the invariant that rejected
// the write. When the device index fired but the same user already holds the
// active record, report the duplicate instead: which index Postgres checks
// first is not defined, and DUPLICATE_CHECKIN is the truer answer.
func (s *PostgresStore) translateUniqueViolation(ctx context.Context, pqErr *pq.Error, rec *models.AttendanceRecord) error {
	switch pqErr.Constraint {
	case constraintActiveEventUser:
		return ErrActiveRecordExists
	case constraintActiveEventDevice:
		if _, err := s.GetActive(ctx, rec.EventID, rec.UserID); err == nil {
			return ErrActiveRecordExists
		}
		return ErrDeviceInUse
	default:
		return fmt.Errorf("create attendance record: %w", pqErr)
	}
}

func (s *PostgresStore) GetActive(ctx context.Context, eventID id.EventID, userID id.UserID) (*models.AttendanceRecord, error) {
	query := `
		SELECT ` + recordColumns + `
		FROM attendance_records
		WHERE event_id = $1 AND user_id = $2 AND NOT is_deleted
	`
	rec, err := scanRecord(s.q.QueryRowContext(ctx, query, eventID.String(), userID.String()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get active attendance record: %w", err)
	}
	return rec, nil
}

func (s *PostgresStore) MarkCheckedOut(ctx context.Context, eventID id.EventID, userID id.UserID, at time.Time) (*models.AttendanceRecord, error) {
	// Conditional UPDATE so the transition commits at most once; repeated
	// calls fall through to the diagnostic read below.
	query := `
		UPDATE attendance_records
		SET status = 'checked_out', checked_out_at = $3
		WHERE event_id = $1 AND user_id = $2 AND NOT is_deleted AND status = 'checked_in'
		RETURNING ` + recordColumns
	rec, err := scanRecord(s.q.QueryRowContext(ctx, query, eventID.String(), userID.String(), at))
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("mark checked out: %w", err)
	}

	existing, getErr := s.GetActive(ctx, eventID, userID)
	if getErr != nil {
		return nil, sentinel.ErrNotFound
	}
	if existing.Status == models.StatusCheckedOut {
		return nil, sentinel.ErrInvalidState
	}
	return nil, sentinel.ErrNotFound
}

func (s *PostgresStore) SoftDelete(ctx context.Context, eventID id.EventID, userID id.UserID, at time.Time, by id.UserID) (*models.AttendanceRecord, error) {
	query := `
		UPDATE attendance_records
		SET is_deleted = TRUE, deleted_at = $3, deleted_by = $4
		WHERE event_id = $1 AND user_id = $2 AND NOT is_deleted
		RETURNING ` + recordColumns
	rec, err := scanRecord(s.q.QueryRowContext(ctx, query, eventID.String(), userID.String(), at, by.String()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("soft delete attendance record: %w", err)
	}
	return rec, nil
}

func (s *PostgresStore) ListByEvent(ctx context.Context, eventID id.EventID) ([]*models.AttendanceRecord, error) {
	query := `
		SELECT ` + recordColumns + `
		FROM attendance_records
		WHERE event_id = $1 AND NOT is_deleted
		ORDER BY checked_in_at, id
	`
	rows, err := s.q.QueryContext(ctx, query, eventID.String())
	if err != nil {
		return nil, fmt.Errorf("list attendance by event: %w", err)
	}
	defer rows.Close()
	return collectRecords(rows)
}

func (s *PostgresStore) ListByUser(ctx context.Context, userID id.UserID, from, to time.Time) ([]*models.AttendanceRecord, error) {
	query := `
		SELECT ` + recordColumns + `
		FROM attendance_records
		WHERE user_id = $1 AND checked_in_at >= $2 AND checked_in_at < $3 AND NOT is_deleted
		ORDER BY checked_in_at, id
	`
	rows, err := s.q.QueryContext(ctx, query, userID.String(), from, to)
	if err != nil {
		return nil, fmt.Errorf("list attendance by user: %w", err)
	}
	defer rows.Close()
	return collectRecords(rows)
}

func (s *PostgresStore) GetIncludingDeleted(ctx context.Context, recordID id.RecordID) (*models.AttendanceRecord, error) {
	query := `
		SELECT ` + recordColumns + `
		FROM attendance_records
		WHERE id = $1
	`
	rec, err := scanRecord(s.q.QueryRowContext(ctx, query, recordID.String()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get attendance record: %w", err)
	}
	return rec, nil
}

type recordRow interface {
	Scan(dest ...any) error
}

func scanRecord(row recordRow) (*models.AttendanceRecord, error) {
	var (
		rec         models.AttendanceRecord
		recID       string
		eventID     string
		userID      string
		method      string
		status      string
		fingerprint sql.NullString
		checkedOut  sql.NullTime
		actorID     string
		deletedAt   sql.NullTime
		deletedBy   sql.NullString
	)
	if err := row.Scan(&recID, &eventID, &userID, &method, &status, &fingerprint,
		&rec.CheckedInAt, &checkedOut, &actorID, &rec.IsDeleted, &deletedAt, &deletedBy); err != nil {
		return nil, err
	}

	var err error
	if rec.ID, err = id.ParseRecordID(recID); err != nil {
		return nil, err
	}
	if rec.EventID, err = id.ParseEventID(eventID); err != nil {
		return nil, err
	}
	if rec.UserID, err = id.ParseUserID(userID); err != nil {
		return nil, err
	}
	if rec.ActorID, err = id.ParseUserID(actorID); err != nil {
		return nil, err
	}
	rec.Method = models.Method(method)
	rec.Status = models.Status(status)
	if fingerprint.Valid {
		rec.DeviceFingerprint = &fingerprint.String
	}
	if checkedOut.Valid {
		rec.CheckedOutAt = &checkedOut.Time
	}
	if deletedAt.Valid {
		rec.DeletedAt = &deletedAt.Time
	}
	if deletedBy.Valid {
		by, err := id.ParseUserID(deletedBy.String)
		if err != nil {
			return nil, err
		}
		rec.DeletedBy = &by
	}
	return &rec, nil
}

func collectRecords(rows *sql.Rows) ([]*models.AttendanceRecord, error) {
	var out []*models.AttendanceRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan attendance record: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attendance records: %w", err)
	}
	return out, nil
}
