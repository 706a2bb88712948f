package audit

import (
	"context"
	"database/sql"
	"fmt"

	"rollcall/internal/attendance/models"

	id "rollcall/pkg/domain"
)

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// PostgresStore persists audit entries in PostgreSQL. Insert-only: there is
// deliberately no update or delete statement in this file.
type PostgresStore struct {
	q querier
}

// NewPostgres constructs a PostgreSQL-backed audit store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{q: db}
}

// NewPostgresTx constructs an audit store bound to an open transaction.
func NewPostgresTx(tx *sql.Tx) *PostgresStore {
	return &PostgresStore{q: tx}
}

func (s *PostgresStore) Append(ctx context.Context, entry *models.AuditLogEntry) error {
	query := `
		INSERT INTO attendance_audit_log
			(record_id, action, actor_id, occurred_at, resulting_status, detail)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`
	err := s.q.QueryRowContext(ctx, query,
		entry.RecordID.String(),
		string(entry.Action),
		entry.ActorID.String(),
		entry.Timestamp,
		string(entry.ResultingStatus),
		entry.Detail,
	).Scan(&entry.ID)
	if err != nil {
		return fmt.Errorf("append audit entry: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListByRecord(ctx context.Context, recordID id.RecordID) ([]*models.AuditLogEntry, error) {
	query := `
		SELECT id, record_id, action, actor_id, occurred_at, resulting_status, detail
		FROM attendance_audit_log
		WHERE record_id = $1
		ORDER BY id
	`
	rows, err := s.q.QueryContext(ctx, query, recordID.String())
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	defer rows.Close()

	var out []*models.AuditLogEntry
	for rows.Next() {
		var (
			entry    models.AuditLogEntry
			recID    string
			action   string
			actorID  string
			status   string
		)
		if err := rows.Scan(&entry.ID, &recID, &action, &actorID, &entry.Timestamp, &status, &entry.Detail); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		if entry.RecordID, err = id.ParseRecordID(recID); err != nil {
			return nil, err
		}
		if entry.ActorID, err = id.ParseUserID(actorID); err != nil {
			return nil, err
		}
		entry.Action = models.AuditAction(action)
		entry.ResultingStatus = models.Status(status)
		out = append(out, &entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit entries: %w", err)
	}
	return out, nil
}
