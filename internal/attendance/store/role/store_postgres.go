package role

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	id "rollcall/pkg/domain"
)

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// PostgresStore reads role assignments from PostgreSQL.
type PostgresStore struct {
	q querier
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{q: db}
}

func NewPostgresTx(tx *sql.Tx) *PostgresStore {
	return &PostgresStore{q: tx}
}

func (s *PostgresStore) Assign(ctx context.Context, userID id.UserID, teamID id.TeamID, role Role) error {
	_, err := s.q.ExecContext(ctx,
		`INSERT INTO team_roles (user_id, team_id, role) VALUES ($1, $2, $3)
		 ON CONFLICT (user_id, team_id) DO UPDATE SET role = EXCLUDED.role`,
		userID.String(), teamID.String(), string(role),
	)
	if err != nil {
		return fmt.Errorf("assign team role: %w", err)
	}
	return nil
}

func (s *PostgresStore) HasManualOverrideCapability(ctx context.Context, userID id.UserID, teamID id.TeamID) (bool, error) {
	var raw string
	err := s.q.QueryRowContext(ctx,
		`SELECT role FROM team_roles WHERE user_id = $1 AND team_id = $2`,
		userID.String(), teamID.String(),
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("look up team role: %w", err)
	}
	return Role(raw).GrantsManualOverride(), nil
}
