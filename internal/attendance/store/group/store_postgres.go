package group

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

// PostgresStore reads group rosters from PostgreSQL.
type PostgresStore struct {
	q querier
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{q: db}
}

func NewPostgresTx(tx *sql.Tx) *PostgresStore {
	return &PostgresStore{q: tx}
}

func (s *PostgresStore) Upsert(ctx context.Context, group *models.AttendanceGroup) error {
	_, err := s.q.ExecContext(ctx,
		`INSERT INTO attendance_groups (id, team_id) VALUES ($1, $2)
		 ON CONFLICT (id) DO UPDATE SET team_id = EXCLUDED.team_id`,
		group.ID.String(), group.TeamID.String(),
	)
	if err != nil {
		return fmt.Errorf("upsert attendance group: %w", err)
	}

	_, err = s.q.ExecContext(ctx,
		`DELETE FROM attendance_group_members WHERE group_id = $1`,
		group.ID.String(),
	)
	if err != nil {
		return fmt.Errorf("reset group members: %w", err)
	}
	for _, member := range group.MemberIDs {
		_, err := s.q.ExecContext(ctx,
			`INSERT INTO attendance_group_members (group_id, user_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
			group.ID.String(), member.String(),
		)
		if err != nil {
			return fmt.Errorf("add group member: %w", err)
		}
	}
	return nil
}

func (s *PostgresStore) GroupsOf(ctx context.Context, userID id.UserID, teamID id.TeamID) ([]id.GroupID, error) {
	query := `
		SELECT g.id
		FROM attendance_groups g
		JOIN attendance_group_members m ON m.group_id = g.id
		WHERE m.user_id = $1 AND g.team_id = $2
		ORDER BY g.id
	`
	rows, err := s.q.QueryContext(ctx, query, userID.String(), teamID.String())
	if err != nil {
		return nil, fmt.Errorf("list groups of user: %w", err)
	}
	defer rows.Close()

	var groups []id.GroupID
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan group id: %w", err)
		}
		groupID, err := id.ParseGroupID(raw)
		if err != nil {
			return nil, fmt.Errorf("parse stored group id: %w", err)
		}
		groups = append(groups, groupID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate groups: %w", err)
	}
	return groups, nil
}
