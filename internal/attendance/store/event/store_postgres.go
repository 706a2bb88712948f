package event

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"rollcall/internal/attendance/models"

	id "rollcall/pkg/domain"
	"rollcall/pkg/platform/sentinel"
)

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// PostgresStore persists events in PostgreSQL. Assigned groups live in a
// join table and are loaded with the event.
type PostgresStore struct {
	q querier
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{q: db}
}

func NewPostgresTx(tx *sql.Tx) *PostgresStore {
	return &PostgresStore{q: tx}
}

func (s *PostgresStore) Create(ctx context.Context, event *models.Event) error {
	query := `
		INSERT INTO events
			(id, team_id, starts_at, ends_at, latitude, longitude, radius_meters, visibility, qr_secret_version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	var lat, lon, radius *float64
	if event.Location != nil {
		lat = &event.Location.Latitude
		lon = &event.Location.Longitude
		radius = &event.Location.RadiusMeters
	}
	_, err := s.q.ExecContext(ctx, query,
		event.ID.String(),
		event.TeamID.String(),
		event.StartsAt,
		event.EndsAt,
		lat,
		lon,
		radius,
		string(event.Visibility),
		event.QRSecretVersion,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return fmt.Errorf("event %s: %w", event.ID, sentinel.ErrConflict)
		}
		return fmt.Errorf("create event: %w", err)
	}

	for _, groupID := range event.AssignedGroupIDs {
		_, err := s.q.ExecContext(ctx,
			`INSERT INTO event_groups (event_id, group_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
			event.ID.String(), groupID.String(),
		)
		if err != nil {
			return fmt.Errorf("assign group to event: %w", err)
		}
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, eventID id.EventID) (*models.Event, error) {
	query := `
		SELECT id, team_id, starts_at, ends_at, latitude, longitude, radius_meters, visibility, qr_secret_version
		FROM events
		WHERE id = $1
	`
	var (
		rawID, rawTeamID, visibility string
		lat, lon, radius             sql.NullFloat64
		event                        models.Event
	)
	err := s.q.QueryRowContext(ctx, query, eventID.String()).Scan(
		&rawID, &rawTeamID, &event.StartsAt, &event.EndsAt,
		&lat, &lon, &radius, &visibility, &event.QRSecretVersion,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("event %s: %w", eventID, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get event: %w", err)
	}

	event.ID, err = id.ParseEventID(rawID)
	if err != nil {
		return nil, fmt.Errorf("parse stored event id: %w", err)
	}
	event.TeamID, err = id.ParseTeamID(rawTeamID)
	if err != nil {
		return nil, fmt.Errorf("parse stored team id: %w", err)
	}
	event.Visibility = models.VisibilityMode(visibility)
	if lat.Valid && lon.Valid && radius.Valid {
		event.Location = &models.Location{
			Latitude:     lat.Float64,
			Longitude:    lon.Float64,
			RadiusMeters: radius.Float64,
		}
	}

	event.AssignedGroupIDs, err = s.assignedGroups(ctx, eventID)
	if err != nil {
		return nil, err
	}
	return &event, nil
}

func (s *PostgresStore) BumpQRSecretVersion(ctx context.Context, eventID id.EventID) (int, error) {
	query := `
		UPDATE events
		SET qr_secret_version = qr_secret_version + 1
		WHERE id = $1
		RETURNING qr_secret_version
	`
	var version int
	err := s.q.QueryRowContext(ctx, query, eventID.String()).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("event %s: %w", eventID, sentinel.ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("bump qr secret version: %w", err)
	}
	return version, nil
}

func (s *PostgresStore) assignedGroups(ctx context.Context, eventID id.EventID) ([]id.GroupID, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT group_id FROM event_groups WHERE event_id = $1 ORDER BY group_id`,
		eventID.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("list event groups: %w", err)
	}
	defer rows.Close()

	var groups []id.GroupID
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan event group: %w", err)
		}
		groupID, err := id.ParseGroupID(raw)
		if err != nil {
			return nil, fmt.Errorf("parse stored group id: %w", err)
		}
		groups = append(groups, groupID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate event groups: %w", err)
	}
	return groups, nil
}
