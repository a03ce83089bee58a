package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/samirrijal/stopgrid/internal/core/domain"
)

// StopRepo implements ports.StopRepository with pgx.
type StopRepo struct {
	db *DB
}

// NewStopRepo creates a new StopRepo.
func NewStopRepo(db *DB) *StopRepo {
	return &StopRepo{db: db}
}

const stopColumns = `id, stop_id, agency_id, name,
	       ST_Y(location::geometry) as lat,
	       ST_X(location::geometry) as lon,
	       wheelchair_accessible, created_at`

func scanStop(row pgx.Row) (domain.Stop, error) {
	var s domain.Stop
	err := row.Scan(
		&s.ID, &s.StopID, &s.AgencyID, &s.Name,
		&s.Location.Lat, &s.Location.Lon,
		&s.WheelchairAccessible, &s.CreatedAt,
	)
	return s, err
}

// Upsert inserts or updates a single stop.
func (r *StopRepo) Upsert(ctx context.Context, s *domain.Stop) error {
	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO stops (stop_id, agency_id, name, location, wheelchair_accessible)
		VALUES ($1, $2, $3, ST_SetSRID(ST_MakePoint($4, $5), 4326)::geography, $6)
		ON CONFLICT (agency_id, stop_id) DO UPDATE
		SET name = EXCLUDED.name, location = EXCLUDED.location,
		    wheelchair_accessible = EXCLUDED.wheelchair_accessible
	`, s.StopID, s.AgencyID, s.Name, s.Location.Lon, s.Location.Lat, s.WheelchairAccessible)
	return err
}

// UpsertBatch inserts many stops using pgx.Batch.
func (r *StopRepo) UpsertBatch(ctx context.Context, stops []domain.Stop) error {
	batch := &pgx.Batch{}
	for _, s := range stops {
		batch.Queue(`
			INSERT INTO stops (stop_id, agency_id, name, location, wheelchair_accessible)
			VALUES ($1, $2, $3, ST_SetSRID(ST_MakePoint($4, $5), 4326)::geography, $6)
			ON CONFLICT (agency_id, stop_id) DO UPDATE
			SET name = EXCLUDED.name, location = EXCLUDED.location,
			    wheelchair_accessible = EXCLUDED.wheelchair_accessible
		`, s.StopID, s.AgencyID, s.Name, s.Location.Lon, s.Location.Lat, s.WheelchairAccessible)
	}
	br := r.db.Pool.SendBatch(ctx, batch)
	defer br.Close()
	for range stops {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("batch exec: %w", err)
		}
	}
	return nil
}

// GetByID returns a stop by UUID.
func (r *StopRepo) GetByID(ctx context.Context, id string) (*domain.Stop, error) {
	s, err := scanStop(r.db.Pool.QueryRow(ctx,
		`SELECT `+stopColumns+` FROM stops WHERE id = $1`, id))
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// ListAll returns the full stop inventory, used by snapshot rebuilds.
func (r *StopRepo) ListAll(ctx context.Context) ([]domain.Stop, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT `+stopColumns+` FROM stops ORDER BY agency_id, stop_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stops []domain.Stop
	for rows.Next() {
		s, err := scanStop(rows)
		if err != nil {
			return nil, err
		}
		stops = append(stops, s)
	}
	return stops, rows.Err()
}

// List returns one page of stops plus the total row count.
func (r *StopRepo) List(ctx context.Context, offset, limit int) ([]domain.Stop, int, error) {
	total, err := r.Count(ctx)
	if err != nil {
		return nil, 0, err
	}

	rows, err := r.db.Pool.Query(ctx,
		`SELECT `+stopColumns+` FROM stops ORDER BY name, id OFFSET $1 LIMIT $2`,
		offset, limit)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var stops []domain.Stop
	for rows.Next() {
		s, err := scanStop(rows)
		if err != nil {
			return nil, 0, err
		}
		stops = append(stops, s)
	}
	return stops, total, rows.Err()
}

// Count returns the number of stops.
func (r *StopRepo) Count(ctx context.Context) (int, error) {
	var n int
	err := r.db.Pool.QueryRow(ctx, `SELECT count(*) FROM stops`).Scan(&n)
	return n, err
}
