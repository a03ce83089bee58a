//go:build integration
// +build integration

package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samirrijal/stopgrid/internal/adapters/postgres"
	"github.com/samirrijal/stopgrid/internal/core/domain"
	"github.com/samirrijal/stopgrid/internal/pkg/config"
)

func setupTestDB(t *testing.T) *postgres.DB {
	cfg, err := config.Load("stopgrid-test")
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	pool, err := pgxpool.New(context.Background(), cfg.Database.DSN())
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := pool.Ping(ctx); err != nil {
		t.Fatalf("ping db: %v", err)
	}

	return &postgres.DB{Pool: pool}
}

func findStop(t *testing.T, repo *postgres.StopRepo, agencyID, stopID string) domain.Stop {
	t.Helper()
	stops, err := repo.ListAll(context.Background())
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	for _, s := range stops {
		if s.AgencyID == agencyID && s.StopID == stopID {
			return s
		}
	}
	t.Fatalf("stop %s/%s not found", agencyID, stopID)
	return domain.Stop{}
}

// TestUpsertBatch_ReingestUpdatesAllFields verifies a second batch ingest
// replaces name, location, and the wheelchair flag rather than keeping stale
// values from the first run.
func TestUpsertBatch_ReingestUpdatesAllFields(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	db := setupTestDB(t)
	defer db.Pool.Close()
	repo := postgres.NewStopRepo(db)

	ctx := context.Background()
	first := []domain.Stop{
		{StopID: "reingest1", AgencyID: "test_reingest", Name: "Old Name",
			Location:             domain.GeoPoint{Lat: 43.2609, Lon: -2.9253},
			WheelchairAccessible: false},
	}
	if err := repo.UpsertBatch(ctx, first); err != nil {
		t.Fatalf("first batch: %v", err)
	}

	second := []domain.Stop{
		{StopID: "reingest1", AgencyID: "test_reingest", Name: "New Name",
			Location:             domain.GeoPoint{Lat: 43.2622, Lon: -2.9263},
			WheelchairAccessible: true},
	}
	if err := repo.UpsertBatch(ctx, second); err != nil {
		t.Fatalf("second batch: %v", err)
	}

	got := findStop(t, repo, "test_reingest", "reingest1")
	if got.Name != "New Name" {
		t.Errorf("expected updated name, got %q", got.Name)
	}
	if !got.WheelchairAccessible {
		t.Error("expected wheelchair flag updated to true")
	}
	if got.Location.Lat < 43.2621 || got.Location.Lat > 43.2623 {
		t.Errorf("expected updated location, got lat %f", got.Location.Lat)
	}
}
