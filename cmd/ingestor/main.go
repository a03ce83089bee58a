package main

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	natsadapter "github.com/samirrijal/stopgrid/internal/adapters/nats"
	"github.com/samirrijal/stopgrid/internal/pkg/config"
	"github.com/samirrijal/stopgrid/internal/pkg/metrics"
)

// ---------------------------------------------------------------------------
// Manifest types
// ---------------------------------------------------------------------------

type Manifest struct {
	Source   string        `json:"source"`
	Agencies []AgencyEntry `json:"agencies"`
}

type AgencyEntry struct {
	Name    string `json:"name"`
	Slug    string `json:"slug"`
	GTFSURL string `json:"gtfs_url"`
}

// ---------------------------------------------------------------------------
// Main
// ---------------------------------------------------------------------------

func main() {
	cfg, err := config.Load("stopgrid-ingestor")
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx := context.Background()

	pool, err := pgxpool.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer pool.Close()

	// Publisher announces which agencies changed so the API rebuilds its index.
	pub, err := natsadapter.NewPublisher(cfg.NATS.URL)
	if err != nil {
		log.Printf("nats unavailable, stop-change events will not be published: %v", err)
		pub = nil
	} else {
		defer pub.Close()
	}

	// Load manifest
	manifestPath := "manifest.json"
	if len(os.Args) > 1 {
		manifestPath = os.Args[1]
	}

	data, err := os.ReadFile(manifestPath)
	if err != nil {
		log.Fatalf("read manifest: %v", err)
	}

	var manifest Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		log.Fatalf("parse manifest: %v", err)
	}

	log.Printf("StopGrid GTFS stop ingestor — %d agencies from %s", len(manifest.Agencies), manifest.Source)

	// Filter agencies (optional CLI arg: slug list)
	slugFilter := map[string]bool{}
	if len(os.Args) > 2 {
		for _, s := range strings.Split(os.Args[2], ",") {
			slugFilter[strings.TrimSpace(s)] = true
		}
	}

	client := &http.Client{Timeout: 120 * time.Second}

	var wg sync.WaitGroup
	sem := make(chan struct{}, 4) // max 4 concurrent downloads

	for _, agency := range manifest.Agencies {
		if len(slugFilter) > 0 && !slugFilter[agency.Slug] {
			continue
		}

		wg.Add(1)
		go func(a AgencyEntry) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			if err := ingestAgency(ctx, pool, client, a); err != nil {
				log.Printf("ERROR [%s]: %v", a.Slug, err)
				return
			}
			if pub != nil {
				if err := pub.PublishStopsChanged(ctx, a.Slug); err != nil {
					log.Printf("[%s] publish stops.changed: %v", a.Slug, err)
				}
			}
		}(agency)
	}

	wg.Wait()
	log.Println("ingestion complete")
}

// ---------------------------------------------------------------------------
// Per-agency ingestion
// ---------------------------------------------------------------------------

func ingestAgency(ctx context.Context, pool *pgxpool.Pool, client *http.Client, agency AgencyEntry) error {
	log.Printf("[%s] downloading GTFS from %s", agency.Slug, agency.GTFSURL)

	resp, err := client.Get(agency.GTFSURL)
	if err != nil {
		return fmt.Errorf("download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP %d for %s", resp.StatusCode, agency.GTFSURL)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}

	zr, err := zip.NewReader(bytes.NewReader(body), int64(len(body)))
	if err != nil {
		return fmt.Errorf("open zip: %w", err)
	}

	// Only stops.txt matters; the rest of the feed is out of scope here.
	if err := processStops(ctx, pool, zr, agency.Slug); err != nil {
		return fmt.Errorf("stops: %w", err)
	}

	log.Printf("[%s] done", agency.Slug)
	return nil
}

// ---------------------------------------------------------------------------
// Stops
// ---------------------------------------------------------------------------

func processStops(ctx context.Context, pool *pgxpool.Pool, zr *zip.Reader, slug string) error {
	f, err := openCSV(zr, "stops.txt")
	if err != nil {
		return err
	}

	reader := csv.NewReader(f)
	reader.LazyQuotes = true
	header, err := reader.Read()
	if err != nil {
		return err
	}
	cols := indexColumns(header)

	const batchSize = 500
	batch := &pgx.Batch{}
	count := 0
	total := 0

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue
		}

		stopID := strings.TrimSpace(record[cols["stop_id"]])
		name := strings.TrimSpace(record[cols["stop_name"]])
		lat, _ := strconv.ParseFloat(strings.TrimSpace(record[cols["stop_lat"]]), 64)
		lon, _ := strconv.ParseFloat(strings.TrimSpace(record[cols["stop_lon"]]), 64)
		wheelchair := getField(record, cols, "wheelchair_boarding") == "1"

		if lat == 0 && lon == 0 {
			continue
		}

		batch.Queue(`
			INSERT INTO stops (stop_id, agency_id, name, location, wheelchair_accessible)
			VALUES ($1, $2, $3, ST_SetSRID(ST_MakePoint($4, $5), 4326)::geography, $6)
			ON CONFLICT (agency_id, stop_id) DO UPDATE
			SET name = EXCLUDED.name, location = EXCLUDED.location,
			    wheelchair_accessible = EXCLUDED.wheelchair_accessible
		`, stopID, slug, name, lon, lat, wheelchair)

		count++
		total++

		if count >= batchSize {
			if err := flushBatch(ctx, pool, batch, count); err != nil {
				return err
			}
			batch = &pgx.Batch{}
			count = 0
		}
	}

	if count > 0 {
		if err := flushBatch(ctx, pool, batch, count); err != nil {
			return err
		}
	}

	metrics.StopsIngested.WithLabelValues(slug).Add(float64(total))
	log.Printf("[%s]   stops: %d", slug, total)
	return nil
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func openCSV(zr *zip.Reader, name string) (io.ReadCloser, error) {
	for _, f := range zr.File {
		if strings.EqualFold(f.Name, name) {
			return f.Open()
		}
	}
	return nil, fmt.Errorf("file %s not found in zip", name)
}

func indexColumns(header []string) map[string]int {
	m := make(map[string]int, len(header))
	for i, col := range header {
		// Strip BOM from first column
		col = strings.TrimPrefix(col, "\xef\xbb\xbf")
		m[strings.TrimSpace(col)] = i
	}
	return m
}

func getField(record []string, cols map[string]int, name string) string {
	idx, ok := cols[name]
	if !ok || idx >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[idx])
}

func flushBatch(ctx context.Context, pool *pgxpool.Pool, batch *pgx.Batch, count int) error {
	br := pool.SendBatch(ctx, batch)
	defer br.Close()
	for i := 0; i < count; i++ {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("batch item %d: %w", i, err)
		}
	}
	return nil
}
