// Package store reads the reference tables and raw locations from the
// geolocation database and writes the resulting links back.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/andreiashu/lodi"
	"github.com/andreiashu/lodi/internal/config"
)

// PostgresStore wraps a connection to the geolocation database.
type PostgresStore struct {
	db *sql.DB
}

// DSN builds a lib/pq connection string from the database config.
func DSN(cfg config.DatabaseConfig) string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host,
		cfg.Port,
		cfg.User,
		cfg.Password,
		cfg.DbName,
		cfg.SSLMode,
	)
}

// New opens and pings the database and makes sure the links table exists.
func New(ctx context.Context, cfg config.DatabaseConfig) (*PostgresStore, error) {
	db, err := sql.Open("postgres", DSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("open postgres connection: %w", err)
	}

	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)

	s, err := NewWithDB(ctx, db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// NewWithDB uses an already opened database handle.
func NewWithDB(ctx context.Context, db *sql.DB) (*PostgresStore, error) {
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	s := &PostgresStore{db: db}
	schemaCtx, schemaCancel := context.WithTimeout(ctx, 10*time.Second)
	defer schemaCancel()
	if err := s.ensureSchema(schemaCtx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// LoadCities reads the reference cities table.
func (s *PostgresStore) LoadCities(ctx context.Context) ([]*lodi.CityRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, COALESCE(city, ''), COALESCE(region, ''), COALESCE(state, ''),
		       COALESCE(country, ''), COALESCE(latitude, 0), COALESCE(longitude, 0)
		FROM cities
		ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query cities: %w", err)
	}
	defer rows.Close()

	var out []*lodi.CityRecord
	for rows.Next() {
		c := &lodi.CityRecord{}
		if err := rows.Scan(&c.ID, &c.City, &c.Region, &c.State, &c.Country, &c.Latitude, &c.Longitude); err != nil {
			return nil, fmt.Errorf("scan city: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cities: %w", err)
	}
	return out, nil
}

// LoadGoogleCities reads google_cities. Entries carry CityID only; resolve
// them with (*lodi.Cities).ResolveGoogleCities.
func (s *PostgresStore) LoadGoogleCities(ctx context.Context) ([]lodi.GoogleCity, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT input_string, city_id, confidence
		FROM google_cities
		WHERE city_id IS NOT NULL
		ORDER BY input_string, confidence DESC`)
	if err != nil {
		return nil, fmt.Errorf("query google_cities: %w", err)
	}
	defer rows.Close()

	var out []lodi.GoogleCity
	for rows.Next() {
		var g lodi.GoogleCity
		if err := rows.Scan(&g.Location, &g.CityID, &g.Confidence); err != nil {
			return nil, fmt.Errorf("scan google city: %w", err)
		}
		out = append(out, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate google_cities: %w", err)
	}
	return out, nil
}

// LoadRawLocations reads the cleaned raw locations to disambiguate.
func (s *PostgresStore) LoadRawLocations(ctx context.Context) ([]*lodi.RawRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, COALESCE(inventor_id, ''), COALESCE(raw_city, ''),
		       COALESCE(cleaned_location, ''), COALESCE(city, ''), COALESCE(state, ''),
		       COALESCE(country, ''), COALESCE(cleaned_country, '')
		FROM rawlocation
		ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query rawlocation: %w", err)
	}
	defer rows.Close()

	var out []*lodi.RawRecord
	for rows.Next() {
		r := &lodi.RawRecord{}
		if err := rows.Scan(&r.ID, &r.EntityID, &r.RawCity, &r.CleanedLocation,
			&r.City, &r.State, &r.Country, &r.CleanedCountry); err != nil {
			return nil, fmt.Errorf("scan raw location: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rawlocation: %w", err)
	}
	return out, nil
}

// SaveLinks writes one location_links row per linked record under runID in
// a single transaction and returns the number of rows written.
func (s *PostgresStore) SaveLinks(ctx context.Context, runID string, records []*lodi.RawRecord) (n int, err error) {
	var (
		ids     []string
		cityIDs []int64
		codes   []int64
	)
	for _, r := range records {
		if r == nil || !r.Linked() {
			continue
		}
		ids = append(ids, r.ID)
		cityIDs = append(cityIDs, r.LinkedCity.ID)
		codes = append(codes, int64(r.LinkCode))
	}
	if len(ids) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `
		INSERT INTO location_links (run_id, rawlocation_id, city_id, link_code)
		SELECT $1::text, t.rawlocation_id, t.city_id, t.link_code
		FROM unnest($2::text[], $3::bigint[], $4::int[])
			AS t(rawlocation_id, city_id, link_code)
		ON CONFLICT (run_id, rawlocation_id) DO UPDATE
		SET city_id = EXCLUDED.city_id, link_code = EXCLUDED.link_code`,
		runID, pq.Array(ids), pq.Array(cityIDs), pq.Array(codes),
	); err != nil {
		return 0, fmt.Errorf("insert location links: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit transaction: %w", err)
	}
	return len(ids), nil
}

func (s *PostgresStore) ensureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS location_links (
			run_id TEXT NOT NULL,
			rawlocation_id TEXT NOT NULL,
			city_id BIGINT NOT NULL,
			link_code INT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (run_id, rawlocation_id)
		);
		CREATE INDEX IF NOT EXISTS idx_location_links_city ON location_links(city_id);
	`)
	if err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}
