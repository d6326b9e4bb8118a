// Command lodi links the raw locations in the geolocation database to
// reference cities and stores the links under a new run id.
//
// Usage:
//
//	go run ./cmd/lodi -config lodi.yaml [-rebuild-cache] [-normalize]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/google/uuid"

	"github.com/andreiashu/lodi"
	"github.com/andreiashu/lodi/internal/config"
	"github.com/andreiashu/lodi/internal/logging"
	"github.com/andreiashu/lodi/internal/store"
)

func main() {
	configPath := flag.String("config", "lodi.yaml", "Path to the configuration file")
	rebuild := flag.Bool("rebuild-cache", false, "Load reference tables from the database and rewrite the cache")
	normalize := flag.Bool("normalize", false, "Consolidate each inventor's cities to one state")
	flag.Parse()

	config.LoadEnv(".env")
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(os.Stdout, cfg.Log.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := run(context.Background(), cfg, logger, *rebuild, *normalize); err != nil {
		logger.Error("run failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger, rebuild, normalize bool) error {
	db, err := store.New(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	snap, err := loadReference(ctx, cfg, db, logger, rebuild)
	if err != nil {
		return err
	}
	google := lodi.NewGoogleCities(snap.Google, cfg.Matching.GoogleConfidenceThreshold)
	logger.Info("reference tables loaded",
		"cities", snap.Cities.Len(),
		"google_cities", google.Len())

	records, err := db.LoadRawLocations(ctx)
	if err != nil {
		return err
	}
	logger.Info("raw locations loaded", "count", len(records))

	stats := lodi.Disambiguate(snap.Cities, google, records, cfg.Matching.MatchThreshold,
		lodi.WithWorkers(cfg.Matching.Workers),
		lodi.WithLogger(logger))
	logger.Info("disambiguation complete",
		"total", stats.Total,
		"linked", stats.Linked,
		"google_exact", stats.ByCode[lodi.LinkGoogleExact],
		"exact_city", stats.ByCode[lodi.LinkExactCity],
		"fuzzy_city", stats.ByCode[lodi.LinkFuzzyCity],
		"duration", stats.Duration)

	if normalize {
		relinks, err := lodi.NormalizeByEntity(records)
		if err != nil {
			if !errors.Is(err, lodi.ErrAmbiguousConsolidation) {
				return err
			}
			// Tied entities keep their links; the run still completes.
			logger.Warn("ambiguous inventor cities left unconsolidated", "error", err)
		}
		for _, rl := range relinks {
			logger.Debug("relinked",
				"record", rl.Record.ID,
				"from", rl.From.String(),
				"to", rl.To.String(),
				"distance_km", rl.DistanceKm)
		}
		logger.Info("inventor normalization complete", "relinked", len(relinks))
	}

	runID := uuid.NewString()
	n, err := db.SaveLinks(ctx, runID, records)
	if err != nil {
		return err
	}
	logger.Info("links saved", "run_id", runID, "rows", n)
	return nil
}

// loadReference reads the reference snapshot from the cache, falling back
// to the database (and refreshing the cache) when the cache is missing or
// a rebuild was requested.
func loadReference(ctx context.Context, cfg *config.Config, db *store.PostgresStore, logger *slog.Logger, rebuild bool) (*lodi.Snapshot, error) {
	if !rebuild {
		snap, err := lodi.LoadSnapshot(cfg.Cache.Dir)
		if err == nil {
			return snap, nil
		}
		logger.Info("reference cache unavailable, loading from database", "error", err)
	}

	records, err := db.LoadCities(ctx)
	if err != nil {
		return nil, err
	}
	cities := lodi.NewCities(records)

	google, err := db.LoadGoogleCities(ctx)
	if err != nil {
		return nil, err
	}
	google = cities.ResolveGoogleCities(google)

	if err := lodi.SaveSnapshot(cfg.Cache.Dir, cities, google); err != nil {
		logger.Warn("failed to store cache", "error", err)
	}
	return &lodi.Snapshot{Cities: cities, Google: google}, nil
}
