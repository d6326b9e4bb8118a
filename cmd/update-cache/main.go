// Command update-cache regenerates the lodi reference snapshot from the
// geolocation database.
//
// Usage:
//
//	go run ./cmd/update-cache -config lodi.yaml
//
// This reads the cities and google_cities tables and writes to the cache
// directory named in the config. After running, compress the cache files:
//
//	bzip2 -f lodi-cache/*.dmp
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/andreiashu/lodi"
	"github.com/andreiashu/lodi/internal/config"
	"github.com/andreiashu/lodi/internal/store"
)

func main() {
	configPath := flag.String("config", "lodi.yaml", "Path to the configuration file")
	flag.Parse()

	config.LoadEnv(".env")
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Regenerating lodi cache from the database...")
	if err := regenerate(context.Background(), cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Cache written to %s.\n", cfg.Cache.Dir)
	fmt.Printf("Run 'bzip2 -f %s/*.dmp' to compress the cache files.\n", cfg.Cache.Dir)
}

func regenerate(ctx context.Context, cfg *config.Config) error {
	db, err := store.New(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	records, err := db.LoadCities(ctx)
	if err != nil {
		return err
	}
	cities := lodi.NewCities(records)
	fmt.Printf("      Cities: %d in %d countries\n", cities.Len(), len(cities.Countries()))

	google, err := db.LoadGoogleCities(ctx)
	if err != nil {
		return err
	}
	google = cities.ResolveGoogleCities(google)
	fmt.Printf("      Google cities: %d\n", len(google))

	return lodi.SaveSnapshot(cfg.Cache.Dir, cities, google)
}
