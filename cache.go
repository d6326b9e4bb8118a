package lodi

import (
	"bytes"
	"compress/bzip2"
	"encoding/gob"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

const (
	citiesCacheFile = "cities.dmp"
	googleCacheFile = "google.dmp"
)

// cityGob and googleCityGob are the on-disk forms. Google entries refer to
// cities by id so pointer identity is rebuilt on load.
type cityGob struct {
	ID        int64
	City      string
	Region    string
	State     string
	Country   string
	Latitude  float64
	Longitude float64
}

type googleCityGob struct {
	Location   string
	CityID     int64
	Confidence float64
}

// Snapshot is a reference data set loaded from the cache directory.
type Snapshot struct {
	Cities *Cities
	Google []GoogleCity // resolved against Cities, unfiltered by confidence
}

// SaveSnapshot writes the reference cities and google_cities entries to dir.
//
// After running, the files may be compressed with bzip2:
//
//	bzip2 -f lodi-cache/*.dmp
func SaveSnapshot(dir string, cities *Cities, google []GoogleCity) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating cache directory: %w", err)
	}

	gobCities := make([]cityGob, 0, cities.Len())
	for _, c := range cities.All() {
		gobCities = append(gobCities, cityGob{
			ID:        c.ID,
			City:      c.City,
			Region:    c.Region,
			State:     c.State,
			Country:   c.Country,
			Latitude:  c.Latitude,
			Longitude: c.Longitude,
		})
	}
	if err := writeGob(filepath.Join(dir, citiesCacheFile), gobCities); err != nil {
		return err
	}

	gobGoogle := make([]googleCityGob, len(google))
	for i, e := range google {
		id := e.CityID
		if e.City != nil {
			id = e.City.ID
		}
		gobGoogle[i] = googleCityGob{Location: e.Location, CityID: id, Confidence: e.Confidence}
	}
	return writeGob(filepath.Join(dir, googleCacheFile), gobGoogle)
}

func writeGob(path string, v any) error {
	b := new(bytes.Buffer)
	if err := gob.NewEncoder(b).Encode(v); err != nil {
		return fmt.Errorf("encoding %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, b.Bytes(), 0644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// LoadSnapshot reads a snapshot written by SaveSnapshot. Bzip2 compressed
// files (".dmp.bz2") are preferred over plain ones.
func LoadSnapshot(dir string) (*Snapshot, error) {
	var gobCities []cityGob
	if err := readGob(filepath.Join(dir, citiesCacheFile), &gobCities); err != nil {
		return nil, err
	}
	records := make([]*CityRecord, len(gobCities))
	for i, c := range gobCities {
		records[i] = &CityRecord{
			ID:        c.ID,
			City:      c.City,
			Region:    c.Region,
			State:     c.State,
			Country:   c.Country,
			Latitude:  c.Latitude,
			Longitude: c.Longitude,
		}
	}
	cities := NewCities(records)

	var gobGoogle []googleCityGob
	if err := readGob(filepath.Join(dir, googleCacheFile), &gobGoogle); err != nil {
		return nil, err
	}
	google := make([]GoogleCity, len(gobGoogle))
	for i, e := range gobGoogle {
		google[i] = GoogleCity{Location: e.Location, CityID: e.CityID, Confidence: e.Confidence}
	}

	return &Snapshot{
		Cities: cities,
		Google: cities.ResolveGoogleCities(google),
	}, nil
}

func readGob(path string, v any) error {
	r, cleanup, err := openOptionallyBzippedFile(path)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := gob.NewDecoder(r).Decode(v); err != nil {
		return fmt.Errorf("decoding %s: %w", filepath.Base(path), err)
	}
	return nil
}

func openOptionallyBzippedFile(file string) (io.Reader, func() error, error) {
	fh, err := os.Open(file + ".bz2")
	if err != nil {
		fh, err = os.Open(file)
		if err != nil {
			return nil, nil, fmt.Errorf("opening %s: %w", file, err)
		}
		return fh, fh.Close, nil
	}
	return bzip2.NewReader(fh), fh.Close, nil
}
