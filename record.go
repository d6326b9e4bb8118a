package lodi

import "strings"

// LinkCode records which pass of the pipeline linked a raw location.
// Lower values mean higher confidence.
type LinkCode int

const (
	LinkNone        LinkCode = 0
	LinkGoogleExact LinkCode = 1 // exact hit in the precomputed google_cities table
	LinkExactCity   LinkCode = 2 // exact city/state match for a US location
	LinkFuzzyCity   LinkCode = 3 // blocked Jaro-Winkler match, or exact city/country outside the US
)

func (c LinkCode) String() string {
	switch c {
	case LinkGoogleExact:
		return "GOOGLE_EXACT"
	case LinkExactCity:
		return "EXACT_CITY"
	case LinkFuzzyCity:
		return "FUZZY_CITY"
	}
	return "NONE"
}

// CityRecord is one canonical city from the reference table.
// The table owns exactly one *CityRecord per canonical city, so pointer
// equality is identity.
type CityRecord struct {
	ID        int64
	City      string // may be empty for region-level entries
	Region    string // display name used when City is empty
	State     string
	Country   string
	Latitude  float64
	Longitude float64
}

// Name returns the canonical name of the city: City, or Region when the
// record has no city name.
func (c *CityRecord) Name() string {
	if c == nil {
		return ""
	}
	if c.City != "" {
		return c.City
	}
	return c.Region
}

// String returns "name, state, country", skipping empty parts.
func (c *CityRecord) String() string {
	if c == nil {
		return ""
	}
	parts := make([]string, 0, 3)
	for _, p := range []string{c.Name(), c.State, c.Country} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}

func (c *CityRecord) hasCoordinates() bool {
	return c != nil && (c.Latitude != 0 || c.Longitude != 0)
}

// RawRecord is one location occurrence extracted upstream. The input
// fields are already cleaned; LinkedCity and LinkCode are the outputs and
// are always set together.
type RawRecord struct {
	ID              string
	EntityID        string // inventor (or other owner) the location belongs to
	RawCity         string
	CleanedLocation string // normalized concatenation used for the exact table lookup
	City            string
	State           string
	Country         string
	CleanedCountry  string

	LinkedCity *CityRecord
	LinkCode   LinkCode
}

// Linked reports whether the record has been resolved.
func (r *RawRecord) Linked() bool {
	return r.LinkedCity != nil
}

func (r *RawRecord) link(c *CityRecord, code LinkCode) {
	if c == nil {
		return
	}
	r.LinkedCity = c
	r.LinkCode = code
}

// MatchCandidate pairs a reference city with its similarity score.
type MatchCandidate struct {
	City  *CityRecord
	Score float64
}

// noMatch is returned when there is nothing to compare against.
var noMatch = MatchCandidate{City: nil, Score: -1}
