package lodi

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/golang/geo/s2"
)

// earthRadiusKm converts s2 angles on the unit sphere to kilometres.
const earthRadiusKm = 6371.0088

// ErrAmbiguousConsolidation is matched by every *AmbiguousCityError.
var ErrAmbiguousConsolidation = errors.New("city appears the same number of times in two states")

// AmbiguousCityError reports a city name whose two most frequent states
// are linked by the same number of records.
type AmbiguousCityError struct {
	EntityID string
	City     string
	States   []string // the tied states
	Count    int
}

func (e *AmbiguousCityError) Error() string {
	if e.EntityID != "" {
		return fmt.Sprintf("entity %s: city %q linked %d times in each of %s: %v",
			e.EntityID, e.City, e.Count, strings.Join(e.States, ", "), ErrAmbiguousConsolidation)
	}
	return fmt.Sprintf("city %q linked %d times in each of %s: %v",
		e.City, e.Count, strings.Join(e.States, ", "), ErrAmbiguousConsolidation)
}

func (e *AmbiguousCityError) Unwrap() error { return ErrAmbiguousConsolidation }

// Relink describes one record moved to the dominant state by NormalizeInventor.
type Relink struct {
	Record     *RawRecord
	From       *CityRecord
	To         *CityRecord
	DistanceKm float64 // great-circle distance From -> To; 0 when either lacks coordinates
}

// cityVotes is one candidate state for a city name and the records linked to it.
type cityVotes struct {
	city    *CityRecord
	records []*RawRecord
}

// NormalizeInventor consolidates the US links of one inventor's records:
// when the same city name is linked in several states, every record is
// re-pointed to the state with the most links. LinkCode is left unchanged.
//
// A tie between the two most frequent states returns an
// *AmbiguousCityError and leaves every record untouched.
func NormalizeInventor(records []*RawRecord) ([]Relink, error) {
	byCity := make(map[*CityRecord][]*RawRecord)
	var order []*CityRecord
	for _, r := range records {
		if r == nil || !r.Linked() || !isUS(r.LinkedCity.Country) {
			continue
		}
		if _, ok := byCity[r.LinkedCity]; !ok {
			order = append(order, r.LinkedCity)
		}
		byCity[r.LinkedCity] = append(byCity[r.LinkedCity], r)
	}

	byName := make(map[string][]cityVotes)
	for _, c := range order {
		if c.City == "" {
			continue
		}
		byName[c.City] = append(byName[c.City], cityVotes{city: c, records: byCity[c]})
	}
	names := make([]string, 0, len(byName))
	for name := range byName {
		names = append(names, name)
	}
	sort.Strings(names)

	// Plan every move first so a tie anywhere leaves the records as they were.
	var relinks []Relink
	for _, name := range names {
		votes := byName[name]
		if len(votes) < 2 {
			continue
		}
		sort.SliceStable(votes, func(i, j int) bool {
			return len(votes[i].records) > len(votes[j].records)
		})
		top, second := votes[0], votes[1]
		if len(top.records) == len(second.records) {
			return nil, &AmbiguousCityError{
				City:   name,
				States: []string{top.city.State, second.city.State},
				Count:  len(top.records),
			}
		}
		for _, v := range votes[1:] {
			dist := distanceKm(v.city, top.city)
			for _, r := range v.records {
				relinks = append(relinks, Relink{Record: r, From: v.city, To: top.city, DistanceKm: dist})
			}
		}
	}

	for _, rl := range relinks {
		rl.Record.LinkedCity = rl.To
	}
	return relinks, nil
}

// NormalizeByEntity runs NormalizeInventor separately for each EntityID.
// Records without an EntityID are left alone. Entities with a tie are
// skipped and their errors joined; the others are still consolidated.
func NormalizeByEntity(records []*RawRecord) ([]Relink, error) {
	byEntity := make(map[string][]*RawRecord)
	for _, r := range records {
		if r == nil || r.EntityID == "" {
			continue
		}
		byEntity[r.EntityID] = append(byEntity[r.EntityID], r)
	}
	ids := make([]string, 0, len(byEntity))
	for id := range byEntity {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var (
		relinks []Relink
		errs    []error
	)
	for _, id := range ids {
		moved, err := NormalizeInventor(byEntity[id])
		if err != nil {
			var amb *AmbiguousCityError
			if errors.As(err, &amb) {
				amb.EntityID = id
			}
			errs = append(errs, err)
			continue
		}
		relinks = append(relinks, moved...)
	}
	return relinks, errors.Join(errs...)
}

func distanceKm(a, b *CityRecord) float64 {
	if !a.hasCoordinates() || !b.hasCoordinates() {
		return 0
	}
	la := s2.LatLngFromDegrees(a.Latitude, a.Longitude)
	lb := s2.LatLngFromDegrees(b.Latitude, b.Longitude)
	return la.Distance(lb).Radians() * earthRadiusKm
}
