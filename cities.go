package lodi

import (
	"sort"
	"strings"
	"sync"

	"golang.org/x/text/unicode/norm"
)

// CityIndex is the read-only view of the reference cities table that the
// pipeline needs. Implementations must be safe for concurrent reads.
type CityIndex interface {
	CityInState(city, state string) *CityRecord
	CityInCountry(city, country string) *CityRecord
	State(state string) []*CityRecord
	Country(country string) []*CityRecord
}

// ExactMatchTable maps a cleaned, concatenated location string to a city.
type ExactMatchTable interface {
	Lookup(location string) (*CityRecord, bool)
}

// UsStateCodes maps US state abbreviations to full names.
var UsStateCodes = map[string]string{
	"AL": "Alabama", "AK": "Alaska", "AZ": "Arizona", "AR": "Arkansas",
	"CA": "California", "CO": "Colorado", "CT": "Connecticut", "DE": "Delaware",
	"FL": "Florida", "GA": "Georgia", "HI": "Hawaii", "ID": "Idaho",
	"IL": "Illinois", "IN": "Indiana", "IA": "Iowa", "KS": "Kansas",
	"KY": "Kentucky", "LA": "Louisiana", "ME": "Maine", "MD": "Maryland",
	"MA": "Massachusetts", "MI": "Michigan", "MN": "Minnesota", "MS": "Mississippi",
	"MO": "Missouri", "MT": "Montana", "NE": "Nebraska", "NV": "Nevada",
	"NH": "New Hampshire", "NJ": "New Jersey", "NM": "New Mexico", "NY": "New York",
	"NC": "North Carolina", "ND": "North Dakota", "OH": "Ohio", "OK": "Oklahoma",
	"OR": "Oregon", "PA": "Pennsylvania", "RI": "Rhode Island", "SC": "South Carolina",
	"SD": "South Dakota", "TN": "Tennessee", "TX": "Texas", "UT": "Utah",
	"VT": "Vermont", "VA": "Virginia", "WA": "Washington", "WV": "West Virginia",
	"WI": "Wisconsin", "WY": "Wyoming",
	// Territories
	"AS": "American Samoa", "DC": "District of Columbia",
	"FM": "Federated States of Micronesia", "GU": "Guam",
	"MH": "Marshall Islands", "MP": "Northern Mariana Islands",
	"PW": "Palau", "PR": "Puerto Rico", "VI": "Virgin Islands",
	// Armed Forces
	"AA": "Armed Forces Americas", "AE": "Armed Forces Europe", "AP": "Armed Forces Pacific",
}

// usStateNames is the reverse of UsStateCodes keyed by folded full name.
var usStateNames = sync.OnceValue(func() map[string]string {
	m := make(map[string]string, len(UsStateCodes))
	for code, name := range UsStateCodes {
		m[foldKey(name)] = code
	}
	return m
})

// foldKey normalizes a lookup key: NFC composition, trimmed, lowercased.
// Raw inputs mix precomposed and combining accents ("Zürich" in two byte
// forms), which would otherwise miss exact lookups.
func foldKey(s string) string {
	return strings.ToLower(strings.TrimSpace(norm.NFC.String(s)))
}

// stateKey folds a US state given either as a code or a full name to the
// folded two-letter code.
func stateKey(s string) string {
	k := foldKey(s)
	if code, ok := usStateNames()[k]; ok {
		return foldKey(code)
	}
	return k
}

func pairKey(a, b string) string {
	return a + "\x00" + b
}

func isUS(country string) bool {
	return strings.EqualFold(strings.TrimSpace(country), "US")
}

// Cities is the in-memory reference cities table. It is immutable after
// NewCities returns and safe for concurrent use.
type Cities struct {
	records     []*CityRecord
	byID        map[int64]*CityRecord
	cityState   map[string]*CityRecord   // folded city + state code, US only
	cityCountry map[string]*CityRecord   // folded city + country
	byState     map[string][]*CityRecord // US cities by state code
	byCountry   map[string][]*CityRecord
}

// NewCities indexes the given reference cities. Slice order is kept in the
// per-state and per-country lists, which makes best-match ties
// deterministic. When two records share an exact key the first one wins.
func NewCities(records []*CityRecord) *Cities {
	c := &Cities{
		records:     make([]*CityRecord, 0, len(records)),
		byID:        make(map[int64]*CityRecord, len(records)),
		cityState:   make(map[string]*CityRecord),
		cityCountry: make(map[string]*CityRecord, len(records)),
		byState:     make(map[string][]*CityRecord),
		byCountry:   make(map[string][]*CityRecord),
	}
	for _, r := range records {
		if r == nil {
			continue
		}
		c.records = append(c.records, r)
		if _, ok := c.byID[r.ID]; !ok {
			c.byID[r.ID] = r
		}

		country := foldKey(r.Country)
		c.byCountry[country] = append(c.byCountry[country], r)

		us := isUS(r.Country)
		if us {
			st := stateKey(r.State)
			c.byState[st] = append(c.byState[st], r)
		}

		if r.City == "" {
			continue
		}
		city := foldKey(r.City)
		if us {
			k := pairKey(city, stateKey(r.State))
			if _, ok := c.cityState[k]; !ok {
				c.cityState[k] = r
			}
		}
		k := pairKey(city, country)
		if _, ok := c.cityCountry[k]; !ok {
			c.cityCountry[k] = r
		}
	}
	return c
}

// Len returns the number of reference cities.
func (c *Cities) Len() int { return len(c.records) }

// All returns the reference cities in load order. Callers must not modify the slice.
func (c *Cities) All() []*CityRecord { return c.records }

// ByID returns the city with the given database id, or nil.
func (c *Cities) ByID(id int64) *CityRecord { return c.byID[id] }

// CityInState returns the US city with this exact name in the given state.
func (c *Cities) CityInState(city, state string) *CityRecord {
	if city == "" || state == "" {
		return nil
	}
	return c.cityState[pairKey(foldKey(city), stateKey(state))]
}

// CityInCountry returns the city with this exact name in the given country.
func (c *Cities) CityInCountry(city, country string) *CityRecord {
	if city == "" || country == "" {
		return nil
	}
	return c.cityCountry[pairKey(foldKey(city), foldKey(country))]
}

// State returns all US reference cities in a state, or nil.
func (c *Cities) State(state string) []*CityRecord {
	if state == "" {
		return nil
	}
	return c.byState[stateKey(state)]
}

// Country returns all reference cities in a country, or nil.
func (c *Cities) Country(country string) []*CityRecord {
	if country == "" {
		return nil
	}
	return c.byCountry[foldKey(country)]
}

// Countries returns the folded country keys present in the table, sorted.
func (c *Cities) Countries() []string {
	out := make([]string, 0, len(c.byCountry))
	for k := range c.byCountry {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// GoogleCity is one row of the google_cities table: a cleaned input string
// that an external geocoder resolved to a reference city with some confidence.
type GoogleCity struct {
	Location   string
	CityID     int64
	Confidence float64
	City       *CityRecord
}

// GoogleCities is the exact-match table used by the first pass.
type GoogleCities struct {
	entries []GoogleCity
	index   map[string]*CityRecord
}

// NewGoogleCities keeps the entries with Confidence >= minConfidence and a
// resolved City. Location keys are matched byte for byte; the first entry
// for a duplicated key wins.
func NewGoogleCities(entries []GoogleCity, minConfidence float64) *GoogleCities {
	g := &GoogleCities{index: make(map[string]*CityRecord, len(entries))}
	for _, e := range entries {
		if e.City == nil || e.Confidence < minConfidence {
			continue
		}
		if _, ok := g.index[e.Location]; ok {
			continue
		}
		g.index[e.Location] = e.City
		g.entries = append(g.entries, e)
	}
	return g
}

// Lookup returns the city for a cleaned location string.
func (g *GoogleCities) Lookup(location string) (*CityRecord, bool) {
	if g == nil || location == "" {
		return nil, false
	}
	c, ok := g.index[location]
	return c, ok
}

// Len returns the number of kept entries.
func (g *GoogleCities) Len() int {
	if g == nil {
		return 0
	}
	return len(g.entries)
}

// Entries returns the kept entries in load order.
func (g *GoogleCities) Entries() []GoogleCity {
	if g == nil {
		return nil
	}
	return g.entries
}

// ResolveGoogleCities fills in City on each entry from its CityID. Entries
// whose id is unknown to the reference table are dropped.
func (c *Cities) ResolveGoogleCities(entries []GoogleCity) []GoogleCity {
	out := make([]GoogleCity, 0, len(entries))
	for _, e := range entries {
		city := c.ByID(e.CityID)
		if city == nil {
			continue
		}
		e.City = city
		out = append(out, e)
	}
	return out
}
