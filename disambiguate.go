package lodi

import (
	"io"
	"log/slog"
	"runtime"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

// Stage identifies a point in the pipeline reported to a ProgressFunc.
type Stage string

const (
	StageGoogleExact Stage = "google_exact" // after the google_cities lookup
	StageExactCity   Stage = "exact_city"   // after the exact city/state and city/country lookup
	StageFuzzyGroup  Stage = "fuzzy_group"  // before scoring one blocking group
	StageFuzzyCity   Stage = "fuzzy_city"   // after the blocked fuzzy pass
)

// Progress is reported at pass boundaries and once per fuzzy blocking group.
type Progress struct {
	Stage  Stage
	Total  int // records in the batch
	Linked int // records linked so far; unset for StageFuzzyGroup

	// Populated for StageFuzzyGroup only.
	Group        string
	GroupRecords int
	GroupUnique  int
	KnownCities  int
}

// ProgressFunc receives pipeline progress. It is called from the goroutine
// running Disambiguate, never concurrently.
type ProgressFunc func(Progress)

// Config contains configuration options for a Disambiguator.
type Config struct {
	Workers  int          // parallel workers per pass (default: runtime.NumCPU())
	Progress ProgressFunc // default: log through Logger
	Logger   *slog.Logger // default: discard
}

// Option is a functional option for configuring a Disambiguator.
type Option func(*Config)

// WithWorkers sets the number of goroutines used by each pass.
func WithWorkers(n int) Option {
	return func(c *Config) {
		c.Workers = n
	}
}

// WithProgress sets the progress callback.
func WithProgress(fn ProgressFunc) Option {
	return func(c *Config) {
		c.Progress = fn
	}
}

// WithLogger sets the logger used by the default progress callback.
func WithLogger(l *slog.Logger) Option {
	return func(c *Config) {
		c.Logger = l
	}
}

func defaultConfig() *Config {
	return &Config{
		Workers: runtime.NumCPU(),
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// Disambiguator links raw locations to reference cities. It holds only
// read-only tables and is safe for concurrent use.
type Disambiguator struct {
	cities CityIndex
	exact  ExactMatchTable
	config *Config
}

// New creates a Disambiguator over the reference cities and the exact-match
// table. exact may be nil, in which case the first pass links nothing.
func New(cities CityIndex, exact ExactMatchTable, opts ...Option) *Disambiguator {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if cfg.Progress == nil {
		cfg.Progress = logProgress(cfg.Logger)
	}
	return &Disambiguator{cities: cities, exact: exact, config: cfg}
}

// Disambiguate is a shorthand for New(cities, exact, opts...).Disambiguate.
func Disambiguate(cities CityIndex, exact ExactMatchTable, records []*RawRecord, matchThreshold float64, opts ...Option) Stats {
	return New(cities, exact, opts...).Disambiguate(records, matchThreshold)
}

// Stats summarizes one Disambiguate call.
type Stats struct {
	Total    int
	Linked   int
	ByCode   map[LinkCode]int
	ByPass   map[Stage]int // records linked by each pass
	Duration time.Duration
}

// Disambiguate links records in place. Each pass only sees the records the
// previous passes left unlinked, and records that arrive already linked
// are never touched. A fuzzy match is accepted only when its score is
// strictly greater than matchThreshold.
func (d *Disambiguator) Disambiguate(records []*RawRecord, matchThreshold float64) Stats {
	start := time.Now()
	total := len(records)
	stats := Stats{
		Total:  total,
		ByCode: make(map[LinkCode]int),
		ByPass: make(map[Stage]int),
	}

	pending := unlinked(records)
	linkedBefore := 0
	for _, r := range records {
		if r != nil && r.Linked() {
			linkedBefore++
		}
	}

	// Pass 1: exact lookup of the cleaned location in google_cities.
	if d.exact != nil {
		parallel(d.config.Workers, pending, d.matchGoogle)
	}
	pending = d.advance(StageGoogleExact, pending, total, &stats)

	// Pass 2: exact city/state for the US, city/country elsewhere.
	parallel(d.config.Workers, pending, d.matchExactCity)
	pending = d.advance(StageExactCity, pending, total, &stats)

	// Pass 3: fuzzy city name within a state or country block.
	d.matchFuzzy(pending, matchThreshold, total)
	d.advance(StageFuzzyCity, pending, total, &stats)

	for _, r := range records {
		if r != nil && r.Linked() {
			stats.ByCode[r.LinkCode]++
		}
	}
	stats.Linked = linkedBefore
	for _, n := range stats.ByPass {
		stats.Linked += n
	}
	stats.Duration = time.Since(start)
	return stats
}

// advance drops the records linked by a pass, records the count and
// reports progress. It returns the records still pending.
func (d *Disambiguator) advance(stage Stage, pending []*RawRecord, total int, stats *Stats) []*RawRecord {
	remaining := unlinked(pending)
	stats.ByPass[stage] = len(pending) - len(remaining)
	d.config.Progress(Progress{
		Stage:  stage,
		Total:  total,
		Linked: total - len(remaining),
	})
	return remaining
}

func (d *Disambiguator) matchGoogle(r *RawRecord) {
	if c, ok := d.exact.Lookup(r.CleanedLocation); ok {
		r.link(c, LinkGoogleExact)
	}
}

// matchExactCity links on an exact name. Hits outside the US are tagged
// LinkFuzzyCity, not LinkExactCity.
func (d *Disambiguator) matchExactCity(r *RawRecord) {
	if isUS(r.Country) {
		r.link(d.cities.CityInState(r.City, r.State), LinkExactCity)
		return
	}
	r.link(d.cities.CityInCountry(r.City, r.Country), LinkFuzzyCity)
}

// fuzzyUnit is one unique raw city name inside a blocking group. Units
// never share records, so they can be scored in parallel.
type fuzzyUnit struct {
	key        string
	rawCity    string
	records    []*RawRecord
	candidates []*CityRecord
}

func (d *Disambiguator) matchFuzzy(pending []*RawRecord, threshold float64, total int) {
	groups := make(map[string][]*RawRecord)
	for _, r := range pending {
		k := blockingKey(r)
		groups[k] = append(groups[k], r)
	}
	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var units []fuzzyUnit
	for _, key := range keys {
		locs := groups[key]

		byCity := make(map[string][]*RawRecord)
		var names []string
		for _, r := range locs {
			if _, ok := byCity[r.City]; !ok {
				names = append(names, r.City)
			}
			byCity[r.City] = append(byCity[r.City], r)
		}

		candidates := d.candidates(key)
		d.config.Progress(Progress{
			Stage:        StageFuzzyGroup,
			Total:        total,
			Group:        key,
			GroupRecords: len(locs),
			GroupUnique:  len(names),
			KnownCities:  len(candidates),
		})
		if len(candidates) == 0 {
			continue
		}
		for _, name := range names {
			if name == "" {
				continue
			}
			units = append(units, fuzzyUnit{
				key:        key,
				rawCity:    name,
				records:    byCity[name],
				candidates: candidates,
			})
		}
	}

	parallel(d.config.Workers, units, func(u fuzzyUnit) {
		m := bestMatch(u.rawCity, u.candidates)
		// A country-level reference entry named like the block key is not a city.
		if m.City == nil || m.Score <= threshold || m.City.Name() == u.key {
			return
		}
		for _, r := range u.records {
			r.link(m.City, LinkFuzzyCity)
		}
	})
}

// candidates returns the reference cities for a blocking key.
func (d *Disambiguator) candidates(key string) []*CityRecord {
	if state, ok := strings.CutPrefix(key, usBlockPrefix); ok {
		return d.cities.State(state)
	}
	return d.cities.Country(key)
}

// unlinked returns the non-nil records without a linked city.
func unlinked(records []*RawRecord) []*RawRecord {
	out := make([]*RawRecord, 0, len(records))
	for _, r := range records {
		if r != nil && !r.Linked() {
			out = append(out, r)
		}
	}
	return out
}

// parallel splits items into at most workers contiguous chunks and runs fn
// on every item. Each item is visited by exactly one goroutine.
func parallel[T any](workers int, items []T, fn func(T)) {
	if len(items) == 0 {
		return
	}
	if workers < 1 {
		workers = 1
	}
	size := (len(items) + workers - 1) / workers

	var g errgroup.Group
	g.SetLimit(workers)
	for start := 0; start < len(items); start += size {
		chunk := items[start:min(start+size, len(items))]
		g.Go(func() error {
			for _, it := range chunk {
				fn(it)
			}
			return nil
		})
	}
	_ = g.Wait()
}

func logProgress(l *slog.Logger) ProgressFunc {
	return func(p Progress) {
		if p.Stage == StageFuzzyGroup {
			l.Debug("fuzzy city lookup",
				"group", p.Group,
				"locations", p.GroupRecords,
				"unique", p.GroupUnique,
				"known_cities", p.KnownCities)
			return
		}
		l.Info("pass complete",
			"stage", string(p.Stage),
			"linked", p.Linked,
			"total", p.Total)
	}
}
