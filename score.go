package lodi

import (
	"strings"

	"github.com/agnivade/levenshtein"
	"github.com/xrash/smetrics"
)

// Jaro-Winkler parameters: the prefix boost applies once the plain Jaro
// similarity exceeds jwBoostThreshold, over at most jwPrefixSize characters.
const (
	jwBoostThreshold = 0.7
	jwPrefixSize     = 4
)

// regionPenalty is subtracted when a city record has no city name and the
// comparison falls back to its region.
const regionPenalty = -0.05

// score compares a raw city name to one reference city.
func score(s string, c *CityRecord) MatchCandidate {
	t := c.City
	adjust := 0.0
	if t == "" {
		t = c.Region
		adjust = regionPenalty
	}
	sim := smetrics.JaroWinkler(s, t, jwBoostThreshold, jwPrefixSize)
	return MatchCandidate{City: c, Score: sim + adjust}
}

// bestMatch returns the highest scoring candidate for s. The first
// candidate wins ties. An empty list yields a score of -1 and no city.
func bestMatch(s string, cities []*CityRecord) MatchCandidate {
	best := noMatch
	for _, c := range cities {
		if c == nil {
			continue
		}
		if cand := score(s, c); cand.Score > best.Score {
			best = cand
		}
	}
	return best
}

// blockingKey partitions raw records for the fuzzy pass: US records by
// state ("US:OH"), everything else by cleaned country.
func blockingKey(r *RawRecord) string {
	if strings.EqualFold(r.CleanedCountry, "US") {
		return usBlockPrefix + r.State
	}
	return r.CleanedCountry
}

const usBlockPrefix = "US:"

// MatchDetail describes how a raw city name compares to a reference city.
type MatchDetail struct {
	Candidate    MatchCandidate
	Target       string // the city or region name that was compared
	EditDistance int    // case-insensitive Levenshtein distance to Target
}

// Explain scores s against c and reports the edit distance alongside the
// Jaro-Winkler based score. Useful when auditing fuzzy links.
func Explain(s string, c *CityRecord) MatchDetail {
	if c == nil {
		return MatchDetail{Candidate: noMatch, EditDistance: -1}
	}
	cand := score(s, c)
	target := c.Name()
	return MatchDetail{
		Candidate:    cand,
		Target:       target,
		EditDistance: levenshtein.ComputeDistance(toLower(s), toLower(target)),
	}
}

// toLower lowercases s, multi-byte city names included.
func toLower(s string) string {
	return strings.ToLower(s)
}
