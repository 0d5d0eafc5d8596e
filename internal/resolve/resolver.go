package resolve

import (
	"math"

	"github.com/xrash/smetrics"

	"github.com/formicag/contractor-pay-tracker-sub000/internal/model"
)

// DefaultThreshold is the minimum fuzzy confidence accepted when no
// deployment-specific threshold is configured.
const DefaultThreshold = 85

// MatchKind classifies a resolution outcome.
type MatchKind int

const (
	MatchNone MatchKind = iota
	MatchExact
	MatchFuzzy
)

// Match is the result of resolving a typed name against the contractor set.
type Match struct {
	Kind       MatchKind
	Contractor *model.Contractor
	// Confidence is 0-100. Exact matches are always 100.
	Confidence int
}

// Resolve maps a (forename, surname) pair to a canonical contractor.
// Exact normalized equality wins before any candidate is scored. Otherwise
// every candidate's normalized full name is scored with Jaro-Winkler and the
// maximum retained; ties keep the first candidate encountered, so the result
// is stable for a given candidate ordering. Pure: no I/O, no side effects.
func Resolve(forename, surname string, candidates []model.Contractor, threshold int) Match {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}

	name := NormalizeFullName(forename, surname)
	if name == "" {
		return Match{Kind: MatchNone}
	}

	for i := range candidates {
		if candidateName(&candidates[i]) == name {
			return Match{Kind: MatchExact, Contractor: &candidates[i], Confidence: 100}
		}
	}

	var best *model.Contractor
	bestScore := 0
	for i := range candidates {
		score := Score(name, candidateName(&candidates[i]))
		if score > bestScore {
			bestScore = score
			best = &candidates[i]
		}
	}

	if best != nil && bestScore >= threshold {
		return Match{Kind: MatchFuzzy, Contractor: best, Confidence: bestScore}
	}
	return Match{Kind: MatchNone}
}

// Score computes a 0-100 similarity between two normalized names using
// Jaro-Winkler, which rewards shared prefixes the way truncated forenames
// ("Jon" for "Jonathan") appear in real pay files.
func Score(a, b string) int {
	if a == "" || b == "" {
		return 0
	}
	return int(math.Round(smetrics.JaroWinkler(a, b, 0.7, 4) * 100))
}

func candidateName(c *model.Contractor) string {
	if c.NormalizedName != "" {
		return c.NormalizedName
	}
	return NormalizeFullName(c.FirstName, c.LastName)
}
