// Package lrt performs likelihood-ratio tests between nested CodeML
// models.
package lrt

import (
	"errors"
	"math"
	"sort"

	"github.com/molevol/etetab/codeml"
	"github.com/molevol/etetab/dist"
)

// ErrInvalidComparison is returned when a model pair has non-positive
// degrees of freedom. Pairs must be supplied in null/alt order; the
// engine never reorders them.
var ErrInvalidComparison = errors.New("invalid comparison: degrees of freedom must be positive")

// Pair is a nested null/alternative model pair.
type Pair struct {
	Null string
	Alt  string
}

// validAlts maps each null model to the alternative models it is
// nested in.
var validAlts = map[string][]string{
	"M0":     {"M1", "M2", "M8", "M7", "bsA", "bsA1", "bsC", "bsD", "b_free"},
	"M1":     {"M2", "M8", "bsA", "bsA1", "bsC", "bsD"},
	"M2":     {"bsC", "bsD"},
	"M8":     {"bsC", "bsD"},
	"M7":     {"M2", "M8", "bsA", "bsA1", "bsC", "bsD"},
	"bsA":    {"bsC", "bsD"},
	"bsA1":   {"M2", "M8", "bsA", "bsC", "bsD"},
	"bsC":    {"bsD"},
	"b_free": {"bsA", "bsA1", "bsC", "bsD"},
	"b_neut": {"bsA", "bsA1", "bsC", "bsD", "b_free"},
}

// IsValid reports whether (null, alt) is a known nested pair. Unknown
// pairs are excluded from testing, not errors.
func IsValid(null, alt string) bool {
	for _, a := range validAlts[null] {
		if a == alt {
			return true
		}
	}
	return false
}

// Alternatives returns the alternative models nested over null.
func Alternatives(null string) []string {
	return validAlts[null]
}

// ValidPairs returns every nested model pair eligible for testing,
// sorted by null and then alternative model name.
func ValidPairs() []Pair {
	var pairs []Pair
	for null, alts := range validAlts {
		for _, alt := range alts {
			pairs = append(pairs, Pair{Null: null, Alt: alt})
		}
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].Null != pairs[j].Null {
			return pairs[i].Null < pairs[j].Null
		}
		return pairs[i].Alt < pairs[j].Alt
	})
	return pairs
}

// Test is the result of a likelihood-ratio test.
type Test struct {
	// Null and Alt are the compared model names.
	Null string `json:"null"`
	Alt  string `json:"alt"`
	// Statistic is D = 2*(lnL1 - lnL0).
	Statistic float64 `json:"statistic"`
	// Df is the difference in the number of free parameters.
	Df int `json:"df"`
	// PValue is the upper-tail chi-squared probability; NaN when the
	// statistic is negative.
	PValue float64 `json:"pval"`
	// NonConvergent is set when the statistic is negative, which
	// indicates optimizer failure or models that are not strictly
	// nested. The statistic is reported as-is, never clamped.
	NonConvergent bool `json:"nonConvergent,omitempty"`
}

// Note returns the note recorded in the LRT table for this test.
func (t *Test) Note() string {
	if t.NonConvergent {
		return "lnl1 < lnl0"
	}
	return ""
}

// Compute performs the likelihood-ratio test of alt against null.
// The pair is taken as given; a non-positive degrees of freedom is
// ErrInvalidComparison.
func Compute(null, alt *codeml.Result) (Test, error) {
	df := alt.Np - null.Np
	if df <= 0 {
		return Test{}, ErrInvalidComparison
	}
	t := Test{
		Null:      null.Model,
		Alt:       alt.Model,
		Statistic: 2 * (alt.LnL - null.LnL),
		Df:        df,
	}
	if t.Statistic < 0 {
		t.NonConvergent = true
		t.PValue = math.NaN()
		return t, nil
	}
	t.PValue = dist.UpperTailChiSquared(t.Statistic, float64(df))
	return t, nil
}
