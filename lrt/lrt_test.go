package lrt

import (
	"math"
	"testing"

	"github.com/molevol/etetab/codeml"
)

const smallDiff = 1e-6

func appreq(a, b float64) bool {
	return math.Abs(a-b) <= smallDiff
}

func TestCompute(t *testing.T) {
	null := &codeml.Result{Model: "M7", LnL: -1000, Np: 2}
	alt := &codeml.Result{Model: "M8", LnL: -995, Np: 4}

	test, err := Compute(null, alt)
	if err != nil {
		t.Fatal("Unexpected error:", err)
	}
	// exact arithmetic, no rounding
	if test.Statistic != 2*(alt.LnL-null.LnL) {
		t.Error("Wrong statistic:", test.Statistic)
	}
	if test.Statistic != 10 {
		t.Error("Wrong statistic:", test.Statistic)
	}
	if test.Df != 2 {
		t.Error("Wrong df:", test.Df)
	}
	if !appreq(test.PValue, 0.006737947) {
		t.Error("Wrong p-value:", test.PValue)
	}
	if test.NonConvergent {
		t.Error("Unexpected non-convergent flag")
	}
	if test.Note() != "" {
		t.Error("Unexpected note:", test.Note())
	}
}

func TestComputeNegativeStatistic(t *testing.T) {
	null := &codeml.Result{Model: "M1", LnL: -990, Np: 2}
	alt := &codeml.Result{Model: "M2", LnL: -995, Np: 4}

	test, err := Compute(null, alt)
	if err != nil {
		t.Fatal("Unexpected error:", err)
	}
	// the statistic is reported as-is, never clamped
	if test.Statistic != -10 {
		t.Error("Wrong statistic:", test.Statistic)
	}
	if !test.NonConvergent {
		t.Error("Expected non-convergent flag")
	}
	if !math.IsNaN(test.PValue) {
		t.Error("Expected NaN p-value:", test.PValue)
	}
	if test.Note() != "lnl1 < lnl0" {
		t.Error("Wrong note:", test.Note())
	}
}

func TestComputeInvalidDf(t *testing.T) {
	null := &codeml.Result{Model: "M2", LnL: -1000, Np: 4}
	alt := &codeml.Result{Model: "M1", LnL: -995, Np: 2}

	if _, err := Compute(null, alt); err != ErrInvalidComparison {
		t.Error("Expected ErrInvalidComparison, got:", err)
	}

	// equal parameter counts are invalid too
	null = &codeml.Result{Model: "M1", LnL: -1000, Np: 4}
	alt = &codeml.Result{Model: "M2", LnL: -995, Np: 4}
	if _, err := Compute(null, alt); err != ErrInvalidComparison {
		t.Error("Expected ErrInvalidComparison, got:", err)
	}
}

func TestIsValid(t *testing.T) {
	valid := [...][2]string{
		{"M1", "M2"},
		{"M7", "M8"},
		{"M0", "b_free"},
		{"bsA1", "bsA"},
		{"b_neut", "b_free"},
	}
	for _, p := range valid {
		if !IsValid(p[0], p[1]) {
			t.Error("Expected valid pair:", p)
		}
	}
	invalid := [...][2]string{
		{"M2", "M1"}, // reversed
		{"M8", "M7"}, // reversed
		{"M1", "M1"},
		{"M2", "M7"},
		{"bogus", "M2"},
	}
	for _, p := range invalid {
		if IsValid(p[0], p[1]) {
			t.Error("Expected invalid pair:", p)
		}
	}
}

func TestValidPairs(t *testing.T) {
	pairs := ValidPairs()
	n := 0
	for _, alts := range validAlts {
		n += len(alts)
	}
	if len(pairs) != n {
		t.Error("Wrong number of pairs:", len(pairs), n)
	}
	for _, p := range pairs {
		if !IsValid(p.Null, p.Alt) {
			t.Error("Invalid pair returned:", p)
		}
	}
}

func TestPValueMonotonic(t *testing.T) {
	null := &codeml.Result{Model: "M7", LnL: -1000, Np: 2}
	prev := 1.0
	for lnL := -1000.0; lnL <= -900; lnL += 2.5 {
		alt := &codeml.Result{Model: "M8", LnL: lnL, Np: 4}
		test, err := Compute(null, alt)
		if err != nil {
			t.Fatal("Unexpected error:", err)
		}
		if test.PValue > prev+1e-12 {
			t.Errorf("p-value increased: D=%g, %g > %g", test.Statistic, test.PValue, prev)
		}
		prev = test.PValue
	}
}
