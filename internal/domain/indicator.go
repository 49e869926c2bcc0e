package domain

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrInvalidPopulation rejects a rate denominator that is not positive.
	ErrInvalidPopulation = errors.New("population must be greater than zero")

	// ErrIncompleteTable means a variation was requested before both yearly
	// values were filled in.
	ErrIncompleteTable = errors.New("fill in the table first")

	// ErrInvalidTolerance rejects a grading tolerance that is not positive.
	ErrInvalidTolerance = errors.New("tolerance must be greater than zero")
)

const (
	// RateDecimals is the precision rates and variations are truncated to.
	RateDecimals = 2

	// perInhabitants is the rate base: occurrences per 100,000 inhabitants.
	perInhabitants = 100000

	// snapEpsilon is the relative distance from an integer within which a
	// scaled value counts as that integer. It covers binary representation
	// error, so 0.29*100 (28.999999999999996) truncates to 29, not 28, while
	// 2.5699999999 still truncates to 2.56.
	snapEpsilon = 1e-12
)

// Truncate drops the digits of v beyond decimals places, toward zero.
// It never rounds: Truncate(2.567, 2) is 2.56.
func Truncate(v float64, decimals int) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	scale := math.Pow(10, float64(decimals))
	scaled := v * scale
	if r := math.Round(scaled); math.Abs(scaled-r) <= snapEpsilon*math.Max(1, math.Abs(scaled)) {
		scaled = r
	}
	return math.Trunc(scaled) / scale
}

// Verdict is the outcome of comparing an answer to its expected value.
type Verdict int

const (
	Mismatch Verdict = iota
	Match
)

func (v Verdict) String() string {
	if v == Match {
		return "MATCH"
	}
	return "MISMATCH"
}

// MarshalText renders the verdict as MATCH or MISMATCH.
func (v Verdict) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

// Check returns Match iff |expected-actual| < tolerance.
func Check(expected, actual, tolerance float64) Verdict {
	if math.Abs(expected-actual) < tolerance {
		return Match
	}
	return Mismatch
}

// Rate computes occurrences per 100,000 inhabitants, truncated to two decimals.
func Rate(count int, population int64) (float64, error) {
	if population <= 0 {
		return 0, fmt.Errorf("%w: got %d", ErrInvalidPopulation, population)
	}
	return Truncate(float64(count)/float64(population)*perInhabitants, RateDecimals), nil
}

// Variation computes the percentage change from rate1 to rate2, truncated to
// two decimals. Both rates must be positive.
func Variation(rate1, rate2 float64) (float64, error) {
	if rate1 <= 0 || rate2 <= 0 {
		return 0, ErrIncompleteTable
	}
	return Truncate((rate2-rate1)/rate1*100, RateDecimals), nil
}
