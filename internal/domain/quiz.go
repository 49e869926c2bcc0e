package domain

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
)

var (
	// ErrUnknownIndicator rejects an indicator kind outside IMV, IMT, ICCP.
	ErrUnknownIndicator = errors.New("unknown indicator")

	// ErrTableShape rejects manual values that do not fit the indicator layout.
	ErrTableShape = errors.New("table values do not match indicator layout")
)

// IndicatorKind names an indicator exercise.
type IndicatorKind string

const (
	IndicatorIMV  IndicatorKind = "IMV"
	IndicatorIMT  IndicatorKind = "IMT"
	IndicatorICCP IndicatorKind = "ICCP"
)

// ParseIndicatorKind accepts a kind name in any letter case.
func ParseIndicatorKind(s string) (IndicatorKind, error) {
	k := IndicatorKind(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := layouts[k]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownIndicator, s)
	}
	return k, nil
}

// valueRange is an inclusive random-generation range.
type valueRange struct {
	Min, Max int
}

// layout fixes the shape of an indicator table. Years are rows when
// yearsInRows is set (one count column), otherwise columns summed per year.
type layout struct {
	rows        []string
	columns     []string
	yearsInRows bool
	ranges      []valueRange // one per row
}

var layouts = map[IndicatorKind]layout{
	IndicatorIMV: {
		rows:        []string{"2022", "2023"},
		columns:     []string{"MV"},
		yearsInRows: true,
		ranges:      []valueRange{{50, 80}, {50, 80}},
	},
	IndicatorIMT: {
		rows:        []string{"2022", "2023"},
		columns:     []string{"MT"},
		yearsInRows: true,
		ranges:      []valueRange{{10, 30}, {10, 30}},
	},
	IndicatorICCP: {
		rows:    []string{"FURTO", "ROUBO", "EXTORSÃO"},
		columns: []string{"2021", "2022", "2023"},
		ranges:  []valueRange{{1012, 2015}, {80, 300}, {5, 30}},
	},
}

// Table is an indicator grid of non-negative counts.
type Table struct {
	Kind    IndicatorKind `json:"kind"`
	Rows    []string      `json:"rows"`
	Columns []string      `json:"columns"`
	Values  [][]int       `json:"values"`
}

// IntSource yields uniform integers in [0, n). *rand.Rand satisfies it.
type IntSource interface {
	IntN(n int) int
}

type globalSource struct{}

func (globalSource) IntN(n int) int { return rand.IntN(n) }

// DefaultSource draws from the process-wide math/rand/v2 generator and is
// safe for concurrent use.
var DefaultSource IntSource = globalSource{}

// GenerateTable fills a table for kind with uniform integers from the
// indicator's documented ranges.
func GenerateTable(kind IndicatorKind, src IntSource) (Table, error) {
	l, ok := layouts[kind]
	if !ok {
		return Table{}, fmt.Errorf("%w: %q", ErrUnknownIndicator, kind)
	}
	if src == nil {
		src = DefaultSource
	}

	values := make([][]int, len(l.rows))
	for i := range l.rows {
		r := l.ranges[i]
		values[i] = make([]int, len(l.columns))
		for j := range l.columns {
			values[i][j] = r.Min + src.IntN(r.Max-r.Min+1)
		}
	}
	return newTable(kind, l, values), nil
}

// NewManualTable validates user-entered values against the kind's layout.
func NewManualTable(kind IndicatorKind, values [][]int) (Table, error) {
	l, ok := layouts[kind]
	if !ok {
		return Table{}, fmt.Errorf("%w: %q", ErrUnknownIndicator, kind)
	}
	if len(values) != len(l.rows) {
		return Table{}, fmt.Errorf("%w: %s wants %d rows, got %d", ErrTableShape, kind, len(l.rows), len(values))
	}

	if err := checkValues(kind, l, values); err != nil {
		return Table{}, err
	}

	copied := make([][]int, len(values))
	for i, row := range values {
		copied[i] = append([]int(nil), row...)
	}
	return newTable(kind, l, copied), nil
}

// checkValues verifies that values has one row per layout row, one cell per
// layout column, and no negative cell. The row count is checked by callers.
func checkValues(kind IndicatorKind, l layout, values [][]int) error {
	for i, row := range values {
		if len(row) != len(l.columns) {
			return fmt.Errorf("%w: %s row %s wants %d values, got %d", ErrTableShape, kind, l.rows[i], len(l.columns), len(row))
		}
		for j, v := range row {
			if v < 0 {
				return fmt.Errorf("%w: %s[%s][%s] is negative", ErrTableShape, kind, l.rows[i], l.columns[j])
			}
		}
	}
	return nil
}

// checkShape verifies that a table, possibly built by hand, fits its layout.
func (t Table) checkShape(l layout) error {
	if len(t.Rows) != len(l.rows) || len(t.Columns) != len(l.columns) {
		return fmt.Errorf("%w: %s wants %dx%d labels, got %dx%d",
			ErrTableShape, t.Kind, len(l.rows), len(l.columns), len(t.Rows), len(t.Columns))
	}
	if len(t.Values) != len(l.rows) {
		return fmt.Errorf("%w: %s wants %d rows, got %d", ErrTableShape, t.Kind, len(l.rows), len(t.Values))
	}
	return checkValues(t.Kind, l, t.Values)
}

// value returns the cell at (i, j), or zero when the grid is short.
func (t Table) value(i, j int) int {
	if i >= len(t.Values) || j >= len(t.Values[i]) {
		return 0
	}
	return t.Values[i][j]
}

func newTable(kind IndicatorKind, l layout, values [][]int) Table {
	return Table{
		Kind:    kind,
		Rows:    append([]string(nil), l.rows...),
		Columns: append([]string(nil), l.columns...),
		Values:  values,
	}
}

// YearCount is the indicator numerator for one year.
type YearCount struct {
	Year  string `json:"year"`
	Count int    `json:"count"`
}

// YearTotals returns the count per year in chronological order. ICCP sums
// every nature in a year column; IMV and IMT read their single column.
// Missing cells count as zero.
func (t Table) YearTotals() []YearCount {
	l := layouts[t.Kind]
	if l.yearsInRows {
		totals := make([]YearCount, len(t.Rows))
		for i, year := range t.Rows {
			totals[i] = YearCount{Year: year, Count: t.value(i, 0)}
		}
		return totals
	}

	totals := make([]YearCount, len(t.Columns))
	for j, year := range t.Columns {
		sum := 0
		for i := range t.Rows {
			sum += t.value(i, j)
		}
		totals[j] = YearCount{Year: year, Count: sum}
	}
	return totals
}

// YearRate is the expected rate of one year.
type YearRate struct {
	Year  string  `json:"year"`
	Count int     `json:"count"`
	Rate  float64 `json:"rate"`
}

// YearVariation is the expected change between two consecutive years.
// Pending is set, and Value left zero, until both rates are positive.
type YearVariation struct {
	From    string  `json:"from"`
	To      string  `json:"to"`
	Value   float64 `json:"value"`
	Pending bool    `json:"pending"`
}

// Key identifies the variation in answer maps, e.g. "2022-2023".
func (v YearVariation) Key() string {
	return v.From + "-" + v.To
}

// Solution holds the expected answers for a table and population.
type Solution struct {
	Kind       IndicatorKind   `json:"kind"`
	Population int64           `json:"population"`
	Rates      []YearRate      `json:"rates"`
	Variations []YearVariation `json:"variations"`
}

// Solve computes the expected rate of each year and the variation between
// each pair of consecutive years.
func Solve(t Table, population int64) (Solution, error) {
	l, ok := layouts[t.Kind]
	if !ok {
		return Solution{}, fmt.Errorf("%w: %q", ErrUnknownIndicator, t.Kind)
	}
	if err := t.checkShape(l); err != nil {
		return Solution{}, err
	}

	totals := t.YearTotals()
	sol := Solution{
		Kind:       t.Kind,
		Population: population,
		Rates:      make([]YearRate, len(totals)),
	}
	for i, yc := range totals {
		rate, err := Rate(yc.Count, population)
		if err != nil {
			return Solution{}, err
		}
		sol.Rates[i] = YearRate{Year: yc.Year, Count: yc.Count, Rate: rate}
	}

	for i := 1; i < len(sol.Rates); i++ {
		prev, cur := sol.Rates[i-1], sol.Rates[i]
		v := YearVariation{From: prev.Year, To: cur.Year}
		value, err := Variation(prev.Rate, cur.Rate)
		switch {
		case errors.Is(err, ErrIncompleteTable):
			v.Pending = true
		case err != nil:
			return Solution{}, err
		default:
			v.Value = value
		}
		sol.Variations = append(sol.Variations, v)
	}
	return sol, nil
}

// Answers are the values typed by the user, keyed by year for rates and by
// "from-to" for variations. Unanswered entries are not graded.
type Answers struct {
	Rates      map[string]float64 `json:"rates"`
	Variations map[string]float64 `json:"variations"`
}

// GradedAnswer pairs an answer with its expected value.
type GradedAnswer struct {
	Key      string  `json:"key"`
	Expected float64 `json:"expected"`
	Actual   float64 `json:"actual"`
	Verdict  Verdict `json:"verdict"`
}

// Grade is the outcome of checking a set of answers.
type Grade struct {
	Tolerance  float64        `json:"tolerance"`
	Rates      []GradedAnswer `json:"rates"`
	Variations []GradedAnswer `json:"variations"`
	// Pending lists variations that cannot be graded until the table is filled in.
	Pending []string `json:"pending,omitempty"`
}

// AllMatch reports whether at least one answer was graded and none mismatched.
func (g Grade) AllMatch() bool {
	graded := 0
	for _, list := range [][]GradedAnswer{g.Rates, g.Variations} {
		for _, a := range list {
			if a.Verdict != Match {
				return false
			}
			graded++
		}
	}
	return graded > 0
}

// Grade compares answers to the solution within an absolute tolerance.
func (s Solution) Grade(answers Answers, tolerance float64) (Grade, error) {
	if tolerance <= 0 {
		return Grade{}, fmt.Errorf("%w: got %g", ErrInvalidTolerance, tolerance)
	}

	g := Grade{Tolerance: tolerance}
	for _, r := range s.Rates {
		actual, ok := answers.Rates[r.Year]
		if !ok {
			continue
		}
		g.Rates = append(g.Rates, GradedAnswer{
			Key:      r.Year,
			Expected: r.Rate,
			Actual:   actual,
			Verdict:  Check(r.Rate, actual, tolerance),
		})
	}
	for _, v := range s.Variations {
		if v.Pending {
			g.Pending = append(g.Pending, v.Key())
			continue
		}
		actual, ok := answers.Variations[v.Key()]
		if !ok {
			continue
		}
		g.Variations = append(g.Variations, GradedAnswer{
			Key:      v.Key(),
			Expected: v.Value,
			Actual:   actual,
			Verdict:  Check(v.Value, actual, tolerance),
		})
	}
	return g, nil
}

// QuizState is the session-scoped exercise: the current table and the
// population it is graded against. It is replaced wholesale on regeneration.
type QuizState struct {
	Table      Table `json:"table"`
	Population int64 `json:"population"`
}

// NewQuizState validates the population and solves the table once so an
// invalid state is never stored.
func NewQuizState(t Table, population int64) (QuizState, Solution, error) {
	sol, err := Solve(t, population)
	if err != nil {
		return QuizState{}, Solution{}, err
	}
	return QuizState{Table: t, Population: population}, sol, nil
}

// Check solves the state's table and grades answers against it.
func (q QuizState) Check(answers Answers, tolerance float64) (Grade, error) {
	sol, err := Solve(q.Table, q.Population)
	if err != nil {
		return Grade{}, err
	}
	return sol.Grade(answers, tolerance)
}
