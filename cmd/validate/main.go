// Command validate performs end-to-end integrity checks on an incident export
// and, optionally, on the normalized fixture genmock wrote for it. It verifies
// the header, drop accounting, the encode/normalize round trip, view
// consistency, and the indicator solver.
//
// Usage:
//
//	go run ./cmd/validate \
//	  -csv data/mock/incidents_sample.csv \
//	  -json data/mock/incidents_generated_normalized.json
package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/crime-incident-etl/internal/domain"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

// fixture mirrors the JSON document genmock writes.
type fixture struct {
	Stats   domain.NormalizeStats `json:"stats"`
	Records []struct {
		ID           string    `json:"id"`
		Latitude     float64   `json:"latitude"`
		Longitude    float64   `json:"longitude"`
		CategoryCode string    `json:"category_code"`
		OccurredOn   time.Time `json:"occurred_on"`
	} `json:"records"`
}

func main() {
	csvPath := flag.String("csv", "", "path to a semicolon-delimited incident export")
	jsonPath := flag.String("json", "", "optional path to the normalized JSON fixture for the same export")
	flag.Parse()

	if *csvPath == "" {
		flag.Usage()
		os.Exit(1)
	}

	if code := run(*csvPath, *jsonPath); code != 0 {
		os.Exit(code)
	}
}

func run(csvPath, jsonPath string) int {
	// Set a fixed clock matching genmock for processed_at reproducibility.
	domain.SetClock(clockwork.NewFakeClockAt(
		time.Date(2024, time.January, 2, 6, 0, 0, 0, time.UTC),
	))
	defer domain.SetClock(nil)

	fmt.Println("=== Crime Incident Integrity Validation ===")
	fmt.Println()

	raw, err := os.ReadFile(csvPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: read export: %v\n", err)
		return 1
	}

	ds, schema := validateSchema(raw)
	phases := []*phase{schema}
	if schema.passed() {
		phases = append(phases,
			validateAccounting(ds),
			validateRoundTrip(ds),
			validateViews(ds),
			validateIndicators(),
		)
		if jsonPath != "" {
			phases = append(phases, validateFixture(ds, jsonPath))
		}
	}

	fmt.Println()
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Records: %d rows read, %d retained, %d dropped\n",
		ds.Stats.RowsRead, ds.Stats.Retained, ds.Stats.Dropped())

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

func validateSchema(raw []byte) (domain.Dataset, *phase) {
	p := &phase{name: "Phase 1: Header and schema"}
	ds, err := domain.Normalize(bytes.NewReader(raw))
	var schemaErr *domain.SchemaError
	switch {
	case errors.As(err, &schemaErr):
		p.errorf("missing required columns: %v", schemaErr.Missing)
	case err != nil:
		p.errorf("normalize: %v", err)
	}
	return ds, p
}

func validateAccounting(ds domain.Dataset) *phase {
	p := &phase{name: "Phase 2: Drop accounting"}
	s := ds.Stats

	if s.Retained != len(ds.Records) {
		p.errorf("retained=%d but dataset holds %d records", s.Retained, len(ds.Records))
	}
	if s.Retained+s.Dropped() != s.RowsRead {
		p.errorf("retained(%d) + dropped(%d) != rows read(%d)", s.Retained, s.Dropped(), s.RowsRead)
	}

	for i, rec := range ds.Records {
		if !domain.IsViolentCategory(rec.CategoryCode) {
			p.errorf("record %d: category %q is not on the allow-list", i, rec.CategoryCode)
		}
		if math.IsNaN(rec.Latitude) || math.IsNaN(rec.Longitude) {
			p.errorf("record %d: non-finite coordinate", i)
		}
		if rec.OccurredOn.IsZero() {
			p.errorf("record %d: zero occurrence date", i)
		}
		if !s.HasMonthLabelColumn && rec.MonthLabel != "" {
			p.errorf("record %d: month label %q without a month column", i, rec.MonthLabel)
		}
	}
	return p
}

func validateRoundTrip(ds domain.Dataset) *phase {
	p := &phase{name: "Phase 3: Encode/normalize round trip"}

	var buf bytes.Buffer
	if err := domain.EncodeCSV(&buf, ds.Records); err != nil {
		p.errorf("encode: %v", err)
		return p
	}
	again, err := domain.Normalize(&buf)
	if err != nil {
		p.errorf("re-normalize: %v", err)
		return p
	}
	if again.Stats.Dropped() != 0 {
		p.errorf("re-normalize dropped %d rows", again.Stats.Dropped())
	}

	// The encoded form carries no month column, so compare without it.
	strip := func(recs []domain.IncidentRecord) []domain.IncidentRecord {
		out := make([]domain.IncidentRecord, len(recs))
		for i, r := range recs {
			r.MonthLabel = ""
			out[i] = r
		}
		return out
	}
	if diff := cmp.Diff(strip(ds.Records), again.Records); diff != "" {
		p.errorf("round trip differs (-original +decoded):\n%s", diff)
	}
	return p
}

func validateViews(ds domain.Dataset) *phase {
	p := &phase{name: "Phase 4: View consistency"}
	n := len(ds.Records)

	for _, dim := range []domain.Dimension{domain.DimensionSector, domain.DimensionCategory} {
		total := 0
		for _, b := range domain.Histogram(ds.Records, dim) {
			total += b.Count
		}
		var blank int
		for _, rec := range ds.Records {
			if (dim == domain.DimensionSector && rec.Sector == "") ||
				(dim == domain.DimensionCategory && rec.CategoryCode == "") {
				blank++
			}
		}
		if total+blank != n {
			p.errorf("histogram by %s sums to %d, want %d", dim, total, n-blank)
		}
	}

	total := 0
	series := domain.TimeSeries(ds.Records)
	for i, dc := range series {
		total += dc.Count
		if i > 0 && !series[i-1].Date.Before(dc.Date) {
			p.errorf("time series not strictly ascending at %s", dc.Date.Format(time.DateOnly))
		}
	}
	if total != n {
		p.errorf("time series sums to %d, want %d", total, n)
	}

	if len(domain.Points(ds.Records)) != n {
		p.errorf("points count differs from record count")
	}

	_, err := domain.ComputeCentroid(ds.Records)
	switch {
	case n == 0 && !errors.Is(err, domain.ErrEmptyDataset):
		p.errorf("centroid of empty dataset: got %v, want ErrEmptyDataset", err)
	case n > 0 && err != nil:
		p.errorf("centroid: %v", err)
	}

	withSector := 0
	for _, rec := range ds.Records {
		if rec.Sector != "" {
			withSector++
		}
	}
	opts := domain.Options(ds.Records)
	if got := len(domain.Filter{Sectors: opts.Sectors}.Apply(ds.Records)); got != withSector {
		p.errorf("filter on every sector selected %d records, want %d", got, withSector)
	}
	for _, b := range domain.Histogram(ds.Records, domain.DimensionSector) {
		sub := domain.Filter{Sectors: []string{b.Key}}.Apply(ds.Records)
		if len(sub) != b.Count {
			p.errorf("filter on sector %q selected %d records, histogram says %d", b.Key, len(sub), b.Count)
		}
	}
	return p
}

func validateIndicators() *phase {
	p := &phase{name: "Phase 5: Indicator solver"}

	checks := []struct {
		name string
		got  func() (float64, error)
		want float64
	}{
		{"rate 70 over 1.5M", func() (float64, error) { return domain.Rate(70, 1_500_000) }, 4.66},
		{"rate 100 over 100k", func() (float64, error) { return domain.Rate(100, 100_000) }, 100},
		{"variation 100 to 150", func() (float64, error) { return domain.Variation(100, 150) }, 50},
		{"variation 150 to 100", func() (float64, error) { return domain.Variation(150, 100) }, -33.33},
	}
	for _, c := range checks {
		got, err := c.got()
		if err != nil {
			p.errorf("%s: %v", c.name, err)
			continue
		}
		if got != c.want {
			p.errorf("%s: got %v, want %v", c.name, got, c.want)
		}
	}

	if _, err := domain.Variation(0, 10); !errors.Is(err, domain.ErrIncompleteTable) {
		p.errorf("variation from zero: got %v, want ErrIncompleteTable", err)
	}
	if domain.Check(4.66, 4.665, 0.01) != domain.Match {
		p.errorf("4.665 should match 4.66 within 0.01")
	}

	for _, kind := range []domain.IndicatorKind{domain.IndicatorIMV, domain.IndicatorIMT, domain.IndicatorICCP} {
		table, err := domain.GenerateTable(kind, nil)
		if err != nil {
			p.errorf("generate %s: %v", kind, err)
			continue
		}
		sol, err := domain.Solve(table, 1_000_000)
		if err != nil {
			p.errorf("solve %s: %v", kind, err)
			continue
		}
		answers := domain.Answers{Rates: map[string]float64{}, Variations: map[string]float64{}}
		for _, r := range sol.Rates {
			answers.Rates[r.Year] = r.Rate
		}
		for _, v := range sol.Variations {
			answers.Variations[v.Key()] = v.Value
		}
		grade, err := sol.Grade(answers, 0.01)
		if err != nil {
			p.errorf("grade %s: %v", kind, err)
			continue
		}
		if !grade.AllMatch() {
			p.errorf("%s: expected answers did not grade as all matching", kind)
		}
	}
	return p
}

func validateFixture(ds domain.Dataset, path string) *phase {
	p := &phase{name: "Phase 6: Fixture parity"}

	data, err := os.ReadFile(path)
	if err != nil {
		p.errorf("read fixture: %v", err)
		return p
	}
	var fx fixture
	if err := json.Unmarshal(data, &fx); err != nil {
		p.errorf("decode fixture: %v", err)
		return p
	}

	if diff := cmp.Diff(ds.Stats, fx.Stats); diff != "" {
		p.errorf("stats differ (-export +fixture):\n%s", diff)
	}
	if len(fx.Records) != len(ds.Records) {
		p.errorf("fixture has %d records, export normalizes to %d", len(fx.Records), len(ds.Records))
		return p
	}

	ids := domain.RecordIDs(ds.Records)
	for i, rec := range ds.Records {
		got := fx.Records[i]
		if got.ID != ids[i] {
			p.errorf("record %d: id %q, want %q", i, got.ID, ids[i])
		}
		if got.CategoryCode != rec.CategoryCode {
			p.errorf("record %d: category %q, want %q", i, got.CategoryCode, rec.CategoryCode)
		}
		if got.Latitude != rec.Latitude || got.Longitude != rec.Longitude {
			p.errorf("record %d: coordinates (%v, %v), want (%v, %v)",
				i, got.Latitude, got.Longitude, rec.Latitude, rec.Longitude)
		}
		if !got.OccurredOn.Equal(rec.OccurredOn) {
			p.errorf("record %d: occurred_on %s, want %s", i, got.OccurredOn, rec.OccurredOn)
		}
	}
	return p
}
