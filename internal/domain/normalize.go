package domain

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// dateLayout accepts one- or two-digit day and month, matching %d/%m/%Y.
const dateLayout = "2/1/2006"

// SchemaError reports required columns absent from an upload's header.
type SchemaError struct {
	Missing []string
}

func (e *SchemaError) Error() string {
	return "missing required columns: " + strings.Join(e.Missing, ", ")
}

// Normalize parses a semicolon-delimited incident export and returns the
// violent-crime rows with valid coordinates and dates, in input order.
// A missing required column is the only error; malformed fields drop their
// row and are counted in the returned stats.
func Normalize(r io.Reader) (Dataset, error) {
	reader := csv.NewReader(transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder())))
	reader.Comma = ';'
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.ReuseRecord = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return Dataset{}, &SchemaError{Missing: append([]string(nil), RequiredColumns...)}
	}
	if err != nil {
		return Dataset{}, fmt.Errorf("read header: %w", err)
	}

	idx := indexHeader(header)
	if missing := missingColumns(idx); len(missing) > 0 {
		return Dataset{}, &SchemaError{Missing: missing}
	}

	_, hasMonth := idx[ColumnMonthLabel]
	ds := Dataset{
		Records: make([]IncidentRecord, 0),
		Stats:   NormalizeStats{HasMonthLabelColumn: hasMonth},
	}

	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Dataset{}, fmt.Errorf("read row: %w", err)
		}
		ds.Stats.RowsRead++

		rec, reason := normalizeRow(row, idx)
		switch reason {
		case dropNone:
			ds.Records = append(ds.Records, rec)
		case dropCategory:
			ds.Stats.DroppedCategory++
		case dropCoordinates:
			ds.Stats.DroppedCoordinates++
		case dropDate:
			ds.Stats.DroppedDate++
		}
	}

	ds.Stats.Retained = len(ds.Records)
	return ds, nil
}

type dropReason int

const (
	dropNone dropReason = iota
	dropCategory
	dropCoordinates
	dropDate
)

func normalizeRow(row []string, idx map[string]int) (IncidentRecord, dropReason) {
	code := cell(row, idx, ColumnCategoryCode)
	if !IsViolentCategory(code) {
		return IncidentRecord{}, dropCategory
	}

	occurredOn, okDate := parseDate(cell(row, idx, ColumnOccurredOn))
	lat, okLat := parseDecimalComma(cell(row, idx, ColumnLatitude))
	lon, okLon := parseDecimalComma(cell(row, idx, ColumnLongitude))

	// Coordinates are reported first when both are bad.
	if !okLat || !okLon {
		return IncidentRecord{}, dropCoordinates
	}
	if !okDate {
		return IncidentRecord{}, dropDate
	}

	return IncidentRecord{
		Latitude:     lat,
		Longitude:    lon,
		OccurredOn:   occurredOn,
		CategoryCode: code,
		Sector:       cell(row, idx, ColumnSector),
		RegistryUnit: cell(row, idx, ColumnRegistryUnit),
		MonthLabel:   cell(row, idx, ColumnMonthLabel),
	}, dropNone
}

func indexHeader(header []string) map[string]int {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.TrimSpace(h)
		// First occurrence wins for duplicated column names.
		if _, ok := idx[h]; !ok {
			idx[h] = i
		}
	}
	return idx
}

func missingColumns(idx map[string]int) []string {
	var missing []string
	for _, col := range RequiredColumns {
		if _, ok := idx[col]; !ok {
			missing = append(missing, col)
		}
	}
	return missing
}

// cell returns the raw value of col, or "" when the row is short.
func cell(row []string, idx map[string]int, col string) string {
	i, ok := idx[col]
	if !ok || i >= len(row) {
		return ""
	}
	return row[i]
}

// parseDecimalComma parses a coordinate written with a decimal comma
// (e.g. "-30,0346"). Non-finite values are rejected, as are the hex and
// digit-separator forms strconv accepts beyond plain decimal notation.
func parseDecimalComma(s string) (float64, bool) {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", "."))
	if s == "" || strings.ContainsAny(s, "xXpP_") {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// parseDate parses a DD/MM/YYYY date into UTC midnight.
func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
