package domain

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

// ErrEmptyDataset is returned by views that are undefined without records.
var ErrEmptyDataset = errors.New("dataset is empty")

// Dimension selects the grouping key of a histogram.
type Dimension string

const (
	DimensionSector   Dimension = "sector"
	DimensionCategory Dimension = "category"
	DimensionMonth    Dimension = "month"
)

// ParseDimension validates a dimension name.
func ParseDimension(s string) (Dimension, error) {
	switch d := Dimension(s); d {
	case DimensionSector, DimensionCategory, DimensionMonth:
		return d, nil
	default:
		return "", fmt.Errorf("unknown histogram dimension %q", s)
	}
}

func (d Dimension) key(rec *IncidentRecord) string {
	switch d {
	case DimensionCategory:
		return rec.CategoryCode
	case DimensionMonth:
		return rec.MonthLabel
	default:
		return rec.Sector
	}
}

// Bucket is one histogram bar.
type Bucket struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}

// Histogram counts records per value of dim. Buckets are sorted by count
// descending, then key, so output is stable; display order is left to the
// caller. Records with an empty key are skipped.
func Histogram(records []IncidentRecord, dim Dimension) []Bucket {
	counts := make(map[string]int)
	for i := range records {
		k := dim.key(&records[i])
		if k == "" {
			continue
		}
		counts[k]++
	}

	buckets := make([]Bucket, 0, len(counts))
	for k, c := range counts {
		buckets = append(buckets, Bucket{Key: k, Count: c})
	}
	sort.Slice(buckets, func(i, j int) bool {
		if buckets[i].Count != buckets[j].Count {
			return buckets[i].Count > buckets[j].Count
		}
		return buckets[i].Key < buckets[j].Key
	})
	return buckets
}

// DailyCount is one point of the time series.
type DailyCount struct {
	Date  time.Time `json:"date"`
	Count int       `json:"count"`
}

// TimeSeries counts records per calendar date, ascending by date.
func TimeSeries(records []IncidentRecord) []DailyCount {
	counts := make(map[time.Time]int)
	for i := range records {
		d := records[i].OccurredOn
		day := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
		counts[day]++
	}

	series := make([]DailyCount, 0, len(counts))
	for day, c := range counts {
		series = append(series, DailyCount{Date: day, Count: c})
	}
	sort.Slice(series, func(i, j int) bool { return series[i].Date.Before(series[j].Date) })
	return series
}

// Centroid is the default map center: the mean coordinate of a selection.
type Centroid struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Records   int     `json:"records"`

	// Reverse-geocoding enrichment fields.
	PlaceName        string  `json:"place_name,omitempty"`
	FormattedAddress string  `json:"formatted_address,omitempty"`
	GeoConfidence    float64 `json:"geo_confidence,omitempty"`
	GeoSource        string  `json:"geo_source,omitempty"` // "reverse", "original", "failed"
}

// ComputeCentroid returns the arithmetic mean of latitude and longitude.
// It returns ErrEmptyDataset when records is empty.
func ComputeCentroid(records []IncidentRecord) (Centroid, error) {
	if len(records) == 0 {
		return Centroid{}, ErrEmptyDataset
	}

	// Running mean stays finite for any finite inputs, unlike a raw sum.
	var lat, lon float64
	for i := range records {
		n := float64(i + 1)
		lat += (records[i].Latitude - lat) / n
		lon += (records[i].Longitude - lon) / n
	}
	return Centroid{
		Latitude:  lat,
		Longitude: lon,
		Records:   len(records),
	}, nil
}

// Point is one map marker.
type Point struct {
	Latitude     float64 `json:"latitude"`
	Longitude    float64 `json:"longitude"`
	CategoryCode string  `json:"category_code"`
}

// Points returns one marker per record, popup labelled with its category code.
func Points(records []IncidentRecord) []Point {
	points := make([]Point, len(records))
	for i := range records {
		points[i] = Point{
			Latitude:     records[i].Latitude,
			Longitude:    records[i].Longitude,
			CategoryCode: records[i].CategoryCode,
		}
	}
	return points
}

// FilterOptions lists the distinct values a Filter can select.
type FilterOptions struct {
	Sectors       []string `json:"sectors"`
	RegistryUnits []string `json:"registry_units"`
}

// Options returns the sorted distinct non-empty sectors and registry units.
func Options(records []IncidentRecord) FilterOptions {
	sectors := make(map[string]struct{})
	units := make(map[string]struct{})
	for i := range records {
		if s := records[i].Sector; s != "" {
			sectors[s] = struct{}{}
		}
		if u := records[i].RegistryUnit; u != "" {
			units[u] = struct{}{}
		}
	}
	return FilterOptions{
		Sectors:       sortedKeys(sectors),
		RegistryUnits: sortedKeys(units),
	}
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
