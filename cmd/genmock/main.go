// Command genmock generates a synthetic incident export, in the semicolon and
// decimal-comma format of the public-safety open data portal, plus the
// normalized fixture the domain package produces from it. Defects (foreign
// category codes, blank coordinates, ISO dates) are mixed in at fixed rates so
// the fixture exercises every drop reason.
//
// Usage:
//
//	go run ./cmd/genmock \
//	  -rows 500 -seed 7 \
//	  -csv-out data/mock/incidents_generated.csv \
//	  -json-out data/mock/incidents_generated_normalized.json
package main

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/crime-incident-etl/internal/domain"
)

var (
	startDate = time.Date(2023, time.January, 1, 0, 0, 0, 0, time.UTC)

	monthNames = []string{
		"JANEIRO", "FEVEREIRO", "MARÇO", "ABRIL", "MAIO", "JUNHO",
		"JULHO", "AGOSTO", "SETEMBRO", "OUTUBRO", "NOVEMBRO", "DEZEMBRO",
	}

	violentCodes = []string{"B01121", "B02001", "B01148", "C01157", "C01158", "D01213", "D01217", "C01159"}
	otherCodes   = []string{"A01001", "E03003", "F01104", "G02210"}
)

// area is a sector and its registry units, centered on a point of the city.
type area struct {
	sector   string
	units    []string
	lat, lon float64
}

var areas = []area{
	{sector: "SETOR 1", units: []string{"1 BPM CENTRO", "9 BPM CIDADE BAIXA"}, lat: -30.0346, lon: -51.2177},
	{sector: "SETOR 2", units: []string{"11 BPM PARTENON"}, lat: -30.0586, lon: -51.1751},
	{sector: "SETOR 3", units: []string{"20 BPM NORTE", "20 BPM SARANDI"}, lat: -29.9987, lon: -51.1561},
	{sector: "SETOR 4", units: []string{"21 BPM SUL"}, lat: -30.1103, lon: -51.2299},
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	rows := flag.Int("rows", 500, "number of data rows to generate")
	seed := flag.Uint64("seed", 7, "random seed for reproducible output")
	csvOut := flag.String("csv-out", "", "output path for the raw CSV export")
	jsonOut := flag.String("json-out", "", "output path for the normalized JSON fixture")
	flag.Parse()

	if *csvOut == "" || *jsonOut == "" || *rows <= 0 {
		flag.Usage()
		return fmt.Errorf("missing required flags: -csv-out, -json-out (and -rows > 0)")
	}

	// Set a fixed clock for reproducible processed_at timestamps.
	domain.SetClock(clockwork.NewFakeClockAt(time.Date(2024, time.January, 2, 6, 0, 0, 0, time.UTC)))
	defer domain.SetClock(nil)

	rng := rand.New(rand.NewPCG(*seed, *seed^0x9e3779b97f4a7c15))
	raw, err := generateCSV(rng, *rows)
	if err != nil {
		return fmt.Errorf("generating export: %w", err)
	}
	if err := writeFile(*csvOut, raw); err != nil {
		return fmt.Errorf("writing CSV fixture: %w", err)
	}
	log.Printf("wrote CSV fixture: %s (%d rows)", *csvOut, *rows)

	ds, err := domain.Normalize(bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("normalizing generated export: %w", err)
	}
	events, err := domain.SerializeDataset(ds)
	if err != nil {
		return fmt.Errorf("serializing dataset: %w", err)
	}

	fixture := make([]json.RawMessage, len(events))
	for i := range events {
		fixture[i] = events[i].Value
	}
	data, err := json.MarshalIndent(struct {
		Stats   domain.NormalizeStats `json:"stats"`
		Records []json.RawMessage     `json:"records"`
	}{ds.Stats, fixture}, "", "  ")
	if err != nil {
		return err
	}
	if err := writeFile(*jsonOut, append(data, '\n')); err != nil {
		return fmt.Errorf("writing JSON fixture: %w", err)
	}
	log.Printf("wrote JSON fixture: %s", *jsonOut)

	printStats(ds)
	return nil
}

func generateCSV(rng *rand.Rand, rows int) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	w.Comma = ';'

	header := []string{"ID", "LATITUDE", "LONGITUDE", "DATA_FATO", "MES_DESCRICAO",
		"CODIGO_NATUREZA_PRINCIPAL", "SETOR", "UNID_REGISTRO_NIVEL_6"}
	if err := w.Write(header); err != nil {
		return nil, err
	}

	for i := range rows {
		a := areas[rng.IntN(len(areas))]
		day := startDate.AddDate(0, 0, rng.IntN(365))

		code := violentCodes[rng.IntN(len(violentCodes))]
		if rng.IntN(4) == 0 {
			code = otherCodes[rng.IntN(len(otherCodes))]
		}

		lat := decimalComma(a.lat + (rng.Float64()-0.5)*0.04)
		lon := decimalComma(a.lon + (rng.Float64()-0.5)*0.04)
		if rng.IntN(25) == 0 {
			lat = ""
		}

		date := day.Format("02/01/2006")
		if rng.IntN(30) == 0 {
			date = day.Format(time.DateOnly)
		}

		row := []string{
			strconv.Itoa(i + 1),
			lat,
			lon,
			date,
			monthNames[day.Month()-1],
			code,
			a.sector,
			a.units[rng.IntN(len(a.units))],
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}

	w.Flush()
	return buf.Bytes(), w.Error()
}

func decimalComma(v float64) string {
	return strings.Replace(strconv.FormatFloat(v, 'f', 6, 64), ".", ",", 1)
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

func printStats(ds domain.Dataset) {
	s := ds.Stats
	fmt.Println("\n=== Stats for updating test assertions ===")
	fmt.Printf("Rows read: %d\n", s.RowsRead)
	fmt.Printf("Retained: %d\n", s.Retained)
	fmt.Printf("Dropped: category=%d, coordinates=%d, date=%d\n",
		s.DroppedCategory, s.DroppedCoordinates, s.DroppedDate)

	fmt.Println("\nBy sector:")
	for _, b := range domain.Histogram(ds.Records, domain.DimensionSector) {
		fmt.Printf("  %s=%d\n", b.Key, b.Count)
	}
	fmt.Println("By category:")
	for _, b := range domain.Histogram(ds.Records, domain.DimensionCategory) {
		fmt.Printf("  %s=%d\n", b.Key, b.Count)
	}

	if c, err := domain.ComputeCentroid(ds.Records); err == nil {
		fmt.Printf("\nCentroid: %.6f, %.6f\n", c.Latitude, c.Longitude)
	}
	if series := domain.TimeSeries(ds.Records); len(series) > 0 {
		fmt.Printf("Dates: %s .. %s (%d distinct)\n",
			series[0].Date.Format(time.DateOnly), series[len(series)-1].Date.Format(time.DateOnly), len(series))
	}
}
