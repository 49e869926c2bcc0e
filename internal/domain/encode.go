package domain

import (
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

// EncodeCSV writes records in the export format Normalize accepts: semicolon
// delimiter, decimal-comma coordinates, DD/MM/YYYY dates. The month column is
// written only when at least one record carries a month label.
func EncodeCSV(w io.Writer, records []IncidentRecord) error {
	withMonth := false
	for i := range records {
		if records[i].MonthLabel != "" {
			withMonth = true
			break
		}
	}

	cw := csv.NewWriter(w)
	cw.Comma = ';'

	header := append([]string(nil), RequiredColumns...)
	if withMonth {
		header = append(header, ColumnMonthLabel)
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	row := make([]string, len(header))
	for i := range records {
		rec := &records[i]
		row[0] = formatDecimalComma(rec.Latitude)
		row[1] = formatDecimalComma(rec.Longitude)
		row[2] = rec.OccurredOn.Format("02/01/2006")
		row[3] = rec.CategoryCode
		row[4] = rec.Sector
		row[5] = rec.RegistryUnit
		if withMonth {
			row[6] = rec.MonthLabel
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write record %d: %w", i, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// formatDecimalComma renders v with the shortest exact representation and a
// decimal comma, so parsing it back yields the same float64.
func formatDecimalComma(v float64) string {
	return strings.Replace(strconv.FormatFloat(v, 'f', -1, 64), ".", ",", 1)
}

// SerializeDataset converts every record into a sink message keyed by a
// deterministic record ID.
func SerializeDataset(ds Dataset) ([]OutputEvent, error) {
	ids := RecordIDs(ds.Records)
	processedAt := clock.Now().UTC()

	out := make([]OutputEvent, 0, len(ds.Records))
	for i := range ds.Records {
		ev, err := serializeIncident(ids[i], ds.Records[i], processedAt)
		if err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, nil
}

// incidentMessage is the JSON body of a sink message.
type incidentMessage struct {
	ID string `json:"id"`
	IncidentRecord
	ProcessedAt time.Time `json:"processed_at"`
}

func serializeIncident(id string, rec IncidentRecord, processedAt time.Time) (OutputEvent, error) {
	data, err := json.Marshal(incidentMessage{ID: id, IncidentRecord: rec, ProcessedAt: processedAt})
	if err != nil {
		return OutputEvent{}, fmt.Errorf("serialize incident %s: %w", id, err)
	}
	return OutputEvent{
		Key:   []byte(id),
		Value: data,
		Headers: map[string]string{
			"category_code": rec.CategoryCode,
			"processed_at":  processedAt.Format(time.RFC3339),
		},
	}, nil
}

// RecordIDs returns a deterministic ID for each record. Identical records
// are told apart by their occurrence ordinal, so replaying the same upload
// yields the same IDs and downstream upserts stay idempotent.
func RecordIDs(records []IncidentRecord) []string {
	seen := make(map[string]int, len(records))
	ids := make([]string, len(records))
	for i := range records {
		fp := fingerprint(records[i])
		n := seen[fp]
		seen[fp] = n + 1

		hash := sha256.Sum256([]byte(fp + "|" + strconv.Itoa(n)))
		ids[i] = strings.ToLower(records[i].CategoryCode) + "-" + hex.EncodeToString(hash[:8])
	}
	return ids
}

func fingerprint(rec IncidentRecord) string {
	return fmt.Sprintf("%s|%s|%.6f|%.6f|%s|%s",
		rec.CategoryCode, rec.OccurredOn.Format(time.DateOnly), rec.Latitude, rec.Longitude, rec.Sector, rec.RegistryUnit)
}
