package domain

import (
	"context"
	"time"
)

// Column names of the incident export.
const (
	ColumnLatitude     = "LATITUDE"
	ColumnLongitude    = "LONGITUDE"
	ColumnOccurredOn   = "DATA_FATO"
	ColumnCategoryCode = "CODIGO_NATUREZA_PRINCIPAL"
	ColumnSector       = "SETOR"
	ColumnRegistryUnit = "UNID_REGISTRO_NIVEL_6"
	ColumnMonthLabel   = "MES_DESCRICAO"
)

// RequiredColumns lists the columns every upload must carry, in the order
// they are reported by SchemaError.
var RequiredColumns = []string{
	ColumnLatitude,
	ColumnLongitude,
	ColumnOccurredOn,
	ColumnCategoryCode,
	ColumnSector,
	ColumnRegistryUnit,
}

// violentCategories is the fixed allow-list of violent-crime nature codes.
var violentCategories = map[string]struct{}{
	"B01121": {},
	"B02001": {},
	"B01148": {},
	"C01157": {},
	"C01158": {},
	"D01213": {},
	"D01217": {},
	"C01159": {},
}

// IsViolentCategory reports whether code is on the violent-crime allow-list.
func IsViolentCategory(code string) bool {
	_, ok := violentCategories[code]
	return ok
}

// IncidentRecord is a normalized incident row. Records are never mutated
// after Normalize returns them.
type IncidentRecord struct {
	Latitude     float64   `json:"latitude"`
	Longitude    float64   `json:"longitude"`
	OccurredOn   time.Time `json:"occurred_on"`
	CategoryCode string    `json:"category_code"`
	Sector       string    `json:"sector"`
	RegistryUnit string    `json:"registry_unit"`
	MonthLabel   string    `json:"month_label,omitempty"`
}

// NormalizeStats counts what happened to each data row of an upload.
type NormalizeStats struct {
	RowsRead            int  `json:"rows_read"`
	DroppedCategory     int  `json:"dropped_category"`
	DroppedCoordinates  int  `json:"dropped_coordinates"`
	DroppedDate         int  `json:"dropped_date"`
	Retained            int  `json:"retained"`
	HasMonthLabelColumn bool `json:"has_month_label_column"`
}

// Dropped returns the total number of excluded rows.
func (s NormalizeStats) Dropped() int {
	return s.DroppedCategory + s.DroppedCoordinates + s.DroppedDate
}

// Dataset is the working dataset rebuilt from one upload.
type Dataset struct {
	Records []IncidentRecord `json:"records"`
	Stats   NormalizeStats   `json:"stats"`
}

// RawUpload represents one unprocessed CSV upload from the source topic.
type RawUpload struct {
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Topic     string
	Partition int
	Offset    int64
	Timestamp time.Time
	Commit    func(ctx context.Context) error
}

// Filename returns the upload's original file name, if the producer set one.
func (r RawUpload) Filename() string {
	return r.Headers["filename"]
}

// OutputEvent is the serialized form destined for the sink topic.
type OutputEvent struct {
	Key     []byte
	Value   []byte
	Headers map[string]string
}
