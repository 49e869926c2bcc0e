package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"

	"github.com/couchcryptid/crime-incident-etl/internal/domain"
)

// UploadTransformer implements Transformer by normalizing the CSV carried in
// the message value and serializing the retained records.
type UploadTransformer struct {
	logger *slog.Logger
}

// NewTransformer creates an UploadTransformer.
func NewTransformer(logger *slog.Logger) *UploadTransformer {
	return &UploadTransformer{logger: logger}
}

func (t *UploadTransformer) Transform(_ context.Context, raw domain.RawUpload) (Result, error) {
	source := uploadSource(raw)

	ds, err := domain.Normalize(bytes.NewReader(raw.Value))
	if err != nil {
		return Result{}, fmt.Errorf("normalize %s: %w", source, err)
	}

	events, err := domain.SerializeDataset(ds)
	if err != nil {
		return Result{}, fmt.Errorf("serialize %s: %w", source, err)
	}

	t.logger.Info("upload normalized",
		"source", source,
		"rows_read", ds.Stats.RowsRead,
		"retained", ds.Stats.Retained,
		"dropped_category", ds.Stats.DroppedCategory,
		"dropped_coordinates", ds.Stats.DroppedCoordinates,
		"dropped_date", ds.Stats.DroppedDate,
	)
	return Result{Source: source, Dataset: ds, Events: events}, nil
}

// uploadSource names an upload by its file name, or by its position in the
// log when the producer did not set one.
func uploadSource(raw domain.RawUpload) string {
	if name := raw.Filename(); name != "" {
		return name
	}
	return fmt.Sprintf("%s/%d/%d", raw.Topic, raw.Partition, raw.Offset)
}
