package observability

import (
	"context"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/couchcryptid/crime-incident-etl/internal/config"
	"github.com/couchcryptid/crime-incident-etl/internal/domain"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, parseLevel(in), in)
	}
}

func TestNewLogger_Level(t *testing.T) {
	logger := NewLogger(&config.Config{LogLevel: "warn", LogFormat: "text"})

	assert.False(t, logger.Enabled(context.Background(), slog.LevelInfo))
	assert.True(t, logger.Enabled(context.Background(), slog.LevelWarn))
}

func TestMetrics_ObserveUpload(t *testing.T) {
	m := NewMetricsForTesting()

	m.ObserveUpload("kafka", domain.NormalizeStats{
		RowsRead:           10,
		DroppedCategory:    3,
		DroppedCoordinates: 2,
		DroppedDate:        1,
		Retained:           4,
	})
	m.ObserveSchemaError("http")

	assert.InDelta(t, 1, testutil.ToFloat64(m.UploadsProcessed.WithLabelValues("kafka", "ok")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.UploadsProcessed.WithLabelValues("http", "schema_error")), 0)
	assert.InDelta(t, 10, testutil.ToFloat64(m.RowsRead), 0)
	assert.InDelta(t, 3, testutil.ToFloat64(m.RowsDropped.WithLabelValues("category")), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(m.RowsDropped.WithLabelValues("coordinates")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.RowsDropped.WithLabelValues("date")), 0)
}

func TestMetrics_ObserveGrade(t *testing.T) {
	m := NewMetricsForTesting()

	m.ObserveGrade(domain.IndicatorIMV, domain.Grade{
		Rates: []domain.GradedAnswer{
			{Key: "2022", Verdict: domain.Match},
			{Key: "2023", Verdict: domain.Mismatch},
		},
		Variations: []domain.GradedAnswer{{Key: "2022-2023", Verdict: domain.Match}},
	})

	assert.InDelta(t, 2, testutil.ToFloat64(m.QuizChecks.WithLabelValues("IMV", "MATCH")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.QuizChecks.WithLabelValues("IMV", "MISMATCH")), 0)
}
