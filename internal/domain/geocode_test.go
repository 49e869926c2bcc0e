package domain

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

type mockGeocoder struct {
	result GeocodingResult
	err    error
	calls  int
}

func (m *mockGeocoder) ReverseGeocode(_ context.Context, _, _ float64) (GeocodingResult, error) {
	m.calls++
	return m.result, m.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestEnrichCentroid_NilGeocoder(t *testing.T) {
	c := Centroid{Latitude: -30, Longitude: -51, Records: 3}

	got := EnrichCentroid(context.Background(), c, nil, discardLogger())

	assert.Equal(t, c, got)
}

func TestEnrichCentroid_Reverse(t *testing.T) {
	geo := &mockGeocoder{result: GeocodingResult{
		FormattedAddress: "Centro Histórico, Porto Alegre, Rio Grande do Sul, Brazil",
		PlaceName:        "Centro Histórico",
		Confidence:       0.9,
	}}

	got := EnrichCentroid(context.Background(), Centroid{Latitude: -30.03, Longitude: -51.23}, geo, discardLogger())

	assert.Equal(t, -30.03, got.Latitude)
	assert.Equal(t, "Centro Histórico", got.PlaceName)
	assert.Equal(t, "Centro Histórico, Porto Alegre, Rio Grande do Sul, Brazil", got.FormattedAddress)
	assert.Equal(t, 0.9, got.GeoConfidence)
	assert.Equal(t, "reverse", got.GeoSource)
	assert.Equal(t, 1, geo.calls)
}

func TestEnrichCentroid_Failure(t *testing.T) {
	geo := &mockGeocoder{err: errors.New("API timeout")}

	got := EnrichCentroid(context.Background(), Centroid{Latitude: -30, Longitude: -51}, geo, discardLogger())

	assert.Equal(t, "failed", got.GeoSource)
	assert.Empty(t, got.PlaceName)
	assert.Equal(t, -30.0, got.Latitude)
}

func TestEnrichCentroid_NoResult(t *testing.T) {
	geo := &mockGeocoder{}

	got := EnrichCentroid(context.Background(), Centroid{Latitude: -30, Longitude: -51}, geo, discardLogger())

	assert.Equal(t, "original", got.GeoSource)
	assert.Empty(t, got.FormattedAddress)
}
