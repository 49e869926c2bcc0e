package domain

import (
	"context"
	"log/slog"
)

// EnrichCentroid labels a map center with the place it falls in.
// If geocoder is nil the centroid is returned untouched; if the lookup fails
// or finds nothing, GeoSource records why (graceful degradation).
func EnrichCentroid(ctx context.Context, c Centroid, geocoder Geocoder, logger *slog.Logger) Centroid {
	if geocoder == nil {
		return c
	}

	result, err := geocoder.ReverseGeocode(ctx, c.Latitude, c.Longitude)
	if err != nil {
		logger.Warn("reverse geocoding failed",
			"lat", c.Latitude,
			"lon", c.Longitude,
			"error", err,
		)
		c.GeoSource = "failed"
		return c
	}
	if result.FormattedAddress == "" {
		c.GeoSource = "original"
		return c
	}

	c.PlaceName = result.PlaceName
	c.FormattedAddress = result.FormattedAddress
	c.GeoConfidence = result.Confidence
	c.GeoSource = "reverse"
	return c
}
