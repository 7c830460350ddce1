package domain

import (
	"context"
	"log/slog"
)

// EnrichPortCoordinates fills in coordinates for ports the dataset left
// without any location. Coordinates from the dataset are never replaced.
// Geocoding failures leave the port as it was (graceful degradation).
// It returns the number of ports that received coordinates.
func EnrichPortCoordinates(ctx context.Context, result *AggregateResult, geocoder Geocoder, logger *slog.Logger) int {
	if geocoder == nil || result == nil {
		return 0
	}

	enriched := 0
	for i := range result.Ports {
		p := &result.Ports[i]
		if p.Lat != nil || p.Lon != nil {
			continue
		}
		if ctx.Err() != nil {
			return enriched
		}

		geo, err := geocoder.ForwardGeocode(ctx, p.PortName, p.State)
		if err != nil {
			logger.Warn("port geocoding failed",
				"port_key", p.Key,
				"port", p.PortName,
				"state", p.State,
				"error", err,
			)
			continue
		}
		if geo.Lat == 0 && geo.Lon == 0 {
			continue
		}

		lat, lon := geo.Lat, geo.Lon
		p.Lat = &lat
		p.Lon = &lon
		p.CoordSource = CoordSourceGeocoded
		enriched++
	}
	return enriched
}
