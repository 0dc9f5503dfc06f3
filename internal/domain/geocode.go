package domain

import (
	"context"
	"log/slog"
)

// ResolvePlace resolves an event's coordinates to a human-readable place
// name. If the geocoder is nil, the lookup fails, or nothing usable comes
// back, the source-provided place is returned unchanged (graceful
// degradation — enrichment never blocks a write).
func ResolvePlace(ctx context.Context, event Event, geocoder Geocoder, logger *slog.Logger) string {
	if geocoder == nil {
		return event.Place
	}

	addr, err := geocoder.ReverseGeocode(ctx, event.Latitude, event.Longitude)
	if err != nil {
		logger.Warn("reverse geocoding failed",
			"event_id", event.ID,
			"lat", event.Latitude,
			"lon", event.Longitude,
			"error", err,
		)
		return event.Place
	}

	if name := addr.BestName(); name != "" {
		return name
	}
	return event.Place
}
