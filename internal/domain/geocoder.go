package domain

import (
	"context"
	"log/slog"
)

// GeocodingResult contains place data returned by a geocoding provider.
type GeocodingResult struct {
	FormattedAddress string
	PlaceName        string
	Confidence       float64 // 0.0–1.0 provider confidence score
}

// Geocoder resolves coordinates to a place description.
type Geocoder interface {
	ReverseGeocode(ctx context.Context, lat, lon float64) (GeocodingResult, error)
}

// EnrichPlaces fills in Location for events the feed left without a place,
// using reverse geocoding. The slice is updated in place and returned; events
// that already carry a place are untouched.
// A nil geocoder returns events as-is. Geocoding failures degrade gracefully:
// the event keeps an empty location and PlaceSource is set to PlaceFailed.
func EnrichPlaces(ctx context.Context, events []SeismicEvent, geocoder Geocoder, logger *slog.Logger) []SeismicEvent {
	if geocoder == nil {
		return events
	}

	for i := range events {
		if events[i].Location != "" {
			continue
		}
		if ctx.Err() != nil {
			return events
		}

		result, err := geocoder.ReverseGeocode(ctx, events[i].Latitude, events[i].Longitude)
		if err != nil {
			logger.Warn("reverse geocoding failed",
				"event_id", events[i].ID,
				"lat", events[i].Latitude,
				"lon", events[i].Longitude,
				"error", err,
			)
			events[i].PlaceSource = PlaceFailed
			continue
		}
		if result.FormattedAddress == "" {
			continue
		}
		events[i].Location = result.FormattedAddress
		events[i].PlaceSource = PlaceFromReverse
	}
	return events
}
