package controller

import (
	"context"
	"log/slog"
	"time"

	"github.com/couchcryptid/quake-feed-service/internal/domain"
	"github.com/couchcryptid/quake-feed-service/internal/observability"
)

// FeedTransformer implements Transformer using the domain normalizer with
// optional reverse-geocoding enrichment.
type FeedTransformer struct {
	geocoder domain.Geocoder
	location *time.Location
	metrics  *observability.Metrics
	logger   *slog.Logger
}

// NewTransformer creates a FeedTransformer. Pass a nil geocoder to disable
// enrichment; loc sets the display time zone (nil means UTC).
func NewTransformer(geocoder domain.Geocoder, loc *time.Location, metrics *observability.Metrics, logger *slog.Logger) *FeedTransformer {
	return &FeedTransformer{
		geocoder: geocoder,
		location: loc,
		metrics:  metrics,
		logger:   logger,
	}
}

func (t *FeedTransformer) Transform(ctx context.Context, feed domain.RawFeed) []domain.SeismicEvent {
	events, skipped := domain.Normalize(feed, t.location)

	t.metrics.EventsNormalized.Add(float64(len(events)))
	if len(skipped) > 0 {
		t.metrics.RecordsSkipped.Add(float64(len(skipped)))
		t.logger.Warn("skipped malformed feed records",
			"window", feed.Window,
			"skipped", len(skipped),
			"first_error", skipped[0],
		)
	}

	return domain.EnrichPlaces(ctx, events, t.geocoder, t.logger)
}
