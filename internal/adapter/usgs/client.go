// Package usgs fetches and parses the USGS earthquake summary GeoJSON feeds.
package usgs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/gzhttp"
	geojson "github.com/paulmach/go.geojson"
	"github.com/sony/gobreaker/v2"

	"github.com/couchcryptid/quake-feed-service/internal/domain"
	"github.com/couchcryptid/quake-feed-service/internal/observability"
)

// maxBodyBytes bounds a single feed download. The month feed is typically
// 10-20 MB uncompressed.
const maxBodyBytes = 64 << 20

// Client implements controller.Fetcher against the USGS summary feeds.
type Client struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[[]byte]
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a feed client. baseURL is the summary directory, without
// a trailing slash.
func NewClient(baseURL, userAgent string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		baseURL:   baseURL,
		userAgent: userAgent,
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: gzhttp.Transport(http.DefaultTransport),
		},
		breaker: newBreaker(),
		metrics: metrics,
		logger:  logger,
	}
}

func newBreaker() *gobreaker.CircuitBreaker[[]byte] {
	return gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        "usgs-feed",
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		// A superseded fetch is cancelled by the controller; that says nothing
		// about upstream health.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
	})
}

// FeedURL returns the summary feed URL for window.
func (c *Client) FeedURL(window domain.TimeWindow) string {
	return fmt.Sprintf("%s/all_%s.geojson", c.baseURL, window)
}

// Fetch downloads and parses the feed for window. Every failure is returned as
// a *domain.FeedError wrapping domain.ErrNetwork or domain.ErrParse.
func (c *Client) Fetch(ctx context.Context, window domain.TimeWindow) (domain.RawFeed, error) {
	if !window.Valid() {
		return domain.RawFeed{}, &domain.FeedError{Window: window, Kind: domain.ErrNetwork, Err: errors.New("unsupported time window")}
	}

	requestID := uuid.NewString()
	start := time.Now()
	body, err := c.breaker.Execute(func() ([]byte, error) {
		return c.get(ctx, c.FeedURL(window), requestID)
	})
	c.metrics.FeedDuration.WithLabelValues(string(window)).Observe(time.Since(start).Seconds())
	if err != nil {
		c.metrics.FeedRequests.WithLabelValues(string(window), "network_error").Inc()
		c.logger.Warn("feed request failed", "window", window, "request_id", requestID, "error", err)
		return domain.RawFeed{}, &domain.FeedError{Window: window, Kind: domain.ErrNetwork, Err: err}
	}

	feed, err := ParseFeed(window, body)
	if err != nil {
		c.metrics.FeedRequests.WithLabelValues(string(window), "parse_error").Inc()
		c.logger.Warn("feed parse failed", "window", window, "request_id", requestID, "bytes", len(body), "error", err)
		return domain.RawFeed{}, &domain.FeedError{Window: window, Kind: domain.ErrParse, Err: err}
	}

	c.metrics.FeedRequests.WithLabelValues(string(window), "success").Inc()
	c.metrics.FeedFeatures.WithLabelValues(string(window)).Set(float64(len(feed.Features)))
	c.logger.Debug("feed fetched",
		"window", window,
		"request_id", requestID,
		"features", len(feed.Features),
		"duration", time.Since(start),
	)
	return feed, nil
}

func (c *Client) get(ctx context.Context, url, requestID string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/geo+json, application/json")
	req.Header.Set("X-Request-ID", requestID)
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("feed request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("usgs feed error: status %d: %s", resp.StatusCode, snippet)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}

// USGS feed envelope. Features decode through go.geojson so geometry types are
// handled by the library.

type featureCollection struct {
	Type     string             `json:"type"`
	Metadata metadata           `json:"metadata"`
	Features []*geojson.Feature `json:"features"`
}

type metadata struct {
	Generated int64  `json:"generated"` // epoch millis
	Title     string `json:"title"`
	Count     int    `json:"count"`
}

// ParseFeed decodes a summary feed document. Malformed features are kept as
// empty records so normalization can count them.
func ParseFeed(window domain.TimeWindow, body []byte) (domain.RawFeed, error) {
	var fc featureCollection
	if err := json.Unmarshal(body, &fc); err != nil {
		return domain.RawFeed{}, fmt.Errorf("decode geojson: %w", err)
	}
	if fc.Type != "FeatureCollection" {
		return domain.RawFeed{}, fmt.Errorf("unexpected geojson type %q", fc.Type)
	}

	feed := domain.RawFeed{
		Window:   window,
		Title:    fc.Metadata.Title,
		Features: make([]domain.RawFeature, 0, len(fc.Features)),
	}
	if fc.Metadata.Generated > 0 {
		feed.Generated = time.UnixMilli(fc.Metadata.Generated).UTC()
	}

	for _, f := range fc.Features {
		if f == nil {
			feed.Features = append(feed.Features, domain.RawFeature{})
			continue
		}
		feed.Features = append(feed.Features, toRawFeature(f))
	}
	return feed, nil
}

func toRawFeature(f *geojson.Feature) domain.RawFeature {
	raw := domain.RawFeature{ID: featureID(f.ID)}

	if place, err := f.PropertyString("place"); err == nil {
		raw.Place = &place
	}
	if mag, err := f.PropertyFloat64("mag"); err == nil {
		raw.Magnitude = &mag
	}
	if ms, err := f.PropertyFloat64("time"); err == nil {
		millis := int64(ms)
		raw.TimeMillis = &millis
	}
	if f.Geometry != nil && f.Geometry.IsPoint() {
		raw.Coordinates = f.Geometry.Point
	}
	return raw
}

func featureID(id any) string {
	switch v := id.(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}
