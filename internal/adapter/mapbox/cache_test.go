package mapbox

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/quake-feed-service/internal/domain"
	"github.com/couchcryptid/quake-feed-service/internal/observability"
)

// --- mock for cache tests ---

type countingGeocoder struct {
	calls  int
	result domain.GeocodingResult
	err    error
}

func (m *countingGeocoder) ReverseGeocode(_ context.Context, _, _ float64) (domain.GeocodingResult, error) {
	m.calls++
	return m.result, m.err
}

func newTestCache(inner domain.Geocoder, size int) *CachedGeocoder {
	return NewCachedGeocoder(inner, size, observability.NewMetricsForTesting())
}

func TestCachedGeocoder_CacheHit(t *testing.T) {
	inner := &countingGeocoder{result: domain.GeocodingResult{FormattedAddress: "Ridgecrest, California, United States"}}
	cached := newTestCache(inner, 10)

	r1, err := cached.ReverseGeocode(context.Background(), 35.7, -117.5)
	require.NoError(t, err)
	r2, err := cached.ReverseGeocode(context.Background(), 35.7, -117.5)
	require.NoError(t, err)

	assert.Equal(t, r1, r2)
	assert.Equal(t, 1, inner.calls, "should only call inner once")
}

func TestCachedGeocoder_NearbyPointsShareEntry(t *testing.T) {
	inner := &countingGeocoder{result: domain.GeocodingResult{FormattedAddress: "Ridgecrest"}}
	cached := newTestCache(inner, 10)

	_, _ = cached.ReverseGeocode(context.Background(), 35.70012, -117.50031)
	_, _ = cached.ReverseGeocode(context.Background(), 35.70044, -117.49989)
	assert.Equal(t, 1, inner.calls)

	_, _ = cached.ReverseGeocode(context.Background(), 35.71, -117.5)
	assert.Equal(t, 2, inner.calls)
}

func TestCachedGeocoder_EmptyResultCached(t *testing.T) {
	inner := &countingGeocoder{}
	cached := newTestCache(inner, 10)

	_, _ = cached.ReverseGeocode(context.Background(), -20.1, -174.9)
	_, _ = cached.ReverseGeocode(context.Background(), -20.1, -174.9)
	assert.Equal(t, 1, inner.calls)
}

func TestCachedGeocoder_ErrorNotCached(t *testing.T) {
	inner := &countingGeocoder{err: errors.New("rate limited")}
	cached := newTestCache(inner, 10)

	_, err := cached.ReverseGeocode(context.Background(), 1, 2)
	require.Error(t, err)
	_, err = cached.ReverseGeocode(context.Background(), 1, 2)
	require.Error(t, err)

	assert.Equal(t, 2, inner.calls)
	assert.Zero(t, cached.Len())
}

func TestCachedGeocoder_Eviction(t *testing.T) {
	c := newTestCache(&countingGeocoder{}, 2)

	c.put("a", domain.GeocodingResult{PlaceName: "A"})
	c.put("b", domain.GeocodingResult{PlaceName: "B"})
	c.put("c", domain.GeocodingResult{PlaceName: "C"}) // evicts "a"

	_, ok := c.get("a")
	assert.False(t, ok, "a should have been evicted")

	result, ok := c.get("c")
	assert.True(t, ok)
	assert.Equal(t, "C", result.PlaceName)
	assert.Equal(t, 2, c.Len())
}

func TestCachedGeocoder_AccessPromotesEntry(t *testing.T) {
	c := newTestCache(&countingGeocoder{}, 2)

	c.put("a", domain.GeocodingResult{PlaceName: "A"})
	c.put("b", domain.GeocodingResult{PlaceName: "B"})
	c.get("a")
	c.put("c", domain.GeocodingResult{PlaceName: "C"})

	_, ok := c.get("a")
	assert.True(t, ok, "a was accessed recently, should not be evicted")
	_, ok = c.get("b")
	assert.False(t, ok, "b should have been evicted")
}

func TestCachedGeocoder_UpdateExisting(t *testing.T) {
	c := newTestCache(&countingGeocoder{}, 2)

	c.put("a", domain.GeocodingResult{PlaceName: "A1"})
	c.put("a", domain.GeocodingResult{PlaceName: "A2"})

	result, ok := c.get("a")
	assert.True(t, ok)
	assert.Equal(t, "A2", result.PlaceName)
	assert.Equal(t, 1, c.Len())
}

func TestCacheKey_Rounding(t *testing.T) {
	assert.Equal(t, "35.700,-117.500", cacheKey(35.70012, -117.50031))
	assert.Equal(t, "-0.001,0.000", cacheKey(-0.0006, 0.0001))
}
