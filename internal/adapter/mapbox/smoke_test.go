//go:build mapbox

package mapbox

import (
	"context"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/quake-feed-service/internal/observability"
)

// These tests hit the real Mapbox API and require a valid MAPBOX_TOKEN env var.
// Run with: go test -tags=mapbox ./internal/adapter/mapbox/ -v -count=1

func smokeClient(t *testing.T) *Client {
	t.Helper()
	token := os.Getenv("MAPBOX_TOKEN")
	if token == "" {
		t.Fatal("MAPBOX_TOKEN must be set to run smoke tests")
	}
	return NewClient(token, 10*time.Second, observability.NewMetricsForTesting(), slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestSmoke_ReverseGeocode(t *testing.T) {
	c := smokeClient(t)

	// Ridgecrest, CA (2019 M7.1 sequence)
	result, err := c.ReverseGeocode(context.Background(), 35.77, -117.599)
	require.NoError(t, err)

	assert.Contains(t, result.FormattedAddress, "California")
	assert.NotEmpty(t, result.PlaceName)
	assert.Greater(t, result.Confidence, 0.0)
}

func TestSmoke_ReverseGeocode_OpenOcean(t *testing.T) {
	c := smokeClient(t)

	// South Pacific, far from land; any response must be handled without error.
	_, err := c.ReverseGeocode(context.Background(), -45.0, -130.0)
	require.NoError(t, err)
}

func TestSmoke_CachedGeocoder(t *testing.T) {
	cached := NewCachedGeocoder(smokeClient(t), 10, observability.NewMetricsForTesting())

	r1, err := cached.ReverseGeocode(context.Background(), 61.2181, -149.9003)
	require.NoError(t, err)
	assert.Contains(t, r1.FormattedAddress, "Alaska")

	r2, err := cached.ReverseGeocode(context.Background(), 61.2181, -149.9003)
	require.NoError(t, err)
	assert.Equal(t, r1, r2)
	assert.Equal(t, 1, cached.Len())
}
