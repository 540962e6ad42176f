// Command feedcheck fetches a USGS summary feed (or reads a saved one),
// normalizes it and checks the records the way the controller would see them.
// It reports record counts, skipped features and color bands, and exits
// non-zero when any check fails.
//
// Usage:
//
//	go run ./cmd/feedcheck -window week
//	go run ./cmd/feedcheck -file testdata/all_day.geojson
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/couchcryptid/quake-feed-service/internal/adapter/usgs"
	"github.com/couchcryptid/quake-feed-service/internal/config"
	"github.com/couchcryptid/quake-feed-service/internal/domain"
	"github.com/couchcryptid/quake-feed-service/internal/observability"
)

// phase tracks pass/fail for a check phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("feedcheck", flag.ContinueOnError)
	fs.SetOutput(stderr)
	window := fs.String("window", string(domain.WindowDay), "time window to fetch: hour, day, week or month")
	file := fs.String("file", "", "read a saved GeoJSON feed instead of fetching")
	baseURL := fs.String("base-url", config.DefaultFeedBaseURL, "USGS summary feed directory")
	timeout := fs.Duration("timeout", 30*time.Second, "feed request timeout")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	tw, err := domain.ParseTimeWindow(*window)
	if err != nil {
		fmt.Fprintf(stderr, "FATAL: %v\n", err)
		return 2
	}

	feed, source, err := load(tw, *file, *baseURL, *timeout)
	if err != nil {
		fmt.Fprintf(stderr, "FATAL: %v\n", err)
		return 1
	}

	fmt.Fprintln(stdout, "=== Earthquake Feed Check ===")
	fmt.Fprintf(stdout, "Source: %s\n", source)
	if feed.Title != "" {
		fmt.Fprintf(stdout, "Title:  %s\n", feed.Title)
	}
	fmt.Fprintln(stdout)

	events, skipped := domain.Normalize(feed, time.UTC)
	phases := []*phase{
		checkStructure(feed),
		checkNormalization(feed, events, skipped),
		checkCoordinates(events),
		checkEncoding(events),
		checkThreshold(events),
	}

	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Fprintf(stdout, "  %-30s %s\n", p.name, status)
	}

	fmt.Fprintln(stdout)
	bands := colorBands(events)
	fmt.Fprintf(stdout, "Records: %d features, %d events, %d skipped, %d at M4+\n",
		len(feed.Features), len(events), len(skipped), len(domain.ApplyThreshold(events, domain.ThresholdM4Up)))
	fmt.Fprintf(stdout, "Colors:  %d red, %d orange, %d green\n",
		bands[domain.ColorRed], bands[domain.ColorOrange], bands[domain.ColorGreen])

	for _, err := range skipped {
		fmt.Fprintf(stdout, "  skipped: %v\n", err)
	}

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Fprintf(stdout, "\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Fprintf(stdout, "  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Fprintln(stdout, "\nAll checks passed.")
		return 0
	}
	fmt.Fprintln(stdout, "\nFeed check FAILED.")
	return 1
}

func load(window domain.TimeWindow, file, baseURL string, timeout time.Duration) (domain.RawFeed, string, error) {
	if file != "" {
		body, err := os.ReadFile(file)
		if err != nil {
			return domain.RawFeed{}, "", err
		}
		feed, err := usgs.ParseFeed(window, body)
		if err != nil {
			return domain.RawFeed{}, "", fmt.Errorf("%s: %w", file, err)
		}
		return feed, file, nil
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	client := usgs.NewClient(baseURL, "quake-feedcheck", timeout, observability.NewMetricsForTesting(), logger)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	feed, err := client.Fetch(ctx, window)
	if err != nil {
		if errors.Is(err, domain.ErrParse) {
			return domain.RawFeed{}, "", fmt.Errorf("feed is not valid GeoJSON: %w", err)
		}
		return domain.RawFeed{}, "", err
	}
	return feed, client.FeedURL(window), nil
}

// ── Check phases ──

func checkStructure(feed domain.RawFeed) *phase {
	p := &phase{name: "Feed structure"}
	seen := make(map[string]int, len(feed.Features))
	for i, f := range feed.Features {
		if f.ID == "" {
			continue
		}
		if prev, ok := seen[f.ID]; ok {
			p.errorf("feature %d: duplicate id %q (first at %d)", i, f.ID, prev)
			continue
		}
		seen[f.ID] = i
	}
	return p
}

func checkNormalization(feed domain.RawFeed, events []domain.SeismicEvent, skipped []error) *phase {
	p := &phase{name: "Record normalization"}
	if len(events)+len(skipped) != len(feed.Features) {
		p.errorf("normalized %d + skipped %d != %d features", len(events), len(skipped), len(feed.Features))
	}
	if len(feed.Features) > 0 && len(events) == 0 {
		p.errorf("every feature was skipped")
	}
	for _, e := range events {
		if e.DisplayTime == "" {
			p.errorf("%s: empty display time", e.ID)
		}
		if e.OccurredAt.IsZero() {
			p.errorf("%s: zero occurrence time", e.ID)
		}
	}
	return p
}

func checkCoordinates(events []domain.SeismicEvent) *phase {
	p := &phase{name: "Coordinate ranges"}
	for _, e := range events {
		if e.Latitude < -90 || e.Latitude > 90 {
			p.errorf("%s: latitude %.4f out of range", e.ID, e.Latitude)
		}
		if e.Longitude < -180 || e.Longitude > 180 {
			p.errorf("%s: longitude %.4f out of range", e.ID, e.Longitude)
		}
	}
	return p
}

func checkEncoding(events []domain.SeismicEvent) *phase {
	p := &phase{name: "Visual encoding"}
	markers := domain.BuildMarkers(events)
	if len(markers) != len(events) {
		p.errorf("%d markers for %d events", len(markers), len(events))
		return p
	}
	for i, m := range markers {
		if m.Size < domain.MinMarkerSize {
			p.errorf("%s: size %.2f below floor", m.ID, m.Size)
		}
		if want := domain.Encode(events[i].Magnitude).Color; m.Color != want {
			p.errorf("%s: magnitude %.1f encoded %s, want %s", m.ID, events[i].Magnitude, m.Color, want)
		}
	}
	return p
}

func checkThreshold(events []domain.SeismicEvent) *phase {
	p := &phase{name: "Magnitude threshold"}
	filtered := domain.ApplyThreshold(events, domain.ThresholdM4Up)
	for _, e := range filtered {
		if e.Magnitude < domain.MinFilteredMagnitude {
			p.errorf("%s: magnitude %.1f passed the M4+ filter", e.ID, e.Magnitude)
		}
	}
	var want int
	for _, e := range events {
		if e.Magnitude >= domain.MinFilteredMagnitude {
			want++
		}
	}
	if len(filtered) != want {
		p.errorf("M4+ kept %d events, want %d", len(filtered), want)
	}
	return p
}

func colorBands(events []domain.SeismicEvent) map[domain.Color]int {
	bands := make(map[domain.Color]int, 3)
	for _, e := range events {
		bands[domain.Encode(e.Magnitude).Color]++
	}
	return bands
}
