package domain

import (
	"fmt"
	"strings"
	"time"
)

// TimeWindow is the lookback period that selects which summary feed is fetched.
type TimeWindow string

const (
	WindowHour  TimeWindow = "hour"
	WindowDay   TimeWindow = "day"
	WindowWeek  TimeWindow = "week"
	WindowMonth TimeWindow = "month"
)

// TimeWindows lists every supported window, shortest first.
var TimeWindows = []TimeWindow{WindowHour, WindowDay, WindowWeek, WindowMonth}

// ParseTimeWindow accepts a window name case-insensitively.
func ParseTimeWindow(s string) (TimeWindow, error) {
	w := TimeWindow(strings.ToLower(strings.TrimSpace(s)))
	if !w.Valid() {
		return "", fmt.Errorf("unknown time window %q", s)
	}
	return w, nil
}

// Valid reports whether w is one of the four feed windows.
func (w TimeWindow) Valid() bool {
	switch w {
	case WindowHour, WindowDay, WindowWeek, WindowMonth:
		return true
	default:
		return false
	}
}

// Large reports whether the window produces a feed big enough to warn about.
func (w TimeWindow) Large() bool { return w == WindowMonth }

// MagnitudeThreshold is the display filter applied to normalized events.
type MagnitudeThreshold string

const (
	ThresholdAll  MagnitudeThreshold = "all"
	ThresholdM4Up MagnitudeThreshold = "4+"
)

// ParseMagnitudeThreshold accepts "all" and the spellings of the >=4 filter.
func ParseMagnitudeThreshold(s string) (MagnitudeThreshold, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "all", "":
		return ThresholdAll, nil
	case "4+", ">=4", "≥4", "m4":
		return ThresholdM4Up, nil
	default:
		return "", fmt.Errorf("unknown magnitude threshold %q", s)
	}
}

// FilterState holds the two user-selected filters.
type FilterState struct {
	TimeWindow TimeWindow         `json:"time_window"`
	Threshold  MagnitudeThreshold `json:"magnitude"`
}

// DefaultFilterState is the selection a new session starts with.
func DefaultFilterState() FilterState {
	return FilterState{TimeWindow: WindowDay, Threshold: ThresholdAll}
}

// RawFeature is one GeoJSON feature as read from the feed, before validation.
// Pointer fields are nil when the feed carried null or omitted the property.
type RawFeature struct {
	ID          string
	Place       *string
	Magnitude   *float64
	TimeMillis  *int64
	Coordinates []float64 // [lon, lat, depth]
}

// RawFeed is a parsed summary feed.
type RawFeed struct {
	Window    TimeWindow
	Title     string
	Generated time.Time
	Features  []RawFeature
}

// Place sources recorded on SeismicEvent.PlaceSource.
const (
	PlaceFromFeed    = "feed"
	PlaceFromReverse = "reverse"
	PlaceFailed      = "failed"
)

// SeismicEvent is the normalized, display-ready earthquake record.
type SeismicEvent struct {
	ID          string    `json:"id,omitempty"`
	Location    string    `json:"location"`
	Magnitude   float64   `json:"magnitude"`
	DepthKm     float64   `json:"depth_km"`
	Latitude    float64   `json:"latitude"`
	Longitude   float64   `json:"longitude"`
	OccurredAt  time.Time `json:"occurred_at"`
	DisplayTime string    `json:"display_time"`
	PlaceSource string    `json:"place_source,omitempty"`
}

// Snapshot is the accepted result of one fetch: the full normalized event list
// (before magnitude filtering) for a window.
type Snapshot struct {
	Generation uint64         `json:"generation"`
	Window     TimeWindow     `json:"time_window"`
	FetchedAt  time.Time      `json:"fetched_at"`
	Events     []SeismicEvent `json:"events"`
}
