package domain

import (
	"fmt"
	"strconv"
)

// Color is the marker color category.
type Color string

const (
	ColorRed    Color = "red"
	ColorOrange Color = "orange"
	ColorGreen  Color = "green"
)

const (
	// SizePerMagnitude scales magnitude into display units (pixel diameter).
	SizePerMagnitude = 5.0

	// MinMarkerSize keeps markers for zero and negative magnitudes visible.
	MinMarkerSize = 3.0
)

// Encoding is the visual treatment of one event.
type Encoding struct {
	Color Color   `json:"color"`
	Size  float64 `json:"size"`
}

// Encode derives the marker color and size from magnitude. The color bands
// use inclusive lower bounds: 6.0 is red and 4.0 is orange.
func Encode(magnitude float64) Encoding {
	size := magnitude * SizePerMagnitude
	if size < MinMarkerSize {
		size = MinMarkerSize
	}
	return Encoding{Color: colorFor(magnitude), Size: size}
}

func colorFor(magnitude float64) Color {
	switch {
	case magnitude >= 6:
		return ColorRed
	case magnitude >= 4:
		return ColorOrange
	default:
		return ColorGreen
	}
}

// Position is a WGS-84 latitude/longitude pair.
type Position struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Marker is what the map renderer needs for one visible event.
type Marker struct {
	ID        string   `json:"id,omitempty"`
	Position  Position `json:"position"`
	Color     Color    `json:"color"`
	Size      float64  `json:"size"`
	PopupText string   `json:"popup_text"`
}

// BuildMarkers encodes each event for display, preserving order.
func BuildMarkers(events []SeismicEvent) []Marker {
	markers := make([]Marker, len(events))
	for i, e := range events {
		enc := Encode(e.Magnitude)
		markers[i] = Marker{
			ID:        e.ID,
			Position:  Position{Lat: e.Latitude, Lon: e.Longitude},
			Color:     enc.Color,
			Size:      enc.Size,
			PopupText: PopupText(e),
		}
	}
	return markers
}

// PopupText renders the marker label:
// "<location> / Magnitude <mag> / Depth <depth> km / Time <time>".
func PopupText(e SeismicEvent) string {
	return fmt.Sprintf("%s / Magnitude %s / Depth %s km / Time %s",
		e.Location, formatNumber(e.Magnitude), formatNumber(e.DepthKm), e.DisplayTime)
}

// formatNumber prints the shortest decimal form, so 4.5 stays "4.5" and 10 is "10".
func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
