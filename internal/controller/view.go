package controller

import (
	"time"

	"github.com/couchcryptid/quake-feed-service/internal/domain"
)

// View is the immutable render input published after every state change.
// Markers hold only events fetched for the selected window; while a new
// window loads, or after it failed to load, the list is empty.
type View struct {
	Filter         domain.FilterState `json:"filter"`
	FetchState     FetchState         `json:"fetch_state"`
	Loading        bool               `json:"loading"`
	WarningVisible bool               `json:"warning_visible"`
	Error          string             `json:"error,omitempty"`
	Generation     uint64             `json:"generation"`
	TotalEvents    int                `json:"total_events"`
	VisibleEvents  int                `json:"visible_events"`
	Markers        []domain.Marker    `json:"markers"`
	FetchedAt      time.Time          `json:"fetched_at,omitzero"`
}

// BuildView runs the filter and encoder over s.
func BuildView(s State) View {
	v := View{
		Filter:         s.Filter,
		FetchState:     s.Fetch,
		Loading:        s.Fetch == FetchLoading,
		WarningVisible: s.WarningVisible,
		Error:          s.Err,
		Generation:     s.Generation,
		Markers:        []domain.Marker{},
	}
	if s.DataWindow != s.Filter.TimeWindow {
		return v
	}

	visible := domain.ApplyThreshold(s.Events, s.Filter.Threshold)
	v.TotalEvents = len(s.Events)
	v.VisibleEvents = len(visible)
	v.Markers = domain.BuildMarkers(visible)
	v.FetchedAt = s.FetchedAt
	return v
}
