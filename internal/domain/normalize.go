package domain

import (
	"time"
)

// DisplayTimeLayout renders event times the way en-US locale strings do,
// e.g. "4/26/2024, 3:10:00 PM".
const DisplayTimeLayout = "1/2/2006, 3:04:05 PM"

// Normalize converts a raw feed into display-ready events, one per well-formed
// feature, in feed order. Features missing a required field are skipped and
// returned as *RecordError values; the batch is never aborted. loc controls
// DisplayTime; nil means UTC.
func Normalize(feed RawFeed, loc *time.Location) (events []SeismicEvent, skipped []error) {
	if loc == nil {
		loc = time.UTC
	}

	events = make([]SeismicEvent, 0, len(feed.Features))
	for i, f := range feed.Features {
		event, err := normalizeFeature(i, f, loc)
		if err != nil {
			skipped = append(skipped, err)
			continue
		}
		events = append(events, event)
	}
	return events, skipped
}

func normalizeFeature(index int, f RawFeature, loc *time.Location) (SeismicEvent, error) {
	if len(f.Coordinates) < 2 {
		return SeismicEvent{}, &RecordError{Index: index, ID: f.ID, Reason: "missing point coordinates"}
	}
	if f.Magnitude == nil {
		return SeismicEvent{}, &RecordError{Index: index, ID: f.ID, Reason: "missing magnitude"}
	}
	if f.TimeMillis == nil {
		return SeismicEvent{}, &RecordError{Index: index, ID: f.ID, Reason: "missing time"}
	}

	var depth float64
	if len(f.Coordinates) > 2 {
		depth = f.Coordinates[2]
	}

	var place string
	if f.Place != nil {
		place = *f.Place
	}

	occurred := time.UnixMilli(*f.TimeMillis).UTC()
	return SeismicEvent{
		ID:          f.ID,
		Location:    place,
		Magnitude:   *f.Magnitude,
		DepthKm:     depth,
		Latitude:    f.Coordinates[1],
		Longitude:   f.Coordinates[0],
		OccurredAt:  occurred,
		DisplayTime: FormatDisplayTime(occurred, loc),
		PlaceSource: PlaceFromFeed,
	}, nil
}

// FormatDisplayTime renders t in loc using DisplayTimeLayout.
func FormatDisplayTime(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format(DisplayTimeLayout)
}
