package domain

// MinFilteredMagnitude is the inclusive lower bound of ThresholdM4Up.
const MinFilteredMagnitude = 4.0

// ApplyThreshold returns the events that pass threshold, preserving order.
// ThresholdAll (and any unrecognized threshold) returns events unchanged.
// The input slice is never modified.
func ApplyThreshold(events []SeismicEvent, threshold MagnitudeThreshold) []SeismicEvent {
	if threshold != ThresholdM4Up {
		return events
	}

	out := make([]SeismicEvent, 0, len(events))
	for _, e := range events {
		if e.Magnitude >= MinFilteredMagnitude {
			out = append(out, e)
		}
	}
	return out
}
