package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNetwork marks a feed request that failed in transport, timed out,
	// returned a non-2xx status or was rejected by an open circuit breaker.
	ErrNetwork = errors.New("feed network error")

	// ErrParse marks a feed payload that is not a GeoJSON FeatureCollection.
	ErrParse = errors.New("feed parse error")

	// ErrMalformedRecord marks a single feature that lacks a required field.
	ErrMalformedRecord = errors.New("malformed feed record")
)

// FeedError is returned by feed clients. Kind is ErrNetwork or ErrParse.
type FeedError struct {
	Window TimeWindow
	Kind   error
	Err    error
}

func (e *FeedError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("fetch %s feed: %v", e.Window, e.Kind)
	}
	return fmt.Sprintf("fetch %s feed: %v: %v", e.Window, e.Kind, e.Err)
}

func (e *FeedError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// RecordError describes a feature skipped during normalization.
type RecordError struct {
	Index  int
	ID     string
	Reason string
}

func (e *RecordError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("feature %d: %s", e.Index, e.Reason)
	}
	return fmt.Sprintf("feature %d (%s): %s", e.Index, e.ID, e.Reason)
}

func (e *RecordError) Unwrap() error { return ErrMalformedRecord }
