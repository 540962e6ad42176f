package controller

import (
	"time"

	"github.com/couchcryptid/quake-feed-service/internal/domain"
)

// FetchState tracks the lifecycle of the current window's fetch.
type FetchState int

const (
	FetchIdle FetchState = iota
	FetchLoading
	FetchReady
	FetchFailed
)

// FetchStates lists every state, in declaration order.
var FetchStates = []FetchState{FetchIdle, FetchLoading, FetchReady, FetchFailed}

func (s FetchState) String() string {
	switch s {
	case FetchIdle:
		return "idle"
	case FetchLoading:
		return "loading"
	case FetchReady:
		return "ready"
	case FetchFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// MarshalText renders the state by name in JSON views.
func (s FetchState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// State is everything the controller knows about the session. The loop owns
// it; Reduce never mutates its input.
type State struct {
	Filter         domain.FilterState
	Fetch          FetchState
	WarningVisible bool

	// Events is the full normalized list of the last accepted fetch and
	// DataWindow the window it was fetched for.
	Events     []domain.SeismicEvent
	DataWindow domain.TimeWindow
	FetchedAt  time.Time

	// Err is the user-facing message of the last failed fetch.
	Err string

	// Generation identifies the only fetch whose result may still be applied.
	Generation uint64
	// WarningToken identifies the only warning timer whose expiry may still
	// hide the warning.
	WarningToken uint64
}

// IsCurrent reports whether a fetch result tagged with generation may be applied.
func (s State) IsCurrent(generation uint64) bool {
	return generation == s.Generation
}

// Event is an input to Reduce.
type Event interface{ event() }

type (
	// TimeWindowSelected is a user window choice. Selecting the current window
	// again refetches it.
	TimeWindowSelected struct{ Window domain.TimeWindow }

	// ThresholdSelected is a user magnitude filter choice.
	ThresholdSelected struct{ Threshold domain.MagnitudeThreshold }

	// RefreshRequested refetches the current window (manual or periodic).
	RefreshRequested struct{}

	// FetchSucceeded carries the normalized events of a completed fetch.
	FetchSucceeded struct {
		Generation uint64
		Window     domain.TimeWindow
		Events     []domain.SeismicEvent
		FetchedAt  time.Time
	}

	// FetchErrored carries the error of a failed fetch.
	FetchErrored struct {
		Generation uint64
		Window     domain.TimeWindow
		Err        error
	}

	// WarningExpired fires when the warning dwell timer elapses.
	WarningExpired struct{ Token uint64 }
)

func (TimeWindowSelected) event() {}
func (ThresholdSelected) event()  {}
func (RefreshRequested) event()   {}
func (FetchSucceeded) event()     {}
func (FetchErrored) event()       {}
func (WarningExpired) event()     {}

// Effect is a side effect requested by Reduce and carried out by the loop.
type Effect interface{ effect() }

type (
	// StartFetch supersedes any in-flight fetch with a new one.
	StartFetch struct {
		Generation uint64
		Window     domain.TimeWindow
	}

	// ArmWarning starts the dwell timer for the warning identified by Token.
	ArmWarning struct{ Token uint64 }

	// CancelWarning stops any pending dwell timer.
	CancelWarning struct{}

	// PublishSnapshot hands an accepted fetch to the snapshot sink.
	PublishSnapshot struct{ Snapshot domain.Snapshot }
)

func (StartFetch) effect()      {}
func (ArmWarning) effect()      {}
func (CancelWarning) effect()   {}
func (PublishSnapshot) effect() {}

// Init returns the starting state for filter and the effects that kick off the
// first fetch. A large default window arms the warning like a user selection.
func Init(filter domain.FilterState) (State, []Effect) {
	if !filter.TimeWindow.Valid() {
		filter.TimeWindow = domain.WindowDay
	}
	if filter.Threshold != domain.ThresholdM4Up {
		filter.Threshold = domain.ThresholdAll
	}
	return Reduce(State{Filter: filter}, TimeWindowSelected{Window: filter.TimeWindow})
}

// Reduce applies ev to s and returns the next state with the effects to run.
func Reduce(s State, ev Event) (State, []Effect) {
	switch ev := ev.(type) {
	case TimeWindowSelected:
		if !ev.Window.Valid() {
			return s, nil
		}
		s.Filter.TimeWindow = ev.Window
		effects := []Effect{CancelWarning{}}
		s.WarningVisible = false
		if ev.Window.Large() {
			s.WarningToken++
			s.WarningVisible = true
			effects = append(effects, ArmWarning{Token: s.WarningToken})
		}
		s, fetch := startFetch(s)
		return s, append(effects, fetch)

	case ThresholdSelected:
		if ev.Threshold != domain.ThresholdAll && ev.Threshold != domain.ThresholdM4Up {
			return s, nil
		}
		s.Filter.Threshold = ev.Threshold
		return s, nil

	case RefreshRequested:
		s, fetch := startFetch(s)
		return s, []Effect{fetch}

	case FetchSucceeded:
		if !s.IsCurrent(ev.Generation) {
			return s, nil
		}
		s.Fetch = FetchReady
		s.Err = ""
		s.Events = ev.Events
		s.DataWindow = ev.Window
		s.FetchedAt = ev.FetchedAt
		return s, []Effect{PublishSnapshot{Snapshot: domain.Snapshot{
			Generation: ev.Generation,
			Window:     ev.Window,
			FetchedAt:  ev.FetchedAt,
			Events:     ev.Events,
		}}}

	case FetchErrored:
		if !s.IsCurrent(ev.Generation) {
			return s, nil
		}
		s.Fetch = FetchFailed
		s.Err = failureMessage(ev)
		return s, nil

	case WarningExpired:
		if ev.Token == s.WarningToken {
			s.WarningVisible = false
		}
		return s, nil
	}
	return s, nil
}

func startFetch(s State) (State, Effect) {
	s.Generation++
	s.Fetch = FetchLoading
	return s, StartFetch{Generation: s.Generation, Window: s.Filter.TimeWindow}
}

func failureMessage(ev FetchErrored) string {
	if ev.Err == nil {
		return "Could not load earthquakes for the past " + string(ev.Window) + "."
	}
	return "Could not load earthquakes for the past " + string(ev.Window) + ": " + ev.Err.Error()
}
