package controller_test

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/quake-feed-service/internal/controller"
	"github.com/couchcryptid/quake-feed-service/internal/domain"
)

func eventsWithMagnitudes(mags ...float64) []domain.SeismicEvent {
	events := make([]domain.SeismicEvent, len(mags))
	for i, m := range mags {
		events[i] = domain.SeismicEvent{Location: "somewhere", Magnitude: m}
	}
	return events
}

func TestInit_DefaultsLoadDayFeed(t *testing.T) {
	s, effects := controller.Init(domain.DefaultFilterState())

	assert.Equal(t, controller.FetchLoading, s.Fetch)
	assert.Equal(t, domain.WindowDay, s.Filter.TimeWindow)
	assert.Equal(t, domain.ThresholdAll, s.Filter.Threshold)
	assert.False(t, s.WarningVisible)
	assert.Equal(t, []controller.Effect{
		controller.CancelWarning{},
		controller.StartFetch{Generation: 1, Window: domain.WindowDay},
	}, effects)
}

func TestInit_MonthDefaultArmsWarning(t *testing.T) {
	s, effects := controller.Init(domain.FilterState{TimeWindow: domain.WindowMonth, Threshold: domain.ThresholdM4Up})

	assert.True(t, s.WarningVisible)
	assert.Contains(t, effects, controller.Effect(controller.ArmWarning{Token: 1}))
	assert.Equal(t, domain.ThresholdM4Up, s.Filter.Threshold)
}

func TestInit_InvalidFilterFallsBack(t *testing.T) {
	s, _ := controller.Init(domain.FilterState{TimeWindow: "year", Threshold: "7+"})
	assert.Equal(t, domain.DefaultFilterState(), s.Filter)
}

func TestReduce_WindowChange(t *testing.T) {
	s, _ := controller.Init(domain.DefaultFilterState())

	s, effects := controller.Reduce(s, controller.TimeWindowSelected{Window: domain.WindowWeek})
	assert.Equal(t, domain.WindowWeek, s.Filter.TimeWindow)
	assert.Equal(t, controller.FetchLoading, s.Fetch)
	assert.Equal(t, uint64(2), s.Generation)
	assert.False(t, s.WarningVisible)
	assert.Equal(t, []controller.Effect{
		controller.CancelWarning{},
		controller.StartFetch{Generation: 2, Window: domain.WindowWeek},
	}, effects)
}

func TestReduce_InvalidWindowIgnored(t *testing.T) {
	s, _ := controller.Init(domain.DefaultFilterState())
	next, effects := controller.Reduce(s, controller.TimeWindowSelected{Window: "decade"})
	assert.Empty(t, effects)
	assert.Equal(t, s, next)
}

func TestReduce_SameWindowRefetches(t *testing.T) {
	s, _ := controller.Init(domain.DefaultFilterState())
	s, effects := controller.Reduce(s, controller.TimeWindowSelected{Window: domain.WindowDay})
	assert.Contains(t, effects, controller.Effect(controller.StartFetch{Generation: 2, Window: domain.WindowDay}))
	assert.Equal(t, controller.FetchLoading, s.Fetch)
}

func TestReduce_FetchSucceeded(t *testing.T) {
	s, _ := controller.Init(domain.DefaultFilterState())
	events := eventsWithMagnitudes(5.5, 3.2, 6.1)
	fetchedAt := time.Date(2024, time.April, 26, 15, 10, 0, 0, time.UTC)

	s, effects := controller.Reduce(s, controller.FetchSucceeded{
		Generation: 1, Window: domain.WindowDay, Events: events, FetchedAt: fetchedAt,
	})

	assert.Equal(t, controller.FetchReady, s.Fetch)
	assert.Equal(t, domain.WindowDay, s.DataWindow)
	if diff := cmp.Diff(events, s.Events); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}
	require.Len(t, effects, 1)
	snap, ok := effects[0].(controller.PublishSnapshot)
	require.True(t, ok)
	assert.Equal(t, uint64(1), snap.Snapshot.Generation)
	assert.Equal(t, fetchedAt, snap.Snapshot.FetchedAt)
	assert.Len(t, snap.Snapshot.Events, 3)
}

func TestReduce_StaleResultDiscarded(t *testing.T) {
	s, _ := controller.Init(domain.DefaultFilterState())
	s, _ = controller.Reduce(s, controller.TimeWindowSelected{Window: domain.WindowWeek})

	next, effects := controller.Reduce(s, controller.FetchSucceeded{
		Generation: 1, Window: domain.WindowDay, Events: eventsWithMagnitudes(1),
	})
	assert.Empty(t, effects)
	assert.Equal(t, s, next)

	next, effects = controller.Reduce(s, controller.FetchErrored{
		Generation: 1, Window: domain.WindowDay, Err: errors.New("boom"),
	})
	assert.Empty(t, effects)
	assert.Equal(t, controller.FetchLoading, next.Fetch)
}

// Two rapid selections: whichever order the responses arrive in, only the
// second selection's result is displayed.
func TestReduce_RapidSwitchEitherArrivalOrder(t *testing.T) {
	base, _ := controller.Init(domain.DefaultFilterState())
	base, _ = controller.Reduce(base, controller.TimeWindowSelected{Window: domain.WindowWeek})  // gen 2
	base, _ = controller.Reduce(base, controller.TimeWindowSelected{Window: domain.WindowMonth}) // gen 3

	week := controller.FetchSucceeded{Generation: 2, Window: domain.WindowWeek, Events: eventsWithMagnitudes(1, 2)}
	month := controller.FetchSucceeded{Generation: 3, Window: domain.WindowMonth, Events: eventsWithMagnitudes(7)}

	orders := map[string][]controller.Event{
		"first-then-second": {week, month},
		"second-then-first": {month, week},
	}
	for name, order := range orders {
		t.Run(name, func(t *testing.T) {
			s := base
			for _, ev := range order {
				s, _ = controller.Reduce(s, ev)
			}
			assert.Equal(t, domain.WindowMonth, s.DataWindow)
			assert.Equal(t, controller.FetchReady, s.Fetch)
			require.Len(t, s.Events, 1)
			assert.Equal(t, 7.0, s.Events[0].Magnitude)
		})
	}
}

func TestReduce_FetchErroredKeepsEventsAndClearsLoading(t *testing.T) {
	s, _ := controller.Init(domain.DefaultFilterState())
	s, _ = controller.Reduce(s, controller.FetchSucceeded{Generation: 1, Window: domain.WindowDay, Events: eventsWithMagnitudes(4.2)})
	s, _ = controller.Reduce(s, controller.RefreshRequested{})
	require.Equal(t, controller.FetchLoading, s.Fetch)

	s, effects := controller.Reduce(s, controller.FetchErrored{
		Generation: 2, Window: domain.WindowDay, Err: errors.New("connection refused"),
	})
	assert.Empty(t, effects)
	assert.Equal(t, controller.FetchFailed, s.Fetch)
	assert.Contains(t, s.Err, "connection refused")
	assert.Len(t, s.Events, 1)

	s, _ = controller.Reduce(s, controller.RefreshRequested{})
	s, _ = controller.Reduce(s, controller.FetchSucceeded{Generation: 3, Window: domain.WindowDay})
	assert.Empty(t, s.Err)
}

func TestReduce_ThresholdChangeNeverFetches(t *testing.T) {
	s, _ := controller.Init(domain.DefaultFilterState())
	s, effects := controller.Reduce(s, controller.ThresholdSelected{Threshold: domain.ThresholdM4Up})
	assert.Empty(t, effects)
	assert.Equal(t, domain.ThresholdM4Up, s.Filter.Threshold)
	assert.Equal(t, uint64(1), s.Generation)

	s, _ = controller.Reduce(s, controller.ThresholdSelected{Threshold: "9+"})
	assert.Equal(t, domain.ThresholdM4Up, s.Filter.Threshold)
}

func TestReduce_MonthWarningLifecycle(t *testing.T) {
	s, _ := controller.Init(domain.DefaultFilterState())

	s, effects := controller.Reduce(s, controller.TimeWindowSelected{Window: domain.WindowMonth})
	assert.True(t, s.WarningVisible)
	assert.Contains(t, effects, controller.Effect(controller.ArmWarning{Token: 1}))

	s, _ = controller.Reduce(s, controller.WarningExpired{Token: 1})
	assert.False(t, s.WarningVisible)
}

func TestReduce_WarningClearedOnWindowChange(t *testing.T) {
	s, _ := controller.Init(domain.DefaultFilterState())
	s, _ = controller.Reduce(s, controller.TimeWindowSelected{Window: domain.WindowMonth})
	require.True(t, s.WarningVisible)

	s, effects := controller.Reduce(s, controller.TimeWindowSelected{Window: domain.WindowHour})
	assert.False(t, s.WarningVisible)
	assert.Equal(t, controller.Effect(controller.CancelWarning{}), effects[0])
	for _, eff := range effects {
		_, armed := eff.(controller.ArmWarning)
		assert.False(t, armed)
	}
}

func TestReduce_StaleWarningTokenIgnored(t *testing.T) {
	s, _ := controller.Init(domain.DefaultFilterState())
	s, _ = controller.Reduce(s, controller.TimeWindowSelected{Window: domain.WindowMonth}) // token 1
	s, _ = controller.Reduce(s, controller.TimeWindowSelected{Window: domain.WindowWeek})
	s, _ = controller.Reduce(s, controller.TimeWindowSelected{Window: domain.WindowMonth}) // token 2

	s, _ = controller.Reduce(s, controller.WarningExpired{Token: 1})
	assert.True(t, s.WarningVisible, "expiry of a replaced timer must not hide the new warning")

	s, _ = controller.Reduce(s, controller.WarningExpired{Token: 2})
	assert.False(t, s.WarningVisible)
}

func TestReduce_RefreshLeavesWarning(t *testing.T) {
	s, _ := controller.Init(domain.DefaultFilterState())
	s, _ = controller.Reduce(s, controller.TimeWindowSelected{Window: domain.WindowMonth})

	s, effects := controller.Reduce(s, controller.RefreshRequested{})
	assert.True(t, s.WarningVisible)
	assert.Equal(t, []controller.Effect{
		controller.StartFetch{Generation: s.Generation, Window: domain.WindowMonth},
	}, effects)
}

func TestBuildView_FiltersAndEncodes(t *testing.T) {
	s, _ := controller.Init(domain.FilterState{TimeWindow: domain.WindowDay, Threshold: domain.ThresholdM4Up})
	s, _ = controller.Reduce(s, controller.FetchSucceeded{
		Generation: 1, Window: domain.WindowDay, Events: eventsWithMagnitudes(5.5, 3.2, 6.1),
	})

	v := controller.BuildView(s)
	assert.False(t, v.Loading)
	assert.Equal(t, 3, v.TotalEvents)
	assert.Equal(t, 2, v.VisibleEvents)
	require.Len(t, v.Markers, 2)
	assert.Equal(t, domain.ColorOrange, v.Markers[0].Color)
	assert.Equal(t, domain.ColorRed, v.Markers[1].Color)
}

func TestBuildView_HidesEventsOfAnotherWindow(t *testing.T) {
	s, _ := controller.Init(domain.DefaultFilterState())
	s, _ = controller.Reduce(s, controller.FetchSucceeded{Generation: 1, Window: domain.WindowDay, Events: eventsWithMagnitudes(5)})
	s, _ = controller.Reduce(s, controller.TimeWindowSelected{Window: domain.WindowWeek})

	v := controller.BuildView(s)
	assert.True(t, v.Loading)
	assert.Empty(t, v.Markers)
	assert.NotNil(t, v.Markers)
	assert.Zero(t, v.TotalEvents)
}

func TestFetchState_String(t *testing.T) {
	names := make([]string, 0, len(controller.FetchStates))
	for _, s := range controller.FetchStates {
		names = append(names, s.String())
	}
	assert.Equal(t, []string{"idle", "loading", "ready", "failed"}, names)

	text, err := controller.FetchReady.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "ready", string(text))
}
