// Package controller owns the session state: filter selections, the fetch
// lifecycle and the large-dataset warning. All transitions go through Reduce;
// Controller runs the side effects on a single goroutine.
package controller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/quake-feed-service/internal/domain"
	"github.com/couchcryptid/quake-feed-service/internal/observability"
)

// ErrStopped is returned when posting to a controller whose loop has exited.
var ErrStopped = errors.New("controller stopped")

const (
	inboxSize      = 16
	publishTimeout = 10 * time.Second
)

// Fetcher retrieves the raw feed for a window.
type Fetcher interface {
	Fetch(ctx context.Context, window domain.TimeWindow) (domain.RawFeed, error)
}

// Transformer converts a raw feed into display-ready events.
type Transformer interface {
	Transform(ctx context.Context, feed domain.RawFeed) []domain.SeismicEvent
}

// SnapshotPublisher receives every accepted fetch result.
type SnapshotPublisher interface {
	Publish(ctx context.Context, snapshot domain.Snapshot) error
}

// Options configures a Controller. Zero values select the defaults.
type Options struct {
	Filter          domain.FilterState
	WarningDwell    time.Duration // default 25s
	RefreshInterval time.Duration // 0 disables periodic refresh
	Publisher       SnapshotPublisher
	Clock           clockwork.Clock
}

// DefaultWarningDwell is how long the large-dataset warning stays visible.
const DefaultWarningDwell = 25 * time.Second

// Controller serializes user input and fetch results through Reduce.
type Controller struct {
	fetcher     Fetcher
	transformer Transformer
	publisher   SnapshotPublisher
	clock       clockwork.Clock
	logger      *slog.Logger
	metrics     *observability.Metrics

	filter          domain.FilterState
	warningDwell    time.Duration
	refreshInterval time.Duration

	inbox   chan Event
	done    chan struct{}
	started atomic.Bool
	ready   atomic.Bool
	view    atomic.Pointer[View]

	subsMu sync.Mutex
	subs   map[chan View]struct{}

	// Owned by the Run goroutine.
	state        State
	cancelFetch  context.CancelFunc
	warningTimer clockwork.Timer
	lastPublish  chan struct{} // closed when the previous snapshot publish returns
	workers      sync.WaitGroup
}

// New creates a Controller. Run must be called to start it.
func New(f Fetcher, t Transformer, logger *slog.Logger, metrics *observability.Metrics, opts Options) *Controller {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.WarningDwell <= 0 {
		opts.WarningDwell = DefaultWarningDwell
	}
	if opts.Filter == (domain.FilterState{}) {
		opts.Filter = domain.DefaultFilterState()
	}

	c := &Controller{
		fetcher:         f,
		transformer:     t,
		publisher:       opts.Publisher,
		clock:           opts.Clock,
		logger:          logger,
		metrics:         metrics,
		filter:          opts.Filter,
		warningDwell:    opts.WarningDwell,
		refreshInterval: opts.RefreshInterval,
		inbox:           make(chan Event, inboxSize),
		done:            make(chan struct{}),
		subs:            make(map[chan View]struct{}),
	}
	// The first frame already shows the loading state Run starts in.
	state, _ := Init(opts.Filter)
	c.filter = state.Filter
	initial := BuildView(state)
	c.view.Store(&initial)
	return c
}

// CheckReadiness returns nil once a fetch has been accepted, or an error
// describing why the controller is not yet ready.
func (c *Controller) CheckReadiness(_ context.Context) error {
	if !c.ready.Load() {
		return errors.New("controller has not loaded a feed yet")
	}
	return nil
}

// View returns the most recently published view.
func (c *Controller) View() View {
	return *c.view.Load()
}

// Subscribe returns a channel that receives every published view, starting
// with the current one. Slow readers only see the latest view. Call cancel to
// stop delivery; the channel is not closed.
func (c *Controller) Subscribe() (<-chan View, func()) {
	ch := make(chan View, 1)
	ch <- c.View()

	c.subsMu.Lock()
	c.subs[ch] = struct{}{}
	c.subsMu.Unlock()

	return ch, func() {
		c.subsMu.Lock()
		delete(c.subs, ch)
		c.subsMu.Unlock()
	}
}

// SelectTimeWindow switches the window and starts a fetch for it.
func (c *Controller) SelectTimeWindow(ctx context.Context, w domain.TimeWindow) error {
	if !w.Valid() {
		return fmt.Errorf("select time window: unknown window %q", w)
	}
	return c.post(ctx, TimeWindowSelected{Window: w})
}

// SelectThreshold changes the magnitude filter. It never triggers a fetch.
func (c *Controller) SelectThreshold(ctx context.Context, th domain.MagnitudeThreshold) error {
	if th != domain.ThresholdAll && th != domain.ThresholdM4Up {
		return fmt.Errorf("select threshold: unknown threshold %q", th)
	}
	return c.post(ctx, ThresholdSelected{Threshold: th})
}

// Refresh refetches the current window.
func (c *Controller) Refresh(ctx context.Context) error {
	return c.post(ctx, RefreshRequested{})
}

func (c *Controller) post(ctx context.Context, ev Event) error {
	select {
	case <-c.done:
		return ErrStopped
	default:
	}
	select {
	case c.inbox <- ev:
		return nil
	case <-c.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// postResult is used by fetch goroutines and timers, which have no caller
// context and must give up once the loop is gone.
func (c *Controller) postResult(ev Event) {
	select {
	case c.inbox <- ev:
	case <-c.done:
	}
}

// Run executes the controller loop until the context is cancelled. It may be
// called once.
func (c *Controller) Run(ctx context.Context) error {
	if !c.started.CompareAndSwap(false, true) {
		return errors.New("controller already started")
	}

	c.logger.Info("controller started",
		"time_window", c.filter.TimeWindow,
		"magnitude", c.filter.Threshold,
		"refresh_interval", c.refreshInterval,
	)
	c.metrics.ControllerRunning.Set(1)
	defer c.metrics.ControllerRunning.Set(0)

	loopCtx, cancel := context.WithCancel(ctx)
	defer c.shutdown(cancel)

	var tick <-chan time.Time
	if c.refreshInterval > 0 {
		ticker := c.clock.NewTicker(c.refreshInterval)
		defer ticker.Stop()
		tick = ticker.Chan()
	}

	state, effects := Init(c.filter)
	c.apply(loopCtx, state, effects)

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("controller stopping", "reason", ctx.Err())
			return nil
		case ev := <-c.inbox:
			c.handle(loopCtx, ev)
		case <-tick:
			c.handle(loopCtx, RefreshRequested{})
		}
	}
}

// shutdown releases everything the loop owns: pending posters are unblocked,
// the in-flight fetch is cancelled and the warning timer stopped.
func (c *Controller) shutdown(cancel context.CancelFunc) {
	close(c.done)
	cancel()
	c.stopWarning()
	c.workers.Wait()
}

func (c *Controller) handle(ctx context.Context, ev Event) {
	switch e := ev.(type) {
	case FetchSucceeded:
		if !c.state.IsCurrent(e.Generation) {
			c.discardStale(e.Generation, e.Window)
			return
		}
		c.logger.Info("feed loaded",
			"time_window", e.Window,
			"generation", e.Generation,
			"events", len(e.Events),
		)
	case FetchErrored:
		if !c.state.IsCurrent(e.Generation) {
			c.discardStale(e.Generation, e.Window)
			return
		}
		c.logger.Warn("feed load failed",
			"time_window", e.Window,
			"generation", e.Generation,
			"error", e.Err,
		)
	}

	next, effects := Reduce(c.state, ev)
	c.apply(ctx, next, effects)
}

func (c *Controller) discardStale(generation uint64, window domain.TimeWindow) {
	c.metrics.StaleResponses.Inc()
	c.logger.Debug("discarding superseded fetch result",
		"time_window", window,
		"generation", generation,
		"current_generation", c.state.Generation,
	)
}

func (c *Controller) apply(ctx context.Context, next State, effects []Effect) {
	c.state = next
	for _, eff := range effects {
		switch e := eff.(type) {
		case StartFetch:
			c.startFetch(ctx, e)
		case ArmWarning:
			c.armWarning(e.Token)
		case CancelWarning:
			c.stopWarning()
		case PublishSnapshot:
			c.publishSnapshot(ctx, e.Snapshot)
		}
	}
	if c.state.Fetch == FetchReady {
		c.ready.Store(true)
	}
	c.publishView()
}

func (c *Controller) startFetch(ctx context.Context, req StartFetch) {
	if c.cancelFetch != nil {
		c.cancelFetch()
	}
	fetchCtx, cancel := context.WithCancel(ctx)
	c.cancelFetch = cancel

	c.logger.Debug("starting fetch", "time_window", req.Window, "generation", req.Generation)
	c.workers.Add(1)
	go c.fetch(fetchCtx, req)
}

func (c *Controller) fetch(ctx context.Context, req StartFetch) {
	defer c.workers.Done()
	defer func() {
		if r := recover(); r != nil {
			c.postResult(FetchErrored{
				Generation: req.Generation,
				Window:     req.Window,
				Err:        fmt.Errorf("fetch panicked: %v", r),
			})
		}
	}()

	feed, err := c.fetcher.Fetch(ctx, req.Window)
	if err != nil {
		c.postResult(FetchErrored{Generation: req.Generation, Window: req.Window, Err: err})
		return
	}
	events := c.transformer.Transform(ctx, feed)
	c.postResult(FetchSucceeded{
		Generation: req.Generation,
		Window:     req.Window,
		Events:     events,
		FetchedAt:  c.clock.Now(),
	})
}

func (c *Controller) armWarning(token uint64) {
	c.stopWarning()
	c.warningTimer = c.clock.AfterFunc(c.warningDwell, func() {
		c.postResult(WarningExpired{Token: token})
	})
}

func (c *Controller) stopWarning() {
	if c.warningTimer != nil {
		c.warningTimer.Stop()
		c.warningTimer = nil
	}
}

// publishSnapshot hands snap to the publisher without blocking the loop.
// Publishes run one at a time in generation order, so the sink never sees an
// older snapshot after a newer one.
func (c *Controller) publishSnapshot(ctx context.Context, snap domain.Snapshot) {
	if c.publisher == nil {
		return
	}
	prev := c.lastPublish
	done := make(chan struct{})
	c.lastPublish = done

	c.workers.Add(1)
	go func() {
		defer c.workers.Done()
		defer close(done)
		if prev != nil {
			<-prev
		}
		pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
		defer cancel()
		if err := c.publisher.Publish(pubCtx, snap); err != nil {
			c.metrics.SnapshotErrors.Inc()
			c.logger.Error("publish snapshot failed",
				"time_window", snap.Window,
				"generation", snap.Generation,
				"error", err,
			)
			return
		}
		c.metrics.SnapshotsPublished.Inc()
	}()
}

func (c *Controller) publishView() {
	v := BuildView(c.state)
	c.view.Store(&v)

	for _, s := range FetchStates {
		value := 0.0
		if s == v.FetchState {
			value = 1
		}
		c.metrics.FetchState.WithLabelValues(s.String()).Set(value)
	}
	if v.WarningVisible {
		c.metrics.WarningVisible.Set(1)
	} else {
		c.metrics.WarningVisible.Set(0)
	}
	c.metrics.VisibleEvents.Set(float64(v.VisibleEvents))

	c.subsMu.Lock()
	defer c.subsMu.Unlock()
	for ch := range c.subs {
		select {
		case <-ch:
		default:
		}
		ch <- v
	}
}
