// Package showcase implements the before/after showstopper: a controller that
// preloads two independently encoded videos, plays them together in a
// synchronized split view, accelerates the primary into a picture-in-picture
// overlay, and tears everything down on end, error, replay or unmount.
package showcase

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"showstopper/internal/clock"
)

// Media is a playable media handle. A Controller owns its two handles
// exclusively; nothing else may move their position or rate.
type Media interface {
	// Load fetches metadata; Duration is valid afterwards.
	Load(ctx context.Context) error
	Play(ctx context.Context) error
	Pause()
	Seek(seconds float64)
	Position() float64
	SetRate(rate float64)
	Rate() float64
	Duration() float64
}

// Observer is told about every transition and drift correction. Calls happen
// after the controller's lock is released, in the order they occurred.
// Observers must not call back into the controller.
type Observer interface {
	OnTransition(id SessionID, t Transition)
	OnDriftCorrection(id SessionID, drift float64)
}

// Option customizes a Controller.
type Option func(*Controller)

// WithID tags the controller's logs and notifications.
func WithID(id SessionID) Option {
	return func(c *Controller) { c.id = id }
}

// WithClock replaces the real clock.
func WithClock(clk clock.Clock) Option {
	return func(c *Controller) { c.clock = clk }
}

// WithLogger sets the base logger.
func WithLogger(log *slog.Logger) Option {
	return func(c *Controller) { c.log = log }
}

// WithObserver registers an observer.
func WithObserver(o Observer) Option {
	return func(c *Controller) { c.observer = o }
}

// WithFullscreen supplies the surface's fullscreen capability.
func WithFullscreen(f Fullscreen) Option {
	return func(c *Controller) { c.fullscreen = f }
}

// timerHandle is an owned one-shot timer slot. A callback whose handle is no
// longer the one held by the controller is stale and does nothing.
type timerHandle struct {
	timer clock.Timer
}

func (h *timerHandle) stop() {
	if h != nil && h.timer != nil {
		h.timer.Stop()
	}
}

// Controller is the playback state machine of one mounted showcase.
// All events are serialized by mu, which stands in for a single execution
// thread: user intents, timer fires, loop ticks and media signals never
// interleave within a transition.
type Controller struct {
	id         SessionID
	props      Props
	opts       Options
	clock      clock.Clock
	log        *slog.Logger
	observer   Observer
	fullscreen Fullscreen
	gate       *Gate

	primary   Media
	secondary Media // nil when props has no secondary source

	notifyMu sync.Mutex // orders observer delivery across goroutines

	mu             sync.Mutex
	state          State
	errMessage     string
	anchorOffset   float64
	primaryReady   bool
	secondaryReady bool
	starting       bool
	unmounted      bool
	epoch          uint64 // bumped whenever playback handles are cancelled
	teaser         *timerHandle
	syncLoop       *syncLoop
	pipTrigger     *timerHandle
	preloadCancel  context.CancelFunc
	corrections    int
	pending        []func()
}

// New mounts a controller in the teaser state. secondary is ignored when
// props has no secondary source; it is required otherwise.
func New(props Props, primary, secondary Media, opts Options, options ...Option) (*Controller, error) {
	if err := props.Validate(); err != nil {
		return nil, err
	}
	if primary == nil {
		return nil, fmt.Errorf("%w: primary media handle is required", ErrInvalidProps)
	}
	if !props.HasSecondary() {
		secondary = nil
	} else if secondary == nil {
		return nil, fmt.Errorf("%w: secondary media handle is required for %s", ErrInvalidProps, props.SecondarySourceURL)
	}

	c := &Controller{
		props:      props.withDefaults(),
		opts:       opts.withDefaults(),
		clock:      clock.Real(),
		fullscreen: noFullscreen{},
		primary:    primary,
		secondary:  secondary,
		state:      StateTeaser,
	}
	for _, o := range options {
		o(c)
	}
	if c.log == nil {
		c.log = slog.Default()
	}
	c.log = c.log.With(slog.String("component", "showcase"), slog.String("session_id", string(c.id)))
	c.gate = NewGate(c.opts.Gate, c.ViewEntered)

	for _, h := range c.props.Hazards(c.opts) {
		c.log.Warn("showcase configuration hazard", slog.String("hazard", h))
	}
	return c, nil
}

// ID returns the session id given at construction.
func (c *Controller) ID() SessionID { return c.id }

// Props returns the construction-time props with defaults applied.
func (c *Controller) Props() Props { return c.props }

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// ObserveViewport feeds the visibility gate one intersection observation.
func (c *Controller) ObserveViewport(e Entry) bool {
	return c.gate.Observe(e)
}

// ObserveRects feeds the visibility gate region and viewport geometry.
func (c *Controller) ObserveRects(target, viewport Rect) bool {
	return c.gate.ObserveRects(target, viewport)
}

// ViewEntered arms the teaser delay. Only the first call has an effect.
func (c *Controller) ViewEntered() {
	c.mu.Lock()
	defer c.unlock()

	if c.unmounted || c.state != StateTeaser || c.teaser != nil {
		return
	}
	h := &timerHandle{}
	h.timer = c.clock.AfterFunc(c.opts.TeaserDelay, func() { c.teaserElapsed(h) })
	c.teaser = h
	c.log.Debug("showcase entered view", slog.Duration("teaser_delay", c.opts.TeaserDelay))
}

func (c *Controller) teaserElapsed(h *timerHandle) {
	c.mu.Lock()
	defer c.unlock()

	if c.teaser != h {
		return
	}
	c.teaser = nil
	if c.unmounted || c.state != StateTeaser {
		return
	}

	if c.secondary != nil {
		c.transitionLocked(StateIdle, EventTeaserElapsed, nil)
	} else {
		c.transitionLocked(StateDisabled, EventTeaserElapsed, nil)
	}
	c.preloadLocked()
}

// preloadLocked starts loading every configured media. Results come back
// through MediaReady and MediaFailed. Nothing is retried.
func (c *Controller) preloadLocked() {
	ctx, cancel := context.WithCancel(context.Background())
	c.preloadCancel = cancel

	load := func(role Role, m Media) {
		err := m.Load(ctx)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			c.MediaFailed(role, err)
			return
		}
		c.MediaReady(role)
	}

	go load(RolePrimary, c.primary)
	if c.secondary != nil {
		go load(RoleSecondary, c.secondary)
	}
}

// MediaReady records the first playable signal of a media. Readiness is never
// reset. With both media ready an idle session becomes ready.
func (c *Controller) MediaReady(role Role) {
	c.mu.Lock()
	defer c.unlock()

	if c.unmounted {
		return
	}
	switch role {
	case RolePrimary:
		c.primaryReady = true
	case RoleSecondary:
		if c.secondary == nil {
			return
		}
		c.secondaryReady = true
	default:
		return
	}

	if c.state == StateIdle && c.primaryReady && c.secondaryReady {
		c.transitionLocked(StateReady, EventMediaReady, nil)
	}
}

// Play starts both media from the computed anchor and returns the resulting
// state. It is a no-op outside ready. Either media refusing to start sends the
// session to error with both media paused; a half-started split view is never
// left behind.
func (c *Controller) Play(ctx context.Context) State {
	c.mu.Lock()
	if c.unmounted || c.starting || c.state != StateReady || c.secondary == nil {
		state := c.state
		c.unlock()
		return state
	}

	c.cancelPlaybackLocked()
	duration := c.primary.Duration()
	c.anchorOffset = c.props.StartPolicy.Offset(duration)
	if c.anchorOffset > duration {
		// The snapshot must report where the primary actually sits.
		c.log.Warn("start anchor past primary duration; clamped",
			slog.Float64("anchor", c.anchorOffset),
			slog.Float64("duration", duration))
		c.anchorOffset = duration
	}
	c.primary.Seek(c.anchorOffset)
	c.secondary.Seek(0)
	c.starting = true
	epoch := c.epoch
	c.unlock()

	err := c.startBoth(ctx)

	c.mu.Lock()
	defer c.unlock()
	c.starting = false

	if c.unmounted || c.epoch != epoch || c.state != StateReady {
		// The session moved on while the media were starting.
		c.primary.Pause()
		c.secondary.Pause()
		return c.state
	}
	if err != nil {
		c.primary.Pause()
		c.secondary.Pause()
		c.log.Warn("joint media start rejected", slog.String("error", err.Error()))
		c.failLocked(EventStartFailed, ErrPlaybackStart)
		return c.state
	}

	c.transitionLocked(StatePlayingSplit, EventPlay, nil)
	c.startSyncLoopLocked()
	c.armPipTriggerLocked()
	return c.state
}

// startBoth issues both start commands concurrently and reports one combined
// result.
func (c *Controller) startBoth(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return c.primary.Play(gctx) })
	g.Go(func() error { return c.secondary.Play(gctx) })
	return g.Wait()
}

// MediaEnded handles natural completion. Only the secondary's completion ends
// a playing session.
func (c *Controller) MediaEnded(role Role) {
	c.mu.Lock()
	defer c.unlock()

	if c.unmounted || role != RoleSecondary || !c.state.IsPlaying() {
		return
	}
	c.cancelPlaybackLocked()
	c.primary.Pause()
	c.primary.SetRate(1)
	c.transitionLocked(StateEnded, EventMediaEnded, nil)
}

// MediaFailed moves the session to error when a media fails to load or play.
func (c *Controller) MediaFailed(role Role, err error) {
	c.mu.Lock()
	defer c.unlock()

	if c.unmounted {
		return
	}
	switch c.state {
	case StateIdle, StateReady, StatePlayingSplit, StatePlayingPip, StateEnded:
	default:
		return
	}
	c.pauseAllLocked()
	c.failLocked(EventMediaFailed, &MediaLoadError{Role: role, Err: err})
}

// Replay rewinds an ended session back to ready.
func (c *Controller) Replay() State {
	c.mu.Lock()
	defer c.unlock()

	if c.unmounted || c.state != StateEnded {
		return c.state
	}
	c.cancelPlaybackLocked()
	c.pauseAllLocked()
	c.primary.Seek(0)
	c.secondary.Seek(0)
	c.primary.SetRate(1)
	c.transitionLocked(StateReady, EventReplay, nil)
	return c.state
}

// ToggleFullscreen passes through to the fullscreen capability. Failures are
// logged and swallowed; playback state is never affected.
func (c *Controller) ToggleFullscreen(ctx context.Context) FullscreenStatus {
	if err := c.fullscreen.Toggle(ctx); err != nil {
		c.log.Warn("fullscreen toggle failed", slog.String("error", err.Error()))
	}
	return FullscreenStatus{Supported: c.fullscreen.IsSupported(), Active: c.fullscreen.IsFullscreen()}
}

// Unmount releases every timer, loop and in-flight preload. Later events are
// ignored. Safe to call more than once.
func (c *Controller) Unmount() {
	c.mu.Lock()
	defer c.unlock()

	if c.unmounted {
		return
	}
	c.unmounted = true
	c.teaser.stop()
	c.teaser = nil
	c.cancelPlaybackLocked()
	if c.preloadCancel != nil {
		c.preloadCancel()
		c.preloadCancel = nil
	}
	c.pauseAllLocked()
	c.log.Debug("showcase unmounted", slog.String("state", string(c.state)))
}

// Snapshot returns the observable state for hosts.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Snapshot{
		ID:           c.id,
		State:        c.state,
		ErrorMessage: c.errMessage,
		AnchorOffset: c.anchorOffset,
		Primary:      mediaStatus(c.primary, c.props.PrimarySourceURL, c.primaryReady),
		Fullscreen: FullscreenStatus{
			Supported: c.fullscreen.IsSupported(),
			Active:    c.fullscreen.IsFullscreen(),
		},
		Controls:         BuildControls(c.state, c.fullscreen.IsSupported(), c.errMessage),
		SyncLoopActive:   c.syncLoop != nil,
		PipTriggerArmed:  c.pipTrigger != nil,
		DriftCorrections: c.corrections,
	}
	if c.secondary != nil {
		st := mediaStatus(c.secondary, c.props.SecondarySourceURL, c.secondaryReady)
		s.Secondary = &st
	}
	return s
}

func mediaStatus(m Media, url string, ready bool) MediaStatus {
	return MediaStatus{
		SourceURL: url,
		Ready:     ready,
		Duration:  m.Duration(),
		Position:  m.Position(),
		Rate:      m.Rate(),
	}
}

// cancelPlaybackLocked clears the sync loop and PiP trigger slots. It runs
// before every state change out of a playing state; handles that were never
// armed are fine.
func (c *Controller) cancelPlaybackLocked() {
	c.epoch++
	if c.syncLoop != nil {
		c.syncLoop.stop()
		c.syncLoop = nil
	}
	c.pipTrigger.stop()
	c.pipTrigger = nil
}

func (c *Controller) pauseAllLocked() {
	c.primary.Pause()
	if c.secondary != nil {
		c.secondary.Pause()
	}
}

func (c *Controller) failLocked(ev Event, err error) {
	c.cancelPlaybackLocked()
	if c.preloadCancel != nil {
		c.preloadCancel()
		c.preloadCancel = nil
	}
	c.errMessage = err.Error()
	c.transitionLocked(StateError, ev, err)
}

func (c *Controller) transitionLocked(to State, ev Event, err error) {
	from := c.state
	c.state = to

	t := Transition{From: from, To: to, Event: ev, At: c.clock.Now()}
	attrs := []any{
		slog.String("from", string(from)),
		slog.String("to", string(to)),
		slog.String("event", string(ev)),
	}
	if err != nil {
		t.Err = err.Error()
		attrs = append(attrs, slog.String("error", t.Err))
	}
	c.log.Info("showcase transition", attrs...)

	if c.observer != nil {
		obs, id := c.observer, c.id
		c.pending = append(c.pending, func() { obs.OnTransition(id, t) })
	}
}

// unlock releases mu and then delivers queued observer notifications.
func (c *Controller) unlock() {
	pending := c.pending
	c.pending = nil
	if len(pending) == 0 {
		c.mu.Unlock()
		return
	}

	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()
	c.mu.Unlock()
	for _, f := range pending {
		f()
	}
}
