package media

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	"showstopper/internal/clock"
)

// ErrNotLoaded is returned by Play before Load has succeeded.
var ErrNotLoaded = errors.New("media: not loaded")

// Virtual is a headless player whose playhead advances with the clock.
// Duration is learned once from a Prober and never changes afterwards.
type Virtual struct {
	url    string
	prober Prober
	clock  clock.Clock

	mu       sync.Mutex
	loaded   bool
	duration float64
	playing  bool
	base     float64   // playhead at anchor
	anchor   time.Time // clock reading when base was captured
	rate     float64
	playErr  error
	onEnded  func()
	endTimer clock.Timer
	endGen   uint64
}

// NewVirtual returns a paused player for url at position 0 and rate 1.
// clk may be nil for the real clock.
func NewVirtual(url string, prober Prober, clk clock.Clock) *Virtual {
	if clk == nil {
		clk = clock.Real()
	}
	return &Virtual{url: url, prober: prober, clock: clk, rate: 1}
}

// SourceURL returns the immutable source URL.
func (v *Virtual) SourceURL() string { return v.url }

// OnEnded registers the natural-completion callback. It runs without the
// player's lock held.
func (v *Virtual) OnEnded(f func()) {
	v.mu.Lock()
	v.onEnded = f
	v.mu.Unlock()
}

// SetPlayError makes subsequent Play calls fail with err (nil clears it).
// Hosts use it to simulate a media element refusing to start.
func (v *Virtual) SetPlayError(err error) {
	v.mu.Lock()
	v.playErr = err
	v.mu.Unlock()
}

// Load probes the source duration. Repeated calls after a success are no-ops.
func (v *Virtual) Load(ctx context.Context) error {
	v.mu.Lock()
	loaded := v.loaded
	v.mu.Unlock()
	if loaded {
		return nil
	}
	if v.url == "" {
		return ErrNoSource
	}

	seconds, err := v.prober.Probe(ctx, v.url)
	if err != nil {
		return err
	}

	v.mu.Lock()
	if !v.loaded {
		v.duration = seconds
		v.loaded = true
	}
	v.mu.Unlock()
	return nil
}

// Ready reports whether Load has succeeded.
func (v *Virtual) Ready() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.loaded
}

// Duration returns the media length in seconds, 0 before load.
func (v *Virtual) Duration() float64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.duration
}

// Play starts the playhead from its current position. A player sitting at
// its end finishes again immediately; callers rewind with Seek(0).
func (v *Virtual) Play(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	if !v.loaded {
		return ErrNotLoaded
	}
	if v.playErr != nil {
		return v.playErr
	}
	if v.playing {
		return nil
	}
	v.playing = true
	v.anchor = v.clock.Now()
	v.armEndLocked()
	return nil
}

// Pause freezes the playhead.
func (v *Virtual) Pause() {
	v.mu.Lock()
	defer v.mu.Unlock()

	if !v.playing {
		return
	}
	v.base = v.positionLocked()
	v.playing = false
	v.disarmEndLocked()
}

// Paused reports whether the playhead is frozen.
func (v *Virtual) Paused() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return !v.playing
}

// Seek moves the playhead, clamped to [0, duration]. NaN is ignored.
func (v *Virtual) Seek(seconds float64) {
	if math.IsNaN(seconds) {
		return
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	if seconds < 0 {
		seconds = 0
	}
	if v.loaded && seconds > v.duration {
		seconds = v.duration
	}
	v.base = seconds
	if v.playing {
		v.anchor = v.clock.Now()
		v.armEndLocked()
	}
}

// Position returns the playhead in seconds.
func (v *Virtual) Position() float64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.positionLocked()
}

// SetRate changes the playback rate; the playhead keeps its position.
func (v *Virtual) SetRate(rate float64) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.playing {
		v.base = v.positionLocked()
		v.anchor = v.clock.Now()
	}
	v.rate = rate
	if v.playing {
		v.armEndLocked()
	}
}

// Rate returns the playback rate.
func (v *Virtual) Rate() float64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.rate
}

func (v *Virtual) positionLocked() float64 {
	if !v.playing {
		return v.base
	}
	pos := v.base + v.clock.Now().Sub(v.anchor).Seconds()*v.rate
	if v.loaded && pos > v.duration {
		pos = v.duration
	}
	return pos
}

func (v *Virtual) armEndLocked() {
	v.disarmEndLocked()
	if v.rate <= 0 {
		return
	}
	remaining := (v.duration - v.base) / v.rate
	if remaining < 0 {
		remaining = 0
	}
	gen := v.endGen
	v.endTimer = v.clock.AfterFunc(time.Duration(remaining*float64(time.Second)), func() {
		v.finish(gen)
	})
}

func (v *Virtual) disarmEndLocked() {
	v.endGen++
	if v.endTimer != nil {
		v.endTimer.Stop()
		v.endTimer = nil
	}
}

func (v *Virtual) finish(gen uint64) {
	v.mu.Lock()
	if gen != v.endGen || !v.playing {
		v.mu.Unlock()
		return
	}
	v.base = v.duration
	v.playing = false
	v.endTimer = nil
	cb := v.onEnded
	v.mu.Unlock()

	if cb != nil {
		cb()
	}
}
