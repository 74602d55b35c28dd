package showcase

import (
	"context"
	"sync"
)

// fakeMedia is a Media whose playhead only moves when a test moves it.
type fakeMedia struct {
	mu       sync.Mutex
	duration float64
	pos      float64
	rate     float64
	playing  bool
	loadErr  error
	playErr  error
	playGate chan struct{}
	seeks    []float64
}

func newFakeMedia(duration float64) *fakeMedia {
	return &fakeMedia{duration: duration, rate: 1}
}

func (f *fakeMedia) Load(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loadErr
}

func (f *fakeMedia) Play(ctx context.Context) error {
	f.mu.Lock()
	gate := f.playGate
	f.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.playErr != nil {
		return f.playErr
	}
	f.playing = true
	return nil
}

func (f *fakeMedia) Pause() {
	f.mu.Lock()
	f.playing = false
	f.mu.Unlock()
}

func (f *fakeMedia) Seek(seconds float64) {
	f.mu.Lock()
	f.pos = seconds
	f.seeks = append(f.seeks, seconds)
	f.mu.Unlock()
}

func (f *fakeMedia) Position() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pos
}

func (f *fakeMedia) SetRate(rate float64) {
	f.mu.Lock()
	f.rate = rate
	f.mu.Unlock()
}

func (f *fakeMedia) Rate() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rate
}

func (f *fakeMedia) Duration() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.duration
}

func (f *fakeMedia) setPosition(seconds float64) {
	f.mu.Lock()
	f.pos = seconds
	f.mu.Unlock()
}

func (f *fakeMedia) isPlaying() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.playing
}

func (f *fakeMedia) seekCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.seeks)
}

func (f *fakeMedia) lastSeek() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.seeks) == 0 {
		return -1
	}
	return f.seeks[len(f.seeks)-1]
}

// recordingObserver keeps every notification it receives.
type recordingObserver struct {
	mu          sync.Mutex
	transitions []Transition
	drifts      []float64
}

func (o *recordingObserver) OnTransition(id SessionID, t Transition) {
	o.mu.Lock()
	o.transitions = append(o.transitions, t)
	o.mu.Unlock()
}

func (o *recordingObserver) OnDriftCorrection(id SessionID, drift float64) {
	o.mu.Lock()
	o.drifts = append(o.drifts, drift)
	o.mu.Unlock()
}

func (o *recordingObserver) states() []State {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]State, 0, len(o.transitions))
	for _, t := range o.transitions {
		out = append(out, t.To)
	}
	return out
}
