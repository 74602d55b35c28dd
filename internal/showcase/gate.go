package showcase

import "sync"

// GateConfig tunes when the visibility gate opens.
type GateConfig struct {
	// RootMargin expands the viewport on every side, in pixels, so preloading
	// starts slightly before the region scrolls into view.
	RootMargin float64
	// Threshold is the minimal visible fraction of the region.
	Threshold float64
}

// DefaultGateConfig returns a 200px margin and a 1% threshold.
func DefaultGateConfig() GateConfig {
	return GateConfig{RootMargin: 200, Threshold: 0.01}
}

// Rect is an axis-aligned box in page pixels.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Entry is one intersection observation.
type Entry struct {
	Intersecting bool    `json:"intersecting"`
	Ratio        float64 `json:"ratio"`
}

// Intersect computes the observation for target against viewport grown by
// margin on each side.
func Intersect(target, viewport Rect, margin float64) Entry {
	vx0, vy0 := viewport.X-margin, viewport.Y-margin
	vx1, vy1 := viewport.X+viewport.Width+margin, viewport.Y+viewport.Height+margin
	tx1, ty1 := target.X+target.Width, target.Y+target.Height

	w := min(vx1, tx1) - max(vx0, target.X)
	h := min(vy1, ty1) - max(vy0, target.Y)
	if w < 0 || h < 0 {
		return Entry{}
	}

	area := target.Width * target.Height
	if area <= 0 {
		// Degenerate target touching the viewport.
		return Entry{Intersecting: true, Ratio: 1}
	}
	return Entry{Intersecting: true, Ratio: (w * h) / area}
}

// Gate emits a single "entered view" signal and then stays latched.
type Gate struct {
	cfg     GateConfig
	onEnter func()

	mu      sync.Mutex
	entered bool
}

// NewGate returns a closed gate calling onEnter on first entry.
func NewGate(cfg GateConfig, onEnter func()) *Gate {
	return &Gate{cfg: cfg, onEnter: onEnter}
}

// Observe feeds one observation and reports whether it opened the gate.
func (g *Gate) Observe(e Entry) bool {
	g.mu.Lock()
	if g.entered || !e.Intersecting || e.Ratio < g.cfg.Threshold {
		g.mu.Unlock()
		return false
	}
	g.entered = true
	g.mu.Unlock()

	if g.onEnter != nil {
		g.onEnter()
	}
	return true
}

// ObserveRects computes the observation from geometry using the gate's margin.
func (g *Gate) ObserveRects(target, viewport Rect) bool {
	return g.Observe(Intersect(target, viewport, g.cfg.RootMargin))
}

// Entered reports whether the gate has opened.
func (g *Gate) Entered() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.entered
}
