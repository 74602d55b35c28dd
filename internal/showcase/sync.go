package showcase

import (
	"log/slog"
	"math"
	"time"

	"showstopper/internal/clock"
)

// syncLoop is the owned handle of the drift-correction loop. The loop re-arms
// a one-shot timer after each tick, so a tick never overlaps another.
type syncLoop struct {
	started  time.Time
	deadline time.Time
	timer    clock.Timer
}

func (l *syncLoop) stop() {
	if l.timer != nil {
		l.timer.Stop()
	}
}

// CorrectDrift decides whether the primary must be hard-seeked. The secondary
// is authoritative: the primary is expected at anchor + secondary position.
func CorrectDrift(anchor, primaryPos, secondaryPos, threshold float64) (target, drift float64, seek bool) {
	target = anchor + secondaryPos
	drift = math.Abs(primaryPos - target)
	return target, drift, drift > threshold
}

func (c *Controller) startSyncLoopLocked() {
	now := c.clock.Now()
	l := &syncLoop{started: now, deadline: now.Add(c.opts.SyncWindow)}
	c.syncLoop = l
	c.scheduleTickLocked(l)
}

func (c *Controller) scheduleTickLocked(l *syncLoop) {
	l.timer = c.clock.AfterFunc(c.opts.SyncInterval, func() { c.syncTick(l) })
}

func (c *Controller) syncTick(l *syncLoop) {
	c.mu.Lock()
	defer c.unlock()

	if c.syncLoop != l || c.unmounted || !c.state.IsPlaying() {
		return
	}

	now := c.clock.Now()
	if now.After(l.deadline) {
		c.syncLoop = nil
		c.log.Debug("sync window closed",
			slog.Duration("window", c.opts.SyncWindow),
			slog.Int("corrections", c.corrections))
		return
	}

	target, drift, seek := CorrectDrift(c.anchorOffset, c.primary.Position(), c.secondary.Position(), c.opts.DriftThreshold)
	if seek {
		c.primary.Seek(target)
		c.corrections++
		c.log.Debug("drift corrected",
			slog.Float64("drift_seconds", drift),
			slog.Float64("target_seconds", target),
			slog.Duration("elapsed", now.Sub(l.started)))
		if c.observer != nil {
			obs, id := c.observer, c.id
			c.pending = append(c.pending, func() { obs.OnDriftCorrection(id, drift) })
		}
	}
	c.scheduleTickLocked(l)
}

// armPipTriggerLocked schedules the single split-to-PiP transition for this
// entry into playing_split.
func (c *Controller) armPipTriggerLocked() {
	c.pipTrigger.stop()
	h := &timerHandle{}
	h.timer = c.clock.AfterFunc(c.props.PipTransitionDelay, func() { c.pipFired(h) })
	c.pipTrigger = h
}

func (c *Controller) pipFired(h *timerHandle) {
	c.mu.Lock()
	defer c.unlock()

	if c.pipTrigger != h {
		return
	}
	c.pipTrigger = nil
	if c.unmounted || c.state != StatePlayingSplit {
		return
	}
	c.primary.SetRate(c.opts.PipRate)
	c.transitionLocked(StatePlayingPip, EventPipTrigger, nil)
}
