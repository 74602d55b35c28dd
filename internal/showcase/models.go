package showcase

import (
	"fmt"
	"math"
	"time"
)

// SessionID uniquely identifies a mounted showcase controller.
type SessionID string

// State is the lifecycle state of a playback session.
type State string

const (
	StateTeaser       State = "teaser"
	StateIdle         State = "idle"
	StateDisabled     State = "disabled"
	StateReady        State = "ready"
	StatePlayingSplit State = "playing_split"
	StatePlayingPip   State = "playing_pip"
	StateEnded        State = "ended"
	StateError        State = "error"
)

// IsPlaying reports whether both media are running (split or picture-in-picture).
func (s State) IsPlaying() bool {
	return s == StatePlayingSplit || s == StatePlayingPip
}

// IsTerminal reports whether no further transition can leave s.
func (s State) IsTerminal() bool {
	return s == StateDisabled || s == StateError
}

// Role names one of the two media of a session.
type Role string

const (
	RolePrimary   Role = "primary"
	RoleSecondary Role = "secondary"
)

// ParseRole converts a path or payload value into a Role.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RolePrimary, RoleSecondary:
		return Role(s), nil
	}
	return "", fmt.Errorf("%w: unknown media role %q", ErrInvalidRequest, s)
}

// StartMode selects how the primary media's starting position is computed.
type StartMode string

const (
	StartFixedSeconds StartMode = "fixed_seconds"
	StartHalfDuration StartMode = "half_duration"
)

// StartPolicy computes the anchor offset at play time.
type StartPolicy struct {
	Mode    StartMode `json:"mode" yaml:"mode"`
	Seconds float64   `json:"seconds,omitempty" yaml:"seconds,omitempty"`
}

// Offset returns the primary start position for a primary of the given duration.
func (p StartPolicy) Offset(primaryDuration float64) float64 {
	if p.Mode == StartHalfDuration {
		return primaryDuration / 2
	}
	return p.Seconds
}

// Validate checks the policy is one of the two supported shapes.
func (p StartPolicy) Validate() error {
	switch p.Mode {
	case StartFixedSeconds:
		if math.IsNaN(p.Seconds) || math.IsInf(p.Seconds, 0) {
			return fmt.Errorf("start policy seconds must be finite, got %v", p.Seconds)
		}
		if p.Seconds < 0 {
			return fmt.Errorf("start policy seconds must be >= 0, got %v", p.Seconds)
		}
		return nil
	case StartHalfDuration:
		return nil
	}
	return fmt.Errorf("unknown start policy mode %q", p.Mode)
}

// DefaultPipTransitionDelay is the time spent in split view before the
// primary media is accelerated into the picture-in-picture overlay.
const DefaultPipTransitionDelay = 5 * time.Second

// Props is the construction-time configuration of a controller.
type Props struct {
	PrimarySourceURL   string
	SecondarySourceURL string // empty means absent
	StartPolicy        StartPolicy
	PipTransitionDelay time.Duration
}

// HasSecondary reports whether a secondary media source was configured.
func (p Props) HasSecondary() bool {
	return p.SecondarySourceURL != ""
}

// Validate reports the first problem with p.
func (p Props) Validate() error {
	if p.PrimarySourceURL == "" {
		return fmt.Errorf("%w: primary source url is required", ErrInvalidProps)
	}
	if err := p.StartPolicy.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidProps, err)
	}
	if p.PipTransitionDelay < 0 {
		return fmt.Errorf("%w: pip transition delay must be >= 0", ErrInvalidProps)
	}
	return nil
}

func (p Props) withDefaults() Props {
	if p.PipTransitionDelay == 0 {
		p.PipTransitionDelay = DefaultPipTransitionDelay
	}
	if p.StartPolicy.Mode == "" {
		p.StartPolicy.Mode = StartFixedSeconds
	}
	return p
}

// Hazards describes configurations that are accepted but likely unintended.
// Synchronization stops after opts.SyncWindow regardless of the PiP delay, so a
// longer delay leaves the split view unsynchronized before the transition.
func (p Props) Hazards(opts Options) []string {
	opts = opts.withDefaults()
	var out []string
	if p.withDefaults().PipTransitionDelay > opts.SyncWindow {
		out = append(out, fmt.Sprintf(
			"pip transition delay %s exceeds sync window %s; split view runs unsynchronized for %s",
			p.PipTransitionDelay, opts.SyncWindow, p.PipTransitionDelay-opts.SyncWindow))
	}
	return out
}

// Options holds the controller's timing constants.
type Options struct {
	TeaserDelay    time.Duration
	SyncInterval   time.Duration
	SyncWindow     time.Duration
	DriftThreshold float64 // seconds
	PipRate        float64
	Gate           GateConfig
}

// DefaultOptions returns the stock timing constants.
func DefaultOptions() Options {
	return Options{
		TeaserDelay:    2500 * time.Millisecond,
		SyncInterval:   500 * time.Millisecond,
		SyncWindow:     10 * time.Second,
		DriftThreshold: 0.25,
		PipRate:        5,
		Gate:           DefaultGateConfig(),
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.TeaserDelay <= 0 {
		o.TeaserDelay = d.TeaserDelay
	}
	if o.SyncInterval <= 0 {
		o.SyncInterval = d.SyncInterval
	}
	if o.SyncWindow <= 0 {
		o.SyncWindow = d.SyncWindow
	}
	if o.DriftThreshold <= 0 {
		o.DriftThreshold = d.DriftThreshold
	}
	if o.PipRate <= 0 {
		o.PipRate = d.PipRate
	}
	if o.Gate == (GateConfig{}) {
		o.Gate = d.Gate
	}
	return o
}

// MediaStatus is the observable state of one media handle.
type MediaStatus struct {
	SourceURL string  `json:"source_url,omitempty"`
	Ready     bool    `json:"ready"`
	Duration  float64 `json:"duration_seconds"`
	Position  float64 `json:"position_seconds"`
	Rate      float64 `json:"rate"`
}

// FullscreenStatus passes the fullscreen capability through to hosts.
type FullscreenStatus struct {
	Supported bool `json:"supported"`
	Active    bool `json:"active"`
}

// Snapshot is a point-in-time view of a session for hosts.
type Snapshot struct {
	ID               SessionID        `json:"id,omitempty"`
	State            State            `json:"state"`
	ErrorMessage     string           `json:"error_message,omitempty"`
	AnchorOffset     float64          `json:"anchor_offset_seconds"`
	Primary          MediaStatus      `json:"primary"`
	Secondary        *MediaStatus     `json:"secondary,omitempty"`
	Fullscreen       FullscreenStatus `json:"fullscreen"`
	Controls         Controls         `json:"controls"`
	SyncLoopActive   bool             `json:"sync_loop_active"`
	PipTriggerArmed  bool             `json:"pip_trigger_armed"`
	DriftCorrections int              `json:"drift_corrections"`
}

// Event names what caused a transition.
type Event string

const (
	EventTeaserElapsed Event = "teaser_elapsed"
	EventMediaReady    Event = "media_ready"
	EventPlay          Event = "play"
	EventPipTrigger    Event = "pip_trigger"
	EventMediaEnded    Event = "media_ended"
	EventMediaFailed   Event = "media_failed"
	EventStartFailed   Event = "start_failed"
	EventReplay        Event = "replay"
)

// Transition records one state change.
type Transition struct {
	From  State     `json:"from"`
	To    State     `json:"to"`
	Event Event     `json:"event"`
	At    time.Time `json:"at"`
	Err   string    `json:"error,omitempty"`
}
