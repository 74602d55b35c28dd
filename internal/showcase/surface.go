package showcase

// Layout is how the two media are arranged on the playback surface.
type Layout string

const (
	LayoutTeaser Layout = "teaser"
	LayoutPoster Layout = "poster"
	LayoutSplit  Layout = "split"
	LayoutPip    Layout = "pip"
)

// Controls is the overlay view model a host renders for the current state.
type Controls struct {
	Layout       Layout `json:"layout"`
	Play         Button `json:"play"`
	Replay       Button `json:"replay"`
	Reload       Button `json:"reload"`
	Fullscreen   Button `json:"fullscreen"`
	Loading      bool   `json:"loading"`
	Message      string `json:"message,omitempty"`
	ShowComplete bool   `json:"show_complete"`
}

// Button is a control's visibility and whether pressing it does anything.
type Button struct {
	Visible bool `json:"visible"`
	Enabled bool `json:"enabled"`
}

// BuildControls converts a state into the controls the host should show.
// In disabled the play button stays visible but inert; in error only the
// reload affordance is offered and no split view is shown.
func BuildControls(state State, fullscreenSupported bool, errorMessage string) Controls {
	c := Controls{Layout: LayoutPoster}

	switch state {
	case StateTeaser:
		c.Layout = LayoutTeaser
	case StateIdle:
		c.Play = Button{Visible: true}
		c.Loading = true
	case StateDisabled:
		c.Play = Button{Visible: true}
		c.Message = "comparison video unavailable"
	case StateReady:
		c.Play = Button{Visible: true, Enabled: true}
	case StatePlayingSplit:
		c.Layout = LayoutSplit
	case StatePlayingPip:
		c.Layout = LayoutPip
	case StateEnded:
		c.Layout = LayoutPip
		c.Replay = Button{Visible: true, Enabled: true}
		c.ShowComplete = true
	case StateError:
		c.Reload = Button{Visible: true, Enabled: true}
		c.Message = errorMessage
		if c.Message == "" {
			c.Message = "playback failed"
		}
	}

	if fullscreenSupported && state != StateTeaser && state != StateError {
		c.Fullscreen = Button{Visible: true, Enabled: true}
	}
	return c
}
