package showcase

import "testing"

func TestBuildControls(t *testing.T) {
	tests := []struct {
		state      State
		layout     Layout
		play       Button
		replay     bool
		reload     bool
		fullscreen bool
		message    string
		complete   bool
	}{
		{StateTeaser, LayoutTeaser, Button{}, false, false, false, "", false},
		{StateIdle, LayoutPoster, Button{Visible: true}, false, false, true, "", false},
		{StateDisabled, LayoutPoster, Button{Visible: true}, false, false, true, "comparison video unavailable", false},
		{StateReady, LayoutPoster, Button{Visible: true, Enabled: true}, false, false, true, "", false},
		{StatePlayingSplit, LayoutSplit, Button{}, false, false, true, "", false},
		{StatePlayingPip, LayoutPip, Button{}, false, false, true, "", false},
		{StateEnded, LayoutPip, Button{}, true, false, true, "", true},
		{StateError, LayoutPoster, Button{}, false, true, false, "boom", false},
	}
	for _, tt := range tests {
		t.Run(string(tt.state), func(t *testing.T) {
			c := BuildControls(tt.state, true, "boom")
			if c.Layout != tt.layout {
				t.Errorf("Layout = %s, want %s", c.Layout, tt.layout)
			}
			if c.Play != tt.play {
				t.Errorf("Play = %+v, want %+v", c.Play, tt.play)
			}
			if c.Replay.Visible != tt.replay {
				t.Errorf("Replay.Visible = %v, want %v", c.Replay.Visible, tt.replay)
			}
			if c.Reload.Visible != tt.reload {
				t.Errorf("Reload.Visible = %v, want %v", c.Reload.Visible, tt.reload)
			}
			if c.Fullscreen.Visible != tt.fullscreen {
				t.Errorf("Fullscreen.Visible = %v, want %v", c.Fullscreen.Visible, tt.fullscreen)
			}
			if c.Message != tt.message {
				t.Errorf("Message = %q, want %q", c.Message, tt.message)
			}
			if c.ShowComplete != tt.complete {
				t.Errorf("ShowComplete = %v, want %v", c.ShowComplete, tt.complete)
			}
		})
	}
}

func TestBuildControls_errorDefaultMessage(t *testing.T) {
	c := BuildControls(StateError, false, "")
	if c.Message != "playback failed" {
		t.Errorf("Message = %q", c.Message)
	}
}

func TestBuildControls_noFullscreenSupport(t *testing.T) {
	if c := BuildControls(StatePlayingSplit, false, ""); c.Fullscreen.Visible {
		t.Error("fullscreen button shown without support")
	}
}
