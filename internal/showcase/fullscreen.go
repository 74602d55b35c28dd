package showcase

import (
	"context"
	"sync"
)

// Fullscreen is the capability for taking the playback surface fullscreen.
// Implementations may fail; the controller never lets a failure reach
// playback state.
type Fullscreen interface {
	IsFullscreen() bool
	Toggle(ctx context.Context) error
	IsSupported() bool
}

// HostFullscreen mirrors the fullscreen state of a remote host surface.
type HostFullscreen struct {
	supported bool

	mu     sync.Mutex
	active bool
}

// NewHostFullscreen returns a capability whose support is declared by the host.
func NewHostFullscreen(supported bool) *HostFullscreen {
	return &HostFullscreen{supported: supported}
}

// IsSupported implements Fullscreen.
func (f *HostFullscreen) IsSupported() bool { return f.supported }

// IsFullscreen implements Fullscreen.
func (f *HostFullscreen) IsFullscreen() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.active
}

// Toggle implements Fullscreen.
func (f *HostFullscreen) Toggle(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !f.supported {
		return ErrFullscreenUnsupported
	}
	f.mu.Lock()
	f.active = !f.active
	f.mu.Unlock()
	return nil
}

type noFullscreen struct{}

func (noFullscreen) IsFullscreen() bool { return false }

func (noFullscreen) Toggle(context.Context) error { return ErrFullscreenUnsupported }

func (noFullscreen) IsSupported() bool { return false }
