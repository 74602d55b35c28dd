package showcase

import (
	"errors"
	"fmt"
)

var (
	// ErrPlaybackStart is recorded when the joint start of both media is
	// rejected. It is not attributed to either media.
	ErrPlaybackStart = errors.New("playback could not start")

	// ErrInvalidProps is wrapped by Props.Validate failures.
	ErrInvalidProps = errors.New("invalid showcase props")

	// ErrSessionNotFound is returned for unknown session ids.
	ErrSessionNotFound = errors.New("session not found")

	// ErrUnknownPreset is returned when a session names a showcase that is not
	// in the catalog.
	ErrUnknownPreset = errors.New("unknown showcase preset")

	// ErrInvalidRequest is wrapped by malformed host requests.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrFullscreenUnsupported is returned by Toggle on surfaces without
	// fullscreen support.
	ErrFullscreenUnsupported = errors.New("fullscreen not supported")
)

// MediaLoadError reports that one of the two media failed to load or play.
type MediaLoadError struct {
	Role Role
	Err  error
}

func (e *MediaLoadError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s media failed", e.Role)
	}
	return fmt.Sprintf("%s media failed: %v", e.Role, e.Err)
}

func (e *MediaLoadError) Unwrap() error {
	return e.Err
}
