// Package clock abstracts wall-clock time and one-shot timers so timer-driven
// code can be tested deterministically.
package clock

import "time"

// Clock is the source of time and timers.
type Clock interface {
	Now() time.Time
	// AfterFunc calls f on its own goroutine (or, for Mock, the advancing
	// goroutine) once d has elapsed.
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer is a handle to a pending AfterFunc call.
type Timer interface {
	// Stop prevents the call from firing. It reports whether the call was
	// still pending.
	Stop() bool
}

type realClock struct{}

// Real returns a Clock backed by the time package.
func Real() Clock { return realClock{} }

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
