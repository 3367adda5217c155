// Package clock abstracts the timer operations the interpreter paces
// itself with. Production code uses Real; tests use Fake and move time
// forward explicitly.
package clock

import "time"

// Clock is the subset of the time package the interpreter needs.
type Clock interface {
	Now() time.Time

	// AfterFunc calls f once d has elapsed. The returned Timer can
	// cancel a pending call.
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer is a pending AfterFunc call.
type Timer interface {
	// Stop cancels the call. Returns false if it already fired or was
	// already stopped.
	Stop() bool
}

// Real returns a Clock backed by the time package.
func Real() Clock {
	return realClock{}
}

type realClock struct{}

func (realClock) Now() time.Time {
	return time.Now()
}

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
