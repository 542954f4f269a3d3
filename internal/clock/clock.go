// Package clock lets services read the current time through an interface so
// tests can pin it.
package clock

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// Clock returns the current instant.  Any clockwork.Clock satisfies it.
type Clock interface {
	Now() time.Time
}

type utcClock struct{ clockwork.Clock }

func (c utcClock) Now() time.Time { return c.Clock.Now().UTC() }

// NewSystem returns the wall clock, always in UTC.
func NewSystem() Clock {
	return utcClock{clockwork.NewRealClock()}
}

// NewFixed returns a clock frozen at t until advanced.
func NewFixed(t time.Time) *clockwork.FakeClock {
	return clockwork.NewFakeClockAt(t.UTC())
}
