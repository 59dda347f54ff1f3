package coopsched

import (
	"time"
)

// Clock is the scheduler's only input from its host environment. The driver
// uses Now for timer eligibility and After to park until the next eligible
// timer. Implementations must be monotonic: Now must never move backwards.
//
// The default clock is the system monotonic clock. Inject a manual clock via
// [WithClock] for deterministic tests.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// After returns a channel that delivers once d has elapsed.
	After(d time.Duration) <-chan time.Time
}

// systemClock implements Clock using the runtime's monotonic clock.
type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now()
}

func (systemClock) After(d time.Duration) <-chan time.Time {
	return time.After(d)
}
