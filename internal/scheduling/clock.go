package scheduling

import "time"

// Clock supplies "now" to every operation so tolerance and expiry logic
// is deterministic under test. Production wiring uses SystemClock.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

var SystemClock Clock = systemClock{}
