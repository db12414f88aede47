package alarm

import "time"

// State represents the summary alarm at a specific point in time.
type State struct {
	// Timestamp is when the alarm was last armed or disarmed.
	Timestamp time.Time
	// Next is when the outstanding timer fires; zero when disarmed.
	Next time.Time
	// Period is the interval between fires.
	Period time.Duration
	// IsEnabled indicates whether a timer is outstanding.
	IsEnabled bool
}

// Status returns "armed" or "disarmed".
func (s State) Status() string {
	if s.IsEnabled {
		return "armed"
	}

	return "disarmed"
}

// Remaining returns the time left until the next fire, never negative.
func (s State) Remaining(now time.Time) time.Duration {
	if !s.IsEnabled || s.Next.IsZero() {
		return 0
	}

	return max(s.Next.Sub(now), 0)
}
