// Package backoff computes reconnection delays.
package backoff

import "time"

// Defaults for the reconnection policy.
const (
	DefaultBase        = 1 * time.Second
	DefaultMax         = 30 * time.Second
	DefaultMaxAttempts = 3
)

// Policy is a quadratic backoff with a ceiling on the delay and on the
// number of retries. It holds no state.
type Policy struct {
	Base        time.Duration // delay for attempt 0
	Max         time.Duration // cap on any single delay
	MaxAttempts int           // retries allowed before giving up
}

// DefaultPolicy returns the standard reconnection policy.
func DefaultPolicy() Policy {
	return Policy{
		Base:        DefaultBase,
		Max:         DefaultMax,
		MaxAttempts: DefaultMaxAttempts,
	}
}

// Delay returns Base * (attempt+1)^2, capped at Max. attempt is 0-based.
func (p Policy) Delay(attempt int) time.Duration {
	if p.Base <= 0 {
		return 0
	}
	if attempt < 0 {
		attempt = 0
	}
	n := int64(attempt + 1)

	// Anything past the cap is the cap; checking first avoids overflow.
	if p.Max > 0 && n > int64(p.Max/p.Base) {
		return p.Max
	}
	d := p.Base * time.Duration(n*n)
	if p.Max > 0 && (d > p.Max || d < 0) {
		return p.Max
	}
	return d
}

// Exhausted reports whether attempt has reached the retry ceiling.
func (p Policy) Exhausted(attempt int) bool {
	return attempt >= p.MaxAttempts
}

// Delay is DefaultPolicy().Delay.
func Delay(attempt int) time.Duration {
	return DefaultPolicy().Delay(attempt)
}
