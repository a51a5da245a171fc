package schedule

import (
	"time"

	"golang.org/x/time/rate"
)

// Throttle runs a function at most once per interval, with an optional burst.
type Throttle struct {
	limiter *rate.Limiter
}

// NewThrottle allows burst calls up front and then one call per every.
// A burst below 1 is treated as 1.
func NewThrottle(every time.Duration, burst int) *Throttle {
	if burst < 1 {
		burst = 1
	}
	return &Throttle{limiter: rate.NewLimiter(rate.Every(every), burst)}
}

// Do runs fn if a token is available and reports whether it ran.
func (t *Throttle) Do(fn func()) bool {
	if !t.limiter.Allow() {
		return false
	}
	fn()
	return true
}

// Allow consumes a token without running anything.
func (t *Throttle) Allow() bool {
	return t.limiter.Allow()
}
