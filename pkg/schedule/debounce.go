// Package schedule holds small timing helpers used outside the request path:
// a trailing-edge debouncer and a token-bucket throttle.
package schedule

import (
	"sync"
	"time"
)

// Debouncer delays fn until Trigger has not been called for the configured
// duration. Only the last burst of triggers results in a call.
type Debouncer struct {
	mu      sync.Mutex
	d       time.Duration
	fn      func()
	timer   *time.Timer
	stopped bool
}

// Debounce returns a Debouncer that runs fn d after the most recent Trigger.
func Debounce(d time.Duration, fn func()) *Debouncer {
	return &Debouncer{d: d, fn: fn}
}

// Trigger (re)starts the countdown. Calls after Stop are ignored.
func (db *Debouncer) Trigger() {
	db.mu.Lock()
	defer db.mu.Unlock()

	if db.stopped {
		return
	}
	if db.timer != nil {
		db.timer.Stop()
	}
	db.timer = time.AfterFunc(db.d, db.fire)
}

// Stop cancels a pending call and disables further triggers. It reports
// whether a pending call was cancelled.
func (db *Debouncer) Stop() bool {
	db.mu.Lock()
	defer db.mu.Unlock()

	db.stopped = true
	if db.timer == nil {
		return false
	}
	pending := db.timer.Stop()
	db.timer = nil
	return pending
}

func (db *Debouncer) fire() {
	db.mu.Lock()
	if db.stopped {
		db.mu.Unlock()
		return
	}
	db.timer = nil
	db.mu.Unlock()

	db.fn()
}
