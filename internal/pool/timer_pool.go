// Package pool recycles the timers used for shutdown deadlines.
package pool

import (
	"sync"
	"time"
)

var timerPool sync.Pool

// GetTimer returns a timer that fires after d. Return it with PutTimer.
//
// The module requires Go 1.23 timer semantics: Stop and Reset discard any
// expiry not yet received, so a pooled timer never delivers a stale value.
func GetTimer(d time.Duration) *time.Timer {
	t, ok := timerPool.Get().(*time.Timer)
	if !ok {
		return time.NewTimer(d)
	}
	t.Reset(d)

	return t
}

// PutTimer stops t and pools it. t must not be used afterwards.
func PutTimer(t *time.Timer) {
	t.Stop()
	timerPool.Put(t)
}

// WaitTimeout waits until done is closed or d elapses. It reports whether
// done was closed in time. A non-positive d waits forever.
func WaitTimeout(done <-chan struct{}, d time.Duration) bool {
	if d <= 0 {
		<-done
		return true
	}

	t := GetTimer(d)
	defer PutTimer(t)

	select {
	case <-done:
		return true
	case <-t.C:
		return false
	}
}
