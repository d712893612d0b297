package notify

import "time"

// Timer is a scheduled one-shot callback.
type Timer interface {
	// Stop prevents the callback from firing. Returns false if it already
	// fired or was stopped.
	Stop() bool
}

// Scheduler schedules one-shot callbacks.
// Implemented by RealScheduler (production) and testutil.ManualScheduler (tests).
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

// RealScheduler uses the runtime timer wheel. Callbacks run on their own goroutine.
type RealScheduler struct{}

func (RealScheduler) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
