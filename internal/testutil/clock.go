package testutil

import (
	"sort"
	"sync"
	"time"

	"github.com/roach88/sneakerengine/internal/notify"
)

// ManualScheduler is a notify.Scheduler whose time only moves when Advance is called.
//
// Timers due at the same instant fire in the order they were scheduled.
// Callbacks run synchronously inside Advance, outside the scheduler lock,
// so a callback may schedule or stop other timers.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type ManualScheduler struct {
	mu     sync.Mutex
	now    time.Duration
	nextID int64
	timers []*manualTimer
}

type manualTimer struct {
	s       *ManualScheduler
	id      int64
	due     time.Duration
	fn      func()
	fired   bool
	stopped bool
}

var _ notify.Scheduler = (*ManualScheduler)(nil)

// NewManualScheduler creates a scheduler at elapsed time zero.
func NewManualScheduler() *ManualScheduler {
	return &ManualScheduler{}
}

// AfterFunc schedules f to run once Advance moves past now+d.
func (s *ManualScheduler) AfterFunc(d time.Duration, f func()) notify.Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	t := &manualTimer{s: s, id: s.nextID, due: s.now + d, fn: f}
	s.timers = append(s.timers, t)
	return t
}

// Stop cancels the timer. Returns false if it already fired or was stopped.
func (t *manualTimer) Stop() bool {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if t.fired || t.stopped {
		return false
	}
	t.stopped = true
	return true
}

// Advance moves time forward by d, firing every timer that becomes due.
func (s *ManualScheduler) Advance(d time.Duration) {
	s.mu.Lock()
	target := s.now + d
	for {
		next := s.nextDueLocked(target)
		if next == nil {
			break
		}
		s.now = next.due
		next.fired = true
		s.mu.Unlock()
		next.fn()
		s.mu.Lock()
	}
	s.now = target
	s.compactLocked()
	s.mu.Unlock()
}

// Now returns the elapsed time since creation.
func (s *ManualScheduler) Now() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

// Pending returns the number of timers that have neither fired nor been stopped.
func (s *ManualScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.timers {
		if !t.fired && !t.stopped {
			n++
		}
	}
	return n
}

func (s *ManualScheduler) nextDueLocked(target time.Duration) *manualTimer {
	var live []*manualTimer
	for _, t := range s.timers {
		if !t.fired && !t.stopped && t.due <= target {
			live = append(live, t)
		}
	}
	if len(live) == 0 {
		return nil
	}
	sort.Slice(live, func(i, j int) bool {
		if live[i].due != live[j].due {
			return live[i].due < live[j].due
		}
		return live[i].id < live[j].id
	})
	return live[0]
}

func (s *ManualScheduler) compactLocked() {
	kept := s.timers[:0]
	for _, t := range s.timers {
		if !t.fired && !t.stopped {
			kept = append(kept, t)
		}
	}
	s.timers = kept
}
