// Package notify implements the notification queue every other component
// reports outcomes through.
//
// The queue holds active notifications in insertion order. A notification
// with a positive TTL is dismissed by a one-shot timer keyed by its id; the
// timer is stopped if the notification is dismissed first. Ids are never
// reused, so a timer that fires late can only ever miss.
package notify

import (
	"log/slog"
	"sync"
	"time"

	"github.com/roach88/sneakerengine/internal/reactive"
)

// DefaultTTL is the auto-dismiss delay used by the per-category helpers.
const DefaultTTL = 5 * time.Second

// snapshot is a published view of the queue. version orders snapshots so a
// slow publisher can never overwrite a newer view with an older one.
type snapshot struct {
	version int64
	items   []Notification
}

// Queue is the ordered list of active notifications.
//
// Thread-safety: all methods are safe for concurrent use. Subscribers run
// on the goroutine that changed the queue, which for expiry is the timer
// goroutine.
type Queue struct {
	mu      sync.Mutex
	items   []Notification
	timers  map[string]Timer
	seq     int64
	version int64

	feed *reactive.Value[snapshot]

	ids        IDGenerator
	scheduler  Scheduler
	defaultTTL time.Duration
	logger     *slog.Logger
}

// Option configures a Queue.
type Option func(*Queue)

// WithScheduler sets the timer source. Default: RealScheduler.
func WithScheduler(s Scheduler) Option {
	return func(q *Queue) {
		q.scheduler = s
	}
}

// WithIDGenerator sets the id source. Default: UUIDv7Generator.
func WithIDGenerator(g IDGenerator) Option {
	return func(q *Queue) {
		q.ids = g
	}
}

// WithDefaultTTL sets the TTL used by Success, Error, Warning and Info.
// Negative values are treated as zero.
func WithDefaultTTL(d time.Duration) Option {
	return func(q *Queue) {
		if d < 0 {
			d = 0
		}
		q.defaultTTL = d
	}
}

// WithLogger sets the diagnostic logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(q *Queue) {
		q.logger = l
	}
}

// New creates an empty Queue.
func New(opts ...Option) *Queue {
	q := &Queue{
		timers:     make(map[string]Timer),
		ids:        UUIDv7Generator{},
		scheduler:  RealScheduler{},
		defaultTTL: DefaultTTL,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(q)
	}
	q.feed = reactive.New(snapshot{}, reactive.WithEqual(func(a, b snapshot) bool {
		return a.version == b.version
	}))
	return q
}

// DefaultTTL returns the TTL used by the per-category helpers.
func (q *Queue) DefaultTTL() time.Duration {
	return q.defaultTTL
}

// Report appends a notification and returns its id. A positive ttl
// schedules automatic dismissal; zero or negative keeps it until dismissed.
func (q *Queue) Report(category Category, message string, ttl time.Duration) string {
	if ttl < 0 {
		ttl = 0
	}

	q.mu.Lock()
	id := q.ids.Generate()
	for q.indexOf(id) >= 0 {
		id = q.ids.Generate()
	}
	q.seq++
	n := Notification{
		ID:         id,
		Seq:        q.seq,
		Category:   category,
		Message:    message,
		TTL:        ttl,
		Politeness: category.Politeness(),
	}
	q.items = append(q.items, n)

	// Scheduled under the lock so an immediate expiry waits for the entry.
	if ttl > 0 {
		q.timers[id] = q.scheduler.AfterFunc(ttl, func() { q.expire(id) })
	}
	snap := q.snapshotLocked()
	q.mu.Unlock()

	q.logger.Debug("notification reported", "id", id, "category", category, "ttl", ttl)
	q.publish(snap)
	return id
}

// Success reports a success notification with the default TTL.
func (q *Queue) Success(message string) string {
	return q.Report(CategorySuccess, message, q.defaultTTL)
}

// Error reports an error notification with the default TTL.
func (q *Queue) Error(message string) string {
	return q.Report(CategoryError, message, q.defaultTTL)
}

// Warning reports a warning notification with the default TTL.
func (q *Queue) Warning(message string) string {
	return q.Report(CategoryWarning, message, q.defaultTTL)
}

// Info reports an info notification with the default TTL.
func (q *Queue) Info(message string) string {
	return q.Report(CategoryInfo, message, q.defaultTTL)
}

// Dismiss removes the notification with the given id and stops its timer.
// Unknown or already-removed ids are ignored.
func (q *Queue) Dismiss(id string) {
	q.mu.Lock()
	i := q.indexOf(id)
	if i < 0 {
		q.mu.Unlock()
		return
	}
	q.items = append(q.items[:i:i], q.items[i+1:]...)
	if t, ok := q.timers[id]; ok {
		t.Stop()
		delete(q.timers, id)
	}
	snap := q.snapshotLocked()
	q.mu.Unlock()

	q.logger.Debug("notification dismissed", "id", id)
	q.publish(snap)
}

// Clear removes every notification and stops every pending timer.
func (q *Queue) Clear() {
	q.mu.Lock()
	for id, t := range q.timers {
		t.Stop()
		delete(q.timers, id)
	}
	q.items = nil
	snap := q.snapshotLocked()
	q.mu.Unlock()

	q.publish(snap)
}

// Active returns a copy of the active notifications, oldest first.
func (q *Queue) Active() []Notification {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.copyLocked()
}

// Len returns the number of active notifications.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Subscribe registers fn to receive the active list after every change.
func (q *Queue) Subscribe(fn func([]Notification)) (unsubscribe func()) {
	return q.feed.Subscribe(func(s snapshot) { fn(s.items) })
}

// expire is the timer callback. The timer entry is dropped before the
// item so Dismiss does not Stop a timer that is already running.
func (q *Queue) expire(id string) {
	q.mu.Lock()
	delete(q.timers, id)
	q.mu.Unlock()
	q.Dismiss(id)
}

func (q *Queue) indexOf(id string) int {
	for i := range q.items {
		if q.items[i].ID == id {
			return i
		}
	}
	return -1
}

func (q *Queue) copyLocked() []Notification {
	out := make([]Notification, len(q.items))
	copy(out, q.items)
	return out
}

func (q *Queue) snapshotLocked() snapshot {
	q.version++
	return snapshot{version: q.version, items: q.copyLocked()}
}

func (q *Queue) publish(s snapshot) {
	q.feed.Update(func(current snapshot) snapshot {
		if s.version < current.version {
			return current
		}
		return s
	})
}
