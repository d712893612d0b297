// Package reactive provides observable state containers.
//
// A Value owns a single piece of state. Owners mutate it through Set and
// Update; consumers receive a Readable projection that can only read and
// subscribe. Subscribers are invoked synchronously after every change,
// outside the internal lock, in subscription order.
package reactive

import "sync"

// Readable is the read-only projection of a Value handed to consumers.
type Readable[T any] interface {
	// Get returns the current value.
	Get() T

	// Subscribe registers fn to be called with every new value.
	// The returned function removes the subscription; calling it twice is a no-op.
	Subscribe(fn func(T)) (unsubscribe func())
}

// Value is an observable container for a value of type T.
//
// Thread-safety: all methods are safe for concurrent use. Subscribers run on
// the goroutine that performed the mutation.
type Value[T any] struct {
	mu     sync.Mutex
	value  T
	nextID int
	subs   []subscriber[T]
	equal  func(a, b T) bool
}

type subscriber[T any] struct {
	id int
	fn func(T)
}

// Option configures a Value.
type Option[T any] func(*Value[T])

// WithEqual suppresses notifications when the new value equals the old one.
func WithEqual[T any](equal func(a, b T) bool) Option[T] {
	return func(v *Value[T]) {
		v.equal = equal
	}
}

// New creates a Value holding initial.
func New[T any](initial T, opts ...Option[T]) *Value[T] {
	v := &Value[T]{value: initial}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Get returns the current value.
func (v *Value[T]) Get() T {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.value
}

// Set replaces the value and notifies subscribers.
func (v *Value[T]) Set(next T) {
	v.Update(func(T) T { return next })
}

// Update applies fn to the current value under the lock and notifies
// subscribers with the result.
func (v *Value[T]) Update(fn func(current T) T) {
	v.mu.Lock()
	prev := v.value
	next := fn(prev)
	v.value = next
	if v.equal != nil && v.equal(prev, next) {
		v.mu.Unlock()
		return
	}
	subs := make([]subscriber[T], len(v.subs))
	copy(subs, v.subs)
	v.mu.Unlock()

	for _, s := range subs {
		s.fn(next)
	}
}

// Subscribe registers fn for future changes. fn is not called with the
// current value; call Get for that.
func (v *Value[T]) Subscribe(fn func(T)) func() {
	v.mu.Lock()
	v.nextID++
	id := v.nextID
	v.subs = append(v.subs, subscriber[T]{id: id, fn: fn})
	v.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			v.mu.Lock()
			defer v.mu.Unlock()
			for i, s := range v.subs {
				if s.id == id {
					v.subs = append(v.subs[:i], v.subs[i+1:]...)
					return
				}
			}
		})
	}
}

// ReadOnly returns v as a Readable.
func (v *Value[T]) ReadOnly() Readable[T] {
	return v
}
