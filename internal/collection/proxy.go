// Package collection caches remote entity collections.
//
// A Proxy holds the last fetched collection and replaces it wholesale on
// every successful fetch. Fetches are tagged with a monotonic sequence and
// a result older than the one already applied is discarded, so overlapping
// fetches can never leave an older response in the cache. Mutations are
// never applied locally: a successful mutation reports success and
// triggers exactly one refetch, and a failed one reports failure and leaves
// the cache as it was.
package collection

import (
	"context"
	"log/slog"
	"sync"

	"github.com/roach88/sneakerengine/internal/reactive"
)

// Notifier receives user-facing outcomes.
type Notifier interface {
	Success(message string) string
	Error(message string) string
}

// ListFunc fetches the whole collection.
type ListFunc[T any] func(ctx context.Context) ([]T, error)

// GetFunc fetches one entity.
type GetFunc[T any] func(ctx context.Context, id string) (*T, error)

// ReadMessages are the failure notifications of the read operations.
type ReadMessages struct {
	FetchFailed string
	GetFailed   string
}

// Messages are the notifications of one mutation.
type Messages struct {
	Success string
	Failure string
}

type snapshot[T any] struct {
	seq   uint64
	items []T
}

// Proxy caches one remote collection.
//
// Thread-safety: all methods are safe for concurrent use. Subscribers run
// on the goroutine whose fetch was applied.
type Proxy[T any] struct {
	resource string
	list     ListFunc[T]
	get      GetFunc[T]
	msgs     ReadMessages
	notifier Notifier
	logger   *slog.Logger

	mu      sync.Mutex
	issued  uint64
	applied uint64
	items   []T

	feed *reactive.Value[snapshot[T]]
}

// Option configures a Proxy.
type Option func(*options)

type options struct {
	logger *slog.Logger
}

// WithLogger sets the diagnostic logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

func buildOptions(opts []Option) options {
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// NewProxy creates an empty Proxy. resource names the collection in
// errors and logs.
func NewProxy[T any](resource string, list ListFunc[T], get GetFunc[T], notifier Notifier, msgs ReadMessages, opts ...Option) *Proxy[T] {
	o := buildOptions(opts)
	return &Proxy[T]{
		resource: resource,
		list:     list,
		get:      get,
		msgs:     msgs,
		notifier: notifier,
		logger:   o.logger.With("resource", resource),
		items:    []T{},
		feed: reactive.New(snapshot[T]{items: []T{}}, reactive.WithEqual(func(a, b snapshot[T]) bool {
			return a.seq == b.seq
		})),
	}
}

// FetchAll replaces the cache with the remote collection and returns it.
// On failure the cache is untouched, one error notification is reported
// and the error is a *FetchError. A successful result that was overtaken
// by a newer fetch is returned to the caller but not cached.
func (p *Proxy[T]) FetchAll(ctx context.Context) ([]T, error) {
	p.mu.Lock()
	p.issued++
	seq := p.issued
	p.mu.Unlock()

	items, err := p.list(ctx)
	if err != nil {
		p.logger.Warn("fetch failed", "seq", seq, "error", err)
		p.notifier.Error(p.msgs.FetchFailed)
		return nil, &FetchError{Resource: p.resource, Err: err}
	}
	if items == nil {
		items = []T{}
	}

	p.mu.Lock()
	if seq < p.applied {
		p.mu.Unlock()
		p.logger.Debug("discarding stale fetch", "seq", seq)
		return clone(items), nil
	}
	p.applied = seq
	p.items = items
	snap := snapshot[T]{seq: seq, items: clone(items)}
	p.mu.Unlock()

	p.publish(snap)
	return clone(items), nil
}

// Get fetches one entity without touching the cache. Failure reports one
// error notification and returns a *FetchError.
func (p *Proxy[T]) Get(ctx context.Context, id string) (*T, error) {
	item, err := p.get(ctx, id)
	if err != nil {
		p.logger.Warn("get failed", "id", id, "error", err)
		p.notifier.Error(p.msgs.GetFailed)
		return nil, &FetchError{Resource: p.resource, ID: id, Err: err}
	}
	return item, nil
}

// Items returns a copy of the cached collection.
func (p *Proxy[T]) Items() []T {
	p.mu.Lock()
	defer p.mu.Unlock()
	return clone(p.items)
}

// Subscribe registers fn to receive the collection after every applied fetch.
func (p *Proxy[T]) Subscribe(fn func([]T)) (unsubscribe func()) {
	return p.feed.Subscribe(func(s snapshot[T]) { fn(s.items) })
}

func (p *Proxy[T]) publish(s snapshot[T]) {
	p.feed.Update(func(current snapshot[T]) snapshot[T] {
		if s.seq < current.seq {
			return current
		}
		return s
	})
}

// mutate runs one remote mutation. Success reports msgs.Success and
// triggers exactly one refetch; the refetch reports its own failure and
// does not fail the mutation. Failure reports msgs.Failure and leaves the
// cache untouched.
func mutate[T, R any](ctx context.Context, p *Proxy[T], op, id string, msgs Messages, call func(context.Context) (R, error)) (R, error) {
	result, err := call(ctx)
	if err != nil {
		var zero R
		return zero, p.writeFailed(op, id, ErrCodeRemote, msgs, err)
	}

	p.logger.Info("mutation succeeded", "op", op, "id", id)
	p.notifier.Success(msgs.Success)
	// The refetch is processed even if the caller has given up.
	_, _ = p.FetchAll(context.WithoutCancel(ctx))
	return result, nil
}

// reject fails a mutation before any remote call.
func (p *Proxy[T]) reject(op, id string, msgs Messages, err error) error {
	return p.writeFailed(op, id, ErrCodeInvalidInput, msgs, err)
}

func (p *Proxy[T]) writeFailed(op, id string, code WriteErrorCode, msgs Messages, err error) error {
	p.logger.Warn("mutation failed", "op", op, "id", id, "code", code, "error", err)
	p.notifier.Error(msgs.Failure)
	return &WriteError{Code: code, Resource: p.resource, Op: op, ID: id, Err: err}
}

func clone[T any](items []T) []T {
	out := make([]T, len(items))
	copy(out, items)
	return out
}
