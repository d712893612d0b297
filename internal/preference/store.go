// Package preference persists the dark/light display preference.
//
// The persisted value wins. With nothing persisted the store follows the
// ambient signal of the host, and that adopted value is not written back
// until the user sets or toggles the preference explicitly. Every change
// applies the Marker side effect synchronously.
package preference

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/roach88/sneakerengine/internal/reactive"
	"github.com/roach88/sneakerengine/internal/store"
)

// ThemeKey is the storage key of the persisted preference.
const ThemeKey = "sneaker_engine_theme"

// Persisted values of ThemeKey.
const (
	ValueDark  = "dark"
	ValueLight = "light"
)

var (
	// ErrAlreadyInitialized is returned by a second Initialize call.
	ErrAlreadyInitialized = errors.New("preference: already initialized")

	// ErrNotInitialized is returned by mutations before Initialize.
	ErrNotInitialized = errors.New("preference: not initialized")
)

// Marker applies the preference to the presentation layer.
type Marker interface {
	ApplyDark(dark bool)
}

// MarkerFunc adapts a function to Marker.
type MarkerFunc func(dark bool)

func (f MarkerFunc) ApplyDark(dark bool) { f(dark) }

// Ambient reports whether the host prefers a dark presentation.
type Ambient func() bool

// Light is an Ambient that never prefers dark.
func Light() bool { return false }

// TerminalAmbient reads the COLORFGBG convention ("fg;bg" or
// "fg;default;bg"). Background colors 0-6 and 8 are dark.
func TerminalAmbient(getenv func(string) string) Ambient {
	return func() bool {
		v := getenv("COLORFGBG")
		if v == "" {
			return false
		}
		parts := strings.Split(v, ";")
		bg, err := strconv.Atoi(parts[len(parts)-1])
		if err != nil {
			return false
		}
		return (bg >= 0 && bg <= 6) || bg == 8
	}
}

// Store holds the preference.
//
// Thread-safety: safe for concurrent use. The marker and subscribers run
// on the goroutine that changed the value while the store is locked, so
// they must not call Set, Toggle or Reset.
type Store struct {
	mu          sync.Mutex
	kv          store.KV
	ambient     Ambient
	marker      Marker
	logger      *slog.Logger
	initialized bool
	persisted   bool

	dark *reactive.Value[bool]
}

// Option configures a Store.
type Option func(*Store)

// WithAmbient sets the ambient signal. Default: Light.
func WithAmbient(a Ambient) Option {
	return func(s *Store) {
		s.ambient = a
	}
}

// WithMarker sets the presentation side effect. Default: none.
func WithMarker(m Marker) Option {
	return func(s *Store) {
		s.marker = m
	}
}

// WithLogger sets the diagnostic logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		s.logger = l
	}
}

// New creates an uninitialized store backed by kv.
func New(kv store.KV, opts ...Option) *Store {
	s := &Store{
		kv:      kv,
		ambient: Light,
		marker:  MarkerFunc(func(bool) {}),
		logger:  slog.Default(),
		dark:    reactive.New(false),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Initialize loads the persisted value, or adopts the ambient signal when
// none is stored, and applies the marker. It must be called exactly once.
func (s *Store) Initialize() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.initialized {
		return ErrAlreadyInitialized
	}

	dark, persisted, err := s.load()
	if err != nil {
		return err
	}
	s.initialized = true
	s.persisted = persisted
	s.applyLocked(dark)
	return nil
}

// load returns the persisted value, falling back to the ambient signal.
// An unrecognized stored value is treated as absent.
func (s *Store) load() (dark, persisted bool, err error) {
	raw, ok, err := s.kv.Get(ThemeKey)
	if err != nil {
		return false, false, fmt.Errorf("read %s: %w", ThemeKey, err)
	}
	if ok {
		switch raw {
		case ValueDark:
			return true, true, nil
		case ValueLight:
			return false, true, nil
		default:
			s.logger.Warn("ignoring unrecognized theme value", "value", raw)
		}
	}
	return s.ambient(), false, nil
}

// Get returns the current preference. Before Initialize it is false.
func (s *Store) Get() bool {
	return s.dark.Get()
}

// Set persists dark and applies it.
func (s *Store) Set(dark bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setLocked(dark)
}

// Toggle flips the preference.
func (s *Store) Toggle() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setLocked(!s.dark.Get())
}

// Reset removes the persisted value and follows the ambient signal again.
func (s *Store) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return ErrNotInitialized
	}
	if err := s.kv.Remove(ThemeKey); err != nil {
		return fmt.Errorf("remove %s: %w", ThemeKey, err)
	}
	s.persisted = false
	s.applyLocked(s.ambient())
	return nil
}

// FollowsSystem reports whether the preference comes from the ambient
// signal rather than an explicit choice.
func (s *Store) FollowsSystem() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.initialized && !s.persisted
}

// Dark is the reactive preference.
func (s *Store) Dark() reactive.Readable[bool] {
	return s.dark.ReadOnly()
}

func (s *Store) setLocked(dark bool) error {
	if !s.initialized {
		return ErrNotInitialized
	}

	value := ValueLight
	if dark {
		value = ValueDark
	}
	if err := s.kv.Set(ThemeKey, value); err != nil {
		return fmt.Errorf("write %s: %w", ThemeKey, err)
	}
	s.persisted = true
	s.applyLocked(dark)
	return nil
}

// applyLocked runs the marker and publishes. The marker runs on every
// change, including ones that leave the value as it was.
func (s *Store) applyLocked(dark bool) {
	s.marker.ApplyDark(dark)
	s.dark.Set(dark)
	s.logger.Debug("preference applied", "dark", dark, "persisted", s.persisted)
}
