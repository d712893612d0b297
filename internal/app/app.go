// Package app wires the state containers together.
//
// Every container is constructed explicitly and handed to the components
// that need it; nothing is a package-level singleton. The App owns the
// KV store it opened and releases it on Close.
package app

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/roach88/sneakerengine/internal/api"
	"github.com/roach88/sneakerengine/internal/collection"
	"github.com/roach88/sneakerengine/internal/config"
	"github.com/roach88/sneakerengine/internal/nav"
	"github.com/roach88/sneakerengine/internal/notify"
	"github.com/roach88/sneakerengine/internal/preference"
	"github.com/roach88/sneakerengine/internal/session"
	"github.com/roach88/sneakerengine/internal/store"
)

// App holds one instance of every state container.
type App struct {
	Config        *config.Config
	KV            store.KV
	Notifications *notify.Queue
	Preference    *preference.Store
	Router        *nav.Router
	Session       *session.Manager
	Client        *api.Client
	Listings      *collection.Listings
	Propositions  *collection.Propositions

	logger *slog.Logger
	owned  *store.Store
}

type settings struct {
	kv         store.KV
	scheduler  notify.Scheduler
	ids        notify.IDGenerator
	marker     preference.Marker
	ambient    preference.Ambient
	httpClient *http.Client
	logger     *slog.Logger
}

// Option configures New.
type Option func(*settings)

// WithKV uses kv instead of opening the SQLite store at Config.DBPath.
func WithKV(kv store.KV) Option {
	return func(s *settings) {
		s.kv = kv
	}
}

// WithScheduler sets the notification timer source.
func WithScheduler(sch notify.Scheduler) Option {
	return func(s *settings) {
		s.scheduler = sch
	}
}

// WithIDGenerator sets the notification id source.
func WithIDGenerator(g notify.IDGenerator) Option {
	return func(s *settings) {
		s.ids = g
	}
}

// WithMarker sets the preference side effect.
func WithMarker(m preference.Marker) Option {
	return func(s *settings) {
		s.marker = m
	}
}

// WithAmbient overrides the ambient light/dark signal.
func WithAmbient(a preference.Ambient) Option {
	return func(s *settings) {
		s.ambient = a
	}
}

// WithHTTPClient sets the HTTP client of the API client.
func WithHTTPClient(c *http.Client) Option {
	return func(s *settings) {
		s.httpClient = c
	}
}

// WithLogger sets the logger handed to every component.
func WithLogger(l *slog.Logger) Option {
	return func(s *settings) {
		s.logger = l
	}
}

// New builds an App from cfg. The preference store is initialized.
func New(cfg *config.Config, opts ...Option) (*App, error) {
	s := settings{logger: slog.Default()}
	for _, opt := range opts {
		opt(&s)
	}

	a := &App{Config: cfg, logger: s.logger}

	if s.kv != nil {
		a.KV = s.kv
	} else {
		st, err := openStore(cfg.DBPath)
		if err != nil {
			return nil, err
		}
		a.KV = st
		a.owned = st
	}

	queueOpts := []notify.Option{
		notify.WithDefaultTTL(cfg.NotificationTTL),
		notify.WithLogger(s.logger),
	}
	if s.scheduler != nil {
		queueOpts = append(queueOpts, notify.WithScheduler(s.scheduler))
	}
	if s.ids != nil {
		queueOpts = append(queueOpts, notify.WithIDGenerator(s.ids))
	}
	a.Notifications = notify.New(queueOpts...)

	clientOpts := []api.Option{
		api.WithTimeout(cfg.RequestTimeout),
		api.WithBreaker(cfg.BreakerConfig()),
		api.WithLogger(s.logger),
	}
	if s.httpClient != nil {
		clientOpts = append(clientOpts, api.WithHTTPClient(s.httpClient))
	}
	client, err := api.NewClient(cfg.APIURL, clientOpts...)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("api client: %w", err)
	}
	a.Client = client

	// The guard reads the session, which needs the router to exist first.
	guard := nav.NewGuard(nav.AuthFunc(func() bool {
		return a.Session != nil && a.Session.IsAuthenticated()
	}))
	a.Router = nav.NewRouter(guard, s.logger)

	sess, err := session.New(a.KV, client, a.Notifications, a.Router, session.WithLogger(s.logger))
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("session: %w", err)
	}
	a.Session = sess
	client.UseTokens(sess)

	prefOpts := []preference.Option{
		preference.WithAmbient(ambientFor(cfg, s.ambient)),
		preference.WithLogger(s.logger),
	}
	if s.marker != nil {
		prefOpts = append(prefOpts, preference.WithMarker(s.marker))
	}
	a.Preference = preference.New(a.KV, prefOpts...)
	if err := a.Preference.Initialize(); err != nil {
		a.Close()
		return nil, fmt.Errorf("preference: %w", err)
	}

	a.Listings = collection.NewListings(client, a.Notifications, collection.WithLogger(s.logger))
	a.Propositions = collection.NewPropositions(client, a.Notifications, collection.WithLogger(s.logger))

	return a, nil
}

// ambientFor picks the ambient signal: explicit option, then config, then
// the terminal's COLORFGBG.
func ambientFor(cfg *config.Config, override preference.Ambient) preference.Ambient {
	if override != nil {
		return override
	}
	if cfg.AmbientDark != nil {
		dark := *cfg.AmbientDark
		return func() bool { return dark }
	}
	return preference.TerminalAmbient(os.Getenv)
}

func openStore(path string) (*store.Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("create state directory: %w", err)
		}
	}
	st, err := store.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open state store: %w", err)
	}
	return st, nil
}

// Close cancels pending notification timers and closes the store if New
// opened it.
func (a *App) Close() error {
	if a.Notifications != nil {
		a.Notifications.Clear()
	}
	if a.owned == nil {
		return nil
	}
	err := a.owned.Close()
	a.owned = nil
	return err
}
