// Package session owns the authentication token and the current user.
//
// The Manager seeds itself from the KV store at construction, persists both
// values together on login or registration, and clears both together on
// logout. The token is present exactly when the user is present, and the
// reactive authenticated flag mirrors that.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/roach88/sneakerengine/internal/api"
	"github.com/roach88/sneakerengine/internal/nav"
	"github.com/roach88/sneakerengine/internal/reactive"
	"github.com/roach88/sneakerengine/internal/store"
)

// Storage keys.
const (
	TokenKey = "sneaker_engine_token"
	UserKey  = "sneaker_engine_user"
)

// User-facing messages.
const (
	msgLoginSuccess    = "Login successful!"
	msgLoginFailed     = "Login failed. Please check your credentials."
	msgRegisterSuccess = "Registration successful!"
	msgRegisterFailed  = "Registration failed. Please try again."
	msgLoggedOut       = "Logged out successfully"
)

// AuthRemote is the remote authentication boundary.
type AuthRemote interface {
	Login(ctx context.Context, req api.LoginRequest) (*api.AuthResponse, error)
	Register(ctx context.Context, req api.RegisterRequest) (*api.AuthResponse, error)
}

// Notifier receives user-facing outcomes.
type Notifier interface {
	Success(message string) string
	Error(message string) string
	Info(message string) string
}

// Navigator performs navigation side effects.
type Navigator interface {
	Navigate(path string)
}

// Session is an authenticated identity.
type Session struct {
	Token string
	User  api.User
}

// Manager owns the session.
//
// Thread-safety: all methods are safe for concurrent use. Login, Register
// and Logout commit one at a time; subscribers and the navigator run while
// that commit is in progress and must not call them.
type Manager struct {
	opMu sync.Mutex

	mu    sync.RWMutex
	token string
	user  *api.User

	authenticated *reactive.Value[bool]
	current       *reactive.Value[*api.User]

	kv        store.KV
	remote    AuthRemote
	notifier  Notifier
	navigator Navigator
	logger    *slog.Logger
	now       func() time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the diagnostic logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = l
	}
}

// WithClock sets the time source used for token expiry. Default: time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// New creates a Manager seeded from kv. A half-present, undecodable or
// expired persisted session is removed from kv and the Manager starts
// logged out.
func New(kv store.KV, remote AuthRemote, notifier Notifier, navigator Navigator, opts ...Option) (*Manager, error) {
	m := &Manager{
		kv:        kv,
		remote:    remote,
		notifier:  notifier,
		navigator: navigator,
		logger:    slog.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}

	token, user, err := m.restore()
	if err != nil {
		return nil, err
	}
	m.token = token
	m.user = user
	m.authenticated = reactive.New(user != nil, reactive.WithEqual(func(a, b bool) bool { return a == b }))
	m.current = reactive.New(copyUser(user))
	return m, nil
}

// restore reads the persisted session.
func (m *Manager) restore() (string, *api.User, error) {
	token, hasToken, err := m.kv.Get(TokenKey)
	if err != nil {
		return "", nil, fmt.Errorf("read %s: %w", TokenKey, err)
	}
	rawUser, hasUser, err := m.kv.Get(UserKey)
	if err != nil {
		return "", nil, fmt.Errorf("read %s: %w", UserKey, err)
	}
	if !hasToken && !hasUser {
		return "", nil, nil
	}

	var user api.User
	reason := ""
	switch {
	case !hasToken || !hasUser || token == "":
		reason = "incomplete"
	case json.Unmarshal([]byte(rawUser), &user) != nil:
		reason = "undecodable user"
	case m.expired(token):
		reason = "expired token"
	}
	if reason != "" {
		m.logger.Warn("discarding persisted session", "reason", reason)
		if err := m.removePersisted(); err != nil {
			return "", nil, err
		}
		return "", nil, nil
	}
	return token, &user, nil
}

// expired reports whether token is a JWT whose exp has passed. Tokens that
// are not JWTs are opaque and never expire locally.
func (m *Manager) expired(token string) bool {
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return false
	}
	if claims.ExpiresAt == nil {
		return false
	}
	return !m.now().Before(claims.ExpiresAt.Time)
}

// CurrentToken returns the token, if any. It satisfies api.TokenSource.
func (m *Manager) CurrentToken() (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.token, m.token != ""
}

// CurrentUser returns a copy of the user, if any.
func (m *Manager) CurrentUser() (*api.User, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return copyUser(m.user), m.user != nil
}

// IsAuthenticated reports whether a session is present.
func (m *Manager) IsAuthenticated() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.user != nil
}

// Authenticated is the reactive authenticated flag.
func (m *Manager) Authenticated() reactive.Readable[bool] {
	return m.authenticated.ReadOnly()
}

// User is the reactive current user. Nil when logged out.
func (m *Manager) User() reactive.Readable[*api.User] {
	return m.current.ReadOnly()
}

// Login authenticates with email and password. On failure the session is
// unchanged and the error is an *AuthError.
func (m *Manager) Login(ctx context.Context, email, password string) (Session, error) {
	req := api.LoginRequest{Email: api.NormalizeEmail(email), Password: password}
	if err := api.Validate(req); err != nil {
		return Session{}, m.fail("login", ErrCodeInvalidInput, msgLoginFailed, err)
	}

	resp, err := m.remote.Login(ctx, req)
	if err != nil {
		return Session{}, m.fail("login", classify(err), msgLoginFailed, err)
	}
	return m.establish("login", resp, msgLoginSuccess, msgLoginFailed)
}

// Register creates an account and logs it in. On failure the session is
// unchanged and the error is an *AuthError.
func (m *Manager) Register(ctx context.Context, username, email, password string) (Session, error) {
	req := api.RegisterRequest{
		Username: api.NormalizeUsername(username),
		Email:    api.NormalizeEmail(email),
		Password: password,
	}
	if err := api.Validate(req); err != nil {
		return Session{}, m.fail("register", ErrCodeInvalidInput, msgRegisterFailed, err)
	}

	resp, err := m.remote.Register(ctx, req)
	if err != nil {
		return Session{}, m.fail("register", classify(err), msgRegisterFailed, err)
	}
	return m.establish("register", resp, msgRegisterSuccess, msgRegisterFailed)
}

// establish persists and publishes a new session.
func (m *Manager) establish(op string, resp *api.AuthResponse, okMsg, failMsg string) (Session, error) {
	if resp == nil || resp.AccessToken == "" {
		return Session{}, m.fail(op, ErrCodeTransport, failMsg, errors.New("response carried no access token"))
	}
	encoded, err := encodeUser(resp.User)
	if err != nil {
		return Session{}, m.fail(op, ErrCodePersistence, failMsg, fmt.Errorf("encode user: %w", err))
	}

	m.opMu.Lock()
	defer m.opMu.Unlock()

	if err := m.persist(resp.AccessToken, string(encoded)); err != nil {
		return Session{}, m.fail(op, ErrCodePersistence, failMsg, err)
	}

	user := resp.User
	m.mu.Lock()
	m.token = resp.AccessToken
	m.user = &user
	m.mu.Unlock()

	m.current.Set(copyUser(&user))
	m.authenticated.Set(true)
	m.logger.Info("session established", "op", op, "user_id", user.ID)

	m.notifier.Success(okMsg)
	m.navigator.Navigate(nav.RouteListings)
	return Session{Token: resp.AccessToken, User: user}, nil
}

// persist writes both keys. If the second write fails the previously
// persisted session is restored so storage never holds half a session.
func (m *Manager) persist(token, user string) error {
	if err := m.kv.Set(TokenKey, token); err != nil {
		return fmt.Errorf("write %s: %w", TokenKey, err)
	}
	if err := m.kv.Set(UserKey, user); err != nil {
		if rerr := m.restorePersisted(); rerr != nil {
			m.logger.Error("failed to restore persisted session", "error", rerr)
		}
		return fmt.Errorf("write %s: %w", UserKey, err)
	}
	return nil
}

// restorePersisted writes the in-memory session back to kv.
func (m *Manager) restorePersisted() error {
	m.mu.RLock()
	token, user := m.token, copyUser(m.user)
	m.mu.RUnlock()

	if user == nil {
		return m.removePersisted()
	}
	encoded, err := encodeUser(*user)
	if err != nil {
		return err
	}
	if err := m.kv.Set(TokenKey, token); err != nil {
		return err
	}
	return m.kv.Set(UserKey, string(encoded))
}

// storedUser is the persisted form of the user under UserKey.
type storedUser struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

func encodeUser(u api.User) ([]byte, error) {
	return json.Marshal(storedUser{ID: u.ID, Username: u.Username, Email: u.Email})
}

// Logout clears the session. Calling it while logged out leaves the same
// end state and still notifies and navigates.
func (m *Manager) Logout() {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	if err := m.removePersisted(); err != nil {
		m.logger.Error("failed to remove persisted session", "error", err)
	}

	m.mu.Lock()
	m.token = ""
	m.user = nil
	m.mu.Unlock()

	m.current.Set(nil)
	m.authenticated.Set(false)
	m.logger.Info("session cleared")

	m.notifier.Info(msgLoggedOut)
	m.navigator.Navigate(nav.RouteLogin)
}

func (m *Manager) removePersisted() error {
	var errs []error
	for _, key := range []string{TokenKey, UserKey} {
		if err := m.kv.Remove(key); err != nil {
			errs = append(errs, fmt.Errorf("remove %s: %w", key, err))
		}
	}
	return errors.Join(errs...)
}

// fail logs the detail, reports the generic message and builds the error.
func (m *Manager) fail(op string, code AuthErrorCode, message string, cause error) error {
	m.logger.Warn("authentication failed", "op", op, "code", code, "error", cause)
	m.notifier.Error(message)
	return &AuthError{Code: code, Op: op, Err: cause}
}

func copyUser(u *api.User) *api.User {
	if u == nil {
		return nil
	}
	c := *u
	return &c
}
