package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sneakerengine/internal/api"
	"github.com/roach88/sneakerengine/internal/api/apitest"
	"github.com/roach88/sneakerengine/internal/nav"
	"github.com/roach88/sneakerengine/internal/notify"
	"github.com/roach88/sneakerengine/internal/store"
)

type fakeRemote struct {
	resp      *api.AuthResponse
	err       error
	logins    int
	registers int
}

func (f *fakeRemote) Login(_ context.Context, _ api.LoginRequest) (*api.AuthResponse, error) {
	f.logins++
	return f.resp, f.err
}

func (f *fakeRemote) Register(_ context.Context, _ api.RegisterRequest) (*api.AuthResponse, error) {
	f.registers++
	return f.resp, f.err
}

type navRecorder struct {
	paths []string
}

func (n *navRecorder) Navigate(path string) {
	n.paths = append(n.paths, path)
}

type flakyKV struct {
	*store.Memory
	failKey string
}

func (f *flakyKV) Set(key, value string) error {
	if key == f.failKey {
		return errors.New("write refused")
	}
	return f.Memory.Set(key, value)
}

type fixture struct {
	kv     store.KV
	remote *fakeRemote
	queue  *notify.Queue
	nav    *navRecorder
	m      *Manager
}

func newFixture(t *testing.T, kv store.KV) *fixture {
	t.Helper()
	if kv == nil {
		kv = store.NewMemory()
	}
	f := &fixture{
		kv:     kv,
		remote: &fakeRemote{},
		queue:  notify.New(notify.WithDefaultTTL(0), notify.WithIDGenerator(notify.NewSequenceGenerator("n"))),
		nav:    &navRecorder{},
	}
	m, err := New(f.kv, f.remote, f.queue, f.nav)
	require.NoError(t, err)
	f.m = m
	return f
}

func (f *fixture) messages() []string {
	var out []string
	for _, n := range f.queue.Active() {
		out = append(out, string(n.Category)+": "+n.Message)
	}
	return out
}

var kicks = api.User{ID: "user-1", Username: "kicks", Email: "kicks@example.com"}

func TestNew_Empty(t *testing.T) {
	f := newFixture(t, nil)

	assert.False(t, f.m.IsAuthenticated())
	assert.False(t, f.m.Authenticated().Get())
	_, ok := f.m.CurrentToken()
	assert.False(t, ok)
	u, ok := f.m.CurrentUser()
	assert.False(t, ok)
	assert.Nil(t, u)
}

func TestNew_SeedsFromStore(t *testing.T) {
	kv := store.NewMemory()
	require.NoError(t, kv.Set(TokenKey, "opaque-token"))
	require.NoError(t, kv.Set(UserKey, `{"id":"user-1","username":"kicks","email":"kicks@example.com"}`))

	f := newFixture(t, kv)

	assert.True(t, f.m.IsAuthenticated())
	assert.True(t, f.m.Authenticated().Get())
	tok, _ := f.m.CurrentToken()
	assert.Equal(t, "opaque-token", tok)
	u, _ := f.m.CurrentUser()
	assert.Equal(t, "kicks", u.Username)
	assert.Equal(t, "kicks", f.m.User().Get().Username)
}

func TestNew_DiscardsBrokenSessions(t *testing.T) {
	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
	}).SignedString([]byte("k"))
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
		user  string
	}{
		{"token only", "t", ""},
		{"user only", "", `{"id":"user-1"}`},
		{"undecodable user", "t", "{not json"},
		{"expired jwt", expired, `{"id":"user-1"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kv := store.NewMemory()
			if tt.token != "" {
				require.NoError(t, kv.Set(TokenKey, tt.token))
			}
			if tt.user != "" {
				require.NoError(t, kv.Set(UserKey, tt.user))
			}

			f := newFixture(t, kv)
			assert.False(t, f.m.IsAuthenticated())
			keys, err := kv.Keys()
			require.NoError(t, err)
			assert.Empty(t, keys)
		})
	}
}

func TestNew_UnexpiredJWTKept(t *testing.T) {
	live, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte("k"))
	require.NoError(t, err)

	kv := store.NewMemory()
	require.NoError(t, kv.Set(TokenKey, live))
	require.NoError(t, kv.Set(UserKey, `{"id":"user-1"}`))

	f := newFixture(t, kv)
	assert.True(t, f.m.IsAuthenticated())
}

func TestLogin_Success(t *testing.T) {
	f := newFixture(t, nil)
	f.remote.resp = &api.AuthResponse{AccessToken: "tok-1", TokenType: "bearer", User: kicks}

	var flags []bool
	f.m.Authenticated().Subscribe(func(b bool) { flags = append(flags, b) })

	s, err := f.m.Login(context.Background(), " Kicks@Example.com ", "secret1")
	require.NoError(t, err)

	assert.Equal(t, "tok-1", s.Token)
	assert.True(t, f.m.IsAuthenticated())
	u, _ := f.m.CurrentUser()
	assert.Equal(t, kicks, *u)

	tok, _, _ := f.kv.Get(TokenKey)
	assert.Equal(t, "tok-1", tok)
	raw, _, _ := f.kv.Get(UserKey)
	assert.JSONEq(t, `{"id":"user-1","username":"kicks","email":"kicks@example.com"}`, raw)

	assert.Equal(t, []bool{true}, flags)
	assert.Equal(t, []string{"success: Login successful!"}, f.messages())
	assert.Equal(t, []string{nav.RouteListings}, f.nav.paths)
}

func TestLogin_PersistsIdentityOnly(t *testing.T) {
	f := newFixture(t, nil)
	user := kicks
	user.CreatedAt = api.NewTimestamp(time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC))
	f.remote.resp = &api.AuthResponse{AccessToken: "tok-1", TokenType: "bearer", User: user}

	_, err := f.m.Login(context.Background(), "kicks@example.com", "secret1")
	require.NoError(t, err)

	raw, _, _ := f.kv.Get(UserKey)
	assert.JSONEq(t, `{"id":"user-1","username":"kicks","email":"kicks@example.com"}`, raw)

	restored, err := New(f.kv, &fakeRemote{}, f.queue, &navRecorder{})
	require.NoError(t, err)
	u, ok := restored.CurrentUser()
	require.True(t, ok)
	assert.Equal(t, kicks, *u)
}

func TestLogin_FailureLeavesStateUnchanged(t *testing.T) {
	kv := store.NewMemory()
	require.NoError(t, kv.Set(TokenKey, "old-token"))
	require.NoError(t, kv.Set(UserKey, `{"id":"user-0","username":"old"}`))
	f := newFixture(t, kv)
	f.remote.err = &api.StatusError{Method: "POST", Path: "/auth/login", StatusCode: http.StatusUnauthorized}

	_, err := f.m.Login(context.Background(), "kicks@example.com", "wrong")
	require.Error(t, err)
	assert.True(t, IsAuthError(err))
	assert.True(t, IsInvalidCredentials(err))

	tok, _ := f.m.CurrentToken()
	assert.Equal(t, "old-token", tok)
	stored, _, _ := kv.Get(TokenKey)
	assert.Equal(t, "old-token", stored)
	assert.True(t, f.m.IsAuthenticated())

	assert.Equal(t, []string{"error: Login failed. Please check your credentials."}, f.messages())
	assert.Empty(t, f.nav.paths)
}

func TestLogin_InvalidInputSkipsRemote(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.m.Login(context.Background(), "not-an-email", "")
	require.Error(t, err)

	var ae *AuthError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, ErrCodeInvalidInput, ae.Code)
	assert.Equal(t, 0, f.remote.logins)
	assert.Len(t, f.queue.Active(), 1)
}

func TestLogin_TransportFailure(t *testing.T) {
	f := newFixture(t, nil)
	f.remote.err = fmt.Errorf("dial: %w", api.ErrUnavailable)

	_, err := f.m.Login(context.Background(), "kicks@example.com", "secret1")
	var ae *AuthError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, ErrCodeTransport, ae.Code)
	assert.ErrorIs(t, err, api.ErrUnavailable)
}

func TestLogin_EmptyTokenRejected(t *testing.T) {
	f := newFixture(t, nil)
	f.remote.resp = &api.AuthResponse{User: kicks}

	_, err := f.m.Login(context.Background(), "kicks@example.com", "secret1")
	require.Error(t, err)
	assert.False(t, f.m.IsAuthenticated())
}

func TestLogin_PersistenceFailureIsAtomic(t *testing.T) {
	kv := &flakyKV{Memory: store.NewMemory(), failKey: UserKey}
	f := newFixture(t, kv)
	f.remote.resp = &api.AuthResponse{AccessToken: "tok-1", User: kicks}

	_, err := f.m.Login(context.Background(), "kicks@example.com", "secret1")
	var ae *AuthError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, ErrCodePersistence, ae.Code)

	assert.False(t, f.m.IsAuthenticated())
	keys, _ := kv.Keys()
	assert.Empty(t, keys, "token write must be rolled back")
	assert.Equal(t, []string{"error: Login failed. Please check your credentials."}, f.messages())
}

func TestRegister_SuccessAndConflict(t *testing.T) {
	f := newFixture(t, nil)
	f.remote.resp = &api.AuthResponse{AccessToken: "tok-2", User: kicks}

	_, err := f.m.Register(context.Background(), "kicks", "kicks@example.com", "secret1")
	require.NoError(t, err)
	assert.True(t, f.m.IsAuthenticated())

	f.m.Logout()
	f.queue.Clear()

	f.remote.err = &api.StatusError{StatusCode: http.StatusBadRequest, Detail: "Email already registered"}
	_, err = f.m.Register(context.Background(), "kicks", "kicks@example.com", "secret1")
	assert.True(t, IsConflict(err))
	assert.False(t, f.m.IsAuthenticated())
	assert.Equal(t, []string{"error: Registration failed. Please try again."}, f.messages())
	assert.Equal(t, 2, f.remote.registers)
}

func TestLogout_Idempotent(t *testing.T) {
	f := newFixture(t, nil)
	f.remote.resp = &api.AuthResponse{AccessToken: "tok-1", User: kicks}
	_, err := f.m.Login(context.Background(), "kicks@example.com", "secret1")
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		f.m.Logout()

		assert.False(t, f.m.IsAuthenticated())
		assert.False(t, f.m.Authenticated().Get())
		assert.Nil(t, f.m.User().Get())
		_, ok, _ := f.kv.Get(TokenKey)
		assert.False(t, ok)
		_, ok, _ = f.kv.Get(UserKey)
		assert.False(t, ok)
	}

	assert.Equal(t, []string{nav.RouteListings, nav.RouteLogin, nav.RouteLogin}, f.nav.paths)
	assert.Equal(t, []string{
		"success: Login successful!",
		"info: Logged out successfully",
		"info: Logged out successfully",
	}, f.messages())
}

func TestCurrentUser_ReturnsCopy(t *testing.T) {
	f := newFixture(t, nil)
	f.remote.resp = &api.AuthResponse{AccessToken: "tok-1", User: kicks}
	_, err := f.m.Login(context.Background(), "kicks@example.com", "secret1")
	require.NoError(t, err)

	u, _ := f.m.CurrentUser()
	u.Username = "mutated"

	again, _ := f.m.CurrentUser()
	assert.Equal(t, "kicks", again.Username)
}

func TestManager_AgainstFakeServer(t *testing.T) {
	srv := apitest.NewServer()
	defer srv.Close()
	srv.SeedUser("kicks", "kicks@example.com", "secret1")

	client, err := api.NewClient(srv.URL)
	require.NoError(t, err)

	kv := store.NewMemory()
	queue := notify.New(notify.WithDefaultTTL(0))
	var m *Manager
	router := nav.NewRouter(nav.NewGuard(nav.AuthFunc(func() bool {
		return m != nil && m.IsAuthenticated()
	})), nil)
	m, err = New(kv, client, queue, router)
	require.NoError(t, err)
	client.UseTokens(m)

	_, err = m.Login(context.Background(), "kicks@example.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, nav.RouteListings, router.Current().Get())

	listings, err := client.ListListings(context.Background())
	require.NoError(t, err)
	assert.Empty(t, listings)

	// Reopening over the same storage restores the session.
	restored, err := New(kv, client, queue, router)
	require.NoError(t, err)
	assert.True(t, restored.IsAuthenticated())
}
