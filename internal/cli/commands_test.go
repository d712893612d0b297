package cli

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sneakerengine/internal/api"
	"github.com/roach88/sneakerengine/internal/api/apitest"
	"github.com/roach88/sneakerengine/internal/app"
	"github.com/roach88/sneakerengine/internal/config"
	"github.com/roach88/sneakerengine/internal/notify"
	"github.com/roach88/sneakerengine/internal/preference"
	"github.com/roach88/sneakerengine/internal/store"
	"github.com/roach88/sneakerengine/internal/testutil"
)

// cliEnv runs commands against a fake marketplace, sharing one state store
// across invocations the way separate processes share the database.
type cliEnv struct {
	t     *testing.T
	srv   *apitest.Server
	kv    *store.Memory
	dbDir string
}

func newCLIEnv(t *testing.T) *cliEnv {
	t.Helper()
	srv := apitest.NewServer()
	t.Cleanup(srv.Close)
	return &cliEnv{t: t, srv: srv, kv: store.NewMemory(), dbDir: t.TempDir()}
}

func (e *cliEnv) getenv(key string) string {
	switch key {
	case config.EnvAPIURL:
		return e.srv.URL
	case config.EnvDB:
		return filepath.Join(e.dbDir, "state.db")
	}
	return ""
}

func (e *cliEnv) run(args ...string) (string, error) {
	e.t.Helper()
	opts := &RootOptions{
		Getenv: e.getenv,
		AppOptions: []app.Option{
			app.WithKV(e.kv),
			app.WithScheduler(testutil.NewManualScheduler()),
			app.WithIDGenerator(notify.NewSequenceGenerator("n")),
			app.WithAmbient(preference.Light),
		},
	}
	cmd := newRootCommand(opts)
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func (e *cliEnv) login() {
	e.t.Helper()
	e.srv.SeedUser("kicks", "kicks@example.com", "secret1")
	_, err := e.run("login", "--email", "kicks@example.com", "--password", "secret1")
	require.NoError(e.t, err)
}

func TestLoginLogoutFlow(t *testing.T) {
	env := newCLIEnv(t)
	env.srv.SeedUser("kicks", "kicks@example.com", "secret1")

	out, err := env.run("whoami")
	require.NoError(t, err)
	assert.Equal(t, "Not logged in\n", out)

	out, err = env.run("login", "--email", "KICKS@example.com ", "--password", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "✓ success Login successful!\nLogged in as kicks (kicks@example.com)\n", out)

	out, err = env.run("whoami")
	require.NoError(t, err)
	assert.Equal(t, "Logged in as kicks (kicks@example.com)\n", out, "session restored from the state store")

	out, err = env.run("logout")
	require.NoError(t, err)
	assert.Equal(t, "i info    Logged out successfully\nNot logged in\n", out)

	_, hasToken, err := env.kv.Get("sneaker_engine_token")
	require.NoError(t, err)
	assert.False(t, hasToken)
}

func TestLoginFailure(t *testing.T) {
	env := newCLIEnv(t)
	env.srv.SeedUser("kicks", "kicks@example.com", "secret1")

	out, err := env.run("login", "--email", "kicks@example.com", "--password", "wrong!")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.True(t, Reported(err))
	assert.Contains(t, out, "✗ error   Login failed. Please check your credentials.\n")
	assert.Contains(t, out, "Error [INVALID_CREDENTIALS]")
}

func TestRegisterConflict_JSON(t *testing.T) {
	env := newCLIEnv(t)
	env.srv.SeedUser("kicks", "kicks@example.com", "secret1")

	out, err := env.run("--format", "json", "register", "--username", "other", "--email", "kicks@example.com", "--password", "secret2")
	require.Error(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "CONFLICT", resp.Error.Code)
	require.Len(t, resp.Notifications, 1)
	assert.Equal(t, "Registration failed. Please try again.", resp.Notifications[0].Message)
	assert.Equal(t, "assertive", resp.Notifications[0].Politeness)
}

func TestProtectedCommandsRequireLogin(t *testing.T) {
	env := newCLIEnv(t)

	tests := [][]string{
		{"listings"},
		{"listings", "get", "l1"},
		{"listings", "delete", "l1"},
		{"propositions", "list"},
		{"propositions", "accept", "p1"},
	}
	for _, args := range tests {
		out, err := env.run(args...)
		require.Error(t, err, "%v", args)
		assert.Equal(t, ExitAuthRequired, GetExitCode(err), "%v", args)
		assert.Contains(t, out, "Error [E004]", "%v", args)
	}
	assert.Zero(t, env.srv.Count("GET /api/sneakers"))
}

func TestListingsLifecycle(t *testing.T) {
	env := newCLIEnv(t)
	env.login()

	out, err := env.run("listings", "list")
	require.NoError(t, err)
	assert.Equal(t, "No sneakers listed\n", out)

	out, err = env.run("listings", "create",
		"--name", "Samba OG", "--brand", "Adidas", "--size", "41",
		"--condition", "new", "--price", "110")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ success Sneaker added successfully!\n")
	assert.Contains(t, out, "Samba OG")

	listings := env.srv.Listings()
	require.Len(t, listings, 1)
	id := listings[0].ID

	out, err = env.run("listings", "update", id, "--price", "95.5")
	require.NoError(t, err)
	assert.Contains(t, out, "Sneaker updated successfully!")
	assert.Contains(t, out, "$95.50")
	assert.Equal(t, "Samba OG", env.srv.Listings()[0].Name, "unset fields are left alone")

	out, err = env.run("--format", "json", "listings", "get", id)
	require.NoError(t, err)
	var resp struct {
		Status string      `json:"status"`
		Data   api.Listing `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 95.5, resp.Data.Price)

	out, err = env.run("listings", "delete", id)
	require.NoError(t, err)
	assert.Equal(t, "✓ success Sneaker deleted successfully!\nNo sneakers listed\n", out)
}

func TestListingsUpdate_NoChanges(t *testing.T) {
	env := newCLIEnv(t)
	env.login()

	out, err := env.run("listings", "update", "l1")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "Error [INVALID_INPUT]")
	assert.Zero(t, env.srv.Count("PUT /api/sneakers/{id}"))
}

func TestBlankIDRejected(t *testing.T) {
	env := newCLIEnv(t)
	env.login()

	for _, args := range [][]string{
		{"listings", "get", ""},
		{"listings", "delete", " "},
		{"propositions", "accept", ""},
	} {
		out, err := env.run(args...)
		require.Error(t, err, "%v", args)
		assert.Equal(t, ExitCommandError, GetExitCode(err), "%v", args)
		assert.Contains(t, out, "Error [E003]", "%v", args)
	}
	assert.Zero(t, env.srv.Count("GET /api/sneakers"))
	assert.Zero(t, env.srv.Count("GET /api/sneakers/{id}"))
}

func TestListingsFetchFailure(t *testing.T) {
	env := newCLIEnv(t)
	env.login()
	env.srv.FailNext("GET /api/sneakers", http.StatusInternalServerError)

	out, err := env.run("listings")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ error   Failed to load sneakers\n")
	assert.Contains(t, out, "Error [E005]")
}

func TestPropositionsFlow(t *testing.T) {
	env := newCLIEnv(t)
	owner := env.srv.SeedUser("owner", "owner@example.com", "secret1")
	listing := env.srv.SeedListing(owner.ID, api.CreateListingRequest{
		Name: "Jordan 1", Brand: "Nike", Size: "43", Condition: api.ConditionGood, Price: 200,
	})
	env.login()

	out, err := env.run("propositions", "create", "--sneaker", listing.ID, "--price", "180", "--message", "cash today")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ success Proposition submitted successfully!\n")
	assert.Contains(t, out, "$180.00")

	out, err = env.run("--format", "json", "propositions")
	require.NoError(t, err)
	var resp struct {
		Data []api.Proposition `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Data, 1)
	id := resp.Data[0].ID
	assert.Equal(t, api.StatusPending, resp.Data[0].Status)

	out, err = env.run("propositions", "accept", id)
	require.Error(t, err, "only the listing owner can accept")
	assert.Contains(t, out, "✗ error")

	out, err = env.run("propositions", "cancel", id)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ success Proposition cancelled\n")
}

func TestPropositionsCreate_InvalidType(t *testing.T) {
	env := newCLIEnv(t)
	env.login()

	out, err := env.run("propositions", "create", "--sneaker", "l1", "--type", "lease")
	require.Error(t, err)
	assert.Contains(t, out, "Error [INVALID_INPUT]")
	assert.Zero(t, env.srv.Count("POST /api/propositions"))
}

func TestThemeCommands(t *testing.T) {
	env := newCLIEnv(t)

	steps := []struct {
		args []string
		want string
	}{
		{[]string{"theme"}, "light (following system)\n"},
		{[]string{"theme", "set", "dark"}, "dark\n"},
		{[]string{"theme", "get"}, "dark\n"},
		{[]string{"theme", "toggle"}, "light\n"},
		{[]string{"theme", "reset"}, "light (following system)\n"},
	}
	for _, s := range steps {
		out, err := env.run(s.args...)
		require.NoError(t, err, "%v", s.args)
		assert.Equal(t, s.want, out, "%v", s.args)
	}

	out, err := env.run("theme", "set", "blue")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [E003]")
}

func TestThemeChangesPalette(t *testing.T) {
	env := newCLIEnv(t)

	var out bytes.Buffer
	for _, args := range [][]string{
		{"--color", "always", "logout"},
		{"--color", "always", "theme", "set", "dark"},
		{"--color", "always", "logout"},
		{"--color", "always", "theme", "toggle"},
	} {
		got, err := env.run(args...)
		require.NoError(t, err, "%v", args)
		out.WriteString(got)
	}

	newGoldie(t).Assert(t, "theme_palettes", out.Bytes())
}

func TestHideFlag(t *testing.T) {
	env := newCLIEnv(t)
	env.srv.SeedUser("kicks", "kicks@example.com", "secret1")

	out, err := env.run("--hide", "success", "login", "--email", "kicks@example.com", "--password", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "Logged in as kicks (kicks@example.com)\n", out)
}

func TestInvalidConfigFile(t *testing.T) {
	env := newCLIEnv(t)

	out, err := env.run("--config", filepath.Join(t.TempDir(), "missing.yaml"), "whoami")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [C001]")
}
