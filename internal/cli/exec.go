package cli

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/sneakerengine/internal/app"
	"github.com/roach88/sneakerengine/internal/collection"
	"github.com/roach88/sneakerengine/internal/config"
	"github.com/roach88/sneakerengine/internal/session"
)

// Error codes for failures that carry no code of their own.
const (
	ErrCodeGeneric         = "E001" // Generic/unknown error
	ErrCodeStateStore      = "E002" // Local state could not be opened
	ErrCodeInvalidArgument = "E003" // Bad command-line argument
	ErrCodeAuthRequired    = "E004" // Protected command while logged out
	ErrCodeFetchFailed     = "E005" // Collection read failed
)

// ErrAuthRequired is returned by protected commands while logged out.
var ErrAuthRequired = errors.New("login required")

// action is the body of a command. It returns the result to output.
type action func(ctx context.Context, a *app.App) (interface{}, error)

// newLogger configures logging based on the verbose flag.
func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// withApp loads the configuration, builds the App, runs fn and writes the
// result together with the notifications it produced.
func withApp(opts *RootOptions, cmd *cobra.Command, fn action) error {
	formatter := opts.formatter(cmd)
	logger := newLogger(formatter.GetErrWriter(), opts.Verbose)

	cfg, err := config.Load(opts.ConfigPath, opts.getenv)
	if err != nil {
		code := ErrCodeGeneric
		var cerr *config.Error
		if errors.As(err, &cerr) {
			code = cerr.Code
		}
		_ = formatter.Error(code, err.Error(), nil, nil)
		return reportedExitError(ExitCommandError, "invalid configuration", err)
	}
	if opts.DBPath != "" {
		cfg.DBPath = opts.DBPath
	}
	if opts.APIURL != "" {
		cfg.APIURL = opts.APIURL
	}
	if err := cfg.Validate(); err != nil {
		_ = formatter.Error(config.ErrCodeInvalid, err.Error(), nil, nil)
		return reportedExitError(ExitCommandError, "invalid configuration", err)
	}
	formatter.VerboseLog("Using API %s and state %s", cfg.APIURL, cfg.DBPath)

	appOpts := append([]app.Option{app.WithLogger(logger), app.WithMarker(formatter)}, opts.AppOptions...)
	a, err := app.New(cfg, appOpts...)
	if err != nil {
		_ = formatter.Error(ErrCodeStateStore, err.Error(), nil, nil)
		return reportedExitError(ExitCommandError, "failed to start", err)
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			logger.Error("error closing state store", "error", closeErr)
		}
	}()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	data, err := fn(ctx, a)
	notes := a.Notifications.Active()
	if err != nil {
		code, exit := classifyError(err)
		_ = formatter.Error(code, err.Error(), unwrapDetail(err), notes)
		return reportedExitError(exit, "command failed", err)
	}
	return formatter.Success(data, notes)
}

// requireRoute navigates to route and fails unless the guard let it through.
func requireRoute(a *app.App, route string) error {
	a.Router.Navigate(route)
	if a.Router.Current().Get() != route {
		return ErrAuthRequired
	}
	return nil
}

// classifyError maps a component error to a response code and exit code.
func classifyError(err error) (string, int) {
	var (
		authErr  *session.AuthError
		writeErr *collection.WriteError
		argErr   *argumentError
	)
	switch {
	case errors.Is(err, ErrAuthRequired):
		return ErrCodeAuthRequired, ExitAuthRequired
	case errors.As(err, &argErr):
		return ErrCodeInvalidArgument, ExitCommandError
	case errors.As(err, &authErr):
		return string(authErr.Code), ExitFailure
	case errors.As(err, &writeErr):
		return string(writeErr.Code), ExitFailure
	case collection.IsFetchError(err):
		return ErrCodeFetchFailed, ExitFailure
	default:
		return ErrCodeGeneric, ExitFailure
	}
}

// unwrapDetail returns the innermost cause for verbose output.
func unwrapDetail(err error) interface{} {
	inner := err
	for {
		next := errors.Unwrap(inner)
		if next == nil {
			break
		}
		inner = next
	}
	if inner == err {
		return nil
	}
	return inner.Error()
}

// idArg returns the id argument, rejecting a blank one.
func idArg(args []string) (string, error) {
	id := strings.TrimSpace(args[0])
	if id == "" {
		return "", &argumentError{msg: "id must not be empty"}
	}
	return id, nil
}

// argumentError is a bad command-line argument detected after parsing.
type argumentError struct {
	msg string
}

func (e *argumentError) Error() string { return e.msg }

