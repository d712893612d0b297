package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/roach88/sneakerengine/internal/notify"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // The operation reached the API and failed
	ExitCommandError = 2 // Command error (bad arguments, config, state store)
	ExitAuthRequired = 3 // The command needs a logged-in session
)

// ExitError represents an error with a specific exit code.
// Use this to return errors with meaningful exit codes from CLI commands.
type ExitError struct {
	Code    int    // Exit code
	Message string // Error message
	Err     error  // Underlying error (optional)

	reported bool // already written to the command output
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Returns ExitFailure (1) if the error is not an ExitError.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// Reported reports whether err was already written to the command output.
func Reported(err error) bool {
	var exitErr *ExitError
	return errors.As(err, &exitErr) && exitErr.reported
}

func reportedExitError(code int, message string, err error) *ExitError {
	e := WrapExitError(code, message, err)
	e.reported = true
	return e
}

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // Separate writer for verbose/diagnostic output (defaults to Writer)
	Verbose   bool

	// Hidden lists notification categories left out of the output.
	Hidden []notify.Category

	// Color enables ANSI styling of text output. Dark selects the palette.
	Color bool
	Dark  bool
}

// ApplyDark selects the dark or light palette. It makes the formatter the
// display marker of the preference store.
func (f *OutputFormatter) ApplyDark(dark bool) {
	f.Dark = dark
}

func (f *OutputFormatter) currentPalette() palette {
	switch {
	case !f.Color:
		return palette{}
	case f.Dark:
		return darkPalette
	default:
		return lightPalette
	}
}

// CLIResponse is the standard JSON response format for CLI output.
type CLIResponse struct {
	Status        string             `json:"status"`                  // "ok" or "error"
	Data          interface{}        `json:"data,omitempty"`          // success payload
	Error         *CLIError          `json:"error,omitempty"`         // error details
	Notifications []NotificationView `json:"notifications,omitempty"` // active notifications
}

// CLIError is the error structure for CLI responses.
type CLIError struct {
	Code    string      `json:"code"`              // "INVALID_CREDENTIALS", "C003", etc.
	Message string      `json:"message"`           // human-readable message
	Details interface{} `json:"details,omitempty"` // additional context
}

// NotificationView is the JSON shape of a notification.
type NotificationView struct {
	ID         string `json:"id"`
	Category   string `json:"category"`
	Message    string `json:"message"`
	TTLMillis  int64  `json:"ttl_ms"`
	Politeness string `json:"politeness"`
}

// textRenderer is implemented by results with a human-readable form.
type textRenderer interface {
	renderText(w io.Writer, p palette) error
}

// Success outputs a successful result and the active notifications.
func (f *OutputFormatter) Success(data interface{}, notes []notify.Notification) error {
	notes = f.visible(notes)
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status:        "ok",
			Data:          data,
			Notifications: notificationViews(notes),
		})
	}

	p := f.currentPalette()
	if err := renderNotifications(f.Writer, p, notes); err != nil {
		return err
	}
	switch v := data.(type) {
	case nil:
		return nil
	case textRenderer:
		return v.renderText(f.Writer, p)
	default:
		_, err := fmt.Fprintln(f.Writer, data)
		return err
	}
}

// Error outputs an error and the active notifications.
func (f *OutputFormatter) Error(code, message string, details interface{}, notes []notify.Notification) error {
	notes = f.visible(notes)
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "error",
			Error: &CLIError{
				Code:    code,
				Message: message,
				Details: details,
			},
			Notifications: notificationViews(notes),
		})
	}

	p := f.currentPalette()
	if err := renderNotifications(f.Writer, p, notes); err != nil {
		return err
	}
	fmt.Fprintf(f.Writer, "%s %s\n", p.paint(p.failure, "Error ["+code+"]:"), message)
	if f.Verbose && details != nil {
		fmt.Fprintf(f.Writer, "Details: %v\n", details)
	}
	return nil
}

// VerboseLog outputs a message only if verbose mode is enabled.
// Uses ErrWriter if set, otherwise falls back to Writer.
func (f *OutputFormatter) VerboseLog(format string, args ...interface{}) {
	if !f.Verbose {
		return
	}
	fmt.Fprintf(f.GetErrWriter(), format+"\n", args...)
}

// GetErrWriter returns the appropriate writer for diagnostic output.
// Returns ErrWriter if set, otherwise Writer.
func (f *OutputFormatter) GetErrWriter() io.Writer {
	if f.ErrWriter != nil {
		return f.ErrWriter
	}
	return f.Writer
}

func (f *OutputFormatter) visible(notes []notify.Notification) []notify.Notification {
	if len(f.Hidden) == 0 {
		return notes
	}
	out := make([]notify.Notification, 0, len(notes))
	for _, n := range notes {
		hidden := false
		for _, c := range f.Hidden {
			if n.Category == c {
				hidden = true
				break
			}
		}
		if !hidden {
			out = append(out, n)
		}
	}
	return out
}

func notificationViews(notes []notify.Notification) []NotificationView {
	if len(notes) == 0 {
		return nil
	}
	out := make([]NotificationView, len(notes))
	for i, n := range notes {
		out[i] = NotificationView{
			ID:         n.ID,
			Category:   string(n.Category),
			Message:    n.Message,
			TTLMillis:  n.TTL.Milliseconds(),
			Politeness: string(n.Politeness),
		}
	}
	return out
}

var categoryIcons = map[notify.Category]string{
	notify.CategorySuccess: "✓",
	notify.CategoryError:   "✗",
	notify.CategoryWarning: "!",
	notify.CategoryInfo:    "i",
}

func (p palette) category(c notify.Category) string {
	switch c {
	case notify.CategorySuccess:
		return p.success
	case notify.CategoryError:
		return p.failure
	case notify.CategoryWarning:
		return p.warning
	default:
		return p.info
	}
}

// renderNotifications writes one line per notification, oldest first.
func renderNotifications(w io.Writer, p palette, notes []notify.Notification) error {
	for _, n := range notes {
		label := fmt.Sprintf("%s %-7s", categoryIcons[n.Category], n.Category)
		if _, err := fmt.Fprintf(w, "%s %s\n", p.paint(p.category(n.Category), label), n.Message); err != nil {
			return err
		}
	}
	return nil
}
