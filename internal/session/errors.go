package session

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/roach88/sneakerengine/internal/api"
)

// AuthError is returned by Login and Register. Every code maps to the same
// user-facing notification; the code and cause are for diagnostics.
type AuthError struct {
	// Code identifies the failure category.
	Code AuthErrorCode

	// Op is "login" or "register".
	Op string

	// Err is the underlying cause.
	Err error
}

// AuthErrorCode categorizes authentication failures.
type AuthErrorCode string

const (
	// ErrCodeInvalidCredentials indicates the remote rejected the credentials.
	ErrCodeInvalidCredentials AuthErrorCode = "INVALID_CREDENTIALS"

	// ErrCodeConflict indicates the account already exists.
	ErrCodeConflict AuthErrorCode = "CONFLICT"

	// ErrCodeInvalidInput indicates the credentials failed local or remote validation.
	ErrCodeInvalidInput AuthErrorCode = "INVALID_INPUT"

	// ErrCodeTransport indicates the remote could not be reached or misbehaved.
	ErrCodeTransport AuthErrorCode = "TRANSPORT"

	// ErrCodePersistence indicates the session could not be written to storage.
	ErrCodePersistence AuthErrorCode = "PERSISTENCE"
)

// Error implements the error interface.
func (e *AuthError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Code)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Code, e.Err)
}

// Unwrap returns the underlying cause.
func (e *AuthError) Unwrap() error {
	return e.Err
}

// IsAuthError reports whether err is an AuthError.
func IsAuthError(err error) bool {
	var ae *AuthError
	return errors.As(err, &ae)
}

// IsInvalidCredentials reports whether err is an AuthError for rejected credentials.
func IsInvalidCredentials(err error) bool {
	return codeOf(err) == ErrCodeInvalidCredentials
}

// IsConflict reports whether err is an AuthError for an existing account.
func IsConflict(err error) bool {
	return codeOf(err) == ErrCodeConflict
}

func codeOf(err error) AuthErrorCode {
	var ae *AuthError
	if errors.As(err, &ae) {
		return ae.Code
	}
	return ""
}

// classify maps a remote failure to an AuthErrorCode.
func classify(err error) AuthErrorCode {
	if api.IsValidationError(err) {
		return ErrCodeInvalidInput
	}
	switch api.StatusCode(err) {
	case http.StatusUnauthorized, http.StatusForbidden:
		return ErrCodeInvalidCredentials
	case http.StatusBadRequest, http.StatusConflict:
		return ErrCodeConflict
	case http.StatusUnprocessableEntity:
		return ErrCodeInvalidInput
	default:
		return ErrCodeTransport
	}
}
