package collection

import (
	"errors"
	"fmt"
)

// FetchError is returned when a collection or entity could not be read.
// The cache is left as it was.
type FetchError struct {
	Resource string

	// ID is set for single-entity reads.
	ID string

	Err error
}

func (e *FetchError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("fetch %s %s: %v", e.Resource, e.ID, e.Err)
	}
	return fmt.Sprintf("fetch %s: %v", e.Resource, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// WriteError is returned when a mutation failed. Nothing local changed.
type WriteError struct {
	// Code identifies the failure category.
	Code WriteErrorCode

	Resource string
	Op       string
	ID       string
	Err      error
}

// WriteErrorCode categorizes mutation failures.
type WriteErrorCode string

const (
	// ErrCodeInvalidInput indicates the payload was rejected before any remote call.
	ErrCodeInvalidInput WriteErrorCode = "INVALID_INPUT"

	// ErrCodeRemote indicates the remote call failed.
	ErrCodeRemote WriteErrorCode = "REMOTE"
)

func (e *WriteError) Error() string {
	target := e.Resource
	if e.ID != "" {
		target += " " + e.ID
	}
	return fmt.Sprintf("%s %s: %s: %v", e.Op, target, e.Code, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// IsFetchError reports whether err is a FetchError.
func IsFetchError(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe)
}

// IsInvalidInput reports whether err is a WriteError raised before the
// remote call.
func IsInvalidInput(err error) bool {
	var we *WriteError
	if errors.As(err, &we) {
		return we.Code == ErrCodeInvalidInput
	}
	return false
}
