package errors

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrInvalid      = errors.New("invalid")
	ErrConflict     = errors.New("conflict")
	ErrTooMany      = errors.New("too many requests")
	ErrInternal     = errors.New("internal")
	ErrUnavailable  = errors.New("backend unavailable")
	ErrTimeout      = errors.New("backend timeout")
	ErrInconsistent = errors.New("inconsistent delete postcondition")
	ErrEmptyUpload  = errors.New("empty upload")
	ErrUnsupported  = errors.New("unsupported")
)

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

// IsRetryable reports whether the caller may simply retry the same request.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTimeout) || errors.Is(err, ErrUnavailable)
}

// FromBackend tags an error returned by an external collaborator as either a
// timeout or an unavailability so callers can decide how to surface it.
func FromBackend(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrTimeout) || errors.Is(err, ErrUnavailable) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}
