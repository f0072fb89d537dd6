package store

import (
	"errors"
	"fmt"

	"github.com/dmitrijs2005/lifedash/internal/shared"
)

var (
	ErrInvalidCredentials = errors.New("invalid login credentials")
	ErrUserExists         = errors.New("user already registered")
	ErrNotAuthenticated   = errors.New("not authenticated")
	ErrTokenExpired       = errors.New("token expired")
	ErrNotFound           = errors.New("not found")
	ErrConflict           = errors.New("conflict")
	ErrPermissionDenied   = errors.New("permission denied")
	ErrInvalidArgument    = shared.ErrInvalidArgument
	ErrUnavailable        = errors.New("store unavailable")
	ErrInternal           = errors.New("store internal error")
)

// AuthError is returned by authentication operations. It is surfaced to the
// caller as is and never retried.
type AuthError struct {
	Op  string
	Err error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth %s: %v", e.Op, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// NewAuthError wraps err for op, or returns nil for a nil err.
func NewAuthError(op string, err error) error {
	if err == nil {
		return nil
	}
	var ae *AuthError
	if errors.As(err, &ae) {
		return err
	}
	return &AuthError{Op: op, Err: err}
}
