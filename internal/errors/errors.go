package errors

import (
	"errors"
	"fmt"
)

// Common error types for the studio backend
var (
	// Configuration errors
	ErrNotConfigured        = errors.New("integration not configured")
	ErrMissingSessionSecret = errors.New("missing session secret")
	ErrMissingOAuthClient   = errors.New("missing oauth client credentials")

	// OAuth flow errors
	ErrOAuthStateMismatch = errors.New("oauth state mismatch")
	ErrOAuthStateMissing  = errors.New("oauth state missing")
	ErrOAuthExchange      = errors.New("oauth code exchange failed")

	// Session errors
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionExpired  = errors.New("session expired")

	// Provider errors
	ErrEmptyContent      = errors.New("provider returned no content")
	ErrMalformedResponse = errors.New("malformed provider response")

	// General errors
	ErrNotFound       = errors.New("not found")
	ErrInvalidRequest = errors.New("invalid request")
	ErrInternal       = errors.New("internal error")
)

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
