package roundcube

import (
	"errors"
	"fmt"
)

// ErrSessionExpired is returned when the server reports that the session
// is no longer valid. The stored credential has already been cleared.
var ErrSessionExpired = errors.New("roundcube session expired, log in again")

// ErrMissingToken is returned when a page that must carry a request token
// (the login page, or the session for token-guarded calls) does not.
var ErrMissingToken = errors.New("no request token available")

// ErrConcurrentLogin is returned when the session changed while a login
// was in flight.
var ErrConcurrentLogin = errors.New("session changed during login")

// IsSessionExpired reports whether err (or any error in its chain) is
// ErrSessionExpired.
func IsSessionExpired(err error) bool {
	return errors.Is(err, ErrSessionExpired)
}

// StatusError is an unexpected HTTP status where a success was required.
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d on %s %s", e.StatusCode, e.Method, e.URL)
}

// AuthError indicates the server rejected the login.
type AuthError struct {
	Server  string
	Message string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("login rejected by %s: %s", e.Server, e.Message)
}

// IsAuthError reports whether err (or any error in its chain) is an AuthError.
func IsAuthError(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}
