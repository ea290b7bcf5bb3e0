package scopeauth

import (
	"errors"
	"fmt"
)

var (
	// ErrNotAuthenticated is returned by operations that require an access
	// token when the session holds none. Callers should redirect to login.
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrNoRefreshToken is returned by rotation when no refresh token is
	// stored. No network call is made; the caller must log in again.
	ErrNoRefreshToken = errors.New("no refresh token")
	// ErrRotationRejected is returned when the rotation exchange fails,
	// either because the server rejected the refresh token or because the
	// call itself failed. The session has been cleared by the time callers
	// observe it.
	ErrRotationRejected = errors.New("token rotation rejected")
	// ErrInvalidCredentials is returned by login when the server rejects the
	// supplied credentials.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountExists is returned by signup when the email is already
	// registered.
	ErrAccountExists = errors.New("account already exists")
)

// APIError carries a non-2xx server response that does not map to a sentinel
// error. Detail is the server-reported message when the body had one.
type APIError struct {
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("api error: status %d", e.StatusCode)
	}
	return fmt.Sprintf("api error: status %d: %s", e.StatusCode, e.Detail)
}
