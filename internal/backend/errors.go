package backend

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrAccessDenied is returned by Login when the account role may not use
	// the admin client.
	ErrAccessDenied = errors.New("access denied: admin or staff role required")
	// ErrUnauthenticated is returned when the backend rejects the bearer token
	// or the login credentials.
	ErrUnauthenticated = errors.New("unauthenticated")
)

// NetworkError reports a failed backend request: either the transport failed
// (Status is 0) or the server answered with a non-2xx status.
type NetworkError struct {
	Op     string
	Status int
	Err    error
}

func (e *NetworkError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: server returned %d %s: %v", e.Op, e.Status, http.StatusText(e.Status), e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// IsNetwork reports whether err carries a *NetworkError.
func IsNetwork(err error) bool {
	var ne *NetworkError
	return errors.As(err, &ne)
}
