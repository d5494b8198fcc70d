package skylight

import (
	"errors"
	"net/http"
)

var (
	// ErrUnauthorized means the credential was rejected
	ErrUnauthorized = errors.New("skylight: unauthorized")
	// ErrNotFound means the requested frame does not exist
	ErrNotFound = errors.New("skylight: frame not found")
	// ErrConnection covers timeouts, transport failures, unexpected statuses
	// and undecodable responses
	ErrConnection = errors.New("skylight: connection error")
)

// StatusError maps a status returned by CheckAuth or CheckAccount to the
// failure taxonomy. A 2xx status maps to nil; 0 means the request never
// completed.
func StatusError(status int) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusUnauthorized:
		return ErrUnauthorized
	case status == http.StatusNotFound:
		return ErrNotFound
	default:
		return ErrConnection
	}
}
