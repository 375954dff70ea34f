package client

import (
	"errors"
	"fmt"
	"net/http"
)

// OpError is a failed service call with the context needed to report it
type OpError struct {
	Op        string // e.g. "fetching epic"
	ID        string // identifier involved, empty for collection calls
	RequestID string
	Err       error
}

func (e *OpError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.ID, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *OpError) Unwrap() error {
	return e.Err
}

// HTTPError is a non-2xx response
type HTTPError struct {
	Method     string
	Path       string
	StatusCode int
	Detail     string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.StatusCode, e.Detail)
}

// StatusCode returns the HTTP status behind err, or 0 for transport failures
func StatusCode(err error) int {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode
	}
	return 0
}

// IsNotFound reports whether the server answered 404
func IsNotFound(err error) bool {
	return StatusCode(err) == http.StatusNotFound
}
