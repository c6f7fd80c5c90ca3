package library

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrUnauthorized is matched by any APIError carrying a 401.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrNoSession is returned when an operation needs a token and none is held.
	ErrNoSession = errors.New("no active session")
	// ErrInvalidForm is returned when the book form fails the client-side gate.
	ErrInvalidForm = errors.New("invalid book form")
)

// APIError is a non-2xx answer from the library service.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("api returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("api returned status %d: %s", e.StatusCode, e.Body)
}

// Is lets errors.Is(err, ErrUnauthorized) classify 401 answers.
func (e *APIError) Is(target error) bool {
	return target == ErrUnauthorized && e.StatusCode == http.StatusUnauthorized
}
