package api

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrUnauthorized is wrapped by every AuthError.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrUnavailable is returned when the backend cannot be reached or
	// reports itself unavailable.
	ErrUnavailable = errors.New("backend unavailable")

	// ErrNotFound is returned for 404 responses.
	ErrNotFound = errors.New("not found")
)

// AuthError indicates the backend rejected the credentials (HTTP 401).
type AuthError struct {
	Method  string
	Path    string
	Message string
}

func (e *AuthError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("authentication failed (401) on %s %s", e.Method, e.Path)
	}
	return fmt.Sprintf("authentication failed (401) on %s %s: %s", e.Method, e.Path, e.Message)
}

// Unwrap lets errors.Is(err, ErrUnauthorized) match.
func (e *AuthError) Unwrap() error { return ErrUnauthorized }

// IsAuthError reports whether err (or any error in its chain) is an AuthError.
func IsAuthError(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}

// StatusError is a non-2xx response other than 401.
type StatusError struct {
	Code    int
	Method  string
	Path    string
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d on %s %s: %s", e.Code, e.Method, e.Path, e.Message)
}

// Unwrap maps well-known statuses onto the package sentinels.
func (e *StatusError) Unwrap() error {
	switch e.Code {
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return ErrUnavailable
	}
	return nil
}

// errorResponse is the backend's error envelope.
type errorResponse struct {
	Error string `json:"error"`
}
