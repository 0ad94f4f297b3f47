package client

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrUnavailable       = errors.New("server unavailable")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrMalformedResponse = errors.New("malformed response")
)

// Kind classifies a failed backend call.
type Kind string

const (
	// KindNetwork: the transport failed, no response was received.
	KindNetwork Kind = "network"
	// KindAuthRejected: 401 from an auth-scoped endpoint.
	KindAuthRejected Kind = "auth_rejected"
	// KindStatus: any other non-2xx response, left to the caller.
	KindStatus Kind = "status"
	// KindMalformed: a 2xx response whose payload is unusable.
	KindMalformed Kind = "malformed"
)

// Error describes a failed backend call.
type Error struct {
	Op      string
	Kind    Kind
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return "backend error"
	}
	switch {
	case e.Message != "" && e.Status != 0:
		return fmt.Sprintf("%s: %d %s", e.Op, e.Status, e.Message)
	case e.Status != 0:
		return fmt.Sprintf("%s: unexpected status %d", e.Op, e.Status)
	default:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the package sentinels by kind and status.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrUnavailable:
		return e.Kind == KindNetwork ||
			e.Status == http.StatusBadGateway ||
			e.Status == http.StatusServiceUnavailable ||
			e.Status == http.StatusGatewayTimeout
	case ErrUnauthorized:
		return e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden
	case ErrMalformedResponse:
		return e.Kind == KindMalformed
	}
	return false
}

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Status
	}
	return 0
}

// Message returns the backend-provided message of err, or fallback.
func Message(err error, fallback string) string {
	var ce *Error
	if errors.As(err, &ce) && ce.Message != "" {
		return ce.Message
	}
	return fallback
}
