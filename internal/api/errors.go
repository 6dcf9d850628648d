package api

import (
	"errors"
	"fmt"
)

// Class buckets an API failure for retry and display decisions.
type Class string

const (
	// ClassExhausted covers connectivity and resource-exhaustion
	// failures (connection refused, too many requests in flight).
	// These are never retried.
	ClassExhausted Class = "resource_exhaustion"

	// ClassNetwork covers transient transport failures (timeouts,
	// resets). Retried with bounded backoff.
	ClassNetwork Class = "network"

	// ClassMalformed covers payload-shape mismatches. Surfaced
	// immediately and never retried.
	ClassMalformed Class = "malformed_response"

	// ClassAuth covers 401/403-shaped responses. The session lifecycle
	// treats these specially; everywhere else they are ordinary errors.
	ClassAuth Class = "auth"

	// ClassOther covers everything unclassified. Retried.
	ClassOther Class = "other"
)

// Error is a classified failure from the bus service API.
type Error struct {
	Class      Class
	StatusCode int

	// Message is the server-provided message when available, otherwise
	// a description of the transport failure.
	Message string

	// Shape describes the offending payload layout for
	// ClassMalformed errors.
	Shape string

	// Err is the underlying cause, if any.
	Err error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("api error (%s, status %d): %s", e.Class, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("api error (%s): %s", e.Class, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ClassOf returns the class of err, or ClassOther when err carries no
// classification.
func ClassOf(err error) Class {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Class
	}
	return ClassOther
}

// IsAuthError reports whether err (or any error in its chain) is a
// 401/403-shaped API error.
func IsAuthError(err error) bool {
	return ClassOf(err) == ClassAuth
}

// IsRetryable reports whether err is worth retrying. Connectivity
// exhaustion, malformed payloads, and authorization failures are
// terminal; transient and unclassified errors are not.
func IsRetryable(err error) bool {
	switch ClassOf(err) {
	case ClassExhausted, ClassMalformed, ClassAuth:
		return false
	default:
		return true
	}
}

// UserMessage renders a short, user-facing description of err for the
// single current-error slot kept by state owners.
func UserMessage(err error) string {
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		return err.Error()
	}

	switch apiErr.Class {
	case ClassExhausted:
		return "Server is overloaded. Please try again in a moment."
	case ClassNetwork:
		return "Network problem. Check your connection."
	case ClassMalformed:
		return "The server sent an unexpected response."
	case ClassAuth:
		return "Your session has expired. Please log in again."
	default:
		if apiErr.Message != "" {
			return apiErr.Message
		}
		return "Something went wrong. Please try again."
	}
}
