package model

import (
	"fmt"
)

// RelayError is a per-event failure reported back to the calling connection
// through its acknowledgment. It never terminates the connection.
type RelayError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e RelayError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Common relay errors
var (
	// ErrUnauthorized is returned when the bearer credential is missing or invalid
	ErrUnauthorized = RelayError{
		Code:    "unauthorized",
		Message: "Authentication is required",
	}

	// ErrRoomNotFound is returned when the room id is unknown
	ErrRoomNotFound = RelayError{
		Code:    "room_not_found",
		Message: "Room not found",
	}

	// ErrForbidden is returned when the authenticated user is not a room member
	ErrForbidden = RelayError{
		Code:    "forbidden",
		Message: "Forbidden",
	}

	// ErrInvalidInput is returned when a payload fails validation
	ErrInvalidInput = RelayError{
		Code:    "invalid_input",
		Message: "Invalid payload",
	}

	// ErrRateLimited is returned when a connection sends events faster than
	// its flood-control budget
	ErrRateLimited = RelayError{
		Code:    "rate_limited",
		Message: "Too many events",
	}

	// ErrInternal is returned when a store or identity call fails; the
	// underlying cause is logged, never sent to the client
	ErrInternal = RelayError{
		Code:    "internal",
		Message: "Internal error",
	}
)

// InvalidInput creates an invalid_input error with a specific message
func InvalidInput(message string) RelayError {
	return RelayError{Code: "invalid_input", Message: message}
}

// AsRelayError converts err into a RelayError, collapsing anything
// unexpected into ErrInternal so that internals never leak to clients.
func AsRelayError(err error) RelayError {
	if re, ok := err.(RelayError); ok {
		return re
	}
	return ErrInternal
}
