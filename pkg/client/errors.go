package client

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a key has no value.
	ErrNotFound = errors.New("client: key not found")
	// ErrTimeout is returned when a conditional read expires on the server.
	ErrTimeout = errors.New("client: getwhen timed out")
	// ErrLoginFailed is returned when credentials are rejected.
	ErrLoginFailed = errors.New("client: login failed")
	// ErrRegistrationFailed is returned when the server refuses a registration.
	ErrRegistrationFailed = errors.New("client: registration failed")
	// ErrUnknownCommand is returned when the server does not recognize a command.
	ErrUnknownCommand = errors.New("client: unknown command")
	// ErrNotAuthenticated is returned by commands issued before Login or Register.
	ErrNotAuthenticated = errors.New("client: not authenticated")
	// ErrClosed is returned after Close, or after the connection became
	// unusable.
	ErrClosed = errors.New("client: connection closed")
	// ErrUnexpectedReply is returned when the server sends something the
	// client did not expect at that point.
	ErrUnexpectedReply = errors.New("client: unexpected reply")
)

// AuthError carries the server's explanation of a failed login or
// registration.
type AuthError struct {
	// Kind is ErrLoginFailed or ErrRegistrationFailed.
	Kind error
	// Reason is the server's message, e.g. "Incorrect password. 1-Try Again".
	Reason string
	// Retryable reports whether Login (or Register) may be called again on
	// the same connection.
	Retryable bool
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%v: %s", e.Kind, e.Reason)
}

func (e *AuthError) Unwrap() error {
	return e.Kind
}
