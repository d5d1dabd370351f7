// Package domain defines the core domain models for kvmesh.
package domain

import (
	"errors"
	"fmt"
)

// DomainError represents a business domain error with a stable error code.
//
// Codes follow the format KV-<AREA>-<NNNN>, where the numeric part mirrors
// the closest HTTP status for readability.
type DomainError struct {
	Code    string // Error code (e.g., "KV-USER-4090")
	Message string // Human-readable message
	Details string // Optional additional details
	Cause   error  // Underlying error (if any)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap() support.
func (e *DomainError) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is() support. Two domain errors match when their
// codes match, regardless of details or cause.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewDomainError creates a new DomainError with the given code and message.
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// WithDetails returns a copy of the error with additional details.
func (e *DomainError) WithDetails(details string) *DomainError {
	return &DomainError{
		Code:    e.Code,
		Message: e.Message,
		Details: details,
		Cause:   e.Cause,
	}
}

// WithCause returns a copy of the error wrapping the given cause.
func (e *DomainError) WithCause(cause error) *DomainError {
	return &DomainError{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
		Cause:   cause,
	}
}

// GetErrorCode extracts the error code from an error if it's a DomainError.
func GetErrorCode(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// User errors.
var (
	// ErrDuplicateUser indicates the username is already registered.
	ErrDuplicateUser = NewDomainError("KV-USER-4090", "username already exists")

	// ErrUserNotFound indicates the username is not registered.
	ErrUserNotFound = NewDomainError("KV-USER-4040", "user does not exist")

	// ErrBadPassword indicates the password does not match.
	ErrBadPassword = NewDomainError("KV-USER-4010", "incorrect password")

	// ErrInvalidCredentials indicates a username or password that cannot be stored.
	ErrInvalidCredentials = NewDomainError("KV-USER-4000", "invalid username or password")

	// ErrUserStore indicates the user log could not be written.
	ErrUserStore = NewDomainError("KV-USER-5000", "user store unavailable")
)

// Protocol errors.
var (
	// ErrUnknownCommand indicates an unrecognized command label.
	ErrUnknownCommand = NewDomainError("KV-PROTO-4000", "unknown command")

	// ErrAuthAborted indicates the peer left the authentication flow.
	ErrAuthAborted = NewDomainError("KV-PROTO-4010", "authentication aborted")
)
