// Package errors provides centralized error types and exit codes for the arena.
package errors

import "fmt"

// Exit codes for different error categories.
const (
	ExitSuccess      = 0
	ExitGeneralError = 1
	ExitConfigError  = 2
	ExitAudioError   = 3
	ExitNetworkError = 5
)

// ArenaError is the base error type for all arena-specific errors.
type ArenaError struct {
	Code    int
	Message string
	Cause   error
}

// Error returns the error message, including the cause if present.
func (e *ArenaError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying cause of the error.
func (e *ArenaError) Unwrap() error {
	return e.Cause
}

// NewConfigError creates a new configuration error.
func NewConfigError(msg string) *ArenaError {
	return &ArenaError{
		Code:    ExitConfigError,
		Message: msg,
	}
}

// NewConfigErrorWithCause creates a new configuration error with an underlying cause.
func NewConfigErrorWithCause(msg string, cause error) *ArenaError {
	return &ArenaError{
		Code:    ExitConfigError,
		Message: msg,
		Cause:   cause,
	}
}

// NewAudioError creates a new audio device error.
func NewAudioError(msg string) *ArenaError {
	return &ArenaError{
		Code:    ExitAudioError,
		Message: msg,
	}
}

// NewAudioErrorWithCause creates a new audio device error with an underlying cause.
func NewAudioErrorWithCause(msg string, cause error) *ArenaError {
	return &ArenaError{
		Code:    ExitAudioError,
		Message: msg,
		Cause:   cause,
	}
}

// NewNetworkErrorWithCause creates a new network error with an underlying cause.
func NewNetworkErrorWithCause(msg string, cause error) *ArenaError {
	return &ArenaError{
		Code:    ExitNetworkError,
		Message: msg,
		Cause:   cause,
	}
}

// NewGeneralErrorWithCause creates a new general error with an underlying cause.
func NewGeneralErrorWithCause(msg string, cause error) *ArenaError {
	return &ArenaError{
		Code:    ExitGeneralError,
		Message: msg,
		Cause:   cause,
	}
}

// IsConfigError checks if an error is a configuration error.
func IsConfigError(err error) bool {
	if arenaErr, ok := err.(*ArenaError); ok {
		return arenaErr.Code == ExitConfigError
	}
	return false
}

// IsAudioError checks if an error is an audio device error.
func IsAudioError(err error) bool {
	if arenaErr, ok := err.(*ArenaError); ok {
		return arenaErr.Code == ExitAudioError
	}
	return false
}

// IsNetworkError checks if an error is a network error.
func IsNetworkError(err error) bool {
	if arenaErr, ok := err.(*ArenaError); ok {
		return arenaErr.Code == ExitNetworkError
	}
	return false
}

// GetExitCode returns the exit code for an error.
// If the error is not an ArenaError, it returns ExitGeneralError.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	if arenaErr, ok := err.(*ArenaError); ok {
		return arenaErr.Code
	}
	return ExitGeneralError
}
