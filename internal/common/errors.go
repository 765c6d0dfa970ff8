// Package common holds sentinel errors, id helpers and the JSON response
// envelope shared by the service packages. Match errors with errors.Is.
package common

import "errors"

var (
	// storage
	ErrNotFound           = errors.New("not found")
	ErrStorageUnavailable = errors.New("storage unavailable")

	// credentials
	// ErrDuplicateUsername is what the API reports when Register returns
	// false; the store itself signals a duplicate with the bool.
	ErrDuplicateUsername  = errors.New("username already exists")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrEmptyCredentials   = errors.New("username and password required")
	ErrTooManyAttempts    = errors.New("too many failed login attempts")

	// sessions
	ErrSessionNotFound  = errors.New("session not found")
	ErrNotAuthenticated = errors.New("session is not authenticated")

	// chat turns
	ErrEmptyMessage      = errors.New("message is empty")
	ErrTurnInFlight      = errors.New("a message is already being processed")
	ErrGenerationFailure = errors.New("generation failed")
)
