package app

import (
	"errors"
	"strings"
)

var (
	// ErrInvalidCredentials is returned when the supplied credentials do not match.
	// This message is intended to be shown to end users and should not enable account enumeration.
	ErrInvalidCredentials = errors.New("Incorrect email address or password")

	// ErrUserDisabled is returned when an account is disabled.
	// Handlers should generally NOT expose this to clients to avoid account enumeration.
	ErrUserDisabled = errors.New("user disabled")

	ErrNotFound  = errors.New("resource not found")
	ErrForbidden = errors.New("forbidden")

	ErrEmailAndPasswordRequired = errors.New("email and password required")
	ErrEmailAlreadyExists       = errors.New("email already exists")

	ErrRefreshTokenRequired = errors.New("refresh token required")
	ErrInvalidRefreshToken  = errors.New("invalid refresh token")

	ErrInvalidConfirmToken = errors.New("invalid or expired confirmation token")

	ErrIDMismatch = errors.New("path id does not match body id")
	ErrShelfFull  = errors.New("shelf is at capacity")
)

// ValidationError carries one or more field-level violations. The server
// layer maps it to a 400 response listing every violation.
type ValidationError struct {
	Violations []string
}

func (e *ValidationError) Error() string {
	return strings.Join(e.Violations, "; ")
}

// NewValidationError builds a ValidationError from messages.
func NewValidationError(violations ...string) *ValidationError {
	return &ValidationError{Violations: violations}
}
