package auth

import (
	"errors"
	"sort"
	"strings"
)

var (
	// ErrUnauthorized covers unknown accounts, wrong passwords and unusable tokens alike.
	ErrUnauthorized = errors.New("auth: unauthorized")
	// ErrEmailNotVerified is returned by Login while the account is pending verification.
	ErrEmailNotVerified = errors.New("auth: email not verified")
	// ErrInvalidOrExpiredToken reports a failed action token consumption.
	ErrInvalidOrExpiredToken = errors.New("auth: invalid or expired token")
	// ErrInvalidLink reports a verification link that was never issued to the user.
	ErrInvalidLink = errors.New("auth: invalid verification link")
	// ErrInvalidToken is returned by the token issuer for any signature, expiry or type failure.
	ErrInvalidToken = errors.New("auth: invalid token")
	// ErrConflict signals a unique constraint violation, such as a duplicate email.
	ErrConflict = errors.New("auth: conflict")
	// ErrNotFound is returned by stores when no record matches.
	ErrNotFound = errors.New("auth: not found")
)

// ValidationError carries every field level violation found in one request.
type ValidationError struct {
	Fields map[string][]string
	cause  error
}

// NewValidationError returns an empty ValidationError ready for Add calls.
func NewValidationError() *ValidationError {
	return &ValidationError{Fields: make(map[string][]string)}
}

// Add records a message for field.
func (e *ValidationError) Add(field, message string) {
	if e.Fields == nil {
		e.Fields = make(map[string][]string)
	}
	e.Fields[field] = append(e.Fields[field], message)
}

// Merge appends every message of fields.
func (e *ValidationError) Merge(fields map[string][]string) {
	for field, messages := range fields {
		for _, message := range messages {
			e.Add(field, message)
		}
	}
}

// HasErrors reports whether any violation was recorded.
func (e *ValidationError) HasErrors() bool {
	return e != nil && len(e.Fields) > 0
}

func (e *ValidationError) Error() string {
	if e == nil || len(e.Fields) == 0 {
		return "auth: validation failed"
	}
	fields := make([]string, 0, len(e.Fields))
	for field := range e.Fields {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	return "auth: validation failed: " + strings.Join(fields, ", ")
}

// Unwrap exposes the underlying cause, ErrConflict for duplicate emails.
func (e *ValidationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

func conflictError(field, message string) *ValidationError {
	verr := NewValidationError()
	verr.Add(field, message)
	verr.cause = ErrConflict
	return verr
}
