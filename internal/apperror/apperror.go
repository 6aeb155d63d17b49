package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrValidation         = errors.New("validation error")
	ErrConflict           = errors.New("conflict")
	ErrAdmission          = errors.New("admission denied")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnauthorized       = errors.New("unauthorized")
)

// Reason identifies why the admission engine rejected a check-in.
type Reason string

const (
	ReasonExpired          Reason = "expired"
	ReasonCapacityExceeded Reason = "capacity_exceeded"
	ReasonDuplicateCheckin Reason = "duplicate_checkin"
	ReasonDailyLimit       Reason = "daily_limit_exceeded"
)

type AppError struct {
	Err     error  // actual error
	Message string // Human-readable error message
	Field   string // Optional: field causing the error
	Reason  Reason // Optional: admission rejection reason
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

func Conflict(resource, id string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: fmt.Sprintf("%s conflict with id %s", resource, id),
	}
}

// AlreadyRegistered reports a uniqueness violation on a user field,
// e.g. AlreadyRegistered("cpf", "CPF") → "CPF already registered".
func AlreadyRegistered(field, label string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: label + " already registered",
		Field:   field,
	}
}

// AdmissionDenied is returned by the check-in admission engine when one of
// its rules rejects the request.
func AdmissionDenied(reason Reason, message string) *AppError {
	return &AppError{
		Err:     ErrAdmission,
		Message: message,
		Reason:  reason,
	}
}

// InvalidCredentials deliberately does not say whether the email or the
// password was wrong.
func InvalidCredentials() *AppError {
	return &AppError{
		Err:     ErrInvalidCredentials,
		Message: "invalid email or password",
	}
}

// Unauthorized is returned when a request carries no usable identity.
func Unauthorized(message string) *AppError {
	return &AppError{
		Err:     ErrUnauthorized,
		Message: message,
	}
}

// ReasonOf returns the admission reason carried by err, or "" if err is not
// an admission rejection.
func ReasonOf(err error) Reason {
	var appErr *AppError
	if errors.As(err, &appErr) && errors.Is(appErr.Err, ErrAdmission) {
		return appErr.Reason
	}
	return ""
}
