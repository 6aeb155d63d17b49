package handler

// RESPONSE HELPERS:
// These functions standardise how we send JSON responses and errors.
//
//   writeJSON(w, http.StatusOK, data)
//   writeError(w, err)
//
// CONSISTENT ERROR FORMAT:
// Every error response with a body has the same shape:
//   {"error": "admission_denied", "message": "user already checked in today", "reason": "daily_limit_exceeded"}
//
// Not-found responses are the exception: a bare 404 with no body.

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/sakif/checkfit/internal/apperror"
)

// maxBodyBytes caps request bodies. Every payload this API accepts is a
// handful of short fields.
const maxBodyBytes = 1 << 20

// ErrorResponse is the standard error format returned by all API endpoints.
type ErrorResponse struct {
	Error   string `json:"error"`            // Machine-readable error type (e.g., "validation_error")
	Message string `json:"message"`          // Human-readable description
	Field   string `json:"field,omitempty"`  // Offending input field, when there is one
	Reason  string `json:"reason,omitempty"` // Admission rejection reason
}

// writeJSON sends a JSON response with the given status code.
//
// HEADER ORDER MATTERS:
// Headers and status must be set BEFORE writing the body. Once Encode
// writes, header changes are silently ignored.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// Headers are already sent; all we can do is log it.
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// decodeJSON reads a single JSON object from the request body into dst.
// Malformed JSON, including a badly formatted date, is a validation error
// so it reaches the client as a 400 with a message.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return apperror.ValidationFailed("body", fmt.Sprintf("invalid JSON body: %v", err))
	}
	return nil
}

// statusFor maps a domain error to its HTTP status and machine-readable type.
//
// ERROR MAPPING:
// Domain errors (from the service layer) get translated to HTTP here, never
// in the services.
//
//	ErrValidation, ErrAdmission, ErrConflict, ErrInvalidCredentials → 400
//	ErrNotFound     → 404
//	ErrUnauthorized → 401
//	anything else   → 500
//
// Uniqueness conflicts are 400 rather than 409: registration clients expect
// a bad request carrying the message for the field that is taken.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, apperror.ErrValidation):
		return http.StatusBadRequest, "validation_error"
	case errors.Is(err, apperror.ErrAdmission):
		return http.StatusBadRequest, "admission_denied"
	case errors.Is(err, apperror.ErrConflict):
		return http.StatusBadRequest, "already_registered"
	case errors.Is(err, apperror.ErrInvalidCredentials):
		return http.StatusBadRequest, "invalid_credentials"
	case errors.Is(err, apperror.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, apperror.ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	}
	return http.StatusInternalServerError, "internal_error"
}

// writeError maps a domain error to the appropriate HTTP status code and
// sends it.
//
// errors.As() walks the chain (via Unwrap) and extracts our AppError even
// when a service wrapped it: fmt.Errorf("getting activity: %w", apperror.NotFound(...)).
func writeError(w http.ResponseWriter, err error) {
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		// NEVER expose internal error details to the client. The raw message
		// might contain SQL or file paths.
		slog.Error("unhandled error", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "An internal error occurred",
		})
		return
	}

	status, errorType := statusFor(err)
	if status == http.StatusNotFound {
		w.WriteHeader(status)
		return
	}

	writeJSON(w, status, ErrorResponse{
		Error:   errorType,
		Message: appErr.Message,
		Field:   appErr.Field,
		Reason:  string(appErr.Reason),
	})
}

// writeBadRequest reports err as a 400 whatever its kind, unless it is an
// internal failure. POST /checkin uses it: an unknown activity or caller is a
// rejected request there, not a missing resource.
func writeBadRequest(w http.ResponseWriter, err error) {
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		writeError(w, err)
		return
	}

	_, errorType := statusFor(err)
	writeJSON(w, http.StatusBadRequest, ErrorResponse{
		Error:   errorType,
		Message: appErr.Message,
		Field:   appErr.Field,
		Reason:  string(appErr.Reason),
	})
}
