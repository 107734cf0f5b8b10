package response

import (
	"errors"
	"net/http"

	"github.com/stemsi/help-queue/internal/model"
)

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Session ───────────────────────────────────────────────────────
	ErrSessionRequired ErrCode = "SESSION_REQUIRED"
	ErrSessionInvalid  ErrCode = "SESSION_INVALID"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound ErrCode = "NOT_FOUND"
	ErrConflict ErrCode = "CONFLICT"

	// ─── Store ─────────────────────────────────────────────────────────
	ErrStoreUnavailable   ErrCode = "STORE_UNAVAILABLE"
	ErrStoreMisconfigured ErrCode = "STORE_MISCONFIGURED"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	case ErrSessionRequired:
		return "A session token is required."
	case ErrSessionInvalid:
		return "Your session has ended. Please log in again."

	case ErrValidation:
		return "Validation failed. Please check your input."
	case ErrInvalidPayload:
		return "Invalid request payload."

	case ErrNotFound:
		return "Help request not found."
	case ErrConflict:
		return "The queue changed while you were acting on it. Refresh and try again."

	case ErrStoreUnavailable:
		return "The help queue store is unreachable right now."
	case ErrStoreMisconfigured:
		return "The help queue store is not configured correctly. Contact the operator."

	case ErrRateLimitExceeded:
		return "Too many requests. Please try again later."

	case ErrInternal:
		return "Internal server error."
	default:
		return "An unexpected error occurred."
	}
}

// Classify maps a domain error to an HTTP status and error code.
func Classify(err error) (int, ErrCode) {
	switch {
	case errors.Is(err, model.ErrValidation):
		return http.StatusBadRequest, ErrValidation
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound, ErrNotFound
	case errors.Is(err, model.ErrRowChanged):
		return http.StatusConflict, ErrConflict
	case errors.Is(err, model.ErrSessionNotFound):
		return http.StatusUnauthorized, ErrSessionInvalid
	case errors.Is(err, model.ErrConfiguration):
		return http.StatusInternalServerError, ErrStoreMisconfigured
	case errors.Is(err, model.ErrConnection):
		return http.StatusServiceUnavailable, ErrStoreUnavailable
	default:
		return http.StatusInternalServerError, ErrInternal
	}
}
