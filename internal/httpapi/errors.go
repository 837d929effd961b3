package httpapi

import (
	"errors"
	"net/http"

	"github.com/smilemakc/mbflow/pkg/models"
)

// APIError is the error envelope every handler responds with on
// failure, adapted from the teacher's internal/infrastructure/api/rest
// package (same shape, renamed field set trimmed to this domain).
type APIError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"-"`
}

func (e *APIError) Error() string { return e.Message }

func newAPIError(code, message string, status int) *APIError {
	return &APIError{Code: code, Message: message, HTTPStatus: status}
}

var (
	errBadRequest   = newAPIError("BAD_REQUEST", "invalid request", http.StatusBadRequest)
	errInvalidJSON  = newAPIError("INVALID_JSON", "invalid JSON in request body", http.StatusBadRequest)
	errNotFound     = newAPIError("NOT_FOUND", "resource not found", http.StatusNotFound)
	errInternal     = newAPIError("INTERNAL_ERROR", "internal server error", http.StatusInternalServerError)
	errUnknownQuery = newAPIError("UNKNOWN_QUERY", "unknown query name", http.StatusBadRequest)
)

// translateError maps a domain/sentinel error into this package's
// APIError envelope, following the teacher's TranslateError pattern.
func translateError(err error) *APIError {
	if err == nil {
		return nil
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}

	switch {
	case errors.Is(err, models.ErrCaseNotFound):
		return newAPIError("CASE_NOT_FOUND", "case not found", http.StatusNotFound)
	case errors.Is(err, models.ErrCaseExists):
		return newAPIError("CASE_EXISTS", "case already exists", http.StatusConflict)
	case errors.Is(err, models.ErrFingerprintConflict):
		return newAPIError("FINGERPRINT_CONFLICT", "another attempt is in flight for this order", http.StatusConflict)
	case errors.Is(err, models.ErrSignalRejected):
		return newAPIError("SIGNAL_REJECTED", "workflow is not accepting signals", http.StatusConflict)
	case errors.Is(err, models.ErrPatchPathNotAllowed):
		return newAPIError("PATCH_PATH_NOT_ALLOWED", "patch path is not editable", http.StatusBadRequest)
	case errors.Is(err, models.ErrPatchConflict):
		return newAPIError("PATCH_CONFLICT", "case was modified concurrently", http.StatusConflict)
	case errors.Is(err, models.ErrWorkflowThreadMissing):
		return newAPIError("WORKFLOW_NOT_FOUND", "workflow not found", http.StatusNotFound)
	default:
		return newAPIError("INTERNAL_ERROR", err.Error(), http.StatusInternalServerError)
	}
}
