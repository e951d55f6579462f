package response

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/rezkam/dayplan/internal/domain"
)

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error information.
type ErrorDetail struct {
	Code    string       `json:"code"`
	Message string       `json:"message"`
	Details []ErrorField `json:"details,omitempty"`
}

// ErrorField describes a field-specific error.
type ErrorField struct {
	Field string `json:"field"`
	Issue string `json:"issue"`
}

// BadRequest sends a 400 Bad Request error.
func BadRequest(w http.ResponseWriter, message string) {
	Error(w, "INVALID_REQUEST", message, http.StatusBadRequest)
}

// ValidationError sends a 400 validation error with field details.
func ValidationError(w http.ResponseWriter, field, issue string) {
	JSON(w, http.StatusBadRequest, ErrorResponse{
		Error: ErrorDetail{
			Code:    "VALIDATION_ERROR",
			Message: "validation failed",
			Details: []ErrorField{{Field: field, Issue: issue}},
		},
	})
}

// NotFound sends a 404 Not Found error.
func NotFound(w http.ResponseWriter, resource string) {
	Error(w, "NOT_FOUND", resource+" not found", http.StatusNotFound)
}

// Unauthorized sends a 401 Unauthorized error.
func Unauthorized(w http.ResponseWriter, message string) {
	Error(w, "UNAUTHORIZED", message, http.StatusUnauthorized)
}

// Conflict sends a 409 Conflict error.
func Conflict(w http.ResponseWriter, message string) {
	Error(w, "CONFLICT", message, http.StatusConflict)
}

// MethodNotAllowed sends a 405 error.
func MethodNotAllowed(w http.ResponseWriter) {
	Error(w, "METHOD_NOT_ALLOWED", "method not allowed", http.StatusMethodNotAllowed)
}

// InternalError logs err with the request context and sends a generic 500.
func InternalError(w http.ResponseWriter, r *http.Request, err error) {
	if err != nil {
		slog.ErrorContext(r.Context(), "internal server error",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err)
	}
	Error(w, "INTERNAL_ERROR", "an internal error occurred", http.StatusInternalServerError)
}

// Error sends a generic error response.
func Error(w http.ResponseWriter, code, message string, statusCode int) {
	JSON(w, statusCode, ErrorResponse{
		Error: ErrorDetail{Code: code, Message: message},
	})
}

// fieldErrors maps validation errors to the request field they concern.
var fieldErrors = []struct {
	err   error
	field string
}{
	{domain.ErrTitleRequired, "title"},
	{domain.ErrTitleTooLong, "title"},
	{domain.ErrNameRequired, "name"},
	{domain.ErrNameTooLong, "name"},
	{domain.ErrInvalidKind, "kind"},
	{domain.ErrInvalidStatus, "status"},
	{domain.ErrInvalidTransition, "status"},
	{domain.ErrInvalidTime, "time"},
	{domain.ErrAllDayTimeSet, "time"},
	{domain.ErrAllDayOnlyEvents, "all_day"},
	{domain.ErrInvalidDateRange, "end_date"},
	{domain.ErrDateOutOfRange, "date"},
	{domain.ErrInvalidDate, "date"},
	{domain.ErrDateRequired, "date"},
	{domain.ErrRangeTooLarge, "to"},
	{domain.ErrNotReschedulable, "kind"},
	{domain.ErrReorderMismatch, "item_ids"},
	{domain.ErrInvalidEtagFormat, "etag"},
	{domain.ErrEmptyUpdateMask, "update_mask"},
	{domain.ErrUnknownField, "update_mask"},
	{domain.ErrFieldNotForKind, "update_mask"},
	{domain.ErrPerDayStatusTask, "per_day_status"},
	{domain.ErrInvalidID, "id"},
	{domain.ErrNotificationTitleRequired, "title"},
	{domain.ErrNotificationMessageRequired, "message"},
}

// FromDomainError maps domain errors to HTTP responses.
func FromDomainError(w http.ResponseWriter, r *http.Request, err error) {
	for _, fe := range fieldErrors {
		if errors.Is(err, fe.err) {
			ValidationError(w, fe.field, err.Error())
			return
		}
	}

	switch {
	case errors.Is(err, domain.ErrItemNotFound):
		NotFound(w, "item")
	case errors.Is(err, domain.ErrProfileNotFound):
		NotFound(w, "profile")
	case errors.Is(err, domain.ErrNotFound):
		NotFound(w, "resource")
	case errors.Is(err, domain.ErrUnauthorized), errors.Is(err, domain.ErrOwnerRequired):
		Unauthorized(w, "invalid or missing API key")
	case errors.Is(err, domain.ErrVersionConflict), errors.Is(err, domain.ErrAlreadyExists):
		Conflict(w, err.Error())
	default:
		InternalError(w, r, err)
	}
}
