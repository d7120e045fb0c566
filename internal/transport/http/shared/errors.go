package shared

import (
	"errors"
	"log/slog"
	"net/http"

	"hrleave/internal/domain/apperror"
	"hrleave/internal/transport/http/api"
)

// WriteDomainError maps an apperror kind to its HTTP status and code.
// Anything unclassified is logged and reported as a 500.
func WriteDomainError(w http.ResponseWriter, err error, requestID string) {
	var appErr *apperror.Error
	if !errors.As(err, &appErr) {
		slog.Error("request failed", "err", err, "requestId", requestID)
		api.Fail(w, http.StatusInternalServerError, "internal_error", "internal server error", requestID)
		return
	}

	switch appErr.Kind {
	case apperror.KindNotFound:
		api.Fail(w, http.StatusNotFound, "not_found", appErr.Error(), requestID)
	case apperror.KindInvalidRange:
		api.Fail(w, http.StatusBadRequest, "invalid_range", appErr.Error(), requestID)
	case apperror.KindAdvanceWindowExceeded:
		api.FailWithDetails(w, http.StatusUnprocessableEntity, "advance_window_exceeded", appErr.Error(),
			map[string]any{"maxAdvanceDays": appErr.MaxAdvanceDays}, requestID)
	case apperror.KindInsufficientBalance:
		api.FailWithDetails(w, http.StatusConflict, "insufficient_balance", appErr.Error(),
			map[string]any{"category": appErr.Category, "remaining": appErr.Remaining}, requestID)
	case apperror.KindInvalidState:
		api.Fail(w, http.StatusConflict, "invalid_state", appErr.Error(), requestID)
	case apperror.KindForbidden:
		api.Fail(w, http.StatusForbidden, "forbidden", appErr.Error(), requestID)
	case apperror.KindValidation:
		api.Fail(w, http.StatusBadRequest, "validation_error", appErr.Error(), requestID)
	default:
		slog.Error("unmapped domain error", "err", err, "kind", appErr.Kind, "requestId", requestID)
		api.Fail(w, http.StatusInternalServerError, "internal_error", "internal server error", requestID)
	}
}
