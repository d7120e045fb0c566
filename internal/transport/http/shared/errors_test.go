package shared

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"hrleave/internal/domain/apperror"
)

func TestWriteDomainErrorStatusMapping(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{apperror.NotFound("request"), http.StatusNotFound},
		{apperror.InvalidRange(), http.StatusBadRequest},
		{apperror.AdvanceWindowExceeded(30), http.StatusUnprocessableEntity},
		{apperror.InsufficientBalance("vacation", 1), http.StatusConflict},
		{apperror.InvalidState("already approved"), http.StatusConflict},
		{apperror.Forbidden("no"), http.StatusForbidden},
		{apperror.Validation("bad"), http.StatusBadRequest},
		{fmt.Errorf("wrapped: %w", apperror.NotFound("employee")), http.StatusNotFound},
		{errors.New("db down"), http.StatusInternalServerError},
	}
	for _, tc := range tests {
		rec := httptest.NewRecorder()
		WriteDomainError(rec, tc.err, "req")
		if rec.Code != tc.status {
			t.Fatalf("%v: expected %d, got %d", tc.err, tc.status, rec.Code)
		}
	}
}
