package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"hrleave/internal/domain/auth"
)

type staticPerms map[string][]string

func (s staticPerms) HasPermission(_ context.Context, role, permission string) (bool, error) {
	if role == "broken" {
		return false, errors.New("policy unavailable")
	}
	for _, p := range s[role] {
		if p == permission {
			return true, nil
		}
	}
	return false, nil
}

func TestRequirePermission(t *testing.T) {
	perms := staticPerms{auth.RoleManager: {auth.PermRequestsApprove}}
	tests := []struct {
		name   string
		user   *auth.UserContext
		status int
	}{
		{name: "anonymous", user: nil, status: http.StatusUnauthorized},
		{name: "allowed", user: &auth.UserContext{EmployeeID: "m1", Role: auth.RoleManager}, status: http.StatusOK},
		{name: "denied", user: &auth.UserContext{EmployeeID: "e1", Role: auth.RoleEmployee}, status: http.StatusForbidden},
		{name: "store error", user: &auth.UserContext{EmployeeID: "x", Role: "broken"}, status: http.StatusInternalServerError},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			handler := RequirePermission(auth.PermRequestsApprove, perms)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			}))
			req := httptest.NewRequest(http.MethodPost, "/", nil)
			if tc.user != nil {
				req = req.WithContext(WithUser(req.Context(), *tc.user))
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			if rec.Code != tc.status {
				t.Fatalf("expected %d, got %d", tc.status, rec.Code)
			}
		})
	}
}
