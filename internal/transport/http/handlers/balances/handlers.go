package balancehandler

import (
	"bytes"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"hrleave/internal/domain/apperror"
	"hrleave/internal/domain/auth"
	"hrleave/internal/domain/balance"
	"hrleave/internal/domain/employee"
	"hrleave/internal/transport/http/api"
	"hrleave/internal/transport/http/middleware"
	"hrleave/internal/transport/http/shared"
)

type Handler struct {
	Service   *balance.Service
	Employees *employee.Service
	Perms     middleware.PermissionStore
}

func NewHandler(service *balance.Service, employees *employee.Service, perms middleware.PermissionStore) *Handler {
	return &Handler{Service: service, Employees: employees, Perms: perms}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/balances", func(r chi.Router) {
		r.With(middleware.RequirePermission(auth.PermBalancesRead, h.Perms)).Get("/me", h.handleMine)
		r.With(middleware.RequirePermission(auth.PermBalancesRead, h.Perms)).Get("/me/history", h.handleHistory)
		r.With(middleware.RequirePermission(auth.PermBalancesRead, h.Perms)).Get("/me/statement.pdf", h.handleStatement)
		r.With(middleware.RequirePermission(auth.PermBalancesReadTeam, h.Perms)).Get("/{employeeID}", h.handleForEmployee)
	})
}

func (h *Handler) handleMine(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	year, ok := parseYear(w, r)
	if !ok {
		return
	}
	b, err := h.Service.ForYear(r.Context(), user.EmployeeID, year)
	if err != nil {
		shared.WriteDomainError(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, b.View(), middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	history, err := h.Service.History(r.Context(), user.EmployeeID)
	if err != nil {
		shared.WriteDomainError(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, history, middleware.GetRequestID(r.Context()))
}

// handleForEmployee is open to HR and to the employee's direct manager.
func (h *Handler) handleForEmployee(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	year, ok := parseYear(w, r)
	if !ok {
		return
	}

	employeeID := chi.URLParam(r, "employeeID")
	target, err := h.Employees.Get(r.Context(), employeeID)
	if err != nil {
		shared.WriteDomainError(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	if !user.IsHR && target.ID != user.EmployeeID && !target.ManagedBy(user.EmployeeID) {
		shared.WriteDomainError(w, apperror.Forbidden("not allowed to view this balance"), middleware.GetRequestID(r.Context()))
		return
	}

	b, err := h.Service.ForYear(r.Context(), target.ID, year)
	if err != nil {
		shared.WriteDomainError(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, b.View(), middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleStatement(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	year, ok := parseYear(w, r)
	if !ok {
		return
	}

	emp, err := h.Employees.Get(r.Context(), user.EmployeeID)
	if err != nil {
		shared.WriteDomainError(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	b, err := h.Service.ForYear(r.Context(), emp.ID, year)
	if err != nil {
		shared.WriteDomainError(w, err, middleware.GetRequestID(r.Context()))
		return
	}

	var buf bytes.Buffer
	holder := balance.StatementHolder{Name: emp.DisplayName(), EmployeeCode: emp.EmployeeCode, Email: emp.Email}
	if err := balance.RenderStatement(&buf, holder, b, time.Now()); err != nil {
		slog.Error("balance statement render failed", "err", err, "employeeId", emp.ID)
		api.Fail(w, http.StatusInternalServerError, "statement_failed", "failed to render statement", middleware.GetRequestID(r.Context()))
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=balance-%s-%d.pdf", emp.EmployeeCode, b.Year))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(buf.Bytes()); err != nil {
		slog.Warn("balance statement write failed", "err", err)
	}
}

func parseYear(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("year")
	if raw == "" {
		return 0, true
	}
	year, err := strconv.Atoi(raw)
	if err != nil || year < 1970 || year > 9999 {
		api.Fail(w, http.StatusBadRequest, "invalid_year", "year must be a four-digit number", middleware.GetRequestID(r.Context()))
		return 0, false
	}
	return year, true
}
