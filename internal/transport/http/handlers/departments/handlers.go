package departmenthandler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"hrleave/internal/domain/audit"
	"hrleave/internal/domain/auth"
	"hrleave/internal/domain/employee"
	"hrleave/internal/requestctx"
	"hrleave/internal/transport/http/api"
	"hrleave/internal/transport/http/middleware"
	"hrleave/internal/transport/http/shared"
)

type Handler struct {
	Service *employee.Service
	Perms   middleware.PermissionStore
	Audit   *audit.Service
}

func NewHandler(service *employee.Service, perms middleware.PermissionStore, auditSvc *audit.Service) *Handler {
	return &Handler{Service: service, Perms: perms, Audit: auditSvc}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/departments", func(r chi.Router) {
		r.With(middleware.RequirePermission(auth.PermDepartmentsRead, h.Perms)).Get("/", h.handleList)
		r.With(middleware.RequirePermission(auth.PermDepartmentsWrite, h.Perms)).Post("/", h.handleCreate)
		r.With(middleware.RequirePermission(auth.PermDepartmentsRead, h.Perms)).Get("/{departmentID}", h.handleGet)
		r.With(middleware.RequirePermission(auth.PermDepartmentsWrite, h.Perms)).Patch("/{departmentID}", h.handleUpdate)
		r.With(middleware.RequirePermission(auth.PermDepartmentsWrite, h.Perms)).Delete("/{departmentID}", h.handleDelete)
	})
}

type createPayload struct {
	Name        string `json:"name" validate:"required,max=100"`
	Description string `json:"description,omitempty" validate:"max=500"`
}

type updatePayload struct {
	Name        *string `json:"name,omitempty" validate:"omitempty,min=1,max=100"`
	Description *string `json:"description,omitempty" validate:"omitempty,max=500"`
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	departments, err := h.Service.ListDepartments(r.Context())
	if err != nil {
		shared.WriteDomainError(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	if departments == nil {
		departments = []employee.Department{}
	}
	api.Success(w, departments, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	dep, err := h.Service.GetDepartment(r.Context(), chi.URLParam(r, "departmentID"))
	if err != nil {
		shared.WriteDomainError(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, dep, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	reqID := middleware.GetRequestID(r.Context())

	var payload createPayload
	if !shared.BindAndValidate(w, r, &payload, reqID) {
		return
	}

	ctx := r.Context()
	dep, err := h.Service.CreateDepartment(ctx, employee.DepartmentInput{Name: &payload.Name, Description: &payload.Description})
	if writeDepartmentError(w, err, reqID) {
		return
	}
	if err := h.Audit.Record(ctx, user.EmployeeID, audit.ActionDepartmentCreate, "department", dep.ID, requestctx.GetRequestID(ctx), requestctx.GetClientIP(ctx), nil, dep); err != nil {
		slog.Warn("audit department.create failed", "err", err)
	}
	api.Created(w, dep, reqID)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	reqID := middleware.GetRequestID(r.Context())

	var payload updatePayload
	if !shared.BindAndValidate(w, r, &payload, reqID) {
		return
	}

	ctx := r.Context()
	id := chi.URLParam(r, "departmentID")
	before, err := h.Service.GetDepartment(ctx, id)
	if err != nil {
		shared.WriteDomainError(w, err, reqID)
		return
	}
	dep, err := h.Service.UpdateDepartment(ctx, id, employee.DepartmentInput{Name: payload.Name, Description: payload.Description})
	if writeDepartmentError(w, err, reqID) {
		return
	}
	if err := h.Audit.Record(ctx, user.EmployeeID, audit.ActionDepartmentUpdate, "department", dep.ID, requestctx.GetRequestID(ctx), requestctx.GetClientIP(ctx), before, dep); err != nil {
		slog.Warn("audit department.update failed", "err", err)
	}
	api.Success(w, dep, reqID)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	ctx := r.Context()
	reqID := middleware.GetRequestID(ctx)
	id := chi.URLParam(r, "departmentID")

	before, err := h.Service.GetDepartment(ctx, id)
	if err != nil {
		shared.WriteDomainError(w, err, reqID)
		return
	}
	if err := h.Service.DeleteDepartment(ctx, id); err != nil {
		shared.WriteDomainError(w, err, reqID)
		return
	}
	if err := h.Audit.Record(ctx, user.EmployeeID, audit.ActionDepartmentDelete, "department", id, requestctx.GetRequestID(ctx), requestctx.GetClientIP(ctx), before, nil); err != nil {
		slog.Warn("audit department.delete failed", "err", err)
	}
	api.Success(w, map[string]string{"id": id}, reqID)
}

func writeDepartmentError(w http.ResponseWriter, err error, reqID string) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, employee.ErrDepartmentNameTaken):
		api.Fail(w, http.StatusConflict, "department_exists", "department name already in use", reqID)
	default:
		shared.WriteDomainError(w, err, reqID)
	}
	return true
}
