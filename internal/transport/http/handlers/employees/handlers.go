package employeehandler

import (
	"errors"
	"log/slog"
	"net/http"
	"unicode"

	"github.com/go-chi/chi/v5"

	"hrleave/internal/domain/apperror"
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
	r.Route("/employees", func(r chi.Router) {
		r.With(middleware.RequirePermission(auth.PermEmployeesReadAll, h.Perms)).Get("/", h.handleList)
		r.With(middleware.RequirePermission(auth.PermEmployeesWrite, h.Perms)).Post("/", h.handleCreate)
		r.With(middleware.RequirePermission(auth.PermEmployeesRead, h.Perms)).Get("/me", h.handleMe)
		r.With(middleware.RequirePermission(auth.PermEmployeesRead, h.Perms)).Get("/me/subordinates", h.handleSubordinates)
		r.With(middleware.RequirePermission(auth.PermEmployeesRead, h.Perms)).Get("/{employeeID}", h.handleGet)
		r.With(middleware.RequirePermission(auth.PermEmployeesWrite, h.Perms)).Patch("/{employeeID}", h.handleUpdate)
		r.With(middleware.RequirePermission(auth.PermEmployeesWrite, h.Perms)).Delete("/{employeeID}", h.handleDeactivate)
	})
}

type createPayload struct {
	EmployeeCode string  `json:"employeeCode" validate:"required,max=64"`
	FirstName    string  `json:"firstName" validate:"required,max=100"`
	LastName     string  `json:"lastName" validate:"required,max=100"`
	Email        string  `json:"email" validate:"required,email"`
	Password     string  `json:"password" validate:"required"`
	IsHR         bool    `json:"isHr"`
	ManagerID    *string `json:"managerId,omitempty"`
	DepartmentID *string `json:"departmentId,omitempty"`
}

type updatePayload struct {
	EmployeeCode *string `json:"employeeCode,omitempty" validate:"omitempty,min=1,max=64"`
	FirstName    *string `json:"firstName,omitempty" validate:"omitempty,min=1,max=100"`
	LastName     *string `json:"lastName,omitempty" validate:"omitempty,min=1,max=100"`
	Email        *string `json:"email,omitempty" validate:"omitempty,email"`
	Password     *string `json:"password,omitempty"`
	IsHR         *bool   `json:"isHr,omitempty"`
	IsActive     *bool   `json:"isActive,omitempty"`
	ManagerID    *string `json:"managerId,omitempty"`
	DepartmentID *string `json:"departmentId,omitempty"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	reqID := middleware.GetRequestID(r.Context())
	if !user.IsHR {
		api.Fail(w, http.StatusForbidden, "forbidden", "hr role required", reqID)
		return
	}

	var payload createPayload
	if !shared.BindAndValidate(w, r, &payload, reqID) {
		return
	}
	v := shared.NewValidator()
	if err := validatePassword(payload.Password); err != nil {
		v.Add("password", err.Error())
	}
	if v.Reject(w, reqID) {
		return
	}

	created, err := h.Service.Create(r.Context(), employee.CreateInput{
		EmployeeCode: payload.EmployeeCode,
		FirstName:    payload.FirstName,
		LastName:     payload.LastName,
		Email:        payload.Email,
		Password:     payload.Password,
		IsHR:         payload.IsHR,
		ManagerID:    payload.ManagerID,
		DepartmentID: payload.DepartmentID,
	})
	if errors.Is(err, employee.ErrEmailTaken) {
		api.Fail(w, http.StatusConflict, "email_taken", "email already in use", reqID)
		return
	}
	if err != nil {
		shared.WriteDomainError(w, err, reqID)
		return
	}

	ctx := r.Context()
	if err := h.Audit.Record(ctx, user.EmployeeID, audit.ActionEmployeeCreate, "employee", created.ID, requestctx.GetRequestID(ctx), requestctx.GetClientIP(ctx), nil, created); err != nil {
		slog.Warn("audit employee.create failed", "err", err)
	}
	api.Created(w, created, reqID)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	page := shared.ParsePagination(r, 50, 200)
	filter := employee.ListFilter{
		DepartmentID: r.URL.Query().Get("departmentId"),
		Limit:        page.Limit,
		Offset:       page.Offset,
	}
	switch status := r.URL.Query().Get("status"); status {
	case "":
	case "active", "inactive":
		active := status == "active"
		filter.Active = &active
	default:
		shared.FailValidation(w, reqID, []shared.ValidationIssue{{Field: "status", Reason: "must be active or inactive"}})
		return
	}

	list, total, err := h.Service.List(r.Context(), filter)
	if err != nil {
		shared.WriteDomainError(w, err, reqID)
		return
	}
	if list == nil {
		list = []employee.Employee{}
	}
	shared.SetTotalCount(w, total)
	api.Success(w, list, reqID)
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
	if payload.Password != nil {
		v := shared.NewValidator()
		if err := validatePassword(*payload.Password); err != nil {
			v.Add("password", err.Error())
		}
		if v.Reject(w, reqID) {
			return
		}
	}

	ctx := r.Context()
	employeeID := chi.URLParam(r, "employeeID")
	before, err := h.Service.Get(ctx, employeeID)
	if err != nil {
		shared.WriteDomainError(w, err, reqID)
		return
	}
	updated, err := h.Service.Update(ctx, employeeID, employee.UpdateInput{
		EmployeeCode: payload.EmployeeCode,
		FirstName:    payload.FirstName,
		LastName:     payload.LastName,
		Email:        payload.Email,
		Password:     payload.Password,
		IsHR:         payload.IsHR,
		IsActive:     payload.IsActive,
		ManagerID:    payload.ManagerID,
		DepartmentID: payload.DepartmentID,
	})
	if errors.Is(err, employee.ErrEmailTaken) {
		api.Fail(w, http.StatusConflict, "email_taken", "email already in use", reqID)
		return
	}
	if err != nil {
		shared.WriteDomainError(w, err, reqID)
		return
	}

	if err := h.Audit.Record(ctx, user.EmployeeID, audit.ActionEmployeeUpdate, "employee", updated.ID, requestctx.GetRequestID(ctx), requestctx.GetClientIP(ctx), before, updated); err != nil {
		slog.Warn("audit employee.update failed", "err", err)
	}
	api.Success(w, updated, reqID)
}

// handleDeactivate soft-deletes: the row stays so history keeps resolving.
func (h *Handler) handleDeactivate(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	ctx := r.Context()
	reqID := middleware.GetRequestID(ctx)

	emp, err := h.Service.Deactivate(ctx, user.EmployeeID, chi.URLParam(r, "employeeID"))
	if err != nil {
		shared.WriteDomainError(w, err, reqID)
		return
	}
	if err := h.Audit.Record(ctx, user.EmployeeID, audit.ActionEmployeeDeactivate, "employee", emp.ID, requestctx.GetRequestID(ctx), requestctx.GetClientIP(ctx), nil, emp); err != nil {
		slog.Warn("audit employee.deactivate failed", "err", err)
	}
	api.Success(w, emp, reqID)
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	emp, err := h.Service.Get(r.Context(), user.EmployeeID)
	if err != nil {
		shared.WriteDomainError(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, emp, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleSubordinates(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	subs, err := h.Service.Subordinates(r.Context(), user.EmployeeID)
	if err != nil {
		shared.WriteDomainError(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	if subs == nil {
		subs = []employee.Employee{}
	}
	api.Success(w, subs, middleware.GetRequestID(r.Context()))
}

// handleGet is open to HR, the employee, and their direct manager.
func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	emp, err := h.Service.Get(r.Context(), chi.URLParam(r, "employeeID"))
	if err != nil {
		shared.WriteDomainError(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	if !user.IsHR && emp.ID != user.EmployeeID && !emp.ManagedBy(user.EmployeeID) {
		shared.WriteDomainError(w, apperror.NotFound("employee"), middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, emp, middleware.GetRequestID(r.Context()))
}

func validatePassword(password string) error {
	if len(password) < 8 {
		return errors.New("must be at least 8 characters")
	}
	var upper, lower, digit bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	if !upper || !lower || !digit {
		return errors.New("must contain upper-case, lower-case and numeric characters")
	}
	return nil
}
