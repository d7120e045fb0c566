package requestshandler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"hrleave/internal/domain/audit"
	"hrleave/internal/domain/auth"
	"hrleave/internal/domain/requests"
	"hrleave/internal/requestctx"
	"hrleave/internal/transport/http/api"
	"hrleave/internal/transport/http/middleware"
	"hrleave/internal/transport/http/shared"
)

type Handler struct {
	Service *requests.Service
	Perms   middleware.PermissionStore
	Audit   *audit.Service
}

func NewHandler(service *requests.Service, perms middleware.PermissionStore, auditSvc *audit.Service) *Handler {
	return &Handler{Service: service, Perms: perms, Audit: auditSvc}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.With(middleware.RequirePermission(auth.PermRequestsRead, h.Perms)).Get("/request-types", h.handleListTypes)
	r.Route("/requests", func(r chi.Router) {
		r.With(middleware.RequirePermission(auth.PermRequestsRead, h.Perms)).Get("/", h.handleList)
		r.With(middleware.RequirePermission(auth.PermRequestsWrite, h.Perms)).Post("/", h.handleSubmit)
		r.With(middleware.RequirePermission(auth.PermRequestsApprove, h.Perms)).Get("/pending", h.handlePending)
		r.With(middleware.RequirePermission(auth.PermRequestsRead, h.Perms)).Get("/{requestID}", h.handleGet)
		r.With(middleware.RequirePermission(auth.PermRequestsApprove, h.Perms)).Post("/{requestID}/approve", h.handleApprove)
		r.With(middleware.RequirePermission(auth.PermRequestsApprove, h.Perms)).Post("/{requestID}/reject", h.handleReject)
		r.With(middleware.RequirePermission(auth.PermRequestsWrite, h.Perms)).Post("/{requestID}/cancel", h.handleCancel)
	})
}

type submitPayload struct {
	RequestTypeID string `json:"requestTypeId" validate:"required"`
	StartDate     string `json:"startDate" validate:"required"`
	EndDate       string `json:"endDate" validate:"required"`
	StartTime     string `json:"startTime,omitempty"`
	EndTime       string `json:"endTime,omitempty"`
	Reason        string `json:"reason,omitempty" validate:"max=1000"`
}

type decisionPayload struct {
	Comment string `json:"comment,omitempty" validate:"max=1000"`
	Role    string `json:"role,omitempty" validate:"omitempty,oneof=manager hr"`
}

func (h *Handler) handleListTypes(w http.ResponseWriter, r *http.Request) {
	types, err := h.Service.RequestTypes(r.Context())
	if err != nil {
		shared.WriteDomainError(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, types, middleware.GetRequestID(r.Context()))
}

// handleList serves the caller's own requests, or every request when
// scope=all is asked for by a caller holding requests.read_all.
func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("scope") == "all" {
		middleware.RequirePermission(auth.PermRequestsReadAll, h.Perms)(http.HandlerFunc(h.handleListAll)).ServeHTTP(w, r)
		return
	}
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	page := shared.ParsePagination(r, 50, 200)
	result, err := h.Service.ListForEmployee(r.Context(), user.EmployeeID, page.Limit, page.Offset)
	if err != nil {
		shared.WriteDomainError(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	shared.SetTotalCount(w, result.Total)
	api.Success(w, result.Items, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleListAll(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	page := shared.ParsePagination(r, 50, 200)
	status := requests.Status(strings.ToLower(r.URL.Query().Get("status")))
	result, err := h.Service.ListAll(r.Context(), caller(user), status, page.Limit, page.Offset)
	if err != nil {
		shared.WriteDomainError(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	shared.SetTotalCount(w, result.Total)
	api.Success(w, result.Items, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handlePending(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	items, err := h.Service.ListPendingApprovalsFor(r.Context(), user.EmployeeID, user.IsHR)
	if err != nil {
		shared.WriteDomainError(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	shared.SetTotalCount(w, len(items))
	api.Success(w, items, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	req, err := h.Service.GetByID(r.Context(), chi.URLParam(r, "requestID"), caller(user))
	if err != nil {
		shared.WriteDomainError(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, req, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	reqID := middleware.GetRequestID(r.Context())

	var payload submitPayload
	if !shared.BindAndValidate(w, r, &payload, reqID) {
		return
	}

	v := shared.NewValidator()
	startDate, _ := v.Date("startDate", payload.StartDate)
	endDate, _ := v.Date("endDate", payload.EndDate)
	startTime := parseTime(v, "startTime", payload.StartTime)
	endTime := parseTime(v, "endTime", payload.EndTime)
	if v.Reject(w, reqID) {
		return
	}

	created, err := h.Service.Submit(r.Context(), requests.Draft{
		EmployeeID:    user.EmployeeID,
		RequestTypeID: strings.TrimSpace(payload.RequestTypeID),
		StartDate:     startDate,
		EndDate:       endDate,
		StartTime:     startTime,
		EndTime:       endTime,
		Reason:        payload.Reason,
	})
	if err != nil {
		shared.WriteDomainError(w, err, reqID)
		return
	}
	h.record(r, user.EmployeeID, audit.ActionRequestSubmit, created.ID, nil, created)
	api.Created(w, created, reqID)
}

func (h *Handler) handleApprove(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, true)
}

func (h *Handler) handleReject(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, false)
}

func (h *Handler) decide(w http.ResponseWriter, r *http.Request, approved bool) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	reqID := middleware.GetRequestID(r.Context())

	var payload decisionPayload
	if r.ContentLength != 0 {
		if !bindOptional(w, r, &payload, reqID) {
			return
		}
	}

	role := requests.RoleManager
	if user.IsHR {
		role = requests.RoleHR
	}
	if payload.Role != "" {
		role = requests.Role(payload.Role)
	}
	if role == requests.RoleHR && !user.IsHR {
		api.Fail(w, http.StatusForbidden, "forbidden", "hr role required", reqID)
		return
	}

	decided, err := h.Service.Decide(r.Context(), requests.Decision{
		RequestID:  chi.URLParam(r, "requestID"),
		ApproverID: user.EmployeeID,
		Role:       role,
		Approved:   approved,
		Comment:    payload.Comment,
	})
	if err != nil {
		shared.WriteDomainError(w, err, reqID)
		return
	}

	action := audit.ActionRequestReject
	if approved {
		action = audit.ActionRequestApprove
	}
	h.record(r, user.EmployeeID, action, decided.ID, map[string]string{"role": string(role)}, decided)
	api.Success(w, decided, reqID)
}

func (h *Handler) handleCancel(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	cancelled, err := h.Service.Cancel(r.Context(), chi.URLParam(r, "requestID"), user.EmployeeID)
	if err != nil {
		shared.WriteDomainError(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	h.record(r, user.EmployeeID, audit.ActionRequestCancel, cancelled.ID, nil, cancelled)
	api.Success(w, cancelled, middleware.GetRequestID(r.Context()))
}

func (h *Handler) record(r *http.Request, actorID, action, entityID string, before, after any) {
	ctx := r.Context()
	if err := h.Audit.Record(ctx, actorID, action, "request", entityID, requestctx.GetRequestID(ctx), requestctx.GetClientIP(ctx), before, after); err != nil {
		slog.Warn("audit "+action+" failed", "err", err)
	}
}

func caller(user auth.UserContext) requests.Caller {
	return requests.Caller{EmployeeID: user.EmployeeID, IsHR: user.IsHR}
}

func parseTime(v *shared.Validator, field, raw string) *requests.TimeOfDay {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	t, err := requests.ParseTimeOfDay(raw)
	if err != nil {
		v.Add(field, "must be a time in HH:MM format")
		return nil
	}
	return &t
}

// bindOptional accepts an empty body as "no fields set".
func bindOptional(w http.ResponseWriter, r *http.Request, payload any, reqID string) bool {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			api.Fail(w, http.StatusRequestEntityTooLarge, "payload_too_large", "request body too large", reqID)
			return false
		}
		api.Fail(w, http.StatusBadRequest, "invalid_body", "request body could not be read", reqID)
		return false
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		return true
	}
	r.Body = io.NopCloser(strings.NewReader(string(body)))
	return shared.BindAndValidate(w, r, payload, reqID)
}
