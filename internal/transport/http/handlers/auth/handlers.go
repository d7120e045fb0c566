package authhandler

import (
	"errors"
	"net/http"

	"hrleave/internal/domain/auth"
	"hrleave/internal/transport/http/api"
	"hrleave/internal/transport/http/middleware"
	"hrleave/internal/transport/http/shared"
)

type Handler struct {
	Service *auth.Service
}

func NewHandler(service *auth.Service) *Handler {
	return &Handler{Service: service}
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	var payload loginRequest
	if !shared.BindAndValidate(w, r, &payload, reqID) {
		return
	}

	result, err := h.Service.Login(r.Context(), payload.Email, payload.Password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		api.Fail(w, http.StatusUnauthorized, "invalid_credentials", "invalid credentials", reqID)
		return
	}
	if err != nil {
		shared.WriteDomainError(w, err, reqID)
		return
	}
	api.Success(w, result, reqID)
}
