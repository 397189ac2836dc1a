package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/pharmflow/pharmflow-backend/internal/auth/service"
	"github.com/pharmflow/pharmflow-backend/pkg/httputil"
)

// AuthHandler exposes login and session management over HTTP
type AuthHandler struct {
	service *service.AuthService
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(svc *service.AuthService) *AuthHandler {
	return &AuthHandler{service: svc}
}

// PublicRoutes returns routes that do not require authentication
func (h *AuthHandler) PublicRoutes() chi.Router {
	r := chi.NewRouter()

	r.Post("/login", h.Login)
	r.Post("/refresh", h.Refresh)

	return r
}

// ProtectedRoutes returns routes that require authentication
func (h *AuthHandler) ProtectedRoutes() chi.Router {
	r := chi.NewRouter()

	r.Post("/logout", h.Logout)
	r.Get("/me", h.Me)
	r.Get("/shift", h.CurrentShift)

	return r
}

// Login handles POST /auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var input service.LoginInput
	if err := httputil.DecodeJSON(r, &input); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(input); err != nil {
		httputil.Error(w, err)
		return
	}

	pair, err := h.service.Login(r.Context(), input)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, pair)
}

// Refresh handles POST /auth/refresh
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var input service.RefreshInput
	if err := httputil.DecodeJSON(r, &input); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(input); err != nil {
		httputil.Error(w, err)
		return
	}

	pair, err := h.service.Refresh(r.Context(), input)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, pair)
}

// Logout handles POST /session/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Logout(r.Context(), httputil.GetUserID(r.Context())); err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.NoContent(w)
}

// Me handles GET /session/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := h.service.Me(r.Context(), httputil.GetUserID(r.Context()))
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, user)
}

// CurrentShift handles GET /session/shift
func (h *AuthHandler) CurrentShift(w http.ResponseWriter, r *http.Request) {
	shift, err := h.service.CurrentShift(r.Context(), httputil.GetUserID(r.Context()))
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, shift)
}
