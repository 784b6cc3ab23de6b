package handler

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/jizusun/OpenBookCorner/internal/apperrors"
	"github.com/jizusun/OpenBookCorner/internal/metrics"
	"github.com/jizusun/OpenBookCorner/internal/model"
	"github.com/jizusun/OpenBookCorner/internal/service"
)

// AuthHandler serves the sign-in endpoints.
type AuthHandler struct {
	auth   *service.AuthService
	errs   *apperrors.Handler
	logger *zap.Logger
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(auth *service.AuthService, errs *apperrors.Handler, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{auth: auth, errs: errs, logger: logger}
}

type requestCodeRequest struct {
	Email string `json:"email"`
}

// RequestCode handles POST /v1/auth/code.
func (h *AuthHandler) RequestCode(w http.ResponseWriter, r *http.Request) {
	var req requestCodeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.errs.HandleError(w, r, err)
		return
	}

	if err := h.auth.RequestCode(r.Context(), req.Email); err != nil {
		h.errs.HandleError(w, r, err)
		return
	}

	respondJSON(w, http.StatusAccepted, map[string]string{
		"status": "sent",
	})
}

type verifyCodeRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

type verifyCodeResponse struct {
	Token string      `json:"token"`
	User  *model.User `json:"user"`
}

// VerifyCode handles POST /v1/auth/verify.
func (h *AuthHandler) VerifyCode(w http.ResponseWriter, r *http.Request) {
	var req verifyCodeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.errs.HandleError(w, r, err)
		return
	}

	token, user, err := h.auth.VerifyCode(r.Context(), req.Email, req.Code)
	if err != nil {
		h.errs.HandleError(w, r, err)
		return
	}

	metrics.SessionsOpenedTotal.Inc()

	respondJSON(w, http.StatusOK, verifyCodeResponse{Token: token, User: user})
}

// Logout handles POST /v1/auth/logout.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token == "" {
		h.errs.WriteUnauthenticated(w, "missing session token", r.Header.Get("X-Request-ID"))
		return
	}

	if err := h.auth.Logout(r.Context(), token); err != nil {
		h.errs.HandleError(w, r, err)
		return
	}

	metrics.SessionsClosedTotal.Inc()

	respondJSON(w, http.StatusNoContent, nil)
}

// Me handles GET /v1/auth/me.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r, h.errs)
	if !ok {
		return
	}

	user, err := h.auth.GetUser(r.Context(), id.UserID)
	if err != nil {
		h.errs.HandleError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, user)
}

func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return parts[1]
	}
	if cookie, err := r.Cookie("session"); err == nil {
		return cookie.Value
	}
	return ""
}
