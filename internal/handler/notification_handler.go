package handler

import (
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/jizusun/OpenBookCorner/internal/apperrors"
	"github.com/jizusun/OpenBookCorner/internal/notify"
	"github.com/jizusun/OpenBookCorner/internal/service"
)

// NotificationHandler serves in-app notifications and the live feed.
type NotificationHandler struct {
	notifications *service.NotificationService
	hub           *notify.Hub
	errs          *apperrors.Handler
	logger        *zap.Logger
}

// NewNotificationHandler creates a new notification handler.
func NewNotificationHandler(notifications *service.NotificationService, hub *notify.Hub, errs *apperrors.Handler, logger *zap.Logger) *NotificationHandler {
	return &NotificationHandler{notifications: notifications, hub: hub, errs: errs, logger: logger}
}

// List handles GET /v1/libraries/{library_id}/notifications.
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r, h.errs)
	if !ok {
		return
	}
	libraryID := mux.Vars(r)["library_id"]
	unreadOnly := r.URL.Query().Get("unread") == "true"

	notifications, err := h.notifications.List(r.Context(), libraryID, id.UserID, unreadOnly)
	if err != nil {
		h.errs.HandleError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"notifications": notifications,
	})
}

// MarkRead handles POST /v1/libraries/{library_id}/notifications/{notification_id}/read.
func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r, h.errs)
	if !ok {
		return
	}
	vars := mux.Vars(r)

	if err := h.notifications.MarkRead(r.Context(), vars["library_id"], id.UserID, vars["notification_id"]); err != nil {
		h.errs.HandleError(w, r, err)
		return
	}

	respondJSON(w, http.StatusNoContent, nil)
}

// ServeWS handles GET /v1/ws, upgrading to a websocket that receives live
// notification events.
func (h *NotificationHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r, h.errs)
	if !ok {
		return
	}

	h.hub.ServeWS(w, r, id.UserID)
}
