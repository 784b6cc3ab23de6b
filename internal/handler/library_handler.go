package handler

import (
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/jizusun/OpenBookCorner/internal/apperrors"
	"github.com/jizusun/OpenBookCorner/internal/model"
	"github.com/jizusun/OpenBookCorner/internal/service"
)

// LibraryHandler serves library and membership endpoints.
type LibraryHandler struct {
	libraries *service.LibraryService
	errs      *apperrors.Handler
	logger    *zap.Logger
}

// NewLibraryHandler creates a new library handler.
func NewLibraryHandler(libraries *service.LibraryService, errs *apperrors.Handler, logger *zap.Logger) *LibraryHandler {
	return &LibraryHandler{libraries: libraries, errs: errs, logger: logger}
}

type libraryRequest struct {
	Name string `json:"name"`
	Slug string `json:"slug"`
}

// Create handles POST /v1/libraries.
func (h *LibraryHandler) Create(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r, h.errs)
	if !ok {
		return
	}

	var req libraryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.errs.HandleError(w, r, err)
		return
	}

	library, err := h.libraries.CreateLibrary(r.Context(), id.UserID, req.Name, req.Slug)
	if err != nil {
		h.errs.HandleError(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, library)
}

// ListAll handles GET /v1/libraries. Routed behind the super admin guard.
func (h *LibraryHandler) ListAll(w http.ResponseWriter, r *http.Request) {
	libraries, err := h.libraries.ListLibraries(r.Context())
	if err != nil {
		h.errs.HandleError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"libraries": libraries,
	})
}

// Get handles GET /v1/libraries/{library_id}.
func (h *LibraryHandler) Get(w http.ResponseWriter, r *http.Request) {
	libraryID := mux.Vars(r)["library_id"]

	library, err := h.libraries.GetLibrary(r.Context(), libraryID)
	if err != nil {
		h.errs.HandleError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, library)
}

// Update handles PUT /v1/libraries/{library_id}.
func (h *LibraryHandler) Update(w http.ResponseWriter, r *http.Request) {
	libraryID := mux.Vars(r)["library_id"]

	var req libraryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.errs.HandleError(w, r, err)
		return
	}

	library, err := h.libraries.UpdateLibrary(r.Context(), libraryID, req.Name, req.Slug)
	if err != nil {
		h.errs.HandleError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, library)
}

// ListMembers handles GET /v1/libraries/{library_id}/members.
func (h *LibraryHandler) ListMembers(w http.ResponseWriter, r *http.Request) {
	libraryID := mux.Vars(r)["library_id"]

	members, err := h.libraries.ListMembers(r.Context(), libraryID)
	if err != nil {
		h.errs.HandleError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"members": members,
	})
}

type inviteRequest struct {
	Email string `json:"email"`
	Role  string `json:"role"`
}

// Invite handles POST /v1/libraries/{library_id}/invitations.
func (h *LibraryHandler) Invite(w http.ResponseWriter, r *http.Request) {
	libraryID := mux.Vars(r)["library_id"]

	var req inviteRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.errs.HandleError(w, r, err)
		return
	}

	if err := h.libraries.InviteMember(r.Context(), libraryID, req.Email, model.Role(req.Role)); err != nil {
		h.errs.HandleError(w, r, err)
		return
	}

	respondJSON(w, http.StatusAccepted, map[string]string{
		"status": "invited",
	})
}

type acceptInviteRequest struct {
	Token string `json:"token"`
}

// AcceptInvite handles POST /v1/invitations/accept.
func (h *LibraryHandler) AcceptInvite(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r, h.errs)
	if !ok {
		return
	}

	var req acceptInviteRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.errs.HandleError(w, r, err)
		return
	}

	membership, err := h.libraries.AcceptInvite(r.Context(), id.UserID, id.Email, req.Token)
	if err != nil {
		h.errs.HandleError(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, membership)
}

type updateRoleRequest struct {
	Role string `json:"role"`
}

// UpdateMemberRole handles PUT /v1/libraries/{library_id}/members/{user_id}.
func (h *LibraryHandler) UpdateMemberRole(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	var req updateRoleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.errs.HandleError(w, r, err)
		return
	}

	if err := h.libraries.UpdateMemberRole(r.Context(), vars["library_id"], vars["user_id"], model.Role(req.Role)); err != nil {
		h.errs.HandleError(w, r, err)
		return
	}

	respondJSON(w, http.StatusNoContent, nil)
}

// RemoveMember handles DELETE /v1/libraries/{library_id}/members/{user_id}.
func (h *LibraryHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	if err := h.libraries.RemoveMember(r.Context(), vars["library_id"], vars["user_id"]); err != nil {
		h.errs.HandleError(w, r, err)
		return
	}

	respondJSON(w, http.StatusNoContent, nil)
}
