package handler

import (
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/jizusun/OpenBookCorner/internal/apperrors"
	"github.com/jizusun/OpenBookCorner/internal/model"
	"github.com/jizusun/OpenBookCorner/internal/service"
)

// RequestHandler serves the book request endpoints.
type RequestHandler struct {
	requests *service.RequestService
	errs     *apperrors.Handler
	logger   *zap.Logger
}

// NewRequestHandler creates a new request handler.
func NewRequestHandler(requests *service.RequestService, errs *apperrors.Handler, logger *zap.Logger) *RequestHandler {
	return &RequestHandler{requests: requests, errs: errs, logger: logger}
}

type bookRequestRequest struct {
	Title  string `json:"title"`
	Author string `json:"author"`
	ISBN   string `json:"isbn"`
	Note   string `json:"note"`
}

// Create handles POST /v1/libraries/{library_id}/requests.
func (h *RequestHandler) Create(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r, h.errs)
	if !ok {
		return
	}
	libraryID := mux.Vars(r)["library_id"]

	var req bookRequestRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.errs.HandleError(w, r, err)
		return
	}

	created, err := h.requests.Create(r.Context(), libraryID, id.UserID, req.Title, req.Author, req.ISBN, req.Note)
	if err != nil {
		h.errs.HandleError(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, created)
}

// List handles GET /v1/libraries/{library_id}/requests.
func (h *RequestHandler) List(w http.ResponseWriter, r *http.Request) {
	libraryID := mux.Vars(r)["library_id"]
	status := model.RequestStatus(r.URL.Query().Get("status"))

	requests, err := h.requests.List(r.Context(), libraryID, status)
	if err != nil {
		h.errs.HandleError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"requests": requests,
	})
}

type decisionRequest struct {
	Approve bool `json:"approve"`
}

// Decide handles POST /v1/libraries/{library_id}/requests/{request_id}/decision.
func (h *RequestHandler) Decide(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	var req decisionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.errs.HandleError(w, r, err)
		return
	}

	decided, err := h.requests.Decide(r.Context(), vars["library_id"], vars["request_id"], req.Approve)
	if err != nil {
		h.errs.HandleError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, decided)
}
