package handler

import (
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/jizusun/OpenBookCorner/internal/apperrors"
	"github.com/jizusun/OpenBookCorner/internal/model"
	"github.com/jizusun/OpenBookCorner/internal/service"
)

// DonationHandler serves the donation endpoints.
type DonationHandler struct {
	donations *service.DonationService
	errs      *apperrors.Handler
	logger    *zap.Logger
}

// NewDonationHandler creates a new donation handler.
func NewDonationHandler(donations *service.DonationService, errs *apperrors.Handler, logger *zap.Logger) *DonationHandler {
	return &DonationHandler{donations: donations, errs: errs, logger: logger}
}

type donationRequest struct {
	Title  string `json:"title"`
	Author string `json:"author"`
	ISBN   string `json:"isbn"`
}

// Offer handles POST /v1/libraries/{library_id}/donations.
func (h *DonationHandler) Offer(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r, h.errs)
	if !ok {
		return
	}
	libraryID := mux.Vars(r)["library_id"]

	var req donationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.errs.HandleError(w, r, err)
		return
	}

	donation, err := h.donations.Offer(r.Context(), libraryID, id.UserID, req.Title, req.Author, req.ISBN)
	if err != nil {
		h.errs.HandleError(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, donation)
}

// List handles GET /v1/libraries/{library_id}/donations.
func (h *DonationHandler) List(w http.ResponseWriter, r *http.Request) {
	libraryID := mux.Vars(r)["library_id"]
	status := model.DonationStatus(r.URL.Query().Get("status"))

	donations, err := h.donations.List(r.Context(), libraryID, status)
	if err != nil {
		h.errs.HandleError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"donations": donations,
	})
}

type donationDecisionRequest struct {
	Accept bool `json:"accept"`
}

// Decide handles POST /v1/libraries/{library_id}/donations/{donation_id}/decision.
func (h *DonationHandler) Decide(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	var req donationDecisionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.errs.HandleError(w, r, err)
		return
	}

	donation, err := h.donations.Decide(r.Context(), vars["library_id"], vars["donation_id"], req.Accept)
	if err != nil {
		h.errs.HandleError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, donation)
}
