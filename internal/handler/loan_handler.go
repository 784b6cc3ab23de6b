package handler

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/jizusun/OpenBookCorner/internal/apperrors"
	"github.com/jizusun/OpenBookCorner/internal/metrics"
	"github.com/jizusun/OpenBookCorner/internal/middleware"
	"github.com/jizusun/OpenBookCorner/internal/model"
	"github.com/jizusun/OpenBookCorner/internal/service"
	"github.com/jizusun/OpenBookCorner/internal/store"
)

// LoanHandler serves the circulation endpoints.
type LoanHandler struct {
	loans     *service.LoanService
	libraries *service.LibraryService
	errs      *apperrors.Handler
	logger    *zap.Logger
}

// NewLoanHandler creates a new loan handler.
func NewLoanHandler(loans *service.LoanService, libraries *service.LibraryService, errs *apperrors.Handler, logger *zap.Logger) *LoanHandler {
	return &LoanHandler{loans: loans, libraries: libraries, errs: errs, logger: logger}
}

// Borrow handles POST /v1/libraries/{library_id}/books/{book_id}/borrow.
// An Idempotency-Key header makes retried requests replay the first result.
func (h *LoanHandler) Borrow(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r, h.errs)
	if !ok {
		return
	}
	vars := mux.Vars(r)

	loan, err := h.loans.Borrow(r.Context(), vars["library_id"], id.UserID, vars["book_id"], r.Header.Get("Idempotency-Key"))
	if err != nil {
		metrics.BorrowsTotal.WithLabelValues("rejected").Inc()
		h.errs.HandleError(w, r, err)
		return
	}

	metrics.BorrowsTotal.WithLabelValues("ok").Inc()
	respondJSON(w, http.StatusCreated, loan)
}

// Return handles POST /v1/libraries/{library_id}/loans/{loan_id}/return.
func (h *LoanHandler) Return(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	loan, err := h.loans.Return(r.Context(), vars["library_id"], vars["loan_id"])
	if err != nil {
		h.errs.HandleError(w, r, err)
		return
	}

	metrics.ReturnsTotal.Inc()
	respondJSON(w, http.StatusOK, loan)
}

// Extend handles POST /v1/libraries/{library_id}/loans/{loan_id}/extend.
func (h *LoanHandler) Extend(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r, h.errs)
	if !ok {
		return
	}
	vars := mux.Vars(r)

	loan, err := h.loans.Extend(r.Context(), vars["library_id"], id.UserID, vars["loan_id"])
	if err != nil {
		h.errs.HandleError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, loan)
}

// List handles GET /v1/libraries/{library_id}/loans. Readers only see their
// own loans; admins may filter by user.
func (h *LoanHandler) List(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r, h.errs)
	if !ok {
		return
	}
	libraryID := mux.Vars(r)["library_id"]
	q := r.URL.Query()

	filter := store.LoanFilter{
		UserID: q.Get("user_id"),
		State:  model.LoanState(q.Get("state")),
	}
	if v := q.Get("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			h.errs.HandleError(w, r, apperrors.New(apperrors.CodeInvalidRequest, "from must be an RFC 3339 timestamp"))
			return
		}
		filter.From = t
	}
	if v := q.Get("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			h.errs.HandleError(w, r, apperrors.New(apperrors.CodeInvalidRequest, "to must be an RFC 3339 timestamp"))
			return
		}
		filter.To = t
	}

	if !h.isAdmin(r, libraryID, id) {
		filter.UserID = id.UserID
	}

	loans, err := h.loans.List(r.Context(), libraryID, filter)
	if err != nil {
		h.errs.HandleError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"loans": loans,
	})
}

func (h *LoanHandler) isAdmin(r *http.Request, libraryID string, id *middleware.Identity) bool {
	if id.SuperAdmin {
		return true
	}
	m, err := h.libraries.GetMembership(r.Context(), libraryID, id.UserID)
	return err == nil && m.Role == model.RoleLibraryAdmin
}
