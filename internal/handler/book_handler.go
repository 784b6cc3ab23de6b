package handler

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/jizusun/OpenBookCorner/internal/apperrors"
	"github.com/jizusun/OpenBookCorner/internal/service"
)

// BookHandler serves the catalog endpoints.
type BookHandler struct {
	books  *service.BookService
	errs   *apperrors.Handler
	logger *zap.Logger
}

// NewBookHandler creates a new book handler.
func NewBookHandler(books *service.BookService, errs *apperrors.Handler, logger *zap.Logger) *BookHandler {
	return &BookHandler{books: books, errs: errs, logger: logger}
}

type bookRequest struct {
	ISBN   string `json:"isbn"`
	Title  string `json:"title"`
	Author string `json:"author"`
	Copies int    `json:"copies"`
}

// Add handles POST /v1/libraries/{library_id}/books.
func (h *BookHandler) Add(w http.ResponseWriter, r *http.Request) {
	libraryID := mux.Vars(r)["library_id"]

	var req bookRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.errs.HandleError(w, r, err)
		return
	}

	book, err := h.books.AddBook(r.Context(), libraryID, req.ISBN, req.Title, req.Author, req.Copies)
	if err != nil {
		h.errs.HandleError(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, book)
}

// Get handles GET /v1/libraries/{library_id}/books/{book_id}.
func (h *BookHandler) Get(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	book, err := h.books.GetBook(r.Context(), vars["library_id"], vars["book_id"])
	if err != nil {
		h.errs.HandleError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, book)
}

// List handles GET /v1/libraries/{library_id}/books.
func (h *BookHandler) List(w http.ResponseWriter, r *http.Request) {
	libraryID := mux.Vars(r)["library_id"]

	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	books, err := h.books.ListBooks(r.Context(), libraryID, q.Get("q"), limit, offset)
	if err != nil {
		h.errs.HandleError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"books": books,
	})
}

// Update handles PUT /v1/libraries/{library_id}/books/{book_id}.
func (h *BookHandler) Update(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	var req bookRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.errs.HandleError(w, r, err)
		return
	}

	book, err := h.books.UpdateBook(r.Context(), vars["library_id"], vars["book_id"], req.ISBN, req.Title, req.Author)
	if err != nil {
		h.errs.HandleError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, book)
}

// Remove handles DELETE /v1/libraries/{library_id}/books/{book_id}.
func (h *BookHandler) Remove(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	if err := h.books.RemoveBook(r.Context(), vars["library_id"], vars["book_id"]); err != nil {
		h.errs.HandleError(w, r, err)
		return
	}

	respondJSON(w, http.StatusNoContent, nil)
}
