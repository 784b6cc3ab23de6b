package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jizusun/OpenBookCorner/internal/apperrors"
	"github.com/jizusun/OpenBookCorner/internal/middleware"
	"github.com/jizusun/OpenBookCorner/internal/model"
	"github.com/jizusun/OpenBookCorner/internal/service"
	"github.com/jizusun/OpenBookCorner/internal/store"
)

type mockBookStore struct {
	mock.Mock
}

func (m *mockBookStore) CreateBook(ctx context.Context, book *model.Book) error {
	return m.Called(ctx, book).Error(0)
}

func (m *mockBookStore) GetBook(ctx context.Context, libraryID, bookID string) (*model.Book, error) {
	args := m.Called(ctx, libraryID, bookID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Book), args.Error(1)
}

func (m *mockBookStore) GetBookByISBN(ctx context.Context, libraryID, isbn string) (*model.Book, error) {
	args := m.Called(ctx, libraryID, isbn)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Book), args.Error(1)
}

func (m *mockBookStore) ListBooks(ctx context.Context, libraryID, search string, limit, offset int) ([]*model.Book, error) {
	args := m.Called(ctx, libraryID, search, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Book), args.Error(1)
}

func (m *mockBookStore) UpdateBook(ctx context.Context, book *model.Book) error {
	return m.Called(ctx, book).Error(0)
}

func (m *mockBookStore) AddCopies(ctx context.Context, libraryID, bookID string, n int) error {
	return m.Called(ctx, libraryID, bookID, n).Error(0)
}

func (m *mockBookStore) DeleteBook(ctx context.Context, libraryID, bookID string) error {
	return m.Called(ctx, libraryID, bookID).Error(0)
}

type mockLoanStore struct {
	mock.Mock
}

func (m *mockLoanStore) CreateLoan(ctx context.Context, loan *model.Loan) error {
	return m.Called(ctx, loan).Error(0)
}

func (m *mockLoanStore) GetLoan(ctx context.Context, libraryID, loanID string) (*model.Loan, error) {
	args := m.Called(ctx, libraryID, loanID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Loan), args.Error(1)
}

func (m *mockLoanStore) ReturnLoan(ctx context.Context, libraryID, loanID string, returnedAt time.Time) (*model.Loan, error) {
	args := m.Called(ctx, libraryID, loanID, returnedAt)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Loan), args.Error(1)
}

func (m *mockLoanStore) ExtendLoan(ctx context.Context, libraryID, loanID string, newDue, extendedAt time.Time) error {
	return m.Called(ctx, libraryID, loanID, newDue, extendedAt).Error(0)
}

func (m *mockLoanStore) ListLoans(ctx context.Context, libraryID string, filter store.LoanFilter) ([]*model.Loan, error) {
	args := m.Called(ctx, libraryID, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Loan), args.Error(1)
}

func (m *mockLoanStore) CountActiveLoans(ctx context.Context, libraryID, userID string) (int, error) {
	args := m.Called(ctx, libraryID, userID)
	return args.Int(0), args.Error(1)
}

func (m *mockLoanStore) CountOverdueLoans(ctx context.Context, libraryID, userID string, now time.Time) (int, error) {
	args := m.Called(ctx, libraryID, userID, now)
	return args.Int(0), args.Error(1)
}

func (m *mockLoanStore) CountActiveLoansForBook(ctx context.Context, libraryID, bookID string) (int, error) {
	args := m.Called(ctx, libraryID, bookID)
	return args.Int(0), args.Error(1)
}

func (m *mockLoanStore) ListLoansDueSoon(ctx context.Context, now time.Time, window time.Duration) ([]*model.Loan, error) {
	args := m.Called(ctx, now, window)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Loan), args.Error(1)
}

func (m *mockLoanStore) ListOverdueLoans(ctx context.Context, now time.Time, remindedBefore time.Time) ([]*model.Loan, error) {
	args := m.Called(ctx, now, remindedBefore)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Loan), args.Error(1)
}

func (m *mockLoanStore) MarkReminded(ctx context.Context, loanID string, at time.Time) error {
	return m.Called(ctx, loanID, at).Error(0)
}

func newBookRouter(books *mockBookStore, loans *mockLoanStore) *mux.Router {
	logger := zap.NewNop()
	h := NewBookHandler(service.NewBookService(books, loans, logger), apperrors.NewHandler(logger), logger)

	r := mux.NewRouter()
	r.HandleFunc("/v1/libraries/{library_id}/books", h.Add).Methods(http.MethodPost)
	r.HandleFunc("/v1/libraries/{library_id}/books", h.List).Methods(http.MethodGet)
	r.HandleFunc("/v1/libraries/{library_id}/books/{book_id}", h.Get).Methods(http.MethodGet)
	r.HandleFunc("/v1/libraries/{library_id}/books/{book_id}", h.Remove).Methods(http.MethodDelete)
	return r
}

func asUser(req *http.Request) *http.Request {
	ctx := context.WithValue(req.Context(), middleware.IdentityKey, &middleware.Identity{
		UserID: "u1",
		Email:  "admin@example.com",
	})
	return req.WithContext(ctx)
}

func TestAddBookHandler(t *testing.T) {
	books := new(mockBookStore)
	loans := new(mockLoanStore)
	router := newBookRouter(books, loans)

	books.On("CreateBook", mock.Anything, mock.MatchedBy(func(b *model.Book) bool {
		return b.LibraryID == "lib1" && b.Title == "Dune" && b.Quantity == 2
	})).Return(nil)

	body := `{"title":"Dune","author":"Frank Herbert","copies":2}`
	req := asUser(httptest.NewRequest(http.MethodPost, "/v1/libraries/lib1/books", strings.NewReader(body)))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), "Dune")
}

func TestAddBookHandlerRejectsBadJSON(t *testing.T) {
	router := newBookRouter(new(mockBookStore), new(mockLoanStore))

	req := asUser(httptest.NewRequest(http.MethodPost, "/v1/libraries/lib1/books", strings.NewReader("{nope")))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "INVALID_REQUEST")
}

func TestGetBookHandlerNotFound(t *testing.T) {
	books := new(mockBookStore)
	router := newBookRouter(books, new(mockLoanStore))

	books.On("GetBook", mock.Anything, "lib1", "missing").Return(nil, store.ErrNotFound)

	req := asUser(httptest.NewRequest(http.MethodGet, "/v1/libraries/lib1/books/missing", nil))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "NOT_FOUND")
}

func TestListBooksHandler(t *testing.T) {
	books := new(mockBookStore)
	router := newBookRouter(books, new(mockLoanStore))

	books.On("ListBooks", mock.Anything, "lib1", "dune", 10, 0).Return([]*model.Book{
		{ID: "b1", Title: "Dune"},
	}, nil)

	req := asUser(httptest.NewRequest(http.MethodGet, "/v1/libraries/lib1/books?q=dune&limit=10", nil))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"books"`)
}

func TestRemoveBookHandlerOnLoan(t *testing.T) {
	books := new(mockBookStore)
	loans := new(mockLoanStore)
	router := newBookRouter(books, loans)

	loans.On("CountActiveLoansForBook", mock.Anything, "lib1", "b1").Return(1, nil)

	req := asUser(httptest.NewRequest(http.MethodDelete, "/v1/libraries/lib1/books/b1", nil))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "BOOK_ON_LOAN")
}
