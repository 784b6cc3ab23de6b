package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
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

func newLoanRouter(loans *mockLoanStore) *mux.Router {
	logger := zap.NewNop()
	svc := service.NewLoanService(loans, nil, nil, nil, nil, nil, service.CirculationConfig{}, logger)
	libraries := service.NewLibraryService(nil, nil, nil, 0, nil, nil, "", logger)
	h := NewLoanHandler(svc, libraries, apperrors.NewHandler(logger), logger)

	r := mux.NewRouter()
	r.HandleFunc("/v1/libraries/{library_id}/loans", h.List).Methods(http.MethodGet)
	return r
}

func asSuperAdmin(req *http.Request) *http.Request {
	ctx := context.WithValue(req.Context(), middleware.IdentityKey, &middleware.Identity{
		UserID:     "root",
		Email:      "root@example.com",
		SuperAdmin: true,
	})
	return req.WithContext(ctx)
}

func TestListLoansRejectsBadFrom(t *testing.T) {
	loans := new(mockLoanStore)
	router := newLoanRouter(loans)

	req := asSuperAdmin(httptest.NewRequest(http.MethodGet, "/v1/libraries/lib1/loans?from=yesterday", nil))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "INVALID_REQUEST")
	loans.AssertNotCalled(t, "ListLoans", mock.Anything, mock.Anything, mock.Anything)
}

func TestListLoansRejectsBadTo(t *testing.T) {
	loans := new(mockLoanStore)
	router := newLoanRouter(loans)

	req := asSuperAdmin(httptest.NewRequest(http.MethodGet, "/v1/libraries/lib1/loans?to=2026-13-99", nil))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "INVALID_REQUEST")
	loans.AssertNotCalled(t, "ListLoans", mock.Anything, mock.Anything, mock.Anything)
}

func TestListLoansParsesDateRange(t *testing.T) {
	loans := new(mockLoanStore)
	router := newLoanRouter(loans)

	from := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)

	loans.On("ListLoans", mock.Anything, "lib1", mock.MatchedBy(func(f store.LoanFilter) bool {
		return f.From.Equal(from) && f.To.Equal(to) && f.State == model.LoanStateActive
	})).Return([]*model.Loan{}, nil)

	req := asSuperAdmin(httptest.NewRequest(http.MethodGet,
		"/v1/libraries/lib1/loans?state=active&from=2026-08-01T00:00:00Z&to=2026-08-31T00:00:00Z", nil))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"loans"`)
	loans.AssertExpectations(t)
}
