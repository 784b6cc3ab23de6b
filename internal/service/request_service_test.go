package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jizusun/OpenBookCorner/internal/apperrors"
	"github.com/jizusun/OpenBookCorner/internal/model"
	"github.com/jizusun/OpenBookCorner/internal/notify"
	"github.com/jizusun/OpenBookCorner/internal/store"
)

type requestFixture struct {
	requests      *mockRequestStore
	users         *mockUserStore
	books         *mockBookStore
	loans         *mockLoanStore
	notifications *mockNotificationStore
	mailer        *fakeMailer
	svc           *RequestService
}

func newRequestFixture() *requestFixture {
	f := &requestFixture{
		requests:      new(mockRequestStore),
		users:         new(mockUserStore),
		books:         new(mockBookStore),
		loans:         new(mockLoanStore),
		notifications: new(mockNotificationStore),
		mailer:        &fakeMailer{},
	}

	logger := zap.NewNop()
	bookService := NewBookService(f.books, f.loans, logger)
	notificationService := NewNotificationService(f.notifications, notify.NewHub(logger), logger)
	f.svc = NewRequestService(f.requests, f.users, bookService, notificationService, f.mailer, logger)
	return f
}

func TestCreateRequest(t *testing.T) {
	f := newRequestFixture()

	f.requests.On("CreateRequest", mock.Anything, mock.MatchedBy(func(r *model.BookRequest) bool {
		return r.Title == "Dune" && r.Status == model.RequestStatusPending
	})).Return(nil)

	req, err := f.svc.Create(context.Background(), "lib1", "u1", "Dune", "Frank Herbert", "", "please")
	require.NoError(t, err)
	assert.Equal(t, model.RequestStatusPending, req.Status)
}

func TestApproveRequestAddsBook(t *testing.T) {
	f := newRequestFixture()

	pending := &model.BookRequest{
		ID: "r1", LibraryID: "lib1", UserID: "u1",
		Title: "Dune", Author: "Frank Herbert",
		Status: model.RequestStatusPending,
	}
	f.requests.On("GetRequest", mock.Anything, "lib1", "r1").Return(pending, nil)
	f.requests.On("DecideRequest", mock.Anything, "lib1", "r1", model.RequestStatusApproved, mock.Anything).Return(nil)
	f.books.On("CreateBook", mock.Anything, mock.MatchedBy(func(b *model.Book) bool {
		return b.Title == "Dune" && b.Quantity == 1
	})).Return(nil)
	f.notifications.On("CreateNotification", mock.Anything, mock.Anything).Return(nil)
	f.users.On("GetUser", mock.Anything, "u1").Return(&model.User{ID: "u1", Email: "reader@example.com"}, nil)

	decided, err := f.svc.Decide(context.Background(), "lib1", "r1", true)
	require.NoError(t, err)
	assert.Equal(t, model.RequestStatusApproved, decided.Status)
	require.Len(t, f.mailer.messages(), 1)
	f.books.AssertExpectations(t)
}

func TestRejectRequest(t *testing.T) {
	f := newRequestFixture()

	pending := &model.BookRequest{ID: "r1", LibraryID: "lib1", UserID: "u1", Title: "Dune", Status: model.RequestStatusPending}
	f.requests.On("GetRequest", mock.Anything, "lib1", "r1").Return(pending, nil)
	f.requests.On("DecideRequest", mock.Anything, "lib1", "r1", model.RequestStatusRejected, mock.Anything).Return(nil)
	f.notifications.On("CreateNotification", mock.Anything, mock.Anything).Return(nil)
	f.users.On("GetUser", mock.Anything, "u1").Return(&model.User{Email: "reader@example.com"}, nil)

	decided, err := f.svc.Decide(context.Background(), "lib1", "r1", false)
	require.NoError(t, err)
	assert.Equal(t, model.RequestStatusRejected, decided.Status)
	f.books.AssertNotCalled(t, "CreateBook", mock.Anything, mock.Anything)
}

func TestDecideRequestTwice(t *testing.T) {
	f := newRequestFixture()

	decided := &model.BookRequest{ID: "r1", Status: model.RequestStatusApproved}
	f.requests.On("GetRequest", mock.Anything, "lib1", "r1").Return(decided, nil)

	_, err := f.svc.Decide(context.Background(), "lib1", "r1", true)
	assert.Equal(t, apperrors.CodeConflict, apperrors.CodeOf(err))
}

func TestDecideRequestNotFound(t *testing.T) {
	f := newRequestFixture()

	f.requests.On("GetRequest", mock.Anything, "lib1", "nope").Return(nil, store.ErrNotFound)

	_, err := f.svc.Decide(context.Background(), "lib1", "nope", true)
	assert.Equal(t, apperrors.CodeNotFound, apperrors.CodeOf(err))
}
