package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jizusun/OpenBookCorner/internal/apperrors"
	"github.com/jizusun/OpenBookCorner/internal/model"
	"github.com/jizusun/OpenBookCorner/internal/notify"
	"github.com/jizusun/OpenBookCorner/internal/store"
)

func testCirculationConfig() CirculationConfig {
	return CirculationConfig{
		LoanPeriod:     21 * 24 * time.Hour,
		MaxActiveLoans: 5,
		IdempotencyTTL: 24 * time.Hour,
	}
}

type loanFixture struct {
	loans         *mockLoanStore
	books         *mockBookStore
	users         *mockUserStore
	idempotency   *mockIdempotencyStore
	notifications *mockNotificationStore
	mailer        *fakeMailer
	svc           *LoanService
}

func newLoanFixture() *loanFixture {
	f := &loanFixture{
		loans:         new(mockLoanStore),
		books:         new(mockBookStore),
		users:         new(mockUserStore),
		idempotency:   new(mockIdempotencyStore),
		notifications: new(mockNotificationStore),
		mailer:        &fakeMailer{},
	}

	logger := zap.NewNop()
	notificationService := NewNotificationService(f.notifications, notify.NewHub(logger), logger)
	f.svc = NewLoanService(f.loans, f.books, f.users, f.idempotency, notificationService, f.mailer, testCirculationConfig(), logger)
	return f
}

func TestBorrow(t *testing.T) {
	f := newLoanFixture()

	f.loans.On("CountOverdueLoans", mock.Anything, "lib1", "u1", mock.Anything).Return(0, nil)
	f.loans.On("CountActiveLoans", mock.Anything, "lib1", "u1").Return(1, nil)
	f.loans.On("CreateLoan", mock.Anything, mock.MatchedBy(func(l *model.Loan) bool {
		return l.LibraryID == "lib1" && l.BookID == "b1" && l.UserID == "u1"
	})).Return(nil)
	f.books.On("GetBook", mock.Anything, "lib1", "b1").Return(&model.Book{ID: "b1", Title: "Dune"}, nil)
	f.users.On("GetUser", mock.Anything, "u1").Return(&model.User{ID: "u1", Email: "reader@example.com"}, nil)
	f.notifications.On("CreateNotification", mock.Anything, mock.Anything).Return(nil)

	loan, err := f.svc.Borrow(context.Background(), "lib1", "u1", "b1", "")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(21*24*time.Hour), loan.DueDate, time.Minute)
	require.Len(t, f.mailer.messages(), 1)
	assert.Contains(t, f.mailer.messages()[0].Body, "Dune")
}

func TestBorrowNoCopies(t *testing.T) {
	f := newLoanFixture()

	f.loans.On("CountOverdueLoans", mock.Anything, "lib1", "u1", mock.Anything).Return(0, nil)
	f.loans.On("CountActiveLoans", mock.Anything, "lib1", "u1").Return(0, nil)
	f.loans.On("CreateLoan", mock.Anything, mock.Anything).Return(store.ErrNoCopies)

	_, err := f.svc.Borrow(context.Background(), "lib1", "u1", "b1", "")
	assert.Equal(t, apperrors.CodeBookUnavailable, apperrors.CodeOf(err))
}

func TestBorrowBlockedByOverdue(t *testing.T) {
	f := newLoanFixture()

	f.loans.On("CountOverdueLoans", mock.Anything, "lib1", "u1", mock.Anything).Return(1, nil)

	_, err := f.svc.Borrow(context.Background(), "lib1", "u1", "b1", "")
	assert.Equal(t, apperrors.CodeUserHasOverdue, apperrors.CodeOf(err))
	f.loans.AssertNotCalled(t, "CreateLoan", mock.Anything, mock.Anything)
}

func TestBorrowBlockedByLoanLimit(t *testing.T) {
	f := newLoanFixture()

	f.loans.On("CountOverdueLoans", mock.Anything, "lib1", "u1", mock.Anything).Return(0, nil)
	f.loans.On("CountActiveLoans", mock.Anything, "lib1", "u1").Return(5, nil)

	_, err := f.svc.Borrow(context.Background(), "lib1", "u1", "b1", "")
	assert.Equal(t, apperrors.CodeLoanLimitReached, apperrors.CodeOf(err))
}

func TestBorrowIdempotentReplay(t *testing.T) {
	f := newLoanFixture()

	cached, err := json.Marshal(&model.Loan{ID: "loan1", LibraryID: "lib1", BookID: "b1", UserID: "u1"})
	require.NoError(t, err)

	f.idempotency.On("Get", mock.Anything, "borrow:lib1:u1:key1").Return(cached, nil)

	loan, err := f.svc.Borrow(context.Background(), "lib1", "u1", "b1", "key1")
	require.NoError(t, err)
	assert.Equal(t, "loan1", loan.ID)
	f.loans.AssertNotCalled(t, "CreateLoan", mock.Anything, mock.Anything)
}

func TestBorrowCachesResponse(t *testing.T) {
	f := newLoanFixture()

	f.idempotency.On("Get", mock.Anything, "borrow:lib1:u1:key1").Return(nil, store.ErrNotFound)
	f.loans.On("CountOverdueLoans", mock.Anything, "lib1", "u1", mock.Anything).Return(0, nil)
	f.loans.On("CountActiveLoans", mock.Anything, "lib1", "u1").Return(0, nil)
	f.loans.On("CreateLoan", mock.Anything, mock.Anything).Return(nil)
	f.idempotency.On("Set", mock.Anything, "borrow:lib1:u1:key1", mock.Anything, 24*time.Hour).Return(nil)
	f.books.On("GetBook", mock.Anything, "lib1", mock.Anything).Return(&model.Book{Title: "Dune"}, nil)
	f.users.On("GetUser", mock.Anything, "u1").Return(&model.User{Email: "reader@example.com"}, nil)
	f.notifications.On("CreateNotification", mock.Anything, mock.Anything).Return(nil)

	_, err := f.svc.Borrow(context.Background(), "lib1", "u1", "b1", "key1")
	require.NoError(t, err)
	f.idempotency.AssertExpectations(t)
}

func TestReturn(t *testing.T) {
	f := newLoanFixture()

	returned := &model.Loan{ID: "loan1", LibraryID: "lib1", BookID: "b1", UserID: "u1"}
	f.loans.On("ReturnLoan", mock.Anything, "lib1", "loan1", mock.Anything).Return(returned, nil)
	f.books.On("GetBook", mock.Anything, "lib1", "b1").Return(&model.Book{Title: "Dune"}, nil)
	f.notifications.On("CreateNotification", mock.Anything, mock.Anything).Return(nil)

	loan, err := f.svc.Return(context.Background(), "lib1", "loan1")
	require.NoError(t, err)
	assert.Equal(t, "loan1", loan.ID)
}

func TestReturnAlreadyReturned(t *testing.T) {
	f := newLoanFixture()

	done := time.Now()
	f.loans.On("ReturnLoan", mock.Anything, "lib1", "loan1", mock.Anything).Return(nil, store.ErrNotFound)
	f.loans.On("GetLoan", mock.Anything, "lib1", "loan1").Return(&model.Loan{ID: "loan1", ReturnedAt: &done}, nil)

	_, err := f.svc.Return(context.Background(), "lib1", "loan1")
	assert.Equal(t, apperrors.CodeLoanAlreadyReturned, apperrors.CodeOf(err))
}

func TestReturnNotFound(t *testing.T) {
	f := newLoanFixture()

	f.loans.On("ReturnLoan", mock.Anything, "lib1", "nope", mock.Anything).Return(nil, store.ErrNotFound)
	f.loans.On("GetLoan", mock.Anything, "lib1", "nope").Return(nil, store.ErrNotFound)

	_, err := f.svc.Return(context.Background(), "lib1", "nope")
	assert.Equal(t, apperrors.CodeNotFound, apperrors.CodeOf(err))
}

func TestExtend(t *testing.T) {
	f := newLoanFixture()

	due := time.Now().Add(48 * time.Hour)
	loan := &model.Loan{ID: "loan1", LibraryID: "lib1", UserID: "u1", DueDate: due}
	f.loans.On("GetLoan", mock.Anything, "lib1", "loan1").Return(loan, nil)
	f.loans.On("ExtendLoan", mock.Anything, "lib1", "loan1", due.Add(21*24*time.Hour), mock.Anything).Return(nil)
	f.notifications.On("CreateNotification", mock.Anything, mock.Anything).Return(nil)

	got, err := f.svc.Extend(context.Background(), "lib1", "u1", "loan1")
	require.NoError(t, err)
	assert.Equal(t, due.Add(21*24*time.Hour), got.DueDate)
	assert.NotNil(t, got.ExtendedAt)
}

func TestExtendNotOwner(t *testing.T) {
	f := newLoanFixture()

	loan := &model.Loan{ID: "loan1", UserID: "someone-else", DueDate: time.Now().Add(time.Hour)}
	f.loans.On("GetLoan", mock.Anything, "lib1", "loan1").Return(loan, nil)

	_, err := f.svc.Extend(context.Background(), "lib1", "u1", "loan1")
	assert.Equal(t, apperrors.CodeForbidden, apperrors.CodeOf(err))
}

func TestExtendOverdue(t *testing.T) {
	f := newLoanFixture()

	loan := &model.Loan{ID: "loan1", UserID: "u1", DueDate: time.Now().Add(-time.Hour)}
	f.loans.On("GetLoan", mock.Anything, "lib1", "loan1").Return(loan, nil)

	_, err := f.svc.Extend(context.Background(), "lib1", "u1", "loan1")
	assert.Equal(t, apperrors.CodeConflict, apperrors.CodeOf(err))
}

func TestExtendOnlyOnce(t *testing.T) {
	f := newLoanFixture()

	already := time.Now().Add(-24 * time.Hour)
	loan := &model.Loan{ID: "loan1", UserID: "u1", DueDate: time.Now().Add(time.Hour), ExtendedAt: &already}
	f.loans.On("GetLoan", mock.Anything, "lib1", "loan1").Return(loan, nil)

	_, err := f.svc.Extend(context.Background(), "lib1", "u1", "loan1")
	assert.Equal(t, apperrors.CodeConflict, apperrors.CodeOf(err))
	f.loans.AssertNotCalled(t, "ExtendLoan", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}
