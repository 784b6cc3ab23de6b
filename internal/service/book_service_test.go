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
	"github.com/jizusun/OpenBookCorner/internal/store"
)

func newBookFixture() (*mockBookStore, *mockLoanStore, *BookService) {
	books := new(mockBookStore)
	loans := new(mockLoanStore)
	return books, loans, NewBookService(books, loans, zap.NewNop())
}

func TestAddBook(t *testing.T) {
	books, _, svc := newBookFixture()

	books.On("GetBookByISBN", mock.Anything, "lib1", "9780441013593").Return(nil, store.ErrNotFound)
	books.On("CreateBook", mock.Anything, mock.MatchedBy(func(b *model.Book) bool {
		return b.Title == "Dune" && b.Quantity == 3 && b.Available == 3
	})).Return(nil)

	book, err := svc.AddBook(context.Background(), "lib1", "9780441013593", "Dune", "Frank Herbert", 3)
	require.NoError(t, err)
	assert.Equal(t, 3, book.Available)
}

func TestAddBookMergesByISBN(t *testing.T) {
	books, _, svc := newBookFixture()

	existing := &model.Book{ID: "b1", LibraryID: "lib1", ISBN: "9780441013593", Quantity: 2, Available: 1}
	books.On("GetBookByISBN", mock.Anything, "lib1", "9780441013593").Return(existing, nil)
	books.On("AddCopies", mock.Anything, "lib1", "b1", 2).Return(nil)
	books.On("GetBook", mock.Anything, "lib1", "b1").
		Return(&model.Book{ID: "b1", Quantity: 4, Available: 3}, nil)

	book, err := svc.AddBook(context.Background(), "lib1", "9780441013593", "Dune", "Frank Herbert", 2)
	require.NoError(t, err)
	assert.Equal(t, 4, book.Quantity)
	books.AssertNotCalled(t, "CreateBook", mock.Anything, mock.Anything)
}

func TestAddBookNoTitle(t *testing.T) {
	_, _, svc := newBookFixture()

	_, err := svc.AddBook(context.Background(), "lib1", "", "", "", 1)
	assert.Equal(t, apperrors.CodeInvalidRequest, apperrors.CodeOf(err))
}

func TestAddBookDefaultsToOneCopy(t *testing.T) {
	books, _, svc := newBookFixture()

	books.On("CreateBook", mock.Anything, mock.MatchedBy(func(b *model.Book) bool {
		return b.Quantity == 1
	})).Return(nil)

	_, err := svc.AddBook(context.Background(), "lib1", "", "Dune", "", 0)
	require.NoError(t, err)
}

func TestRemoveBookBlockedWhileOnLoan(t *testing.T) {
	books, loans, svc := newBookFixture()

	loans.On("CountActiveLoansForBook", mock.Anything, "lib1", "b1").Return(2, nil)

	err := svc.RemoveBook(context.Background(), "lib1", "b1")
	assert.Equal(t, apperrors.CodeBookOnLoan, apperrors.CodeOf(err))
	books.AssertNotCalled(t, "DeleteBook", mock.Anything, mock.Anything, mock.Anything)
}

func TestRemoveBook(t *testing.T) {
	books, loans, svc := newBookFixture()

	loans.On("CountActiveLoansForBook", mock.Anything, "lib1", "b1").Return(0, nil)
	books.On("DeleteBook", mock.Anything, "lib1", "b1").Return(nil)

	err := svc.RemoveBook(context.Background(), "lib1", "b1")
	require.NoError(t, err)
}

func TestListBooksClampsPageSize(t *testing.T) {
	books, _, svc := newBookFixture()

	books.On("ListBooks", mock.Anything, "lib1", "dune", 200, 0).Return([]*model.Book{}, nil)

	_, err := svc.ListBooks(context.Background(), "lib1", "dune", 5000, -10)
	require.NoError(t, err)
	books.AssertExpectations(t)
}
