package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jizusun/OpenBookCorner/internal/apperrors"
	"github.com/jizusun/OpenBookCorner/internal/model"
	"github.com/jizusun/OpenBookCorner/internal/store"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

// BookService manages the per-library catalog.
type BookService struct {
	books  store.BookStore
	loans  store.LoanStore
	logger *zap.Logger
}

// NewBookService creates a new book service.
func NewBookService(books store.BookStore, loans store.LoanStore, logger *zap.Logger) *BookService {
	return &BookService{
		books:  books,
		loans:  loans,
		logger: logger,
	}
}

// AddBook adds copies of a title to the catalog. When the library already
// holds the ISBN, the existing entry gains the copies instead of a duplicate
// row appearing.
func (s *BookService) AddBook(ctx context.Context, libraryID, isbn, title, author string, copies int) (*model.Book, error) {
	if title == "" {
		return nil, apperrors.New(apperrors.CodeInvalidRequest, "title is required")
	}
	if copies <= 0 {
		copies = 1
	}

	if isbn != "" {
		existing, err := s.books.GetBookByISBN(ctx, libraryID, isbn)
		if err == nil {
			if err := s.books.AddCopies(ctx, libraryID, existing.ID, copies); err != nil {
				return nil, fmt.Errorf("failed to add copies: %w", err)
			}
			return s.GetBook(ctx, libraryID, existing.ID)
		}
		if !errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("failed to check isbn: %w", err)
		}
	}

	book := &model.Book{
		ID:        uuid.New().String(),
		LibraryID: libraryID,
		ISBN:      isbn,
		Title:     title,
		Author:    author,
		Quantity:  copies,
		Available: copies,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}

	if err := s.books.CreateBook(ctx, book); err != nil {
		return nil, fmt.Errorf("failed to create book: %w", err)
	}

	s.logger.Info("book added",
		zap.String("library_id", libraryID),
		zap.String("book_id", book.ID),
		zap.String("title", title),
		zap.Int("copies", copies))

	return book, nil
}

// GetBook retrieves a catalog entry.
func (s *BookService) GetBook(ctx context.Context, libraryID, bookID string) (*model.Book, error) {
	book, err := s.books.GetBook(ctx, libraryID, bookID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperrors.New(apperrors.CodeNotFound, "book not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load book: %w", err)
	}
	return book, nil
}

// ListBooks lists the catalog with search and pagination.
func (s *BookService) ListBooks(ctx context.Context, libraryID, search string, limit, offset int) ([]*model.Book, error) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if offset < 0 {
		offset = 0
	}

	books, err := s.books.ListBooks(ctx, libraryID, search, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list books: %w", err)
	}
	return books, nil
}

// UpdateBook updates the descriptive fields of a catalog entry.
func (s *BookService) UpdateBook(ctx context.Context, libraryID, bookID, isbn, title, author string) (*model.Book, error) {
	if title == "" {
		return nil, apperrors.New(apperrors.CodeInvalidRequest, "title is required")
	}

	book, err := s.GetBook(ctx, libraryID, bookID)
	if err != nil {
		return nil, err
	}

	book.ISBN = isbn
	book.Title = title
	book.Author = author
	book.UpdatedAt = time.Now()

	if err := s.books.UpdateBook(ctx, book); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperrors.New(apperrors.CodeNotFound, "book not found")
		}
		return nil, fmt.Errorf("failed to update book: %w", err)
	}

	return book, nil
}

// RemoveBook deletes a catalog entry. Removal is blocked while copies are
// out on loan so active loans never dangle.
func (s *BookService) RemoveBook(ctx context.Context, libraryID, bookID string) error {
	out, err := s.loans.CountActiveLoansForBook(ctx, libraryID, bookID)
	if err != nil {
		return fmt.Errorf("failed to count active loans: %w", err)
	}
	if out > 0 {
		return apperrors.New(apperrors.CodeBookOnLoan, "book has copies out on loan")
	}

	if err := s.books.DeleteBook(ctx, libraryID, bookID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apperrors.New(apperrors.CodeNotFound, "book not found")
		}
		return fmt.Errorf("failed to delete book: %w", err)
	}

	s.logger.Info("book removed",
		zap.String("library_id", libraryID),
		zap.String("book_id", bookID))

	return nil
}
