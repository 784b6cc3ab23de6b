package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jizusun/OpenBookCorner/internal/model"
)

// CreateBook creates a new catalog entry.
func (s *PostgresStore) CreateBook(ctx context.Context, book *model.Book) error {
	query := `
		INSERT INTO books (id, library_id, isbn, title, author, quantity, available, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := s.pool.Exec(ctx, query,
		book.ID,
		book.LibraryID,
		book.ISBN,
		book.Title,
		book.Author,
		book.Quantity,
		book.Available,
		book.CreatedAt,
		book.UpdatedAt,
	)

	return err
}

// GetBook retrieves a book scoped by library.
func (s *PostgresStore) GetBook(ctx context.Context, libraryID, bookID string) (*model.Book, error) {
	query := `
		SELECT id, library_id, isbn, title, author, quantity, available, created_at, updated_at
		FROM books
		WHERE library_id = $1 AND id = $2
	`

	return s.scanBook(s.pool.QueryRow(ctx, query, libraryID, bookID))
}

// GetBookByISBN retrieves a book by ISBN within a library.
func (s *PostgresStore) GetBookByISBN(ctx context.Context, libraryID, isbn string) (*model.Book, error) {
	query := `
		SELECT id, library_id, isbn, title, author, quantity, available, created_at, updated_at
		FROM books
		WHERE library_id = $1 AND isbn = $2
	`

	return s.scanBook(s.pool.QueryRow(ctx, query, libraryID, isbn))
}

func (s *PostgresStore) scanBook(row pgx.Row) (*model.Book, error) {
	var book model.Book
	err := row.Scan(
		&book.ID,
		&book.LibraryID,
		&book.ISBN,
		&book.Title,
		&book.Author,
		&book.Quantity,
		&book.Available,
		&book.CreatedAt,
		&book.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get book: %w", err)
	}

	return &book, nil
}

// ListBooks lists books in a library, optionally filtered by a search term
// matched against title, author and ISBN.
func (s *PostgresStore) ListBooks(ctx context.Context, libraryID, search string, limit, offset int) ([]*model.Book, error) {
	query := `
		SELECT id, library_id, isbn, title, author, quantity, available, created_at, updated_at
		FROM books
		WHERE library_id = $1
		  AND ($2 = '' OR title ILIKE '%' || $2 || '%' OR author ILIKE '%' || $2 || '%' OR isbn = $2)
		ORDER BY title
		LIMIT $3 OFFSET $4
	`

	rows, err := s.pool.Query(ctx, query, libraryID, search, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	books := make([]*model.Book, 0)
	for rows.Next() {
		var book model.Book
		if err := rows.Scan(
			&book.ID,
			&book.LibraryID,
			&book.ISBN,
			&book.Title,
			&book.Author,
			&book.Quantity,
			&book.Available,
			&book.CreatedAt,
			&book.UpdatedAt,
		); err != nil {
			return nil, err
		}
		books = append(books, &book)
	}

	return books, rows.Err()
}

// UpdateBook updates title, author and ISBN of a catalog entry.
func (s *PostgresStore) UpdateBook(ctx context.Context, book *model.Book) error {
	query := `
		UPDATE books
		SET isbn = $3, title = $4, author = $5, updated_at = $6
		WHERE library_id = $1 AND id = $2
	`

	result, err := s.pool.Exec(ctx, query,
		book.LibraryID,
		book.ID,
		book.ISBN,
		book.Title,
		book.Author,
		book.UpdatedAt,
	)
	if err != nil {
		return err
	}

	if result.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// AddCopies increments quantity and available together.
func (s *PostgresStore) AddCopies(ctx context.Context, libraryID, bookID string, n int) error {
	query := `
		UPDATE books
		SET quantity = quantity + $3, available = available + $3, updated_at = NOW()
		WHERE library_id = $1 AND id = $2
	`

	result, err := s.pool.Exec(ctx, query, libraryID, bookID, n)
	if err != nil {
		return err
	}

	if result.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// DeleteBook removes a catalog entry.
func (s *PostgresStore) DeleteBook(ctx context.Context, libraryID, bookID string) error {
	query := `DELETE FROM books WHERE library_id = $1 AND id = $2`

	result, err := s.pool.Exec(ctx, query, libraryID, bookID)
	if err != nil {
		return err
	}

	if result.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}
