package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jizusun/OpenBookCorner/internal/model"
)

// CreateRequest records a reader's acquisition request.
func (s *PostgresStore) CreateRequest(ctx context.Context, req *model.BookRequest) error {
	query := `
		INSERT INTO book_requests (id, library_id, user_id, title, author, isbn, note, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := s.pool.Exec(ctx, query,
		req.ID,
		req.LibraryID,
		req.UserID,
		req.Title,
		req.Author,
		req.ISBN,
		req.Note,
		req.Status,
		req.CreatedAt,
	)

	return err
}

// GetRequest retrieves a request scoped by library.
func (s *PostgresStore) GetRequest(ctx context.Context, libraryID, requestID string) (*model.BookRequest, error) {
	query := `
		SELECT id, library_id, user_id, title, author, isbn, note, status, created_at, decided_at
		FROM book_requests
		WHERE library_id = $1 AND id = $2
	`

	var req model.BookRequest
	err := s.pool.QueryRow(ctx, query, libraryID, requestID).Scan(
		&req.ID,
		&req.LibraryID,
		&req.UserID,
		&req.Title,
		&req.Author,
		&req.ISBN,
		&req.Note,
		&req.Status,
		&req.CreatedAt,
		&req.DecidedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get request: %w", err)
	}

	return &req, nil
}

// ListRequests lists requests in a library, optionally filtered by status.
func (s *PostgresStore) ListRequests(ctx context.Context, libraryID string, status model.RequestStatus) ([]*model.BookRequest, error) {
	query := `
		SELECT id, library_id, user_id, title, author, isbn, note, status, created_at, decided_at
		FROM book_requests
		WHERE library_id = $1 AND ($2 = '' OR status = $2)
		ORDER BY created_at DESC
	`

	rows, err := s.pool.Query(ctx, query, libraryID, string(status))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	requests := make([]*model.BookRequest, 0)
	for rows.Next() {
		var req model.BookRequest
		if err := rows.Scan(
			&req.ID,
			&req.LibraryID,
			&req.UserID,
			&req.Title,
			&req.Author,
			&req.ISBN,
			&req.Note,
			&req.Status,
			&req.CreatedAt,
			&req.DecidedAt,
		); err != nil {
			return nil, err
		}
		requests = append(requests, &req)
	}

	return requests, rows.Err()
}

// DecideRequest moves a pending request to approved or rejected. The status
// guard makes the transition single-shot.
func (s *PostgresStore) DecideRequest(ctx context.Context, libraryID, requestID string, status model.RequestStatus, decidedAt time.Time) error {
	query := `
		UPDATE book_requests
		SET status = $3, decided_at = $4
		WHERE library_id = $1 AND id = $2 AND status = 'pending'
	`

	result, err := s.pool.Exec(ctx, query, libraryID, requestID, status, decidedAt)
	if err != nil {
		return err
	}

	if result.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}
