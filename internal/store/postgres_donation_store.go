package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jizusun/OpenBookCorner/internal/model"
)

// CreateDonation records a donation offer.
func (s *PostgresStore) CreateDonation(ctx context.Context, d *model.BookDonation) error {
	query := `
		INSERT INTO book_donations (id, library_id, user_id, title, author, isbn, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := s.pool.Exec(ctx, query,
		d.ID,
		d.LibraryID,
		d.UserID,
		d.Title,
		d.Author,
		d.ISBN,
		d.Status,
		d.CreatedAt,
	)

	return err
}

// GetDonation retrieves a donation scoped by library.
func (s *PostgresStore) GetDonation(ctx context.Context, libraryID, donationID string) (*model.BookDonation, error) {
	query := `
		SELECT id, library_id, user_id, title, author, isbn, status, created_at, decided_at
		FROM book_donations
		WHERE library_id = $1 AND id = $2
	`

	var d model.BookDonation
	err := s.pool.QueryRow(ctx, query, libraryID, donationID).Scan(
		&d.ID,
		&d.LibraryID,
		&d.UserID,
		&d.Title,
		&d.Author,
		&d.ISBN,
		&d.Status,
		&d.CreatedAt,
		&d.DecidedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get donation: %w", err)
	}

	return &d, nil
}

// ListDonations lists donations in a library, optionally filtered by status.
func (s *PostgresStore) ListDonations(ctx context.Context, libraryID string, status model.DonationStatus) ([]*model.BookDonation, error) {
	query := `
		SELECT id, library_id, user_id, title, author, isbn, status, created_at, decided_at
		FROM book_donations
		WHERE library_id = $1 AND ($2 = '' OR status = $2)
		ORDER BY created_at DESC
	`

	rows, err := s.pool.Query(ctx, query, libraryID, string(status))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	donations := make([]*model.BookDonation, 0)
	for rows.Next() {
		var d model.BookDonation
		if err := rows.Scan(
			&d.ID,
			&d.LibraryID,
			&d.UserID,
			&d.Title,
			&d.Author,
			&d.ISBN,
			&d.Status,
			&d.CreatedAt,
			&d.DecidedAt,
		); err != nil {
			return nil, err
		}
		donations = append(donations, &d)
	}

	return donations, rows.Err()
}

// AcceptDonation marks an offered donation accepted and adds the copy to the
// catalog in the same transaction. If the library already holds the title
// (matched by ISBN when present, otherwise title+author), the existing entry
// gains a copy; otherwise a new entry is created under bookID.
func (s *PostgresStore) AcceptDonation(ctx context.Context, libraryID, donationID, bookID string, decidedAt time.Time) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var d model.BookDonation
	err = tx.QueryRow(ctx, `
		UPDATE book_donations
		SET status = 'accepted', decided_at = $3
		WHERE library_id = $1 AND id = $2 AND status = 'offered'
		RETURNING id, library_id, user_id, title, author, isbn, status, created_at, decided_at
	`, libraryID, donationID, decidedAt).Scan(
		&d.ID,
		&d.LibraryID,
		&d.UserID,
		&d.Title,
		&d.Author,
		&d.ISBN,
		&d.Status,
		&d.CreatedAt,
		&d.DecidedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}

	// ISBN-less entries are not unique per title+author, so the merge must
	// target exactly one row or a single donated copy would be counted on
	// every duplicate.
	result, err := tx.Exec(ctx, `
		UPDATE books
		SET quantity = quantity + 1, available = available + 1, updated_at = NOW()
		WHERE id = (
			SELECT id FROM books
			WHERE library_id = $1
			  AND (($2 <> '' AND isbn = $2) OR ($2 = '' AND title = $3 AND author = $4))
			ORDER BY created_at
			LIMIT 1
		)
	`, libraryID, d.ISBN, d.Title, d.Author)
	if err != nil {
		return err
	}

	if result.RowsAffected() == 0 {
		_, err = tx.Exec(ctx, `
			INSERT INTO books (id, library_id, isbn, title, author, quantity, available, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, 1, 1, NOW(), NOW())
		`, bookID, libraryID, d.ISBN, d.Title, d.Author)
		if err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

// DeclineDonation marks an offered donation declined.
func (s *PostgresStore) DeclineDonation(ctx context.Context, libraryID, donationID string, decidedAt time.Time) error {
	query := `
		UPDATE book_donations
		SET status = 'declined', decided_at = $3
		WHERE library_id = $1 AND id = $2 AND status = 'offered'
	`

	result, err := s.pool.Exec(ctx, query, libraryID, donationID, decidedAt)
	if err != nil {
		return err
	}

	if result.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}
