package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jizusun/OpenBookCorner/internal/model"
)

// CreateLoan takes one copy off the shelf and records the loan, in a single
// transaction. The conditional update on available is the double-borrow
// guard: zero rows affected means every copy is already out.
func (s *PostgresStore) CreateLoan(ctx context.Context, loan *model.Loan) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	result, err := tx.Exec(ctx, `
		UPDATE books
		SET available = available - 1, updated_at = NOW()
		WHERE library_id = $1 AND id = $2 AND available > 0
	`, loan.LibraryID, loan.BookID)
	if err != nil {
		return err
	}

	if result.RowsAffected() == 0 {
		// Distinguish a missing book from an exhausted one.
		var exists bool
		if err := tx.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM books WHERE library_id = $1 AND id = $2)`,
			loan.LibraryID, loan.BookID,
		).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return ErrNotFound
		}
		return ErrNoCopies
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO loans (id, library_id, book_id, user_id, borrowed_at, due_date)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, loan.ID, loan.LibraryID, loan.BookID, loan.UserID, loan.BorrowedAt, loan.DueDate)
	if err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// GetLoan retrieves a loan scoped by library.
func (s *PostgresStore) GetLoan(ctx context.Context, libraryID, loanID string) (*model.Loan, error) {
	query := `
		SELECT id, library_id, book_id, user_id, borrowed_at, due_date, returned_at, reminded_at, extended_at
		FROM loans
		WHERE library_id = $1 AND id = $2
	`

	var loan model.Loan
	err := s.pool.QueryRow(ctx, query, libraryID, loanID).Scan(
		&loan.ID,
		&loan.LibraryID,
		&loan.BookID,
		&loan.UserID,
		&loan.BorrowedAt,
		&loan.DueDate,
		&loan.ReturnedAt,
		&loan.RemindedAt,
		&loan.ExtendedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get loan: %w", err)
	}

	return &loan, nil
}

// ReturnLoan closes an active loan and puts the copy back on the shelf. The
// conditional update on returned_at makes the return idempotent at the store
// level: a second return affects zero rows.
func (s *PostgresStore) ReturnLoan(ctx context.Context, libraryID, loanID string, returnedAt time.Time) (*model.Loan, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var loan model.Loan
	err = tx.QueryRow(ctx, `
		UPDATE loans
		SET returned_at = $3
		WHERE library_id = $1 AND id = $2 AND returned_at IS NULL
		RETURNING id, library_id, book_id, user_id, borrowed_at, due_date, returned_at, reminded_at, extended_at
	`, libraryID, loanID, returnedAt).Scan(
		&loan.ID,
		&loan.LibraryID,
		&loan.BookID,
		&loan.UserID,
		&loan.BorrowedAt,
		&loan.DueDate,
		&loan.ReturnedAt,
		&loan.RemindedAt,
		&loan.ExtendedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	_, err = tx.Exec(ctx, `
		UPDATE books
		SET available = available + 1, updated_at = NOW()
		WHERE library_id = $1 AND id = $2
	`, libraryID, loan.BookID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	return &loan, nil
}

// ExtendLoan pushes the due date of an active, not yet extended loan.
func (s *PostgresStore) ExtendLoan(ctx context.Context, libraryID, loanID string, newDue, extendedAt time.Time) error {
	query := `
		UPDATE loans
		SET due_date = $3, extended_at = $4
		WHERE library_id = $1 AND id = $2 AND returned_at IS NULL AND extended_at IS NULL
	`

	result, err := s.pool.Exec(ctx, query, libraryID, loanID, newDue, extendedAt)
	if err != nil {
		return err
	}

	if result.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// ListLoans lists loans in a library narrowed by filter.
func (s *PostgresStore) ListLoans(ctx context.Context, libraryID string, filter LoanFilter) ([]*model.Loan, error) {
	query := `
		SELECT id, library_id, book_id, user_id, borrowed_at, due_date, returned_at, reminded_at, extended_at
		FROM loans
		WHERE library_id = $1
	`
	args := []interface{}{libraryID}

	if filter.UserID != "" {
		args = append(args, filter.UserID)
		query += ` AND user_id = $` + strconv.Itoa(len(args))
	}

	switch filter.State {
	case model.LoanStateActive:
		query += ` AND returned_at IS NULL`
	case model.LoanStateOverdue:
		query += ` AND returned_at IS NULL AND due_date < NOW()`
	case model.LoanStateReturned:
		query += ` AND returned_at IS NOT NULL`
	}

	if !filter.From.IsZero() {
		args = append(args, filter.From)
		query += ` AND borrowed_at >= $` + strconv.Itoa(len(args))
	}
	if !filter.To.IsZero() {
		args = append(args, filter.To)
		query += ` AND borrowed_at <= $` + strconv.Itoa(len(args))
	}

	query += ` ORDER BY borrowed_at DESC`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanLoans(rows)
}

func scanLoans(rows pgx.Rows) ([]*model.Loan, error) {
	loans := make([]*model.Loan, 0)
	for rows.Next() {
		var loan model.Loan
		if err := rows.Scan(
			&loan.ID,
			&loan.LibraryID,
			&loan.BookID,
			&loan.UserID,
			&loan.BorrowedAt,
			&loan.DueDate,
			&loan.ReturnedAt,
			&loan.RemindedAt,
			&loan.ExtendedAt,
		); err != nil {
			return nil, err
		}
		loans = append(loans, &loan)
	}

	return loans, rows.Err()
}

// CountActiveLoans counts a user's open loans in a library.
func (s *PostgresStore) CountActiveLoans(ctx context.Context, libraryID, userID string) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM loans
		WHERE library_id = $1 AND user_id = $2 AND returned_at IS NULL
	`, libraryID, userID).Scan(&count)
	return count, err
}

// CountOverdueLoans counts a user's open loans past due.
func (s *PostgresStore) CountOverdueLoans(ctx context.Context, libraryID, userID string, now time.Time) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM loans
		WHERE library_id = $1 AND user_id = $2 AND returned_at IS NULL AND due_date < $3
	`, libraryID, userID, now).Scan(&count)
	return count, err
}

// CountActiveLoansForBook counts copies of a book currently out.
func (s *PostgresStore) CountActiveLoansForBook(ctx context.Context, libraryID, bookID string) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM loans
		WHERE library_id = $1 AND book_id = $2 AND returned_at IS NULL
	`, libraryID, bookID).Scan(&count)
	return count, err
}

// ListLoansDueSoon finds active loans due within the window that have not
// been reminded yet. Spans all libraries; the reminder worker runs globally.
func (s *PostgresStore) ListLoansDueSoon(ctx context.Context, now time.Time, window time.Duration) ([]*model.Loan, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, library_id, book_id, user_id, borrowed_at, due_date, returned_at, reminded_at, extended_at
		FROM loans
		WHERE returned_at IS NULL
		  AND due_date > $1
		  AND due_date <= $2
		  AND reminded_at IS NULL
		ORDER BY due_date
	`, now, now.Add(window))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanLoans(rows)
}

// ListOverdueLoans finds active loans past due whose last reminder is older
// than remindedBefore (or that were never reminded).
func (s *PostgresStore) ListOverdueLoans(ctx context.Context, now time.Time, remindedBefore time.Time) ([]*model.Loan, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, library_id, book_id, user_id, borrowed_at, due_date, returned_at, reminded_at, extended_at
		FROM loans
		WHERE returned_at IS NULL
		  AND due_date < $1
		  AND (reminded_at IS NULL OR reminded_at < $2)
		ORDER BY due_date
	`, now, remindedBefore)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanLoans(rows)
}

// MarkReminded records that a reminder went out for a loan.
func (s *PostgresStore) MarkReminded(ctx context.Context, loanID string, at time.Time) error {
	_, err := s.pool.Exec(ctx, `UPDATE loans SET reminded_at = $2 WHERE id = $1`, loanID, at)
	return err
}
