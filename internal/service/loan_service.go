package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jizusun/OpenBookCorner/internal/apperrors"
	appmail "github.com/jizusun/OpenBookCorner/internal/mail"
	"github.com/jizusun/OpenBookCorner/internal/model"
	"github.com/jizusun/OpenBookCorner/internal/store"
)

// CirculationConfig carries the lending rules.
type CirculationConfig struct {
	LoanPeriod     time.Duration
	MaxActiveLoans int
	IdempotencyTTL time.Duration
}

// LoanService manages borrow transactions.
type LoanService struct {
	loans         store.LoanStore
	books         store.BookStore
	users         store.UserStore
	idempotency   store.IdempotencyStore
	notifications *NotificationService
	mailer        appmail.Sender
	cfg           CirculationConfig
	logger        *zap.Logger
}

// NewLoanService creates a new loan service.
func NewLoanService(
	loans store.LoanStore,
	books store.BookStore,
	users store.UserStore,
	idempotency store.IdempotencyStore,
	notifications *NotificationService,
	mailer appmail.Sender,
	cfg CirculationConfig,
	logger *zap.Logger,
) *LoanService {
	return &LoanService{
		loans:         loans,
		books:         books,
		users:         users,
		idempotency:   idempotency,
		notifications: notifications,
		mailer:        mailer,
		cfg:           cfg,
		logger:        logger,
	}
}

// Borrow takes one copy of a book out for a user. When idemKey is set, a
// retried request replays the first response instead of borrowing a second
// copy.
func (s *LoanService) Borrow(ctx context.Context, libraryID, userID, bookID, idemKey string) (*model.Loan, error) {
	if idemKey != "" {
		if cached, err := s.idempotency.Get(ctx, s.borrowKey(libraryID, userID, idemKey)); err == nil {
			var loan model.Loan
			if err := json.Unmarshal(cached, &loan); err == nil {
				s.logger.Info("borrow replayed from idempotency cache",
					zap.String("loan_id", loan.ID))
				return &loan, nil
			}
		}
	}

	overdue, err := s.loans.CountOverdueLoans(ctx, libraryID, userID, time.Now())
	if err != nil {
		return nil, fmt.Errorf("failed to count overdue loans: %w", err)
	}
	if overdue > 0 {
		return nil, apperrors.New(apperrors.CodeUserHasOverdue, "return overdue books before borrowing")
	}

	active, err := s.loans.CountActiveLoans(ctx, libraryID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to count active loans: %w", err)
	}
	if active >= s.cfg.MaxActiveLoans {
		return nil, apperrors.New(apperrors.CodeLoanLimitReached,
			fmt.Sprintf("at most %d books may be out at once", s.cfg.MaxActiveLoans))
	}

	now := time.Now()
	loan := &model.Loan{
		ID:         uuid.New().String(),
		LibraryID:  libraryID,
		BookID:     bookID,
		UserID:     userID,
		BorrowedAt: now,
		DueDate:    now.Add(s.cfg.LoanPeriod),
	}

	if err := s.loans.CreateLoan(ctx, loan); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperrors.New(apperrors.CodeNotFound, "book not found")
		}
		if errors.Is(err, store.ErrNoCopies) {
			return nil, apperrors.New(apperrors.CodeBookUnavailable, "all copies are out on loan")
		}
		return nil, fmt.Errorf("failed to create loan: %w", err)
	}

	if idemKey != "" {
		if data, err := json.Marshal(loan); err == nil {
			if err := s.idempotency.Set(ctx, s.borrowKey(libraryID, userID, idemKey), data, s.cfg.IdempotencyTTL); err != nil {
				s.logger.Warn("failed to cache borrow response", zap.Error(err))
			}
		}
	}

	s.logger.Info("book borrowed",
		zap.String("library_id", libraryID),
		zap.String("loan_id", loan.ID),
		zap.String("book_id", bookID),
		zap.String("user_id", userID),
		zap.Time("due_date", loan.DueDate))

	s.sendBorrowReceipt(ctx, loan)

	return loan, nil
}

// Return closes a loan and puts the copy back on the shelf.
func (s *LoanService) Return(ctx context.Context, libraryID, loanID string) (*model.Loan, error) {
	loan, err := s.loans.ReturnLoan(ctx, libraryID, loanID, time.Now())
	if errors.Is(err, store.ErrNotFound) {
		// The conditional update misses both missing and already-returned
		// loans; look again to report the right error.
		existing, getErr := s.loans.GetLoan(ctx, libraryID, loanID)
		if getErr == nil && !existing.Active() {
			return nil, apperrors.New(apperrors.CodeLoanAlreadyReturned, "loan is already returned")
		}
		return nil, apperrors.New(apperrors.CodeNotFound, "loan not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to return loan: %w", err)
	}

	s.logger.Info("book returned",
		zap.String("library_id", libraryID),
		zap.String("loan_id", loanID))

	if book, err := s.books.GetBook(ctx, libraryID, loan.BookID); err == nil {
		s.notifications.Notify(ctx, libraryID, loan.UserID,
			fmt.Sprintf("Returned: %q", book.Title))
	}

	return loan, nil
}

// Extend pushes the due date by one loan period. A loan can be extended once
// and only while it is active and not yet overdue.
func (s *LoanService) Extend(ctx context.Context, libraryID, userID, loanID string) (*model.Loan, error) {
	loan, err := s.loans.GetLoan(ctx, libraryID, loanID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperrors.New(apperrors.CodeNotFound, "loan not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load loan: %w", err)
	}

	if loan.UserID != userID {
		return nil, apperrors.New(apperrors.CodeForbidden, "not your loan")
	}
	if !loan.Active() {
		return nil, apperrors.New(apperrors.CodeLoanAlreadyReturned, "loan is already returned")
	}
	if loan.Overdue(time.Now()) {
		return nil, apperrors.New(apperrors.CodeConflict, "overdue loans cannot be extended")
	}
	if loan.ExtendedAt != nil {
		return nil, apperrors.New(apperrors.CodeConflict, "loan was already extended")
	}

	now := time.Now()
	newDue := loan.DueDate.Add(s.cfg.LoanPeriod)

	if err := s.loans.ExtendLoan(ctx, libraryID, loanID, newDue, now); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperrors.New(apperrors.CodeConflict, "loan can no longer be extended")
		}
		return nil, fmt.Errorf("failed to extend loan: %w", err)
	}

	loan.DueDate = newDue
	loan.ExtendedAt = &now

	s.logger.Info("loan extended",
		zap.String("library_id", libraryID),
		zap.String("loan_id", loanID),
		zap.Time("due_date", newDue))

	s.notifications.Notify(ctx, libraryID, userID,
		fmt.Sprintf("Loan extended, now due %s", newDue.Format("02 Jan 2006")))

	return loan, nil
}

// List returns loans in a library narrowed by filter.
func (s *LoanService) List(ctx context.Context, libraryID string, filter store.LoanFilter) ([]*model.Loan, error) {
	loans, err := s.loans.ListLoans(ctx, libraryID, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list loans: %w", err)
	}
	return loans, nil
}

func (s *LoanService) sendBorrowReceipt(ctx context.Context, loan *model.Loan) {
	book, err := s.books.GetBook(ctx, loan.LibraryID, loan.BookID)
	if err != nil {
		s.logger.Warn("failed to load book for receipt", zap.Error(err))
		return
	}

	s.notifications.Notify(ctx, loan.LibraryID, loan.UserID,
		fmt.Sprintf("Borrowed %q, due %s", book.Title, loan.DueDate.Format("02 Jan 2006")))

	user, err := s.users.GetUser(ctx, loan.UserID)
	if err != nil {
		s.logger.Warn("failed to load user for receipt", zap.Error(err))
		return
	}

	if err := s.mailer.Send(appmail.BorrowReceipt(user.Email, book.Title, loan.DueDate)); err != nil {
		s.logger.Warn("failed to send borrow receipt", zap.Error(err))
	}
}

func (s *LoanService) borrowKey(libraryID, userID, idemKey string) string {
	return fmt.Sprintf("borrow:%s:%s:%s", libraryID, userID, idemKey)
}
