// Package worker runs the due-date reminder loop.
package worker

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	appmail "github.com/jizusun/OpenBookCorner/internal/mail"
	"github.com/jizusun/OpenBookCorner/internal/metrics"
	"github.com/jizusun/OpenBookCorner/internal/model"
	"github.com/jizusun/OpenBookCorner/internal/service"
	"github.com/jizusun/OpenBookCorner/internal/store"
)

// Config carries the reminder worker tunables.
type Config struct {
	CheckInterval time.Duration
	DueSoonWindow time.Duration
	Concurrency   int
}

// Reminder periodically finds loans that are due soon or overdue and sends
// the user an email plus an in-app notification. Overdue loans are reminded
// at most once per 24h via reminded_at.
type Reminder struct {
	loans         store.LoanStore
	books         store.BookStore
	users         store.UserStore
	notifications *service.NotificationService
	mailer        appmail.Sender
	cfg           Config
	logger        *zap.Logger

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewReminder creates a new reminder worker.
func NewReminder(
	loans store.LoanStore,
	books store.BookStore,
	users store.UserStore,
	notifications *service.NotificationService,
	mailer appmail.Sender,
	cfg Config,
	logger *zap.Logger,
) *Reminder {
	return &Reminder{
		loans:         loans,
		books:         books,
		users:         users,
		notifications: notifications,
		mailer:        mailer,
		cfg:           cfg,
		logger:        logger,
		stopCh:        make(chan struct{}),
		doneCh:        make(chan struct{}),
	}
}

// Start launches the reminder loop. A sweep runs immediately, then on every
// tick until Stop is called.
func (r *Reminder) Start() {
	go func() {
		defer close(r.doneCh)

		ticker := time.NewTicker(r.cfg.CheckInterval)
		defer ticker.Stop()

		r.sweep(context.Background())

		for {
			select {
			case <-ticker.C:
				r.sweep(context.Background())
			case <-r.stopCh:
				return
			}
		}
	}()

	r.logger.Info("reminder worker started",
		zap.Duration("check_interval", r.cfg.CheckInterval),
		zap.Duration("due_soon_window", r.cfg.DueSoonWindow))
}

// Stop halts the loop and waits for the current sweep to finish.
func (r *Reminder) Stop() {
	close(r.stopCh)
	<-r.doneCh
	r.logger.Info("reminder worker stopped")
}

// sweep runs one pass over due-soon and overdue loans.
func (r *Reminder) sweep(ctx context.Context) {
	now := time.Now()

	dueSoon, err := r.loans.ListLoansDueSoon(ctx, now, r.cfg.DueSoonWindow)
	if err != nil {
		r.logger.Error("failed to list due-soon loans", zap.Error(err))
	} else {
		r.fanOut(ctx, dueSoon, func(ctx context.Context, loan *model.Loan) error {
			return r.remindDueSoon(ctx, loan)
		})
	}

	overdue, err := r.loans.ListOverdueLoans(ctx, now, now.Add(-24*time.Hour))
	if err != nil {
		r.logger.Error("failed to list overdue loans", zap.Error(err))
	} else {
		r.fanOut(ctx, overdue, func(ctx context.Context, loan *model.Loan) error {
			return r.remindOverdue(ctx, loan, now)
		})
	}

	r.logger.Debug("reminder sweep finished",
		zap.Int("due_soon", len(dueSoon)),
		zap.Int("overdue", len(overdue)))
}

// fanOut sends per-loan reminders with bounded concurrency. A failing loan
// does not stop the rest; errors are logged per loan.
func (r *Reminder) fanOut(ctx context.Context, loans []*model.Loan, send func(context.Context, *model.Loan) error) {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Concurrency)

	for _, loan := range loans {
		loan := loan
		g.Go(func() error {
			if err := send(ctx, loan); err != nil {
				r.logger.Warn("reminder failed",
					zap.String("loan_id", loan.ID),
					zap.Error(err))
			}
			return nil
		})
	}

	g.Wait()
}

func (r *Reminder) remindDueSoon(ctx context.Context, loan *model.Loan) error {
	book, user, err := r.loadLoanParties(ctx, loan)
	if err != nil {
		return err
	}

	r.notifications.Notify(ctx, loan.LibraryID, loan.UserID,
		fmt.Sprintf("%q is due on %s", book.Title, loan.DueDate.Format("02 Jan 2006")))

	if err := r.mailer.Send(appmail.DueSoon(user.Email, book.Title, loan.DueDate)); err != nil {
		return err
	}

	metrics.RemindersSentTotal.WithLabelValues("due_soon").Inc()
	return r.loans.MarkReminded(ctx, loan.ID, time.Now())
}

func (r *Reminder) remindOverdue(ctx context.Context, loan *model.Loan, now time.Time) error {
	book, user, err := r.loadLoanParties(ctx, loan)
	if err != nil {
		return err
	}

	daysLate := int(now.Sub(loan.DueDate).Hours() / 24)
	if daysLate < 1 {
		daysLate = 1
	}

	r.notifications.Notify(ctx, loan.LibraryID, loan.UserID,
		fmt.Sprintf("%q is %d day(s) overdue, please return it", book.Title, daysLate))

	if err := r.mailer.Send(appmail.Overdue(user.Email, book.Title, loan.DueDate, daysLate)); err != nil {
		return err
	}

	metrics.RemindersSentTotal.WithLabelValues("overdue").Inc()
	return r.loans.MarkReminded(ctx, loan.ID, now)
}

func (r *Reminder) loadLoanParties(ctx context.Context, loan *model.Loan) (*model.Book, *model.User, error) {
	book, err := r.books.GetBook(ctx, loan.LibraryID, loan.BookID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load book: %w", err)
	}

	user, err := r.users.GetUser(ctx, loan.UserID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load user: %w", err)
	}

	return book, user, nil
}
