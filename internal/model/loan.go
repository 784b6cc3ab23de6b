package model

import "time"

// Loan records one copy of a book being out with a user. ReturnedAt is nil
// while the loan is active.
type Loan struct {
	ID         string     `json:"id"`
	LibraryID  string     `json:"library_id"`
	BookID     string     `json:"book_id"`
	UserID     string     `json:"user_id"`
	BorrowedAt time.Time  `json:"borrowed_at"`
	DueDate    time.Time  `json:"due_date"`
	ReturnedAt *time.Time `json:"returned_at,omitempty"`
	RemindedAt *time.Time `json:"reminded_at,omitempty"`
	ExtendedAt *time.Time `json:"extended_at,omitempty"`
}

// Active reports whether the copy is still out.
func (l *Loan) Active() bool {
	return l.ReturnedAt == nil
}

// Overdue reports whether the loan is active and past its due date.
func (l *Loan) Overdue(now time.Time) bool {
	return l.Active() && now.After(l.DueDate)
}

// LoanState filters loan listings.
type LoanState string

const (
	LoanStateAll      LoanState = ""
	LoanStateActive   LoanState = "active"
	LoanStateOverdue  LoanState = "overdue"
	LoanStateReturned LoanState = "returned"
)
