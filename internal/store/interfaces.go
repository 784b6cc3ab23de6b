package store

import (
	"context"
	"errors"
	"time"

	"github.com/jizusun/OpenBookCorner/internal/model"
)

// ErrNotFound is returned when a row or key is not found.
var ErrNotFound = errors.New("not found")

// ErrNoCopies is returned when a borrow races all remaining copies away.
var ErrNoCopies = errors.New("no copies available")

// ErrVersionConflict is returned when an optimistic update loses the race.
var ErrVersionConflict = errors.New("version conflict")

// LibraryStore persists libraries and memberships.
type LibraryStore interface {
	CreateLibrary(ctx context.Context, library *model.Library) error
	GetLibrary(ctx context.Context, libraryID string) (*model.Library, error)
	GetLibraryBySlug(ctx context.Context, slug string) (*model.Library, error)
	ListLibraries(ctx context.Context) ([]*model.Library, error)
	UpdateLibrary(ctx context.Context, library *model.Library) error

	CreateMembership(ctx context.Context, m *model.Membership) error
	GetMembership(ctx context.Context, libraryID, userID string) (*model.Membership, error)
	ListMemberships(ctx context.Context, libraryID string) ([]*model.Membership, error)
	UpdateMembershipRole(ctx context.Context, libraryID, userID string, role model.Role) error
	DeleteMembership(ctx context.Context, libraryID, userID string) error
}

// UserStore persists users.
type UserStore interface {
	CreateUser(ctx context.Context, user *model.User) error
	GetUser(ctx context.Context, userID string) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
}

// BookStore persists the per-library catalog.
type BookStore interface {
	CreateBook(ctx context.Context, book *model.Book) error
	GetBook(ctx context.Context, libraryID, bookID string) (*model.Book, error)
	GetBookByISBN(ctx context.Context, libraryID, isbn string) (*model.Book, error)
	ListBooks(ctx context.Context, libraryID, search string, limit, offset int) ([]*model.Book, error)
	UpdateBook(ctx context.Context, book *model.Book) error
	AddCopies(ctx context.Context, libraryID, bookID string, n int) error
	DeleteBook(ctx context.Context, libraryID, bookID string) error
}

// LoanStore persists borrow transactions. CreateLoan and ReturnLoan carry the
// copy-count adjustment in the same transaction as the loan row.
type LoanStore interface {
	CreateLoan(ctx context.Context, loan *model.Loan) error
	GetLoan(ctx context.Context, libraryID, loanID string) (*model.Loan, error)
	ReturnLoan(ctx context.Context, libraryID, loanID string, returnedAt time.Time) (*model.Loan, error)
	ExtendLoan(ctx context.Context, libraryID, loanID string, newDue, extendedAt time.Time) error
	ListLoans(ctx context.Context, libraryID string, filter LoanFilter) ([]*model.Loan, error)
	CountActiveLoans(ctx context.Context, libraryID, userID string) (int, error)
	CountOverdueLoans(ctx context.Context, libraryID, userID string, now time.Time) (int, error)
	CountActiveLoansForBook(ctx context.Context, libraryID, bookID string) (int, error)
	ListLoansDueSoon(ctx context.Context, now time.Time, window time.Duration) ([]*model.Loan, error)
	ListOverdueLoans(ctx context.Context, now time.Time, remindedBefore time.Time) ([]*model.Loan, error)
	MarkReminded(ctx context.Context, loanID string, at time.Time) error
}

// LoanFilter narrows loan listings.
type LoanFilter struct {
	UserID string
	State  model.LoanState
	From   time.Time
	To     time.Time
}

// RequestStore persists book requests.
type RequestStore interface {
	CreateRequest(ctx context.Context, req *model.BookRequest) error
	GetRequest(ctx context.Context, libraryID, requestID string) (*model.BookRequest, error)
	ListRequests(ctx context.Context, libraryID string, status model.RequestStatus) ([]*model.BookRequest, error)
	DecideRequest(ctx context.Context, libraryID, requestID string, status model.RequestStatus, decidedAt time.Time) error
}

// DonationStore persists donation offers. AcceptDonation upserts the donated
// copy into the catalog in the same transaction.
type DonationStore interface {
	CreateDonation(ctx context.Context, d *model.BookDonation) error
	GetDonation(ctx context.Context, libraryID, donationID string) (*model.BookDonation, error)
	ListDonations(ctx context.Context, libraryID string, status model.DonationStatus) ([]*model.BookDonation, error)
	AcceptDonation(ctx context.Context, libraryID, donationID, bookID string, decidedAt time.Time) error
	DeclineDonation(ctx context.Context, libraryID, donationID string, decidedAt time.Time) error
}

// NotificationStore persists in-app notifications.
type NotificationStore interface {
	CreateNotification(ctx context.Context, n *model.Notification) error
	ListNotifications(ctx context.Context, libraryID, userID string, unreadOnly bool) ([]*model.Notification, error)
	MarkNotificationRead(ctx context.Context, libraryID, userID, notificationID string, at time.Time) error
}

// SessionStore holds server-side sessions keyed by opaque token.
type SessionStore interface {
	CreateSession(ctx context.Context, token string, session *model.Session, ttl time.Duration) error
	GetSession(ctx context.Context, token string) (*model.Session, error)
	RenewSession(ctx context.Context, token string, session *model.Session, ttl time.Duration) error
	DeleteSession(ctx context.Context, token string) error
}

// CodeStore holds hashed sign-in codes with attempt accounting.
type CodeStore interface {
	SaveCode(ctx context.Context, email, codeHash string, ttl time.Duration) error
	GetCode(ctx context.Context, email string) (string, error)
	IncrementCodeAttempts(ctx context.Context, email string) (int, error)
	DeleteCode(ctx context.Context, email string) error
	AllowCodeRequest(ctx context.Context, email string, window time.Duration) (bool, error)
}

// IdempotencyStore caches responses for replay on retried requests.
type IdempotencyStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Cache interface for in-memory caching.
type Cache interface {
	Get(ctx context.Context, key string) (any, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Pinger is implemented by stores that can report backend health.
type Pinger interface {
	Ping(ctx context.Context) error
}
