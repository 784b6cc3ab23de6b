package service

import (
	"context"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/jizusun/OpenBookCorner/internal/mail"
	"github.com/jizusun/OpenBookCorner/internal/model"
	"github.com/jizusun/OpenBookCorner/internal/store"
)

type mockLibraryStore struct {
	mock.Mock
}

func (m *mockLibraryStore) CreateLibrary(ctx context.Context, library *model.Library) error {
	return m.Called(ctx, library).Error(0)
}

func (m *mockLibraryStore) GetLibrary(ctx context.Context, libraryID string) (*model.Library, error) {
	args := m.Called(ctx, libraryID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Library), args.Error(1)
}

func (m *mockLibraryStore) GetLibraryBySlug(ctx context.Context, slug string) (*model.Library, error) {
	args := m.Called(ctx, slug)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Library), args.Error(1)
}

func (m *mockLibraryStore) ListLibraries(ctx context.Context) ([]*model.Library, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Library), args.Error(1)
}

func (m *mockLibraryStore) UpdateLibrary(ctx context.Context, library *model.Library) error {
	return m.Called(ctx, library).Error(0)
}

func (m *mockLibraryStore) CreateMembership(ctx context.Context, membership *model.Membership) error {
	return m.Called(ctx, membership).Error(0)
}

func (m *mockLibraryStore) GetMembership(ctx context.Context, libraryID, userID string) (*model.Membership, error) {
	args := m.Called(ctx, libraryID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Membership), args.Error(1)
}

func (m *mockLibraryStore) ListMemberships(ctx context.Context, libraryID string) ([]*model.Membership, error) {
	args := m.Called(ctx, libraryID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Membership), args.Error(1)
}

func (m *mockLibraryStore) UpdateMembershipRole(ctx context.Context, libraryID, userID string, role model.Role) error {
	return m.Called(ctx, libraryID, userID, role).Error(0)
}

func (m *mockLibraryStore) DeleteMembership(ctx context.Context, libraryID, userID string) error {
	return m.Called(ctx, libraryID, userID).Error(0)
}

type mockUserStore struct {
	mock.Mock
}

func (m *mockUserStore) CreateUser(ctx context.Context, user *model.User) error {
	return m.Called(ctx, user).Error(0)
}

func (m *mockUserStore) GetUser(ctx context.Context, userID string) (*model.User, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

func (m *mockUserStore) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

type mockBookStore struct {
	mock.Mock
}

func (m *mockBookStore) CreateBook(ctx context.Context, book *model.Book) error {
	return m.Called(ctx, book).Error(0)
}

func (m *mockBookStore) GetBook(ctx context.Context, libraryID, bookID string) (*model.Book, error) {
	args := m.Called(ctx, libraryID, bookID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Book), args.Error(1)
}

func (m *mockBookStore) GetBookByISBN(ctx context.Context, libraryID, isbn string) (*model.Book, error) {
	args := m.Called(ctx, libraryID, isbn)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Book), args.Error(1)
}

func (m *mockBookStore) ListBooks(ctx context.Context, libraryID, search string, limit, offset int) ([]*model.Book, error) {
	args := m.Called(ctx, libraryID, search, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Book), args.Error(1)
}

func (m *mockBookStore) UpdateBook(ctx context.Context, book *model.Book) error {
	return m.Called(ctx, book).Error(0)
}

func (m *mockBookStore) AddCopies(ctx context.Context, libraryID, bookID string, n int) error {
	return m.Called(ctx, libraryID, bookID, n).Error(0)
}

func (m *mockBookStore) DeleteBook(ctx context.Context, libraryID, bookID string) error {
	return m.Called(ctx, libraryID, bookID).Error(0)
}

type mockLoanStore struct {
	mock.Mock
}

func (m *mockLoanStore) CreateLoan(ctx context.Context, loan *model.Loan) error {
	return m.Called(ctx, loan).Error(0)
}

func (m *mockLoanStore) GetLoan(ctx context.Context, libraryID, loanID string) (*model.Loan, error) {
	args := m.Called(ctx, libraryID, loanID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Loan), args.Error(1)
}

func (m *mockLoanStore) ReturnLoan(ctx context.Context, libraryID, loanID string, returnedAt time.Time) (*model.Loan, error) {
	args := m.Called(ctx, libraryID, loanID, returnedAt)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Loan), args.Error(1)
}

func (m *mockLoanStore) ExtendLoan(ctx context.Context, libraryID, loanID string, newDue, extendedAt time.Time) error {
	return m.Called(ctx, libraryID, loanID, newDue, extendedAt).Error(0)
}

func (m *mockLoanStore) ListLoans(ctx context.Context, libraryID string, filter store.LoanFilter) ([]*model.Loan, error) {
	args := m.Called(ctx, libraryID, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Loan), args.Error(1)
}

func (m *mockLoanStore) CountActiveLoans(ctx context.Context, libraryID, userID string) (int, error) {
	args := m.Called(ctx, libraryID, userID)
	return args.Int(0), args.Error(1)
}

func (m *mockLoanStore) CountOverdueLoans(ctx context.Context, libraryID, userID string, now time.Time) (int, error) {
	args := m.Called(ctx, libraryID, userID, now)
	return args.Int(0), args.Error(1)
}

func (m *mockLoanStore) CountActiveLoansForBook(ctx context.Context, libraryID, bookID string) (int, error) {
	args := m.Called(ctx, libraryID, bookID)
	return args.Int(0), args.Error(1)
}

func (m *mockLoanStore) ListLoansDueSoon(ctx context.Context, now time.Time, window time.Duration) ([]*model.Loan, error) {
	args := m.Called(ctx, now, window)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Loan), args.Error(1)
}

func (m *mockLoanStore) ListOverdueLoans(ctx context.Context, now time.Time, remindedBefore time.Time) ([]*model.Loan, error) {
	args := m.Called(ctx, now, remindedBefore)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Loan), args.Error(1)
}

func (m *mockLoanStore) MarkReminded(ctx context.Context, loanID string, at time.Time) error {
	return m.Called(ctx, loanID, at).Error(0)
}

type mockRequestStore struct {
	mock.Mock
}

func (m *mockRequestStore) CreateRequest(ctx context.Context, req *model.BookRequest) error {
	return m.Called(ctx, req).Error(0)
}

func (m *mockRequestStore) GetRequest(ctx context.Context, libraryID, requestID string) (*model.BookRequest, error) {
	args := m.Called(ctx, libraryID, requestID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.BookRequest), args.Error(1)
}

func (m *mockRequestStore) ListRequests(ctx context.Context, libraryID string, status model.RequestStatus) ([]*model.BookRequest, error) {
	args := m.Called(ctx, libraryID, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.BookRequest), args.Error(1)
}

func (m *mockRequestStore) DecideRequest(ctx context.Context, libraryID, requestID string, status model.RequestStatus, decidedAt time.Time) error {
	return m.Called(ctx, libraryID, requestID, status, decidedAt).Error(0)
}

type mockDonationStore struct {
	mock.Mock
}

func (m *mockDonationStore) CreateDonation(ctx context.Context, d *model.BookDonation) error {
	return m.Called(ctx, d).Error(0)
}

func (m *mockDonationStore) GetDonation(ctx context.Context, libraryID, donationID string) (*model.BookDonation, error) {
	args := m.Called(ctx, libraryID, donationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.BookDonation), args.Error(1)
}

func (m *mockDonationStore) ListDonations(ctx context.Context, libraryID string, status model.DonationStatus) ([]*model.BookDonation, error) {
	args := m.Called(ctx, libraryID, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.BookDonation), args.Error(1)
}

func (m *mockDonationStore) AcceptDonation(ctx context.Context, libraryID, donationID, bookID string, decidedAt time.Time) error {
	return m.Called(ctx, libraryID, donationID, bookID, decidedAt).Error(0)
}

func (m *mockDonationStore) DeclineDonation(ctx context.Context, libraryID, donationID string, decidedAt time.Time) error {
	return m.Called(ctx, libraryID, donationID, decidedAt).Error(0)
}

type mockNotificationStore struct {
	mock.Mock
}

func (m *mockNotificationStore) CreateNotification(ctx context.Context, n *model.Notification) error {
	return m.Called(ctx, n).Error(0)
}

func (m *mockNotificationStore) ListNotifications(ctx context.Context, libraryID, userID string, unreadOnly bool) ([]*model.Notification, error) {
	args := m.Called(ctx, libraryID, userID, unreadOnly)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Notification), args.Error(1)
}

func (m *mockNotificationStore) MarkNotificationRead(ctx context.Context, libraryID, userID, notificationID string, at time.Time) error {
	return m.Called(ctx, libraryID, userID, notificationID, at).Error(0)
}

type mockSessionStore struct {
	mock.Mock
}

func (m *mockSessionStore) CreateSession(ctx context.Context, token string, session *model.Session, ttl time.Duration) error {
	return m.Called(ctx, token, session, ttl).Error(0)
}

func (m *mockSessionStore) GetSession(ctx context.Context, token string) (*model.Session, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Session), args.Error(1)
}

func (m *mockSessionStore) RenewSession(ctx context.Context, token string, session *model.Session, ttl time.Duration) error {
	return m.Called(ctx, token, session, ttl).Error(0)
}

func (m *mockSessionStore) DeleteSession(ctx context.Context, token string) error {
	return m.Called(ctx, token).Error(0)
}

type mockCodeStore struct {
	mock.Mock
}

func (m *mockCodeStore) SaveCode(ctx context.Context, email, codeHash string, ttl time.Duration) error {
	return m.Called(ctx, email, codeHash, ttl).Error(0)
}

func (m *mockCodeStore) GetCode(ctx context.Context, email string) (string, error) {
	args := m.Called(ctx, email)
	return args.String(0), args.Error(1)
}

func (m *mockCodeStore) IncrementCodeAttempts(ctx context.Context, email string) (int, error) {
	args := m.Called(ctx, email)
	return args.Int(0), args.Error(1)
}

func (m *mockCodeStore) DeleteCode(ctx context.Context, email string) error {
	return m.Called(ctx, email).Error(0)
}

func (m *mockCodeStore) AllowCodeRequest(ctx context.Context, email string, window time.Duration) (bool, error) {
	args := m.Called(ctx, email, window)
	return args.Bool(0), args.Error(1)
}

type mockIdempotencyStore struct {
	mock.Mock
}

func (m *mockIdempotencyStore) Get(ctx context.Context, key string) ([]byte, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *mockIdempotencyStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return m.Called(ctx, key, value, ttl).Error(0)
}

func (m *mockIdempotencyStore) Delete(ctx context.Context, key string) error {
	return m.Called(ctx, key).Error(0)
}

// fakeMailer records sent messages for assertions.
type fakeMailer struct {
	mu   sync.Mutex
	sent []mail.Message
}

func (f *fakeMailer) Send(msg mail.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, msg)
	return nil
}

func (f *fakeMailer) messages() []mail.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]mail.Message(nil), f.sent...)
}
