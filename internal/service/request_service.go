package service

import (
	"context"
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

// RequestService manages book acquisition requests.
type RequestService struct {
	requests      store.RequestStore
	users         store.UserStore
	books         *BookService
	notifications *NotificationService
	mailer        appmail.Sender
	logger        *zap.Logger
}

// NewRequestService creates a new request service.
func NewRequestService(
	requests store.RequestStore,
	users store.UserStore,
	books *BookService,
	notifications *NotificationService,
	mailer appmail.Sender,
	logger *zap.Logger,
) *RequestService {
	return &RequestService{
		requests:      requests,
		users:         users,
		books:         books,
		notifications: notifications,
		mailer:        mailer,
		logger:        logger,
	}
}

// Create records a reader's request for a title.
func (s *RequestService) Create(ctx context.Context, libraryID, userID, title, author, isbn, note string) (*model.BookRequest, error) {
	if title == "" {
		return nil, apperrors.New(apperrors.CodeInvalidRequest, "title is required")
	}

	req := &model.BookRequest{
		ID:        uuid.New().String(),
		LibraryID: libraryID,
		UserID:    userID,
		Title:     title,
		Author:    author,
		ISBN:      isbn,
		Note:      note,
		Status:    model.RequestStatusPending,
		CreatedAt: time.Now(),
	}

	if err := s.requests.CreateRequest(ctx, req); err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	s.logger.Info("book request created",
		zap.String("library_id", libraryID),
		zap.String("request_id", req.ID),
		zap.String("title", title))

	return req, nil
}

// List returns requests in a library, optionally filtered by status.
func (s *RequestService) List(ctx context.Context, libraryID string, status model.RequestStatus) ([]*model.BookRequest, error) {
	requests, err := s.requests.ListRequests(ctx, libraryID, status)
	if err != nil {
		return nil, fmt.Errorf("failed to list requests: %w", err)
	}
	return requests, nil
}

// Decide approves or rejects a pending request. Approval adds the title to
// the catalog and notifies the requester either way.
func (s *RequestService) Decide(ctx context.Context, libraryID, requestID string, approve bool) (*model.BookRequest, error) {
	req, err := s.requests.GetRequest(ctx, libraryID, requestID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperrors.New(apperrors.CodeNotFound, "request not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load request: %w", err)
	}

	if req.Status != model.RequestStatusPending {
		return nil, apperrors.New(apperrors.CodeConflict, "request is already decided")
	}

	status := model.RequestStatusRejected
	if approve {
		status = model.RequestStatusApproved
	}

	now := time.Now()
	if err := s.requests.DecideRequest(ctx, libraryID, requestID, status, now); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperrors.New(apperrors.CodeConflict, "request is already decided")
		}
		return nil, fmt.Errorf("failed to decide request: %w", err)
	}

	req.Status = status
	req.DecidedAt = &now

	if approve {
		if _, err := s.books.AddBook(ctx, libraryID, req.ISBN, req.Title, req.Author, 1); err != nil {
			s.logger.Error("approved request but failed to add book",
				zap.String("request_id", requestID),
				zap.Error(err))
		}
	}

	s.logger.Info("book request decided",
		zap.String("library_id", libraryID),
		zap.String("request_id", requestID),
		zap.String("status", string(status)))

	s.notifyRequester(ctx, req)

	return req, nil
}

func (s *RequestService) notifyRequester(ctx context.Context, req *model.BookRequest) {
	s.notifications.Notify(ctx, req.LibraryID, req.UserID,
		fmt.Sprintf("Your request for %q was %s", req.Title, req.Status))

	user, err := s.users.GetUser(ctx, req.UserID)
	if err != nil {
		s.logger.Warn("failed to load requester", zap.Error(err))
		return
	}

	if err := s.mailer.Send(appmail.Decision(user.Email, "request", req.Title, string(req.Status))); err != nil {
		s.logger.Warn("failed to send decision mail", zap.Error(err))
	}
}
