package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jizusun/OpenBookCorner/internal/apperrors"
	"github.com/jizusun/OpenBookCorner/internal/model"
	"github.com/jizusun/OpenBookCorner/internal/notify"
	"github.com/jizusun/OpenBookCorner/internal/store"
)

// NotificationService persists in-app notifications and pushes them to
// connected clients.
type NotificationService struct {
	notifications store.NotificationStore
	hub           *notify.Hub
	logger        *zap.Logger
}

// NewNotificationService creates a new notification service.
func NewNotificationService(
	notifications store.NotificationStore,
	hub *notify.Hub,
	logger *zap.Logger,
) *NotificationService {
	return &NotificationService{
		notifications: notifications,
		hub:           hub,
		logger:        logger,
	}
}

// Notify stores a notification and pushes it live if the user is connected.
// Notification failures never fail the operation that triggered them; they
// are logged and dropped.
func (s *NotificationService) Notify(ctx context.Context, libraryID, userID, message string) {
	n := &model.Notification{
		ID:        uuid.New().String(),
		LibraryID: libraryID,
		UserID:    userID,
		Message:   message,
		CreatedAt: time.Now(),
	}

	if err := s.notifications.CreateNotification(ctx, n); err != nil {
		s.logger.Warn("failed to store notification",
			zap.String("user_id", userID),
			zap.Error(err))
		return
	}

	s.hub.Push(userID, notify.Event{
		Message:   message,
		LibraryID: libraryID,
		CreatedAt: n.CreatedAt.Format(time.RFC3339),
	})
}

// List returns a user's notifications.
func (s *NotificationService) List(ctx context.Context, libraryID, userID string, unreadOnly bool) ([]*model.Notification, error) {
	notifications, err := s.notifications.ListNotifications(ctx, libraryID, userID, unreadOnly)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	return notifications, nil
}

// MarkRead acknowledges a notification.
func (s *NotificationService) MarkRead(ctx context.Context, libraryID, userID, notificationID string) error {
	err := s.notifications.MarkNotificationRead(ctx, libraryID, userID, notificationID, time.Now())
	if errors.Is(err, store.ErrNotFound) {
		return apperrors.New(apperrors.CodeNotFound, "notification not found")
	}
	if err != nil {
		return fmt.Errorf("failed to mark notification read: %w", err)
	}
	return nil
}
