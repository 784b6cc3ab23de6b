package store

import (
	"context"
	"time"

	"github.com/jizusun/OpenBookCorner/internal/model"
)

// CreateNotification records an in-app notification.
func (s *PostgresStore) CreateNotification(ctx context.Context, n *model.Notification) error {
	query := `
		INSERT INTO notifications (id, library_id, user_id, message, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := s.pool.Exec(ctx, query, n.ID, n.LibraryID, n.UserID, n.Message, n.CreatedAt)
	return err
}

// ListNotifications lists a user's notifications, newest first.
func (s *PostgresStore) ListNotifications(ctx context.Context, libraryID, userID string, unreadOnly bool) ([]*model.Notification, error) {
	query := `
		SELECT id, library_id, user_id, message, read_at, created_at
		FROM notifications
		WHERE library_id = $1 AND user_id = $2 AND ($3 = false OR read_at IS NULL)
		ORDER BY created_at DESC
		LIMIT 100
	`

	rows, err := s.pool.Query(ctx, query, libraryID, userID, unreadOnly)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	notifications := make([]*model.Notification, 0)
	for rows.Next() {
		var n model.Notification
		if err := rows.Scan(&n.ID, &n.LibraryID, &n.UserID, &n.Message, &n.ReadAt, &n.CreatedAt); err != nil {
			return nil, err
		}
		notifications = append(notifications, &n)
	}

	return notifications, rows.Err()
}

// MarkNotificationRead sets read_at on an unread notification owned by the
// user.
func (s *PostgresStore) MarkNotificationRead(ctx context.Context, libraryID, userID, notificationID string, at time.Time) error {
	query := `
		UPDATE notifications
		SET read_at = $4
		WHERE library_id = $1 AND user_id = $2 AND id = $3 AND read_at IS NULL
	`

	result, err := s.pool.Exec(ctx, query, libraryID, userID, notificationID, at)
	if err != nil {
		return err
	}

	if result.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}
