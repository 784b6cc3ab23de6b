package model

import "time"

// Notification is an in-app message for one user. ReadAt is nil until the
// user acknowledges it.
type Notification struct {
	ID        string     `json:"id"`
	LibraryID string     `json:"library_id"`
	UserID    string     `json:"user_id"`
	Message   string     `json:"message"`
	ReadAt    *time.Time `json:"read_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}
