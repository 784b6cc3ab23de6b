package model

import "time"

// RequestStatus is the lifecycle state of a book request.
type RequestStatus string

const (
	RequestStatusPending  RequestStatus = "pending"
	RequestStatusApproved RequestStatus = "approved"
	RequestStatusRejected RequestStatus = "rejected"
)

// BookRequest is a reader asking the library to acquire a title.
type BookRequest struct {
	ID        string        `json:"id"`
	LibraryID string        `json:"library_id"`
	UserID    string        `json:"user_id"`
	Title     string        `json:"title"`
	Author    string        `json:"author"`
	ISBN      string        `json:"isbn"`
	Note      string        `json:"note"`
	Status    RequestStatus `json:"status"`
	CreatedAt time.Time     `json:"created_at"`
	DecidedAt *time.Time    `json:"decided_at,omitempty"`
}
