package model

import "time"

// DonationStatus is the lifecycle state of a donation offer.
type DonationStatus string

const (
	DonationStatusOffered  DonationStatus = "offered"
	DonationStatusAccepted DonationStatus = "accepted"
	DonationStatusDeclined DonationStatus = "declined"
)

// BookDonation is a member offering a copy to the library. Acceptance adds
// the copy to the catalog.
type BookDonation struct {
	ID        string         `json:"id"`
	LibraryID string         `json:"library_id"`
	UserID    string         `json:"user_id"`
	Title     string         `json:"title"`
	Author    string         `json:"author"`
	ISBN      string         `json:"isbn"`
	Status    DonationStatus `json:"status"`
	CreatedAt time.Time      `json:"created_at"`
	DecidedAt *time.Time     `json:"decided_at,omitempty"`
}
