package model

import "time"

// Book is a catalog entry for one title within a library. Quantity counts
// owned copies, Available counts copies currently on the shelf.
type Book struct {
	ID        string    `json:"id"`
	LibraryID string    `json:"library_id"`
	ISBN      string    `json:"isbn"`
	Title     string    `json:"title"`
	Author    string    `json:"author"`
	Quantity  int       `json:"quantity"`
	Available int       `json:"available"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
