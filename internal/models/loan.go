package models

import "time"

// Loan records that a user currently holds BorrowCount copies of a book.
// A loan with a count of zero is deleted rather than stored.
type Loan struct {
	ID          int64     `json:"id" db:"id"`
	UserID      int64     `json:"user_id" db:"user_id"`
	BookID      int64     `json:"book_id" db:"book_id"`
	BorrowCount int       `json:"borrow_count" db:"borrow_count"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`

	BookTitle string `json:"book_title,omitempty" db:"book_title"`
}
