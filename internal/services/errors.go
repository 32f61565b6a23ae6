package services

import "errors"

type ErrCode string

const (
	CodeInvalidAmount     ErrCode = "INVALID_AMOUNT"
	CodeInvalidRating     ErrCode = "INVALID_RATING"
	CodeOutOfStock        ErrCode = "OUT_OF_STOCK"
	CodeInsufficientFunds ErrCode = "INSUFFICIENT_FUNDS"
	CodeNoActiveLoan      ErrCode = "NO_ACTIVE_LOAN"
	CodeBookNotFound      ErrCode = "BOOK_NOT_FOUND"
	CodeAccountNotFound   ErrCode = "ACCOUNT_NOT_FOUND"
	CodeUsernameTaken     ErrCode = "USERNAME_TAKEN"
	CodeInvalidCreds      ErrCode = "INVALID_CREDENTIALS"
)

// LibraryError is a per-request failure whose message is safe to show to
// the caller. Nothing is persisted when one is returned.
type LibraryError struct {
	code    ErrCode
	message string
}

func (e *LibraryError) Error() string { return e.message }
func (e *LibraryError) Code() ErrCode { return e.code }

var (
	ErrInvalidAmount     = &LibraryError{CodeInvalidAmount, "Amount must be positive with at most two decimal places"}
	ErrInvalidRating     = &LibraryError{CodeInvalidRating, "Rate must be one of Poor, Okay, Good, Excellent, Outstanding"}
	ErrOutOfStock        = &LibraryError{CodeOutOfStock, "No available copies for this book"}
	ErrInsufficientFunds = &LibraryError{CodeInsufficientFunds, "Insufficient balance"}
	ErrNoActiveLoan      = &LibraryError{CodeNoActiveLoan, "No borrow record found for this book"}
	ErrBookNotFound      = &LibraryError{CodeBookNotFound, "Book not found"}
	ErrAccountNotFound   = &LibraryError{CodeAccountNotFound, "Account not found"}
	ErrUsernameTaken     = &LibraryError{CodeUsernameTaken, "Username already exists"}
	ErrInvalidCreds      = &LibraryError{CodeInvalidCreds, "Invalid credentials"}
)

// Code extracts the error code, or "" for infrastructure errors.
func Code(err error) ErrCode {
	var ce interface{ Code() ErrCode }
	if errors.As(err, &ce) {
		return ce.Code()
	}
	return ""
}
