package repository

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/bookledger/backend/internal/models"
)

func (t *pgTx) LockLoan(ctx context.Context, userID, bookID int64) (*models.Loan, error) {
	var loan models.Loan
	err := t.tx.GetContext(ctx, &loan, `
		SELECT id, user_id, book_id, borrow_count, created_at, updated_at
		FROM loans
		WHERE user_id = $1 AND book_id = $2
		FOR UPDATE`, userID, bookID)
	if err != nil {
		return nil, notFound(err)
	}
	return &loan, nil
}

// LoanValue sums the borrowing price of every copy the user holds; that is
// what returning them all would credit.
func (t *pgTx) LoanValue(ctx context.Context, userID int64) (decimal.Decimal, error) {
	var value decimal.Decimal
	err := t.tx.GetContext(ctx, &value, `
		SELECT COALESCE(SUM(l.borrow_count * b.borrowing_price), 0)
		FROM loans l
		JOIN books b ON b.id = l.book_id
		WHERE l.user_id = $1`, userID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("loan value of user %d: %w", userID, err)
	}
	return value, nil
}

func (t *pgTx) InsertLoan(ctx context.Context, userID, bookID int64) (*models.Loan, error) {
	var loan models.Loan
	err := t.tx.GetContext(ctx, &loan, `
		INSERT INTO loans (user_id, book_id, borrow_count)
		VALUES ($1, $2, 1)
		RETURNING id, user_id, book_id, borrow_count, created_at, updated_at`, userID, bookID)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, fmt.Errorf("insert loan: %w", err)
	}
	return &loan, nil
}

func (t *pgTx) SetLoanCount(ctx context.Context, loanID int64, count int) error {
	res, err := t.tx.ExecContext(ctx, `
		UPDATE loans
		SET borrow_count = $1, updated_at = NOW()
		WHERE id = $2`, count, loanID)
	if err := expectOneRow(res, err); err != nil {
		return fmt.Errorf("update loan %d: %w", loanID, err)
	}
	return nil
}

func (t *pgTx) DeleteLoan(ctx context.Context, loanID int64) error {
	res, err := t.tx.ExecContext(ctx, `DELETE FROM loans WHERE id = $1`, loanID)
	if err := expectOneRow(res, err); err != nil {
		return fmt.Errorf("delete loan %d: %w", loanID, err)
	}
	return nil
}

// ListLoans returns the active loans of a user with their book titles.
func (s *Store) ListLoans(ctx context.Context, userID int64) ([]models.Loan, error) {
	loans := []models.Loan{}
	err := s.db.SelectContext(ctx, &loans, `
		SELECT l.id, l.user_id, l.book_id, l.borrow_count, l.created_at, l.updated_at, b.title AS book_title
		FROM loans l
		JOIN books b ON b.id = l.book_id
		WHERE l.user_id = $1
		ORDER BY l.created_at, l.id`, userID)
	if err != nil {
		return nil, fmt.Errorf("list loans: %w", err)
	}
	return loans, nil
}
