// Package repository is the PostgreSQL persistence layer for accounts,
// books, loans, ratings and deposits.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/bookledger/backend/internal/models"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("record already exists")
)

const (
	pqSerializationFailure = "40001"
	pqDeadlockDetected     = "40P01"
	pqUniqueViolation      = "23505"
)

// Tx is the set of row-locking reads and writes available inside a ledger
// transaction. Locks are held until the transaction ends; callers lock the
// account row before the book row and the book row before the loan row.
type Tx interface {
	LockAccount(ctx context.Context, userID int64) (*models.Account, error)
	LockBook(ctx context.Context, bookID int64) (*models.Book, error)
	LockLoan(ctx context.Context, userID, bookID int64) (*models.Loan, error)
	LoanValue(ctx context.Context, userID int64) (decimal.Decimal, error)

	SetAccountBalance(ctx context.Context, accountID int64, balance decimal.Decimal) error
	SetAvailableCopies(ctx context.Context, bookID int64, copies int) error
	InsertDeposit(ctx context.Context, accountID int64, amount decimal.Decimal) (*models.Deposit, error)
	InsertLoan(ctx context.Context, userID, bookID int64) (*models.Loan, error)
	SetLoanCount(ctx context.Context, loanID int64, count int) error
	DeleteLoan(ctx context.Context, loanID int64) error

	CreateUser(ctx context.Context, user *models.User) error
	CreateAccount(ctx context.Context, userID int64) (*models.Account, error)
	CreateCategory(ctx context.Context, category *models.Category) error
	CreateBook(ctx context.Context, book *models.Book) error
}

type Store struct {
	db         *sqlx.DB
	maxRetries int
}

func NewStore(db *sqlx.DB, maxRetries int) *Store {
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &Store{db: db, maxRetries: maxRetries}
}

// WithTx runs fn inside a transaction and commits when fn returns nil.
// Serialization failures and deadlocks are retried up to maxRetries times;
// any other error rolls back and is returned unchanged.
func (s *Store) WithTx(ctx context.Context, fn func(tx Tx) error) error {
	var err error
	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		err = s.runTx(ctx, fn)
		if err == nil || !isRetryable(err) {
			return err
		}
		slog.Warn("retrying ledger transaction", "attempt", attempt+1, "error", err)
	}
	return err
}

func (s *Store) runTx(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&pgTx{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func isRetryable(err error) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	return pqErr.Code == pqSerializationFailure || pqErr.Code == pqDeadlockDetected
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// pgTx implements Tx over a sqlx transaction.
type pgTx struct {
	tx *sqlx.Tx
}

func expectOneRow(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
