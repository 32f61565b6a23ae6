package repository

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/bookledger/backend/internal/models"
)

const selectAccount = `
	SELECT a.id, a.user_id, a.balance, a.updated_at, u.username, u.email
	FROM accounts a
	JOIN users u ON u.id = a.user_id
	WHERE a.user_id = $1`

func (t *pgTx) LockAccount(ctx context.Context, userID int64) (*models.Account, error) {
	var account models.Account
	if err := t.tx.GetContext(ctx, &account, selectAccount+` FOR UPDATE OF a`, userID); err != nil {
		return nil, notFound(err)
	}
	return &account, nil
}

func (t *pgTx) SetAccountBalance(ctx context.Context, accountID int64, balance decimal.Decimal) error {
	res, err := t.tx.ExecContext(ctx, `
		UPDATE accounts
		SET balance = $1, updated_at = NOW()
		WHERE id = $2`, balance, accountID)
	if err := expectOneRow(res, err); err != nil {
		return fmt.Errorf("update balance of account %d: %w", accountID, err)
	}
	return nil
}

func (t *pgTx) InsertDeposit(ctx context.Context, accountID int64, amount decimal.Decimal) (*models.Deposit, error) {
	var deposit models.Deposit
	err := t.tx.GetContext(ctx, &deposit, `
		INSERT INTO deposits (account_id, amount)
		VALUES ($1, $2)
		RETURNING id, account_id, amount, created_at`, accountID, amount)
	if err != nil {
		return nil, fmt.Errorf("insert deposit: %w", err)
	}
	return &deposit, nil
}

func (t *pgTx) CreateAccount(ctx context.Context, userID int64) (*models.Account, error) {
	var account models.Account
	err := t.tx.GetContext(ctx, &account, `
		INSERT INTO accounts (user_id, balance)
		VALUES ($1, 0)
		RETURNING id, user_id, balance, updated_at`, userID)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, fmt.Errorf("insert account: %w", err)
	}
	return &account, nil
}

// GetAccount reads the account of a user without locking it.
func (s *Store) GetAccount(ctx context.Context, userID int64) (*models.Account, error) {
	var account models.Account
	if err := s.db.GetContext(ctx, &account, selectAccount, userID); err != nil {
		return nil, notFound(err)
	}
	return &account, nil
}

// ListDeposits returns the deposit ledger of an account, newest first.
func (s *Store) ListDeposits(ctx context.Context, accountID int64) ([]models.Deposit, error) {
	deposits := []models.Deposit{}
	err := s.db.SelectContext(ctx, &deposits, `
		SELECT id, account_id, amount, created_at
		FROM deposits
		WHERE account_id = $1
		ORDER BY created_at DESC, id DESC`, accountID)
	if err != nil {
		return nil, fmt.Errorf("list deposits: %w", err)
	}
	return deposits, nil
}
