package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Account holds the spendable balance of a single user.
type Account struct {
	ID        int64           `json:"id" db:"id"`
	UserID    int64           `json:"user_id" db:"user_id"`
	Balance   decimal.Decimal `json:"balance" db:"balance"`
	UpdatedAt time.Time       `json:"updated_at" db:"updated_at"`

	// Owner details joined from users, used for notifications.
	Username string `json:"username" db:"username"`
	Email    string `json:"email" db:"email"`
}

// CanAfford reports whether the balance covers price.
func (a *Account) CanAfford(price decimal.Decimal) bool {
	return a.Balance.GreaterThanOrEqual(price)
}

// Deposit is an append-only ledger entry. Rows are never updated.
type Deposit struct {
	ID        int64           `json:"id" db:"id"`
	AccountID int64           `json:"account_id" db:"account_id"`
	Amount    decimal.Decimal `json:"amount" db:"amount"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
}
