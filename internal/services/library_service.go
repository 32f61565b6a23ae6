package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bookledger/backend/internal/audit"
	"github.com/bookledger/backend/internal/models"
	"github.com/bookledger/backend/internal/repository"
)

// maxAmount bounds deposits and balances to what NUMERIC(10,2) can hold.
var maxAmount = decimal.New(1, 8)

// LedgerStore is the persistence the library service needs.
type LedgerStore interface {
	WithTx(ctx context.Context, fn func(tx repository.Tx) error) error

	GetAccount(ctx context.Context, userID int64) (*models.Account, error)
	ListDeposits(ctx context.Context, accountID int64) ([]models.Deposit, error)
	ListLoans(ctx context.Context, userID int64) ([]models.Loan, error)

	GetBook(ctx context.Context, bookID int64) (*models.Book, error)
	ListBooks(ctx context.Context, filter models.BookFilter) ([]models.Book, error)
	ListCategories(ctx context.Context) ([]models.Category, error)

	ListRatings(ctx context.Context, bookID int64) ([]models.Rating, error)
	UpsertRating(ctx context.Context, rating *models.Rating) error
}

// Publisher hands a notification off for asynchronous delivery.
type Publisher interface {
	Publish(ctx context.Context, n models.Notification) error
}

type DepositResult struct {
	Deposit models.Deposit  `json:"deposit"`
	Balance decimal.Decimal `json:"balance"`
}

// LoanResult describes the state after a borrow or return. BorrowCount is 0
// once the last copy held by the user has been returned.
type LoanResult struct {
	Book        models.Book     `json:"book"`
	Price       decimal.Decimal `json:"price"`
	Balance     decimal.Decimal `json:"balance"`
	BorrowCount int             `json:"borrow_count"`
}

type BookDetails struct {
	Book    models.Book     `json:"book"`
	Ratings []models.Rating `json:"ratings"`
}

type LibraryService struct {
	store          LedgerStore
	publisher      Publisher
	audit          *audit.AuditLogger
	publishTimeout time.Duration
}

func NewLibraryService(store LedgerStore, publisher Publisher, auditLogger *audit.AuditLogger, publishTimeout time.Duration) *LibraryService {
	if auditLogger == nil {
		auditLogger = audit.NewAuditLogger(nil)
	}
	if publishTimeout <= 0 {
		publishTimeout = 2 * time.Second
	}
	return &LibraryService{
		store:          store,
		publisher:      publisher,
		audit:          auditLogger,
		publishTimeout: publishTimeout,
	}
}

// ValidateAmount accepts positive amounts with at most two decimal places.
func ValidateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() || !amount.Equal(amount.Round(2)) || amount.GreaterThanOrEqual(maxAmount) {
		return ErrInvalidAmount
	}
	return nil
}

// Deposit credits the user's account and appends a ledger entry. The new
// balance plus the value of books on loan stays below maxAmount.
func (s *LibraryService) Deposit(ctx context.Context, userID int64, amount decimal.Decimal) (*DepositResult, error) {
	if err := ValidateAmount(amount); err != nil {
		return nil, err
	}

	var (
		result  DepositResult
		account *models.Account
	)
	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		acc, err := tx.LockAccount(ctx, userID)
		if err != nil {
			return mapNotFound(err, ErrAccountNotFound)
		}

		// Returning every held copy must still fit the balance column.
		onLoan, err := tx.LoanValue(ctx, userID)
		if err != nil {
			return err
		}
		balance := acc.Balance.Add(amount)
		if balance.Add(onLoan).GreaterThanOrEqual(maxAmount) {
			return ErrInvalidAmount
		}
		if err := tx.SetAccountBalance(ctx, acc.ID, balance); err != nil {
			return err
		}

		deposit, err := tx.InsertDeposit(ctx, acc.ID, amount)
		if err != nil {
			return err
		}

		account = acc
		result = DepositResult{Deposit: *deposit, Balance: balance}
		return nil
	})
	if err != nil {
		s.audit.LogError("deposit", userID, 0, err)
		return nil, err
	}

	s.audit.LogDeposit(userID, amount, result.Balance)
	s.notify(ctx, account, models.TemplateDeposit, "Deposit", map[string]string{
		"amount":  amount.StringFixed(2),
		"balance": result.Balance.StringFixed(2),
	})
	return &result, nil
}

// Borrow charges the borrowing price and takes one copy off the shelf.
// Stock is checked before funds.
func (s *LibraryService) Borrow(ctx context.Context, userID, bookID int64) (*LoanResult, error) {
	var (
		result  LoanResult
		account *models.Account
	)
	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		acc, book, err := lockAccountAndBook(ctx, tx, userID, bookID)
		if err != nil {
			return err
		}

		if !book.IsAvailable() {
			return ErrOutOfStock
		}
		price := book.Price()
		if !acc.CanAfford(price) {
			return ErrInsufficientFunds
		}

		balance := acc.Balance.Sub(price)
		if err := tx.SetAccountBalance(ctx, acc.ID, balance); err != nil {
			return err
		}
		book.AvailableCopies--
		if err := tx.SetAvailableCopies(ctx, book.ID, book.AvailableCopies); err != nil {
			return err
		}

		count, err := upsertLoan(ctx, tx, userID, bookID)
		if err != nil {
			return err
		}

		account = acc
		result = LoanResult{Book: *book, Price: price, Balance: balance, BorrowCount: count}
		return nil
	})
	if err != nil {
		s.audit.LogError("borrow", userID, bookID, err)
		return nil, err
	}

	s.audit.LogLoan(audit.EventBorrow, userID, bookID, result.Price.Neg(), result.Balance, result.BorrowCount)
	s.notify(ctx, account, models.TemplateBorrow, "Borrow", loanFields(&result))
	return &result, nil
}

// Return refunds the borrowing price and puts one copy back. The loan is
// checked before anything is credited.
func (s *LibraryService) Return(ctx context.Context, userID, bookID int64) (*LoanResult, error) {
	var (
		result  LoanResult
		account *models.Account
	)
	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		acc, book, err := lockAccountAndBook(ctx, tx, userID, bookID)
		if err != nil {
			return err
		}

		loan, err := tx.LockLoan(ctx, userID, bookID)
		if err != nil {
			return mapNotFound(err, ErrNoActiveLoan)
		}

		price := book.Price()
		balance := acc.Balance.Add(price)
		if err := tx.SetAccountBalance(ctx, acc.ID, balance); err != nil {
			return err
		}
		book.AvailableCopies++
		if err := tx.SetAvailableCopies(ctx, book.ID, book.AvailableCopies); err != nil {
			return err
		}

		count := loan.BorrowCount - 1
		if count > 0 {
			err = tx.SetLoanCount(ctx, loan.ID, count)
		} else {
			count = 0
			err = tx.DeleteLoan(ctx, loan.ID)
		}
		if err != nil {
			return err
		}

		account = acc
		result = LoanResult{Book: *book, Price: price, Balance: balance, BorrowCount: count}
		return nil
	})
	if err != nil {
		s.audit.LogError("return", userID, bookID, err)
		return nil, err
	}

	s.audit.LogLoan(audit.EventReturn, userID, bookID, result.Price, result.Balance, result.BorrowCount)
	s.notify(ctx, account, models.TemplateReturn, "Return", loanFields(&result))
	return &result, nil
}

// Rate records the user's rating of a book, replacing any earlier one.
func (s *LibraryService) Rate(ctx context.Context, userID, bookID int64, rate string) (*models.Rating, error) {
	r := models.Rate(rate)
	if !r.Valid() {
		return nil, ErrInvalidRating
	}

	if _, err := s.store.GetBook(ctx, bookID); err != nil {
		return nil, mapNotFound(err, ErrBookNotFound)
	}

	rating := &models.Rating{UserID: userID, BookID: bookID, Rate: r}
	if err := s.store.UpsertRating(ctx, rating); err != nil {
		s.audit.LogError("rate", userID, bookID, err)
		return nil, err
	}

	s.audit.LogRating(userID, bookID, rate)
	return rating, nil
}

func (s *LibraryService) BookDetails(ctx context.Context, bookID int64) (*BookDetails, error) {
	book, err := s.store.GetBook(ctx, bookID)
	if err != nil {
		return nil, mapNotFound(err, ErrBookNotFound)
	}
	ratings, err := s.store.ListRatings(ctx, bookID)
	if err != nil {
		return nil, err
	}
	return &BookDetails{Book: *book, Ratings: ratings}, nil
}

func (s *LibraryService) ListBooks(ctx context.Context, filter models.BookFilter) ([]models.Book, error) {
	return s.store.ListBooks(ctx, filter)
}

func (s *LibraryService) ListCategories(ctx context.Context) ([]models.Category, error) {
	return s.store.ListCategories(ctx)
}

func (s *LibraryService) GetAccount(ctx context.Context, userID int64) (*models.Account, error) {
	account, err := s.store.GetAccount(ctx, userID)
	if err != nil {
		return nil, mapNotFound(err, ErrAccountNotFound)
	}
	return account, nil
}

// ListDeposits returns the user's deposit history, newest first.
func (s *LibraryService) ListDeposits(ctx context.Context, userID int64) ([]models.Deposit, error) {
	account, err := s.GetAccount(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.store.ListDeposits(ctx, account.ID)
}

func (s *LibraryService) ListLoans(ctx context.Context, userID int64) ([]models.Loan, error) {
	return s.store.ListLoans(ctx, userID)
}

// lockAccountAndBook takes the row locks in account, book order.
func lockAccountAndBook(ctx context.Context, tx repository.Tx, userID, bookID int64) (*models.Account, *models.Book, error) {
	acc, err := tx.LockAccount(ctx, userID)
	if err != nil {
		return nil, nil, mapNotFound(err, ErrAccountNotFound)
	}
	book, err := tx.LockBook(ctx, bookID)
	if err != nil {
		return nil, nil, mapNotFound(err, ErrBookNotFound)
	}
	return acc, book, nil
}

func upsertLoan(ctx context.Context, tx repository.Tx, userID, bookID int64) (int, error) {
	loan, err := tx.LockLoan(ctx, userID, bookID)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		created, err := tx.InsertLoan(ctx, userID, bookID)
		if err != nil {
			return 0, err
		}
		return created.BorrowCount, nil
	case err != nil:
		return 0, err
	}

	count := loan.BorrowCount + 1
	if err := tx.SetLoanCount(ctx, loan.ID, count); err != nil {
		return 0, err
	}
	return count, nil
}

func mapNotFound(err, domainErr error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return domainErr
	}
	return err
}

func loanFields(result *LoanResult) map[string]string {
	return map[string]string{
		"price":   result.Price.StringFixed(2),
		"balance": result.Balance.StringFixed(2),
		"book":    result.Book.Title,
	}
}

// notify publishes after commit. Failures are logged and never surface to
// the caller.
func (s *LibraryService) notify(ctx context.Context, account *models.Account, template, subject string, fields map[string]string) {
	if s.publisher == nil || account == nil || account.Email == "" {
		return
	}
	fields["user"] = account.Username

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.publishTimeout)
	defer cancel()

	n := models.Notification{
		Recipient: account.Email,
		Template:  template,
		Subject:   subject,
		Fields:    fields,
	}
	if err := s.publisher.Publish(ctx, n); err != nil {
		slog.Warn("notification publish failed",
			"template", template,
			"user_id", account.UserID,
			"error", fmt.Errorf("publish %s: %w", template, err))
	}
}
