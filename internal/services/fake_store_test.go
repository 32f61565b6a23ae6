package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bookledger/backend/internal/models"
	"github.com/bookledger/backend/internal/repository"
)

type loanKey struct{ userID, bookID int64 }

// fakeStore keeps the ledger in memory. WithTx holds one mutex for the whole
// transaction, which is at least as strict as row locks, and restores a
// snapshot when fn fails.
type fakeStore struct {
	mu sync.Mutex

	accounts map[int64]*models.Account
	books    map[int64]*models.Book
	loans    map[loanKey]*models.Loan
	ratings  map[loanKey]*models.Rating
	deposits []models.Deposit
	nextID   int64

	locks  []string
	failOn string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		accounts: map[int64]*models.Account{},
		books:    map[int64]*models.Book{},
		loans:    map[loanKey]*models.Loan{},
		ratings:  map[loanKey]*models.Rating{},
	}
}

func (s *fakeStore) addAccount(userID int64, balance string) {
	s.accounts[userID] = &models.Account{
		ID:       userID + 1000,
		UserID:   userID,
		Balance:  decimal.RequireFromString(balance),
		Username: "reader",
		Email:    "reader@example.com",
	}
}

func (s *fakeStore) addBook(bookID int64, title string, price, copies int) {
	s.books[bookID] = &models.Book{ID: bookID, Title: title, BorrowingPrice: price, AvailableCopies: copies}
}

func (s *fakeStore) balance(userID int64) decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accounts[userID].Balance
}

func (s *fakeStore) copies(bookID int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.books[bookID].AvailableCopies
}

func (s *fakeStore) loan(userID, bookID int64) *models.Loan {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loans[loanKey{userID, bookID}]
}

type fakeSnapshot struct {
	accounts map[int64]models.Account
	books    map[int64]models.Book
	loans    map[loanKey]models.Loan
	deposits int
}

func (s *fakeStore) snapshot() fakeSnapshot {
	snap := fakeSnapshot{
		accounts: map[int64]models.Account{},
		books:    map[int64]models.Book{},
		loans:    map[loanKey]models.Loan{},
		deposits: len(s.deposits),
	}
	for k, v := range s.accounts {
		snap.accounts[k] = *v
	}
	for k, v := range s.books {
		snap.books[k] = *v
	}
	for k, v := range s.loans {
		snap.loans[k] = *v
	}
	return snap
}

func (s *fakeStore) restore(snap fakeSnapshot) {
	s.accounts = map[int64]*models.Account{}
	for k, v := range snap.accounts {
		v := v
		s.accounts[k] = &v
	}
	s.books = map[int64]*models.Book{}
	for k, v := range snap.books {
		v := v
		s.books[k] = &v
	}
	s.loans = map[loanKey]*models.Loan{}
	for k, v := range snap.loans {
		v := v
		s.loans[k] = &v
	}
	s.deposits = s.deposits[:snap.deposits]
}

func (s *fakeStore) WithTx(ctx context.Context, fn func(tx repository.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.snapshot()
	if err := fn(&fakeTx{s: s}); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

func (s *fakeStore) GetAccount(ctx context.Context, userID int64) (*models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.accounts[userID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *acc
	return &cp, nil
}

func (s *fakeStore) ListDeposits(ctx context.Context, accountID int64) ([]models.Deposit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.Deposit{}
	for i := len(s.deposits) - 1; i >= 0; i-- {
		if s.deposits[i].AccountID == accountID {
			out = append(out, s.deposits[i])
		}
	}
	return out, nil
}

func (s *fakeStore) ListLoans(ctx context.Context, userID int64) ([]models.Loan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.Loan{}
	for k, v := range s.loans {
		if k.userID == userID {
			out = append(out, *v)
		}
	}
	return out, nil
}

func (s *fakeStore) GetBook(ctx context.Context, bookID int64) (*models.Book, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	book, ok := s.books[bookID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *book
	return &cp, nil
}

func (s *fakeStore) ListBooks(ctx context.Context, filter models.BookFilter) ([]models.Book, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.Book{}
	for _, b := range s.books {
		out = append(out, *b)
	}
	return out, nil
}

func (s *fakeStore) ListCategories(ctx context.Context) ([]models.Category, error) {
	return []models.Category{}, nil
}

func (s *fakeStore) ListRatings(ctx context.Context, bookID int64) ([]models.Rating, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.Rating{}
	for k, v := range s.ratings {
		if k.bookID == bookID {
			out = append(out, *v)
		}
	}
	return out, nil
}

func (s *fakeStore) UpsertRating(ctx context.Context, rating *models.Rating) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := loanKey{rating.UserID, rating.BookID}
	if existing, ok := s.ratings[key]; ok {
		existing.Rate = rating.Rate
		rating.ID = existing.ID
		return nil
	}
	s.nextID++
	rating.ID = s.nextID
	cp := *rating
	s.ratings[key] = &cp
	return nil
}

var errInjected = errors.New("injected store failure")

// fakeTx works on the store's maps directly; the caller holds s.mu.
type fakeTx struct {
	s *fakeStore
}

func (t *fakeTx) fail(op string) error {
	if t.s.failOn == op {
		return errInjected
	}
	return nil
}

func (t *fakeTx) LockAccount(ctx context.Context, userID int64) (*models.Account, error) {
	t.s.locks = append(t.s.locks, "account")
	acc, ok := t.s.accounts[userID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *acc
	return &cp, nil
}

func (t *fakeTx) LockBook(ctx context.Context, bookID int64) (*models.Book, error) {
	t.s.locks = append(t.s.locks, "book")
	book, ok := t.s.books[bookID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *book
	return &cp, nil
}

func (t *fakeTx) LockLoan(ctx context.Context, userID, bookID int64) (*models.Loan, error) {
	t.s.locks = append(t.s.locks, "loan")
	loan, ok := t.s.loans[loanKey{userID, bookID}]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *loan
	return &cp, nil
}

func (t *fakeTx) LoanValue(ctx context.Context, userID int64) (decimal.Decimal, error) {
	value := decimal.Zero
	for k, loan := range t.s.loans {
		if k.userID != userID {
			continue
		}
		book := t.s.books[k.bookID]
		value = value.Add(book.Price().Mul(decimal.NewFromInt(int64(loan.BorrowCount))))
	}
	return value, nil
}

func (t *fakeTx) SetAccountBalance(ctx context.Context, accountID int64, balance decimal.Decimal) error {
	if err := t.fail("SetAccountBalance"); err != nil {
		return err
	}
	for _, acc := range t.s.accounts {
		if acc.ID == accountID {
			acc.Balance = balance
			return nil
		}
	}
	return repository.ErrNotFound
}

func (t *fakeTx) SetAvailableCopies(ctx context.Context, bookID int64, copies int) error {
	if err := t.fail("SetAvailableCopies"); err != nil {
		return err
	}
	book, ok := t.s.books[bookID]
	if !ok {
		return repository.ErrNotFound
	}
	book.AvailableCopies = copies
	return nil
}

func (t *fakeTx) InsertDeposit(ctx context.Context, accountID int64, amount decimal.Decimal) (*models.Deposit, error) {
	if err := t.fail("InsertDeposit"); err != nil {
		return nil, err
	}
	t.s.nextID++
	d := models.Deposit{ID: t.s.nextID, AccountID: accountID, Amount: amount, CreatedAt: time.Now()}
	t.s.deposits = append(t.s.deposits, d)
	return &d, nil
}

func (t *fakeTx) InsertLoan(ctx context.Context, userID, bookID int64) (*models.Loan, error) {
	if err := t.fail("InsertLoan"); err != nil {
		return nil, err
	}
	t.s.nextID++
	loan := &models.Loan{ID: t.s.nextID, UserID: userID, BookID: bookID, BorrowCount: 1, CreatedAt: time.Now()}
	t.s.loans[loanKey{userID, bookID}] = loan
	cp := *loan
	return &cp, nil
}

func (t *fakeTx) SetLoanCount(ctx context.Context, loanID int64, count int) error {
	if err := t.fail("SetLoanCount"); err != nil {
		return err
	}
	for _, loan := range t.s.loans {
		if loan.ID == loanID {
			loan.BorrowCount = count
			return nil
		}
	}
	return repository.ErrNotFound
}

func (t *fakeTx) DeleteLoan(ctx context.Context, loanID int64) error {
	if err := t.fail("DeleteLoan"); err != nil {
		return err
	}
	for k, loan := range t.s.loans {
		if loan.ID == loanID {
			delete(t.s.loans, k)
			return nil
		}
	}
	return repository.ErrNotFound
}

func (t *fakeTx) CreateUser(ctx context.Context, user *models.User) error {
	for _, acc := range t.s.accounts {
		if acc.Username == user.Username {
			return repository.ErrDuplicate
		}
	}
	t.s.nextID++
	user.ID = t.s.nextID
	return nil
}

func (t *fakeTx) CreateAccount(ctx context.Context, userID int64) (*models.Account, error) {
	t.s.accounts[userID] = &models.Account{ID: userID + 1000, UserID: userID, Balance: decimal.Zero}
	cp := *t.s.accounts[userID]
	return &cp, nil
}

func (t *fakeTx) CreateCategory(ctx context.Context, category *models.Category) error {
	t.s.nextID++
	category.ID = t.s.nextID
	return nil
}

func (t *fakeTx) CreateBook(ctx context.Context, book *models.Book) error {
	t.s.nextID++
	book.ID = t.s.nextID
	cp := *book
	t.s.books[book.ID] = &cp
	return nil
}
