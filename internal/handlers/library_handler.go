package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/bookledger/backend/internal/middleware"
	"github.com/bookledger/backend/internal/models"
	"github.com/bookledger/backend/internal/services"
)

// Library is the ledger and catalog API served over HTTP.
type Library interface {
	Deposit(ctx context.Context, userID int64, amount decimal.Decimal) (*services.DepositResult, error)
	Borrow(ctx context.Context, userID, bookID int64) (*services.LoanResult, error)
	Return(ctx context.Context, userID, bookID int64) (*services.LoanResult, error)
	Rate(ctx context.Context, userID, bookID int64, rate string) (*models.Rating, error)

	BookDetails(ctx context.Context, bookID int64) (*services.BookDetails, error)
	ListBooks(ctx context.Context, filter models.BookFilter) ([]models.Book, error)
	ListCategories(ctx context.Context) ([]models.Category, error)

	GetAccount(ctx context.Context, userID int64) (*models.Account, error)
	ListDeposits(ctx context.Context, userID int64) ([]models.Deposit, error)
	ListLoans(ctx context.Context, userID int64) ([]models.Loan, error)
}

type LibraryHandler struct {
	library   Library
	validator *services.ValidationHelper
}

func NewLibraryHandler(library Library) *LibraryHandler {
	return &LibraryHandler{
		library:   library,
		validator: services.NewValidationHelper(),
	}
}

// DepositRequest carries the amount as a decimal string, e.g. "25.00".
type DepositRequest struct {
	Amount decimal.Decimal `json:"amount" swaggertype:"string" example:"25.00"`
}

type RatingRequest struct {
	Rate string `json:"rate" validate:"required" example:"Good"`
}

// PublicRoutes mounts the catalog endpoints that need no login.
func (h *LibraryHandler) PublicRoutes(r chi.Router) {
	r.Get("/books", h.ListBooks)
	r.Get("/books/{id}", h.Details)
	r.Get("/categories", h.ListCategories)
	r.Get("/details/{id}", h.Details)
}

// Routes mounts the ledger endpoints; the caller adds authentication.
func (h *LibraryHandler) Routes(r chi.Router) {
	r.Post("/deposit", h.Deposit)
	r.Post("/borrow/{id}", h.Borrow)
	r.Post("/return/{id}", h.Return)
	r.Post("/rating/{id}", h.Rate)
	r.Get("/account", h.Account)
	r.Get("/account/deposits", h.Deposits)
	r.Get("/loans", h.Loans)
}

// Deposit credits the caller's account
// @Summary Deposit funds
// @Description Add funds to the authenticated user's account
// @Tags ledger
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body DepositRequest true "Deposit request"
// @Success 200 {object} services.DepositResult
// @Failure 400 {object} services.ErrorResponse
// @Failure 401 {object} services.ErrorResponse
// @Router /deposit [post]
func (h *LibraryHandler) Deposit(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req DepositRequest
	if !h.validator.DecodeJSON(w, r, &req) {
		return
	}

	result, err := h.library.Deposit(r.Context(), userID, req.Amount)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	services.SendJSON(w, http.StatusOK, result)
}

// Borrow takes one copy of a book
// @Summary Borrow a book
// @Description Charge the borrowing price and take one copy
// @Tags ledger
// @Produce json
// @Security BearerAuth
// @Param id path int true "Book ID"
// @Success 200 {object} services.LoanResult
// @Failure 404 {object} services.ErrorResponse
// @Failure 409 {object} services.ErrorResponse "OUT_OF_STOCK or INSUFFICIENT_FUNDS"
// @Router /borrow/{id} [post]
func (h *LibraryHandler) Borrow(w http.ResponseWriter, r *http.Request) {
	h.loanAction(w, r, h.library.Borrow)
}

// Return gives one borrowed copy back
// @Summary Return a book
// @Description Refund the borrowing price and put one copy back
// @Tags ledger
// @Produce json
// @Security BearerAuth
// @Param id path int true "Book ID"
// @Success 200 {object} services.LoanResult
// @Failure 404 {object} services.ErrorResponse "NO_ACTIVE_LOAN or BOOK_NOT_FOUND"
// @Router /return/{id} [post]
func (h *LibraryHandler) Return(w http.ResponseWriter, r *http.Request) {
	h.loanAction(w, r, h.library.Return)
}

func (h *LibraryHandler) loanAction(w http.ResponseWriter, r *http.Request, action func(context.Context, int64, int64) (*services.LoanResult, error)) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	bookID, ok := bookIDParam(w, r)
	if !ok {
		return
	}

	result, err := action(r.Context(), userID, bookID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	services.SendJSON(w, http.StatusOK, result)
}

// Rate records the caller's rating of a book
// @Summary Rate a book
// @Tags catalog
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Book ID"
// @Param request body RatingRequest true "Poor, Okay, Good, Excellent or Outstanding"
// @Success 200 {object} models.Rating
// @Failure 400 {object} services.ErrorResponse
// @Failure 404 {object} services.ErrorResponse
// @Router /rating/{id} [post]
func (h *LibraryHandler) Rate(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	bookID, ok := bookIDParam(w, r)
	if !ok {
		return
	}

	var req RatingRequest
	if !h.validator.DecodeJSON(w, r, &req) {
		return
	}

	rating, err := h.library.Rate(r.Context(), userID, bookID, req.Rate)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	services.SendJSON(w, http.StatusOK, rating)
}

// Details returns a book with its ratings
// @Summary Book details
// @Tags catalog
// @Produce json
// @Param id path int true "Book ID"
// @Success 200 {object} services.BookDetails
// @Failure 404 {object} services.ErrorResponse
// @Router /details/{id} [get]
func (h *LibraryHandler) Details(w http.ResponseWriter, r *http.Request) {
	bookID, ok := bookIDParam(w, r)
	if !ok {
		return
	}

	details, err := h.library.BookDetails(r.Context(), bookID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	services.SendJSON(w, http.StatusOK, details)
}

// ListBooks lists the catalog
// @Summary List books
// @Tags catalog
// @Produce json
// @Param category query string false "Category slug"
// @Param q query string false "Title search"
// @Success 200 {array} models.Book
// @Router /books [get]
func (h *LibraryHandler) ListBooks(w http.ResponseWriter, r *http.Request) {
	filter := models.BookFilter{
		CategorySlug: r.URL.Query().Get("category"),
		Query:        r.URL.Query().Get("q"),
	}

	books, err := h.library.ListBooks(r.Context(), filter)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	services.SendJSON(w, http.StatusOK, books)
}

// ListCategories lists the catalog categories
// @Summary List categories
// @Tags catalog
// @Produce json
// @Success 200 {array} models.Category
// @Router /categories [get]
func (h *LibraryHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.library.ListCategories(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	services.SendJSON(w, http.StatusOK, categories)
}

// Account returns the caller's balance
// @Summary Account balance
// @Tags ledger
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.Account
// @Router /account [get]
func (h *LibraryHandler) Account(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	account, err := h.library.GetAccount(r.Context(), userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	services.SendJSON(w, http.StatusOK, account)
}

// Deposits returns the caller's deposit history
// @Summary Deposit history
// @Tags ledger
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.Deposit
// @Router /account/deposits [get]
func (h *LibraryHandler) Deposits(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	deposits, err := h.library.ListDeposits(r.Context(), userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	services.SendJSON(w, http.StatusOK, deposits)
}

// Loans returns the caller's active loans
// @Summary Active loans
// @Tags ledger
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.Loan
// @Router /loans [get]
func (h *LibraryHandler) Loans(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	loans, err := h.library.ListLoans(r.Context(), userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	services.SendJSON(w, http.StatusOK, loans)
}

func requireUser(w http.ResponseWriter, r *http.Request) (int64, bool) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
	}
	return userID, ok
}

func bookIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		services.SendErrorResponse(w, "Invalid book id", http.StatusBadRequest, nil)
		return 0, false
	}
	return id, true
}

func statusFor(code services.ErrCode) int {
	switch code {
	case services.CodeInvalidAmount, services.CodeInvalidRating:
		return http.StatusBadRequest
	case services.CodeOutOfStock, services.CodeInsufficientFunds, services.CodeUsernameTaken:
		return http.StatusConflict
	case services.CodeNoActiveLoan, services.CodeBookNotFound, services.CodeAccountNotFound:
		return http.StatusNotFound
	case services.CodeInvalidCreds:
		return http.StatusUnauthorized
	}
	return http.StatusInternalServerError
}

func writeServiceError(w http.ResponseWriter, err error) {
	var libErr *services.LibraryError
	if errors.As(err, &libErr) {
		services.SendCodedError(w, libErr, statusFor(libErr.Code()))
		return
	}
	slog.Error("request failed", "error", err)
	services.SendErrorResponse(w, "An Internal Error Occurred", http.StatusInternalServerError, nil)
}
