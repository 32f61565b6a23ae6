// Package audit writes one structured record per ledger movement.
package audit

import (
	"log/slog"
	"strconv"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/shopspring/decimal"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	EventDeposit = "DEPOSIT"
	EventBorrow  = "BORROW"
	EventReturn  = "RETURN"
	EventRating  = "RATING"
	EventError   = "ERROR"
)

type AuditEvent struct {
	Timestamp time.Time         `json:"timestamp"`
	EventType string            `json:"event_type"`
	UserID    int64             `json:"user_id"`
	BookID    int64             `json:"book_id,omitempty"`
	Amount    string            `json:"amount,omitempty"`
	Balance   string            `json:"balance,omitempty"`
	Status    string            `json:"status"`
	Details   map[string]string `json:"details,omitempty"`
}

type AuditLogger struct {
	logger *slog.Logger
}

func NewAuditLogger(logger *slog.Logger) *AuditLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditLogger{logger: logger}
}

func (a *AuditLogger) LogDeposit(userID int64, amount, balance decimal.Decimal) {
	a.log(AuditEvent{
		Timestamp: time.Now(),
		EventType: EventDeposit,
		UserID:    userID,
		Amount:    amount.StringFixed(2),
		Balance:   balance.StringFixed(2),
		Status:    "SUCCESS",
	})
}

// LogLoan records a borrow (negative amount) or a return (positive amount).
func (a *AuditLogger) LogLoan(eventType string, userID, bookID int64, amount, balance decimal.Decimal, borrowCount int) {
	a.log(AuditEvent{
		Timestamp: time.Now(),
		EventType: eventType,
		UserID:    userID,
		BookID:    bookID,
		Amount:    amount.StringFixed(2),
		Balance:   balance.StringFixed(2),
		Status:    "SUCCESS",
		Details:   map[string]string{"borrow_count": strconv.Itoa(borrowCount)},
	})
}

func (a *AuditLogger) LogRating(userID, bookID int64, rate string) {
	a.log(AuditEvent{
		Timestamp: time.Now(),
		EventType: EventRating,
		UserID:    userID,
		BookID:    bookID,
		Status:    "SUCCESS",
		Details:   map[string]string{"rate": rate},
	})
}

func (a *AuditLogger) LogError(operation string, userID, bookID int64, err error) {
	a.log(AuditEvent{
		Timestamp: time.Now(),
		EventType: EventError,
		UserID:    userID,
		BookID:    bookID,
		Status:    "FAILED",
		Details:   map[string]string{"operation": operation, "error": err.Error()},
	})
}

func (a *AuditLogger) log(event AuditEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		a.logger.Error("audit marshal failed", "event_type", event.EventType, "error", err)
		return
	}
	a.logger.Info("AUDIT", "event", string(data))
}

