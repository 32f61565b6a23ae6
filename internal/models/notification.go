package models

import "time"

// Notification templates
const (
	TemplateDeposit = "deposit"
	TemplateBorrow  = "borrow"
	TemplateReturn  = "return"
)

// Notification is an outbound message queued after a ledger commit.
type Notification struct {
	ID        string            `json:"id"`
	Recipient string            `json:"recipient"`
	Template  string            `json:"template"`
	Subject   string            `json:"subject"`
	Fields    map[string]string `json:"fields"`
	CreatedAt time.Time         `json:"created_at"`
}
