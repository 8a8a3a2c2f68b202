package payment

import (
	"time"

	"github.com/xraph/premium/id"
	"github.com/xraph/premium/types"
)

// Status is the payment standing of a subscription.
type Status string

const (
	StatusPaid    Status = "paid"
	StatusDue     Status = "due"
	StatusOverdue Status = "overdue"
	StatusExpired Status = "expired"
)

// Valid reports whether s is one of the defined statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPaid, StatusDue, StatusOverdue, StatusExpired:
		return true
	}
	return false
}

// Record is one journal entry. MonthNumber equals the subscription's
// MonthsPaid immediately after the payment was committed.
type Record struct {
	ID           id.PaymentID `json:"id"`
	SubscriberID string       `json:"subscriber_id"`
	Amount       types.Money  `json:"amount"`
	PaidOn       time.Time    `json:"paid_on"`
	MonthNumber  int          `json:"month_number"`
	Status       Status       `json:"status"`
	TransferRef  string       `json:"transfer_ref,omitempty"`
}
