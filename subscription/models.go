package subscription

import (
	"time"

	"github.com/xraph/premium/id"
	"github.com/xraph/premium/payment"
	"github.com/xraph/premium/policy"
	"github.com/xraph/premium/types"
)

type Status string

const (
	StatusActive    Status = "active"
	StatusSuspended Status = "suspended"
	StatusExpired   Status = "expired"
)

// Valid reports whether s is one of the defined statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusSuspended, StatusExpired:
		return true
	}
	return false
}

// Billing calendar. Months and years are fixed-length.
const (
	Day          = 24 * time.Hour
	BillingCycle = 30 * Day
	PreDueWindow = 3 * Day
	GraceWindow  = 7 * Day
	DaysPerYear  = 365
)

// Subscription binds one subscriber to one policy. Policy name and premium
// are snapshots taken at subscribe time.
type Subscription struct {
	types.Entity
	ID            id.SubscriptionID `json:"id"`
	SubscriberID  string            `json:"subscriber_id"`
	PolicyID      int64             `json:"policy_id"`
	PolicyName    string            `json:"policy_name"`
	Premium       types.Money       `json:"premium"`
	TotalPaid     types.Money       `json:"total_paid"`
	StartDate     time.Time         `json:"start_date"`
	EndDate       time.Time         `json:"end_date"`
	NextDueDate   time.Time         `json:"next_due_date"`
	MonthsPaid    int               `json:"months_paid"`
	Status        Status            `json:"subscription_status"`
	PaymentStatus payment.Status    `json:"payment_status"`
}

// New stages the subscription created by a first premium payment at now.
func New(subscriberID string, p *policy.Policy, now time.Time) *Subscription {
	now = now.UTC()
	return &Subscription{
		Entity:        types.NewEntity(now),
		ID:            id.NewSubscriptionID(),
		SubscriberID:  subscriberID,
		PolicyID:      p.ID,
		PolicyName:    p.Name,
		Premium:       p.Premium,
		TotalPaid:     p.Premium,
		StartDate:     now,
		EndDate:       now.Add(time.Duration(p.ValidityYears) * DaysPerYear * Day),
		NextDueDate:   now.Add(BillingCycle),
		MonthsPaid:    1,
		Status:        StatusActive,
		PaymentStatus: payment.StatusPaid,
	}
}

// Clone returns a copy safe to mutate.
func (s *Subscription) Clone() *Subscription {
	c := *s
	return &c
}

// Record builds the journal entry for the subscription's latest month.
func (s *Subscription) Record(amount types.Money, paidOn time.Time, transferRef string) *payment.Record {
	return &payment.Record{
		ID:           id.NewPaymentID(),
		SubscriberID: s.SubscriberID,
		Amount:       amount,
		PaidOn:       paidOn.UTC(),
		MonthNumber:  s.MonthsPaid,
		Status:       s.PaymentStatus,
		TransferRef:  transferRef,
	}
}

type ListOpts struct {
	Status         Status
	ExcludeExpired bool
	Limit          int
	Offset         int
}
