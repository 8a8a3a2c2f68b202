package subscription

import (
	"context"
	"time"

	"github.com/xraph/premium/payment"
)

// StatusChange is a compare-and-set of a subscription's status pair. It
// applies only if the stored record still has MonthsPaid and From.
type StatusChange struct {
	SubscriberID string
	MonthsPaid   int
	From         Assessment
	To           Assessment
	At           time.Time
}

// Store persists subscriptions. Every mutating method is a single atomic
// write: either all fields and the journal entry are visible or none are.
type Store interface {
	// CreateSubscription stores s with its first journal record.
	CreateSubscription(ctx context.Context, s *Subscription, first *payment.Record) error
	GetSubscription(ctx context.Context, subscriberID string) (*Subscription, error)
	// RecordPayment stores s and appends rec if the stored MonthsPaid still
	// equals expectedMonths.
	RecordPayment(ctx context.Context, s *Subscription, expectedMonths int, rec *payment.Record) error
	UpdateStatus(ctx context.Context, change StatusChange) error
	ListSubscriptions(ctx context.Context, opts ListOpts) ([]*Subscription, error)
	CountSubscriptions(ctx context.Context) (int64, error)
}
