package subscription

import (
	"time"

	"github.com/xraph/premium/payment"
	"github.com/xraph/premium/types"
)

// Assessment is the status pair of a subscription at some instant.
type Assessment struct {
	Status        Status         `json:"subscription_status"`
	PaymentStatus payment.Status `json:"payment_status"`
}

// Current returns the stored status pair.
func (s *Subscription) Current() Assessment {
	return Assessment{Status: s.Status, PaymentStatus: s.PaymentStatus}
}

// Assess derives the status pair at now. Rules are evaluated in order and
// the first match wins. Expired subscriptions are returned unchanged.
func (s *Subscription) Assess(now time.Time) Assessment {
	if s.Status == StatusExpired {
		return s.Current()
	}

	switch {
	case !now.Before(s.EndDate):
		return Assessment{Status: StatusExpired, PaymentStatus: payment.StatusExpired}
	case now.After(s.NextDueDate.Add(GraceWindow)):
		return Assessment{Status: StatusSuspended, PaymentStatus: payment.StatusOverdue}
	case s.IsPaymentDue(now):
		return Assessment{Status: s.Status, PaymentStatus: payment.StatusDue}
	default:
		return Assessment{Status: s.Status, PaymentStatus: payment.StatusPaid}
	}
}

// IsPaymentDue reports whether now is inside or past the pre-due window.
func (s *Subscription) IsPaymentDue(now time.Time) bool {
	return !now.Before(s.NextDueDate.Add(-PreDueWindow))
}

// DaysUntilDue returns whole days remaining until NextDueDate, floored,
// or 0 once the due date has passed.
func (s *Subscription) DaysUntilDue(now time.Time) int64 {
	if !now.Before(s.NextDueDate) {
		return 0
	}
	return int64(s.NextDueDate.Sub(now) / Day)
}

// ApplyPayment returns a copy of s advanced by one paid month at now.
// The receiver is not modified.
func (s *Subscription) ApplyPayment(amount types.Money, now time.Time) *Subscription {
	next := s.Clone()
	next.TotalPaid = next.TotalPaid.Add(amount)
	next.MonthsPaid++
	next.NextDueDate = next.NextDueDate.Add(BillingCycle)
	next.Status = StatusActive
	next.PaymentStatus = payment.StatusPaid
	if !now.Before(next.EndDate) {
		next.Status = StatusExpired
		next.PaymentStatus = payment.StatusExpired
	}
	next.Touch(now)
	return next
}
