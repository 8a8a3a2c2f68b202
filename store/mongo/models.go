package mongo

import (
	"time"

	"github.com/xraph/grove"

	"github.com/xraph/premium/event"
	"github.com/xraph/premium/id"
	"github.com/xraph/premium/payment"
	"github.com/xraph/premium/policy"
	"github.com/xraph/premium/subscription"
	"github.com/xraph/premium/types"
)

// ==================== Policy models ====================

type policyModel struct {
	grove.BaseModel `grove:"table:premium_policies"`

	ID               int64             `grove:"id,pk"             bson:"_id"`
	Name             string            `grove:"name"              bson:"name"`
	Description      string            `grove:"description"       bson:"description"`
	CoverageAmount   int64             `grove:"coverage_amount"   bson:"coverage_amount"`
	CoverageCurrency string            `grove:"coverage_currency" bson:"coverage_currency"`
	PremiumAmount    int64             `grove:"premium_amount"    bson:"premium_amount"`
	Currency         string            `grove:"currency"          bson:"currency"`
	ValidityYears    int               `grove:"validity_years"    bson:"validity_years"`
	Status           string            `grove:"status"            bson:"status"`
	Metadata         map[string]string `grove:"metadata"          bson:"metadata,omitempty"`
	CreatedAt        time.Time         `grove:"created_at"        bson:"created_at"`
}

func toPolicyModel(p *policy.Policy) *policyModel {
	return &policyModel{
		ID:               p.ID,
		Name:             p.Name,
		Description:      p.Description,
		CoverageAmount:   p.CoverageLimit.Amount,
		CoverageCurrency: p.CoverageLimit.Currency,
		PremiumAmount:    p.Premium.Amount,
		Currency:         p.Premium.Currency,
		ValidityYears:    p.ValidityYears,
		Status:           string(p.Status),
		Metadata:         p.Metadata,
		CreatedAt:        p.CreatedAt,
	}
}

func fromPolicyModel(m *policyModel) *policy.Policy {
	var meta map[string]string
	if len(m.Metadata) > 0 {
		meta = m.Metadata
	}
	return &policy.Policy{
		ID:            m.ID,
		Name:          m.Name,
		Description:   m.Description,
		CoverageLimit: types.New(m.CoverageAmount, m.CoverageCurrency),
		Premium:       types.New(m.PremiumAmount, m.Currency),
		ValidityYears: m.ValidityYears,
		Status:        policy.Status(m.Status),
		Metadata:      meta,
		CreatedAt:     m.CreatedAt.UTC(),
	}
}

// ==================== Subscription models ====================

// subscriptionModel embeds the payment journal so a payment and its
// subscription update land in one document write.
type subscriptionModel struct {
	grove.BaseModel `grove:"table:premium_subscriptions"`

	ID            string         `grove:"id,pk"          bson:"_id"`
	SubscriberID  string         `grove:"subscriber_id"  bson:"subscriber_id"`
	PolicyID      int64          `grove:"policy_id"      bson:"policy_id"`
	PolicyName    string         `grove:"policy_name"    bson:"policy_name"`
	PremiumAmount int64          `grove:"premium_amount" bson:"premium_amount"`
	Currency      string         `grove:"currency"       bson:"currency"`
	TotalPaid     int64          `grove:"total_paid"     bson:"total_paid"`
	StartDate     time.Time      `grove:"start_date"     bson:"start_date"`
	EndDate       time.Time      `grove:"end_date"       bson:"end_date"`
	NextDueDate   time.Time      `grove:"next_due_date"  bson:"next_due_date"`
	MonthsPaid    int            `grove:"months_paid"    bson:"months_paid"`
	Status        string         `grove:"status"         bson:"status"`
	PaymentStatus string         `grove:"payment_status" bson:"payment_status"`
	Payments      []paymentModel `grove:"payments"       bson:"payments"`
	CreatedAt     time.Time      `grove:"created_at"     bson:"created_at"`
	UpdatedAt     time.Time      `grove:"updated_at"     bson:"updated_at"`
}

func toSubscriptionModel(s *subscription.Subscription, journal []*payment.Record) *subscriptionModel {
	payments := make([]paymentModel, len(journal))
	for i, r := range journal {
		payments[i] = toPaymentModel(r)
	}
	return &subscriptionModel{
		ID:            s.ID.String(),
		SubscriberID:  s.SubscriberID,
		PolicyID:      s.PolicyID,
		PolicyName:    s.PolicyName,
		PremiumAmount: s.Premium.Amount,
		Currency:      s.Premium.Currency,
		TotalPaid:     s.TotalPaid.Amount,
		StartDate:     s.StartDate,
		EndDate:       s.EndDate,
		NextDueDate:   s.NextDueDate,
		MonthsPaid:    s.MonthsPaid,
		Status:        string(s.Status),
		PaymentStatus: string(s.PaymentStatus),
		Payments:      payments,
		CreatedAt:     s.CreatedAt,
		UpdatedAt:     s.UpdatedAt,
	}
}

func fromSubscriptionModel(m *subscriptionModel) (*subscription.Subscription, error) {
	subID, err := id.ParseSubscriptionID(m.ID)
	if err != nil {
		return nil, err
	}
	return &subscription.Subscription{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt.UTC(),
			UpdatedAt: m.UpdatedAt.UTC(),
		},
		ID:            subID,
		SubscriberID:  m.SubscriberID,
		PolicyID:      m.PolicyID,
		PolicyName:    m.PolicyName,
		Premium:       types.New(m.PremiumAmount, m.Currency),
		TotalPaid:     types.New(m.TotalPaid, m.Currency),
		StartDate:     m.StartDate.UTC(),
		EndDate:       m.EndDate.UTC(),
		NextDueDate:   m.NextDueDate.UTC(),
		MonthsPaid:    m.MonthsPaid,
		Status:        subscription.Status(m.Status),
		PaymentStatus: payment.Status(m.PaymentStatus),
	}, nil
}

// ==================== Payment models ====================

type paymentModel struct {
	ID          string    `bson:"id"`
	Amount      int64     `bson:"amount"`
	Currency    string    `bson:"currency"`
	PaidOn      time.Time `bson:"paid_on"`
	MonthNumber int       `bson:"month_number"`
	Status      string    `bson:"status"`
	TransferRef string    `bson:"transfer_ref,omitempty"`
}

func toPaymentModel(r *payment.Record) paymentModel {
	return paymentModel{
		ID:          r.ID.String(),
		Amount:      r.Amount.Amount,
		Currency:    r.Amount.Currency,
		PaidOn:      r.PaidOn.UTC(),
		MonthNumber: r.MonthNumber,
		Status:      string(r.Status),
		TransferRef: r.TransferRef,
	}
}

func fromPaymentModel(subscriberID string, m *paymentModel) (*payment.Record, error) {
	payID, err := id.ParsePaymentID(m.ID)
	if err != nil {
		return nil, err
	}
	return &payment.Record{
		ID:           payID,
		SubscriberID: subscriberID,
		Amount:       types.New(m.Amount, m.Currency),
		PaidOn:       m.PaidOn.UTC(),
		MonthNumber:  m.MonthNumber,
		Status:       payment.Status(m.Status),
		TransferRef:  m.TransferRef,
	}, nil
}

// ==================== Event models ====================

type eventModel struct {
	grove.BaseModel `grove:"table:premium_events"`

	ID           string    `grove:"id,pk"         bson:"_id"`
	Seq          int64     `grove:"seq"           bson:"seq"`
	Type         string    `grove:"type"          bson:"type"`
	SubscriberID string    `grove:"subscriber_id" bson:"subscriber_id,omitempty"`
	PolicyID     int64     `grove:"policy_id"     bson:"policy_id,omitempty"`
	PolicyName   string    `grove:"policy_name"   bson:"policy_name,omitempty"`
	Month        int       `grove:"month"         bson:"month,omitempty"`
	Amount       int64     `grove:"amount"        bson:"amount"`
	Currency     string    `grove:"currency"      bson:"currency"`
	OccurredAt   time.Time `grove:"occurred_at"   bson:"occurred_at"`
}

func toEventModel(e *event.Event) *eventModel {
	return &eventModel{
		ID:           e.ID.String(),
		Seq:          e.Seq,
		Type:         string(e.Type),
		SubscriberID: e.SubscriberID,
		PolicyID:     e.PolicyID,
		PolicyName:   e.PolicyName,
		Month:        e.Month,
		Amount:       e.Amount.Amount,
		Currency:     e.Amount.Currency,
		OccurredAt:   e.OccurredAt,
	}
}

func fromEventModel(m *eventModel) (*event.Event, error) {
	evtID, err := id.ParseEventID(m.ID)
	if err != nil {
		return nil, err
	}
	return &event.Event{
		ID:           evtID,
		Seq:          m.Seq,
		Type:         event.Type(m.Type),
		SubscriberID: m.SubscriberID,
		PolicyID:     m.PolicyID,
		PolicyName:   m.PolicyName,
		Month:        m.Month,
		Amount:       types.New(m.Amount, m.Currency),
		OccurredAt:   m.OccurredAt.UTC(),
	}, nil
}

// counterModel holds a named monotonic sequence.
type counterModel struct {
	ID  string `bson:"_id"`
	Seq int64  `bson:"seq"`
}
