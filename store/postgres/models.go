package postgres

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

	ID               int64             `grove:"id,pk"`
	Name             string            `grove:"name"`
	Description      string            `grove:"description"`
	CoverageAmount   int64             `grove:"coverage_amount"`
	CoverageCurrency string            `grove:"coverage_currency"`
	PremiumAmount    int64             `grove:"premium_amount"`
	Currency         string            `grove:"currency"`
	ValidityYears    int               `grove:"validity_years"`
	Status           string            `grove:"status"`
	Metadata         map[string]string `grove:"metadata,type:jsonb"`
	CreatedAt        time.Time         `grove:"created_at"`
}

func toPolicyModel(p *policy.Policy) *policyModel {
	meta := p.Metadata
	if meta == nil {
		meta = map[string]string{}
	}
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
		Metadata:         meta,
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

type subscriptionModel struct {
	grove.BaseModel `grove:"table:premium_subscriptions"`

	ID            string    `grove:"id,pk"`
	SubscriberID  string    `grove:"subscriber_id"`
	PolicyID      int64     `grove:"policy_id"`
	PolicyName    string    `grove:"policy_name"`
	PremiumAmount int64     `grove:"premium_amount"`
	Currency      string    `grove:"currency"`
	TotalPaid     int64     `grove:"total_paid"`
	StartDate     time.Time `grove:"start_date"`
	EndDate       time.Time `grove:"end_date"`
	NextDueDate   time.Time `grove:"next_due_date"`
	MonthsPaid    int       `grove:"months_paid"`
	Status        string    `grove:"status"`
	PaymentStatus string    `grove:"payment_status"`
	CreatedAt     time.Time `grove:"created_at"`
	UpdatedAt     time.Time `grove:"updated_at"`
}

func toSubscriptionModel(s *subscription.Subscription) *subscriptionModel {
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
	grove.BaseModel `grove:"table:premium_payments"`

	ID           string    `grove:"id,pk"`
	SubscriberID string    `grove:"subscriber_id"`
	Amount       int64     `grove:"amount"`
	Currency     string    `grove:"currency"`
	PaidOn       time.Time `grove:"paid_on"`
	MonthNumber  int       `grove:"month_number"`
	Status       string    `grove:"status"`
	TransferRef  string    `grove:"transfer_ref"`
}

func fromPaymentModel(m *paymentModel) (*payment.Record, error) {
	payID, err := id.ParsePaymentID(m.ID)
	if err != nil {
		return nil, err
	}
	return &payment.Record{
		ID:           payID,
		SubscriberID: m.SubscriberID,
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

	Seq          int64     `grove:"seq,pk"`
	ID           string    `grove:"id"`
	Type         string    `grove:"type"`
	SubscriberID string    `grove:"subscriber_id"`
	PolicyID     int64     `grove:"policy_id"`
	PolicyName   string    `grove:"policy_name"`
	Month        int       `grove:"month"`
	Amount       int64     `grove:"amount"`
	Currency     string    `grove:"currency"`
	OccurredAt   time.Time `grove:"occurred_at"`
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
