package sqlite

import (
	"encoding/json"
	"fmt"
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

	ID               int64     `grove:"id,pk"`
	Name             string    `grove:"name"`
	Description      string    `grove:"description"`
	CoverageAmount   int64     `grove:"coverage_amount"`
	CoverageCurrency string    `grove:"coverage_currency"`
	PremiumAmount    int64     `grove:"premium_amount"`
	Currency         string    `grove:"currency"`
	ValidityYears    int       `grove:"validity_years"`
	Status           string    `grove:"status"`
	Metadata         string    `grove:"metadata"`
	CreatedAt        time.Time `grove:"created_at"`
}

func toPolicyModel(p *policy.Policy) (*policyModel, error) {
	meta := []byte("{}")
	if len(p.Metadata) > 0 {
		var err error
		if meta, err = json.Marshal(p.Metadata); err != nil {
			return nil, err
		}
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
		Metadata:         string(meta),
		CreatedAt:        p.CreatedAt,
	}, nil
}

func fromPolicyModel(m *policyModel) (*policy.Policy, error) {
	var meta map[string]string
	if m.Metadata != "" && m.Metadata != "{}" {
		if err := json.Unmarshal([]byte(m.Metadata), &meta); err != nil {
			return nil, fmt.Errorf("premium/sqlite: policy %d metadata: %w", m.ID, err)
		}
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
	}, nil
}

// ==================== Subscription models ====================

// subscriptionModel carries the payment journal inline as a JSON array so a
// payment and its subscription update are one row write.
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
	Payments      string    `grove:"payments"`
	CreatedAt     time.Time `grove:"created_at"`
	UpdatedAt     time.Time `grove:"updated_at"`
}

func toSubscriptionModel(s *subscription.Subscription, journal []*payment.Record) (*subscriptionModel, error) {
	entries := make([]paymentEntry, len(journal))
	for i, r := range journal {
		entries[i] = toPaymentEntry(r)
	}
	raw, err := json.Marshal(entries)
	if err != nil {
		return nil, err
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
		Payments:      string(raw),
		CreatedAt:     s.CreatedAt,
		UpdatedAt:     s.UpdatedAt,
	}, nil
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

// ==================== Payment journal ====================

type paymentEntry struct {
	ID          string    `json:"id"`
	Amount      int64     `json:"amount"`
	Currency    string    `json:"currency"`
	PaidOn      time.Time `json:"paid_on"`
	MonthNumber int       `json:"month_number"`
	Status      string    `json:"status"`
	TransferRef string    `json:"transfer_ref,omitempty"`
}

func toPaymentEntry(r *payment.Record) paymentEntry {
	return paymentEntry{
		ID:          r.ID.String(),
		Amount:      r.Amount.Amount,
		Currency:    r.Amount.Currency,
		PaidOn:      r.PaidOn.UTC(),
		MonthNumber: r.MonthNumber,
		Status:      string(r.Status),
		TransferRef: r.TransferRef,
	}
}

func decodeJournal(subscriberID, raw string) ([]*payment.Record, error) {
	var entries []paymentEntry
	if raw != "" {
		if err := json.Unmarshal([]byte(raw), &entries); err != nil {
			return nil, fmt.Errorf("premium/sqlite: journal for %s: %w", subscriberID, err)
		}
	}
	out := make([]*payment.Record, len(entries))
	for i, e := range entries {
		payID, err := id.ParsePaymentID(e.ID)
		if err != nil {
			return nil, err
		}
		out[i] = &payment.Record{
			ID:           payID,
			SubscriberID: subscriberID,
			Amount:       types.New(e.Amount, e.Currency),
			PaidOn:       e.PaidOn.UTC(),
			MonthNumber:  e.MonthNumber,
			Status:       payment.Status(e.Status),
			TransferRef:  e.TransferRef,
		}
	}
	return out, nil
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
