package event

import (
	"time"

	"github.com/xraph/premium/id"
	"github.com/xraph/premium/types"
)

type Type string

const (
	TypePolicyCreated      Type = "policy.created"
	TypePolicySubscribed   Type = "policy.subscribed"
	TypeMonthlyPremiumPaid Type = "premium.paid"
	TypePolicySuspended    Type = "policy.suspended"
	TypePolicyReactivated  Type = "policy.reactivated"
	TypePolicyExpired      Type = "policy.expired"
)

// Event is an entry in the domain event log. Seq is assigned by the store
// on append and is strictly increasing in order of occurrence.
type Event struct {
	ID           id.EventID  `json:"id"`
	Seq          int64       `json:"seq"`
	Type         Type        `json:"type"`
	SubscriberID string      `json:"subscriber_id,omitempty"`
	PolicyID     int64       `json:"policy_id,omitempty"`
	PolicyName   string      `json:"policy_name,omitempty"`
	Month        int         `json:"month,omitempty"`
	Amount       types.Money `json:"amount"`
	OccurredAt   time.Time   `json:"occurred_at"`
}

type ListOpts struct {
	AfterSeq     int64
	SubscriberID string
	Limit        int
}
