// Package audithook bridges premium lifecycle events to an audit trail backend.
//
// It defines a local Recorder interface so the package does not import any
// audit backend directly. Callers inject a RecorderFunc adapter at wiring time.
package audithook

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/xraph/premium/payment"
	"github.com/xraph/premium/payout"
	"github.com/xraph/premium/policy"
	"github.com/xraph/premium/plugin"
	"github.com/xraph/premium/subscription"
)

// Compile-time interface checks.
var (
	_ plugin.Plugin              = (*Extension)(nil)
	_ plugin.OnPolicyCreated     = (*Extension)(nil)
	_ plugin.OnPolicySubscribed  = (*Extension)(nil)
	_ plugin.OnPremiumPaid       = (*Extension)(nil)
	_ plugin.OnPolicySuspended   = (*Extension)(nil)
	_ plugin.OnPolicyReactivated = (*Extension)(nil)
	_ plugin.OnPolicyExpired     = (*Extension)(nil)
	_ plugin.OnTransferFailed    = (*Extension)(nil)
	_ plugin.OnTransferReversed  = (*Extension)(nil)
)

// Recorder is the interface that audit backends must implement.
type Recorder interface {
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is a local representation of an audit event.
type AuditEvent struct {
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	Category   string         `json:"category"`
	ResourceID string         `json:"resource_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

// Record implements Recorder.
func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// Extension bridges premium lifecycle events to an audit trail backend.
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
}

// New creates an Extension that emits audit events through the provided Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements plugin.Plugin.
func (e *Extension) Name() string { return "audit-hook" }

// ──────────────────────────────────────────────────
// Catalog hooks
// ──────────────────────────────────────────────────

// OnPolicyCreated implements plugin.OnPolicyCreated.
func (e *Extension) OnPolicyCreated(ctx context.Context, p *policy.Policy) error {
	return e.record(ctx, ActionPolicyCreated, SeverityInfo, OutcomeSuccess,
		ResourcePolicy, strconv.FormatInt(p.ID, 10), CategoryCatalog, nil,
		"name", p.Name,
		"premium", p.Premium.String(),
		"validity_years", p.ValidityYears,
	)
}

// ──────────────────────────────────────────────────
// Subscription hooks
// ──────────────────────────────────────────────────

// OnPolicySubscribed implements plugin.OnPolicySubscribed.
func (e *Extension) OnPolicySubscribed(ctx context.Context, sub *subscription.Subscription) error {
	return e.record(ctx, ActionPolicySubscribed, SeverityInfo, OutcomeSuccess,
		ResourceSubscription, sub.SubscriberID, CategorySubscription, nil,
		"policy_id", sub.PolicyID,
		"end_date", sub.EndDate,
	)
}

// OnPremiumPaid implements plugin.OnPremiumPaid.
func (e *Extension) OnPremiumPaid(ctx context.Context, sub *subscription.Subscription, rec *payment.Record) error {
	return e.record(ctx, ActionPremiumPaid, SeverityInfo, OutcomeSuccess,
		ResourcePayment, rec.ID.String(), CategoryPayment, nil,
		"subscriber_id", sub.SubscriberID,
		"month", rec.MonthNumber,
		"amount", rec.Amount.String(),
		"transfer_ref", rec.TransferRef,
	)
}

// OnPolicySuspended implements plugin.OnPolicySuspended.
func (e *Extension) OnPolicySuspended(ctx context.Context, sub *subscription.Subscription) error {
	return e.record(ctx, ActionPolicySuspended, SeverityWarning, OutcomeSuccess,
		ResourceSubscription, sub.SubscriberID, CategorySubscription, nil,
		"policy_id", sub.PolicyID,
		"next_due_date", sub.NextDueDate,
	)
}

// OnPolicyReactivated implements plugin.OnPolicyReactivated.
func (e *Extension) OnPolicyReactivated(ctx context.Context, sub *subscription.Subscription) error {
	return e.record(ctx, ActionPolicyReactivated, SeverityInfo, OutcomeSuccess,
		ResourceSubscription, sub.SubscriberID, CategorySubscription, nil,
		"policy_id", sub.PolicyID,
		"months_paid", sub.MonthsPaid,
	)
}

// OnPolicyExpired implements plugin.OnPolicyExpired.
func (e *Extension) OnPolicyExpired(ctx context.Context, sub *subscription.Subscription) error {
	return e.record(ctx, ActionPolicyExpired, SeverityInfo, OutcomeSuccess,
		ResourceSubscription, sub.SubscriberID, CategorySubscription, nil,
		"policy_id", sub.PolicyID,
		"months_paid", sub.MonthsPaid,
		"total_paid", sub.TotalPaid.String(),
	)
}

// ──────────────────────────────────────────────────
// Payout hooks
// ──────────────────────────────────────────────────

// OnTransferFailed implements plugin.OnTransferFailed.
func (e *Extension) OnTransferFailed(ctx context.Context, t payout.Transfer, err error) error {
	return e.record(ctx, ActionTransferFailed, SeverityWarning, OutcomeFailure,
		ResourceTransfer, t.Key, CategoryPayout, err,
		"subscriber_id", t.SubscriberID,
		"month", t.Month,
		"amount", t.Amount.String(),
	)
}

// OnTransferReversed implements plugin.OnTransferReversed.
func (e *Extension) OnTransferReversed(ctx context.Context, r payout.Receipt, cause error) error {
	return e.record(ctx, ActionTransferReversed, SeverityCritical, OutcomeFailure,
		ResourceTransfer, r.Key, CategoryPayout, cause,
		"transfer_id", r.ID.String(),
		"amount", r.Amount.String(),
	)
}

// ──────────────────────────────────────────────────
// Internal helpers
// ──────────────────────────────────────────────────

// record builds and sends an audit event if the action is enabled.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID, category string,
	err error,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+1)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	var reason string
	if err != nil {
		reason = err.Error()
		meta["error"] = err.Error()
	}

	evt := &AuditEvent{
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit_hook: failed to record audit event",
			"action", action,
			"resource_id", resourceID,
			"error", recErr,
		)
	}
	return nil
}
