// Package observability provides a metrics extension for premium that
// records lifecycle event counts through a MetricFactory.
package observability

import (
	"context"

	"github.com/xraph/premium/payment"
	"github.com/xraph/premium/payout"
	"github.com/xraph/premium/policy"
	"github.com/xraph/premium/plugin"
	"github.com/xraph/premium/subscription"
)

// Ensure MetricsExtension implements required interfaces.
var (
	_ plugin.Plugin              = (*MetricsExtension)(nil)
	_ plugin.OnInit              = (*MetricsExtension)(nil)
	_ plugin.OnPolicyCreated     = (*MetricsExtension)(nil)
	_ plugin.OnPolicySubscribed  = (*MetricsExtension)(nil)
	_ plugin.OnPremiumPaid       = (*MetricsExtension)(nil)
	_ plugin.OnPolicySuspended   = (*MetricsExtension)(nil)
	_ plugin.OnPolicyReactivated = (*MetricsExtension)(nil)
	_ plugin.OnPolicyExpired     = (*MetricsExtension)(nil)
	_ plugin.OnTransferFailed    = (*MetricsExtension)(nil)
	_ plugin.OnTransferReversed  = (*MetricsExtension)(nil)
)

// Counter interface for metric counters.
type Counter interface {
	Inc()
	Add(float64)
}

// Histogram interface for metric histograms.
type Histogram interface {
	Observe(float64)
}

// MetricFactory creates metrics.
type MetricFactory interface {
	Counter(name string) Counter
	Histogram(name string) Histogram
}

// MetricsExtension records system-wide lifecycle metrics.
// Register it as a premium plugin to track subscriptions and premiums.
type MetricsExtension struct {
	// Catalog metrics
	PolicyCreated Counter

	// Subscription metrics
	PolicySubscribed    Counter
	PolicySuspended     Counter
	PolicyReactivated   Counter
	PolicyExpired       Counter
	SubscriptionMonths  Histogram
	SubscriptionRevenue Counter

	// Payment metrics
	PremiumsPaid  Counter
	PremiumAmount Histogram

	// Payout metrics
	TransfersFailed   Counter
	TransfersReversed Counter
}

// NewMetricsExtension creates a MetricsExtension with the provided MetricFactory.
func NewMetricsExtension(factory MetricFactory) *MetricsExtension {
	return &MetricsExtension{
		PolicyCreated: factory.Counter("premium.policy.created"),

		PolicySubscribed:    factory.Counter("premium.policy.subscribed"),
		PolicySuspended:     factory.Counter("premium.policy.suspended"),
		PolicyReactivated:   factory.Counter("premium.policy.reactivated"),
		PolicyExpired:       factory.Counter("premium.policy.expired"),
		SubscriptionMonths:  factory.Histogram("premium.subscription.months_paid"),
		SubscriptionRevenue: factory.Counter("premium.subscription.revenue_minor"),

		PremiumsPaid:  factory.Counter("premium.payment.paid"),
		PremiumAmount: factory.Histogram("premium.payment.amount_minor"),

		TransfersFailed:   factory.Counter("premium.transfer.failed"),
		TransfersReversed: factory.Counter("premium.transfer.reversed"),
	}
}

// Name implements plugin.Plugin.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// OnInit implements plugin.OnInit.
func (m *MetricsExtension) OnInit(_ context.Context, _ any) error {
	return nil
}

// OnPolicyCreated implements plugin.OnPolicyCreated.
func (m *MetricsExtension) OnPolicyCreated(_ context.Context, _ *policy.Policy) error {
	m.PolicyCreated.Inc()
	return nil
}

// OnPolicySubscribed implements plugin.OnPolicySubscribed.
func (m *MetricsExtension) OnPolicySubscribed(_ context.Context, _ *subscription.Subscription) error {
	m.PolicySubscribed.Inc()
	return nil
}

// OnPremiumPaid implements plugin.OnPremiumPaid.
func (m *MetricsExtension) OnPremiumPaid(_ context.Context, _ *subscription.Subscription, rec *payment.Record) error {
	m.PremiumsPaid.Inc()
	m.PremiumAmount.Observe(float64(rec.Amount.Amount))
	m.SubscriptionRevenue.Add(float64(rec.Amount.Amount))
	return nil
}

// OnPolicySuspended implements plugin.OnPolicySuspended.
func (m *MetricsExtension) OnPolicySuspended(_ context.Context, _ *subscription.Subscription) error {
	m.PolicySuspended.Inc()
	return nil
}

// OnPolicyReactivated implements plugin.OnPolicyReactivated.
func (m *MetricsExtension) OnPolicyReactivated(_ context.Context, _ *subscription.Subscription) error {
	m.PolicyReactivated.Inc()
	return nil
}

// OnPolicyExpired implements plugin.OnPolicyExpired.
func (m *MetricsExtension) OnPolicyExpired(_ context.Context, sub *subscription.Subscription) error {
	m.PolicyExpired.Inc()
	m.SubscriptionMonths.Observe(float64(sub.MonthsPaid))
	return nil
}

// OnTransferFailed implements plugin.OnTransferFailed.
func (m *MetricsExtension) OnTransferFailed(_ context.Context, _ payout.Transfer, _ error) error {
	m.TransfersFailed.Inc()
	return nil
}

// OnTransferReversed implements plugin.OnTransferReversed.
func (m *MetricsExtension) OnTransferReversed(_ context.Context, _ payout.Receipt, _ error) error {
	m.TransfersReversed.Inc()
	return nil
}
