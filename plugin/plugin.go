// Package plugin provides an extensible plugin system for premium.
// Plugins hook into catalog, subscription and payout lifecycle events.
// Hook failures are logged and never fail the operation that emitted them.
package plugin

import (
	"context"

	"github.com/xraph/premium/event"
	"github.com/xraph/premium/payment"
	"github.com/xraph/premium/payout"
	"github.com/xraph/premium/policy"
	"github.com/xraph/premium/subscription"
)

// Plugin is the base interface that all plugins must implement.
type Plugin interface {
	Name() string
}

// ──────────────────────────────────────────────────
// Lifecycle hooks
// ──────────────────────────────────────────────────

// OnInit is called when the engine starts. l is the *premium.Ledger.
type OnInit interface {
	Plugin
	OnInit(ctx context.Context, l any) error
}

// OnShutdown is called when the engine stops.
type OnShutdown interface {
	Plugin
	OnShutdown(ctx context.Context) error
}

// ──────────────────────────────────────────────────
// Catalog hooks
// ──────────────────────────────────────────────────

// OnPolicyCreated is called after a policy is added to the catalog.
type OnPolicyCreated interface {
	Plugin
	OnPolicyCreated(ctx context.Context, p *policy.Policy) error
}

// ──────────────────────────────────────────────────
// Subscription hooks
// ──────────────────────────────────────────────────

// OnPolicySubscribed is called after a subscription is committed.
type OnPolicySubscribed interface {
	Plugin
	OnPolicySubscribed(ctx context.Context, sub *subscription.Subscription) error
}

// OnPremiumPaid is called after every committed premium, including the
// first one taken at subscribe time.
type OnPremiumPaid interface {
	Plugin
	OnPremiumPaid(ctx context.Context, sub *subscription.Subscription, rec *payment.Record) error
}

// OnPolicySuspended is called when reconciliation suspends a subscription.
type OnPolicySuspended interface {
	Plugin
	OnPolicySuspended(ctx context.Context, sub *subscription.Subscription) error
}

// OnPolicyReactivated is called when a payment reactivates a subscription.
type OnPolicyReactivated interface {
	Plugin
	OnPolicyReactivated(ctx context.Context, sub *subscription.Subscription) error
}

// OnPolicyExpired is called when a subscription reaches its end date.
type OnPolicyExpired interface {
	Plugin
	OnPolicyExpired(ctx context.Context, sub *subscription.Subscription) error
}

// ──────────────────────────────────────────────────
// Payout hooks
// ──────────────────────────────────────────────────

// OnTransferFailed is called when the payout sink rejects a transfer.
type OnTransferFailed interface {
	Plugin
	OnTransferFailed(ctx context.Context, t payout.Transfer, err error) error
}

// OnTransferReversed is called after a transfer is reversed because the
// ledger commit that followed it failed.
type OnTransferReversed interface {
	Plugin
	OnTransferReversed(ctx context.Context, r payout.Receipt, cause error) error
}

// ──────────────────────────────────────────────────
// Event log hooks
// ──────────────────────────────────────────────────

// OnEvent receives every domain event after it is appended to the log.
type OnEvent interface {
	Plugin
	OnEvent(ctx context.Context, e *event.Event) error
}
