package audithook

// Action constants for audit events.
const (
	// Catalog actions
	ActionPolicyCreated = "policy.created"

	// Subscription actions
	ActionPolicySubscribed  = "policy.subscribed"
	ActionPremiumPaid       = "premium.paid"
	ActionPolicySuspended   = "policy.suspended"
	ActionPolicyReactivated = "policy.reactivated"
	ActionPolicyExpired     = "policy.expired"

	// Payout actions
	ActionTransferFailed   = "transfer.failed"
	ActionTransferReversed = "transfer.reversed"
)

// Resource constants for audit events.
const (
	ResourcePolicy       = "policy"
	ResourceSubscription = "subscription"
	ResourcePayment      = "payment"
	ResourceTransfer     = "transfer"
)

// Category constants for audit events.
const (
	CategoryCatalog      = "catalog"
	CategorySubscription = "subscription"
	CategoryPayment      = "payment"
	CategoryPayout       = "payout"
)

// Severity levels for audit events.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// Outcome values for audit events.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)
