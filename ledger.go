package premium

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/xraph/premium/clock"
	"github.com/xraph/premium/event"
	"github.com/xraph/premium/gate"
	"github.com/xraph/premium/id"
	"github.com/xraph/premium/identity"
	"github.com/xraph/premium/lock"
	"github.com/xraph/premium/payment"
	"github.com/xraph/premium/payout"
	"github.com/xraph/premium/plugin"
	"github.com/xraph/premium/policy"
	"github.com/xraph/premium/store"
	"github.com/xraph/premium/subscription"
	"github.com/xraph/premium/types"
)

// ReactivationMode selects when PolicyReactivated is emitted after a
// monthly payment.
type ReactivationMode int

const (
	// ReactivateOnTransition emits only when the payment moves a suspended
	// subscription back to active.
	ReactivateOnTransition ReactivationMode = iota
	// ReactivateAlways emits after every successful monthly payment.
	ReactivateAlways
)

// ParseReactivationMode maps "transition" and "always" to a mode.
func ParseReactivationMode(s string) (ReactivationMode, error) {
	switch s {
	case "", "transition":
		return ReactivateOnTransition, nil
	case "always":
		return ReactivateAlways, nil
	}
	return 0, ValidationError{Field: "reactivation", Message: fmt.Sprintf("unknown mode %q", s)}
}

// Lock key for catalog mutations. Subscriber keys are prefixed so the two
// namespaces never collide.
const (
	catalogLockKey    = "catalog"
	subscriberLockPfx = "subscriber:"
)

// Ledger is the premium billing engine.
type Ledger struct {
	store      store.Store
	plugins    *plugin.Registry
	logger     *slog.Logger
	clock      clock.Clock
	sink       payout.Sink
	authorizer identity.Authorizer
	gate       gate.Gate
	locker     lock.Locker

	reactivation ReactivationMode
}

// New creates a new Ledger instance.
func New(s store.Store, opts ...Option) *Ledger {
	l := &Ledger{
		store:      s,
		plugins:    plugin.NewRegistry(),
		logger:     slog.Default(),
		clock:      clock.System(),
		sink:       payout.NewTreasury(),
		authorizer: identity.AllowAll(),
		gate:       gate.Deny(),
		locker:     lock.NewMemory(),
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// Option configures a Ledger instance.
type Option func(*Ledger)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) {
		l.logger = logger
		l.plugins.WithLogger(logger)
	}
}

// WithPlugin registers a plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(l *Ledger) {
		if err := l.plugins.Register(p); err != nil {
			l.logger.Warn("plugin registration failed", "plugin", p.Name(), "error", err)
		}
	}
}

// WithClock sets the time source.
func WithClock(c clock.Clock) Option {
	return func(l *Ledger) { l.clock = c }
}

// WithPayoutSink sets the destination for collected premiums.
func WithPayoutSink(s payout.Sink) Option {
	return func(l *Ledger) { l.sink = s }
}

// WithAuthorizer sets the identity lookup consulted before a subscriber
// may transact.
func WithAuthorizer(a identity.Authorizer) Option {
	return func(l *Ledger) { l.authorizer = a }
}

// WithGate sets the capability gate guarding catalog mutation.
func WithGate(g gate.Gate) Option {
	return func(l *Ledger) { l.gate = g }
}

// WithAdmin is shorthand for WithGate(gate.NewAdmin(adminID)).
func WithAdmin(adminID string) Option {
	return WithGate(gate.NewAdmin(adminID))
}

// WithLocker sets the per-subscriber lock. Use a shared Locker when more
// than one process writes to the same store.
func WithLocker(lk lock.Locker) Option {
	return func(l *Ledger) { l.locker = lk }
}

// WithReactivationMode sets when PolicyReactivated is emitted.
func WithReactivationMode(m ReactivationMode) Option {
	return func(l *Ledger) { l.reactivation = m }
}

// Start migrates the store and initializes plugins.
func (l *Ledger) Start(ctx context.Context) error {
	if err := l.store.Migrate(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrMigrationFailed, err)
	}

	l.plugins.EmitInit(ctx, l)

	l.logger.Info("premium ledger started",
		"plugins", l.plugins.Count(),
		"reactivation", l.reactivation,
	)

	return nil
}

// Stop shuts down plugins and closes the store.
func (l *Ledger) Stop() error {
	l.plugins.EmitShutdown(context.Background())
	return l.store.Close()
}

// Store returns the underlying store.
func (l *Ledger) Store() store.Store { return l.store }

// Plugins returns the plugin registry.
func (l *Ledger) Plugins() *plugin.Registry { return l.plugins }

// Now returns the ledger's current time.
func (l *Ledger) Now() time.Time { return l.clock.Now() }

// ──────────────────────────────────────────────────
// Policy catalog
// ──────────────────────────────────────────────────

// CreatePolicy adds a policy to the catalog and returns its ID. Only an
// actor holding gate.ManageCatalog may call it. Policy fields are trusted
// administrator input and are not validated.
func (l *Ledger) CreatePolicy(ctx context.Context, in policy.Input) (int64, error) {
	return gate.Guard(l.gate, gate.ManageCatalog, l.createPolicy(in))(ctx)
}

func (l *Ledger) createPolicy(in policy.Input) func(context.Context) (int64, error) {
	return func(ctx context.Context) (int64, error) {
		unlock, err := l.locker.Lock(ctx, catalogLockKey)
		if err != nil {
			return 0, err
		}
		defer unlock()

		last, err := l.store.LastPolicyID(ctx)
		if err != nil {
			return 0, err
		}

		p := in.Build(last+1, l.clock.Now())
		if err := l.store.CreatePolicy(ctx, p); err != nil {
			return 0, err
		}

		l.logger.Info("policy created", "policy_id", p.ID, "name", p.Name)
		l.record(ctx, &event.Event{
			Type:       event.TypePolicyCreated,
			PolicyID:   p.ID,
			PolicyName: p.Name,
			Amount:     p.Premium,
		})
		l.plugins.EmitPolicyCreated(ctx, p)

		return p.ID, nil
	}
}

// GetPolicy returns the policy with the given ID, or the zero Policy if no
// such policy exists.
func (l *Ledger) GetPolicy(ctx context.Context, policyID int64) (policy.Policy, error) {
	p, err := l.store.GetPolicy(ctx, policyID)
	if errors.Is(err, ErrPolicyNotFound) {
		return policy.Policy{}, nil
	}
	if err != nil {
		return policy.Policy{}, err
	}
	return *p, nil
}

// GetAllPolicyIDs returns every policy ID in ascending order.
func (l *Ledger) GetAllPolicyIDs(ctx context.Context) ([]int64, error) {
	return l.store.ListPolicyIDs(ctx)
}

// ──────────────────────────────────────────────────
// Subscriptions
// ──────────────────────────────────────────────────

// Subscribe binds subscriberID to a policy by paying its first premium.
//
// Checks run in order: the subscriber is authorized, has no subscription,
// names an assigned policy ID and supplies exactly the premium. The premium
// is transferred to the payout sink before anything is stored; if the store
// commit then fails the transfer is reversed.
func (l *Ledger) Subscribe(ctx context.Context, subscriberID string, policyID int64, amount types.Money) (*subscription.Subscription, error) {
	if err := l.authorize(ctx, subscriberID); err != nil {
		return nil, err
	}

	unlock, err := l.lockSubscriber(ctx, subscriberID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	switch _, err := l.store.GetSubscription(ctx, subscriberID); {
	case err == nil:
		return nil, ErrAlreadySubscribed
	case !errors.Is(err, ErrNoSubscription):
		return nil, err
	}

	last, err := l.store.LastPolicyID(ctx)
	if err != nil {
		return nil, err
	}
	if policyID < 1 || policyID > last {
		return nil, ErrInvalidPolicyID
	}

	p, err := l.store.GetPolicy(ctx, policyID)
	if err != nil {
		return nil, err
	}
	if !amount.Equal(p.Premium) {
		return nil, ErrIncorrectAmount
	}

	now := l.clock.Now()
	sub := subscription.New(subscriberID, p, now)

	receipt, err := l.transfer(ctx, sub, amount)
	if err != nil {
		return nil, err
	}

	rec := sub.Record(amount, now, receipt.ID.String())
	if err := l.store.CreateSubscription(ctx, sub, rec); err != nil {
		return nil, l.compensate(ctx, receipt, err)
	}

	l.logger.Info("policy subscribed",
		"subscriber_id", subscriberID,
		"policy_id", p.ID,
		"end_date", sub.EndDate,
	)

	l.record(ctx, l.newEvent(event.TypePolicySubscribed, sub, 0))
	l.plugins.EmitPolicySubscribed(ctx, sub)
	l.premiumPaid(ctx, sub, rec)

	return sub.Clone(), nil
}

// PayMonthlyPremium collects the next monthly premium.
//
// Checks run in order: the subscriber is authorized, has a subscription
// that is not expired, supplies exactly the premium and pays no earlier
// than three days before the due date.
func (l *Ledger) PayMonthlyPremium(ctx context.Context, subscriberID string, amount types.Money) (*subscription.Subscription, error) {
	if err := l.authorize(ctx, subscriberID); err != nil {
		return nil, err
	}

	unlock, err := l.lockSubscriber(ctx, subscriberID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	cur, err := l.store.GetSubscription(ctx, subscriberID)
	if err != nil {
		return nil, err
	}
	if cur.Status == subscription.StatusExpired {
		return nil, ErrPolicyExpired
	}
	if !amount.Equal(cur.Premium) {
		return nil, ErrIncorrectAmount
	}

	now := l.clock.Now()
	if !cur.IsPaymentDue(now) {
		return nil, ErrPaymentNotYetDue
	}

	next := cur.ApplyPayment(amount, now)
	if !subscription.CanTransition(cur.Status, next.Status) {
		return nil, ErrInvalidTransition
	}

	receipt, err := l.transfer(ctx, next, amount)
	if err != nil {
		return nil, err
	}

	rec := next.Record(amount, now, receipt.ID.String())
	if err := l.store.RecordPayment(ctx, next, cur.MonthsPaid, rec); err != nil {
		return nil, l.compensate(ctx, receipt, err)
	}

	l.logger.Info("premium paid",
		"subscriber_id", subscriberID,
		"month", next.MonthsPaid,
		"next_due", next.NextDueDate,
	)

	l.premiumPaid(ctx, next, rec)

	if l.reactivation == ReactivateAlways ||
		(cur.Status == subscription.StatusSuspended && next.Status == subscription.StatusActive) {
		l.record(ctx, l.newEvent(event.TypePolicyReactivated, next, next.MonthsPaid))
		l.plugins.EmitPolicyReactivated(ctx, next)
	}
	if next.Status == subscription.StatusExpired {
		l.expired(ctx, next)
	}

	return next.Clone(), nil
}

// GetSubscription returns the subscriber's subscription or ErrNoSubscription.
func (l *Ledger) GetSubscription(ctx context.Context, subscriberID string) (*subscription.Subscription, error) {
	return l.store.GetSubscription(ctx, subscriberID)
}

// ListSubscriptions lists stored subscriptions.
func (l *Ledger) ListSubscriptions(ctx context.Context, opts subscription.ListOpts) ([]*subscription.Subscription, error) {
	return l.store.ListSubscriptions(ctx, opts)
}

// SubscriptionCount returns the number of subscriptions ever created.
func (l *Ledger) SubscriptionCount(ctx context.Context) (int64, error) {
	return l.store.CountSubscriptions(ctx)
}

// GetPaymentHistory returns the subscriber's journal, oldest first. It is
// empty, not an error, for unknown subscribers.
func (l *Ledger) GetPaymentHistory(ctx context.Context, subscriberID string) ([]*payment.Record, error) {
	return l.store.ListPayments(ctx, subscriberID)
}

// ──────────────────────────────────────────────────
// Status reconciliation
// ──────────────────────────────────────────────────

// CheckPaymentStatus recomputes the subscriber's status pair from the
// current time. It writes only when the pair changes and is a no-op for
// unknown or expired subscribers, so it is safe to call repeatedly.
func (l *Ledger) CheckPaymentStatus(ctx context.Context, subscriberID string) error {
	_, err := l.reconcile(ctx, subscriberID)
	return err
}

// outcome reports what a single reconciliation did.
type outcome struct {
	Changed bool
	From    subscription.Assessment
	To      subscription.Assessment
}

func (l *Ledger) reconcile(ctx context.Context, subscriberID string) (outcome, error) {
	unlock, err := l.lockSubscriber(ctx, subscriberID)
	if err != nil {
		return outcome{}, err
	}
	defer unlock()

	cur, err := l.store.GetSubscription(ctx, subscriberID)
	if errors.Is(err, ErrNoSubscription) {
		return outcome{}, nil
	}
	if err != nil {
		return outcome{}, err
	}

	from := cur.Current()
	if cur.Status == subscription.StatusExpired {
		return outcome{From: from, To: from}, nil
	}

	now := l.clock.Now()
	to := cur.Assess(now)
	if to == from {
		return outcome{From: from, To: to}, nil
	}

	if err := l.store.UpdateStatus(ctx, subscription.StatusChange{
		SubscriberID: subscriberID,
		MonthsPaid:   cur.MonthsPaid,
		From:         from,
		To:           to,
		At:           now,
	}); err != nil {
		return outcome{}, err
	}

	next := cur.Clone()
	next.Status, next.PaymentStatus = to.Status, to.PaymentStatus
	next.Touch(now)

	l.logger.Debug("subscription status changed",
		"subscriber_id", subscriberID,
		"from_status", from.Status,
		"to_status", to.Status,
		"payment_status", to.PaymentStatus,
	)

	switch {
	case to.Status == subscription.StatusSuspended && from.Status != subscription.StatusSuspended:
		l.record(ctx, l.newEvent(event.TypePolicySuspended, next, next.MonthsPaid))
		l.plugins.EmitPolicySuspended(ctx, next)
	case to.Status == subscription.StatusExpired:
		l.expired(ctx, next)
	}

	return outcome{Changed: true, From: from, To: to}, nil
}

// ReconcileResult summarizes a ReconcileAll pass.
type ReconcileResult struct {
	Checked   int
	Changed   int
	Suspended int
	Expired   int
	Failed    int
}

// ReconcileAll runs CheckPaymentStatus for every subscription that is not
// yet expired. Individual failures are logged and counted; the returned
// error is the first one seen.
func (l *Ledger) ReconcileAll(ctx context.Context) (ReconcileResult, error) {
	subs, err := l.store.ListSubscriptions(ctx, subscription.ListOpts{ExcludeExpired: true})
	if err != nil {
		return ReconcileResult{}, err
	}

	var (
		res   ReconcileResult
		first error
	)
	for _, s := range subs {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		res.Checked++
		out, err := l.reconcile(ctx, s.SubscriberID)
		if err != nil {
			res.Failed++
			if first == nil {
				first = err
			}
			l.logger.Warn("reconcile failed", "subscriber_id", s.SubscriberID, "error", err)
			continue
		}
		if !out.Changed {
			continue
		}
		res.Changed++
		switch out.To.Status {
		case subscription.StatusSuspended:
			if out.From.Status != subscription.StatusSuspended {
				res.Suspended++
			}
		case subscription.StatusExpired:
			res.Expired++
		}
	}

	return res, first
}

// IsPaymentDue reports whether the subscriber is inside or past the
// pre-due window. It is false without a subscription.
func (l *Ledger) IsPaymentDue(ctx context.Context, subscriberID string) (bool, error) {
	sub, err := l.store.GetSubscription(ctx, subscriberID)
	if errors.Is(err, ErrNoSubscription) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return sub.IsPaymentDue(l.clock.Now()), nil
}

// GetDaysUntilDue returns whole days until the next due date, floored. It
// is 0 when past due or without a subscription.
func (l *Ledger) GetDaysUntilDue(ctx context.Context, subscriberID string) (int64, error) {
	sub, err := l.store.GetSubscription(ctx, subscriberID)
	if errors.Is(err, ErrNoSubscription) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return sub.DaysUntilDue(l.clock.Now()), nil
}

// ──────────────────────────────────────────────────
// Event log
// ──────────────────────────────────────────────────

// Events lists logged domain events in sequence order.
func (l *Ledger) Events(ctx context.Context, opts event.ListOpts) ([]*event.Event, error) {
	return l.store.ListEvents(ctx, opts)
}

// ──────────────────────────────────────────────────
// Internals
// ──────────────────────────────────────────────────

func (l *Ledger) authorize(ctx context.Context, subscriberID string) error {
	if subscriberID == "" {
		return ValidationError{Field: "subscriber_id", Message: "must not be empty"}
	}
	ok, err := l.authorizer.IsAuthorized(ctx, subscriberID)
	if err != nil {
		return fmt.Errorf("premium: identity lookup: %w", err)
	}
	if !ok {
		return ErrUnauthorized
	}
	return nil
}

func (l *Ledger) lockSubscriber(ctx context.Context, subscriberID string) (func(), error) {
	return l.locker.Lock(ctx, subscriberLockPfx+subscriberID)
}

// transfer moves the staged subscription's latest premium to the sink.
func (l *Ledger) transfer(ctx context.Context, sub *subscription.Subscription, amount types.Money) (payout.Receipt, error) {
	t := payout.Transfer{
		Key:          payout.Key(sub.SubscriberID, sub.MonthsPaid),
		SubscriberID: sub.SubscriberID,
		Month:        sub.MonthsPaid,
		Amount:       amount,
	}

	r, err := l.sink.Transfer(ctx, t)
	if err != nil {
		l.logger.Warn("payout transfer failed",
			"subscriber_id", sub.SubscriberID,
			"month", sub.MonthsPaid,
			"error", err,
		)
		l.plugins.EmitTransferFailed(ctx, t, err)
		return payout.Receipt{}, fmt.Errorf("%w: %w", ErrTransferFailed, err)
	}
	return r, nil
}

// compensate reverses a transfer whose store commit failed and returns the
// commit error, joined with the reversal error if that failed too.
func (l *Ledger) compensate(ctx context.Context, r payout.Receipt, cause error) error {
	rctx := context.WithoutCancel(ctx)
	if err := l.sink.Reverse(rctx, r); err != nil {
		l.logger.Error("payout reversal failed",
			"transfer_id", r.ID.String(),
			"key", r.Key,
			"cause", cause,
			"error", err,
		)
		return errors.Join(cause, fmt.Errorf("premium: reverse transfer %s: %w", r.Key, err))
	}

	l.logger.Warn("payout transfer reversed", "key", r.Key, "cause", cause)
	l.plugins.EmitTransferReversed(rctx, r, cause)
	return cause
}

func (l *Ledger) premiumPaid(ctx context.Context, sub *subscription.Subscription, rec *payment.Record) {
	l.record(ctx, l.newEvent(event.TypeMonthlyPremiumPaid, sub, rec.MonthNumber))
	l.plugins.EmitPremiumPaid(ctx, sub, rec)
}

func (l *Ledger) expired(ctx context.Context, sub *subscription.Subscription) {
	l.record(ctx, l.newEvent(event.TypePolicyExpired, sub, sub.MonthsPaid))
	l.plugins.EmitPolicyExpired(ctx, sub)
}

func (l *Ledger) newEvent(t event.Type, sub *subscription.Subscription, month int) *event.Event {
	return &event.Event{
		Type:         t,
		SubscriberID: sub.SubscriberID,
		PolicyID:     sub.PolicyID,
		PolicyName:   sub.PolicyName,
		Month:        month,
		Amount:       sub.Premium,
	}
}

// record appends e to the event log and forwards it to OnEvent plugins.
// The state change it describes is already committed, so a failed append
// is logged rather than returned.
func (l *Ledger) record(ctx context.Context, e *event.Event) {
	e.ID = id.NewEventID()
	e.OccurredAt = l.clock.Now()

	if err := l.store.AppendEvent(ctx, e); err != nil {
		l.logger.Error("event append failed",
			"type", e.Type,
			"subscriber_id", e.SubscriberID,
			"error", err,
		)
		return
	}
	l.plugins.EmitEvent(ctx, e)
}
