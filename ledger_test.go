package premium_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"github.com/xraph/premium"
	"github.com/xraph/premium/clock"
	"github.com/xraph/premium/event"
	"github.com/xraph/premium/identity"
	identitymocks "github.com/xraph/premium/identity/mocks"
	"github.com/xraph/premium/payment"
	"github.com/xraph/premium/payout"
	payoutmocks "github.com/xraph/premium/payout/mocks"
	"github.com/xraph/premium/policy"
	"github.com/xraph/premium/store/memory"
	"github.com/xraph/premium/subscription"
	"github.com/xraph/premium/types"
)

const day = subscription.Day

var t0 = time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

type LedgerSuite struct {
	suite.Suite
	ctrl     *gomock.Controller
	ctx      context.Context
	clock    *clock.Mock
	store    *memory.Store
	treasury *payout.Treasury
	ledger   *premium.Ledger
	policyID int64
}

func TestLedgerSuite(t *testing.T) {
	suite.Run(t, new(LedgerSuite))
}

func (s *LedgerSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.ctx = context.Background()
	s.clock = clock.NewMock(t0)
	s.store = memory.New()
	s.treasury = payout.NewTreasury()
	s.ledger = s.newLedger()
	s.policyID = s.createPolicy(s.ledger, 100)
}

func (s *LedgerSuite) newLedger(opts ...premium.Option) *premium.Ledger {
	base := []premium.Option{
		premium.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		premium.WithClock(s.clock),
		premium.WithPayoutSink(s.treasury),
		premium.WithAdmin("admin"),
	}
	return premium.New(s.store, append(base, opts...)...)
}

func (s *LedgerSuite) createPolicy(l *premium.Ledger, premiumCents int64) int64 {
	adminCtx := premium.WithActor(s.ctx, premium.Actor{ID: "admin"})
	id, err := l.CreatePolicy(adminCtx, policy.Input{
		Name:          "Basic Health",
		CoverageLimit: types.USD(1_000_000),
		Premium:       types.USD(premiumCents),
		ValidityYears: 1,
	})
	s.Require().NoError(err)
	return id
}

func (s *LedgerSuite) at(d time.Duration) {
	s.clock.Set(t0.Add(d))
}

func (s *LedgerSuite) eventTypes(subscriberID string) []event.Type {
	events, err := s.ledger.Events(s.ctx, event.ListOpts{SubscriberID: subscriberID})
	s.Require().NoError(err)
	got := make([]event.Type, len(events))
	for i, e := range events {
		got[i] = e.Type
	}
	return got
}

// ──────────────────────────────────────────────────
// Catalog
// ──────────────────────────────────────────────────

func (s *LedgerSuite) TestCreatePolicyAssignsSequentialIDs() {
	second := s.createPolicy(s.ledger, 250)
	s.Equal(int64(1), s.policyID)
	s.Equal(int64(2), second)

	ids, err := s.ledger.GetAllPolicyIDs(s.ctx)
	s.Require().NoError(err)
	s.Equal([]int64{1, 2}, ids)

	p, err := s.ledger.GetPolicy(s.ctx, second)
	s.Require().NoError(err)
	s.True(p.Exists())
	s.Equal(policy.StatusActive, p.Status)
	s.Equal(types.USD(250), p.Premium)
	s.Equal(t0, p.CreatedAt)
}

func (s *LedgerSuite) TestCreatePolicyRequiresAdmin() {
	for _, ctx := range []context.Context{
		s.ctx,
		premium.WithActor(s.ctx, premium.Actor{ID: "alice"}),
	} {
		_, err := s.ledger.CreatePolicy(ctx, policy.Input{Name: "Rogue"})
		s.ErrorIs(err, premium.ErrUnauthorized)
	}

	ids, err := s.ledger.GetAllPolicyIDs(s.ctx)
	s.Require().NoError(err)
	s.Len(ids, 1)
}

func (s *LedgerSuite) TestGetPolicyUnknownReturnsZeroValue() {
	p, err := s.ledger.GetPolicy(s.ctx, 42)
	s.Require().NoError(err)
	s.False(p.Exists())
	s.Empty(p.Name)
}

func (s *LedgerSuite) TestCreatePolicyEmitsEvent() {
	events, err := s.ledger.Events(s.ctx, event.ListOpts{})
	s.Require().NoError(err)
	s.Require().Len(events, 1)
	s.Equal(event.TypePolicyCreated, events[0].Type)
	s.Equal(int64(1), events[0].PolicyID)
	s.Equal("Basic Health", events[0].PolicyName)
	s.Equal(int64(1), events[0].Seq)
}

// ──────────────────────────────────────────────────
// Subscribe
// ──────────────────────────────────────────────────

func (s *LedgerSuite) TestSubscribe() {
	sub, err := s.ledger.Subscribe(s.ctx, "alice", s.policyID, types.USD(100))
	s.Require().NoError(err)

	s.Equal(subscription.StatusActive, sub.Status)
	s.Equal(payment.StatusPaid, sub.PaymentStatus)
	s.Equal(1, sub.MonthsPaid)
	s.Equal(t0, sub.StartDate)
	s.Equal(t0.Add(30*day), sub.NextDueDate)
	s.Equal(t0.Add(365*day), sub.EndDate)
	s.Equal(types.USD(100), sub.TotalPaid)

	history, err := s.ledger.GetPaymentHistory(s.ctx, "alice")
	s.Require().NoError(err)
	s.Require().Len(history, 1)
	s.Equal(1, history[0].MonthNumber)
	s.NotEmpty(history[0].TransferRef)

	count, err := s.ledger.SubscriptionCount(s.ctx)
	s.Require().NoError(err)
	s.Equal(int64(1), count)

	s.Equal(types.USD(100), s.treasury.Balance("usd"))
	s.Equal([]event.Type{event.TypePolicySubscribed, event.TypeMonthlyPremiumPaid}, s.eventTypes("alice"))
}

func (s *LedgerSuite) TestSubscribeRejections() {
	_, err := s.ledger.Subscribe(s.ctx, "bob", s.policyID, types.USD(100))
	s.Require().NoError(err)

	tests := []struct {
		name       string
		subscriber string
		policyID   int64
		amount     types.Money
		want       error
	}{
		{"already subscribed", "bob", s.policyID, types.USD(100), premium.ErrAlreadySubscribed},
		{"already subscribed wins over bad policy", "bob", 99, types.USD(1), premium.ErrAlreadySubscribed},
		{"policy zero", "alice", 0, types.USD(100), premium.ErrInvalidPolicyID},
		{"policy past last", "alice", 2, types.USD(100), premium.ErrInvalidPolicyID},
		{"underpayment", "alice", s.policyID, types.USD(99), premium.ErrIncorrectAmount},
		{"overpayment", "alice", s.policyID, types.USD(101), premium.ErrIncorrectAmount},
		{"wrong currency", "alice", s.policyID, types.EUR(100), premium.ErrIncorrectAmount},
		{"empty subscriber", "", s.policyID, types.USD(100), premium.ErrInvalidInput},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			_, err := s.ledger.Subscribe(s.ctx, tt.subscriber, tt.policyID, tt.amount)
			s.ErrorIs(err, tt.want)
		})
	}

	_, err = s.ledger.GetSubscription(s.ctx, "alice")
	s.ErrorIs(err, premium.ErrNoSubscription)
	s.Equal(types.USD(100), s.treasury.Balance("usd"))
}

func (s *LedgerSuite) TestSubscribeRequiresAuthorizedIdentity() {
	registry := identity.NewRegistry()
	registry.Approve("carol", false)
	l := s.newLedger(premium.WithAuthorizer(registry))

	_, err := l.Subscribe(s.ctx, "carol", s.policyID, types.USD(100))
	s.ErrorIs(err, premium.ErrUnauthorized)

	s.True(registry.Verify("carol"))
	_, err = l.Subscribe(s.ctx, "carol", s.policyID, types.USD(100))
	s.NoError(err)
}

func (s *LedgerSuite) TestAuthorizerErrorIsPropagated() {
	auth := identitymocks.NewMockAuthorizer(s.ctrl)
	boom := errors.New("directory unavailable")
	auth.EXPECT().IsAuthorized(gomock.Any(), "alice").Return(false, boom)

	l := s.newLedger(premium.WithAuthorizer(auth))
	_, err := l.Subscribe(s.ctx, "alice", s.policyID, types.USD(100))
	s.ErrorIs(err, boom)
}

func (s *LedgerSuite) TestSubscribeTransferFailureLeavesNoState() {
	sink := payoutmocks.NewMockSink(s.ctrl)
	sink.EXPECT().Transfer(gomock.Any(), gomock.Any()).Return(payout.Receipt{}, payout.ErrDeclined)

	l := s.newLedger(premium.WithPayoutSink(sink))
	_, err := l.Subscribe(s.ctx, "alice", s.policyID, types.USD(100))
	s.ErrorIs(err, premium.ErrTransferFailed)
	s.ErrorIs(err, payout.ErrDeclined)

	_, err = l.GetSubscription(s.ctx, "alice")
	s.ErrorIs(err, premium.ErrNoSubscription)
	s.Empty(s.eventTypes("alice"))
}

func (s *LedgerSuite) TestSubscribeCommitFailureReversesTransfer() {
	commitErr := errors.New("disk full")
	st := &failingStore{Store: s.store, createErr: commitErr}
	receipt := payout.Receipt{Key: payout.Key("alice", 1), Amount: types.USD(100)}

	sink := payoutmocks.NewMockSink(s.ctrl)
	gomock.InOrder(
		sink.EXPECT().Transfer(gomock.Any(), payout.Transfer{
			Key:          payout.Key("alice", 1),
			SubscriberID: "alice",
			Month:        1,
			Amount:       types.USD(100),
		}).Return(receipt, nil),
		sink.EXPECT().Reverse(gomock.Any(), receipt).Return(nil),
	)

	l := premium.New(st,
		premium.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		premium.WithClock(s.clock),
		premium.WithPayoutSink(sink),
	)
	_, err := l.Subscribe(s.ctx, "alice", s.policyID, types.USD(100))
	s.ErrorIs(err, commitErr)
	s.Empty(s.eventTypes("alice"))
}

func (s *LedgerSuite) TestFailedReversalIsReported() {
	commitErr := errors.New("disk full")
	reverseErr := errors.New("sink offline")
	st := &failingStore{Store: s.store, createErr: commitErr}

	sink := payoutmocks.NewMockSink(s.ctrl)
	sink.EXPECT().Transfer(gomock.Any(), gomock.Any()).Return(payout.Receipt{Key: "alice:1"}, nil)
	sink.EXPECT().Reverse(gomock.Any(), gomock.Any()).Return(reverseErr)

	l := premium.New(st,
		premium.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		premium.WithClock(s.clock),
		premium.WithPayoutSink(sink),
	)
	_, err := l.Subscribe(s.ctx, "alice", s.policyID, types.USD(100))
	s.ErrorIs(err, commitErr)
	s.ErrorIs(err, reverseErr)
}

// ──────────────────────────────────────────────────
// PayMonthlyPremium
// ──────────────────────────────────────────────────

func (s *LedgerSuite) TestPayMonthlyPremium() {
	_, err := s.ledger.Subscribe(s.ctx, "alice", s.policyID, types.USD(100))
	s.Require().NoError(err)

	s.at(25 * day)
	_, err = s.ledger.PayMonthlyPremium(s.ctx, "alice", types.USD(100))
	s.ErrorIs(err, premium.ErrPaymentNotYetDue)

	s.at(27 * day)
	sub, err := s.ledger.PayMonthlyPremium(s.ctx, "alice", types.USD(100))
	s.Require().NoError(err)

	s.Equal(2, sub.MonthsPaid)
	s.Equal(t0.Add(60*day), sub.NextDueDate)
	s.Equal(sub.StartDate.Add(time.Duration(sub.MonthsPaid)*subscription.BillingCycle), sub.NextDueDate)
	s.Equal(types.USD(200), sub.TotalPaid)
	s.Equal(subscription.StatusActive, sub.Status)
	s.Equal(payment.StatusPaid, sub.PaymentStatus)

	history, err := s.ledger.GetPaymentHistory(s.ctx, "alice")
	s.Require().NoError(err)
	s.Len(history, sub.MonthsPaid)
	s.Equal(2, history[1].MonthNumber)
	s.Equal(t0.Add(27*day), history[1].PaidOn)

	s.Equal(types.USD(200), s.treasury.Balance("usd"))
	s.NotContains(s.eventTypes("alice"), event.TypePolicyReactivated)
}

func (s *LedgerSuite) TestPayMonthlyPremiumRejections() {
	_, err := s.ledger.PayMonthlyPremium(s.ctx, "nobody", types.USD(100))
	s.ErrorIs(err, premium.ErrNoSubscription)

	_, err = s.ledger.Subscribe(s.ctx, "alice", s.policyID, types.USD(100))
	s.Require().NoError(err)
	s.at(28 * day)

	for _, amount := range []types.Money{types.USD(0), types.USD(99), types.USD(101), types.EUR(100)} {
		_, err := s.ledger.PayMonthlyPremium(s.ctx, "alice", amount)
		s.ErrorIs(err, premium.ErrIncorrectAmount, amount.String())
	}

	sub, err := s.ledger.GetSubscription(s.ctx, "alice")
	s.Require().NoError(err)
	s.Equal(1, sub.MonthsPaid)
	s.Equal(types.USD(100), sub.TotalPaid)
}

func (s *LedgerSuite) TestPaymentAfterEndDateExpires() {
	_, err := s.ledger.Subscribe(s.ctx, "alice", s.policyID, types.USD(100))
	s.Require().NoError(err)

	s.at(365 * day)
	sub, err := s.ledger.PayMonthlyPremium(s.ctx, "alice", types.USD(100))
	s.Require().NoError(err)
	s.Equal(subscription.StatusExpired, sub.Status)
	s.Equal(payment.StatusExpired, sub.PaymentStatus)
	s.Contains(s.eventTypes("alice"), event.TypePolicyExpired)

	_, err = s.ledger.PayMonthlyPremium(s.ctx, "alice", types.USD(100))
	s.ErrorIs(err, premium.ErrPolicyExpired)
}

func (s *LedgerSuite) TestConcurrentPaymentsApplyOnce() {
	_, err := s.ledger.Subscribe(s.ctx, "alice", s.policyID, types.USD(100))
	s.Require().NoError(err)
	s.at(28 * day)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
	)
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.ledger.PayMonthlyPremium(s.ctx, "alice", types.USD(100)); err == nil {
				mu.Lock()
				accepted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	s.Equal(1, accepted)
	history, err := s.ledger.GetPaymentHistory(s.ctx, "alice")
	s.Require().NoError(err)
	s.Len(history, 2)
	s.Equal(types.USD(200), s.treasury.Balance("usd"))
}

func (s *LedgerSuite) TestPaymentCommitConflictReversesTransfer() {
	_, err := s.ledger.Subscribe(s.ctx, "alice", s.policyID, types.USD(100))
	s.Require().NoError(err)
	s.at(28 * day)

	st := &failingStore{Store: s.store, recordErr: premium.ErrConcurrentUpdate}
	l := premium.New(st,
		premium.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		premium.WithClock(s.clock),
		premium.WithPayoutSink(s.treasury),
	)

	_, err = l.PayMonthlyPremium(s.ctx, "alice", types.USD(100))
	s.ErrorIs(err, premium.ErrConcurrentUpdate)
	s.True(premium.IsRetryable(err))
	s.Equal(types.USD(100), s.treasury.Balance("usd"))
	s.Equal(1, s.treasury.Transfers())
}

// ──────────────────────────────────────────────────
// Status reconciliation
// ──────────────────────────────────────────────────

func (s *LedgerSuite) TestSuspensionAndReactivation() {
	_, err := s.ledger.Subscribe(s.ctx, "alice", s.policyID, types.USD(100))
	s.Require().NoError(err)

	s.at(40 * day)
	s.Require().NoError(s.ledger.CheckPaymentStatus(s.ctx, "alice"))
	s.Require().NoError(s.ledger.CheckPaymentStatus(s.ctx, "alice"))

	sub, err := s.ledger.GetSubscription(s.ctx, "alice")
	s.Require().NoError(err)
	s.Equal(subscription.StatusSuspended, sub.Status)
	s.Equal(payment.StatusOverdue, sub.PaymentStatus)

	sub, err = s.ledger.PayMonthlyPremium(s.ctx, "alice", types.USD(100))
	s.Require().NoError(err)
	s.Equal(subscription.StatusActive, sub.Status)
	s.Equal(payment.StatusPaid, sub.PaymentStatus)

	s.Equal([]event.Type{
		event.TypePolicySubscribed,
		event.TypeMonthlyPremiumPaid,
		event.TypePolicySuspended,
		event.TypeMonthlyPremiumPaid,
		event.TypePolicyReactivated,
	}, s.eventTypes("alice"))
}

func (s *LedgerSuite) TestReactivateAlwaysMode() {
	l := s.newLedger(premium.WithReactivationMode(premium.ReactivateAlways))
	_, err := l.Subscribe(s.ctx, "alice", s.policyID, types.USD(100))
	s.Require().NoError(err)

	s.at(27 * day)
	_, err = l.PayMonthlyPremium(s.ctx, "alice", types.USD(100))
	s.Require().NoError(err)
	s.Contains(s.eventTypes("alice"), event.TypePolicyReactivated)
}

func (s *LedgerSuite) TestCheckPaymentStatusTimeline() {
	_, err := s.ledger.Subscribe(s.ctx, "alice", s.policyID, types.USD(100))
	s.Require().NoError(err)

	steps := []struct {
		at     time.Duration
		status subscription.Status
		pay    payment.Status
	}{
		{10 * day, subscription.StatusActive, payment.StatusPaid},
		{27 * day, subscription.StatusActive, payment.StatusDue},
		{37 * day, subscription.StatusActive, payment.StatusDue},
		{38 * day, subscription.StatusSuspended, payment.StatusOverdue},
		{370 * day, subscription.StatusExpired, payment.StatusExpired},
	}

	for _, step := range steps {
		s.at(step.at)
		s.Require().NoError(s.ledger.CheckPaymentStatus(s.ctx, "alice"))
		sub, err := s.ledger.GetSubscription(s.ctx, "alice")
		s.Require().NoError(err)
		s.Equal(step.status, sub.Status, "at %v", step.at)
		s.Equal(step.pay, sub.PaymentStatus, "at %v", step.at)
	}
}

func (s *LedgerSuite) TestExpiryIsTerminal() {
	_, err := s.ledger.Subscribe(s.ctx, "alice", s.policyID, types.USD(100))
	s.Require().NoError(err)

	s.at(370 * day)
	s.Require().NoError(s.ledger.CheckPaymentStatus(s.ctx, "alice"))

	_, err = s.ledger.PayMonthlyPremium(s.ctx, "alice", types.USD(100))
	s.ErrorIs(err, premium.ErrPolicyExpired)

	s.at(10 * day)
	s.Require().NoError(s.ledger.CheckPaymentStatus(s.ctx, "alice"))
	sub, err := s.ledger.GetSubscription(s.ctx, "alice")
	s.Require().NoError(err)
	s.Equal(subscription.StatusExpired, sub.Status)

	_, err = s.ledger.Subscribe(s.ctx, "alice", s.policyID, types.USD(100))
	s.ErrorIs(err, premium.ErrAlreadySubscribed)

	got := s.eventTypes("alice")
	s.Equal(event.TypePolicyExpired, got[len(got)-1])
}

func (s *LedgerSuite) TestCheckPaymentStatusUnknownSubscriberIsNoop() {
	s.NoError(s.ledger.CheckPaymentStatus(s.ctx, "ghost"))
	s.Empty(s.eventTypes("ghost"))
}

func (s *LedgerSuite) TestDueQueries() {
	due, err := s.ledger.IsPaymentDue(s.ctx, "ghost")
	s.Require().NoError(err)
	s.False(due)
	days, err := s.ledger.GetDaysUntilDue(s.ctx, "ghost")
	s.Require().NoError(err)
	s.Zero(days)

	_, err = s.ledger.Subscribe(s.ctx, "alice", s.policyID, types.USD(100))
	s.Require().NoError(err)

	s.at(10*day + 6*time.Hour)
	days, err = s.ledger.GetDaysUntilDue(s.ctx, "alice")
	s.Require().NoError(err)
	s.Equal(int64(19), days)
	due, err = s.ledger.IsPaymentDue(s.ctx, "alice")
	s.Require().NoError(err)
	s.False(due)

	s.at(45 * day)
	days, err = s.ledger.GetDaysUntilDue(s.ctx, "alice")
	s.Require().NoError(err)
	s.Zero(days)
	due, err = s.ledger.IsPaymentDue(s.ctx, "alice")
	s.Require().NoError(err)
	s.True(due)
}

func (s *LedgerSuite) TestReconcileAll() {
	_, err := s.ledger.Subscribe(s.ctx, "alice", s.policyID, types.USD(100))
	s.Require().NoError(err)
	s.at(20 * day)
	_, err = s.ledger.Subscribe(s.ctx, "bob", s.policyID, types.USD(100))
	s.Require().NoError(err)

	s.at(40 * day)
	res, err := s.ledger.ReconcileAll(s.ctx)
	s.Require().NoError(err)
	s.Equal(premium.ReconcileResult{Checked: 2, Changed: 1, Suspended: 1}, res)

	res, err = s.ledger.ReconcileAll(s.ctx)
	s.Require().NoError(err)
	s.Equal(0, res.Changed)

	s.at(400 * day)
	res, err = s.ledger.ReconcileAll(s.ctx)
	s.Require().NoError(err)
	s.Equal(2, res.Expired)

	res, err = s.ledger.ReconcileAll(s.ctx)
	s.Require().NoError(err)
	s.Zero(res.Checked)
}

func (s *LedgerSuite) TestPluginsReceiveHooks() {
	rec := &hookRecorder{}
	l := s.newLedger(premium.WithPlugin(rec))
	_, err := l.Subscribe(s.ctx, "alice", s.policyID, types.USD(100))
	s.Require().NoError(err)

	s.at(40 * day)
	s.Require().NoError(l.CheckPaymentStatus(s.ctx, "alice"))

	s.Equal([]string{"subscribed:alice", "paid:alice:1", "suspended:alice"}, rec.calls())
}

// ──────────────────────────────────────────────────
// Helpers
// ──────────────────────────────────────────────────

type failingStore struct {
	*memory.Store
	createErr error
	recordErr error
}

func (f *failingStore) CreateSubscription(ctx context.Context, sub *subscription.Subscription, first *payment.Record) error {
	if f.createErr != nil {
		return f.createErr
	}
	return f.Store.CreateSubscription(ctx, sub, first)
}

func (f *failingStore) RecordPayment(ctx context.Context, sub *subscription.Subscription, expected int, rec *payment.Record) error {
	if f.recordErr != nil {
		return f.recordErr
	}
	return f.Store.RecordPayment(ctx, sub, expected, rec)
}

type hookRecorder struct {
	mu  sync.Mutex
	log []string
}

func (h *hookRecorder) Name() string { return "recorder" }

func (h *hookRecorder) add(s string) {
	h.mu.Lock()
	h.log = append(h.log, s)
	h.mu.Unlock()
}

func (h *hookRecorder) calls() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.log...)
}

func (h *hookRecorder) OnPolicySubscribed(_ context.Context, sub *subscription.Subscription) error {
	h.add("subscribed:" + sub.SubscriberID)
	return nil
}

func (h *hookRecorder) OnPremiumPaid(_ context.Context, sub *subscription.Subscription, rec *payment.Record) error {
	h.add("paid:" + sub.SubscriberID + ":" + strconv.Itoa(rec.MonthNumber))
	return nil
}

func (h *hookRecorder) OnPolicySuspended(_ context.Context, sub *subscription.Subscription) error {
	h.add("suspended:" + sub.SubscriberID)
	return nil
}
