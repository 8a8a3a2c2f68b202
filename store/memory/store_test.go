package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/premium"
	"github.com/xraph/premium/event"
	"github.com/xraph/premium/payment"
	"github.com/xraph/premium/policy"
	"github.com/xraph/premium/store/memory"
	"github.com/xraph/premium/subscription"
	"github.com/xraph/premium/types"
)

var t0 = time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

func seed(t *testing.T, s *memory.Store, subscribers ...string) *policy.Policy {
	t.Helper()
	ctx := context.Background()

	p := policy.Input{Name: "Travel", Premium: types.USD(250), ValidityYears: 1}.Build(1, t0)
	require.NoError(t, s.CreatePolicy(ctx, p))

	for _, who := range subscribers {
		sub := subscription.New(who, p, t0)
		require.NoError(t, s.CreateSubscription(ctx, sub, sub.Record(p.Premium, t0, "trf")))
	}
	return p
}

func TestCreatePolicyRequiresNextID(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	seed(t, s)

	gap := policy.Input{Name: "Gap"}.Build(3, t0)
	assert.ErrorIs(t, s.CreatePolicy(ctx, gap), premium.ErrConcurrentUpdate)

	last, err := s.LastPolicyID(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), last)

	_, err = s.GetPolicy(ctx, 2)
	assert.ErrorIs(t, err, premium.ErrPolicyNotFound)
}

func TestCreateSubscriptionRejectsDuplicate(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	p := seed(t, s, "amy")

	again := subscription.New("amy", p, t0)
	err := s.CreateSubscription(ctx, again, again.Record(p.Premium, t0, "trf"))
	assert.ErrorIs(t, err, premium.ErrAlreadySubscribed)

	journal, err := s.ListPayments(ctx, "amy")
	require.NoError(t, err)
	assert.Len(t, journal, 1)
}

func TestRecordPaymentGuardsMonthsPaid(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	p := seed(t, s, "amy")

	cur, err := s.GetSubscription(ctx, "amy")
	require.NoError(t, err)

	now := t0.Add(28 * subscription.Day)
	next := cur.ApplyPayment(p.Premium, now)
	rec := next.Record(p.Premium, now, "trf-2")

	require.NoError(t, s.RecordPayment(ctx, next, cur.MonthsPaid, rec))
	assert.ErrorIs(t, s.RecordPayment(ctx, next, cur.MonthsPaid, rec), premium.ErrConcurrentUpdate)

	journal, err := s.ListPayments(ctx, "amy")
	require.NoError(t, err)
	require.Len(t, journal, 2)
	assert.Equal(t, 2, journal[1].MonthNumber)

	stored, err := s.GetSubscription(ctx, "amy")
	require.NoError(t, err)
	assert.Equal(t, 2, stored.MonthsPaid)
}

func TestUpdateStatusIsCompareAndSet(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	seed(t, s, "amy")

	active := subscription.Assessment{Status: subscription.StatusActive, PaymentStatus: payment.StatusPaid}
	suspended := subscription.Assessment{Status: subscription.StatusSuspended, PaymentStatus: payment.StatusOverdue}

	change := subscription.StatusChange{
		SubscriberID: "amy",
		MonthsPaid:   1,
		From:         active,
		To:           suspended,
		At:           t0.Add(40 * subscription.Day),
	}
	require.NoError(t, s.UpdateStatus(ctx, change))
	assert.ErrorIs(t, s.UpdateStatus(ctx, change), premium.ErrConcurrentUpdate)

	change.SubscriberID = "nobody"
	assert.ErrorIs(t, s.UpdateStatus(ctx, change), premium.ErrNoSubscription)

	sub, err := s.GetSubscription(ctx, "amy")
	require.NoError(t, err)
	assert.Equal(t, suspended, sub.Current())
}

func TestUpdateStatusRejectsLeavingExpired(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	seed(t, s, "amy")

	expired := subscription.Assessment{Status: subscription.StatusExpired, PaymentStatus: payment.StatusExpired}
	active := subscription.Assessment{Status: subscription.StatusActive, PaymentStatus: payment.StatusPaid}

	require.NoError(t, s.UpdateStatus(ctx, subscription.StatusChange{
		SubscriberID: "amy", MonthsPaid: 1, From: active, To: expired, At: t0,
	}))

	err := s.UpdateStatus(ctx, subscription.StatusChange{
		SubscriberID: "amy", MonthsPaid: 1, From: expired, To: active, At: t0,
	})
	assert.ErrorIs(t, err, premium.ErrInvalidTransition)

	sub, err := s.GetSubscription(ctx, "amy")
	require.NoError(t, err)
	assert.Equal(t, expired, sub.Current())
}

func TestListSubscriptionsFilters(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	seed(t, s, "cy", "amy", "bo")

	require.NoError(t, s.UpdateStatus(ctx, subscription.StatusChange{
		SubscriberID: "bo",
		MonthsPaid:   1,
		From:         subscription.Assessment{Status: subscription.StatusActive, PaymentStatus: payment.StatusPaid},
		To:           subscription.Assessment{Status: subscription.StatusExpired, PaymentStatus: payment.StatusExpired},
		At:           t0,
	}))

	tests := []struct {
		name string
		opts subscription.ListOpts
		want []string
	}{
		{"all sorted", subscription.ListOpts{}, []string{"amy", "bo", "cy"}},
		{"exclude expired", subscription.ListOpts{ExcludeExpired: true}, []string{"amy", "cy"}},
		{"by status", subscription.ListOpts{Status: subscription.StatusExpired}, []string{"bo"}},
		{"paged", subscription.ListOpts{Offset: 1, Limit: 1}, []string{"bo"}},
		{"offset past end", subscription.ListOpts{Offset: 9}, []string{}},
		{"negative paging ignored", subscription.ListOpts{Offset: -2, Limit: -1}, []string{"amy", "bo", "cy"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			subs, err := s.ListSubscriptions(ctx, tt.opts)
			require.NoError(t, err)
			got := make([]string, 0, len(subs))
			for _, sub := range subs {
				got = append(got, sub.SubscriberID)
			}
			assert.Equal(t, tt.want, got)
		})
	}

	n, err := s.CountSubscriptions(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}

func TestEventLogSequencing(t *testing.T) {
	ctx := context.Background()
	s := memory.New()

	for _, who := range []string{"amy", "bo", "amy"} {
		e := &event.Event{Type: event.TypeMonthlyPremiumPaid, SubscriberID: who}
		require.NoError(t, s.AppendEvent(ctx, e))
		assert.NotZero(t, e.Seq)
	}

	all, err := s.ListEvents(ctx, event.ListOpts{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []int64{1, 2, 3}, []int64{all[0].Seq, all[1].Seq, all[2].Seq})

	amy, err := s.ListEvents(ctx, event.ListOpts{AfterSeq: 1, SubscriberID: "amy"})
	require.NoError(t, err)
	require.Len(t, amy, 1)
	assert.Equal(t, int64(3), amy[0].Seq)

	limited, err := s.ListEvents(ctx, event.ListOpts{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestPingAfterClose(t *testing.T) {
	s := memory.New()
	require.NoError(t, s.Ping(context.Background()))
	require.NoError(t, s.Close())
	assert.ErrorIs(t, s.Ping(context.Background()), premium.ErrStoreClosed)
}
