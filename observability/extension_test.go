package observability_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/premium"
	"github.com/xraph/premium/clock"
	"github.com/xraph/premium/observability"
	"github.com/xraph/premium/payout"
	"github.com/xraph/premium/policy"
	"github.com/xraph/premium/store/memory"
	"github.com/xraph/premium/subscription"
	"github.com/xraph/premium/types"
)

func value(t *testing.T, m any) float64 {
	t.Helper()
	c, ok := m.(prometheus.Collector)
	require.True(t, ok, "metric is not a prometheus collector")
	return testutil.ToFloat64(c)
}

func TestMetricsFollowSubscriptionLifecycle(t *testing.T) {
	ctx := context.Background()
	reg := prometheus.NewRegistry()
	metrics := observability.NewMetricsExtension(observability.NewPrometheusFactory(reg))
	clk := clock.NewMock(time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC))

	l := premium.New(memory.New(),
		premium.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		premium.WithClock(clk),
		premium.WithAdmin("admin"),
		premium.WithPlugin(metrics),
	)

	policyID, err := l.CreatePolicy(premium.WithActor(ctx, premium.Actor{ID: "admin"}), policy.Input{
		Name:          "Travel",
		Premium:       types.USD(300),
		ValidityYears: 1,
	})
	require.NoError(t, err)

	_, err = l.Subscribe(ctx, "carol", policyID, types.USD(300))
	require.NoError(t, err)

	clk.Advance(40 * subscription.Day)
	require.NoError(t, l.CheckPaymentStatus(ctx, "carol"))

	_, err = l.PayMonthlyPremium(ctx, "carol", types.USD(300))
	require.NoError(t, err)

	assert.Equal(t, 1.0, value(t, metrics.PolicyCreated))
	assert.Equal(t, 1.0, value(t, metrics.PolicySubscribed))
	assert.Equal(t, 2.0, value(t, metrics.PremiumsPaid))
	assert.Equal(t, 600.0, value(t, metrics.SubscriptionRevenue))
	assert.Equal(t, 1.0, value(t, metrics.PolicySuspended))
	assert.Equal(t, 1.0, value(t, metrics.PolicyReactivated))
	assert.Equal(t, 0.0, value(t, metrics.PolicyExpired))

	n, err := testutil.GatherAndCount(reg, "premium_payment_paid_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestPrometheusFactoryReusesCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	f := observability.NewPrometheusFactory(reg)

	a := f.Counter("premium.transfer.failed")
	b := f.Counter("premium.transfer.failed")
	a.Inc()
	b.Inc()

	assert.Equal(t, 2.0, value(t, a))
	assert.NotPanics(t, func() { f.Histogram("premium.payment.amount_minor").Observe(10) })
}

func TestPayoutFailureCounters(t *testing.T) {
	m := observability.NewMetricsExtension(observability.NewPrometheusFactory(prometheus.NewRegistry()))
	ctx := context.Background()

	require.NoError(t, m.OnTransferFailed(ctx, payout.Transfer{Key: "k"}, errors.New("declined")))
	require.NoError(t, m.OnTransferReversed(ctx, payout.Receipt{Key: "k"}, errors.New("commit failed")))
	require.NoError(t, m.OnTransferReversed(ctx, payout.Receipt{Key: "k2"}, errors.New("commit failed")))

	assert.Equal(t, 1.0, value(t, m.TransfersFailed))
	assert.Equal(t, 2.0, value(t, m.TransfersReversed))
}
