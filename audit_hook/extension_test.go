package audithook_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/premium"
	audithook "github.com/xraph/premium/audit_hook"
	"github.com/xraph/premium/id"
	"github.com/xraph/premium/payout"
	"github.com/xraph/premium/policy"
	"github.com/xraph/premium/store/memory"
	"github.com/xraph/premium/types"
)

type captured struct {
	mu     sync.Mutex
	events []*audithook.AuditEvent
}

func (c *captured) Record(_ context.Context, e *audithook.AuditEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
	return nil
}

func (c *captured) actions() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.events))
	for i, e := range c.events {
		out[i] = e.Action
	}
	return out
}

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestExtensionRecordsLedgerLifecycle(t *testing.T) {
	ctx := context.Background()
	rec := &captured{}

	l := premium.New(memory.New(),
		premium.WithLogger(quiet()),
		premium.WithAdmin("admin"),
		premium.WithPlugin(audithook.New(rec, audithook.WithLogger(quiet()))),
	)

	adminCtx := premium.WithActor(ctx, premium.Actor{ID: "admin"})
	policyID, err := l.CreatePolicy(adminCtx, policy.Input{
		Name:          "Dental",
		Premium:       types.USD(2500),
		ValidityYears: 1,
	})
	require.NoError(t, err)

	_, err = l.Subscribe(ctx, "alice", policyID, types.USD(2500))
	require.NoError(t, err)

	assert.Equal(t, []string{
		audithook.ActionPolicyCreated,
		audithook.ActionPolicySubscribed,
		audithook.ActionPremiumPaid,
	}, rec.actions())

	created := rec.events[0]
	assert.Equal(t, audithook.ResourcePolicy, created.Resource)
	assert.Equal(t, "1", created.ResourceID)
	assert.Equal(t, "Dental", created.Metadata["name"])

	paid := rec.events[2]
	assert.Equal(t, audithook.CategoryPayment, paid.Category)
	assert.Equal(t, "alice", paid.Metadata["subscriber_id"])
	assert.Equal(t, 1, paid.Metadata["month"])
}

func TestExtensionFailureCarriesReason(t *testing.T) {
	rec := &captured{}
	ext := audithook.New(rec)

	cause := errors.New("insufficient funds")
	require.NoError(t, ext.OnTransferFailed(context.Background(), payout.Transfer{
		Key:          payout.Key("bob", 2),
		SubscriberID: "bob",
		Month:        2,
		Amount:       types.USD(100),
	}, cause))

	require.Len(t, rec.events, 1)
	e := rec.events[0]
	assert.Equal(t, audithook.OutcomeFailure, e.Outcome)
	assert.Equal(t, audithook.SeverityWarning, e.Severity)
	assert.Equal(t, "insufficient funds", e.Reason)
	assert.Equal(t, payout.Key("bob", 2), e.ResourceID)
}

func TestExtensionActionFilters(t *testing.T) {
	receipt := payout.Receipt{ID: id.NewTransferID(), Key: "k", Amount: types.USD(1)}

	tests := []struct {
		name string
		opts []audithook.Option
		want int
	}{
		{name: "all enabled by default", want: 1},
		{name: "enabled list excludes", opts: []audithook.Option{audithook.WithEnabledActions(audithook.ActionPremiumPaid)}, want: 0},
		{name: "enabled list includes", opts: []audithook.Option{audithook.WithEnabledActions(audithook.ActionTransferReversed)}, want: 1},
		{name: "disabled", opts: []audithook.Option{audithook.WithDisabledActions(audithook.ActionTransferReversed)}, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &captured{}
			ext := audithook.New(rec, tt.opts...)
			require.NoError(t, ext.OnTransferReversed(context.Background(), receipt, errors.New("commit failed")))
			assert.Len(t, rec.events, tt.want)
		})
	}
}

func TestExtensionSwallowsRecorderErrors(t *testing.T) {
	ext := audithook.New(audithook.RecorderFunc(func(context.Context, *audithook.AuditEvent) error {
		return errors.New("backend down")
	}), audithook.WithLogger(quiet()))

	err := ext.OnPolicyCreated(context.Background(), &policy.Policy{ID: 1, Name: "x"})
	assert.NoError(t, err)
}
