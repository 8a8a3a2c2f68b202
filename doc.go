// Package premium provides a policy-subscription and recurring premium
// ledger for Go applications.
//
// An administrator maintains a catalog of policies. A subscriber binds to
// one policy by paying its first premium, then pays monthly. The ledger
// derives the subscriber's standing (paid, due, overdue, suspended or
// expired) from the current time and the recorded payments.
//
// # Quick Start
//
//	l := premium.New(memory.New(),
//	    premium.WithAdmin("admin"),
//	    premium.WithPayoutSink(payout.NewTreasury()),
//	)
//	if err := l.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer l.Stop()
//
//	adminCtx := premium.WithActor(ctx, premium.Actor{ID: "admin"})
//	policyID, _ := l.CreatePolicy(adminCtx, policy.Input{
//	    Name:          "Basic Health",
//	    Premium:       premium.USD(10000),
//	    ValidityYears: 1,
//	})
//
//	sub, err := l.Subscribe(ctx, "alice", policyID, premium.USD(10000))
//
// # Billing calendar
//
// Months are 30 days and years are 365 days. A premium may be paid from
// three days before the due date. A subscription more than seven days past
// its due date is suspended by CheckPaymentStatus, and one past its end
// date is expired. Expired is terminal.
//
// # Atomicity
//
// Mutations are serialized per subscriber through a lock.Locker. The
// premium is transferred to the payout.Sink before the store commit; if the
// commit fails the transfer is reversed, so a rejected call leaves neither
// funds nor records behind.
//
// # Stores
//
// store/memory, store/postgres, store/sqlite and store/mongo implement
// store.Store. Every commit is a single atomic write guarded by the
// subscription's months_paid counter.
package premium
