// Package payout defines the fund-transfer collaborator that receives every
// collected premium, plus an in-memory Treasury implementation.
package payout

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/xraph/premium/id"
	"github.com/xraph/premium/types"
)

var (
	// ErrDeclined is returned when the sink refuses a transfer.
	ErrDeclined = errors.New("payout: transfer declined")
	// ErrKeyConflict is returned when an idempotency key is reused with a
	// different amount or subscriber.
	ErrKeyConflict = errors.New("payout: idempotency key reused with different transfer")
	// ErrUnknownTransfer is returned when reversing a receipt the sink never issued.
	ErrUnknownTransfer = errors.New("payout: unknown transfer")
)

// Transfer is a request to move one premium into the payout account.
type Transfer struct {
	Key          string      `json:"key"`
	SubscriberID string      `json:"subscriber_id"`
	Month        int         `json:"month"`
	Amount       types.Money `json:"amount"`
}

// Receipt confirms a completed transfer.
type Receipt struct {
	ID       id.TransferID `json:"id"`
	Key      string        `json:"key"`
	Amount   types.Money   `json:"amount"`
	SettleAt time.Time     `json:"settled_at"`
}

// Sink moves funds to the administrator's payout account.
//
// Transfer must be idempotent on Transfer.Key: repeating a key returns the
// original receipt without moving funds twice. Reverse undoes a transfer
// whose ledger commit failed.
type Sink interface {
	Transfer(ctx context.Context, t Transfer) (Receipt, error)
	Reverse(ctx context.Context, r Receipt) error
}

// Key builds the idempotency key for a subscriber's premium month.
func Key(subscriberID string, month int) string {
	return fmt.Sprintf("%s:%d", subscriberID, month)
}

// Treasury is an in-memory payout account keyed by currency.
type Treasury struct {
	mu       sync.Mutex
	balances map[string]int64
	receipts map[string]entry
	now      func() time.Time
}

type entry struct {
	transfer Transfer
	receipt  Receipt
}

// NewTreasury returns an empty Treasury.
func NewTreasury() *Treasury {
	return &Treasury{
		balances: make(map[string]int64),
		receipts: make(map[string]entry),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Transfer implements Sink.
func (t *Treasury) Transfer(_ context.Context, tr Transfer) (Receipt, error) {
	if tr.Key == "" || !tr.Amount.IsPositive() {
		return Receipt{}, ErrDeclined
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if prev, ok := t.receipts[tr.Key]; ok {
		if !prev.transfer.Amount.Equal(tr.Amount) || prev.transfer.SubscriberID != tr.SubscriberID {
			return Receipt{}, ErrKeyConflict
		}
		return prev.receipt, nil
	}

	r := Receipt{
		ID:       id.NewTransferID(),
		Key:      tr.Key,
		Amount:   tr.Amount,
		SettleAt: t.now(),
	}
	t.receipts[tr.Key] = entry{transfer: tr, receipt: r}
	t.balances[tr.Amount.Currency] += tr.Amount.Amount
	return r, nil
}

// Reverse implements Sink.
func (t *Treasury) Reverse(_ context.Context, r Receipt) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	prev, ok := t.receipts[r.Key]
	if !ok || prev.receipt.ID.String() != r.ID.String() {
		return ErrUnknownTransfer
	}
	delete(t.receipts, r.Key)
	t.balances[prev.receipt.Amount.Currency] -= prev.receipt.Amount.Amount
	return nil
}

// Balance returns the collected total in currency.
func (t *Treasury) Balance(currency string) types.Money {
	c := types.Zero(currency)
	t.mu.Lock()
	defer t.mu.Unlock()
	c.Amount = t.balances[c.Currency]
	return c
}

// Transfers returns the number of settled, unreversed transfers.
func (t *Treasury) Transfers() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.receipts)
}
