// Package memory provides an in-process Store used by tests and
// single-instance deployments. Every method copies records in and out so
// callers never share state with the store.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/xraph/premium"
	"github.com/xraph/premium/event"
	"github.com/xraph/premium/payment"
	"github.com/xraph/premium/policy"
	"github.com/xraph/premium/store"
	"github.com/xraph/premium/subscription"
)

var _ store.Store = (*Store)(nil)

type Store struct {
	mu sync.RWMutex

	// Catalog
	policies map[int64]*policy.Policy
	lastID   int64

	// Subscriptions keyed by subscriber, with their journals
	subscriptions map[string]*subscription.Subscription
	payments      map[string][]*payment.Record

	// Event log
	events []*event.Event

	closed bool
}

func New() *Store {
	return &Store{
		policies:      make(map[int64]*policy.Policy),
		subscriptions: make(map[string]*subscription.Subscription),
		payments:      make(map[string][]*payment.Record),
	}
}

// Policy Store implementation

func (s *Store) CreatePolicy(_ context.Context, p *policy.Policy) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.ID != s.lastID+1 {
		return premium.ErrConcurrentUpdate
	}
	cp := *p
	s.policies[p.ID] = &cp
	s.lastID = p.ID
	return nil
}

func (s *Store) GetPolicy(_ context.Context, policyID int64) (*policy.Policy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if p, ok := s.policies[policyID]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, premium.ErrPolicyNotFound
}

func (s *Store) ListPolicyIDs(_ context.Context) ([]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]int64, 0, len(s.policies))
	for id := range s.policies {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (s *Store) LastPolicyID(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastID, nil
}

// Subscription Store implementation

func (s *Store) CreateSubscription(_ context.Context, sub *subscription.Subscription, first *payment.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.subscriptions[sub.SubscriberID]; exists {
		return premium.ErrAlreadySubscribed
	}
	s.subscriptions[sub.SubscriberID] = sub.Clone()
	rec := *first
	s.payments[sub.SubscriberID] = []*payment.Record{&rec}
	return nil
}

func (s *Store) GetSubscription(_ context.Context, subscriberID string) (*subscription.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if sub, ok := s.subscriptions[subscriberID]; ok {
		return sub.Clone(), nil
	}
	return nil, premium.ErrNoSubscription
}

func (s *Store) RecordPayment(_ context.Context, sub *subscription.Subscription, expectedMonths int, rec *payment.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.subscriptions[sub.SubscriberID]
	if !ok {
		return premium.ErrNoSubscription
	}
	if cur.MonthsPaid != expectedMonths {
		return premium.ErrConcurrentUpdate
	}
	s.subscriptions[sub.SubscriberID] = sub.Clone()
	cp := *rec
	s.payments[sub.SubscriberID] = append(s.payments[sub.SubscriberID], &cp)
	return nil
}

func (s *Store) UpdateStatus(_ context.Context, change subscription.StatusChange) error {
	if !change.Allowed() {
		return premium.ErrInvalidTransition
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.subscriptions[change.SubscriberID]
	if !ok {
		return premium.ErrNoSubscription
	}
	if cur.MonthsPaid != change.MonthsPaid || cur.Current() != change.From {
		return premium.ErrConcurrentUpdate
	}
	next := cur.Clone()
	next.Status = change.To.Status
	next.PaymentStatus = change.To.PaymentStatus
	next.Touch(change.At)
	s.subscriptions[change.SubscriberID] = next
	return nil
}

func (s *Store) ListSubscriptions(_ context.Context, opts subscription.ListOpts) ([]*subscription.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*subscription.Subscription, 0, len(s.subscriptions))
	for _, sub := range s.subscriptions {
		if opts.Status != "" && sub.Status != opts.Status {
			continue
		}
		if opts.ExcludeExpired && sub.Status == subscription.StatusExpired {
			continue
		}
		result = append(result, sub.Clone())
	}
	sort.Slice(result, func(i, j int) bool { return result[i].SubscriberID < result[j].SubscriberID })

	// Apply limit/offset
	start := max(opts.Offset, 0)
	if start > len(result) {
		start = len(result)
	}
	end := start + opts.Limit
	if opts.Limit <= 0 || end > len(result) {
		end = len(result)
	}

	return result[start:end], nil
}

func (s *Store) CountSubscriptions(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.subscriptions)), nil
}

// Payment Store implementation

func (s *Store) ListPayments(_ context.Context, subscriberID string) ([]*payment.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	journal := s.payments[subscriberID]
	out := make([]*payment.Record, len(journal))
	for i, r := range journal {
		cp := *r
		out[i] = &cp
	}
	return out, nil
}

// Event Store implementation

func (s *Store) AppendEvent(_ context.Context, e *event.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e.Seq = int64(len(s.events)) + 1
	cp := *e
	s.events = append(s.events, &cp)
	return nil
}

func (s *Store) ListEvents(_ context.Context, opts event.ListOpts) ([]*event.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*event.Event, 0)
	for _, e := range s.events {
		if e.Seq <= opts.AfterSeq {
			continue
		}
		if opts.SubscriberID != "" && e.SubscriberID != opts.SubscriberID {
			continue
		}
		cp := *e
		result = append(result, &cp)
		if opts.Limit > 0 && len(result) == opts.Limit {
			break
		}
	}
	return result, nil
}

// Core methods

func (s *Store) Migrate(_ context.Context) error {
	return nil
}

func (s *Store) Ping(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return premium.ErrStoreClosed
	}
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}
