package mongo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/mongodriver"

	"github.com/xraph/premium"
	"github.com/xraph/premium/event"
	"github.com/xraph/premium/payment"
	"github.com/xraph/premium/policy"
	premiumstore "github.com/xraph/premium/store"
	"github.com/xraph/premium/subscription"
)

// Collection name constants.
const (
	colPolicies      = "premium_policies"
	colSubscriptions = "premium_subscriptions"
	colEvents        = "premium_events"
	colCounters      = "premium_counters"
)

const eventCounter = "events"

// compile-time interface check
var _ premiumstore.Store = (*Store)(nil)

// Store implements store.Store using MongoDB via Grove ORM.
//
// Payments are embedded in the subscription document and appended with
// $push in the same update that advances the subscription.
type Store struct {
	db  *grove.DB
	mdb *mongodriver.MongoDB
}

// New creates a new MongoDB store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		mdb: mongodriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates indexes for all premium collections.
func (s *Store) Migrate(ctx context.Context) error {
	for col, models := range migrationIndexes() {
		if len(models) == 0 {
			continue
		}
		if _, err := s.mdb.Collection(col).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("premium/mongo: migrate %s indexes: %w", col, err)
		}
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ==================== Policy Store ====================

func (s *Store) CreatePolicy(ctx context.Context, p *policy.Policy) error {
	if _, err := s.mdb.NewInsert(toPolicyModel(p)).Exec(ctx); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return premium.ErrConcurrentUpdate
		}
		return fmt.Errorf("premium/mongo: create policy: %w", err)
	}
	return nil
}

func (s *Store) GetPolicy(ctx context.Context, policyID int64) (*policy.Policy, error) {
	var m policyModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": policyID}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, premium.ErrPolicyNotFound
		}
		return nil, fmt.Errorf("premium/mongo: get policy: %w", err)
	}
	return fromPolicyModel(&m), nil
}

func (s *Store) ListPolicyIDs(ctx context.Context) ([]int64, error) {
	var models []policyModel
	err := s.mdb.NewFind(&models).
		Filter(bson.M{}).
		Sort(bson.D{{Key: "_id", Value: 1}}).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("premium/mongo: list policies: %w", err)
	}
	ids := make([]int64, len(models))
	for i := range models {
		ids[i] = models[i].ID
	}
	return ids, nil
}

func (s *Store) LastPolicyID(ctx context.Context) (int64, error) {
	var models []policyModel
	err := s.mdb.NewFind(&models).
		Filter(bson.M{}).
		Sort(bson.D{{Key: "_id", Value: -1}}).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return 0, fmt.Errorf("premium/mongo: last policy id: %w", err)
	}
	if len(models) == 0 {
		return 0, nil
	}
	return models[0].ID, nil
}

// ==================== Subscription Store ====================

func (s *Store) CreateSubscription(ctx context.Context, sub *subscription.Subscription, first *payment.Record) error {
	m := toSubscriptionModel(sub, []*payment.Record{first})
	if _, err := s.mdb.NewInsert(m).Exec(ctx); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return premium.ErrAlreadySubscribed
		}
		return fmt.Errorf("premium/mongo: create subscription: %w", err)
	}
	return nil
}

func (s *Store) GetSubscription(ctx context.Context, subscriberID string) (*subscription.Subscription, error) {
	m, err := s.getSubscriptionModel(ctx, subscriberID)
	if err != nil {
		return nil, err
	}
	return fromSubscriptionModel(m)
}

func (s *Store) getSubscriptionModel(ctx context.Context, subscriberID string) (*subscriptionModel, error) {
	var m subscriptionModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"subscriber_id": subscriberID}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, premium.ErrNoSubscription
		}
		return nil, fmt.Errorf("premium/mongo: get subscription: %w", err)
	}
	return &m, nil
}

func (s *Store) RecordPayment(ctx context.Context, sub *subscription.Subscription, expectedMonths int, rec *payment.Record) error {
	res, err := s.mdb.NewUpdate((*subscriptionModel)(nil)).
		Filter(bson.M{"subscriber_id": sub.SubscriberID, "months_paid": expectedMonths}).
		SetUpdate(bson.M{
			"$set": bson.M{
				"total_paid":     sub.TotalPaid.Amount,
				"months_paid":    sub.MonthsPaid,
				"next_due_date":  sub.NextDueDate,
				"status":         string(sub.Status),
				"payment_status": string(sub.PaymentStatus),
				"updated_at":     sub.UpdatedAt,
			},
			"$push": bson.M{"payments": toPaymentModel(rec)},
		}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("premium/mongo: record payment: %w", err)
	}
	if res.MatchedCount() == 0 {
		return premium.ErrConcurrentUpdate
	}
	return nil
}

func (s *Store) UpdateStatus(ctx context.Context, change subscription.StatusChange) error {
	if !change.Allowed() {
		return premium.ErrInvalidTransition
	}
	res, err := s.mdb.NewUpdate((*subscriptionModel)(nil)).
		Filter(bson.M{
			"subscriber_id":  change.SubscriberID,
			"months_paid":    change.MonthsPaid,
			"status":         string(change.From.Status),
			"payment_status": string(change.From.PaymentStatus),
		}).
		Set("status", string(change.To.Status)).
		Set("payment_status", string(change.To.PaymentStatus)).
		Set("updated_at", change.At.UTC()).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("premium/mongo: update status: %w", err)
	}
	if res.MatchedCount() == 0 {
		return premium.ErrConcurrentUpdate
	}
	return nil
}

func (s *Store) ListSubscriptions(ctx context.Context, opts subscription.ListOpts) ([]*subscription.Subscription, error) {
	var models []subscriptionModel

	filter := bson.M{}
	switch {
	case opts.Status == subscription.StatusExpired && opts.ExcludeExpired:
		return []*subscription.Subscription{}, nil
	case opts.Status != "":
		filter["status"] = string(opts.Status)
	case opts.ExcludeExpired:
		filter["status"] = bson.M{"$ne": string(subscription.StatusExpired)}
	}

	q := s.mdb.NewFind(&models).
		Filter(filter).
		Sort(bson.D{{Key: "subscriber_id", Value: 1}})

	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("premium/mongo: list subscriptions: %w", err)
	}

	result := make([]*subscription.Subscription, len(models))
	for i := range models {
		sub, err := fromSubscriptionModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = sub
	}
	return result, nil
}

func (s *Store) CountSubscriptions(ctx context.Context) (int64, error) {
	n, err := s.mdb.Collection(colSubscriptions).CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("premium/mongo: count subscriptions: %w", err)
	}
	return n, nil
}

// ==================== Payment Store ====================

func (s *Store) ListPayments(ctx context.Context, subscriberID string) ([]*payment.Record, error) {
	m, err := s.getSubscriptionModel(ctx, subscriberID)
	if errors.Is(err, premium.ErrNoSubscription) {
		return []*payment.Record{}, nil
	}
	if err != nil {
		return nil, err
	}

	result := make([]*payment.Record, len(m.Payments))
	for i := range m.Payments {
		rec, err := fromPaymentModel(subscriberID, &m.Payments[i])
		if err != nil {
			return nil, err
		}
		result[i] = rec
	}
	return result, nil
}

// ==================== Event Store ====================

func (s *Store) AppendEvent(ctx context.Context, e *event.Event) error {
	seq, err := s.nextSeq(ctx, eventCounter)
	if err != nil {
		return err
	}
	e.Seq = seq
	if _, err := s.mdb.NewInsert(toEventModel(e)).Exec(ctx); err != nil {
		return fmt.Errorf("premium/mongo: append event: %w", err)
	}
	return nil
}

func (s *Store) ListEvents(ctx context.Context, opts event.ListOpts) ([]*event.Event, error) {
	var models []eventModel

	filter := bson.M{"seq": bson.M{"$gt": opts.AfterSeq}}
	if opts.SubscriberID != "" {
		filter["subscriber_id"] = opts.SubscriberID
	}

	q := s.mdb.NewFind(&models).
		Filter(filter).
		Sort(bson.D{{Key: "seq", Value: 1}})
	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("premium/mongo: list events: %w", err)
	}

	result := make([]*event.Event, len(models))
	for i := range models {
		e, err := fromEventModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = e
	}
	return result, nil
}

// nextSeq increments and returns the named counter.
func (s *Store) nextSeq(ctx context.Context, name string) (int64, error) {
	var c counterModel
	err := s.mdb.Collection(colCounters).FindOneAndUpdate(ctx,
		bson.M{"_id": name},
		bson.M{"$inc": bson.M{"seq": int64(1)}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&c)
	if err != nil {
		return 0, fmt.Errorf("premium/mongo: next %s seq: %w", name, err)
	}
	return c.Seq, nil
}

// ==================== Helpers ====================

// isNoDocuments checks if an error wraps mongo.ErrNoDocuments.
func isNoDocuments(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}

// migrationIndexes returns the index definitions for all premium collections.
func migrationIndexes() map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		colPolicies: {
			{Keys: bson.D{{Key: "status", Value: 1}}},
		},
		colSubscriptions: {
			{
				Keys:    bson.D{{Key: "subscriber_id", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{Keys: bson.D{{Key: "status", Value: 1}}},
			{Keys: bson.D{{Key: "policy_id", Value: 1}}},
		},
		colEvents: {
			{
				Keys:    bson.D{{Key: "seq", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{Keys: bson.D{{Key: "subscriber_id", Value: 1}, {Key: "seq", Value: 1}}},
		},
	}
}
