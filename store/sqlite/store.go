package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/sqlitedriver"
	_ "github.com/xraph/grove/drivers/sqlitedriver/sqlitemigrate" // registers the migrate executor
	"github.com/xraph/grove/migrate"

	"github.com/xraph/premium"
	"github.com/xraph/premium/event"
	"github.com/xraph/premium/payment"
	"github.com/xraph/premium/policy"
	premiumstore "github.com/xraph/premium/store"
	"github.com/xraph/premium/subscription"
)

// compile-time interface check
var _ premiumstore.Store = (*Store)(nil)

// Store implements store.Store using SQLite via Grove ORM.
//
// The payment journal lives in a JSON column of the subscription row and is
// appended with json_insert in the same UPDATE that advances the
// subscription, so every commit is a single row write.
type Store struct {
	db  *grove.DB
	sdb *sqlitedriver.SqliteDB
}

// New creates a new SQLite store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		sdb: sqlitedriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates the required tables and indexes using the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.sdb)
	if err != nil {
		return fmt.Errorf("premium/sqlite: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("premium/sqlite: migration failed: %w", err)
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
	m, err := toPolicyModel(p)
	if err != nil {
		return err
	}
	if _, err := s.sdb.NewInsert(m).Exec(ctx); err != nil {
		return fmt.Errorf("premium/sqlite: create policy %d: %w", p.ID, err)
	}
	return nil
}

func (s *Store) GetPolicy(ctx context.Context, policyID int64) (*policy.Policy, error) {
	m := new(policyModel)
	err := s.sdb.NewSelect(m).
		Where("id = ?", policyID).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, premium.ErrPolicyNotFound
		}
		return nil, err
	}
	return fromPolicyModel(m)
}

func (s *Store) ListPolicyIDs(ctx context.Context) ([]int64, error) {
	var models []policyModel
	if err := s.sdb.NewSelect(&models).OrderExpr("id ASC").Scan(ctx); err != nil {
		return nil, err
	}
	ids := make([]int64, len(models))
	for i := range models {
		ids[i] = models[i].ID
	}
	return ids, nil
}

func (s *Store) LastPolicyID(ctx context.Context) (int64, error) {
	var last int64
	if err := s.sdb.NewRaw(`SELECT COALESCE(MAX(id), 0) FROM premium_policies`).Scan(ctx, &last); err != nil {
		return 0, err
	}
	return last, nil
}

// ==================== Subscription Store ====================

func (s *Store) CreateSubscription(ctx context.Context, sub *subscription.Subscription, first *payment.Record) error {
	m, err := toSubscriptionModel(sub, []*payment.Record{first})
	if err != nil {
		return err
	}
	res, err := s.sdb.NewInsert(m).
		OnConflict("(subscriber_id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("premium/sqlite: create subscription: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return premium.ErrAlreadySubscribed
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
	m := new(subscriptionModel)
	err := s.sdb.NewSelect(m).
		Where("subscriber_id = ?", subscriberID).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, premium.ErrNoSubscription
		}
		return nil, err
	}
	return m, nil
}

func (s *Store) RecordPayment(ctx context.Context, sub *subscription.Subscription, expectedMonths int, rec *payment.Record) error {
	entry, err := json.Marshal(toPaymentEntry(rec))
	if err != nil {
		return err
	}

	res, err := s.sdb.NewUpdate((*subscriptionModel)(nil)).
		Set("total_paid = ?", sub.TotalPaid.Amount).
		Set("months_paid = ?", sub.MonthsPaid).
		Set("next_due_date = ?", sub.NextDueDate).
		Set("status = ?", string(sub.Status)).
		Set("payment_status = ?", string(sub.PaymentStatus)).
		Set("updated_at = ?", sub.UpdatedAt).
		Set("payments = json_insert(payments, '$[#]', json(?))", string(entry)).
		Where("subscriber_id = ?", sub.SubscriberID).
		Where("months_paid = ?", expectedMonths).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("premium/sqlite: record payment: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return premium.ErrConcurrentUpdate
	}
	return nil
}

func (s *Store) UpdateStatus(ctx context.Context, change subscription.StatusChange) error {
	if !change.Allowed() {
		return premium.ErrInvalidTransition
	}
	res, err := s.sdb.NewUpdate((*subscriptionModel)(nil)).
		Set("status = ?", string(change.To.Status)).
		Set("payment_status = ?", string(change.To.PaymentStatus)).
		Set("updated_at = ?", change.At.UTC()).
		Where("subscriber_id = ?", change.SubscriberID).
		Where("months_paid = ?", change.MonthsPaid).
		Where("status = ?", string(change.From.Status)).
		Where("payment_status = ?", string(change.From.PaymentStatus)).
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return premium.ErrConcurrentUpdate
	}
	return nil
}

func (s *Store) ListSubscriptions(ctx context.Context, opts subscription.ListOpts) ([]*subscription.Subscription, error) {
	var models []subscriptionModel
	q := s.sdb.NewSelect(&models)

	if opts.Status != "" {
		q = q.Where("status = ?", string(opts.Status))
	}
	if opts.ExcludeExpired {
		q = q.Where("status <> ?", string(subscription.StatusExpired))
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("subscriber_id ASC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
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
	var n int64
	if err := s.sdb.NewRaw(`SELECT COUNT(*) FROM premium_subscriptions`).Scan(ctx, &n); err != nil {
		return 0, err
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
	return decodeJournal(subscriberID, m.Payments)
}

// ==================== Event Store ====================

func (s *Store) AppendEvent(ctx context.Context, e *event.Event) error {
	var seq int64
	err := s.sdb.NewRaw(`
		INSERT INTO premium_events (
			id, type, subscriber_id, policy_id, policy_name, month, amount, currency, occurred_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING seq
	`,
		e.ID.String(), string(e.Type), e.SubscriberID, e.PolicyID, e.PolicyName,
		e.Month, e.Amount.Amount, e.Amount.Currency, e.OccurredAt,
	).Scan(ctx, &seq)
	if err != nil {
		return fmt.Errorf("premium/sqlite: append event: %w", err)
	}
	e.Seq = seq
	return nil
}

func (s *Store) ListEvents(ctx context.Context, opts event.ListOpts) ([]*event.Event, error) {
	var models []eventModel
	q := s.sdb.NewSelect(&models).Where("seq > ?", opts.AfterSeq)
	if opts.SubscriberID != "" {
		q = q.Where("subscriber_id = ?", opts.SubscriberID)
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	q = q.OrderExpr("seq ASC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
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

// ==================== Helpers ====================

// isNoRows checks for the standard sql.ErrNoRows sentinel.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
