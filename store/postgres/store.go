package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/pgdriver"
	_ "github.com/xraph/grove/drivers/pgdriver/pgmigrate" // registers the migrate executor
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

// Store implements store.Store using PostgreSQL via Grove ORM.
//
// Subscription commits are single statements: the subscription row and its
// journal entry are written by one data-modifying CTE, so no transaction
// handle is needed for atomicity.
type Store struct {
	db *grove.DB
	pg *pgdriver.PgDB
}

// New creates a new PostgreSQL store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db: db,
		pg: pgdriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates the required tables and indexes using the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.pg)
	if err != nil {
		return fmt.Errorf("premium/postgres: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("premium/postgres: migration failed: %w", err)
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
	_, err := s.pg.NewInsert(toPolicyModel(p)).Exec(ctx)
	if err != nil {
		return fmt.Errorf("premium/postgres: create policy %d: %w", p.ID, err)
	}
	return nil
}

func (s *Store) GetPolicy(ctx context.Context, policyID int64) (*policy.Policy, error) {
	m := new(policyModel)
	err := s.pg.NewSelect(m).
		Where("id = $1", policyID).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, premium.ErrPolicyNotFound
		}
		return nil, err
	}
	return fromPolicyModel(m), nil
}

func (s *Store) ListPolicyIDs(ctx context.Context) ([]int64, error) {
	var models []policyModel
	if err := s.pg.NewSelect(&models).OrderExpr("id ASC").Scan(ctx); err != nil {
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
	err := s.pg.NewRaw(`SELECT COALESCE(MAX(id), 0) FROM premium_policies`).Scan(ctx, &last)
	if err != nil {
		return 0, err
	}
	return last, nil
}

// ==================== Subscription Store ====================

// CreateSubscription inserts the subscription and its first journal entry
// in one statement. The journal insert selects from the subscription insert,
// so a conflicting subscriber writes nothing.
func (s *Store) CreateSubscription(ctx context.Context, sub *subscription.Subscription, first *payment.Record) error {
	var inserted int64
	err := s.pg.NewRaw(`
		WITH sub AS (
			INSERT INTO premium_subscriptions (
				id, subscriber_id, policy_id, policy_name, premium_amount, currency,
				total_paid, start_date, end_date, next_due_date, months_paid,
				status, payment_status, created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
			ON CONFLICT (subscriber_id) DO NOTHING
			RETURNING subscriber_id
		), pay AS (
			INSERT INTO premium_payments (
				id, subscriber_id, amount, currency, paid_on, month_number, status, transfer_ref
			)
			SELECT $16, sub.subscriber_id, $17, $18, $19, $20, $21, $22 FROM sub
			RETURNING id
		)
		SELECT COUNT(*) FROM sub
	`,
		sub.ID.String(), sub.SubscriberID, sub.PolicyID, sub.PolicyName, sub.Premium.Amount, sub.Premium.Currency,
		sub.TotalPaid.Amount, sub.StartDate, sub.EndDate, sub.NextDueDate, sub.MonthsPaid,
		string(sub.Status), string(sub.PaymentStatus), sub.CreatedAt, sub.UpdatedAt,
		first.ID.String(), first.Amount.Amount, first.Amount.Currency, first.PaidOn, first.MonthNumber,
		string(first.Status), first.TransferRef,
	).Scan(ctx, &inserted)
	if err != nil {
		return fmt.Errorf("premium/postgres: create subscription: %w", err)
	}
	if inserted == 0 {
		return premium.ErrAlreadySubscribed
	}
	return nil
}

func (s *Store) GetSubscription(ctx context.Context, subscriberID string) (*subscription.Subscription, error) {
	m := new(subscriptionModel)
	err := s.pg.NewSelect(m).
		Where("subscriber_id = $1", subscriberID).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, premium.ErrNoSubscription
		}
		return nil, err
	}
	return fromSubscriptionModel(m)
}

// RecordPayment updates the subscription and appends rec in one statement,
// guarded by the stored months_paid.
func (s *Store) RecordPayment(ctx context.Context, sub *subscription.Subscription, expectedMonths int, rec *payment.Record) error {
	var updated int64
	err := s.pg.NewRaw(`
		WITH upd AS (
			UPDATE premium_subscriptions SET
				total_paid = $1, months_paid = $2, next_due_date = $3,
				status = $4, payment_status = $5, updated_at = $6
			WHERE subscriber_id = $7 AND months_paid = $8
			RETURNING subscriber_id
		), pay AS (
			INSERT INTO premium_payments (
				id, subscriber_id, amount, currency, paid_on, month_number, status, transfer_ref
			)
			SELECT $9, upd.subscriber_id, $10, $11, $12, $13, $14, $15 FROM upd
			RETURNING id
		)
		SELECT COUNT(*) FROM upd
	`,
		sub.TotalPaid.Amount, sub.MonthsPaid, sub.NextDueDate,
		string(sub.Status), string(sub.PaymentStatus), sub.UpdatedAt,
		sub.SubscriberID, expectedMonths,
		rec.ID.String(), rec.Amount.Amount, rec.Amount.Currency, rec.PaidOn, rec.MonthNumber,
		string(rec.Status), rec.TransferRef,
	).Scan(ctx, &updated)
	if err != nil {
		return fmt.Errorf("premium/postgres: record payment: %w", err)
	}
	if updated == 0 {
		return premium.ErrConcurrentUpdate
	}
	return nil
}

func (s *Store) UpdateStatus(ctx context.Context, change subscription.StatusChange) error {
	if !change.Allowed() {
		return premium.ErrInvalidTransition
	}
	res, err := s.pg.NewUpdate((*subscriptionModel)(nil)).
		Set("status = $1", string(change.To.Status)).
		Set("payment_status = $2", string(change.To.PaymentStatus)).
		Set("updated_at = $3", change.At.UTC()).
		Where("subscriber_id = $4", change.SubscriberID).
		Where("months_paid = $5", change.MonthsPaid).
		Where("status = $6", string(change.From.Status)).
		Where("payment_status = $7", string(change.From.PaymentStatus)).
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
	q := s.pg.NewSelect(&models)

	argIdx := 0
	if opts.Status != "" {
		argIdx++
		q = q.Where(fmt.Sprintf("status = $%d", argIdx), string(opts.Status))
	}
	if opts.ExcludeExpired {
		argIdx++
		q = q.Where(fmt.Sprintf("status <> $%d", argIdx), string(subscription.StatusExpired))
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
	if err := s.pg.NewRaw(`SELECT COUNT(*) FROM premium_subscriptions`).Scan(ctx, &n); err != nil {
		return 0, err
	}
	return n, nil
}

// ==================== Payment Store ====================

func (s *Store) ListPayments(ctx context.Context, subscriberID string) ([]*payment.Record, error) {
	var models []paymentModel
	err := s.pg.NewSelect(&models).
		Where("subscriber_id = $1", subscriberID).
		OrderExpr("month_number ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	result := make([]*payment.Record, len(models))
	for i := range models {
		rec, err := fromPaymentModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = rec
	}
	return result, nil
}

// ==================== Event Store ====================

func (s *Store) AppendEvent(ctx context.Context, e *event.Event) error {
	var seq int64
	err := s.pg.NewRaw(`
		INSERT INTO premium_events (
			id, type, subscriber_id, policy_id, policy_name, month, amount, currency, occurred_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING seq
	`,
		e.ID.String(), string(e.Type), e.SubscriberID, e.PolicyID, e.PolicyName,
		e.Month, e.Amount.Amount, e.Amount.Currency, e.OccurredAt,
	).Scan(ctx, &seq)
	if err != nil {
		return fmt.Errorf("premium/postgres: append event: %w", err)
	}
	e.Seq = seq
	return nil
}

func (s *Store) ListEvents(ctx context.Context, opts event.ListOpts) ([]*event.Event, error) {
	var models []eventModel
	q := s.pg.NewSelect(&models).Where("seq > $1", opts.AfterSeq)
	if opts.SubscriberID != "" {
		q = q.Where("subscriber_id = $2", opts.SubscriberID)
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
