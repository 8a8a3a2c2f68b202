package postgres

import (
	"context"

	"github.com/xraph/grove/migrate"
)

// Migrations is the grove migration group for the premium store.
var Migrations = migrate.NewGroup("premium")

func init() {
	Migrations.MustRegister(
		&migrate.Migration{
			Name:    "create_premium_policies",
			Version: "20250101000001",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS premium_policies (
    id                BIGINT PRIMARY KEY CHECK (id > 0),
    name              TEXT NOT NULL DEFAULT '',
    description       TEXT NOT NULL DEFAULT '',
    coverage_amount   BIGINT NOT NULL DEFAULT 0,
    coverage_currency TEXT NOT NULL DEFAULT '',
    premium_amount    BIGINT NOT NULL DEFAULT 0,
    currency          TEXT NOT NULL DEFAULT '',
    validity_years    INT NOT NULL DEFAULT 0,
    status            TEXT NOT NULL DEFAULT 'active',
    metadata          JSONB NOT NULL DEFAULT '{}',
    created_at        TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS premium_policies`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_premium_subscriptions",
			Version: "20250101000002",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS premium_subscriptions (
    id             TEXT PRIMARY KEY,
    subscriber_id  TEXT NOT NULL,
    policy_id      BIGINT NOT NULL REFERENCES premium_policies (id),
    policy_name    TEXT NOT NULL DEFAULT '',
    premium_amount BIGINT NOT NULL,
    currency       TEXT NOT NULL,
    total_paid     BIGINT NOT NULL DEFAULT 0,
    start_date     TIMESTAMPTZ NOT NULL,
    end_date       TIMESTAMPTZ NOT NULL,
    next_due_date  TIMESTAMPTZ NOT NULL,
    months_paid    INT NOT NULL DEFAULT 0,
    status         TEXT NOT NULL DEFAULT 'active',
    payment_status TEXT NOT NULL DEFAULT 'paid',
    created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_premium_subs_subscriber ON premium_subscriptions (subscriber_id);
CREATE INDEX IF NOT EXISTS idx_premium_subs_status ON premium_subscriptions (status);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS premium_subscriptions`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_premium_payments",
			Version: "20250101000003",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS premium_payments (
    id            TEXT PRIMARY KEY,
    subscriber_id TEXT NOT NULL REFERENCES premium_subscriptions (subscriber_id),
    amount        BIGINT NOT NULL,
    currency      TEXT NOT NULL,
    paid_on       TIMESTAMPTZ NOT NULL,
    month_number  INT NOT NULL CHECK (month_number > 0),
    status        TEXT NOT NULL,
    transfer_ref  TEXT NOT NULL DEFAULT ''
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_premium_payments_month ON premium_payments (subscriber_id, month_number);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS premium_payments`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_premium_events",
			Version: "20250101000004",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS premium_events (
    seq           BIGSERIAL PRIMARY KEY,
    id            TEXT NOT NULL UNIQUE,
    type          TEXT NOT NULL,
    subscriber_id TEXT NOT NULL DEFAULT '',
    policy_id     BIGINT NOT NULL DEFAULT 0,
    policy_name   TEXT NOT NULL DEFAULT '',
    month         INT NOT NULL DEFAULT 0,
    amount        BIGINT NOT NULL DEFAULT 0,
    currency      TEXT NOT NULL DEFAULT '',
    occurred_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_premium_events_subscriber ON premium_events (subscriber_id, seq);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS premium_events`)
				return err
			},
		},
	)
}
