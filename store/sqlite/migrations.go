package sqlite

import (
	"context"

	"github.com/xraph/grove/migrate"
)

// Migrations is the grove migration group for the premium store (SQLite).
var Migrations = migrate.NewGroup("premium")

func init() {
	Migrations.MustRegister(
		&migrate.Migration{
			Name:    "create_premium_policies",
			Version: "20250101000001",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS premium_policies (
    id                INTEGER PRIMARY KEY CHECK (id > 0),
    name              TEXT NOT NULL DEFAULT '',
    description       TEXT NOT NULL DEFAULT '',
    coverage_amount   INTEGER NOT NULL DEFAULT 0,
    coverage_currency TEXT NOT NULL DEFAULT '',
    premium_amount    INTEGER NOT NULL DEFAULT 0,
    currency          TEXT NOT NULL DEFAULT '',
    validity_years    INTEGER NOT NULL DEFAULT 0,
    status            TEXT NOT NULL DEFAULT 'active',
    metadata          TEXT NOT NULL DEFAULT '{}',
    created_at        TIMESTAMP NOT NULL DEFAULT (datetime('now'))
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
    subscriber_id  TEXT NOT NULL UNIQUE,
    policy_id      INTEGER NOT NULL REFERENCES premium_policies (id),
    policy_name    TEXT NOT NULL DEFAULT '',
    premium_amount INTEGER NOT NULL,
    currency       TEXT NOT NULL,
    total_paid     INTEGER NOT NULL DEFAULT 0,
    start_date     TIMESTAMP NOT NULL,
    end_date       TIMESTAMP NOT NULL,
    next_due_date  TIMESTAMP NOT NULL,
    months_paid    INTEGER NOT NULL DEFAULT 0,
    status         TEXT NOT NULL DEFAULT 'active',
    payment_status TEXT NOT NULL DEFAULT 'paid',
    payments       TEXT NOT NULL DEFAULT '[]' CHECK (json_valid(payments)),
    created_at     TIMESTAMP NOT NULL DEFAULT (datetime('now')),
    updated_at     TIMESTAMP NOT NULL DEFAULT (datetime('now'))
);

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
			Name:    "create_premium_events",
			Version: "20250101000003",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS premium_events (
    seq           INTEGER PRIMARY KEY AUTOINCREMENT,
    id            TEXT NOT NULL UNIQUE,
    type          TEXT NOT NULL,
    subscriber_id TEXT NOT NULL DEFAULT '',
    policy_id     INTEGER NOT NULL DEFAULT 0,
    policy_name   TEXT NOT NULL DEFAULT '',
    month         INTEGER NOT NULL DEFAULT 0,
    amount        INTEGER NOT NULL DEFAULT 0,
    currency      TEXT NOT NULL DEFAULT '',
    occurred_at   TIMESTAMP NOT NULL DEFAULT (datetime('now'))
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
