package extension

import (
	"time"

	"github.com/xraph/premium"
	"github.com/xraph/premium/plugin"
	"github.com/xraph/premium/store"
)

// Option configures the premium Forge extension.
type Option func(*Extension)

// WithStore sets the store for the engine.
func WithStore(s store.Store) Option {
	return func(e *Extension) {
		e.store = s
	}
}

// WithLedgerOption passes a premium.Option through to the underlying engine.
func WithLedgerOption(opt premium.Option) Option {
	return func(e *Extension) {
		e.ledgerOpts = append(e.ledgerOpts, opt)
	}
}

// WithPlugin registers a premium plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Extension) {
		e.ledgerOpts = append(e.ledgerOpts, premium.WithPlugin(p))
	}
}

// WithConfig sets the Forge extension configuration.
func WithConfig(cfg Config) Option {
	return func(e *Extension) { e.config = cfg }
}

// WithDisableRoutes prevents HTTP route construction.
func WithDisableRoutes() Option {
	return func(e *Extension) { e.config.DisableRoutes = true }
}

// WithDisableMigrate prevents auto-migration on start.
func WithDisableMigrate() Option {
	return func(e *Extension) { e.config.DisableMigrate = true }
}

// WithDisableMonitor prevents the scheduled reconciliation sweep.
func WithDisableMonitor() Option {
	return func(e *Extension) { e.config.DisableMonitor = true }
}

// WithBasePath sets the URL prefix for premium routes.
func WithBasePath(path string) Option {
	return func(e *Extension) { e.config.BasePath = path }
}

// WithAdminID sets the catalog administrator.
func WithAdminID(adminID string) Option {
	return func(e *Extension) { e.config.AdminID = adminID }
}

// WithReconcileSchedule sets the cron spec of the reconciliation sweep.
func WithReconcileSchedule(spec string) Option {
	return func(e *Extension) { e.config.ReconcileSchedule = spec }
}

// WithReconcileTimeout bounds each sweep.
func WithReconcileTimeout(d time.Duration) Option {
	return func(e *Extension) { e.config.ReconcileTimeout = d }
}

// WithRequireConfig requires config to be present in YAML files.
// If true and no config is found, Register returns an error.
func WithRequireConfig(require bool) Option {
	return func(e *Extension) { e.config.RequireConfig = require }
}
