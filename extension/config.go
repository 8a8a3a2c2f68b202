package extension

import "time"

// Config holds the premium extension configuration.
// Fields can be set programmatically via Option functions or loaded from
// YAML configuration files (under "extensions.premium" or "premium" keys).
type Config struct {
	// DisableRoutes leaves Handler nil so the host mounts no HTTP routes.
	DisableRoutes bool `json:"disable_routes" mapstructure:"disable_routes" yaml:"disable_routes"`

	// DisableMigrate prevents auto-migration on start.
	DisableMigrate bool `json:"disable_migrate" mapstructure:"disable_migrate" yaml:"disable_migrate"`

	// DisableMonitor prevents the scheduled reconciliation sweep.
	DisableMonitor bool `json:"disable_monitor" mapstructure:"disable_monitor" yaml:"disable_monitor"`

	// BasePath is the URL prefix for premium routes (default: "/premium").
	BasePath string `json:"base_path" mapstructure:"base_path" yaml:"base_path"`

	// AdminID is the identity allowed to manage the policy catalog. When
	// empty every catalog change is rejected.
	AdminID string `json:"admin_id" mapstructure:"admin_id" yaml:"admin_id"`

	// ReactivationMode is "transition" (default) or "always".
	ReactivationMode string `json:"reactivation_mode" mapstructure:"reactivation_mode" yaml:"reactivation_mode"`

	// ReconcileSchedule is the cron spec for the reconciliation sweep
	// (default: "@every 1h").
	ReconcileSchedule string `json:"reconcile_schedule" mapstructure:"reconcile_schedule" yaml:"reconcile_schedule"`

	// ReconcileTimeout bounds a single sweep (default: 5m).
	ReconcileTimeout time.Duration `json:"reconcile_timeout" mapstructure:"reconcile_timeout" yaml:"reconcile_timeout"`

	// JWTSecret verifies bearer tokens on the HTTP routes.
	JWTSecret string `json:"-" mapstructure:"jwt_secret" yaml:"jwt_secret"`

	// RequireConfig requires config to be present in YAML files.
	// If true and no config is found, Register returns an error.
	RequireConfig bool `json:"-" yaml:"-"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		BasePath:          "/premium",
		ReactivationMode:  "transition",
		ReconcileSchedule: "@every 1h",
		ReconcileTimeout:  5 * time.Minute,
	}
}
