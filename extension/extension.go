// Package extension provides the Forge extension adapter for premium.
//
// It implements the forge.Extension interface to integrate the premium
// ledger into a Forge application with DI registration, lifecycle
// management and a scheduled reconciliation sweep.
//
// Configuration can be provided programmatically via Option functions
// or via YAML configuration files under "extensions.premium" or "premium" keys.
package extension

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/xraph/forge"
	"github.com/xraph/vessel"

	"github.com/xraph/premium"
	"github.com/xraph/premium/api"
	"github.com/xraph/premium/monitor"
	"github.com/xraph/premium/store"
	"github.com/xraph/premium/store/memory"
)

// ExtensionName is the name registered with Forge.
const ExtensionName = "premium"

// ExtensionDescription is the human-readable description.
const ExtensionDescription = "Policy subscription and recurring premium ledger"

// ExtensionVersion is the semantic version.
const ExtensionVersion = "0.1.0"

// Ensure Extension implements forge.Extension at compile time.
var _ forge.Extension = (*Extension)(nil)

// Extension adapts the premium ledger as a Forge extension.
type Extension struct {
	*forge.BaseExtension

	config     Config
	engine     *premium.Ledger
	store      store.Store
	monitor    *monitor.Monitor
	handler    http.Handler
	ledgerOpts []premium.Option
}

// New creates a new premium Forge extension with the given options.
func New(opts ...Option) *Extension {
	e := &Extension{
		BaseExtension: forge.NewBaseExtension(ExtensionName, ExtensionVersion, ExtensionDescription),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Engine returns the underlying ledger. It is nil until Register is called.
func (e *Extension) Engine() *premium.Ledger { return e.engine }

// Handler returns the HTTP routes mounted under the configured base path,
// or nil when routes are disabled.
func (e *Extension) Handler() http.Handler { return e.handler }

// Register implements [forge.Extension]. It loads configuration,
// initializes the engine, and registers it in the DI container.
func (e *Extension) Register(fapp forge.App) error {
	if err := e.BaseExtension.Register(fapp); err != nil {
		return err
	}

	if err := e.loadConfiguration(); err != nil {
		return err
	}

	// Use memory store if no store was provided programmatically.
	if e.store == nil {
		e.store = memory.New()
	}

	opts, err := e.buildLedgerOpts()
	if err != nil {
		return err
	}
	e.engine = premium.New(e.store, opts...)

	if !e.config.DisableMonitor {
		e.monitor = monitor.New(e.engine,
			monitor.WithSchedule(e.config.ReconcileSchedule),
			monitor.WithTimeout(e.config.ReconcileTimeout),
		)
	}

	if !e.config.DisableRoutes {
		var apiOpts []api.Option
		if e.config.JWTSecret != "" {
			apiOpts = append(apiOpts, api.WithJWTSecret([]byte(e.config.JWTSecret)))
		}
		r := chi.NewRouter()
		r.Mount(e.config.BasePath, api.NewRouter(e.engine, apiOpts...))
		e.handler = r
	}

	return vessel.Provide(fapp.Container(), func() (*premium.Ledger, error) {
		return e.engine, nil
	})
}

// Start implements [forge.Extension].
func (e *Extension) Start(ctx context.Context) error {
	if e.engine == nil {
		return errors.New("premium: extension not initialized")
	}

	if !e.config.DisableMigrate {
		if err := e.engine.Start(ctx); err != nil {
			return err
		}
	}

	if e.monitor != nil {
		if err := e.monitor.Start(); err != nil {
			return err
		}
	}

	e.MarkStarted()
	return nil
}

// Stop implements [forge.Extension].
func (e *Extension) Stop(ctx context.Context) error {
	if e.monitor != nil {
		select {
		case <-e.monitor.Stop().Done():
		case <-ctx.Done():
		}
	}
	if e.engine != nil {
		if err := e.engine.Stop(); err != nil {
			e.MarkStopped()
			return err
		}
	}
	e.MarkStopped()
	return nil
}

// Health implements [forge.Extension].
func (e *Extension) Health(ctx context.Context) error {
	if e.store == nil {
		return errors.New("premium: store not initialized")
	}
	return e.store.Ping(ctx)
}

// buildLedgerOpts constructs premium.Option values from the resolved config.
func (e *Extension) buildLedgerOpts() ([]premium.Option, error) {
	opts := make([]premium.Option, 0, len(e.ledgerOpts)+2)

	if e.config.AdminID != "" {
		opts = append(opts, premium.WithAdmin(e.config.AdminID))
	}

	mode, err := premium.ParseReactivationMode(e.config.ReactivationMode)
	if err != nil {
		return nil, err
	}
	opts = append(opts, premium.WithReactivationMode(mode))

	// Pass-through options win over config-derived ones.
	opts = append(opts, e.ledgerOpts...)

	return opts, nil
}

// --- Config Loading ---

// loadConfiguration loads config from YAML files or programmatic sources.
func (e *Extension) loadConfiguration() error {
	programmaticConfig := e.config

	fileConfig, configLoaded := e.tryLoadFromConfigFile()

	if !configLoaded {
		if programmaticConfig.RequireConfig {
			return errors.New("premium: configuration is required but not found in config files; " +
				"ensure 'extensions.premium' or 'premium' key exists in your config")
		}
		e.config = mergeWithDefaults(programmaticConfig)
	} else {
		e.config = mergeConfigurations(fileConfig, programmaticConfig)
	}

	e.Logger().Debug("premium: configuration loaded",
		forge.F("disable_routes", e.config.DisableRoutes),
		forge.F("disable_migrate", e.config.DisableMigrate),
		forge.F("disable_monitor", e.config.DisableMonitor),
		forge.F("base_path", e.config.BasePath),
		forge.F("reactivation_mode", e.config.ReactivationMode),
		forge.F("reconcile_schedule", e.config.ReconcileSchedule),
	)

	return nil
}

// tryLoadFromConfigFile attempts to load config from YAML files.
func (e *Extension) tryLoadFromConfigFile() (Config, bool) {
	cm := e.App().Config()

	for _, key := range []string{"extensions.premium", "premium"} {
		if !cm.IsSet(key) {
			continue
		}
		var cfg Config
		if err := cm.Bind(key, &cfg); err == nil {
			e.Logger().Debug("premium: loaded config from file", forge.F("key", key))
			return cfg, true
		}
		e.Logger().Warn("premium: failed to bind config",
			forge.F("key", key),
			forge.F("error", "bind failed"),
		)
	}

	return Config{}, false
}

// mergeWithDefaults fills zero-valued fields with defaults.
func mergeWithDefaults(cfg Config) Config {
	defaults := DefaultConfig()
	if cfg.BasePath == "" {
		cfg.BasePath = defaults.BasePath
	}
	if cfg.ReactivationMode == "" {
		cfg.ReactivationMode = defaults.ReactivationMode
	}
	if cfg.ReconcileSchedule == "" {
		cfg.ReconcileSchedule = defaults.ReconcileSchedule
	}
	if cfg.ReconcileTimeout == 0 {
		cfg.ReconcileTimeout = defaults.ReconcileTimeout
	}
	return cfg
}

// mergeConfigurations merges YAML config with programmatic options.
// YAML config takes precedence for most fields; programmatic bool flags fill gaps.
func mergeConfigurations(yamlConfig, programmaticConfig Config) Config {
	if programmaticConfig.DisableRoutes {
		yamlConfig.DisableRoutes = true
	}
	if programmaticConfig.DisableMigrate {
		yamlConfig.DisableMigrate = true
	}
	if programmaticConfig.DisableMonitor {
		yamlConfig.DisableMonitor = true
	}

	fill := func(dst *string, src string) {
		if *dst == "" && src != "" {
			*dst = src
		}
	}
	fill(&yamlConfig.BasePath, programmaticConfig.BasePath)
	fill(&yamlConfig.AdminID, programmaticConfig.AdminID)
	fill(&yamlConfig.ReactivationMode, programmaticConfig.ReactivationMode)
	fill(&yamlConfig.ReconcileSchedule, programmaticConfig.ReconcileSchedule)
	fill(&yamlConfig.JWTSecret, programmaticConfig.JWTSecret)

	if yamlConfig.ReconcileTimeout == 0 && programmaticConfig.ReconcileTimeout != 0 {
		yamlConfig.ReconcileTimeout = programmaticConfig.ReconcileTimeout
	}

	return mergeWithDefaults(yamlConfig)
}
