package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/xraph/premium/event"
	"github.com/xraph/premium/payment"
	"github.com/xraph/premium/payout"
	"github.com/xraph/premium/policy"
	"github.com/xraph/premium/subscription"
)

// DefaultTimeout bounds a single hook call.
const DefaultTimeout = 5 * time.Second

// Registry manages all registered plugins and provides efficient dispatch.
// Hook implementations are discovered once at registration time.
type Registry struct {
	mu      sync.RWMutex
	plugins []Plugin
	logger  *slog.Logger
	timeout time.Duration

	// Type-cached plugin lists for efficient dispatch
	onInit              []OnInit
	onShutdown          []OnShutdown
	onPolicyCreated     []OnPolicyCreated
	onPolicySubscribed  []OnPolicySubscribed
	onPremiumPaid       []OnPremiumPaid
	onPolicySuspended   []OnPolicySuspended
	onPolicyReactivated []OnPolicyReactivated
	onPolicyExpired     []OnPolicyExpired
	onTransferFailed    []OnTransferFailed
	onTransferReversed  []OnTransferReversed
	onEvent             []OnEvent
}

// NewRegistry creates a new plugin registry.
func NewRegistry() *Registry {
	return &Registry{
		logger:  slog.Default(),
		timeout: DefaultTimeout,
	}
}

// WithLogger sets the logger for the registry.
func (r *Registry) WithLogger(logger *slog.Logger) *Registry {
	r.logger = logger
	return r
}

// WithTimeout sets the per-hook timeout.
func (r *Registry) WithTimeout(d time.Duration) *Registry {
	if d > 0 {
		r.timeout = d
	}
	return r
}

// Register adds a plugin to the registry and caches its interfaces.
func (r *Registry) Register(p Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.plugins {
		if existing.Name() == p.Name() {
			return fmt.Errorf("plugin: duplicate registration: %s", p.Name())
		}
	}

	r.plugins = append(r.plugins, p)

	var hooks []string
	cache := func(ok bool, name string) bool {
		if ok {
			hooks = append(hooks, name)
		}
		return ok
	}

	if v, ok := p.(OnInit); cache(ok, "OnInit") {
		r.onInit = append(r.onInit, v)
	}
	if v, ok := p.(OnShutdown); cache(ok, "OnShutdown") {
		r.onShutdown = append(r.onShutdown, v)
	}
	if v, ok := p.(OnPolicyCreated); cache(ok, "OnPolicyCreated") {
		r.onPolicyCreated = append(r.onPolicyCreated, v)
	}
	if v, ok := p.(OnPolicySubscribed); cache(ok, "OnPolicySubscribed") {
		r.onPolicySubscribed = append(r.onPolicySubscribed, v)
	}
	if v, ok := p.(OnPremiumPaid); cache(ok, "OnPremiumPaid") {
		r.onPremiumPaid = append(r.onPremiumPaid, v)
	}
	if v, ok := p.(OnPolicySuspended); cache(ok, "OnPolicySuspended") {
		r.onPolicySuspended = append(r.onPolicySuspended, v)
	}
	if v, ok := p.(OnPolicyReactivated); cache(ok, "OnPolicyReactivated") {
		r.onPolicyReactivated = append(r.onPolicyReactivated, v)
	}
	if v, ok := p.(OnPolicyExpired); cache(ok, "OnPolicyExpired") {
		r.onPolicyExpired = append(r.onPolicyExpired, v)
	}
	if v, ok := p.(OnTransferFailed); cache(ok, "OnTransferFailed") {
		r.onTransferFailed = append(r.onTransferFailed, v)
	}
	if v, ok := p.(OnTransferReversed); cache(ok, "OnTransferReversed") {
		r.onTransferReversed = append(r.onTransferReversed, v)
	}
	if v, ok := p.(OnEvent); cache(ok, "OnEvent") {
		r.onEvent = append(r.onEvent, v)
	}

	r.logger.Info("plugin registered",
		"name", p.Name(),
		"interfaces", hooks,
	)

	return nil
}

// Get returns a plugin by name.
func (r *Registry) Get(name string) Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.plugins {
		if p.Name() == name {
			return p
		}
	}
	return nil
}

// List returns all registered plugins.
func (r *Registry) List() []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Plugin, len(r.plugins))
	copy(result, r.plugins)
	return result
}

// Count returns the number of registered plugins.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.plugins)
}

// ──────────────────────────────────────────────────
// Event emission methods
// ──────────────────────────────────────────────────

// EmitInit calls OnInit for all plugins that implement it.
func (r *Registry) EmitInit(ctx context.Context, l any) {
	emit(ctx, r, "OnInit", func() []OnInit { return r.onInit }, func(p OnInit) error {
		return p.OnInit(ctx, l)
	})
}

// EmitShutdown calls OnShutdown for all plugins that implement it.
func (r *Registry) EmitShutdown(ctx context.Context) {
	emit(ctx, r, "OnShutdown", func() []OnShutdown { return r.onShutdown }, func(p OnShutdown) error {
		return p.OnShutdown(ctx)
	})
}

// EmitPolicyCreated emits a policy created event.
func (r *Registry) EmitPolicyCreated(ctx context.Context, p *policy.Policy) {
	emit(ctx, r, "OnPolicyCreated", func() []OnPolicyCreated { return r.onPolicyCreated }, func(h OnPolicyCreated) error {
		return h.OnPolicyCreated(ctx, p)
	})
}

// EmitPolicySubscribed emits a policy subscribed event.
func (r *Registry) EmitPolicySubscribed(ctx context.Context, sub *subscription.Subscription) {
	emit(ctx, r, "OnPolicySubscribed", func() []OnPolicySubscribed { return r.onPolicySubscribed }, func(h OnPolicySubscribed) error {
		return h.OnPolicySubscribed(ctx, sub)
	})
}

// EmitPremiumPaid emits a premium paid event.
func (r *Registry) EmitPremiumPaid(ctx context.Context, sub *subscription.Subscription, rec *payment.Record) {
	emit(ctx, r, "OnPremiumPaid", func() []OnPremiumPaid { return r.onPremiumPaid }, func(h OnPremiumPaid) error {
		return h.OnPremiumPaid(ctx, sub, rec)
	})
}

// EmitPolicySuspended emits a policy suspended event.
func (r *Registry) EmitPolicySuspended(ctx context.Context, sub *subscription.Subscription) {
	emit(ctx, r, "OnPolicySuspended", func() []OnPolicySuspended { return r.onPolicySuspended }, func(h OnPolicySuspended) error {
		return h.OnPolicySuspended(ctx, sub)
	})
}

// EmitPolicyReactivated emits a policy reactivated event.
func (r *Registry) EmitPolicyReactivated(ctx context.Context, sub *subscription.Subscription) {
	emit(ctx, r, "OnPolicyReactivated", func() []OnPolicyReactivated { return r.onPolicyReactivated }, func(h OnPolicyReactivated) error {
		return h.OnPolicyReactivated(ctx, sub)
	})
}

// EmitPolicyExpired emits a policy expired event.
func (r *Registry) EmitPolicyExpired(ctx context.Context, sub *subscription.Subscription) {
	emit(ctx, r, "OnPolicyExpired", func() []OnPolicyExpired { return r.onPolicyExpired }, func(h OnPolicyExpired) error {
		return h.OnPolicyExpired(ctx, sub)
	})
}

// EmitTransferFailed emits a transfer failed event.
func (r *Registry) EmitTransferFailed(ctx context.Context, t payout.Transfer, cause error) {
	emit(ctx, r, "OnTransferFailed", func() []OnTransferFailed { return r.onTransferFailed }, func(h OnTransferFailed) error {
		return h.OnTransferFailed(ctx, t, cause)
	})
}

// EmitTransferReversed emits a transfer reversed event.
func (r *Registry) EmitTransferReversed(ctx context.Context, rc payout.Receipt, cause error) {
	emit(ctx, r, "OnTransferReversed", func() []OnTransferReversed { return r.onTransferReversed }, func(h OnTransferReversed) error {
		return h.OnTransferReversed(ctx, rc, cause)
	})
}

// EmitEvent forwards a logged domain event.
func (r *Registry) EmitEvent(ctx context.Context, e *event.Event) {
	emit(ctx, r, "OnEvent", func() []OnEvent { return r.onEvent }, func(h OnEvent) error {
		return h.OnEvent(ctx, e)
	})
}

func emit[T Plugin](ctx context.Context, r *Registry, hook string, hooks func() []T, call func(T) error) {
	r.mu.RLock()
	plugins := hooks()
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return call(p)
		}); err != nil {
			r.logger.Warn("plugin "+hook+" failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// callWithTimeout calls a plugin function with a timeout.
// Plugins should never block the billing pipeline.
func (r *Registry) callWithTimeout(ctx context.Context, pluginName string, fn func() error) error {
	done := make(chan error, 1)

	go func() {
		done <- fn()
	}()

	select {
	case err := <-done:
		return err
	case <-time.After(r.timeout):
		return fmt.Errorf("plugin timeout: %s", pluginName)
	case <-ctx.Done():
		return ctx.Err()
	}
}
