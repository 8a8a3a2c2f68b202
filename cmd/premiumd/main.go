// Command premiumd serves the premium ledger over HTTP and runs the
// scheduled reconciliation sweep.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/xraph/premium"
	"github.com/xraph/premium/api"
	audithook "github.com/xraph/premium/audit_hook"
	"github.com/xraph/premium/identity"
	kafkahook "github.com/xraph/premium/kafka_hook"
	redislock "github.com/xraph/premium/lock/redis"
	"github.com/xraph/premium/monitor"
	"github.com/xraph/premium/observability"
	"github.com/xraph/premium/payout"
	"github.com/xraph/premium/store/memory"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := LoadConfig()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	if err := run(cfg, logger); err != nil {
		logger.Error("premiumd exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg *Config, logger *slog.Logger) error {
	ctx := context.Background()

	mode, err := premium.ParseReactivationMode(cfg.ReactivationMode)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	opts := []premium.Option{
		premium.WithLogger(logger),
		premium.WithAdmin(cfg.AdminID),
		premium.WithReactivationMode(mode),
		premium.WithPayoutSink(payout.NewTreasury()),
		premium.WithPlugin(observability.NewMetricsExtension(observability.NewPrometheusFactory(reg))),
		premium.WithPlugin(audithook.New(audithook.RecorderFunc(func(ctx context.Context, evt *audithook.AuditEvent) error {
			logger.InfoContext(ctx, "audit",
				"action", evt.Action,
				"resource", evt.Resource,
				"resource_id", evt.ResourceID,
				"outcome", evt.Outcome,
				"severity", evt.Severity,
			)
			return nil
		}), audithook.WithLogger(logger))),
	}

	if len(cfg.ApprovedIDs) > 0 {
		registry := identity.NewRegistry()
		for _, subscriberID := range cfg.ApprovedIDs {
			registry.Approve(subscriberID, true)
		}
		opts = append(opts, premium.WithAuthorizer(registry))
	}

	if cfg.RedisURL != "" {
		locker, err := redislock.NewFromURL(cfg.RedisURL, redislock.WithLogger(logger))
		if err != nil {
			return err
		}
		defer locker.Close()
		if err := locker.Ping(ctx); err != nil {
			return err
		}
		opts = append(opts, premium.WithLocker(locker))
		logger.Info("redis subscriber lock enabled")
	}

	if len(cfg.KafkaBrokers) > 0 {
		publisher, err := kafkahook.Dial(cfg.KafkaBrokers,
			kafkahook.WithTopic(cfg.KafkaTopic),
			kafkahook.WithLogger(logger),
		)
		if err != nil {
			return err
		}
		opts = append(opts, premium.WithPlugin(publisher))
		logger.Info("kafka event publishing enabled", "topic", cfg.KafkaTopic)
	}

	ledger := premium.New(memory.New(), opts...)
	if err := ledger.Start(ctx); err != nil {
		return err
	}
	defer func() {
		if err := ledger.Stop(); err != nil {
			logger.Error("ledger shutdown failed", "error", err)
		}
	}()

	sweeper := monitor.New(ledger,
		monitor.WithSchedule(cfg.ReconcileSchedule),
		monitor.WithTimeout(cfg.ReconcileTimeout),
		monitor.WithLogger(logger),
	)
	if err := sweeper.Start(); err != nil {
		return err
	}
	defer func() { <-sweeper.Stop().Done() }()

	apiOpts := []api.Option{
		api.WithJWTSecret([]byte(cfg.JWTSecret)),
		api.WithLogger(logger),
	}
	if len(cfg.AllowedOrigins) > 0 {
		apiOpts = append(apiOpts, api.WithAllowedOrigins(cfg.AllowedOrigins...))
	}
	router := api.NewRouter(ledger, apiOpts...)
	router.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("premiumd listening", "port", cfg.ServerPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		logger.Info("shutdown signal received", "signal", sig.String())
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	logger.Info("premiumd stopped gracefully")
	return nil
}
