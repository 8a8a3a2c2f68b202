// Package api exposes the premium ledger over HTTP.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/xraph/premium"
)

// DefaultRequestTimeout bounds every request.
const DefaultRequestTimeout = 30 * time.Second

type config struct {
	secret         []byte
	logger         *slog.Logger
	allowedOrigins []string
	timeout        time.Duration
}

// Option configures the router.
type Option func(*config)

// WithJWTSecret sets the HS256 key used to verify bearer tokens. Without
// it, or with an empty key, every request is anonymous and actor-only
// routes answer 401.
func WithJWTSecret(secret []byte) Option {
	return func(c *config) {
		if len(secret) == 0 {
			c.secret = nil
			return
		}
		c.secret = secret
	}
}

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) { c.logger = logger }
}

// WithAllowedOrigins sets the CORS origin allow-list.
func WithAllowedOrigins(origins ...string) Option {
	return func(c *config) { c.allowedOrigins = origins }
}

// WithRequestTimeout bounds request handling.
func WithRequestTimeout(d time.Duration) Option {
	return func(c *config) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// NewRouter creates a chi router serving l.
func NewRouter(l *premium.Ledger, opts ...Option) *chi.Mux {
	cfg := config{
		logger:         slog.Default(),
		allowedOrigins: []string{"https://*", "http://*"},
		timeout:        DefaultRequestTimeout,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	h := &Handler{ledger: l, logger: cfg.logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(cfg.logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(cfg.timeout))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	if len(cfg.secret) > 0 {
		r.Use(Authenticate(cfg.secret))
	}

	r.Get("/health", h.handleHealth)

	r.Route("/v1", func(r chi.Router) {
		r.Route("/policies", func(r chi.Router) {
			r.Get("/", h.handleListPolicies)
			r.Get("/{id}", h.handleGetPolicy)
			r.With(RequireActor).Post("/", h.handleCreatePolicy)
		})

		r.Route("/subscriptions", func(r chi.Router) {
			r.With(RequireActor).Post("/", h.handleSubscribe)

			r.Route("/{subscriber}", func(r chi.Router) {
				r.Get("/", h.handleGetSubscription)
				r.Get("/payments", h.handleListPayments)
				r.With(RequireActor).Post("/payments", h.handlePay)
				r.Post("/reconcile", h.handleReconcile)
				r.Get("/due", h.handleDue)
			})
		})

		r.Get("/events", h.handleListEvents)
	})

	return r
}

func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.Info("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}
