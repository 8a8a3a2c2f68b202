// Package redis provides a Locker shared by every ledger instance that
// points at the same Redis.
package redis

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/xraph/premium/lock"
)

// Defaults.
const (
	DefaultPrefix = "premium:lock"
	DefaultTTL    = 30 * time.Second
	DefaultRetry  = 25 * time.Millisecond
)

var _ lock.Locker = (*Locker)(nil)

// Deletes the key only if it still holds our token, so an expired holder
// cannot release a lock re-acquired by someone else.
var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

// Locker is a Redis-backed lock.Locker using SET NX PX with a random token.
type Locker struct {
	client goredis.UniversalClient
	prefix string
	ttl    time.Duration
	retry  time.Duration
	logger *slog.Logger
}

// Option configures a Locker.
type Option func(*Locker)

// WithPrefix sets the key prefix.
func WithPrefix(prefix string) Option {
	return func(l *Locker) {
		if p := strings.TrimSuffix(strings.TrimSpace(prefix), ":"); p != "" {
			l.prefix = p
		}
	}
}

// WithTTL bounds how long a crashed holder can block a subscriber.
func WithTTL(ttl time.Duration) Option {
	return func(l *Locker) {
		if ttl > 0 {
			l.ttl = ttl
		}
	}
}

// WithRetry sets the polling interval while waiting for a held lock.
func WithRetry(d time.Duration) Option {
	return func(l *Locker) {
		if d > 0 {
			l.retry = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Locker) { l.logger = logger }
}

// New returns a Locker over client.
func New(client goredis.UniversalClient, opts ...Option) *Locker {
	l := &Locker{
		client: client,
		prefix: DefaultPrefix,
		ttl:    DefaultTTL,
		retry:  DefaultRetry,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// NewFromURL parses a redis:// URL and returns a Locker with its client.
func NewFromURL(url string, opts ...Option) (*Locker, error) {
	o, err := goredis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("premium/lock/redis: parse url: %w", err)
	}
	return New(goredis.NewClient(o), opts...), nil
}

// Ping checks connectivity.
func (l *Locker) Ping(ctx context.Context) error {
	return l.client.Ping(ctx).Err()
}

// Close closes the underlying client.
func (l *Locker) Close() error {
	return l.client.Close()
}

// Lock implements lock.Locker.
func (l *Locker) Lock(ctx context.Context, key string) (func(), error) {
	k := l.prefix + ":" + key
	token, err := newToken()
	if err != nil {
		return nil, err
	}

	ticker := time.NewTicker(l.retry)
	defer ticker.Stop()

	for {
		ok, err := l.client.SetNX(ctx, k, token, l.ttl).Result()
		if err != nil && !errors.Is(err, goredis.Nil) {
			return nil, fmt.Errorf("premium/lock/redis: acquire %s: %w", key, err)
		}
		if ok {
			return l.unlocker(k, token), nil
		}

		select {
		case <-ctx.Done():
			return nil, errors.Join(lock.ErrNotAcquired, ctx.Err())
		case <-ticker.C:
		}
	}
}

func (l *Locker) unlocker(key, token string) func() {
	released := false
	return func() {
		if released {
			return
		}
		released = true

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := releaseScript.Run(ctx, l.client, []string{key}, token).Err(); err != nil {
			l.logger.Warn("redis lock release failed", "key", key, "error", err)
		}
	}
}

func newToken() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("premium/lock/redis: token: %w", err)
	}
	return hex.EncodeToString(b), nil
}
