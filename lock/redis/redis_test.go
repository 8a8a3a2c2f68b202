package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/premium/lock"
)

func setupLocker(t *testing.T, opts ...Option) (*Locker, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	l := New(goredis.NewClient(&goredis.Options{Addr: mr.Addr()}), opts...)
	t.Cleanup(func() { _ = l.Close() })
	return l, mr
}

func TestLockAndRelease(t *testing.T) {
	l, mr := setupLocker(t)
	ctx := context.Background()

	unlock, err := l.Lock(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, mr.Exists("premium:lock:alice"))

	unlock()
	assert.False(t, mr.Exists("premium:lock:alice"))
}

func TestLockBlocksSecondHolder(t *testing.T) {
	l, _ := setupLocker(t, WithRetry(5*time.Millisecond))

	unlock, err := l.Lock(context.Background(), "alice")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err = l.Lock(ctx, "alice")
	assert.ErrorIs(t, err, lock.ErrNotAcquired)

	unlock()

	unlock2, err := l.Lock(context.Background(), "alice")
	require.NoError(t, err)
	unlock2()
}

func TestExpiredHolderCannotReleaseNewLock(t *testing.T) {
	l, mr := setupLocker(t, WithTTL(time.Second), WithPrefix("test:"))
	ctx := context.Background()

	stale, err := l.Lock(ctx, "alice")
	require.NoError(t, err)

	mr.FastForward(2 * time.Second)
	assert.False(t, mr.Exists("test:alice"))

	fresh, err := l.Lock(ctx, "alice")
	require.NoError(t, err)

	stale()
	assert.True(t, mr.Exists("test:alice"), "stale unlock must not delete the new holder's key")

	fresh()
	assert.False(t, mr.Exists("test:alice"))
}

func TestNewFromURL(t *testing.T) {
	mr := miniredis.RunT(t)

	l, err := NewFromURL("redis://" + mr.Addr())
	require.NoError(t, err)
	defer l.Close()
	require.NoError(t, l.Ping(context.Background()))

	_, err = NewFromURL("://bad")
	assert.Error(t, err)
}
