package lock

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemorySerializesSameKey(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		inside  int
		maxSeen int
	)
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := m.Lock(ctx, "alice")
			if err != nil {
				t.Error(err)
				return
			}
			mu.Lock()
			inside++
			if inside > maxSeen {
				maxSeen = inside
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			inside--
			mu.Unlock()
			unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxSeen)
	assert.Equal(t, 0, m.Held())
}

func TestMemoryIndependentKeys(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	unlockA, err := m.Lock(ctx, "alice")
	require.NoError(t, err)
	defer unlockA()

	unlockB, err := m.Lock(ctx, "bob")
	require.NoError(t, err)
	unlockB()
}

func TestMemoryHonoursContext(t *testing.T) {
	m := NewMemory()
	unlock, err := m.Lock(context.Background(), "alice")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = m.Lock(ctx, "alice")
	assert.ErrorIs(t, err, ErrNotAcquired)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	unlock()
	unlock() // idempotent
	assert.Equal(t, 0, m.Held())
}

func TestMemoryThroughLockerInterface(t *testing.T) {
	var lk Locker = NewMemory()

	unlock, err := lk.Lock(context.Background(), "carol")
	require.NoError(t, err)
	assert.Equal(t, 1, lk.(*Memory).Held())
	unlock()
	assert.Zero(t, lk.(*Memory).Held())
}
