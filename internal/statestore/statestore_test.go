package statestore

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	t.Run("miss on empty store", func(t *testing.T) {
		_, ok, err := m.Get(ctx, "US500", "LONG")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("put then get", func(t *testing.T) {
		until := time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)
		st := State{Fingerprint: "5000|4995|5010", CooldownUntil: until}
		require.NoError(t, m.Put(ctx, "US500", "LONG", st))

		got, ok, err := m.Get(ctx, "US500", "LONG")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, st, got)
	})

	t.Run("sides are independent", func(t *testing.T) {
		_, ok, err := m.Get(ctx, "US500", "SHORT")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("symbols are independent", func(t *testing.T) {
		_, ok, err := m.Get(ctx, "EURUSD", "LONG")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("overwrite", func(t *testing.T) {
		st := State{Fingerprint: "changed"}
		require.NoError(t, m.Put(ctx, "US500", "LONG", st))
		got, ok, _ := m.Get(ctx, "US500", "LONG")
		require.True(t, ok)
		assert.Equal(t, "changed", got.Fingerprint)
	})
}

func TestMemoryStoreConcurrent(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = m.Put(ctx, "US500", "LONG", State{Fingerprint: "x"})
		}()
		go func() {
			defer wg.Done()
			_, _, _ = m.Get(ctx, "US500", "LONG")
		}()
	}
	wg.Wait()

	_, ok, err := m.Get(ctx, "US500", "LONG")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisKey(t *testing.T) {
	assert.Equal(t, "signalstate:US500:LONG", redisKey("US500", "LONG"))
	assert.Equal(t, "signalstate:EURUSD:SHORT", redisKey("EURUSD", "SHORT"))
}
