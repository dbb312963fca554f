package db

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cfd-signals/internal/candle"
	"cfd-signals/internal/engine"
	"cfd-signals/internal/rules"
)

func sampleCandles(symbol string, n int, start time.Time) []candle.Candle {
	out := make([]candle.Candle, n)
	for i := range out {
		out[i] = candle.Candle{
			Timestamp: start.Add(time.Duration(i) * 24 * time.Hour),
			Open:      100,
			High:      101,
			Low:       99,
			Close:     100,
			Symbol:    symbol,
			Timeframe: "1d",
		}
	}
	return out
}

func TestMemoryStorageCandles(t *testing.T) {
	ctx := context.Background()
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	m := NewMemory()

	require.NoError(t, m.SaveCandles(ctx, sampleCandles("US500", 5, start)))

	t.Run("sorted retrieval", func(t *testing.T) {
		got, err := m.GetCandles(ctx, "US500", "1d", start, start.AddDate(0, 0, 10))
		require.NoError(t, err)
		require.Len(t, got, 5)
		for i := 1; i < len(got); i++ {
			assert.True(t, got[i].Timestamp.After(got[i-1].Timestamp))
		}
	})

	t.Run("exclusive upper bound", func(t *testing.T) {
		got, err := m.GetCandles(ctx, "US500", "1d", start, start.AddDate(0, 0, 2))
		require.NoError(t, err)
		assert.Len(t, got, 2)
	})

	t.Run("unknown symbol is empty", func(t *testing.T) {
		got, err := m.GetCandles(ctx, "EURUSD", "1d", start, start.AddDate(0, 0, 10))
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("upsert does not duplicate", func(t *testing.T) {
		require.NoError(t, m.SaveCandles(ctx, sampleCandles("US500", 5, start)))
		got, err := m.GetCandles(ctx, "US500", "1d", start, start.AddDate(0, 0, 10))
		require.NoError(t, err)
		assert.Len(t, got, 5)
	})

	t.Run("invalid candle rejected", func(t *testing.T) {
		bad := sampleCandles("US500", 1, start)
		bad[0].High = 50
		assert.Error(t, m.SaveCandles(ctx, bad))
	})
}

func TestMemoryStorageSignals(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	ts := time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)

	sig := engine.Signal{
		ID:         "sig-1",
		Timestamp:  ts,
		Side:       rules.Long,
		Symbol:     "US500",
		EntryPrice: 5000,
		StopLoss:   4995,
		TakeProfit: 5010,
		Status:     engine.StatusActive,
	}
	require.NoError(t, m.SaveSignal(ctx, sig))

	t.Run("range query", func(t *testing.T) {
		got, err := m.GetSignals(ctx, "US500", ts.Add(-time.Hour), ts.Add(time.Hour))
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "sig-1", got[0].ID)
	})

	t.Run("outside range empty", func(t *testing.T) {
		got, err := m.GetSignals(ctx, "US500", ts.Add(time.Hour), ts.Add(2*time.Hour))
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("other symbol empty", func(t *testing.T) {
		got, err := m.GetSignals(ctx, "EURUSD", ts.Add(-time.Hour), ts.Add(time.Hour))
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("empty symbol matches all", func(t *testing.T) {
		got, err := m.GetSignals(ctx, "", ts.Add(-time.Hour), ts.Add(time.Hour))
		require.NoError(t, err)
		assert.Len(t, got, 1)
	})
}
