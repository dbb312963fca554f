package db

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"cfd-signals/internal/candle"
	"cfd-signals/internal/engine"
)

// MemoryStorage is an in-process Storage for tests and one-off backtests.
type MemoryStorage struct {
	mu sync.RWMutex

	// Candles keyed by symbol|timeframe|timestamp
	candles map[string]candle.Candle
	signals []engine.Signal
}

func NewMemory() *MemoryStorage {
	return &MemoryStorage{candles: make(map[string]candle.Candle)}
}

func candleKey(symbol, timeframe string, ts time.Time) string {
	return strings.ToUpper(symbol) + "|" + timeframe + "|" + ts.UTC().Format(time.RFC3339Nano)
}

func (m *MemoryStorage) SaveCandles(_ context.Context, candles []candle.Candle) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range candles {
		if err := c.Validate(); err != nil {
			return err
		}
		m.candles[candleKey(c.Symbol, c.Timeframe, c.Timestamp)] = c
	}
	return nil
}

func (m *MemoryStorage) GetCandles(_ context.Context, symbol, timeframe string, start, end time.Time) ([]candle.Candle, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []candle.Candle
	for _, c := range m.candles {
		if !strings.EqualFold(c.Symbol, symbol) || c.Timeframe != timeframe {
			continue
		}
		if c.Timestamp.Before(start) || !c.Timestamp.Before(end) {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out, nil
}

func (m *MemoryStorage) SaveSignal(_ context.Context, sig engine.Signal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.signals = append(m.signals, sig)
	return nil
}

func (m *MemoryStorage) GetSignals(_ context.Context, symbol string, start, end time.Time) ([]engine.Signal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []engine.Signal
	for _, s := range m.signals {
		if symbol != "" && s.Symbol != symbol {
			continue
		}
		if s.Timestamp.Before(start) || s.Timestamp.After(end) {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

func (m *MemoryStorage) Close() error { return nil }
