// Package statestore holds the per-(symbol, side) signal state used by the
// cooldown and deduplication gates. The store is injected by the caller so
// evaluations stay deterministic in tests and safely parallel by symbol.
package statestore

import (
	"context"
	"sync"
	"time"
)

// State is the engine's memory of the last emitted signal for one
// (symbol, side). Mutated only right after a signal is emitted.
type State struct {
	Fingerprint   string    `json:"fingerprint"` // entry|sl|tp triple
	CooldownUntil time.Time `json:"cooldown_until"`
}

// Store persists signal state between evaluations.
type Store interface {
	Get(ctx context.Context, symbol, side string) (State, bool, error)
	Put(ctx context.Context, symbol, side string, st State) error
}

// Memory is an in-process Store for tests and backtests.
type Memory struct {
	mu     sync.RWMutex
	states map[string]State
}

func NewMemory() *Memory {
	return &Memory{states: make(map[string]State)}
}

func key(symbol, side string) string {
	return symbol + "|" + side
}

func (m *Memory) Get(_ context.Context, symbol, side string) (State, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st, ok := m.states[key(symbol, side)]
	return st, ok, nil
}

func (m *Memory) Put(_ context.Context, symbol, side string, st State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[key(symbol, side)] = st
	return nil
}
