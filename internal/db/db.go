// Package db
package db

import (
	"context"
	"time"

	"cfd-signals/internal/candle"
	"cfd-signals/internal/engine"
)

// Storage is the interface for all persistent storage: fetched bars (the
// backtest candle cache) and emitted signals.
type Storage interface {
	SaveCandles(ctx context.Context, candles []candle.Candle) error
	GetCandles(ctx context.Context, symbol, timeframe string, start, end time.Time) ([]candle.Candle, error)
	SaveSignal(ctx context.Context, sig engine.Signal) error
	GetSignals(ctx context.Context, symbol string, start, end time.Time) ([]engine.Signal, error)
	Close() error
}
