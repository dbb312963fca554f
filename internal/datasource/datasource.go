// Package datasource
package datasource

import (
	"context"
	"time"

	"cfd-signals/internal/candle"
)

// Source is the market data collaborator. Implementations must report an
// error on empty or malformed results rather than returning partially-valid
// data; timestamps are UTC and strictly increasing.
type Source interface {
	Fetch(ctx context.Context, symbol, timeframe string, start, end time.Time) ([]candle.Candle, error)
}
