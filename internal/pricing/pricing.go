// Package pricing handles tick rounding and price level arithmetic.
package pricing

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// RoundToStep rounds value to the nearest multiple of step using banker's
// rounding on the step grid. A non-positive step is a configuration mistake:
// the input is returned unchanged with a warning, one bad instrument must
// not halt the pipeline.
func RoundToStep(value, step float64) float64 {
	if step <= 0 {
		log.Warn().Float64("step", step).Msg("pricing: non-positive step, returning value unchanged")
		return value
	}
	v := decimal.NewFromFloat(value)
	s := decimal.NewFromFloat(step)
	ticks := v.Div(s).RoundBank(0)
	f, _ := ticks.Mul(s).Float64()
	return f
}

// RiskRewardRatio computes |tp-entry| / |entry-sl|. Returns 0 when the stop
// distance is zero.
func RiskRewardRatio(entry, stopLoss, takeProfit float64) float64 {
	risk := abs(entry - stopLoss)
	if risk == 0 {
		return 0
	}
	return abs(takeProfit-entry) / risk
}

// ValidateLevels checks that stop and target sit on opposite sides of entry
// and that each is at least minTicks ticks away. Signals too tight to
// execute meaningfully are rejected here.
func ValidateLevels(entry, stopLoss, takeProfit, step float64, minTicks int) error {
	if (stopLoss > entry) == (takeProfit > entry) {
		return fmt.Errorf("stop loss and take profit must be on opposite sides of entry")
	}
	minDistance := step * float64(minTicks)
	if d := abs(entry - stopLoss); d < minDistance {
		return fmt.Errorf("stop loss too close to entry: %g < %g", d, minDistance)
	}
	if d := abs(takeProfit - entry); d < minDistance {
		return fmt.Errorf("take profit too close to entry: %g < %g", d, minDistance)
	}
	return nil
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
