package notifier

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"cfd-signals/internal/engine"
	"cfd-signals/internal/rules"
	"cfd-signals/internal/sizing"
)

func TestFormatSignal(t *testing.T) {
	sig := &engine.Signal{
		ID:              "sig-1",
		Timestamp:       time.Date(2025, 6, 2, 14, 0, 0, 0, time.UTC),
		Side:            rules.Long,
		Symbol:          "US500",
		EntryPrice:      5000,
		StopLoss:        4995,
		TakeProfit:      5010,
		RiskRewardRatio: 2,
		Checks: []rules.Check{
			{Name: "trend", Passed: true, Detail: "Trend(HTF) OK: Close(5000.00) > SMA_long(4900.00), SMA_fast(4980.00) > SMA_mid(4950.00)"},
			{Name: "entry", Passed: true, Detail: "Trigger(LTF): Breakout: High(5005.00) > Donchian(5001.00)"},
		},
		Metrics: map[string]float64{"atr_pct": 0.008, "volume_ratio": 1.4},
	}
	plan := sizing.PositionPlan{SizeUnits: 20, RiskAmount: 100, RiskPct: 0.01}

	msg := FormatSignal(sig, plan)
	assert.Contains(t, msg, "[SIGNAL LONG]")
	assert.Contains(t, msg, "Symbol: US500")
	assert.Contains(t, msg, "Entry: 5000.00000")
	assert.Contains(t, msg, "StopLoss: 4995.00000")
	assert.Contains(t, msg, "TakeProfit: 5010.00000")
	assert.Contains(t, msg, "RR: 2.00")
	assert.Contains(t, msg, "Size: 20.00")
	assert.Contains(t, msg, "Risk: 100.00 (1.00%)")
	assert.Contains(t, msg, "ATR%: 0.800")
	assert.Contains(t, msg, "VolumeRatio: 1.40")
	assert.Contains(t, msg, "Breakout")
	assert.Contains(t, msg, "2025-06-02T14:00:00Z")
}

func TestFormatSignalZeroSize(t *testing.T) {
	sig := &engine.Signal{Side: rules.Short, Symbol: "EURUSD", Timestamp: time.Now()}
	msg := FormatSignal(sig, sizing.PositionPlan{})
	assert.Contains(t, msg, "[SIGNAL SHORT]")
	assert.NotContains(t, msg, "Size:")
}
