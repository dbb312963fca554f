package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestDefaultsValidate(t *testing.T) {
	assert.NoError(t, Defaults().Validate())
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad mode", func(c *Config) { c.Mode = "live" }},
		{"no symbols", func(c *Config) { c.Symbols = nil }},
		{"zero risk", func(c *Config) { c.RiskPercent = 0 }},
		{"risk over 100", func(c *Config) { c.RiskPercent = 150 }},
		{"zero stop mult", func(c *Config) { c.StopATRMult = 0 }},
		{"zero rr", func(c *Config) { c.RRRatio = 0 }},
		{"inverted atr band", func(c *Config) { c.ATRMinPct = 0.05; c.ATRMaxPct = 0.01 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := Defaults()
			tc.mutate(&c)
			assert.Error(t, c.Validate())
		})
	}

	t.Run("backtest range must be ordered", func(t *testing.T) {
		c := Defaults()
		c.Mode = "backtest"
		c.BacktestFrom = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
		c.BacktestTo = time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
		assert.Error(t, c.Validate())

		c.BacktestTo = time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
		assert.NoError(t, c.Validate())
	})
}

func TestYAMLRoundTrip(t *testing.T) {
	data := `mode: backtest
symbols: ["US500", "EURUSD"]
htf_timeframe: "1d"
ltf_timeframe: "1d"
equity: 25000
risk_percent: 0.5
stop_atr_mult: 2.0
rr_ratio: 3.0
cooldown_minutes: 120
incompleteness_window: 5m
redis_addr: "localhost:6379"
`
	c := Defaults()
	require.NoError(t, yaml.Unmarshal([]byte(data), &c))

	assert.Equal(t, "backtest", c.Mode)
	assert.Equal(t, []string{"US500", "EURUSD"}, c.Symbols)
	assert.Equal(t, 25000.0, c.Equity)
	assert.Equal(t, 2.0, c.StopATRMult)
	assert.Equal(t, 2*time.Hour, c.Cooldown())
	assert.Equal(t, 5*time.Minute, c.IncompletenessWindow.Duration)
	// Untouched fields keep their defaults.
	assert.Equal(t, 5, c.MinTickDistance)
}

func TestRiskFraction(t *testing.T) {
	c := Defaults()
	c.RiskPercent = 1.0
	assert.InDelta(t, 0.01, c.RiskFraction(), 1e-12)
}
