package pricing

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoundToStep(t *testing.T) {
	t.Run("rounds to nearest tick", func(t *testing.T) {
		assert.InDelta(t, 1.2340, RoundToStep(1.23401, 0.0001), 1e-9)
		assert.InDelta(t, 1.2341, RoundToStep(1.23407, 0.0001), 1e-9)
		assert.InDelta(t, 5000.25, RoundToStep(5000.26, 0.25), 1e-9)
	})

	t.Run("banker's rounding at the midpoint", func(t *testing.T) {
		// 0.05 sits exactly between ticks 0.0 and 0.1: round to even tick.
		assert.InDelta(t, 0.0, RoundToStep(0.05, 0.1), 1e-9)
		assert.InDelta(t, 0.2, RoundToStep(0.15, 0.1), 1e-9)
	})

	t.Run("idempotent on the grid", func(t *testing.T) {
		for _, v := range []float64{1.2345, 100.0, 0.0001, 5000.25} {
			once := RoundToStep(v, 0.0001)
			assert.Equal(t, once, RoundToStep(once, 0.0001))
		}
	})

	t.Run("non-positive step passes value through", func(t *testing.T) {
		assert.Equal(t, 1.23456, RoundToStep(1.23456, 0))
		assert.Equal(t, 1.23456, RoundToStep(1.23456, -0.01))
	})
}

func TestRiskRewardRatio(t *testing.T) {
	assert.InDelta(t, 2.0, RiskRewardRatio(100, 95, 110), 1e-9)
	assert.InDelta(t, 2.0, RiskRewardRatio(100, 105, 90), 1e-9)
	assert.Equal(t, 0.0, RiskRewardRatio(100, 100, 110))
}

func TestValidateLevels(t *testing.T) {
	t.Run("valid long levels", func(t *testing.T) {
		assert.NoError(t, ValidateLevels(100, 95, 110, 0.01, 5))
	})

	t.Run("valid short levels", func(t *testing.T) {
		assert.NoError(t, ValidateLevels(100, 105, 90, 0.01, 5))
	})

	t.Run("same side rejected", func(t *testing.T) {
		assert.Error(t, ValidateLevels(100, 95, 98, 0.01, 5))
		assert.Error(t, ValidateLevels(100, 102, 105, 0.01, 5))
	})

	t.Run("stop too close rejected", func(t *testing.T) {
		// 5 ticks at 0.01 requires 0.05 distance.
		err := ValidateLevels(100, 99.97, 110, 0.01, 5)
		assert.ErrorContains(t, err, "stop loss too close")
	})

	t.Run("target too close rejected", func(t *testing.T) {
		err := ValidateLevels(100, 95, 100.03, 0.01, 5)
		assert.ErrorContains(t, err, "take profit too close")
	})

	t.Run("exactly the minimum passes", func(t *testing.T) {
		assert.NoError(t, ValidateLevels(100, 99, 101, 0.25, 4))
	})
}
