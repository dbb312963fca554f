package sizing

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"cfd-signals/internal/instrument"
)

func indexInstrument() instrument.Instrument {
	return instrument.Instrument{
		Symbol:     "US500",
		Kind:       instrument.KindIndex,
		MinStep:    0.25,
		PointValue: 1,
		LotStep:    0.1,
		MinLot:     0.1,
	}
}

func fxInstrument() instrument.Instrument {
	return instrument.Instrument{
		Symbol:   "EURUSD",
		Kind:     instrument.KindFX,
		MinStep:  0.0001,
		PipValue: 10,
		LotStep:  0.01,
		MinLot:   0.01,
	}
}

func TestSizePosition(t *testing.T) {
	t.Run("index risk math", func(t *testing.T) {
		// 1% of 10000 = 100 at risk over a 5 point stop at 1/point = 20 units.
		plan := SizePosition(5000, 4995, 10000, 0.01, indexInstrument())
		assert.InDelta(t, 20.0, plan.SizeUnits, 1e-9)
		assert.InDelta(t, 100.0, plan.RiskAmount, 1e-9)
	})

	t.Run("fx risk math", func(t *testing.T) {
		// 50 pip stop at $10/pip per lot: 100 / 500 = 0.2 lots.
		plan := SizePosition(1.1000, 1.0950, 10000, 0.01, fxInstrument())
		assert.Equal(t, 0.2, plan.SizeUnits)
	})

	t.Run("exact lot step multiples survive the floor", func(t *testing.T) {
		// 1.1 - 1.095 in float64 is 0.005000...104 and the raw quotient is
		// 0.1999...; flooring that to the 0.01 lot step must still give 0.2,
		// not 0.19.
		cases := []struct {
			entry, sl, want float64
		}{
			{1.1000, 1.0950, 0.2},
			{1.2345, 1.2295, 0.2},
			{0.9000, 0.8900, 0.1},
		}
		for _, tc := range cases {
			plan := SizePosition(tc.entry, tc.sl, 10000, 0.01, fxInstrument())
			assert.Equal(t, tc.want, plan.SizeUnits, "entry %v sl %v", tc.entry, tc.sl)
		}
	})

	t.Run("size floors to lot step", func(t *testing.T) {
		// Raw size 100/6 = 16.66..., lot step 0.1 floors to 16.6.
		plan := SizePosition(5000, 4994, 10000, 0.01, indexInstrument())
		assert.InDelta(t, 16.6, plan.SizeUnits, 1e-9)
	})

	t.Run("tiny size clamps up to min lot", func(t *testing.T) {
		inst := indexInstrument()
		inst.MinLot = 1
		// Raw size well below 1.
		plan := SizePosition(5000, 4800, 1000, 0.001, inst)
		assert.Equal(t, 1.0, plan.SizeUnits)
	})

	t.Run("zero stop distance yields zero size", func(t *testing.T) {
		plan := SizePosition(5000, 5000, 10000, 0.01, indexInstrument())
		assert.Equal(t, 0.0, plan.SizeUnits)
	})

	t.Run("zero point value yields zero size", func(t *testing.T) {
		inst := indexInstrument()
		inst.PointValue = 0
		plan := SizePosition(5000, 4995, 10000, 0.01, inst)
		assert.Equal(t, 0.0, plan.SizeUnits)
	})

	t.Run("zero equity yields zero size", func(t *testing.T) {
		plan := SizePosition(5000, 4995, 0, 0.01, indexInstrument())
		assert.Equal(t, 0.0, plan.SizeUnits)
	})

	t.Run("never negative or NaN", func(t *testing.T) {
		cases := []struct {
			entry, sl, equity, risk float64
		}{
			{math.NaN(), 4995, 10000, 0.01},
			{5000, math.NaN(), 10000, 0.01},
			{5000, 4995, 10000, -0.01},
			{0, 0, 0, 0},
		}
		for _, tc := range cases {
			plan := SizePosition(tc.entry, tc.sl, tc.equity, tc.risk, indexInstrument())
			assert.False(t, math.IsNaN(plan.SizeUnits))
			assert.GreaterOrEqual(t, plan.SizeUnits, 0.0)
		}
	})
}
