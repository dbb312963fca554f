// Package sizing converts a risk budget into a concrete position size.
package sizing

import (
	"math"

	"github.com/shopspring/decimal"

	"cfd-signals/internal/instrument"
)

// PositionPlan is the sized hypothetical position for a signal. Pure
// function output, not persisted.
type PositionPlan struct {
	SizeUnits     float64 `json:"size_units"`
	RiskAmount    float64 `json:"risk_amount"`
	RiskPct       float64 `json:"risk_pct"`
	ValuePerPoint float64 `json:"value_per_point"`
}

// SizePosition computes a fixed-fractional position size: riskPct of equity
// at risk between entry and stop. FX distances convert to pips via the
// instrument tick size and pip value; other kinds convert via point value
// directly. Zero stop distance or zero value-per-point yields size 0, which
// the caller must treat as "do not trade".
//
// The lot arithmetic runs on decimals: flooring raw float64 quotients to the
// lot step drops a whole step when the size is an exact multiple (0.2 lots
// computed as 0.1999... floors to 0.19).
func SizePosition(entry, stopLoss, equity, riskPct float64, inst instrument.Instrument) PositionPlan {
	riskAmount := equity * riskPct

	valuePerPoint := inst.PointValue
	if inst.Kind == instrument.KindFX {
		valuePerPoint = inst.PipValue
	}
	plan := PositionPlan{RiskAmount: riskAmount, RiskPct: riskPct, ValuePerPoint: valuePerPoint}

	if badFloat(entry) || badFloat(stopLoss) || badFloat(riskAmount) || riskAmount <= 0 {
		return plan
	}

	distance := decimal.NewFromFloat(entry).Sub(decimal.NewFromFloat(stopLoss)).Abs()

	var valuePerUnit decimal.Decimal
	if inst.Kind == instrument.KindFX {
		if inst.MinStep > 0 {
			pips := distance.Div(decimal.NewFromFloat(inst.MinStep))
			valuePerUnit = pips.Mul(decimal.NewFromFloat(inst.PipValue))
		}
	} else {
		valuePerUnit = distance.Mul(decimal.NewFromFloat(inst.PointValue))
	}

	if distance.Sign() <= 0 || valuePerUnit.Sign() <= 0 {
		return plan
	}

	size := floorToLotStep(decimal.NewFromFloat(riskAmount).Div(valuePerUnit), inst.LotStep)
	units, _ := size.Float64()
	if units < inst.MinLot {
		units = inst.MinLot
	}
	plan.SizeUnits = units
	return plan
}

func floorToLotStep(size decimal.Decimal, lotStep float64) decimal.Decimal {
	if lotStep <= 0 {
		return size
	}
	step := decimal.NewFromFloat(lotStep)
	return size.Div(step).Floor().Mul(step)
}

func badFloat(v float64) bool {
	return math.IsNaN(v) || math.IsInf(v, 0)
}
