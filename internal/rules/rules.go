// Package rules holds the three signal gate predicates: trend regime on the
// higher timeframe, entry trigger on the lower timeframe, and the
// volatility/volume quality gate.
//
// Each evaluator is a pure predicate over the latest bar/indicator snapshot.
// A missing indicator value always fails closed with an explicit detail,
// never a vacuous pass.
package rules

import (
	"fmt"
	"strings"

	"cfd-signals/internal/candle"
	"cfd-signals/internal/indicator"
)

type Side string

const (
	Long  Side = "LONG"
	Short Side = "SHORT"
)

// Check is one evaluator's structured verdict. Text rationale is assembled
// from these only at the alert boundary.
type Check struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail"`
}

// EntryParams configures the entry trigger thresholds.
type EntryParams struct {
	ROCMinLong  float64 `yaml:"roc_min_long"`
	ROCMaxShort float64 `yaml:"roc_max_short"`
}

// QualityParams configures the quality gate.
type QualityParams struct {
	ATRMinPct float64 `yaml:"atr_min_pct"`
	ATRMaxPct float64 `yaml:"atr_max_pct"`
	VolMult   float64 `yaml:"vol_mult"`
}

// TrendFilter checks the higher-timeframe regime. LONG requires
// close > SMA(long) and SMA(fast) > SMA(mid); SHORT the mirrored strict
// inequalities, so both sides can never pass on the same snapshot.
func TrendFilter(ind indicator.Set, side Side) Check {
	check := Check{Name: "trend"}

	closePrice, ok1 := ind.Last(indicator.SeriesClose)
	smaLong, ok2 := ind.Last(indicator.SeriesSMALong)
	smaFast, ok3 := ind.Last(indicator.SeriesSMAFast)
	smaMid, ok4 := ind.Last(indicator.SeriesSMAMid)
	if !ok1 || !ok2 || !ok3 || !ok4 {
		check.Detail = "missing trend indicator data"
		return check
	}

	switch side {
	case Long:
		if closePrice > smaLong && smaFast > smaMid {
			check.Passed = true
			check.Detail = fmt.Sprintf("Trend(HTF) OK: Close(%.2f) > SMA_long(%.2f), SMA_fast(%.2f) > SMA_mid(%.2f)",
				closePrice, smaLong, smaFast, smaMid)
			return check
		}
		var reasons []string
		if closePrice <= smaLong {
			reasons = append(reasons, fmt.Sprintf("Close(%.2f) <= SMA_long(%.2f)", closePrice, smaLong))
		}
		if smaFast <= smaMid {
			reasons = append(reasons, fmt.Sprintf("SMA_fast(%.2f) <= SMA_mid(%.2f)", smaFast, smaMid))
		}
		check.Detail = "Trend(HTF) FAIL: " + strings.Join(reasons, ", ")
	case Short:
		if closePrice < smaLong && smaFast < smaMid {
			check.Passed = true
			check.Detail = fmt.Sprintf("Trend(HTF) OK: Close(%.2f) < SMA_long(%.2f), SMA_fast(%.2f) < SMA_mid(%.2f)",
				closePrice, smaLong, smaFast, smaMid)
			return check
		}
		var reasons []string
		if closePrice >= smaLong {
			reasons = append(reasons, fmt.Sprintf("Close(%.2f) >= SMA_long(%.2f)", closePrice, smaLong))
		}
		if smaFast >= smaMid {
			reasons = append(reasons, fmt.Sprintf("SMA_fast(%.2f) >= SMA_mid(%.2f)", smaFast, smaMid))
		}
		check.Detail = "Trend(HTF) FAIL: " + strings.Join(reasons, ", ")
	default:
		check.Detail = fmt.Sprintf("invalid side: %s", side)
	}
	return check
}

// EntryTrigger fires when any of the three sub-triggers does: Donchian
// breakout over the prior window, MACD cross-and-sign, or ROC momentum past
// its threshold. The detail enumerates every sub-trigger that fired, since
// it is surfaced as the trade rationale.
func EntryTrigger(candles []candle.Candle, ind indicator.Set, side Side, p EntryParams) Check {
	check := Check{Name: "entry"}
	if len(candles) == 0 {
		check.Detail = "no candle data"
		return check
	}

	var fired []string
	if detail, ok := donchianBreakout(candles, ind, side); ok {
		fired = append(fired, detail)
	}
	if detail, ok := macdCross(ind, side); ok {
		fired = append(fired, detail)
	}
	if detail, ok := rocMomentum(ind, side, p); ok {
		fired = append(fired, detail)
	}

	if len(fired) > 0 {
		check.Passed = true
		check.Detail = "Trigger(LTF): " + strings.Join(fired, "; ")
	} else {
		check.Detail = "no entry triggers met"
	}
	return check
}

// donchianBreakout compares the current bar's extreme against the channel
// one bar back, so the bar cannot break out of a window that includes
// itself.
func donchianBreakout(candles []candle.Candle, ind indicator.Set, side Side) (string, bool) {
	last := candles[len(candles)-1]
	switch side {
	case Long:
		high, ok := ind.At(indicator.SeriesDonchianHigh, 1)
		if ok && last.High > high {
			return fmt.Sprintf("Breakout: High(%.2f) > Donchian(%.2f)", last.High, high), true
		}
	case Short:
		low, ok := ind.At(indicator.SeriesDonchianLow, 1)
		if ok && last.Low < low {
			return fmt.Sprintf("Breakout: Low(%.2f) < Donchian(%.2f)", last.Low, low), true
		}
	}
	return "", false
}

func macdCross(ind indicator.Set, side Side) (string, bool) {
	macd, ok1 := ind.Last(indicator.SeriesMACD)
	signal, ok2 := ind.Last(indicator.SeriesMACDSignal)
	if !ok1 || !ok2 {
		return "", false
	}
	switch side {
	case Long:
		if macd > signal && macd > 0 {
			return fmt.Sprintf("MACD Cross: MACD(%.4f) > Signal(%.4f) > 0", macd, signal), true
		}
	case Short:
		if macd < signal && macd < 0 {
			return fmt.Sprintf("MACD Cross: MACD(%.4f) < Signal(%.4f) < 0", macd, signal), true
		}
	}
	return "", false
}

func rocMomentum(ind indicator.Set, side Side, p EntryParams) (string, bool) {
	roc, ok := ind.Last(indicator.SeriesROC)
	if !ok {
		return "", false
	}
	switch side {
	case Long:
		if roc >= p.ROCMinLong {
			return fmt.Sprintf("ROC: %.3f >= %.3f", roc, p.ROCMinLong), true
		}
	case Short:
		if roc <= p.ROCMaxShort {
			return fmt.Sprintf("ROC: %.3f <= %.3f", roc, p.ROCMaxShort), true
		}
	}
	return "", false
}

// QualityFilter requires ATR as a percentage of price inside the configured
// band, and, when the series carries volume data, current volume at or
// above volMult times its rolling mean. Absent volume data skips the volume
// sub-check; present-but-thin volume fails the whole filter.
func QualityFilter(candles []candle.Candle, ind indicator.Set, p QualityParams) Check {
	check := Check{Name: "quality"}
	if len(candles) == 0 {
		check.Detail = "no candle data"
		return check
	}

	closePrice, ok1 := ind.Last(indicator.SeriesClose)
	atr, ok2 := ind.Last(indicator.SeriesATR)
	if !ok1 || !ok2 || closePrice == 0 {
		check.Detail = "missing ATR data"
		return check
	}

	atrPct := atr / closePrice
	if atrPct < p.ATRMinPct || atrPct > p.ATRMaxPct {
		check.Detail = fmt.Sprintf("ATR%% %.4f outside [%.4f, %.4f]", atrPct, p.ATRMinPct, p.ATRMaxPct)
		return check
	}
	parts := []string{fmt.Sprintf("ATR%% %.4f in band", atrPct)}

	if candle.HasVolume(candles) {
		volSMA, ok := ind.Last(indicator.SeriesVolumeSMA)
		if !ok || volSMA == 0 {
			check.Detail = "volume present but rolling mean unavailable"
			return check
		}
		ratio := candles[len(candles)-1].Volume / volSMA
		if ratio < p.VolMult {
			check.Detail = fmt.Sprintf("volume %.2fx below %.2fx threshold", ratio, p.VolMult)
			return check
		}
		parts = append(parts, fmt.Sprintf("Vol %.1fx", ratio))
	}

	check.Passed = true
	check.Detail = "Quality: " + strings.Join(parts, "; ")
	return check
}

// VolumeRatio returns current volume over its rolling mean, or 0 when
// volume data is absent. Surfaced in signal metrics.
func VolumeRatio(candles []candle.Candle, ind indicator.Set) float64 {
	if len(candles) == 0 || !candle.HasVolume(candles) {
		return 0
	}
	volSMA, ok := ind.Last(indicator.SeriesVolumeSMA)
	if !ok || volSMA == 0 {
		return 0
	}
	return candles[len(candles)-1].Volume / volSMA
}

// TrendStrength scores the SMA stack ordering: 1 for a full bullish stack,
// -1 for a full bearish stack, 0 otherwise.
func TrendStrength(ind indicator.Set) float64 {
	smaFast, ok1 := ind.Last(indicator.SeriesSMAFast)
	smaMid, ok2 := ind.Last(indicator.SeriesSMAMid)
	smaLong, ok3 := ind.Last(indicator.SeriesSMALong)
	if !ok1 || !ok2 || !ok3 {
		return 0
	}
	switch {
	case smaFast > smaMid && smaMid > smaLong:
		return 1
	case smaFast < smaMid && smaMid < smaLong:
		return -1
	}
	return 0
}

// MomentumScore scores ROC and MACD sign agreement with the side, 0.5 each.
func MomentumScore(ind indicator.Set, side Side) float64 {
	score := 0.0
	if roc, ok := ind.Last(indicator.SeriesROC); ok {
		if (side == Long && roc > 0) || (side == Short && roc < 0) {
			score += 0.5
		}
	}
	if macd, ok := ind.Last(indicator.SeriesMACD); ok {
		if (side == Long && macd > 0) || (side == Short && macd < 0) {
			score += 0.5
		}
	}
	return score
}
