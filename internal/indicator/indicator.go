// Package indicator computes technical indicator series over candle data.
//
// Every function returns a slice aligned index-for-index with its input.
// Leading entries are NaN until enough bars exist to seed the computation
// window; downstream rule evaluators treat NaN as "filter fails", never as a
// vacuous pass.
package indicator

import (
	"math"

	"cfd-signals/internal/candle"
)

// Series names produced by Compute.
const (
	SeriesClose         = "close"
	SeriesSMAFast       = "sma_fast"
	SeriesSMAMid        = "sma_mid"
	SeriesSMALong       = "sma_long"
	SeriesMACD          = "macd"
	SeriesMACDSignal    = "macd_signal"
	SeriesMACDHistogram = "macd_histogram"
	SeriesATR           = "atr"
	SeriesDonchianHigh  = "donchian_high"
	SeriesDonchianLow   = "donchian_low"
	SeriesROC           = "roc"
	SeriesRSI           = "rsi"
	SeriesVolumeSMA     = "volume_sma"
)

// Params holds the lookback windows for the indicator set.
type Params struct {
	SMAFast        int `yaml:"sma_fast"`
	SMAMid         int `yaml:"sma_mid"`
	SMALong        int `yaml:"sma_long"`
	MACDFast       int `yaml:"macd_fast"`
	MACDSlow       int `yaml:"macd_slow"`
	MACDSignal     int `yaml:"macd_signal"`
	ATRPeriod      int `yaml:"atr_period"`
	DonchianPeriod int `yaml:"donchian_period"`
	ROCLookback    int `yaml:"roc_lookback"`
	RSIPeriod      int `yaml:"rsi_period"`
	VolumePeriod   int `yaml:"volume_period"`
}

// DefaultParams returns the standard parameter set.
func DefaultParams() Params {
	return Params{
		SMAFast:        20,
		SMAMid:         50,
		SMALong:        200,
		MACDFast:       12,
		MACDSlow:       26,
		MACDSignal:     9,
		ATRPeriod:      14,
		DonchianPeriod: 20,
		ROCLookback:    10,
		RSIPeriod:      14,
		VolumePeriod:   20,
	}
}

// Set maps indicator names to series aligned with the input candles.
type Set map[string][]float64

// Compute derives the full indicator set from a candle sequence. Pure and
// deterministic; recomputed on every evaluation.
func Compute(candles []candle.Candle, p Params) Set {
	closes := candle.Closes(candles)
	highs := candle.Highs(candles)
	lows := candle.Lows(candles)

	s := Set{
		SeriesClose:        closes,
		SeriesSMAFast:      SMA(closes, p.SMAFast),
		SeriesSMAMid:       SMA(closes, p.SMAMid),
		SeriesSMALong:      SMA(closes, p.SMALong),
		SeriesATR:          ATR(highs, lows, closes, p.ATRPeriod),
		SeriesDonchianHigh: RollingMax(highs, p.DonchianPeriod),
		SeriesDonchianLow:  RollingMin(lows, p.DonchianPeriod),
		SeriesROC:          ROC(closes, p.ROCLookback),
		SeriesRSI:          RSI(closes, p.RSIPeriod),
	}

	macd, signal, histogram := MACD(closes, p.MACDFast, p.MACDSlow, p.MACDSignal)
	s[SeriesMACD] = macd
	s[SeriesMACDSignal] = signal
	s[SeriesMACDHistogram] = histogram

	if candle.HasVolume(candles) {
		s[SeriesVolumeSMA] = SMA(candle.Volumes(candles), p.VolumePeriod)
	}

	return s
}

// Shift returns a copy of the set lagged by one bar, with NaN at the head of
// each series. The engine applies this to higher-timeframe indicators so the
// trend decision at bar t only sees values fully known as of bar t-1.
func (s Set) Shift() Set {
	out := make(Set, len(s))
	for name, series := range s {
		shifted := make([]float64, len(series))
		if len(series) > 0 {
			shifted[0] = math.NaN()
			copy(shifted[1:], series[:len(series)-1])
		}
		out[name] = shifted
	}
	return out
}

// Last returns the final value of the named series. The second return is
// false when the series is absent, empty, or the value is NaN.
func (s Set) Last(name string) (float64, bool) {
	series, ok := s[name]
	if !ok || len(series) == 0 {
		return 0, false
	}
	v := series[len(series)-1]
	if math.IsNaN(v) {
		return 0, false
	}
	return v, true
}

// At returns the value of the named series at offset from the end (0 = last
// bar, 1 = previous bar). False when unavailable or NaN.
func (s Set) At(name string, offset int) (float64, bool) {
	series, ok := s[name]
	if !ok || len(series) <= offset {
		return 0, false
	}
	v := series[len(series)-1-offset]
	if math.IsNaN(v) {
		return 0, false
	}
	return v, true
}

func nanSlice(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

// SMA computes a simple moving average over trailing windows of exactly
// period values. A window containing NaN input stays NaN.
func SMA(values []float64, period int) []float64 {
	out := nanSlice(len(values))
	if period <= 0 || len(values) < period {
		return out
	}
	for i := period - 1; i < len(values); i++ {
		sum := 0.0
		ok := true
		for j := i - period + 1; j <= i; j++ {
			if math.IsNaN(values[j]) {
				ok = false
				break
			}
			sum += values[j]
		}
		if ok {
			out[i] = sum / float64(period)
		}
	}
	return out
}

// EMA computes an exponential moving average with span-equivalent smoothing
// alpha = 2/(span+1). Seeded with the SMA of the first span values, so the
// series is NaN until span bars exist.
func EMA(values []float64, span int) []float64 {
	out := nanSlice(len(values))
	if span <= 0 || len(values) < span {
		return out
	}
	sum := 0.0
	for i := 0; i < span; i++ {
		sum += values[i]
	}
	out[span-1] = sum / float64(span)
	alpha := 2.0 / (float64(span) + 1.0)
	for i := span; i < len(values); i++ {
		out[i] = alpha*values[i] + (1-alpha)*out[i-1]
	}
	return out
}

// MACD returns the MACD line (EMA(fast)-EMA(slow)), its signal line
// (EMA(MACD, signal)) and the histogram (MACD - signal line).
func MACD(values []float64, fast, slow, signal int) (macd, signalLine, histogram []float64) {
	emaFast := EMA(values, fast)
	emaSlow := EMA(values, slow)
	macd = make([]float64, len(values))
	for i := range values {
		macd[i] = emaFast[i] - emaSlow[i] // NaN propagates
	}

	// The signal EMA runs over the defined tail of the MACD line.
	signalLine = nanSlice(len(values))
	histogram = nanSlice(len(values))
	start := slow - 1
	if start < 0 || start >= len(values) {
		return macd, signalLine, histogram
	}
	tail := EMA(macd[start:], signal)
	copy(signalLine[start:], tail)
	for i := start; i < len(values); i++ {
		histogram[i] = macd[i] - signalLine[i]
	}
	return macd, signalLine, histogram
}

// TrueRange returns the per-bar true range series. The first bar has no
// previous close, so its entry is NaN.
func TrueRange(highs, lows, closes []float64) []float64 {
	out := nanSlice(len(highs))
	for i := 1; i < len(highs); i++ {
		hl := highs[i] - lows[i]
		hc := math.Abs(highs[i] - closes[i-1])
		lc := math.Abs(lows[i] - closes[i-1])
		out[i] = math.Max(hl, math.Max(hc, lc))
	}
	return out
}

// ATR computes the average true range as a simple rolling mean of the true
// range. Defined from index period onward (the first true range sits at
// index 1).
func ATR(highs, lows, closes []float64, period int) []float64 {
	return SMA(TrueRange(highs, lows, closes), period)
}

// RollingMax computes the trailing maximum over windows of exactly period.
func RollingMax(values []float64, period int) []float64 {
	out := nanSlice(len(values))
	if period <= 0 || len(values) < period {
		return out
	}
	for i := period - 1; i < len(values); i++ {
		m := values[i-period+1]
		for j := i - period + 2; j <= i; j++ {
			if values[j] > m {
				m = values[j]
			}
		}
		out[i] = m
	}
	return out
}

// RollingMin computes the trailing minimum over windows of exactly period.
func RollingMin(values []float64, period int) []float64 {
	out := nanSlice(len(values))
	if period <= 0 || len(values) < period {
		return out
	}
	for i := period - 1; i < len(values); i++ {
		m := values[i-period+1]
		for j := i - period + 2; j <= i; j++ {
			if values[j] < m {
				m = values[j]
			}
		}
		out[i] = m
	}
	return out
}

// ROC computes the rate of change: values[t]/values[t-period] - 1.
func ROC(values []float64, period int) []float64 {
	out := nanSlice(len(values))
	if period <= 0 {
		return out
	}
	for i := period; i < len(values); i++ {
		if values[i-period] != 0 {
			out[i] = values[i]/values[i-period] - 1
		}
	}
	return out
}

// RSI computes the relative strength index with Wilder smoothing.
func RSI(prices []float64, period int) []float64 {
	out := nanSlice(len(prices))
	if period <= 0 || len(prices) < period+1 {
		return out
	}
	var gain, loss float64
	for i := 1; i <= period; i++ {
		change := prices[i] - prices[i-1]
		if change > 0 {
			gain += change
		} else {
			loss += -change
		}
	}
	avgGain := gain / float64(period)
	avgLoss := loss / float64(period)
	out[period] = rsiValue(avgGain, avgLoss)
	for i := period + 1; i < len(prices); i++ {
		change := prices[i] - prices[i-1]
		gain, loss = 0, 0
		if change > 0 {
			gain = change
		} else {
			loss = -change
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
		out[i] = rsiValue(avgGain, avgLoss)
	}
	return out
}

func rsiValue(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - (100 / (1 + rs))
}
