// Package candle
package candle

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrEmptySeries is returned when an operation needs at least one bar.
	ErrEmptySeries = errors.New("empty candle series")
	// ErrOutOfOrder is returned when timestamps are not strictly increasing.
	ErrOutOfOrder = errors.New("candle timestamps not strictly increasing")
)

type Candle struct {
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
	Symbol    string    `json:"symbol"`
	Timeframe string    `json:"timeframe"`
}

// Validate checks if a candle has valid data
func (c *Candle) Validate() error {
	if c.Timestamp.IsZero() {
		return errors.New("candle timestamp is zero")
	}
	if c.Open <= 0 || c.High <= 0 || c.Low <= 0 || c.Close <= 0 {
		return errors.New("candle prices must be positive")
	}
	if c.High < c.Low {
		return errors.New("candle high cannot be less than low")
	}
	if c.Open < c.Low || c.Open > c.High {
		return errors.New("candle open price must be between high and low")
	}
	if c.Close < c.Low || c.Close > c.High {
		return errors.New("candle close price must be between high and low")
	}
	if c.Volume < 0 {
		return errors.New("candle volume cannot be negative")
	}
	return nil
}

// ValidateSeries checks that a bar sequence is non-empty, well formed and
// strictly increasing in timestamp.
func ValidateSeries(candles []Candle) error {
	if len(candles) == 0 {
		return ErrEmptySeries
	}
	for i := range candles {
		if err := candles[i].Validate(); err != nil {
			return fmt.Errorf("candle %d (%s): %w", i, candles[i].Timestamp.Format(time.RFC3339), err)
		}
		if i > 0 && !candles[i].Timestamp.After(candles[i-1].Timestamp) {
			return fmt.Errorf("candle %d (%s): %w", i, candles[i].Timestamp.Format(time.RFC3339), ErrOutOfOrder)
		}
	}
	return nil
}

// ClosedBars drops trailing bars whose timestamp is within the
// incompleteness window of now. A bar that recent may still be forming and
// must never influence a decision as if it were closed.
func ClosedBars(candles []Candle, now time.Time, window time.Duration) []Candle {
	end := len(candles)
	for end > 0 && now.Sub(candles[end-1].Timestamp) < window {
		end--
	}
	return candles[:end]
}

// Closes extracts the close series.
func Closes(candles []Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Close
	}
	return out
}

// Highs extracts the high series.
func Highs(candles []Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.High
	}
	return out
}

// Lows extracts the low series.
func Lows(candles []Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Low
	}
	return out
}

// Volumes extracts the volume series.
func Volumes(candles []Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Volume
	}
	return out
}

// HasVolume reports whether the series carries any volume data. FX feeds
// commonly publish none at all.
func HasVolume(candles []Candle) bool {
	for _, c := range candles {
		if c.Volume > 0 {
			return true
		}
	}
	return false
}
