// Package engine orchestrates the signal lifecycle: closed-bar selection,
// the trend/trigger/quality gates, the macro guard, cooldown and
// deduplication, and stop/target level calculation.
package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"cfd-signals/internal/candle"
	"cfd-signals/internal/indicator"
	"cfd-signals/internal/instrument"
	"cfd-signals/internal/pricing"
	"cfd-signals/internal/rules"
	"cfd-signals/internal/statestore"
)

// Terminal statuses a tracker may attach after emission.
type Status string

const (
	StatusActive   Status = "ACTIVE"
	StatusHitSL    Status = "HIT_SL"
	StatusHitTP    Status = "HIT_TP"
	StatusTimeStop Status = "TIME_STOP"
)

// Signal is the immutable output of a successful evaluation. A new signal
// is a new ID, never a mutation of an old one.
type Signal struct {
	ID              string             `json:"id"`
	Timestamp       time.Time          `json:"timestamp"`
	Side            rules.Side         `json:"side"`
	Symbol          string             `json:"symbol"`
	EntryPrice      float64            `json:"entry_price"`
	StopLoss        float64            `json:"stop_loss"`
	TakeProfit      float64            `json:"take_profit"`
	RiskRewardRatio float64            `json:"risk_reward_ratio"`
	Checks          []rules.Check      `json:"checks"`
	Metrics         map[string]float64 `json:"metrics"`
	Status          Status             `json:"status"`
}

// Rationale flattens the structured checks into the human-readable trade
// justification, semicolon-joined.
func (s Signal) Rationale() string {
	parts := make([]string, 0, len(s.Checks))
	for _, c := range s.Checks {
		parts = append(parts, c.Detail)
	}
	return strings.Join(parts, "; ")
}

// Suppression is an ordinary "no signal this tick" outcome. It is expected
// and frequent, and must never be treated as an error.
type Suppression struct {
	Gate   string
	Reason string
}

// Params configures one engine instance. Immutable after construction.
type Params struct {
	Indicators           indicator.Params
	Entry                rules.EntryParams
	Quality              rules.QualityParams
	StopATRMult          float64
	RRRatio              float64
	CooldownDuration     time.Duration
	IncompletenessWindow time.Duration
	MinTickDistance      int
	MacroBefore          time.Duration
	MacroAfter           time.Duration
}

// MacroGuard is the external no-trade window collaborator.
// *macro.Calendar satisfies it.
type MacroGuard interface {
	TradingAllowed(now time.Time, inst instrument.Instrument, before, after time.Duration) (bool, string)
}

// Engine evaluates one (symbol, side) per call. Calls against the same
// symbol must be serialized by the caller; the engine itself holds no
// mutable state beyond the injected store.
type Engine struct {
	params Params
	states statestore.Store
	guard  MacroGuard
	log    zerolog.Logger
}

func New(params Params, states statestore.Store, guard MacroGuard, log zerolog.Logger) *Engine {
	return &Engine{params: params, states: states, guard: guard, log: log}
}

// Input is one evaluation tick's worth of market data.
type Input struct {
	Symbol     string
	Instrument instrument.Instrument
	HTF        []candle.Candle // higher-timeframe bars, regime confirmation
	LTF        []candle.Candle // lower-timeframe bars, entry timing
	Now        time.Time
}

// Evaluate runs the full pipeline for one side. Exactly one of the first
// two returns is non-nil on success; the error return is reserved for
// malformed input.
func (e *Engine) Evaluate(ctx context.Context, in Input, side rules.Side) (*Signal, *Suppression, error) {
	if err := candle.ValidateSeries(in.HTF); err != nil {
		return nil, nil, fmt.Errorf("htf bars for %s: %w", in.Symbol, err)
	}
	if err := candle.ValidateSeries(in.LTF); err != nil {
		return nil, nil, fmt.Errorf("ltf bars for %s: %w", in.Symbol, err)
	}

	// Still-forming bars must never influence a decision as if they were
	// closed.
	htf := candle.ClosedBars(in.HTF, in.Now, e.params.IncompletenessWindow)
	ltf := candle.ClosedBars(in.LTF, in.Now, e.params.IncompletenessWindow)
	if len(htf) == 0 || len(ltf) == 0 {
		return nil, &Suppression{Gate: "data", Reason: "no closed bars to evaluate"}, nil
	}

	ltfInd := indicator.Compute(ltf, e.params.Indicators)
	// The HTF shift guarantees the trend decision at bar t only sees values
	// fully known as of bar t-1.
	htfInd := indicator.Compute(htf, e.params.Indicators).Shift()

	trend := rules.TrendFilter(htfInd, side)
	if !trend.Passed {
		return nil, &Suppression{Gate: "trend", Reason: trend.Detail}, nil
	}

	entry := rules.EntryTrigger(ltf, ltfInd, side, e.params.Entry)
	if !entry.Passed {
		return nil, &Suppression{Gate: "entry", Reason: entry.Detail}, nil
	}

	quality := rules.QualityFilter(ltf, ltfInd, e.params.Quality)
	if !quality.Passed {
		return nil, &Suppression{Gate: "quality", Reason: quality.Detail}, nil
	}

	macroDetail := "macro guard disabled"
	if e.guard != nil {
		allowed, reason := e.guard.TradingAllowed(in.Now, in.Instrument, e.params.MacroBefore, e.params.MacroAfter)
		if !allowed {
			return nil, &Suppression{Gate: "macro", Reason: reason}, nil
		}
		macroDetail = reason
	}

	st, exists, err := e.states.Get(ctx, in.Symbol, string(side))
	if err != nil {
		return nil, nil, fmt.Errorf("signal state for %s/%s: %w", in.Symbol, side, err)
	}
	if exists && in.Now.Before(st.CooldownUntil) {
		return nil, &Suppression{
			Gate:   "cooldown",
			Reason: fmt.Sprintf("cooldown active until %s", st.CooldownUntil.Format(time.RFC3339)),
		}, nil
	}

	entryPrice, ok := ltfInd.Last(indicator.SeriesClose)
	if !ok {
		return nil, &Suppression{Gate: "data", Reason: "no closing price available"}, nil
	}
	atr, ok := ltfInd.Last(indicator.SeriesATR)
	if !ok {
		return nil, &Suppression{Gate: "data", Reason: "ATR unavailable"}, nil
	}

	var stopLoss, takeProfit float64
	if side == rules.Long {
		stopLoss = entryPrice - e.params.StopATRMult*atr
		takeProfit = entryPrice + e.params.RRRatio*(entryPrice-stopLoss)
	} else {
		stopLoss = entryPrice + e.params.StopATRMult*atr
		takeProfit = entryPrice - e.params.RRRatio*(stopLoss-entryPrice)
	}

	step := in.Instrument.MinStep
	entryPrice = pricing.RoundToStep(entryPrice, step)
	stopLoss = pricing.RoundToStep(stopLoss, step)
	takeProfit = pricing.RoundToStep(takeProfit, step)

	if err := pricing.ValidateLevels(entryPrice, stopLoss, takeProfit, step, e.params.MinTickDistance); err != nil {
		return nil, &Suppression{Gate: "levels", Reason: err.Error()}, nil
	}

	fingerprint := fmt.Sprintf("%.10g|%.10g|%.10g", entryPrice, stopLoss, takeProfit)
	if exists && st.Fingerprint == fingerprint {
		return nil, &Suppression{Gate: "dedup", Reason: "identical to last emitted signal"}, nil
	}

	metrics := map[string]float64{
		"atr":            atr,
		"atr_pct":        atr / entryPrice,
		"volume_ratio":   rules.VolumeRatio(ltf, ltfInd),
		"trend_strength": rules.TrendStrength(htfInd),
		"momentum_score": rules.MomentumScore(ltfInd, side),
	}
	if rsi, ok := ltfInd.Last(indicator.SeriesRSI); ok {
		metrics["rsi"] = rsi
	}

	sig := &Signal{
		ID:              uuid.NewString(),
		Timestamp:       in.Now,
		Side:            side,
		Symbol:          in.Symbol,
		EntryPrice:      entryPrice,
		StopLoss:        stopLoss,
		TakeProfit:      takeProfit,
		RiskRewardRatio: pricing.RiskRewardRatio(entryPrice, stopLoss, takeProfit),
		Checks: []rules.Check{
			trend,
			entry,
			quality,
			{Name: "macro", Passed: true, Detail: macroDetail},
		},
		Metrics: metrics,
		Status:  StatusActive,
	}

	if err := e.states.Put(ctx, in.Symbol, string(side), statestore.State{
		Fingerprint:   fingerprint,
		CooldownUntil: in.Now.Add(e.params.CooldownDuration),
	}); err != nil {
		return nil, nil, fmt.Errorf("persist signal state for %s/%s: %w", in.Symbol, side, err)
	}

	e.log.Info().
		Str("symbol", sig.Symbol).
		Str("side", string(sig.Side)).
		Float64("entry", sig.EntryPrice).
		Float64("sl", sig.StopLoss).
		Float64("tp", sig.TakeProfit).
		Msg("signal emitted")

	return sig, nil, nil
}

// EvaluateBoth runs Evaluate for LONG and SHORT. Suppressions are collected
// per side for observability; the slices are index-aligned with sides
// {LONG, SHORT}.
func (e *Engine) EvaluateBoth(ctx context.Context, in Input) ([]*Signal, []*Suppression, error) {
	var signals []*Signal
	var suppressions []*Suppression
	for _, side := range []rules.Side{rules.Long, rules.Short} {
		sig, sup, err := e.Evaluate(ctx, in, side)
		if err != nil {
			return nil, nil, err
		}
		if sig != nil {
			signals = append(signals, sig)
		}
		if sup != nil {
			suppressions = append(suppressions, sup)
			e.log.Debug().
				Str("symbol", in.Symbol).
				Str("side", string(side)).
				Str("gate", sup.Gate).
				Str("reason", sup.Reason).
				Msg("signal suppressed")
		}
	}
	return signals, suppressions, nil
}
