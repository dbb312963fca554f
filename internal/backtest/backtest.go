// Package backtest replays historical bars through the signal engine and
// tracks each emitted signal to its stop, target, or time stop.
package backtest

import (
	"context"
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/rs/zerolog"

	"cfd-signals/internal/candle"
	"cfd-signals/internal/engine"
	"cfd-signals/internal/instrument"
	"cfd-signals/internal/rules"
	"cfd-signals/internal/sizing"
	"cfd-signals/internal/tfutils"
)

// Trade is one signal followed to its exit.
type Trade struct {
	SignalID   string        `json:"signal_id"`
	Symbol     string        `json:"symbol"`
	Side       rules.Side    `json:"side"`
	Entry      float64       `json:"entry"`
	StopLoss   float64       `json:"stop_loss"`
	TakeProfit float64       `json:"take_profit"`
	Exit       float64       `json:"exit"`
	EntryTime  time.Time     `json:"entry_time"`
	ExitTime   time.Time     `json:"exit_time"`
	Status     engine.Status `json:"status"`
	Size       float64       `json:"size"`
	PnL        float64       `json:"pnl"`
	RMultiple  float64       `json:"r_multiple"`
	Rationale  string        `json:"rationale"`
}

// Results summarizes one symbol's replay.
type Results struct {
	Symbol          string             `json:"symbol"`
	StartingBalance float64            `json:"starting_balance"`
	Equity          float64            `json:"equity"`
	MaxEquity       float64            `json:"max_equity"`
	MaxDrawdown     float64            `json:"max_drawdown"`
	Wins            int                `json:"wins"`
	Losses          int                `json:"losses"`
	TradeLog        []Trade            `json:"trade_log"`
	EquityCurve     []float64          `json:"equity_curve"`
	Metrics         map[string]float64 `json:"metrics"`
	Suppressions    map[string]int     `json:"suppressions"`
}

// Config holds the replay parameters.
type Config struct {
	StartingBalance float64
	RiskPct         float64
	TimeStopBars    int
	WarmupBars      int
}

type Backtester struct {
	engine *engine.Engine
	cfg    Config
	log    zerolog.Logger
}

func New(eng *engine.Engine, cfg Config, log zerolog.Logger) *Backtester {
	if cfg.WarmupBars <= 0 {
		cfg.WarmupBars = 50
	}
	return &Backtester{engine: eng, cfg: cfg, log: log}
}

// openTrade is a signal awaiting its exit.
type openTrade struct {
	trade    Trade
	barsHeld int
}

// Run replays the LTF bars in order. At bar i the engine only ever sees
// bars [0, i], so the replay makes exactly the decisions a live scan would
// have made at that moment.
func (b *Backtester) Run(ctx context.Context, inst instrument.Instrument, htf, ltf []candle.Candle) (*Results, error) {
	if err := candle.ValidateSeries(ltf); err != nil {
		return nil, fmt.Errorf("ltf bars: %w", err)
	}
	if err := candle.ValidateSeries(htf); err != nil {
		return nil, fmt.Errorf("htf bars: %w", err)
	}

	results := &Results{
		Symbol:          inst.Symbol,
		StartingBalance: b.cfg.StartingBalance,
		Equity:          b.cfg.StartingBalance,
		MaxEquity:       b.cfg.StartingBalance,
		Metrics:         make(map[string]float64),
		Suppressions:    make(map[string]int),
	}

	ltfDur := tfutils.GetTimeframeDuration(ltf[0].Timeframe)
	if ltfDur <= 0 {
		ltfDur = 24 * time.Hour
	}

	var open []*openTrade

	for i := range ltf {
		bar := ltf[i]

		// Exits are settled against the bar before any new entry on it.
		open = b.settleOpenTrades(open, bar, results)

		if i < b.cfg.WarmupBars {
			results.EquityCurve = append(results.EquityCurve, results.Equity)
			continue
		}

		// The replay tick sits a nanosecond inside the bar's own session:
		// a Friday daily bar closes at Saturday 00:00 and must not be
		// judged by Saturday's calendar.
		now := bar.Timestamp.Add(ltfDur - time.Nanosecond)
		htfVisible := barsBefore(htf, now)
		if len(htfVisible) == 0 {
			results.EquityCurve = append(results.EquityCurve, results.Equity)
			continue
		}

		signals, suppressions, err := b.engine.EvaluateBoth(ctx, engine.Input{
			Symbol:     inst.Symbol,
			Instrument: inst,
			HTF:        htfVisible,
			LTF:        ltf[:i+1],
			Now:        now,
		})
		if err != nil {
			return nil, fmt.Errorf("evaluate bar %d (%s): %w", i, bar.Timestamp.Format(time.RFC3339), err)
		}

		for _, sup := range suppressions {
			results.Suppressions[sup.Gate]++
		}

		for _, sig := range signals {
			plan := sizing.SizePosition(sig.EntryPrice, sig.StopLoss, results.Equity, b.cfg.RiskPct, inst)
			if plan.SizeUnits <= 0 {
				continue
			}
			open = append(open, &openTrade{trade: Trade{
				SignalID:   sig.ID,
				Symbol:     sig.Symbol,
				Side:       sig.Side,
				Entry:      sig.EntryPrice,
				StopLoss:   sig.StopLoss,
				TakeProfit: sig.TakeProfit,
				EntryTime:  sig.Timestamp,
				Size:       plan.SizeUnits,
				Rationale:  sig.Rationale(),
			}})
		}

		results.EquityCurve = append(results.EquityCurve, results.Equity)
	}

	// Anything still open closes at the last bar's close.
	last := ltf[len(ltf)-1]
	for _, ot := range open {
		b.closeTrade(ot, last.Close, last.Timestamp, engine.StatusTimeStop, results)
	}

	b.computeMetrics(results)
	return results, nil
}

// settleOpenTrades checks every open trade against one bar. The stop is
// checked before the target: when a bar spans both levels the worse outcome
// is assumed.
func (b *Backtester) settleOpenTrades(open []*openTrade, bar candle.Candle, results *Results) []*openTrade {
	var still []*openTrade
	for _, ot := range open {
		ot.barsHeld++

		var exit float64
		var status engine.Status
		switch ot.trade.Side {
		case rules.Long:
			if bar.Low <= ot.trade.StopLoss {
				exit, status = ot.trade.StopLoss, engine.StatusHitSL
			} else if bar.High >= ot.trade.TakeProfit {
				exit, status = ot.trade.TakeProfit, engine.StatusHitTP
			}
		case rules.Short:
			if bar.High >= ot.trade.StopLoss {
				exit, status = ot.trade.StopLoss, engine.StatusHitSL
			} else if bar.Low <= ot.trade.TakeProfit {
				exit, status = ot.trade.TakeProfit, engine.StatusHitTP
			}
		}

		if status == "" && b.cfg.TimeStopBars > 0 && ot.barsHeld >= b.cfg.TimeStopBars {
			exit, status = bar.Close, engine.StatusTimeStop
		}

		if status == "" {
			still = append(still, ot)
			continue
		}
		b.closeTrade(ot, exit, bar.Timestamp, status, results)
	}
	return still
}

func (b *Backtester) closeTrade(ot *openTrade, exit float64, at time.Time, status engine.Status, results *Results) {
	t := ot.trade
	t.Exit = exit
	t.ExitTime = at
	t.Status = status

	risk := math.Abs(t.Entry - t.StopLoss)
	var move float64
	if t.Side == rules.Long {
		move = exit - t.Entry
	} else {
		move = t.Entry - exit
	}
	if risk > 0 {
		t.RMultiple = move / risk
	}
	// PnL in account currency: one R of adverse movement loses exactly the
	// risked fraction of equity at entry.
	riskAmount := results.Equity * b.cfg.RiskPct
	t.PnL = t.RMultiple * riskAmount

	results.Equity += t.PnL
	if results.Equity > results.MaxEquity {
		results.MaxEquity = results.Equity
	}
	if dd := results.MaxEquity - results.Equity; dd > results.MaxDrawdown {
		results.MaxDrawdown = dd
	}
	if t.PnL > 0 {
		results.Wins++
	} else {
		results.Losses++
	}
	results.TradeLog = append(results.TradeLog, t)

	b.log.Debug().
		Str("symbol", t.Symbol).
		Str("side", string(t.Side)).
		Str("status", string(status)).
		Float64("r", t.RMultiple).
		Msg("backtest trade closed")
}

func barsBefore(candles []candle.Candle, now time.Time) []candle.Candle {
	end := len(candles)
	for end > 0 && !candles[end-1].Timestamp.Before(now) {
		end--
	}
	return candles[:end]
}

func (b *Backtester) computeMetrics(results *Results) {
	trades := len(results.TradeLog)
	results.Metrics["trades"] = float64(trades)
	results.Metrics["max_drawdown"] = results.MaxDrawdown
	if trades == 0 {
		return
	}

	winRate := float64(results.Wins) / float64(trades)
	results.Metrics["win_rate"] = winRate

	var grossWin, grossLoss, sumWin, sumLoss float64
	var pnls []float64
	for _, t := range results.TradeLog {
		pnls = append(pnls, t.PnL)
		if t.PnL > 0 {
			grossWin += t.PnL
			sumWin += t.PnL
		} else {
			grossLoss += -t.PnL
			sumLoss += t.PnL
		}
	}
	if grossLoss > 0 {
		results.Metrics["profit_factor"] = grossWin / grossLoss
	}
	if results.Wins > 0 {
		results.Metrics["avg_win"] = sumWin / float64(results.Wins)
	}
	if results.Losses > 0 {
		results.Metrics["avg_loss"] = sumLoss / float64(results.Losses)
	}
	results.Metrics["expectancy"] = winRate*results.Metrics["avg_win"] + (1-winRate)*results.Metrics["avg_loss"]

	mean := 0.0
	for _, p := range pnls {
		mean += p
	}
	mean /= float64(len(pnls))
	variance := 0.0
	for _, p := range pnls {
		variance += (p - mean) * (p - mean)
	}
	std := math.Sqrt(variance / float64(len(pnls)))
	if std > 0 {
		// Annualized on the assumption of roughly one trade opportunity per
		// trading day.
		results.Metrics["sharpe"] = mean / std * math.Sqrt(252)
	}

	if results.StartingBalance > 0 {
		results.Metrics["total_return"] = results.Equity - results.StartingBalance
		results.Metrics["percent_return"] = (results.Equity - results.StartingBalance) / results.StartingBalance * 100
	}
}

// SaveResults writes the trade log and equity curve as CSV files under dir.
func SaveResults(results *Results, dir string) error {
	tradeRows := [][]string{{"Trade#", "Side", "Entry", "EntryTime", "Exit", "ExitTime", "Status", "R", "PnL"}}
	for i, t := range results.TradeLog {
		tradeRows = append(tradeRows, []string{
			fmt.Sprintf("%d", i+1),
			string(t.Side),
			fmt.Sprintf("%.5f", t.Entry),
			t.EntryTime.Format(time.RFC3339),
			fmt.Sprintf("%.5f", t.Exit),
			t.ExitTime.Format(time.RFC3339),
			string(t.Status),
			fmt.Sprintf("%.2f", t.RMultiple),
			fmt.Sprintf("%.2f", t.PnL),
		})
	}
	equityRows := [][]string{{"Step", "Equity"}}
	for i, eq := range results.EquityCurve {
		equityRows = append(equityRows, []string{
			fmt.Sprintf("%d", i+1),
			fmt.Sprintf("%.2f", eq),
		})
	}

	if err := saveCSV(fmt.Sprintf("%s/backtest_%s_trades.csv", dir, results.Symbol), tradeRows); err != nil {
		return err
	}
	return saveCSV(fmt.Sprintf("%s/backtest_%s_equity.csv", dir, results.Symbol), equityRows)
}

func saveCSV(filename string, rows [][]string) error {
	f, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("create %s: %w", filename, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()
	for _, row := range rows {
		if err := w.Write(row); err != nil {
			return fmt.Errorf("write %s: %w", filename, err)
		}
	}
	return nil
}
