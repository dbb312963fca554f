package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"cfd-signals/internal/backtest"
	"cfd-signals/internal/candle"
	"cfd-signals/internal/config"
	"cfd-signals/internal/datasource"
	"cfd-signals/internal/db"
	"cfd-signals/internal/engine"
	"cfd-signals/internal/indicator"
	"cfd-signals/internal/instrument"
	"cfd-signals/internal/macro"
	"cfd-signals/internal/metrics"
	"cfd-signals/internal/notifier"
	"cfd-signals/internal/rules"
	"cfd-signals/internal/sizing"
	"cfd-signals/internal/statestore"
	"cfd-signals/internal/util"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	log := util.NewLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	instruments, err := instrument.LoadFile(cfg.InstrumentsFile)
	if err != nil {
		log.Fatal().Err(err).Str("file", cfg.InstrumentsFile).Msg("load instruments")
	}

	var guard engine.MacroGuard
	if cfg.MacroCalendarFile != "" {
		calendar, err := macro.LoadCalendar(cfg.MacroCalendarFile)
		if err != nil {
			log.Fatal().Err(err).Str("file", cfg.MacroCalendarFile).Msg("load macro calendar")
		}
		guard = calendar
		log.Info().Int("events", len(calendar.Events)).Msg("macro calendar loaded")
	}

	var storage db.Storage
	if cfg.DBConnStr != "" {
		pg, err := db.NewPostgres(cfg.DBConnStr, cfg.DBMaxOpen, cfg.DBMaxIdle)
		if err != nil {
			log.Fatal().Err(err).Msg("connect postgres")
		}
		storage = pg
		log.Info().Msg("connected to Postgres")
	} else {
		storage = db.NewMemory()
		log.Warn().Msg("no DB_CONN_STR set, using in-memory storage")
	}
	defer storage.Close()

	source := datasource.NewStooq()

	params := engineParams(cfg)

	switch cfg.Mode {
	case "scan":
		runScan(ctx, cfg, params, instruments, guard, storage, source, log)
	case "backtest":
		runBacktest(ctx, cfg, params, instruments, guard, storage, source, log)
	default:
		log.Fatal().Str("mode", cfg.Mode).Msg("unsupported mode")
	}
}

func engineParams(cfg config.Config) engine.Params {
	return engine.Params{
		Indicators: indicator.DefaultParams(),
		Entry: rules.EntryParams{
			ROCMinLong:  cfg.ROCMinLong,
			ROCMaxShort: cfg.ROCMaxShort,
		},
		Quality: rules.QualityParams{
			ATRMinPct: cfg.ATRMinPct,
			ATRMaxPct: cfg.ATRMaxPct,
			VolMult:   cfg.VolMult,
		},
		StopATRMult:          cfg.StopATRMult,
		RRRatio:              cfg.RRRatio,
		CooldownDuration:     cfg.Cooldown(),
		IncompletenessWindow: cfg.IncompletenessWindow.Duration,
		MinTickDistance:      cfg.MinTickDistance,
		MacroBefore:          cfg.MacroBefore.Duration,
		MacroAfter:           cfg.MacroAfter.Duration,
	}
}

func newStateStore(ctx context.Context, cfg config.Config, log zerolog.Logger) statestore.Store {
	if cfg.RedisAddr == "" {
		log.Warn().Msg("no REDIS_ADDR set, signal state is process-local")
		return statestore.NewMemory()
	}
	r := statestore.NewRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.RedisTTL.Duration)
	if err := r.Ping(ctx); err != nil {
		log.Fatal().Err(err).Str("addr", cfg.RedisAddr).Msg("connect redis")
	}
	log.Info().Str("addr", cfg.RedisAddr).Msg("connected to Redis")
	return r
}

func newNotifier(cfg config.Config, log zerolog.Logger) notifier.Notifier {
	if cfg.TelegramToken == "" || cfg.TelegramChatID == "" {
		log.Warn().Msg("telegram not configured, alerts disabled")
		return notifier.Noop{}
	}
	return notifier.NewTelegramNotifier(cfg.TelegramToken, cfg.TelegramChatID, cfg.NotificationRetries, cfg.NotificationDelay.Duration, log)
}

// runScan evaluates every configured symbol once per interval. Symbols are
// scanned sequentially; signal state lives in the injected store so restarts
// keep cooldowns intact.
func runScan(
	ctx context.Context,
	cfg config.Config,
	params engine.Params,
	instruments map[string]instrument.Instrument,
	guard engine.MacroGuard,
	storage db.Storage,
	source datasource.Source,
	log zerolog.Logger,
) {
	states := newStateStore(ctx, cfg, log)
	eng := engine.New(params, states, guard, log)
	alerts := newNotifier(cfg, log)
	srv := metrics.Serve(cfg.MetricsAddr)
	defer srv.Close()
	log.Info().Str("addr", cfg.MetricsAddr).Msg("metrics server started")

	ticker := time.NewTicker(cfg.ScanInterval.Duration)
	defer ticker.Stop()

	scanOnce(ctx, cfg, eng, instruments, storage, source, alerts, log)
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("shutting down")
			return
		case <-ticker.C:
			scanOnce(ctx, cfg, eng, instruments, storage, source, alerts, log)
		}
	}
}

func scanOnce(
	ctx context.Context,
	cfg config.Config,
	eng *engine.Engine,
	instruments map[string]instrument.Instrument,
	storage db.Storage,
	source datasource.Source,
	alerts notifier.Notifier,
	log zerolog.Logger,
) {
	now := time.Now().UTC()
	// Enough history for the slowest indicator plus a margin.
	lookback := now.AddDate(-2, 0, 0)

	for _, symbol := range cfg.Symbols {
		inst, ok := instruments[symbol]
		if !ok {
			log.Error().Str("symbol", symbol).Msg("symbol not in instruments file, skipping")
			continue
		}
		metrics.ScansTotal.WithLabelValues(symbol).Inc()

		ltf, err := fetchCandles(ctx, storage, source, inst, cfg.LTFTimeframe, lookback, now, log)
		if err != nil {
			log.Error().Err(err).Str("symbol", symbol).Msg("fetch LTF bars")
			continue
		}
		htf := ltf
		if cfg.HTFTimeframe != cfg.LTFTimeframe {
			htf, err = fetchCandles(ctx, storage, source, inst, cfg.HTFTimeframe, lookback, now, log)
			if err != nil {
				log.Error().Err(err).Str("symbol", symbol).Msg("fetch HTF bars")
				continue
			}
		}

		signals, suppressions, err := eng.EvaluateBoth(ctx, engine.Input{
			Symbol:     symbol,
			Instrument: inst,
			HTF:        htf,
			LTF:        ltf,
			Now:        now,
		})
		if err != nil {
			log.Error().Err(err).Str("symbol", symbol).Msg("evaluate")
			continue
		}

		for _, sup := range suppressions {
			metrics.SuppressionsTotal.WithLabelValues(symbol, sup.Gate).Inc()
		}

		for _, sig := range signals {
			metrics.SignalsTotal.WithLabelValues(symbol, string(sig.Side)).Inc()
			if err := storage.SaveSignal(ctx, *sig); err != nil {
				log.Error().Err(err).Str("signal", sig.ID).Msg("persist signal")
			}
			plan := sizing.SizePosition(sig.EntryPrice, sig.StopLoss, cfg.Equity, cfg.RiskFraction(), inst)
			if err := alerts.SendWithRetry(notifier.FormatSignal(sig, plan)); err != nil {
				log.Error().Err(err).Str("signal", sig.ID).Msg("send alert")
			}
		}
	}
}

// fetchCandles serves bars from storage when present and falls back to the
// public data source, persisting what it downloads.
func fetchCandles(
	ctx context.Context,
	storage db.Storage,
	source datasource.Source,
	inst instrument.Instrument,
	timeframe string,
	start, end time.Time,
	log zerolog.Logger,
) ([]candle.Candle, error) {
	candles, err := storage.GetCandles(ctx, inst.Symbol, timeframe, start, end)
	if err != nil {
		return nil, fmt.Errorf("load candles from storage: %w", err)
	}
	if len(candles) > 0 {
		return candles, nil
	}

	dataSymbol := inst.DataSymbol
	if dataSymbol == "" {
		dataSymbol = inst.Symbol
	}
	downloaded, err := source.Fetch(ctx, dataSymbol, timeframe, start, end)
	if err != nil {
		return nil, err
	}
	for i := range downloaded {
		downloaded[i].Symbol = inst.Symbol
	}
	if err := storage.SaveCandles(ctx, downloaded); err != nil {
		log.Error().Err(err).Str("symbol", inst.Symbol).Msg("persist downloaded candles")
	}
	return downloaded, nil
}

// runBacktest replays each symbol through its own engine with an isolated
// in-memory state store, then writes the trade log and equity curve to CSV.
func runBacktest(
	ctx context.Context,
	cfg config.Config,
	params engine.Params,
	instruments map[string]instrument.Instrument,
	guard engine.MacroGuard,
	storage db.Storage,
	source datasource.Source,
	log zerolog.Logger,
) {
	from, to := cfg.BacktestFrom, cfg.BacktestTo
	if from.IsZero() {
		from = time.Now().AddDate(-2, 0, 0)
	}
	if to.IsZero() {
		to = time.Now()
	}

	for _, symbol := range cfg.Symbols {
		inst, ok := instruments[symbol]
		if !ok {
			log.Error().Str("symbol", symbol).Msg("symbol not in instruments file, skipping")
			continue
		}

		ltf, err := fetchCandles(ctx, storage, source, inst, cfg.LTFTimeframe, from, to, log)
		if err != nil {
			log.Fatal().Err(err).Str("symbol", symbol).Msg("load backtest bars")
		}
		htf := ltf
		if cfg.HTFTimeframe != cfg.LTFTimeframe {
			htf, err = fetchCandles(ctx, storage, source, inst, cfg.HTFTimeframe, from, to, log)
			if err != nil {
				log.Fatal().Err(err).Str("symbol", symbol).Msg("load backtest HTF bars")
			}
		}
		log.Info().
			Str("symbol", symbol).
			Int("bars", len(ltf)).
			Time("from", from).
			Time("to", to).
			Msg("backtest loaded")

		eng := engine.New(params, statestore.NewMemory(), guard, log)
		bt := backtest.New(eng, backtest.Config{
			StartingBalance: cfg.Equity,
			RiskPct:         cfg.RiskFraction(),
			TimeStopBars:    cfg.TimeStopBars,
			WarmupBars:      cfg.WarmupBars,
		}, log)

		results, err := bt.Run(ctx, inst, htf, ltf)
		if err != nil {
			log.Fatal().Err(err).Str("symbol", symbol).Msg("backtest failed")
		}

		printResults(results, log)
		if err := backtest.SaveResults(results, cfg.OutputDir); err != nil {
			log.Error().Err(err).Str("symbol", symbol).Msg("save backtest results")
		}
	}
}

func printResults(r *backtest.Results, log zerolog.Logger) {
	ev := log.Info().
		Str("symbol", r.Symbol).
		Int("trades", len(r.TradeLog)).
		Int("wins", r.Wins).
		Int("losses", r.Losses).
		Float64("equity", r.Equity).
		Float64("max_drawdown", r.MaxDrawdown)
	for _, k := range []string{"win_rate", "profit_factor", "expectancy", "sharpe", "percent_return"} {
		if v, ok := r.Metrics[k]; ok {
			ev = ev.Float64(k, v)
		}
	}
	ev.Msg("backtest results")

	for gate, n := range r.Suppressions {
		log.Debug().Str("gate", gate).Int("count", n).Msg("suppressions")
	}
}
