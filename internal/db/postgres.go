package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"cfd-signals/internal/candle"
	"cfd-signals/internal/engine"
	"cfd-signals/internal/rules"
)

// Postgres is the live Storage implementation.
type Postgres struct {
	db *sql.DB
}

// NewPostgres opens a connection pool and ensures the schema exists.
func NewPostgres(connStr string, maxOpen, maxIdle int) (*Postgres, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	p := &Postgres{db: db}
	if err := p.migrate(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Postgres) migrate() error {
	_, err := p.db.Exec(`
	CREATE TABLE IF NOT EXISTS candles (
		symbol     TEXT             NOT NULL,
		timeframe  TEXT             NOT NULL,
		timestamp  TIMESTAMPTZ      NOT NULL,
		open       DOUBLE PRECISION NOT NULL,
		high       DOUBLE PRECISION NOT NULL,
		low        DOUBLE PRECISION NOT NULL,
		close      DOUBLE PRECISION NOT NULL,
		volume     DOUBLE PRECISION NOT NULL,
		PRIMARY KEY (symbol, timeframe, timestamp)
	);
	CREATE TABLE IF NOT EXISTS signals (
		id          TEXT             PRIMARY KEY,
		timestamp   TIMESTAMPTZ      NOT NULL,
		symbol      TEXT             NOT NULL,
		side        TEXT             NOT NULL,
		entry_price DOUBLE PRECISION NOT NULL,
		stop_loss   DOUBLE PRECISION NOT NULL,
		take_profit DOUBLE PRECISION NOT NULL,
		risk_reward DOUBLE PRECISION NOT NULL,
		status      TEXT             NOT NULL,
		rationale   TEXT             NOT NULL,
		metrics     JSONB            NOT NULL
	);
	CREATE INDEX IF NOT EXISTS signals_symbol_ts_idx ON signals (symbol, timestamp);`)
	if err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}
	return nil
}

func (p *Postgres) SaveCandles(ctx context.Context, candles []candle.Candle) error {
	if len(candles) == 0 {
		return nil
	}
	for i := range candles {
		if err := candles[i].Validate(); err != nil {
			return fmt.Errorf("invalid candle at index %d: %w", i, err)
		}
	}

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO candles (symbol, timeframe, timestamp, open, high, low, close, volume)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		ON CONFLICT (symbol, timeframe, timestamp) DO UPDATE SET
			open=EXCLUDED.open, high=EXCLUDED.high, low=EXCLUDED.low,
			close=EXCLUDED.close, volume=EXCLUDED.volume`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("prepare candle insert: %w", err)
	}
	defer stmt.Close()

	for _, c := range candles {
		if _, err := stmt.ExecContext(ctx, c.Symbol, c.Timeframe, c.Timestamp, c.Open, c.High, c.Low, c.Close, c.Volume); err != nil {
			tx.Rollback()
			return fmt.Errorf("save candle %s %s: %w", c.Symbol, c.Timestamp.Format(time.RFC3339), err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit candles: %w", err)
	}
	return nil
}

func (p *Postgres) GetCandles(ctx context.Context, symbol, timeframe string, start, end time.Time) ([]candle.Candle, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT symbol, timeframe, timestamp, open, high, low, close, volume
		FROM candles
		WHERE symbol=$1 AND timeframe=$2 AND timestamp >= $3 AND timestamp < $4
		ORDER BY timestamp`,
		symbol, timeframe, start, end)
	if err != nil {
		return nil, fmt.Errorf("query candles: %w", err)
	}
	defer rows.Close()

	var out []candle.Candle
	for rows.Next() {
		var c candle.Candle
		if err := rows.Scan(&c.Symbol, &c.Timeframe, &c.Timestamp, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume); err != nil {
			return nil, fmt.Errorf("scan candle: %w", err)
		}
		c.Timestamp = c.Timestamp.UTC()
		out = append(out, c)
	}
	return out, rows.Err()
}

func (p *Postgres) SaveSignal(ctx context.Context, sig engine.Signal) error {
	metrics, err := json.Marshal(sig.Metrics)
	if err != nil {
		return fmt.Errorf("encode signal metrics: %w", err)
	}
	_, err = p.db.ExecContext(ctx, `
		INSERT INTO signals (id, timestamp, symbol, side, entry_price, stop_loss, take_profit, risk_reward, status, rationale, metrics)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		sig.ID, sig.Timestamp, sig.Symbol, string(sig.Side), sig.EntryPrice, sig.StopLoss, sig.TakeProfit,
		sig.RiskRewardRatio, string(sig.Status), sig.Rationale(), metrics)
	if err != nil {
		return fmt.Errorf("save signal %s: %w", sig.ID, err)
	}
	return nil
}

func (p *Postgres) GetSignals(ctx context.Context, symbol string, start, end time.Time) ([]engine.Signal, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, timestamp, symbol, side, entry_price, stop_loss, take_profit, risk_reward, status, metrics
		FROM signals
		WHERE ($1 = '' OR symbol = $1) AND timestamp >= $2 AND timestamp <= $3
		ORDER BY timestamp`,
		symbol, start, end)
	if err != nil {
		return nil, fmt.Errorf("query signals: %w", err)
	}
	defer rows.Close()

	var out []engine.Signal
	for rows.Next() {
		var s engine.Signal
		var side, status string
		var metrics []byte
		if err := rows.Scan(&s.ID, &s.Timestamp, &s.Symbol, &side, &s.EntryPrice, &s.StopLoss, &s.TakeProfit,
			&s.RiskRewardRatio, &status, &metrics); err != nil {
			return nil, fmt.Errorf("scan signal: %w", err)
		}
		s.Side = rules.Side(side)
		s.Status = engine.Status(status)
		s.Timestamp = s.Timestamp.UTC()
		if err := json.Unmarshal(metrics, &s.Metrics); err != nil {
			return nil, fmt.Errorf("decode signal metrics: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (p *Postgres) Close() error { return p.db.Close() }
