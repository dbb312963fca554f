package datasource

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"cfd-signals/internal/candle"
)

// Stooq fetches historical OHLCV bars from the stooq.com public CSV
// endpoint. The endpoint serves daily and coarser bars only.
type Stooq struct {
	BaseURL    string
	Client     *http.Client
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

func NewStooq() *Stooq {
	return &Stooq{
		BaseURL:    "https://stooq.com/q/d/l/",
		Client:     &http.Client{Timeout: 30 * time.Second},
		MaxRetries: 3,
		BaseDelay:  2 * time.Second,
		MaxDelay:   30 * time.Second,
	}
}

func stooqInterval(timeframe string) (string, error) {
	switch timeframe {
	case "1d":
		return "d", nil
	case "1w":
		return "w", nil
	default:
		return "", fmt.Errorf("stooq does not serve timeframe %s", timeframe)
	}
}

// Fetch downloads bars for symbol in [start, end). Retries transient
// failures with exponential backoff and jitter.
func (s *Stooq) Fetch(ctx context.Context, symbol, timeframe string, start, end time.Time) ([]candle.Candle, error) {
	interval, err := stooqInterval(timeframe)
	if err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("s", strings.ToLower(symbol))
	q.Set("i", interval)
	q.Set("d1", start.UTC().Format("20060102"))
	q.Set("d2", end.UTC().Format("20060102"))
	apiURL := s.BaseURL + "?" + q.Encode()

	var lastErr error
	for attempt := 0; attempt < s.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("context cancelled during retry: %w", ctx.Err())
			case <-time.After(retryDelay(attempt-1, s.BaseDelay, s.MaxDelay)):
			}
		}

		candles, err := s.fetchOnce(ctx, apiURL, symbol, timeframe)
		if err == nil {
			return candles, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("stooq fetch for %s failed after %d attempts: %w", symbol, s.MaxRetries, lastErr)
}

func (s *Stooq) fetchOnce(ctx context.Context, apiURL, symbol, timeframe string) ([]candle.Candle, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "text/csv")

	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("network error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("stooq status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	return parseStooqCSV(resp.Body, symbol, timeframe)
}

// parseStooqCSV decodes the Date,Open,High,Low,Close,Volume payload. Any
// malformed row fails the whole fetch: partially-valid data must not leak
// into the pipeline.
func parseStooqCSV(r io.Reader, symbol, timeframe string) ([]candle.Candle, error) {
	reader := csv.NewReader(r)
	// Stooq omits the volume column on some rows.
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("decode csv: %w", err)
	}
	if len(records) < 2 {
		return nil, fmt.Errorf("empty result for %s", symbol)
	}

	candles := make([]candle.Candle, 0, len(records)-1)
	for i, rec := range records[1:] {
		if len(rec) < 5 {
			return nil, fmt.Errorf("row %d: expected at least 5 fields, got %d", i+1, len(rec))
		}
		ts, err := time.Parse("2006-01-02", rec[0])
		if err != nil {
			return nil, fmt.Errorf("row %d: bad date %q: %w", i+1, rec[0], err)
		}
		nums := make([]float64, 4)
		for j := 1; j <= 4; j++ {
			v, err := strconv.ParseFloat(rec[j], 64)
			if err != nil {
				return nil, fmt.Errorf("row %d: bad number %q: %w", i+1, rec[j], err)
			}
			nums[j-1] = v
		}
		var volume float64
		if len(rec) > 5 && rec[5] != "" {
			volume, err = strconv.ParseFloat(rec[5], 64)
			if err != nil {
				return nil, fmt.Errorf("row %d: bad volume %q: %w", i+1, rec[5], err)
			}
		}
		candles = append(candles, candle.Candle{
			Timestamp: ts.UTC(),
			Open:      nums[0],
			High:      nums[1],
			Low:       nums[2],
			Close:     nums[3],
			Volume:    volume,
			Symbol:    strings.ToUpper(symbol),
			Timeframe: timeframe,
		})
	}

	if err := candle.ValidateSeries(candles); err != nil {
		return nil, fmt.Errorf("stooq payload for %s: %w", symbol, err)
	}
	return candles, nil
}

// retryDelay computes exponential backoff with ±10% jitter.
func retryDelay(attempt int, baseDelay, maxDelay time.Duration) time.Duration {
	delay := float64(baseDelay) * math.Pow(2, float64(attempt))
	if delay > float64(maxDelay) {
		delay = float64(maxDelay)
	}
	jitter := delay * 0.1 * (2*rand.Float64() - 1)
	delay += jitter
	if delay < 0 {
		delay = float64(baseDelay)
	}
	return time.Duration(delay)
}
