// Package config
package config

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"cfd-signals/internal/tfutils"
)

/*
YAML config example:
mode: "scan"
symbols: ["US500", "EURUSD", "XAUUSD"]
htf_timeframe: "1d"
ltf_timeframe: "1d"
instruments_file: "instruments.yaml"
macro_calendar_file: "macro.yaml"
equity: 10000
risk_percent: 1.0
stop_atr_mult: 1.5
rr_ratio: 2.0
cooldown_minutes: 240
redis_addr: "localhost:6379"
*/

// Duration wraps time.Duration so "5m"/"2h30m" strings parse from YAML.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return fmt.Errorf("duration must be a string like \"30m\": %w", err)
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}

func (d Duration) MarshalYAML() (any, error) {
	return d.String(), nil
}

type Config struct {
	Mode     string `yaml:"mode"`
	LogLevel string `yaml:"log_level"`

	Symbols      []string `yaml:"symbols"`
	HTFTimeframe string   `yaml:"htf_timeframe"`
	LTFTimeframe string   `yaml:"ltf_timeframe"`

	InstrumentsFile   string `yaml:"instruments_file"`
	MacroCalendarFile string `yaml:"macro_calendar_file"`

	Equity          float64 `yaml:"equity"`
	RiskPercent     float64 `yaml:"risk_percent"`
	StopATRMult     float64 `yaml:"stop_atr_mult"`
	RRRatio         float64 `yaml:"rr_ratio"`
	CooldownMinutes int     `yaml:"cooldown_minutes"`
	MinTickDistance int     `yaml:"min_tick_distance"`

	IncompletenessWindow Duration `yaml:"incompleteness_window"`
	MacroBefore          Duration `yaml:"macro_before"`
	MacroAfter           Duration `yaml:"macro_after"`

	ROCMinLong  float64 `yaml:"roc_min_long"`
	ROCMaxShort float64 `yaml:"roc_max_short"`
	ATRMinPct   float64 `yaml:"atr_min_pct"`
	ATRMaxPct   float64 `yaml:"atr_max_pct"`
	VolMult     float64 `yaml:"vol_mult"`

	DBConnStr string `yaml:"db_conn_str"`
	DBMaxOpen int    `yaml:"db_max_open"`
	DBMaxIdle int    `yaml:"db_max_idle"`

	RedisAddr     string        `yaml:"redis_addr"`
	RedisPassword string        `yaml:"redis_password"`
	RedisDB       int           `yaml:"redis_db"`
	RedisTTL      Duration      `yaml:"redis_ttl"`

	TelegramToken       string        `yaml:"telegram_token"`
	TelegramChatID      string        `yaml:"telegram_chat_id"`
	NotificationRetries int           `yaml:"notification_retries"`
	NotificationDelay   Duration      `yaml:"notification_delay"`

	MetricsAddr  string        `yaml:"metrics_addr"`
	ScanInterval Duration      `yaml:"scan_interval"`

	BacktestFrom time.Time `yaml:"backtest_from"`
	BacktestTo   time.Time `yaml:"backtest_to"`
	TimeStopBars int       `yaml:"time_stop_bars"`
	WarmupBars   int       `yaml:"warmup_bars"`
	OutputDir    string    `yaml:"output_dir"`
}

// Defaults returns a config with every tunable at its baseline value.
func Defaults() Config {
	return Config{
		Mode:                 "scan",
		LogLevel:             "info",
		Symbols:              []string{"US500"},
		HTFTimeframe:         "1d",
		LTFTimeframe:         "1d",
		InstrumentsFile:      "instruments.yaml",
		Equity:               10000,
		RiskPercent:          1.0,
		StopATRMult:          1.5,
		RRRatio:              2.0,
		CooldownMinutes:      240,
		MinTickDistance:      5,
		IncompletenessWindow: Duration{5 * time.Minute},
		MacroBefore:          Duration{30 * time.Minute},
		MacroAfter:           Duration{30 * time.Minute},
		ROCMinLong:           0.0,
		ROCMaxShort:          0.0,
		ATRMinPct:            0.002,
		ATRMaxPct:            0.05,
		VolMult:              0.8,
		DBMaxOpen:            10,
		DBMaxIdle:            5,
		RedisTTL:             Duration{24 * time.Hour},
		NotificationRetries:  3,
		NotificationDelay:    Duration{5 * time.Second},
		MetricsAddr:          ":9090",
		ScanInterval:         Duration{time.Hour},
		TimeStopBars:         20,
		WarmupBars:           50,
		OutputDir:            ".",
	}
}

// Load builds the runtime config: defaults, then the YAML file if given,
// then flags and environment for overrides. Secrets come from the
// environment only.
func Load() (Config, error) {
	mode := flag.String("mode", "", "Mode: scan or backtest")
	symbolsFlag := flag.String("symbols", "", "Comma-separated list of symbols")
	logLevel := flag.String("log-level", "", "Log level: trace, debug, info, warn, error")
	from := flag.String("from", "", "Backtest start date (YYYY-MM-DD)")
	to := flag.String("to", "", "Backtest end date (YYYY-MM-DD)")
	configFile := flag.String("config", "", "Path to YAML config file")
	flag.Parse()

	cfg := Defaults()

	if *configFile != "" {
		data, err := os.ReadFile(*configFile)
		if err != nil {
			return cfg, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config file: %w", err)
		}
	}

	if *mode != "" {
		cfg.Mode = *mode
	}
	if *symbolsFlag != "" {
		cfg.Symbols = strings.Split(*symbolsFlag, ",")
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	if *from != "" {
		t, err := time.Parse("2006-01-02", *from)
		if err != nil {
			return cfg, fmt.Errorf("parse -from: %w", err)
		}
		cfg.BacktestFrom = t
	}
	if *to != "" {
		t, err := time.Parse("2006-01-02", *to)
		if err != nil {
			return cfg, fmt.Errorf("parse -to: %w", err)
		}
		cfg.BacktestTo = t
	}

	if v := os.Getenv("DB_CONN_STR"); v != "" {
		cfg.DBConnStr = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.RedisAddr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.RedisPassword = v
	}
	if v := os.Getenv("TELEGRAM_TOKEN"); v != "" {
		cfg.TelegramToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		cfg.TelegramChatID = v
	}

	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	if c.Mode != "scan" && c.Mode != "backtest" {
		return fmt.Errorf("unsupported mode: %s", c.Mode)
	}
	if len(c.Symbols) == 0 {
		return fmt.Errorf("no symbols configured")
	}
	if !tfutils.IsValidTimeframe(c.HTFTimeframe) {
		return fmt.Errorf("unsupported htf_timeframe: %s", c.HTFTimeframe)
	}
	if !tfutils.IsValidTimeframe(c.LTFTimeframe) {
		return fmt.Errorf("unsupported ltf_timeframe: %s", c.LTFTimeframe)
	}
	if c.RiskPercent <= 0 || c.RiskPercent > 100 {
		return fmt.Errorf("risk_percent must be in (0, 100], got %g", c.RiskPercent)
	}
	if c.StopATRMult <= 0 {
		return fmt.Errorf("stop_atr_mult must be positive, got %g", c.StopATRMult)
	}
	if c.RRRatio <= 0 {
		return fmt.Errorf("rr_ratio must be positive, got %g", c.RRRatio)
	}
	if c.ATRMinPct < 0 || c.ATRMaxPct <= c.ATRMinPct {
		return fmt.Errorf("invalid ATR band [%g, %g]", c.ATRMinPct, c.ATRMaxPct)
	}
	if c.Mode == "backtest" && !c.BacktestFrom.IsZero() && !c.BacktestTo.After(c.BacktestFrom) {
		return fmt.Errorf("backtest range end must be after start")
	}
	return nil
}

func (c Config) Cooldown() time.Duration {
	return time.Duration(c.CooldownMinutes) * time.Minute
}

// RiskFraction converts the configured percent into the fraction the sizing
// math works with.
func (c Config) RiskFraction() float64 {
	return c.RiskPercent / 100
}
