package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	xerrors "signal-trader/internal/errors"
)

func TestDefaultIsValid(t *testing.T) {
	cfg, err := Default()
	if err != nil {
		t.Fatalf("Default: %v", err)
	}
	if cfg.Pipeline.ExecutionTimeframe != "1m" || cfg.Risk.StopLossPercent != 1.0 {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if cfg.Risk.RiskPerTradePercent != 0.01 {
		t.Errorf("RiskPerTradePercent = %v, want 0.01", cfg.Risk.RiskPerTradePercent)
	}
}

func TestLoadCreatesTemplate(t *testing.T) {
	dir := t.TempDir()

	if _, err := Load(dir); err == nil || !strings.Contains(err.Error(), "created template") {
		t.Fatalf("first Load should create template, got %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "config.toml")); err != nil {
		t.Fatalf("template not written: %v", err)
	}

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load template: %v", err)
	}
	if cfg.Pipeline.Symbol != "BTC/USDT" || len(cfg.Pipeline.Timeframes) != 3 {
		t.Errorf("template not decoded: %+v", cfg.Pipeline)
	}
	if cfg.Live.RetryMaxDelay != 5*time.Second || cfg.Live.BreakerFailures != 5 {
		t.Errorf("live section not decoded: %+v", cfg.Live)
	}
}

func TestLoadFileAndEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custom.toml")
	body := `
[pipeline]
symbol = "ETH/USDT"
execution_timeframe = "5m"
timeframes = ["5m", "1h"]

[risk]
max_leverage = 5.0
`
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("TRADER_RISK_MAX_POSITIONS", "3")

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.Pipeline.Symbol != "ETH/USDT" || cfg.Risk.MaxLeverage != 5.0 {
		t.Errorf("file values not applied: %+v", cfg)
	}
	if cfg.Risk.MaxPositions != 3 {
		t.Errorf("env override not applied: MaxPositions = %d", cfg.Risk.MaxPositions)
	}
	if cfg.Live.RetryInitialDelay != 200*time.Millisecond || cfg.Live.BreakerCooldown != 30*time.Second {
		t.Errorf("live defaults = %+v", cfg.Live)
	}
	// untouched keys keep defaults
	if cfg.Paper.StartingBalance != 10000 {
		t.Errorf("StartingBalance = %v", cfg.Paper.StartingBalance)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"bad execution timeframe", func(c *Config) { c.Pipeline.ExecutionTimeframe = "0m" }, "pipeline.execution_timeframe"},
		{"untracked execution timeframe", func(c *Config) { c.Pipeline.ExecutionTimeframe = "4h" }, "pipeline.execution_timeframe"},
		{"bad tracked timeframe", func(c *Config) { c.Pipeline.Timeframes = []string{"1m", "1w"} }, "pipeline.timeframes"},
		{"zero capacity", func(c *Config) { c.Pipeline.CacheCapacity = 0 }, "pipeline.cache_capacity"},
		{"zero leverage", func(c *Config) { c.Risk.MaxLeverage = 0 }, "risk.max_leverage"},
		{"risk as percent", func(c *Config) { c.Risk.RiskPerTradePercent = 2 }, "risk.risk_per_trade_percent"},
		{"max below min", func(c *Config) { c.Risk.MaxPositionSize = 0.0001 }, "risk.max_position_size"},
		{"no positions", func(c *Config) { c.Risk.MaxPositions = 0 }, "risk.max_positions"},
		{"take profit wipes short", func(c *Config) { c.Risk.TakeProfitPercent = 100 }, "risk.take_profit_percent"},
		{"no retry attempts", func(c *Config) { c.Live.RetryAttempts = 0 }, "live.retry_attempts"},
		{"no breaker failures", func(c *Config) { c.Live.BreakerFailures = 0 }, "live.breaker_failures"},
		{"negative interval", func(c *Config) { c.Live.Interval = -time.Second }, "live.interval"},
		{"negative balance", func(c *Config) { c.Paper.StartingBalance = -1 }, "paper.starting_balance"},
		{"bad log level", func(c *Config) { c.Log.Level = "verbose" }, "log.level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Default()
			if err != nil {
				t.Fatal(err)
			}
			tt.mutate(cfg)

			err = cfg.Validate()
			var verr *xerrors.ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("got %v, want *ValidationError", err)
			}
			if verr.Field != tt.field {
				t.Errorf("Field = %q, want %q", verr.Field, tt.field)
			}
			if !errors.Is(err, xerrors.ErrConfigInvalid) {
				t.Errorf("should match ErrConfigInvalid")
			}
		})
	}
}
