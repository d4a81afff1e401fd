// Package config provides configuration management for the trading application.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"signal-trader/internal/errors"
	"signal-trader/internal/timeframe"
)

// EnvPrefix is the prefix for environment overrides, e.g. TRADER_RISK_MAX_LEVERAGE.
const EnvPrefix = "TRADER"

// Config holds all application configuration.
type Config struct {
	Pipeline PipelineConfig `mapstructure:"pipeline"`
	Risk     RiskConfig     `mapstructure:"risk"`
	Paper    PaperConfig    `mapstructure:"paper"`
	Backtest BacktestConfig `mapstructure:"backtest"`
	Live     LiveConfig     `mapstructure:"live"`
	Store    StoreConfig    `mapstructure:"store"`
	Log      LogConfig      `mapstructure:"log"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

// PipelineConfig describes what one pipeline instance trades and watches.
type PipelineConfig struct {
	Symbol             string         `mapstructure:"symbol"`
	SignalVenue        string         `mapstructure:"signal_venue"`
	ExecutionTimeframe string         `mapstructure:"execution_timeframe"`
	Timeframes         []string       `mapstructure:"timeframes"`
	CacheCapacity      int            `mapstructure:"cache_capacity"`
	Strategy           StrategyConfig `mapstructure:"strategy"`
}

// StrategyConfig tunes the built-in strategy.
type StrategyConfig struct {
	Name           string  `mapstructure:"name"`
	RSIPeriod      int     `mapstructure:"rsi_period"`
	RSIOverbought  float64 `mapstructure:"rsi_overbought"`
	RSIOversold    float64 `mapstructure:"rsi_oversold"`
	ForecastWindow int     `mapstructure:"forecast_window"`
}

// RiskConfig holds risk management configuration. It is read-only once
// loaded and may be shared between pipelines.
//
// StopLossPercent, TakeProfitPercent and the trailing values are percents
// (1 means 1%). RiskPerTradePercent is a fraction of equity (0.01 means 1%).
type RiskConfig struct {
	MaxLeverage               float64 `mapstructure:"max_leverage"`
	RiskPerTradePercent       float64 `mapstructure:"risk_per_trade_percent"`
	MaxPositions              int     `mapstructure:"max_positions"`
	StopLossPercent           float64 `mapstructure:"stop_loss_percent"`
	TakeProfitPercent         float64 `mapstructure:"take_profit_percent"`
	MinPositionSize           float64 `mapstructure:"min_position_size"`
	MaxPositionSize           float64 `mapstructure:"max_position_size"`
	TrailingActivationPercent float64 `mapstructure:"trailing_activation_percent"`
	TrailingTrailPercent      float64 `mapstructure:"trailing_trail_percent"`
}

// PaperConfig configures simulated fills and the paper ledger.
type PaperConfig struct {
	StartingBalance float64 `mapstructure:"starting_balance"`
	FeeRate         float64 `mapstructure:"fee_rate"`
	SlippagePercent float64 `mapstructure:"slippage_percent"`
}

// BacktestConfig bounds a replay. Empty values mean unbounded.
type BacktestConfig struct {
	From string `mapstructure:"from"`
	To   string `mapstructure:"to"`
}

// LiveConfig tunes the polling paper loop: how often it ticks and how the
// candle refresh is retried and guarded.
type LiveConfig struct {
	// Interval between ticks. Zero means one execution timeframe.
	Interval          time.Duration `mapstructure:"interval"`
	RetryAttempts     int           `mapstructure:"retry_attempts"`
	RetryInitialDelay time.Duration `mapstructure:"retry_initial_delay"`
	RetryMaxDelay     time.Duration `mapstructure:"retry_max_delay"`
	// BreakerFailures consecutive failed refreshes open the breaker.
	BreakerFailures int           `mapstructure:"breaker_failures"`
	BreakerCooldown time.Duration `mapstructure:"breaker_cooldown"`
}

// StoreConfig locates the candle archive.
type StoreConfig struct {
	Path string `mapstructure:"path"`
}

// LogConfig mirrors logging.LogConfig for the config file.
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Console    bool   `mapstructure:"console"`
	File       bool   `mapstructure:"file"`
	FilePath   string `mapstructure:"file_path"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/signal-trader"
	}
	return filepath.Join(home, ".config", "signal-trader")
}

// Load loads configuration from the specified directory.
// If configDir is empty, uses the default config directory. A missing
// config.toml is replaced by a template and reported as an error.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}

	v := newViper(configDir)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil, createTemplateConfig(configDir, "config")
		}
		return nil, fmt.Errorf("loading config.toml: %w", err)
	}

	return decode(v)
}

// LoadFile loads configuration from an explicit file path.
func LoadFile(path string) (*Config, error) {
	v := newViper(filepath.Dir(path))
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}
	return decode(v)
}

// Default returns the built-in configuration with environment overrides applied.
func Default() (*Config, error) {
	return decode(newViper(""))
}

func newViper(configDir string) *viper.Viper {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	if configDir != "" {
		v.AddConfigPath(configDir)
	}

	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func decode(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("pipeline.symbol", "BTC/USDT")
	v.SetDefault("pipeline.signal_venue", "binance")
	v.SetDefault("pipeline.execution_timeframe", "1m")
	v.SetDefault("pipeline.timeframes", []string{"1m", "5m", "1h"})
	v.SetDefault("pipeline.cache_capacity", 500)
	v.SetDefault("pipeline.strategy.name", "vwap_flip")
	v.SetDefault("pipeline.strategy.rsi_period", 14)
	v.SetDefault("pipeline.strategy.rsi_overbought", 70.0)
	v.SetDefault("pipeline.strategy.rsi_oversold", 30.0)
	v.SetDefault("pipeline.strategy.forecast_window", 50)

	v.SetDefault("risk.max_leverage", 3.0)
	v.SetDefault("risk.risk_per_trade_percent", 0.01)
	v.SetDefault("risk.max_positions", 1)
	v.SetDefault("risk.stop_loss_percent", 1.0)
	v.SetDefault("risk.take_profit_percent", 2.0)
	v.SetDefault("risk.min_position_size", 0.001)
	v.SetDefault("risk.max_position_size", 10.0)
	v.SetDefault("risk.trailing_activation_percent", 1.0)
	v.SetDefault("risk.trailing_trail_percent", 0.5)

	v.SetDefault("paper.starting_balance", 10000.0)
	v.SetDefault("paper.fee_rate", 0.0004)
	v.SetDefault("paper.slippage_percent", 0.0)

	v.SetDefault("backtest.from", "")
	v.SetDefault("backtest.to", "")

	v.SetDefault("live.interval", time.Duration(0))
	v.SetDefault("live.retry_attempts", 3)
	v.SetDefault("live.retry_initial_delay", 200*time.Millisecond)
	v.SetDefault("live.retry_max_delay", 5*time.Second)
	v.SetDefault("live.breaker_failures", 5)
	v.SetDefault("live.breaker_cooldown", 30*time.Second)

	v.SetDefault("store.path", filepath.Join(DefaultConfigDir(), "candles.db"))

	v.SetDefault("log.level", "info")
	v.SetDefault("log.console", true)
	v.SetDefault("log.file", false)
	v.SetDefault("log.file_path", filepath.Join(DefaultConfigDir(), "logs", "trader.log"))
	v.SetDefault("log.max_size", 100)
	v.SetDefault("log.max_backups", 7)
	v.SetDefault("log.max_age", 30)

	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.addr", ":9090")
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.Pipeline.Validate(); err != nil {
		return err
	}
	if err := c.Risk.Validate(); err != nil {
		return err
	}
	if c.Paper.StartingBalance <= 0 {
		return errors.NewValidationError("paper.starting_balance", c.Paper.StartingBalance, "must be positive")
	}
	if c.Paper.FeeRate < 0 || c.Paper.FeeRate >= 1 {
		return errors.NewValidationError("paper.fee_rate", c.Paper.FeeRate, "must be in [0, 1)")
	}
	if c.Paper.SlippagePercent < 0 {
		return errors.NewValidationError("paper.slippage_percent", c.Paper.SlippagePercent, "must be non-negative")
	}
	if err := c.Live.Validate(); err != nil {
		return err
	}
	switch strings.ToLower(c.Log.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		return errors.NewValidationError("log.level", c.Log.Level, "must be debug, info, warn or error")
	}
	return nil
}

// Validate checks the pipeline section. Every timeframe must parse and the
// execution timeframe must be tracked.
func (p PipelineConfig) Validate() error {
	if p.Symbol == "" {
		return errors.NewValidationError("pipeline.symbol", p.Symbol, "is required")
	}
	if len(p.Timeframes) == 0 {
		return errors.NewValidationError("pipeline.timeframes", p.Timeframes, "at least one timeframe is required")
	}
	if p.CacheCapacity <= 0 {
		return errors.NewValidationError("pipeline.cache_capacity", p.CacheCapacity, "must be positive")
	}

	exec, err := timeframe.Normalize(p.ExecutionTimeframe)
	if err != nil {
		return errors.NewValidationError("pipeline.execution_timeframe", p.ExecutionTimeframe, err.Error())
	}

	tracked := false
	for _, tf := range p.Timeframes {
		name, err := timeframe.Normalize(tf)
		if err != nil {
			return errors.NewValidationError("pipeline.timeframes", tf, err.Error())
		}
		if name == exec {
			tracked = true
		}
	}
	if !tracked {
		return errors.NewValidationError("pipeline.execution_timeframe", p.ExecutionTimeframe, "must be one of pipeline.timeframes")
	}

	if p.Strategy.RSIPeriod < 0 || p.Strategy.ForecastWindow < 0 {
		return errors.NewValidationError("pipeline.strategy", p.Strategy, "periods must be non-negative")
	}
	if p.Strategy.RSIOversold > p.Strategy.RSIOverbought {
		return errors.NewValidationError("pipeline.strategy.rsi_oversold", p.Strategy.RSIOversold, "must not exceed rsi_overbought")
	}
	return nil
}

// Validate checks the risk section.
func (r RiskConfig) Validate() error {
	if r.MaxLeverage <= 0 {
		return errors.NewValidationError("risk.max_leverage", r.MaxLeverage, "must be positive")
	}
	if r.RiskPerTradePercent <= 0 || r.RiskPerTradePercent > 1 {
		return errors.NewValidationError("risk.risk_per_trade_percent", r.RiskPerTradePercent, "must be a fraction in (0, 1]")
	}
	if r.MaxPositions < 1 {
		return errors.NewValidationError("risk.max_positions", r.MaxPositions, "must be at least 1")
	}
	if r.StopLossPercent <= 0 || r.StopLossPercent >= 100 {
		return errors.NewValidationError("risk.stop_loss_percent", r.StopLossPercent, "must be in (0, 100)")
	}
	if r.TakeProfitPercent <= 0 || r.TakeProfitPercent >= 100 {
		return errors.NewValidationError("risk.take_profit_percent", r.TakeProfitPercent, "must be in (0, 100)")
	}
	if r.MinPositionSize < 0 {
		return errors.NewValidationError("risk.min_position_size", r.MinPositionSize, "must be non-negative")
	}
	if r.MaxPositionSize <= 0 || r.MaxPositionSize < r.MinPositionSize {
		return errors.NewValidationError("risk.max_position_size", r.MaxPositionSize, "must be positive and at least min_position_size")
	}
	if r.TrailingActivationPercent < 0 || r.TrailingTrailPercent < 0 {
		return errors.NewValidationError("risk.trailing", r.TrailingTrailPercent, "trailing percents must be non-negative")
	}
	return nil
}

// Validate checks the live section.
func (l LiveConfig) Validate() error {
	if l.Interval < 0 {
		return errors.NewValidationError("live.interval", l.Interval, "must be non-negative")
	}
	if l.RetryAttempts < 1 {
		return errors.NewValidationError("live.retry_attempts", l.RetryAttempts, "must be at least 1")
	}
	if l.RetryInitialDelay < 0 || l.RetryMaxDelay < 0 {
		return errors.NewValidationError("live.retry_initial_delay", l.RetryInitialDelay, "retry delays must be non-negative")
	}
	if l.BreakerFailures < 1 {
		return errors.NewValidationError("live.breaker_failures", l.BreakerFailures, "must be at least 1")
	}
	if l.BreakerCooldown < 0 {
		return errors.NewValidationError("live.breaker_cooldown", l.BreakerCooldown, "must be non-negative")
	}
	return nil
}

// TrailingEnabled reports whether trailing-stop management is configured.
func (r RiskConfig) TrailingEnabled() bool {
	return r.TrailingTrailPercent > 0
}
