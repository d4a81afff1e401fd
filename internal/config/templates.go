package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const configTemplate = `# Signal Trader Configuration

[pipeline]
symbol = "BTC/USDT"
# Venue the signal candles come from
signal_venue = "binance"
# Timeframe decisions are taken on; must be listed in timeframes
execution_timeframe = "1m"
timeframes = ["1m", "5m", "1h"]
# Candles kept per timeframe
cache_capacity = 500

[pipeline.strategy]
name = "vwap_flip"
rsi_period = 14
rsi_overbought = 70.0
rsi_oversold = 30.0
# Closes fed to the AR4 forecast
forecast_window = 50

[risk]
max_leverage = 3.0
# Fraction of equity risked per trade (0.01 = 1%)
risk_per_trade_percent = 0.01
max_positions = 1
# Percent offsets from entry (1.0 = 1%)
stop_loss_percent = 1.0
take_profit_percent = 2.0
min_position_size = 0.001
max_position_size = 10.0
# Trailing stop arms after this gain and trails by this distance
trailing_activation_percent = 1.0
trailing_trail_percent = 0.5

[paper]
starting_balance = 10000.0
fee_rate = 0.0004
slippage_percent = 0.0

[backtest]
# RFC3339 bounds, empty for the whole archive
from = ""
to = ""

[live]
# Poll interval for 'trader paper'; "0s" ticks once per execution timeframe
interval = "0s"
retry_attempts = 3
retry_initial_delay = "200ms"
retry_max_delay = "5s"
# Consecutive failed refreshes before the breaker opens, and its cooldown
breaker_failures = 5
breaker_cooldown = "30s"

[store]
path = "candles.db"

[log]
level = "info"
console = true
file = false
file_path = "logs/trader.log"
max_size = 100
max_backups = 7
max_age = 30

[metrics]
enabled = false
addr = ":9090"
`

// Template returns the starter config.toml contents.
func Template() string {
	return configTemplate
}

func createTemplateConfig(configDir, name string) error {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	path := filepath.Join(configDir, name+".toml")
	if err := os.WriteFile(path, []byte(configTemplate), 0644); err != nil {
		return fmt.Errorf("writing config template: %w", err)
	}

	return fmt.Errorf("config file not found, created template at %s", path)
}
