package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"signal-trader/internal/config"
	"signal-trader/internal/logging"
	"signal-trader/internal/store"
)

// Version information
const (
	Version   = "0.1.0"
	BuildDate = "2026-10-01"
)

// App holds the application dependencies. Config and Logger are filled in
// by the root command before any subcommand runs.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewRootCmd creates the root command for the CLI.
func NewRootCmd() *cobra.Command {
	app := &App{Logger: zerolog.Nop()}

	rootCmd := &cobra.Command{
		Use:   "trader",
		Short: "Signal Trader - multi-timeframe signal to trade-plan pipeline",
		Long: `Signal Trader turns candles into trade plans.

It keeps a bounded multi-timeframe candle cache, derives VWAP, RSI and an
AR(4) forecast from it, sizes positions through a risk engine and executes
the resulting plans against a paper broker.

Use 'trader import' to load candles, 'trader backtest' to replay them and
'trader paper' to trade them live as they arrive.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("config")
			cfg, err := loadConfig(path, cmd)
			if err != nil {
				return err
			}
			app.Config = cfg

			app.Logger = logging.NewLoggerWithConfig(logging.LogConfig{
				Level:      cfg.Log.Level,
				Console:    cfg.Log.Console,
				File:       cfg.Log.File,
				FilePath:   cfg.Log.FilePath,
				MaxSize:    cfg.Log.MaxSize,
				MaxBackups: cfg.Log.MaxBackups,
				MaxAge:     cfg.Log.MaxAge,
			})

			// Handle debug flag
			debug, _ := cmd.Flags().GetBool("debug")
			if debug {
				logging.SetDebugLevel()
				app.Logger = app.Logger.Level(zerolog.DebugLevel)
			}
			cmd.SetContext(logging.WithLogger(cmd.Context(), app.Logger))
			return nil
		},
	}

	// Global flags
	rootCmd.PersistentFlags().String("config", "", "config directory or file (default: ~/.config/signal-trader)")
	rootCmd.PersistentFlags().Bool("json", false, "output in JSON format")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newConfigCmd(app))
	rootCmd.AddCommand(newTimeframeCmd())
	rootCmd.AddCommand(newImportCmd(app))
	rootCmd.AddCommand(newExportCmd(app))
	rootCmd.AddCommand(newBacktestCmd(app))
	rootCmd.AddCommand(newPaperCmd(app))

	return rootCmd
}

// loadConfig reads a config file or directory. When the default directory
// has no config.toml yet, a template is written and built-in defaults are
// used for this run.
func loadConfig(path string, cmd *cobra.Command) (*config.Config, error) {
	if strings.HasSuffix(path, ".toml") {
		return config.LoadFile(path)
	}

	dir := path
	if dir == "" {
		dir = config.DefaultConfigDir()
	}
	if _, err := os.Stat(filepath.Join(dir, "config.toml")); os.IsNotExist(err) {
		if _, err := config.Load(dir); err != nil {
			fmt.Fprintln(cmd.ErrOrStderr(), err)
		}
		return config.Default()
	}
	return config.Load(dir)
}

func (app *App) openStore() (*store.SQLiteStore, error) {
	path := app.Config.Store.Path
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating store directory: %w", err)
	}
	return store.NewSQLiteStore(path)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)
			if output.IsJSON() {
				output.JSON(map[string]string{
					"version":    Version,
					"build_date": BuildDate,
				})
			} else {
				output.Printf("Signal Trader v%s\n", Version)
				output.Dim("Build date: %s", BuildDate)
			}
		},
	}
}

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
		Long:  "View and validate application configuration.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(app.Config)
			}
			showConfig(output, app.Config)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration directory path",
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)
			if output.IsJSON() {
				output.JSON(map[string]string{"path": config.DefaultConfigDir()})
			} else {
				output.Println(config.DefaultConfigDir())
			}
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate configuration files",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if err := app.Config.Validate(); err != nil {
				output.Error("Configuration validation failed: %v", err)
				return err
			}
			if output.IsJSON() {
				return output.JSON(map[string]bool{"valid": true})
			}
			output.Success("✓ Configuration is valid")
			return nil
		},
	})

	return cmd
}

func showConfig(output *Output, cfg *config.Config) {
	output.Bold("Pipeline")
	output.Printf("  Symbol:          %s\n", cfg.Pipeline.Symbol)
	output.Printf("  Signal venue:    %s\n", cfg.Pipeline.SignalVenue)
	output.Printf("  Execution TF:    %s\n", cfg.Pipeline.ExecutionTimeframe)
	output.Printf("  Timeframes:      %s\n", strings.Join(cfg.Pipeline.Timeframes, ", "))
	output.Printf("  Cache capacity:  %d\n", cfg.Pipeline.CacheCapacity)
	output.Printf("  Strategy:        %s\n", cfg.Pipeline.Strategy.Name)
	output.Println()

	output.Bold("Risk")
	output.Printf("  Max leverage:    %.1fx\n", cfg.Risk.MaxLeverage)
	output.Printf("  Risk per trade:  %.2f%%\n", cfg.Risk.RiskPerTradePercent*100)
	output.Printf("  Max positions:   %d\n", cfg.Risk.MaxPositions)
	output.Printf("  Stop loss:       %.2f%%\n", cfg.Risk.StopLossPercent)
	output.Printf("  Take profit:     %.2f%%\n", cfg.Risk.TakeProfitPercent)
	output.Printf("  Size range:      %g - %g\n", cfg.Risk.MinPositionSize, cfg.Risk.MaxPositionSize)
	if cfg.Risk.TrailingEnabled() {
		output.Printf("  Trailing stop:   %.2f%% after %.2f%%\n", cfg.Risk.TrailingTrailPercent, cfg.Risk.TrailingActivationPercent)
	} else {
		output.Printf("  Trailing stop:   off\n")
	}
	output.Println()

	output.Bold("Paper")
	output.Printf("  Balance:         %s\n", FormatUSDT(cfg.Paper.StartingBalance))
	output.Printf("  Fee rate:        %.4f%%\n", cfg.Paper.FeeRate*100)
	output.Printf("  Slippage:        %.3f%%\n", cfg.Paper.SlippagePercent)
	output.Println()

	output.Bold("Storage")
	output.Printf("  Candle store:    %s\n", cfg.Store.Path)
	output.Printf("  Metrics:         %v (%s)\n", cfg.Metrics.Enabled, cfg.Metrics.Addr)
}
