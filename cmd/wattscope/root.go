package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/bher20/wattscope/internal/config"
	"github.com/bher20/wattscope/internal/logging"
	"github.com/bher20/wattscope/internal/storage"
	"github.com/bher20/wattscope/internal/tariff"
)

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "wattscope",
	Short: "Estimate slab-based electricity bills",
	Long: `wattscope converts appliance usage to kWh and prices it against LT-I
(residential) and LT-II (commercial) slab tariffs. It runs as an HTTP API
with accounts and saved usage, or as a one-shot calculator.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./"+config.DefaultPath+")")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
}

// loadConfig reads the config file and sets up logging from it.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return config.Config{}, err
	}
	if verbose {
		cfg.Logging.Level = "debug"
	}
	if err := logging.Initialize(cfg.Logging); err != nil {
		return config.Config{}, fmt.Errorf("initializing logging: %w", err)
	}
	return cfg, nil
}

// loadEngine builds the tariff engine, replacing the built-in tables when a
// tariff file is configured.
func loadEngine(cfg config.Config) (*tariff.Engine, error) {
	if cfg.Tariff.File == "" {
		return tariff.DefaultEngine(), nil
	}
	tables, err := tariff.LoadTablesFile(cfg.Tariff.File)
	if err != nil {
		return nil, fmt.Errorf("loading tariff file: %w", err)
	}
	logging.Info("tariff tables loaded", zap.String("file", cfg.Tariff.File))
	for _, c := range boundedCategories(tables) {
		logging.Warn("tariff table ends in a bounded slab; usage above it is priced at that slab",
			zap.String("file", cfg.Tariff.File),
			zap.String("category", string(c)))
	}
	return tariff.NewEngine(tables), nil
}

// boundedCategories lists the categories whose last slab has an upper limit.
func boundedCategories(tables *tariff.Tables) []tariff.Category {
	var out []tariff.Category
	for _, tbl := range tables.All() {
		if tbl.Bounded() {
			out = append(out, tbl.Category)
		}
	}
	return out
}

func openStorage(ctx context.Context, cfg config.Config) (storage.Storage, error) {
	return storage.Open(ctx, storage.Config{Driver: cfg.Storage.Driver, DSN: cfg.Storage.DSN})
}
