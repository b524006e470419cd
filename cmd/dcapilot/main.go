// Command dcapilot runs the DCA trading bot with trailing-stop position
// protection. It buys below the EMA(89) trend line with geometrically
// growing orders and ratchets protective stops on open positions.
//
// Usage:
//
//	dcapilot --config config.yaml
//	dcapilot setup       (interactive configuration wizard)
//	dcapilot             (uses CLI arguments)
//
// Required environment variables:
//
//	For Binance: BINANCE_API_KEY, BINANCE_API_SECRET
//	For Bybit: BYBIT_API_KEY, BYBIT_API_SECRET
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"dcapilot/config"
	"dcapilot/internal/clients"
	"dcapilot/internal/domain"
	"dcapilot/internal/services/engine"
	"dcapilot/internal/services/gateway"
	"dcapilot/internal/services/market"
	"dcapilot/internal/setup"
	"dcapilot/internal/storage/state"
)

func main() {
	_ = godotenv.Load()

	cfg, err := loadConfig()
	if err != nil {
		log.Fatal(err)
	}

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	var (
		provider market.Provider
		gw       gateway.Gateway
	)
	switch cfg.Platform {
	case "binance":
		apiKey := os.Getenv("BINANCE_API_KEY")
		apiSecret := os.Getenv("BINANCE_API_SECRET")
		if apiKey == "" || apiSecret == "" {
			log.Fatal("BINANCE_API_KEY and BINANCE_API_SECRET environment variables must be set")
		}
		client := clients.NewBinanceClient(apiKey, apiSecret)
		provider = market.NewBinanceProvider(client)
		gw = gateway.NewBinanceGateway(client)
	case "bybit":
		apiKey := os.Getenv("BYBIT_API_KEY")
		apiSecret := os.Getenv("BYBIT_API_SECRET")
		if apiKey == "" || apiSecret == "" {
			log.Fatal("BYBIT_API_KEY and BYBIT_API_SECRET environment variables must be set")
		}
		client := clients.NewBybitClient(apiKey, apiSecret)
		provider = market.NewBybitProvider(client)
		gw = gateway.NewBybitGateway(client)
	default:
		log.Fatalf("unsupported platform %q", cfg.Platform)
	}

	store, err := state.Open(cfg.StateDir)
	if err != nil {
		logger.Fatal("failed to open state store", zap.Error(err))
	}
	defer store.Close()

	journal, err := engine.OpenJournal(cfg.JournalDir)
	if err != nil {
		logger.Fatal("failed to open order journal", zap.Error(err))
	}
	defer journal.Close()

	if err := seedCampaigns(store, cfg); err != nil {
		logger.Fatal("failed to seed campaigns", zap.Error(err))
	}

	eng, err := engine.New(logger, store, provider, gw, journal, engine.Config{
		QuoteAsset:     cfg.QuoteAsset,
		CandleInterval: cfg.CandleInterval,
		CandleLimit:    cfg.CandleLimit,
		EMAPeriod:      cfg.EMAPeriod,
		FlattenOnClose: cfg.FlattenOnClose,
	})
	if err != nil {
		logger.Fatal("failed to build engine", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := eng.ReconcilePending(ctx); err != nil {
		logger.Fatal("startup reconciliation failed", zap.Error(err))
	}

	logger.Info("dcapilot started",
		zap.String("platform", cfg.Platform),
		zap.Int("campaigns", len(cfg.Campaigns)),
		zap.Duration("tick_interval", cfg.TickInterval))

	run(ctx, logger, eng, cfg.TickInterval)

	logger.Info("dcapilot stopped")
}

func loadConfig() (*config.Config, error) {
	if len(os.Args) > 1 && os.Args[1] == "setup" {
		if err := setup.RunTUI(); err != nil {
			return nil, err
		}
		return config.Load(setup.GeneratedConfigFile)
	}
	return config.Get()
}

func seedCampaigns(store *state.Store, cfg *config.Config) error {
	for _, c := range cfg.Campaigns {
		campaign, err := domain.NewCampaign(c.ID, c.Symbol, c.BaseAmount, c.MaxOrders)
		if err != nil {
			return err
		}
		// no-op for campaigns that already exist, progress is never reset
		if err := store.PutCampaign(campaign); err != nil {
			return err
		}
	}
	return nil
}

func run(ctx context.Context, logger *zap.Logger, eng *engine.Engine, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		tick(ctx, logger, eng)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func tick(ctx context.Context, logger *zap.Logger, eng *engine.Engine) {
	if _, err := eng.RunDCATick(ctx); err != nil {
		logger.Error("DCA tick failed", zap.Error(err))
	}
	if _, err := eng.RunTrailingStopTick(ctx); err != nil {
		logger.Error("trailing stop tick failed", zap.Error(err))
	}
}
