package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/polygon-io/client-go/rest/models"
	"github.com/rxtech-lab/argo-bot/internal/bot"
	"github.com/rxtech-lab/argo-bot/internal/broker"
	"github.com/rxtech-lab/argo-bot/internal/config"
	"github.com/rxtech-lab/argo-bot/internal/logger"
	"github.com/rxtech-lab/argo-bot/internal/market"
	"github.com/rxtech-lab/argo-bot/internal/notify"
	"github.com/rxtech-lab/argo-bot/internal/server"
	"github.com/rxtech-lab/argo-bot/internal/state"
	"github.com/rxtech-lab/argo-bot/internal/strategy"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
)

// runAction wires the configured components together and runs one trading
// loop per symbol until interrupted.
func runAction(ctx context.Context, cmd *cli.Command) error {
	if envFile := cmd.String("env-file"); envFile != "" {
		// Missing .env is fine; credentials may come from the environment.
		_ = godotenv.Load(envFile)
	}

	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return err
	}

	appLogger, err := logger.NewLogger()
	if err != nil {
		return err
	}
	defer func() {
		_ = appLogger.Sync()
	}()

	store, closeStore, err := newStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	brokerGateway, err := broker.NewBinanceBroker(broker.BinanceConfig{
		APIKey:     cfg.Broker.APIKey,
		SecretKey:  cfg.Broker.SecretKey,
		QuoteAsset: cfg.Broker.QuoteAsset,
		BaseURL:    cfg.Broker.BaseURL,
		UseTestnet: cfg.Broker.UseTestnet,
	})
	if err != nil {
		return err
	}

	source, err := newSource(cfg)
	if err != nil {
		return err
	}

	sizer, err := newSizer(cfg, brokerGateway)
	if err != nil {
		return err
	}

	notifier, err := newNotifier(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Server.Addr != "" {
		statusServer := server.NewStatusServer(cfg.Server.Addr, store, cfg.Symbols, appLogger)

		go func() {
			if err := statusServer.ListenAndServe(); err != nil {
				appLogger.Error("status server failed", zap.Error(err))
			}
		}()

		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			_ = statusServer.Shutdown(shutdownCtx)
		}()
	}

	// One independent loop per symbol: a failing symbol never blocks the
	// others, and each loop is the single writer of its own state record.
	var wg sync.WaitGroup

	for _, symbol := range cfg.Symbols {
		evaluator, err := strategy.New(strategy.Kind(cfg.Strategy.Kind), symbol, strategy.Params{
			FastPeriod:   cfg.Strategy.FastPeriod,
			SlowPeriod:   cfg.Strategy.SlowPeriod,
			SignalPeriod: cfg.Strategy.SignalPeriod,
			RSIPeriod:    cfg.Strategy.RSIPeriod,
			EntryLevel:   cfg.Strategy.EntryLevel,
			ExitLevel:    cfg.Strategy.ExitLevel,
		})
		if err != nil {
			return err
		}

		loop, err := bot.NewTradingLoop(bot.LoopConfig{
			Symbol:                 symbol,
			Lookback:               cfg.Market.Lookback,
			PollInterval:           cfg.Loop.PollInterval.Std(),
			PauseInterval:          cfg.Loop.PauseInterval.Std(),
			MaxConsecutiveFailures: cfg.Loop.MaxConsecutiveFailures,
			TakeProfitPercent:      cfg.Loop.TakeProfitPercent,
			StopLossPercent:        cfg.Loop.StopLossPercent,
			TrailingStopPercent:    cfg.Loop.TrailingStopPercent,
		}, source, brokerGateway, store, evaluator, sizer, notifier, appLogger)
		if err != nil {
			return err
		}

		wg.Add(1)

		go func(symbol string) {
			defer wg.Done()

			if err := runLoop(ctx, cfg, loop, symbol); err != nil && err != context.Canceled {
				appLogger.Error("trading loop exited with error",
					zap.String("symbol", symbol),
					zap.Error(err))
			}
		}(symbol)
	}

	wg.Wait()

	return nil
}

func runLoop(ctx context.Context, cfg *config.Config, loop *bot.TradingLoop, symbol string) error {
	if cfg.Market.Mode == "stream" {
		stream, err := market.NewKlineStream(market.DefaultStreamEndpoint, cfg.Market.Interval)
		if err != nil {
			return err
		}

		return loop.RunStream(ctx, stream.Stream(ctx, symbol))
	}

	return loop.Run(ctx)
}

func newStore(cfg *config.Config) (state.Store, func(), error) {
	switch cfg.State.Backend {
	case "duckdb":
		store, err := state.NewDuckDBStore(cfg.State.Path)
		if err != nil {
			return nil, nil, err
		}

		return store, func() { _ = store.Close() }, nil
	default:
		store, err := state.NewFileStore(cfg.State.Path)
		if err != nil {
			return nil, nil, err
		}

		return store, func() {}, nil
	}
}

func newSource(cfg *config.Config) (market.Source, error) {
	if cfg.Market.Provider == "polygon" {
		return market.NewPolygonSource(cfg.Market.PolygonAPIKey, 1, polygonTimespan(cfg.Market.Interval))
	}

	return market.NewBinanceSource(cfg.Market.Interval)
}

// polygonTimespan maps the Binance-style interval notation used in the config
// to Polygon's timespan names.
func polygonTimespan(interval string) models.Timespan {
	switch interval {
	case "1m":
		return models.Minute
	case "1h":
		return models.Hour
	case "1d":
		return models.Day
	case "1w":
		return models.Week
	default:
		return models.Timespan(interval)
	}
}

func newSizer(cfg *config.Config, b broker.Broker) (bot.Sizer, error) {
	if cfg.Sizing.RiskPercent > 0 {
		return bot.NewRiskPercentSizer(b, cfg.Sizing.RiskPercent)
	}

	return bot.NewFixedSizer(cfg.Sizing.Quantity)
}

func newNotifier(cfg *config.Config) (notify.Notifier, error) {
	if cfg.Notify.WebhookURL == "" {
		return notify.NewNoop(), nil
	}

	return notify.NewWebhook(cfg.Notify.WebhookURL)
}

func main() {
	cmd := &cli.Command{
		Name:  "argo-bot",
		Usage: "Run a signal-driven trading bot",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "config",
				Aliases:  []string{"c"},
				Usage:    "Path to the YAML configuration file",
				Value:    "config.yaml",
				Required: false,
			},
			&cli.StringFlag{
				Name:     "env-file",
				Aliases:  []string{"e"},
				Usage:    "Path to a .env file with credentials",
				Value:    ".env",
				Required: false,
			},
		},
		Action: runAction,
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}
