package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/khedge/kimchi_hedge/internal/domain"
	"github.com/khedge/kimchi_hedge/internal/events"
	"github.com/khedge/kimchi_hedge/internal/infrastructure/exchange"
	"github.com/khedge/kimchi_hedge/internal/infrastructure/feed"
	"github.com/khedge/kimchi_hedge/internal/infrastructure/logger"
	"github.com/khedge/kimchi_hedge/internal/infrastructure/storage"
	"github.com/khedge/kimchi_hedge/internal/usecase"
	"github.com/khedge/kimchi_hedge/internal/web"
)

type Config struct {
	Trading struct {
		SpotSymbol        string `yaml:"spot_symbol"`
		FuturesSymbol     string `yaml:"futures_symbol"`
		BaseAsset         string `yaml:"base_asset"`
		QuoteAsset        string `yaml:"quote_asset"`
		EntryPremium      string `yaml:"entry_premium"`
		TakeProfitPremium string `yaml:"take_profit_premium"`
		StopLossPremium   string `yaml:"stop_loss_premium"`
		EntryRatio        string `yaml:"entry_ratio"`
		Leverage          int    `yaml:"leverage"`
		CooldownSeconds   int    `yaml:"cooldown_seconds"`
		QuantityTolerance string `yaml:"quantity_tolerance"`
	} `yaml:"trading"`
	Feed struct {
		WSURL          string `yaml:"ws_url"`
		PollIntervalMs int    `yaml:"poll_interval_ms"`
		FxRate         string `yaml:"fx_rate"`
	} `yaml:"feed"`
	Paper struct {
		SpotBalance    string `yaml:"spot_balance"`
		SpotPrice      string `yaml:"spot_price"`
		SpotFeeRate    string `yaml:"spot_fee_rate"`
		FuturesBalance string `yaml:"futures_balance"`
		FuturesPrice   string `yaml:"futures_price"`
		FuturesFeeRate string `yaml:"futures_fee_rate"`
	} `yaml:"paper"`
	Storage struct {
		Path string `yaml:"path"`
	} `yaml:"storage"`
	Logging struct {
		Level string `yaml:"level"`
		File  string `yaml:"file"`
	} `yaml:"logging"`
	Server struct {
		Port int `yaml:"port"`
	} `yaml:"server"`
}

func loadConfig(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) settings() (domain.TradingSettings, error) {
	var (
		s   domain.TradingSettings
		err error
	)
	if s.EntryPremium, err = decimal.NewFromString(c.Trading.EntryPremium); err != nil {
		return s, fmt.Errorf("entry_premium: %w", err)
	}
	if s.TakeProfitPremium, err = decimal.NewFromString(c.Trading.TakeProfitPremium); err != nil {
		return s, fmt.Errorf("take_profit_premium: %w", err)
	}
	if s.StopLossPremium, err = decimal.NewFromString(c.Trading.StopLossPremium); err != nil {
		return s, fmt.Errorf("stop_loss_premium: %w", err)
	}
	if s.EntryRatio, err = decimal.NewFromString(c.Trading.EntryRatio); err != nil {
		return s, fmt.Errorf("entry_ratio: %w", err)
	}
	if s.QuantityTolerance, err = decimal.NewFromString(c.Trading.QuantityTolerance); err != nil {
		return s, fmt.Errorf("quantity_tolerance: %w", err)
	}
	s.Leverage = c.Trading.Leverage
	s.CooldownSeconds = c.Trading.CooldownSeconds
	return s, s.Validate()
}

func mustDecimal(raw, fallback string) decimal.Decimal {
	if raw == "" {
		raw = fallback
	}
	return decimal.RequireFromString(raw)
}

func main() {
	// .env holds machine-local overrides; absence is fine.
	_ = godotenv.Load()

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/config.yaml"
	}
	cfg, err := loadConfig(configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	var log *zap.Logger
	if cfg.Logging.File != "" {
		log, err = logger.NewFileLogger(cfg.Logging.Level, cfg.Logging.File)
	} else {
		log, err = logger.NewLogger(cfg.Logging.Level)
	}
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	settings, err := cfg.settings()
	if err != nil {
		log.Fatal("Invalid trading settings", zap.Error(err))
	}

	dbPath := cfg.Storage.Path
	if dbPath == "" {
		dbPath = "hedge.db"
	}
	store, err := storage.NewSQLiteStore(dbPath)
	if err != nil {
		log.Fatal("Failed to init sqlite", zap.Error(err))
	}
	defer store.Close()

	spot := exchange.NewPaperSpot("upbit-paper", cfg.Trading.QuoteAsset,
		mustDecimal(cfg.Paper.SpotBalance, "10000000"),
		mustDecimal(cfg.Paper.SpotPrice, "100000000"),
		mustDecimal(cfg.Paper.SpotFeeRate, "0.0005"))
	futures := exchange.NewPaperFutures("bingx-paper",
		mustDecimal(cfg.Paper.FuturesBalance, "10000"),
		mustDecimal(cfg.Paper.FuturesPrice, "70000"),
		mustDecimal(cfg.Paper.FuturesFeeRate, "0.0004"))

	bus := events.NewBus()
	executorCfg := usecase.ExecutorConfig{
		SpotSymbol:    cfg.Trading.SpotSymbol,
		FuturesSymbol: cfg.Trading.FuturesSymbol,
		BaseAsset:     cfg.Trading.BaseAsset,
		QuoteAsset:    cfg.Trading.QuoteAsset,
	}
	executor := usecase.NewOrderExecutor(spot, futures, executorCfg, log)
	positions := usecase.NewPositionManager(bus, log)
	rollback := usecase.NewRollbackService(executor, spot, futures, executorCfg, log)
	cooldown := usecase.NewCooldownService(bus, log)

	engine, err := usecase.NewTradingEngine(executor, positions, rollback, cooldown, settings, bus, log)
	if err != nil {
		log.Fatal("Failed to build trading engine", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Persist every finished position from the bus.
	closed, unsubscribe := bus.Subscribe(events.EventPositionClosed, 16)
	defer unsubscribe()
	go func() {
		for payload := range closed {
			position, ok := payload.(*domain.Position)
			if !ok {
				continue
			}
			if err := store.SavePosition(ctx, position); err != nil {
				log.Error("Failed to persist position",
					zap.String("id", position.ID), zap.Error(err))
			}
		}
	}()

	// Premium feed: upstream websocket when configured, otherwise poll the
	// venues and derive the premium locally.
	if cfg.Feed.WSURL != "" {
		client := feed.NewWSClient(cfg.Feed.WSURL, func(data *domain.PremiumData) {
			spot.SetPrice(data.SpotPrice)
			futures.SetPrice(data.FuturesPrice)
			engine.OnPremiumUpdate(data)
		}, log)
		go client.Run(ctx)
	} else {
		interval := time.Duration(cfg.Feed.PollIntervalMs) * time.Millisecond
		poller := feed.NewPoller(spot, futures,
			cfg.Trading.SpotSymbol, cfg.Trading.FuturesSymbol,
			mustDecimal(cfg.Feed.FxRate, "1390"), interval,
			engine.OnPremiumUpdate, log)
		go poller.Run(ctx)
	}

	port := cfg.Server.Port
	if port == 0 {
		port = 8080
	}
	server := web.NewServer(port, engine, store, log)
	go func() {
		if err := server.Start(); err != nil {
			log.Fatal("Server failed", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Info("Shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	engine.ToggleOff(shutdownCtx)
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server shutdown failed", zap.Error(err))
	}
}
