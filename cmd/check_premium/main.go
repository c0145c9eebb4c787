// check_premium prints one premium snapshot from the configured venues and
// exits. Handy for verifying config and venue pricing without starting the
// bot.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/khedge/kimchi_hedge/internal/infrastructure/exchange"
	"github.com/khedge/kimchi_hedge/internal/infrastructure/feed"
)

type config struct {
	Trading struct {
		SpotSymbol    string `yaml:"spot_symbol"`
		FuturesSymbol string `yaml:"futures_symbol"`
		QuoteAsset    string `yaml:"quote_asset"`
	} `yaml:"trading"`
	Feed struct {
		FxRate string `yaml:"fx_rate"`
	} `yaml:"feed"`
	Paper struct {
		SpotPrice    string `yaml:"spot_price"`
		FuturesPrice string `yaml:"futures_price"`
	} `yaml:"paper"`
}

func main() {
	path := "config/config.yaml"
	if len(os.Args) > 1 {
		path = os.Args[1]
	}

	f, err := os.Open(path)
	if err != nil {
		fmt.Printf("Failed to open config: %v\n", err)
		os.Exit(1)
	}
	defer f.Close()

	var cfg config
	if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
		fmt.Printf("Failed to parse config: %v\n", err)
		os.Exit(1)
	}

	spot := exchange.NewPaperSpot("upbit-paper", cfg.Trading.QuoteAsset,
		decimal.Zero, decimal.RequireFromString(cfg.Paper.SpotPrice), decimal.Zero)
	futures := exchange.NewPaperFutures("bingx-paper",
		decimal.Zero, decimal.RequireFromString(cfg.Paper.FuturesPrice), decimal.Zero)

	poller := feed.NewPoller(spot, futures,
		cfg.Trading.SpotSymbol, cfg.Trading.FuturesSymbol,
		decimal.RequireFromString(cfg.Feed.FxRate), time.Second,
		nil, zap.NewNop())

	data, err := poller.Snapshot(context.Background())
	if err != nil {
		fmt.Printf("Snapshot failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("spot:    %s %s\n", data.SpotPrice, cfg.Trading.QuoteAsset)
	fmt.Printf("futures: %s USD (fx %s)\n", data.FuturesPrice, data.FxRate)
	fmt.Printf("premium: %s%%\n", data.Premium.StringFixed(4))
}
