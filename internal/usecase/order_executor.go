package usecase

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/khedge/kimchi_hedge/internal/domain"
)

// ExecutorConfig names the traded market on each venue.
type ExecutorConfig struct {
	SpotSymbol    string // e.g. "BTC/KRW"
	FuturesSymbol string // e.g. "BTCUSDT"
	BaseAsset     string // traded asset, e.g. "BTC"
	QuoteAsset    string // spot quote currency, e.g. "KRW"
}

// OrderExecutor wraps the two exchange adapters and normalizes every leg
// operation into a domain.OrderResult. Adapter errors never escape as
// errors; callers branch on the Success flag.
type OrderExecutor struct {
	spot    domain.SpotExchange
	futures domain.FuturesExchange
	cfg     ExecutorConfig
	logger  *zap.Logger
}

func NewOrderExecutor(
	spot domain.SpotExchange,
	futures domain.FuturesExchange,
	cfg ExecutorConfig,
	logger *zap.Logger,
) *OrderExecutor {
	return &OrderExecutor{
		spot:    spot,
		futures: futures,
		cfg:     cfg,
		logger:  logger,
	}
}

// BuySpotMarket spends entryRatio percent of the available quote balance on
// a market buy and returns the fill.
func (e *OrderExecutor) BuySpotMarket(ctx context.Context, entryRatio decimal.Decimal) domain.OrderResult {
	balance, err := e.spot.GetBalance(ctx, e.cfg.QuoteAsset)
	if err != nil {
		e.logger.Error("spot balance query failed", zap.Error(err))
		return domain.FailedOrder(fmt.Sprintf("spot balance query failed: %v", err))
	}

	buyAmount := balance.Mul(entryRatio).Div(decimal.NewFromInt(100))
	if !buyAmount.IsPositive() {
		return domain.FailedOrder(fmt.Sprintf("nothing to deploy: balance %s %s", balance, e.cfg.QuoteAsset))
	}

	e.logger.Info("spot market buy",
		zap.String("symbol", e.cfg.SpotSymbol),
		zap.String("balance", balance.String()),
		zap.String("amount", buyAmount.String()))

	result, err := e.spot.PlaceMarketBuy(ctx, e.cfg.SpotSymbol, buyAmount)
	if err != nil {
		e.logger.Error("spot buy failed", zap.Error(err))
		return domain.FailedOrder(fmt.Sprintf("spot buy failed: %v", err))
	}
	if !result.Success {
		e.logger.Error("spot buy rejected", zap.String("reason", result.Reason))
		return result
	}

	e.logger.Info("spot buy filled",
		zap.String("quantity", result.ExecutedQuantity.String()),
		zap.String("price", result.AveragePrice.String()))
	return result
}

// SetLeverage configures the futures leverage before a short is opened.
// Failures propagate: an unconfigured leverage must abort the entry.
func (e *OrderExecutor) SetLeverage(ctx context.Context, leverage int) error {
	if err := e.futures.SetLeverage(ctx, e.cfg.FuturesSymbol, leverage); err != nil {
		return fmt.Errorf("set leverage %dx on %s: %w", leverage, e.cfg.FuturesSymbol, err)
	}
	e.logger.Info("leverage set", zap.Int("leverage", leverage))
	return nil
}

// ShortFuturesMarket opens a short for exactly quantity base units. The
// caller passes the spot leg's actual fill, never a recomputed notional.
func (e *OrderExecutor) ShortFuturesMarket(ctx context.Context, quantity decimal.Decimal) domain.OrderResult {
	e.logger.Info("futures market short",
		zap.String("symbol", e.cfg.FuturesSymbol),
		zap.String("quantity", quantity.String()))

	result, err := e.futures.OpenShort(ctx, e.cfg.FuturesSymbol, quantity)
	if err != nil {
		e.logger.Error("futures short failed", zap.Error(err))
		return domain.FailedOrder(fmt.Sprintf("futures short failed: %v", err))
	}
	if !result.Success {
		e.logger.Error("futures short rejected", zap.String("reason", result.Reason))
		return result
	}

	e.logger.Info("futures short filled",
		zap.String("quantity", result.ExecutedQuantity.String()),
		zap.String("price", result.AveragePrice.String()))
	return result
}

// SellAllSpotMarket liquidates the entire spot base balance at market.
func (e *OrderExecutor) SellAllSpotMarket(ctx context.Context) domain.OrderResult {
	e.logger.Info("spot sell-all", zap.String("symbol", e.cfg.SpotSymbol))

	result, err := e.spot.PlaceMarketSellAll(ctx, e.cfg.SpotSymbol)
	if err != nil {
		e.logger.Error("spot sell-all failed", zap.Error(err))
		return domain.FailedOrder(fmt.Sprintf("spot sell-all failed: %v", err))
	}
	if !result.Success {
		e.logger.Error("spot sell-all rejected", zap.String("reason", result.Reason))
		return result
	}

	e.logger.Info("spot sell-all filled",
		zap.String("quantity", result.ExecutedQuantity.String()),
		zap.String("price", result.AveragePrice.String()))
	return result
}

// CloseFuturesPosition closes whatever futures position exists for the
// traded symbol. Closing a flat symbol succeeds with zero quantity.
func (e *OrderExecutor) CloseFuturesPosition(ctx context.Context) domain.OrderResult {
	e.logger.Info("futures close", zap.String("symbol", e.cfg.FuturesSymbol))

	result, err := e.futures.ClosePosition(ctx, e.cfg.FuturesSymbol)
	if err != nil {
		e.logger.Error("futures close failed", zap.Error(err))
		return domain.FailedOrder(fmt.Sprintf("futures close failed: %v", err))
	}
	if !result.Success {
		e.logger.Error("futures close rejected", zap.String("reason", result.Reason))
		return result
	}

	e.logger.Info("futures close filled",
		zap.String("quantity", result.ExecutedQuantity.String()),
		zap.String("price", result.AveragePrice.String()))
	return result
}
