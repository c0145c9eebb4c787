package domain

import (
	"context"

	"github.com/shopspring/decimal"
)

// SpotExchange is the contract a domestic spot adapter must satisfy.
// Adapters enforce their own request timeouts and surface problems as plain
// errors; the trading core never sees a hang.
type SpotExchange interface {
	Name() string

	// GetBalance returns the free balance of an asset (e.g. "KRW", "BTC").
	GetBalance(ctx context.Context, asset string) (decimal.Decimal, error)

	// GetCurrentPrice returns the last traded price for a symbol pair.
	GetCurrentPrice(ctx context.Context, symbol string) (decimal.Decimal, error)

	// PlaceMarketBuy spends quoteAmount of the quote currency at market.
	PlaceMarketBuy(ctx context.Context, symbol string, quoteAmount decimal.Decimal) (OrderResult, error)

	// PlaceMarketSellAll liquidates the entire base-asset balance at market.
	PlaceMarketSellAll(ctx context.Context, symbol string) (OrderResult, error)
}

// FuturesPosition is a snapshot of the short leg on the offshore venue.
type FuturesPosition struct {
	Symbol     string          `json:"symbol"`
	Side       string          `json:"side"`
	Quantity   decimal.Decimal `json:"quantity"`
	EntryPrice decimal.Decimal `json:"entry_price"`
	Leverage   int             `json:"leverage"`
}

// FuturesExchange is the contract an offshore futures adapter must satisfy.
type FuturesExchange interface {
	Name() string

	// GetBalance returns the free margin balance in the quote currency.
	GetBalance(ctx context.Context) (decimal.Decimal, error)

	// GetCurrentPrice returns the mark/last price for a symbol.
	GetCurrentPrice(ctx context.Context, symbol string) (decimal.Decimal, error)

	// GetPosition returns the current position, or nil when flat.
	GetPosition(ctx context.Context, symbol string) (*FuturesPosition, error)

	// SetLeverage configures the leverage used by subsequent orders.
	SetLeverage(ctx context.Context, symbol string, leverage int) error

	// OpenShort opens a short of exactly quantity base units at market.
	OpenShort(ctx context.Context, symbol string, quantity decimal.Decimal) (OrderResult, error)

	// ClosePosition closes whatever position exists at market. Closing a
	// flat symbol is a successful zero-quantity no-op.
	ClosePosition(ctx context.Context, symbol string) (OrderResult, error)
}

// HistoryRepository stores finished positions for later inspection.
type HistoryRepository interface {
	SavePosition(ctx context.Context, position *Position) error
	ListPositions(ctx context.Context, limit int) ([]*Position, error)
}
