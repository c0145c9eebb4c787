package exchange

import (
	"context"
	"errors"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/khedge/kimchi_hedge/internal/domain"
)

// ErrNetworkDown is returned by a paper adapter with failure injection
// armed. Tests and drills use it to exercise the rollback paths.
var ErrNetworkDown = errors.New("simulated network failure")

// PaperSpot simulates the domestic spot venue with an in-memory book of
// balances and immediate fills at the marked price.
type PaperSpot struct {
	mu sync.Mutex

	name         string
	quoteAsset   string
	quoteBalance decimal.Decimal
	baseBalance  decimal.Decimal
	price        decimal.Decimal
	feeRate      decimal.Decimal

	FailNext bool
}

func NewPaperSpot(name, quoteAsset string, quoteBalance, price, feeRate decimal.Decimal) *PaperSpot {
	return &PaperSpot{
		name:         name,
		quoteAsset:   quoteAsset,
		quoteBalance: quoteBalance,
		price:        price,
		feeRate:      feeRate,
	}
}

func (p *PaperSpot) Name() string { return p.name }

// SetPrice marks the venue to a new price, normally driven by the feed.
func (p *PaperSpot) SetPrice(price decimal.Decimal) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if price.IsPositive() {
		p.price = price
	}
}

func (p *PaperSpot) GetBalance(_ context.Context, asset string) (decimal.Decimal, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failNextLocked() {
		return decimal.Zero, ErrNetworkDown
	}
	if asset == p.quoteAsset {
		return p.quoteBalance, nil
	}
	return p.baseBalance, nil
}

func (p *PaperSpot) GetCurrentPrice(_ context.Context, _ string) (decimal.Decimal, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.price, nil
}

func (p *PaperSpot) PlaceMarketBuy(_ context.Context, _ string, quoteAmount decimal.Decimal) (domain.OrderResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failNextLocked() {
		return domain.OrderResult{}, ErrNetworkDown
	}
	if quoteAmount.GreaterThan(p.quoteBalance) {
		return domain.FailedOrder("insufficient " + p.quoteAsset + " balance"), nil
	}
	if !p.price.IsPositive() {
		return domain.FailedOrder("no mark price"), nil
	}
	fee := quoteAmount.Mul(p.feeRate)
	quantity := quoteAmount.Sub(fee).Div(p.price)
	p.quoteBalance = p.quoteBalance.Sub(quoteAmount)
	p.baseBalance = p.baseBalance.Add(quantity)
	return domain.FilledOrder(quantity, p.price, fee), nil
}

func (p *PaperSpot) PlaceMarketSellAll(_ context.Context, _ string) (domain.OrderResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failNextLocked() {
		return domain.OrderResult{}, ErrNetworkDown
	}
	quantity := p.baseBalance
	if !quantity.IsPositive() {
		return domain.FilledOrder(decimal.Zero, p.price, decimal.Zero), nil
	}
	proceeds := quantity.Mul(p.price)
	fee := proceeds.Mul(p.feeRate)
	p.baseBalance = decimal.Zero
	p.quoteBalance = p.quoteBalance.Add(proceeds.Sub(fee))
	return domain.FilledOrder(quantity, p.price, fee), nil
}

func (p *PaperSpot) failNextLocked() bool {
	if p.FailNext {
		p.FailNext = false
		return true
	}
	return false
}

// PaperFutures simulates the offshore futures venue with one position slot
// per symbol.
type PaperFutures struct {
	mu sync.Mutex

	name      string
	balance   decimal.Decimal
	price     decimal.Decimal
	feeRate   decimal.Decimal
	leverage  int
	positions map[string]*domain.FuturesPosition

	FailNext bool
}

func NewPaperFutures(name string, balance, price, feeRate decimal.Decimal) *PaperFutures {
	return &PaperFutures{
		name:      name,
		balance:   balance,
		price:     price,
		feeRate:   feeRate,
		leverage:  1,
		positions: make(map[string]*domain.FuturesPosition),
	}
}

func (p *PaperFutures) Name() string { return p.name }

func (p *PaperFutures) SetPrice(price decimal.Decimal) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if price.IsPositive() {
		p.price = price
	}
}

func (p *PaperFutures) GetBalance(_ context.Context) (decimal.Decimal, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.balance, nil
}

func (p *PaperFutures) GetCurrentPrice(_ context.Context, _ string) (decimal.Decimal, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.price, nil
}

func (p *PaperFutures) GetPosition(_ context.Context, symbol string) (*domain.FuturesPosition, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failNextLocked() {
		return nil, ErrNetworkDown
	}
	pos, ok := p.positions[symbol]
	if !ok {
		return nil, nil
	}
	copied := *pos
	return &copied, nil
}

func (p *PaperFutures) SetLeverage(_ context.Context, _ string, leverage int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failNextLocked() {
		return ErrNetworkDown
	}
	p.leverage = leverage
	return nil
}

func (p *PaperFutures) OpenShort(_ context.Context, symbol string, quantity decimal.Decimal) (domain.OrderResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failNextLocked() {
		return domain.OrderResult{}, ErrNetworkDown
	}
	if !quantity.IsPositive() {
		return domain.FailedOrder("quantity must be positive"), nil
	}
	if _, exists := p.positions[symbol]; exists {
		return domain.FailedOrder("position already open for " + symbol), nil
	}
	notional := quantity.Mul(p.price)
	margin := notional.Div(decimal.NewFromInt(int64(p.leverage)))
	if margin.GreaterThan(p.balance) {
		return domain.FailedOrder("insufficient margin"), nil
	}
	fee := notional.Mul(p.feeRate)
	p.balance = p.balance.Sub(fee)
	p.positions[symbol] = &domain.FuturesPosition{
		Symbol:     symbol,
		Side:       "SHORT",
		Quantity:   quantity,
		EntryPrice: p.price,
		Leverage:   p.leverage,
	}
	return domain.FilledOrder(quantity, p.price, fee), nil
}

func (p *PaperFutures) ClosePosition(_ context.Context, symbol string) (domain.OrderResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failNextLocked() {
		return domain.OrderResult{}, ErrNetworkDown
	}
	pos, ok := p.positions[symbol]
	if !ok {
		// Closing a flat symbol is a successful no-op.
		return domain.FilledOrder(decimal.Zero, p.price, decimal.Zero), nil
	}
	delete(p.positions, symbol)

	notional := pos.Quantity.Mul(p.price)
	fee := notional.Mul(p.feeRate)
	pnl := pos.EntryPrice.Sub(p.price).Mul(pos.Quantity)
	p.balance = p.balance.Add(pnl).Sub(fee)
	return domain.FilledOrder(pos.Quantity, p.price, fee), nil
}

func (p *PaperFutures) failNextLocked() bool {
	if p.FailNext {
		p.FailNext = false
		return true
	}
	return false
}
