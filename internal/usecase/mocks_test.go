package usecase_test

import (
	"context"
	"errors"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/khedge/kimchi_hedge/internal/domain"
)

// fakeSpot implements domain.SpotExchange with scripted fills and failure
// injection.
type fakeSpot struct {
	mu sync.Mutex

	quoteBalance decimal.Decimal
	baseBalance  decimal.Decimal
	price        decimal.Decimal
	feeRate      decimal.Decimal

	failBalance bool
	failBuy     bool
	rejectBuy   bool
	failSell    bool

	buyCalls  []decimal.Decimal
	sellCalls int
}

func newFakeSpot() *fakeSpot {
	return &fakeSpot{
		quoteBalance: decimal.NewFromInt(10_000_000),
		price:        decimal.NewFromInt(100_000_000),
		feeRate:      decimal.NewFromFloat(0.0005),
	}
}

func (f *fakeSpot) Name() string { return "upbit-paper" }

func (f *fakeSpot) GetBalance(_ context.Context, asset string) (decimal.Decimal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failBalance {
		return decimal.Zero, errors.New("balance endpoint unreachable")
	}
	if asset == "KRW" {
		return f.quoteBalance, nil
	}
	return f.baseBalance, nil
}

func (f *fakeSpot) GetCurrentPrice(_ context.Context, _ string) (decimal.Decimal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.price, nil
}

func (f *fakeSpot) PlaceMarketBuy(_ context.Context, _ string, quoteAmount decimal.Decimal) (domain.OrderResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.buyCalls = append(f.buyCalls, quoteAmount)
	if f.failBuy {
		return domain.OrderResult{}, errors.New("order endpoint unreachable")
	}
	if f.rejectBuy {
		return domain.FailedOrder("insufficient funds"), nil
	}
	fee := quoteAmount.Mul(f.feeRate)
	qty := quoteAmount.Sub(fee).Div(f.price)
	f.quoteBalance = f.quoteBalance.Sub(quoteAmount)
	f.baseBalance = f.baseBalance.Add(qty)
	return domain.FilledOrder(qty, f.price, fee), nil
}

func (f *fakeSpot) PlaceMarketSellAll(_ context.Context, _ string) (domain.OrderResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sellCalls++
	if f.failSell {
		return domain.OrderResult{}, errors.New("order endpoint unreachable")
	}
	qty := f.baseBalance
	proceeds := qty.Mul(f.price)
	fee := proceeds.Mul(f.feeRate)
	f.baseBalance = decimal.Zero
	f.quoteBalance = f.quoteBalance.Add(proceeds.Sub(fee))
	return domain.FilledOrder(qty, f.price, fee), nil
}

// fakeFutures implements domain.FuturesExchange with a single scripted
// position slot.
type fakeFutures struct {
	mu sync.Mutex

	balance  decimal.Decimal
	price    decimal.Decimal
	feeRate  decimal.Decimal
	position *domain.FuturesPosition
	leverage int

	failLeverage bool
	failShort    bool
	rejectShort  bool
	failClose    bool
	shortFillFn  func(requested decimal.Decimal) decimal.Decimal

	// When set before the test spins up goroutines, ClosePosition signals
	// closeEntered and then parks until blockClose is closed.
	closeEntered chan struct{}
	blockClose   chan struct{}

	shortCalls []decimal.Decimal
	closeCalls int
}

func newFakeFutures() *fakeFutures {
	return &fakeFutures{
		balance: decimal.NewFromInt(10_000),
		price:   decimal.NewFromInt(70_000),
		feeRate: decimal.NewFromFloat(0.0004),
	}
}

func (f *fakeFutures) Name() string { return "bingx-paper" }

func (f *fakeFutures) GetBalance(_ context.Context) (decimal.Decimal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.balance, nil
}

func (f *fakeFutures) GetCurrentPrice(_ context.Context, _ string) (decimal.Decimal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.price, nil
}

func (f *fakeFutures) GetPosition(_ context.Context, _ string) (*domain.FuturesPosition, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.position, nil
}

func (f *fakeFutures) SetLeverage(_ context.Context, _ string, leverage int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failLeverage {
		return errors.New("leverage endpoint unreachable")
	}
	f.leverage = leverage
	return nil
}

func (f *fakeFutures) OpenShort(_ context.Context, symbol string, quantity decimal.Decimal) (domain.OrderResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.shortCalls = append(f.shortCalls, quantity)
	if f.failShort {
		return domain.OrderResult{}, errors.New("order endpoint unreachable")
	}
	if f.rejectShort {
		return domain.FailedOrder("margin insufficient"), nil
	}
	fill := quantity
	if f.shortFillFn != nil {
		fill = f.shortFillFn(quantity)
	}
	fee := fill.Mul(f.price).Mul(f.feeRate)
	f.position = &domain.FuturesPosition{
		Symbol:     symbol,
		Quantity:   fill,
		EntryPrice: f.price,
	}
	return domain.FilledOrder(fill, f.price, fee), nil
}

func (f *fakeFutures) ClosePosition(_ context.Context, _ string) (domain.OrderResult, error) {
	if f.closeEntered != nil {
		f.closeEntered <- struct{}{}
	}
	if f.blockClose != nil {
		<-f.blockClose
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closeCalls++
	if f.failClose {
		return domain.OrderResult{}, errors.New("order endpoint unreachable")
	}
	if f.position == nil {
		return domain.FilledOrder(decimal.Zero, f.price, decimal.Zero), nil
	}
	qty := f.position.Quantity
	fee := qty.Mul(f.price).Mul(f.feeRate)
	f.position = nil
	return domain.FilledOrder(qty, f.price, fee), nil
}
