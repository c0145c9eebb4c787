package feed

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/khedge/kimchi_hedge/internal/domain"
)

var hundred = decimal.NewFromInt(100)

// Poller derives premium observations from the exchange adapters directly.
// It is the fallback feed when no upstream websocket is configured, and the
// only feed that works against the paper venues.
type Poller struct {
	spot          domain.SpotExchange
	futures       domain.FuturesExchange
	spotSymbol    string
	futuresSymbol string
	handler       func(*domain.PremiumData)
	logger        *zap.Logger
	interval      time.Duration

	mu     sync.Mutex
	fxRate decimal.Decimal
}

func NewPoller(
	spot domain.SpotExchange,
	futures domain.FuturesExchange,
	spotSymbol, futuresSymbol string,
	fxRate decimal.Decimal,
	interval time.Duration,
	handler func(*domain.PremiumData),
	logger *zap.Logger,
) *Poller {
	if interval <= 0 {
		interval = time.Second
	}
	return &Poller{
		spot:          spot,
		futures:       futures,
		spotSymbol:    spotSymbol,
		futuresSymbol: futuresSymbol,
		fxRate:        fxRate,
		interval:      interval,
		handler:       handler,
		logger:        logger,
	}
}

// SetFxRate replaces the KRW per USD rate used in the premium formula.
func (p *Poller) SetFxRate(rate decimal.Decimal) {
	if !rate.IsPositive() {
		return
	}
	p.mu.Lock()
	p.fxRate = rate
	p.mu.Unlock()
}

// Run polls until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			data, err := p.Snapshot(ctx)
			if err != nil {
				p.logger.Warn("premium snapshot failed", zap.Error(err))
				continue
			}
			p.handler(data)
		}
	}
}

// Snapshot reads both venue prices and computes the premium:
// (spotKRW / (futuresUSD * fxRate) - 1) * 100.
func (p *Poller) Snapshot(ctx context.Context) (*domain.PremiumData, error) {
	spotPrice, err := p.spot.GetCurrentPrice(ctx, p.spotSymbol)
	if err != nil {
		return nil, fmt.Errorf("spot price: %w", err)
	}
	futuresPrice, err := p.futures.GetCurrentPrice(ctx, p.futuresSymbol)
	if err != nil {
		return nil, fmt.Errorf("futures price: %w", err)
	}

	p.mu.Lock()
	fxRate := p.fxRate
	p.mu.Unlock()

	globalKRW := futuresPrice.Mul(fxRate)
	if !globalKRW.IsPositive() {
		return nil, fmt.Errorf("degenerate global price: futures %s fx %s", futuresPrice, fxRate)
	}

	now := time.Now()
	return &domain.PremiumData{
		Premium:      spotPrice.Div(globalKRW).Sub(decimal.NewFromInt(1)).Mul(hundred),
		SpotPrice:    spotPrice,
		FuturesPrice: futuresPrice,
		FxRate:       fxRate,
		Timestamp:    now.UnixMilli(),
		ReceivedAt:   now,
	}, nil
}
