package usecase

import (
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/khedge/kimchi_hedge/internal/domain"
	"github.com/khedge/kimchi_hedge/internal/events"
)

// PositionManager owns the single live hedge position. All mutation goes
// through it; readers get copies.
type PositionManager struct {
	bus    *events.Bus
	logger *zap.Logger

	mu      sync.Mutex
	current *domain.Position
}

func NewPositionManager(bus *events.Bus, logger *zap.Logger) *PositionManager {
	return &PositionManager{bus: bus, logger: logger}
}

// Create opens the position slot in Opening status. Creating while a
// position already exists is a programming error upstream and is rejected.
func (m *PositionManager) Create(entryPremium decimal.Decimal) (*domain.Position, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current != nil {
		return nil, fmt.Errorf("position %s already exists", m.current.ID)
	}
	m.current = domain.NewPosition(entryPremium)
	m.logger.Info("position created",
		zap.String("id", m.current.ID),
		zap.String("entry_premium", entryPremium.String()))
	return m.snapshotLocked(), nil
}

// CompleteEntry records both entry fills and moves the position to Open.
func (m *PositionManager) CompleteEntry(spot, futures domain.OrderResult) *domain.Position {
	m.mu.Lock()
	p := m.current
	if p == nil {
		m.mu.Unlock()
		return nil
	}
	p.SpotAmount = spot.ExecutedQuantity
	p.SpotEntryPrice = spot.AveragePrice
	p.SpotFee = spot.Fee
	p.FuturesAmount = futures.ExecutedQuantity
	p.FuturesEntryPrice = futures.AveragePrice
	p.FuturesFee = futures.Fee
	p.Status = domain.StatusOpen
	snapshot := m.snapshotLocked()
	m.mu.Unlock()

	m.logger.Info("position open",
		zap.String("id", snapshot.ID),
		zap.String("spot_amount", snapshot.SpotAmount.String()),
		zap.String("futures_amount", snapshot.FuturesAmount.String()))
	m.bus.Publish(events.EventPositionOpened, snapshot)
	return snapshot
}

// CompleteClose records both exit fills, computes realized P&L, clears the
// slot and publishes the closed position.
func (m *PositionManager) CompleteClose(
	spot, futures domain.OrderResult,
	closePremium decimal.Decimal,
	reason domain.CloseReason,
) *domain.Position {
	m.mu.Lock()
	p := m.current
	if p == nil {
		m.mu.Unlock()
		return nil
	}
	p.SpotExitPrice = spot.AveragePrice
	p.SpotExitFee = spot.Fee
	p.FuturesExitPrice = futures.AveragePrice
	p.FuturesExitFee = futures.Fee
	p.ClosePremium = closePremium
	p.CloseReason = reason
	p.CloseTime = time.Now().UTC()
	p.RealizedPnL = realizedPnL(p)
	p.Status = domain.StatusClosed
	snapshot := m.snapshotLocked()
	m.current = nil
	m.mu.Unlock()

	m.logger.Info("position closed",
		zap.String("id", snapshot.ID),
		zap.String("reason", string(reason)),
		zap.String("realized_pnl", snapshot.RealizedPnL.String()))
	m.bus.Publish(events.EventPositionClosed, snapshot)
	return snapshot
}

// MarkRolledBack closes the slot after a compensating unwind. No P&L is
// computed for a rolled back position.
func (m *PositionManager) MarkRolledBack(reason domain.CloseReason) *domain.Position {
	m.mu.Lock()
	p := m.current
	if p == nil {
		m.mu.Unlock()
		return nil
	}
	p.Status = domain.StatusRollback
	p.CloseReason = reason
	p.CloseTime = time.Now().UTC()
	snapshot := m.snapshotLocked()
	m.current = nil
	m.mu.Unlock()

	m.logger.Warn("position rolled back",
		zap.String("id", snapshot.ID),
		zap.String("reason", string(reason)))
	m.bus.Publish(events.EventPositionClosed, snapshot)
	return snapshot
}

// SetStatus transitions the live position, e.g. Open to Closing.
func (m *PositionManager) SetStatus(status domain.PositionStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current != nil {
		m.current.Status = status
	}
}

// Clear drops the slot without publishing. Used when the entry never filled
// a single leg.
func (m *PositionManager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = nil
}

// Current returns a copy of the live position, or nil.
func (m *PositionManager) Current() *domain.Position {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

func (m *PositionManager) HasPosition() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current != nil
}

func (m *PositionManager) snapshotLocked() *domain.Position {
	if m.current == nil {
		return nil
	}
	copied := *m.current
	return &copied
}

// realizedPnL expresses the combined result in the spot quote currency.
// The futures leg settles in its own quote currency; it is converted with
// the cross rate implied by the two exit prices. That rate is an
// approximation of the exit-time FX rate, accepted because both exit fills
// land within the same decision cycle.
func realizedPnL(p *domain.Position) decimal.Decimal {
	spotFees := p.SpotFee.Add(p.SpotExitFee)
	spotPnL := p.SpotExitPrice.Sub(p.SpotEntryPrice).Mul(p.SpotAmount).Sub(spotFees)

	futuresFees := p.FuturesFee.Add(p.FuturesExitFee)
	futuresPnL := p.FuturesEntryPrice.Sub(p.FuturesExitPrice).Mul(p.FuturesAmount).Sub(futuresFees)

	if p.FuturesExitPrice.IsZero() {
		return spotPnL
	}
	impliedRate := p.SpotExitPrice.Div(p.FuturesExitPrice)
	return spotPnL.Add(futuresPnL.Mul(impliedRate))
}
