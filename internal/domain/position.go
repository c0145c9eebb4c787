package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PositionStatus tracks a hedge position through its lifecycle.
type PositionStatus string

const (
	StatusNone     PositionStatus = "NONE"
	StatusOpening  PositionStatus = "OPENING"
	StatusOpen     PositionStatus = "OPEN"
	StatusClosing  PositionStatus = "CLOSING"
	StatusClosed   PositionStatus = "CLOSED"
	StatusRollback PositionStatus = "ROLLBACK"
)

// CloseReason records why a position was closed or unwound.
type CloseReason string

const (
	CloseTakeProfit       CloseReason = "TAKE_PROFIT"
	CloseStopLoss         CloseReason = "STOP_LOSS"
	CloseManual           CloseReason = "MANUAL"
	CloseRollback         CloseReason = "ROLLBACK"
	CloseQuantityMismatch CloseReason = "QUANTITY_MISMATCH"
	CloseError            CloseReason = "ERROR"
)

// Position is the paired spot-long / futures-short hedge. One live instance
// exists at a time; it is owned by the PositionManager and read-only for
// everyone else.
type Position struct {
	ID     string         `json:"id"`
	Status PositionStatus `json:"status"`

	// Entry legs.
	SpotAmount        decimal.Decimal `json:"spot_amount"`
	SpotEntryPrice    decimal.Decimal `json:"spot_entry_price"`
	SpotFee           decimal.Decimal `json:"spot_fee"`
	FuturesAmount     decimal.Decimal `json:"futures_amount"`
	FuturesEntryPrice decimal.Decimal `json:"futures_entry_price"`
	FuturesFee        decimal.Decimal `json:"futures_fee"`
	EntryPremium      decimal.Decimal `json:"entry_premium"`
	EntryTime         time.Time       `json:"entry_time"`

	// Exit legs, populated on close only.
	SpotExitPrice    decimal.Decimal `json:"spot_exit_price"`
	FuturesExitPrice decimal.Decimal `json:"futures_exit_price"`
	SpotExitFee      decimal.Decimal `json:"spot_exit_fee"`
	FuturesExitFee   decimal.Decimal `json:"futures_exit_fee"`
	ClosePremium     decimal.Decimal `json:"close_premium"`
	CloseReason      CloseReason     `json:"close_reason,omitempty"`
	CloseTime        time.Time       `json:"close_time"`

	// RealizedPnL is in the spot quote currency (KRW for BTC/KRW).
	RealizedPnL decimal.Decimal `json:"realized_pnl"`
}

// NewPosition starts a position in Opening status at the given premium.
func NewPosition(entryPremium decimal.Decimal) *Position {
	return &Position{
		ID:           uuid.NewString(),
		Status:       StatusOpening,
		EntryPremium: entryPremium,
		EntryTime:    time.Now().UTC(),
	}
}

// QuantityDifference is the absolute gap between the two legs' sizes.
func (p *Position) QuantityDifference() decimal.Decimal {
	return p.SpotAmount.Sub(p.FuturesAmount).Abs()
}

// Synchronized reports whether the legs match within the given tolerance.
func (p *Position) Synchronized(tolerance decimal.Decimal) bool {
	return p.QuantityDifference().LessThanOrEqual(tolerance)
}
