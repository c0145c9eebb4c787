package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Hard ceiling for the leg quantity tolerance. Anything above this would let
// a visibly unbalanced hedge pass as "synchronized".
var MaxQuantityTolerance = decimal.NewFromFloat(0.01)

// TradingSettings holds the premium thresholds and sizing parameters for the
// hedge strategy. A settings object is immutable once accepted: the engine
// swaps it wholesale on UpdateSettings and never mutates fields in place.
type TradingSettings struct {
	// EntryPremium is the premium (%) at or above which a hedge is opened.
	EntryPremium decimal.Decimal `json:"entry_premium"`

	// TakeProfitPremium is the premium (%) at or below which an open hedge
	// is closed with profit.
	TakeProfitPremium decimal.Decimal `json:"take_profit_premium"`

	// StopLossPremium is the premium (%) at or above which an open hedge is
	// closed to cap the loss.
	StopLossPremium decimal.Decimal `json:"stop_loss_premium"`

	// EntryRatio is the percentage of the available quote balance deployed
	// per entry (0 < ratio <= 100).
	EntryRatio decimal.Decimal `json:"entry_ratio"`

	// Leverage for the futures leg (1 or 2).
	Leverage int `json:"leverage"`

	// CooldownSeconds is the re-entry lockout after any close or rollback.
	CooldownSeconds int `json:"cooldown_seconds"`

	// QuantityTolerance is the maximum accepted |spotQty - futuresQty|
	// before the two legs are treated as mismatched.
	QuantityTolerance decimal.Decimal `json:"quantity_tolerance"`
}

// Validate checks every invariant and returns the first violated rule.
// Thresholds must satisfy takeProfit < entry < stopLoss.
func (s TradingSettings) Validate() error {
	if !s.EntryPremium.IsPositive() {
		return fmt.Errorf("entry_premium must be greater than 0, got %s", s.EntryPremium)
	}
	if s.TakeProfitPremium.GreaterThanOrEqual(s.EntryPremium) {
		return fmt.Errorf("take_profit_premium (%s) must be below entry_premium (%s)",
			s.TakeProfitPremium, s.EntryPremium)
	}
	if s.StopLossPremium.LessThanOrEqual(s.EntryPremium) {
		return fmt.Errorf("stop_loss_premium (%s) must be above entry_premium (%s)",
			s.StopLossPremium, s.EntryPremium)
	}
	if !s.EntryRatio.IsPositive() || s.EntryRatio.GreaterThan(decimal.NewFromInt(100)) {
		return fmt.Errorf("entry_ratio must be in (0, 100], got %s", s.EntryRatio)
	}
	if s.Leverage < 1 || s.Leverage > 2 {
		return fmt.Errorf("leverage must be 1 or 2, got %d", s.Leverage)
	}
	if s.CooldownSeconds < 60 || s.CooldownSeconds > 1800 {
		return fmt.Errorf("cooldown_seconds must be in [60, 1800], got %d", s.CooldownSeconds)
	}
	if !s.QuantityTolerance.IsPositive() || s.QuantityTolerance.GreaterThan(MaxQuantityTolerance) {
		return fmt.Errorf("quantity_tolerance must be in (0, %s], got %s",
			MaxQuantityTolerance, s.QuantityTolerance)
	}
	return nil
}
