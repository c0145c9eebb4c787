package usecase

import (
	"github.com/shopspring/decimal"

	"github.com/khedge/kimchi_hedge/internal/domain"
)

// Action is the outcome of evaluating a premium observation.
type Action string

const (
	ActionNone       Action = "NONE"
	ActionEnter      Action = "ENTER"
	ActionTakeProfit Action = "TAKE_PROFIT"
	ActionStopLoss   Action = "STOP_LOSS"
)

// ConditionEvaluator maps (premium, position-held) to an Action under the
// current settings. Pure decision logic, no I/O.
type ConditionEvaluator struct{}

func NewConditionEvaluator() *ConditionEvaluator {
	return &ConditionEvaluator{}
}

// Evaluate returns the action for the given premium. With a position held,
// take-profit is checked before stop-loss so the outcome is deterministic
// even if a degenerate settings object ever satisfied both.
func (e *ConditionEvaluator) Evaluate(premium decimal.Decimal, hasPosition bool, s domain.TradingSettings) Action {
	if !hasPosition {
		if premium.GreaterThanOrEqual(s.EntryPremium) {
			return ActionEnter
		}
		return ActionNone
	}

	if premium.LessThanOrEqual(s.TakeProfitPremium) {
		return ActionTakeProfit
	}
	if premium.GreaterThanOrEqual(s.StopLossPremium) {
		return ActionStopLoss
	}
	return ActionNone
}
