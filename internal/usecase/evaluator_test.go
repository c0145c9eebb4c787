package usecase_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/khedge/kimchi_hedge/internal/domain"
	"github.com/khedge/kimchi_hedge/internal/usecase"
)

func evaluatorSettings() domain.TradingSettings {
	return domain.TradingSettings{
		EntryPremium:      decimal.NewFromFloat(3.5),
		TakeProfitPremium: decimal.NewFromFloat(2.0),
		StopLossPremium:   decimal.NewFromFloat(5.0),
		EntryRatio:        decimal.NewFromInt(50),
		Leverage:          1,
		CooldownSeconds:   300,
		QuantityTolerance: decimal.NewFromFloat(0.00000001),
	}
}

func TestEvaluate(t *testing.T) {
	evaluator := usecase.NewConditionEvaluator()
	settings := evaluatorSettings()

	tests := []struct {
		name        string
		premium     string
		hasPosition bool
		want        usecase.Action
	}{
		{"below entry, no position", "3.4", false, usecase.ActionNone},
		{"at entry, no position", "3.5", false, usecase.ActionEnter},
		{"above entry, no position", "4.2", false, usecase.ActionEnter},
		{"negative premium, no position", "-0.8", false, usecase.ActionNone},
		{"holding, mid band", "3.0", true, usecase.ActionNone},
		{"holding, at take profit", "2.0", true, usecase.ActionTakeProfit},
		{"holding, below take profit", "1.1", true, usecase.ActionTakeProfit},
		{"holding, at stop loss", "5.0", true, usecase.ActionStopLoss},
		{"holding, above stop loss", "6.3", true, usecase.ActionStopLoss},
		{"holding, entry level is not an exit", "3.5", true, usecase.ActionNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			premium := decimal.RequireFromString(tt.premium)
			got := evaluator.Evaluate(premium, tt.hasPosition, settings)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEvaluateDeterministic(t *testing.T) {
	evaluator := usecase.NewConditionEvaluator()
	settings := evaluatorSettings()
	premium := decimal.NewFromFloat(4.1)

	first := evaluator.Evaluate(premium, true, settings)
	for i := 0; i < 100; i++ {
		assert.Equal(t, first, evaluator.Evaluate(premium, true, settings))
	}
}

func TestEvaluateTakeProfitCheckedBeforeStopLoss(t *testing.T) {
	evaluator := usecase.NewConditionEvaluator()

	// Degenerate thresholds that a validated settings object cannot carry;
	// evaluation order must still be fixed.
	settings := evaluatorSettings()
	settings.TakeProfitPremium = decimal.NewFromFloat(5.0)
	settings.StopLossPremium = decimal.NewFromFloat(5.0)

	got := evaluator.Evaluate(decimal.NewFromFloat(5.0), true, settings)
	assert.Equal(t, usecase.ActionTakeProfit, got)
}
