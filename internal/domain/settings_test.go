package domain_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/khedge/kimchi_hedge/internal/domain"
)

func validSettings() domain.TradingSettings {
	return domain.TradingSettings{
		EntryPremium:      decimal.NewFromFloat(3.0),
		TakeProfitPremium: decimal.NewFromFloat(1.0),
		StopLossPremium:   decimal.NewFromFloat(5.0),
		EntryRatio:        decimal.NewFromInt(50),
		Leverage:          1,
		CooldownSeconds:   300,
		QuantityTolerance: decimal.NewFromFloat(0.00000001),
	}
}

func TestSettingsValidate_Valid(t *testing.T) {
	require.NoError(t, validSettings().Validate())

	s := validSettings()
	s.Leverage = 2
	s.CooldownSeconds = 60
	require.NoError(t, s.Validate())

	s.CooldownSeconds = 1800
	require.NoError(t, s.Validate())
}

func TestSettingsValidate_ThresholdOrdering(t *testing.T) {
	tests := []struct {
		name    string
		entry   float64
		tp      float64
		sl      float64
		wantErr string
	}{
		{"take profit above entry", 3.0, 4.0, 5.0, "take_profit_premium"},
		{"take profit equals entry", 3.0, 3.0, 5.0, "take_profit_premium"},
		{"stop loss below entry", 3.0, 1.0, 2.5, "stop_loss_premium"},
		{"stop loss equals entry", 3.0, 1.0, 3.0, "stop_loss_premium"},
		{"entry not positive", 0, -1.0, 5.0, "entry_premium"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := validSettings()
			s.EntryPremium = decimal.NewFromFloat(tt.entry)
			s.TakeProfitPremium = decimal.NewFromFloat(tt.tp)
			s.StopLossPremium = decimal.NewFromFloat(tt.sl)

			err := s.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestSettingsValidate_Bounds(t *testing.T) {
	s := validSettings()
	s.EntryRatio = decimal.Zero
	assert.ErrorContains(t, s.Validate(), "entry_ratio")

	s = validSettings()
	s.EntryRatio = decimal.NewFromInt(101)
	assert.ErrorContains(t, s.Validate(), "entry_ratio")

	s = validSettings()
	s.Leverage = 0
	assert.ErrorContains(t, s.Validate(), "leverage")

	s = validSettings()
	s.Leverage = 3
	assert.ErrorContains(t, s.Validate(), "leverage")

	s = validSettings()
	s.CooldownSeconds = 59
	assert.ErrorContains(t, s.Validate(), "cooldown_seconds")

	s = validSettings()
	s.CooldownSeconds = 1801
	assert.ErrorContains(t, s.Validate(), "cooldown_seconds")

	s = validSettings()
	s.QuantityTolerance = decimal.Zero
	assert.ErrorContains(t, s.Validate(), "quantity_tolerance")

	s = validSettings()
	s.QuantityTolerance = decimal.NewFromFloat(0.02)
	assert.ErrorContains(t, s.Validate(), "quantity_tolerance")
}

func TestPositionSynchronized(t *testing.T) {
	p := domain.NewPosition(decimal.NewFromFloat(3.6))
	p.SpotAmount = decimal.RequireFromString("0.12345678")
	p.FuturesAmount = decimal.RequireFromString("0.12345678")

	tol := decimal.NewFromFloat(0.00000001)
	assert.True(t, p.Synchronized(tol))
	assert.True(t, p.QuantityDifference().IsZero())

	p.FuturesAmount = decimal.RequireFromString("0.12345680")
	assert.False(t, p.Synchronized(tol))
}
