package domain

import "github.com/shopspring/decimal"

// OrderResult is the normalized outcome of a single leg operation. Failures
// are values, not errors: callers branch on Success and read Reason. Nothing
// panics or returns a raw error across the executor boundary.
type OrderResult struct {
	Success          bool            `json:"success"`
	ExecutedQuantity decimal.Decimal `json:"executed_quantity"`
	AveragePrice     decimal.Decimal `json:"average_price"`
	Fee              decimal.Decimal `json:"fee"`
	Reason           string          `json:"reason,omitempty"`
}

// FilledOrder builds a successful result.
func FilledOrder(quantity, price, fee decimal.Decimal) OrderResult {
	return OrderResult{
		Success:          true,
		ExecutedQuantity: quantity,
		AveragePrice:     price,
		Fee:              fee,
	}
}

// FailedOrder builds a failure result carrying a human-readable reason.
func FailedOrder(reason string) OrderResult {
	return OrderResult{Success: false, Reason: reason}
}

// ExecutedValue is quantity * average price.
func (r OrderResult) ExecutedValue() decimal.Decimal {
	return r.ExecutedQuantity.Mul(r.AveragePrice)
}
