package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PremiumData is one observation of the cross-market premium, pushed by the
// ingestion layer. The core treats Premium as authoritative and never
// recomputes it from the raw prices.
type PremiumData struct {
	// Premium is the domestic-over-offshore price gap in percent.
	Premium decimal.Decimal `json:"kimchi"`

	// SpotPrice is the domestic spot price (e.g. BTC/KRW).
	SpotPrice decimal.Decimal `json:"upbit"`

	// FuturesPrice is the offshore futures price (e.g. BTCUSDT).
	FuturesPrice decimal.Decimal `json:"global"`

	// FxRate is the USD/KRW rate used by the feed.
	FxRate decimal.Decimal `json:"rate"`

	// Timestamp is the feed's unix timestamp in milliseconds.
	Timestamp int64 `json:"timestamp"`

	ReceivedAt time.Time `json:"-"`
}
