package model

import "github.com/shopspring/decimal"

// SwapEvent is the normalized representation of one indexed swap that
// matched the stage filter. Events are immutable and uniquely identified
// by ID; the aggregator relies on the ID to never double-count a swap
// when pagination windows overlap.
type SwapEvent struct {
	ID          string          `json:"id"`
	Sender      string          `json:"sender"`
	Recipient   string          `json:"recipient"`
	TokenAmount decimal.Decimal `json:"token_amount"`
	UsdAmount   decimal.Decimal `json:"usd_amount"`
	Timestamp   uint64          `json:"timestamp"`
}

// Wallet returns the address the event is attributed to. Both buy and
// sell datasets key on the swap recipient.
func (e SwapEvent) Wallet() string {
	return e.Recipient
}
