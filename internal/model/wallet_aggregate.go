package model

import "github.com/shopspring/decimal"

// WalletAggregate holds the running totals for one accepted wallet
// within a single dataset (buy side or sell side).
//
// EventIDs lists every swap applied to the totals, in application
// order; TotalUsd is always the sum of the usd amounts of exactly
// those swaps.
type WalletAggregate struct {
	Address    string          `json:"address"`
	TotalUsd   decimal.Decimal `json:"total_usd"`
	TotalToken decimal.Decimal `json:"total_token"`
	FirstSeen  uint64          `json:"first_seen"`
	EventCount int             `json:"event_count"`
	EventIDs   []string        `json:"transaction_ids"`
}
