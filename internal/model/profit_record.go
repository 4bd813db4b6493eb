package model

import "github.com/shopspring/decimal"

// ProfitRecord is one row of the ranked profit report, produced by
// inner-joining the buy and sell datasets on wallet address.
type ProfitRecord struct {
	Address   string          `json:"address"`
	BuyUsd    decimal.Decimal `json:"buy_usd"`
	SellUsd   decimal.Decimal `json:"sell_usd"`
	Profit    decimal.Decimal `json:"profit"`
	Roi       decimal.Decimal `json:"roi"`
	Balance   decimal.Decimal `json:"balance_eth"`
	BuyTxIDs  []string        `json:"buy_transactions,omitempty"`
	SellTxIDs []string        `json:"sell_transactions,omitempty"`
}
