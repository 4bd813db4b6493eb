package model

// TxCountUnknown marks a wallet whose lifetime transaction count could
// not be fetched. The acceptance rule treats it as over-threshold.
const TxCountUnknown = -1

// WalletVerdict is the outcome of the per-wallet classification checks.
// It lives only for the duration of the classification step.
type WalletVerdict struct {
	Address        string `json:"address"`
	IsContract     bool   `json:"is_contract"`
	HasPublicTag   bool   `json:"has_public_tag"`
	RecentlyActive bool   `json:"recently_active"`
	TxCount        int    `json:"tx_count"`
}
