package report

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"walletScope/internal/batch"
	"walletScope/internal/model"
)

// SortKey is one element of the report's composite ordering.
type SortKey string

const (
	SortByRoi     SortKey = "roi"
	SortByProfit  SortKey = "profit"
	SortByBalance SortKey = "balance"
)

// BalanceReader fetches the current ETH balance of an address. It is
// only consulted when the ordering includes the balance key.
type BalanceReader interface {
	GetBalance(ctx context.Context, address string) (decimal.Decimal, error)
}

// Config holds report settings.
type Config struct {
	SortKeys []SortKey
	Top      int
	Batch    batch.Config
}

// Builder joins the buy and sell datasets into the ranked profit report.
type Builder struct {
	cfg      Config
	balances BalanceReader
	logger   *zap.Logger
}

// New builds a Builder.
func New(cfg Config, balances BalanceReader, logger *zap.Logger) *Builder {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(cfg.SortKeys) == 0 {
		cfg.SortKeys = []SortKey{SortByRoi}
	}
	return &Builder{cfg: cfg, balances: balances, logger: logger}
}

var hundred = decimal.NewFromInt(100)

// Build inner-joins the two datasets on wallet address, computes profit
// and ROI per wallet, and returns the ranked records. Wallets present
// on only one side are dropped.
func (b *Builder) Build(ctx context.Context, buy, sell map[string]model.WalletAggregate) []model.ProfitRecord {
	records := make([]model.ProfitRecord, 0, len(buy))
	for wallet, buyAgg := range buy {
		sellAgg, ok := sell[wallet]
		if !ok {
			continue
		}
		records = append(records, newRecord(wallet, buyAgg, sellAgg))
	}

	b.logger.Info("datasets joined",
		zap.Int("buy_wallets", len(buy)),
		zap.Int("sell_wallets", len(sell)),
		zap.Int("joined", len(records)),
	)

	if b.needsBalances() {
		b.fetchBalances(ctx, records)
	}

	b.sortRecords(records)

	if b.cfg.Top > 0 && len(records) > b.cfg.Top {
		records = records[:b.cfg.Top]
	}
	return records
}

func newRecord(wallet string, buyAgg, sellAgg model.WalletAggregate) model.ProfitRecord {
	profit := sellAgg.TotalUsd.Sub(buyAgg.TotalUsd)

	roi := decimal.Zero
	if buyAgg.TotalUsd.IsPositive() {
		roi = profit.Div(buyAgg.TotalUsd).Mul(hundred).Round(2)
	}

	return model.ProfitRecord{
		Address:   wallet,
		BuyUsd:    buyAgg.TotalUsd,
		SellUsd:   sellAgg.TotalUsd,
		Profit:    profit,
		Roi:       roi,
		BuyTxIDs:  buyAgg.EventIDs,
		SellTxIDs: sellAgg.EventIDs,
	}
}

func (b *Builder) needsBalances() bool {
	for _, key := range b.cfg.SortKeys {
		if key == SortByBalance {
			return true
		}
	}
	return false
}

// fetchBalances enriches the records in place, through the same group
// batcher the classification stages use. A failed lookup leaves the
// balance at zero and only down-ranks that wallet.
func (b *Builder) fetchBalances(ctx context.Context, records []model.ProfitRecord) {
	if b.balances == nil {
		b.logger.Warn("balance ordering requested without a balance source")
		return
	}

	indexes := make([]int, len(records))
	for i := range records {
		indexes[i] = i
	}

	batch.Run(ctx, b.cfg.Batch, indexes, b.logger, func(ctx context.Context, i int) error {
		balance, err := b.balances.GetBalance(ctx, records[i].Address)
		if err != nil {
			b.logger.Warn("lookup failed", zap.String("check", "balance"), zap.String("address", records[i].Address), zap.Error(err))
			return err
		}
		records[i].Balance = balance
		return nil
	})
}

func (b *Builder) sortRecords(records []model.ProfitRecord) {
	sort.Slice(records, func(i, j int) bool {
		for _, key := range b.cfg.SortKeys {
			if cmp := compareByKey(records[i], records[j], key); cmp != 0 {
				return cmp > 0
			}
		}
		return records[i].Address < records[j].Address
	})
}

func compareByKey(a, b model.ProfitRecord, key SortKey) int {
	switch key {
	case SortByBalance:
		return a.Balance.Cmp(b.Balance)
	case SortByProfit:
		return a.Profit.Cmp(b.Profit)
	default:
		return a.Roi.Cmp(b.Roi)
	}
}
