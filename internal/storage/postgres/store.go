package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"walletScope/internal/model"
)

// Store provides Postgres persistence for ranked profit reports.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// UpsertProfitRecords inserts or updates report rows for a token. The
// slice order is the ranking, recorded in the rank column.
func (s *Store) UpsertProfitRecords(ctx context.Context, token string, records []model.ProfitRecord) error {
	if len(records) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for rank, record := range records {
		batch.Queue(`
			INSERT INTO wallet_profit (
				token, wallet_address, rank, buy_usd, sell_usd, profit, roi, balance_eth, created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now(), now())
			ON CONFLICT (token, wallet_address)
			DO UPDATE SET
				rank = EXCLUDED.rank,
				buy_usd = EXCLUDED.buy_usd,
				sell_usd = EXCLUDED.sell_usd,
				profit = EXCLUDED.profit,
				roi = EXCLUDED.roi,
				balance_eth = EXCLUDED.balance_eth,
				updated_at = now()
		`,
			token,
			record.Address,
			rank+1,
			record.BuyUsd.String(),
			record.SellUsd.String(),
			record.Profit.String(),
			record.Roi.String(),
			record.Balance.String(),
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range records {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}
