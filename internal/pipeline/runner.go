package pipeline

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"walletScope/internal/aggregate"
	"walletScope/internal/batch"
	"walletScope/internal/model"
	"walletScope/internal/storage"
	"walletScope/internal/subgraph"
)

// EventSource produces the complete event set for a bounded range.
type EventSource interface {
	FetchAll(ctx context.Context, filter subgraph.Filter) ([]model.SwapEvent, error)
}

// Classifier decides which wallets enter the aggregate.
type Classifier interface {
	Classify(ctx context.Context, address string) model.WalletVerdict
	Accept(verdict model.WalletVerdict) bool
}

// Config holds runtime settings for one stage run.
type Config struct {
	Filter subgraph.Filter
	Batch  batch.Config
	Out    string
}

// Runner executes one dataset stage: fetch the full event set, classify
// each wallet under the rate limit, and aggregate accepted wallets.
type Runner struct {
	cfg        Config
	source     EventSource
	classifier Classifier
	store      *aggregate.Store
	logger     *zap.Logger
}

// NewRunner builds a Runner with its dependencies.
func NewRunner(cfg Config, source EventSource, classifier Classifier, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		cfg:        cfg,
		source:     source,
		classifier: classifier,
		store:      aggregate.NewStore(),
		logger:     logger,
	}
}

// Run executes the stage and returns the dataset. A fetch failure is
// fatal: classification never starts on a partial event set. A failure
// to persist is returned alongside the in-memory dataset so the caller
// can retry the write.
func (r *Runner) Run(ctx context.Context) (map[string]model.WalletAggregate, error) {
	if r.source == nil {
		return nil, fmt.Errorf("event source is nil")
	}
	if r.classifier == nil {
		return nil, fmt.Errorf("classifier is nil")
	}

	events, err := r.source.FetchAll(ctx, r.cfg.Filter)
	if err != nil {
		return nil, fmt.Errorf("fetch events: %w", err)
	}

	byWallet, wallets := groupByWallet(events)
	r.logger.Info("events fetched",
		zap.Int("events", len(events)),
		zap.Int("wallets", len(wallets)),
		zap.String("side", string(r.cfg.Filter.Side)),
	)

	stats := batch.Run(ctx, r.cfg.Batch, wallets, r.logger, func(ctx context.Context, wallet string) error {
		verdict := r.classifier.Classify(ctx, wallet)
		if !r.classifier.Accept(verdict) {
			r.logger.Info("wallet skipped",
				zap.String("address", wallet),
				zap.Bool("is_contract", verdict.IsContract),
				zap.Bool("has_public_tag", verdict.HasPublicTag),
				zap.Bool("recently_active", verdict.RecentlyActive),
				zap.Int("tx_count", verdict.TxCount),
			)
			return nil
		}
		r.store.Merge(wallet, byWallet[wallet])
		return nil
	})

	dataset := r.store.Snapshot()
	r.logger.Info("stage complete",
		zap.Int("accepted", len(dataset)),
		zap.Int("classified", stats.Completed),
		zap.Int("failed", stats.Failed),
		zap.Bool("cancelled", stats.Cancelled),
	)

	if r.cfg.Out != "" {
		if err := storage.WriteDataset(r.cfg.Out, dataset); err != nil {
			return dataset, err
		}
		r.logger.Info("dataset saved", zap.String("path", r.cfg.Out))
	}

	return dataset, nil
}

// groupByWallet splits the event set per wallet, preserving the order
// in which wallets first appear. One wallet's events are merged in a
// single call, so its aggregate is applied atomically.
func groupByWallet(events []model.SwapEvent) (map[string][]model.SwapEvent, []string) {
	byWallet := make(map[string][]model.SwapEvent)
	wallets := make([]string, 0)

	for _, event := range events {
		wallet := event.Wallet()
		if _, seen := byWallet[wallet]; !seen {
			wallets = append(wallets, wallet)
		}
		byWallet[wallet] = append(byWallet[wallet], event)
	}
	return byWallet, wallets
}
