package classify

import (
	"context"
	"time"

	"go.uber.org/zap"

	"walletScope/internal/model"
)

// CodeReader answers whether deployed code exists at an address.
type CodeReader interface {
	HasCode(ctx context.Context, address string) (bool, error)
}

// Explorer provides the rate-limited explorer lookups the classifier
// needs. Each lookup may fail independently.
type Explorer interface {
	GetTag(ctx context.Context, address string) (string, error)
	GetTxCount(ctx context.Context, address string) (int, error)
	GetLatestTxTimestamp(ctx context.Context, address string) (uint64, error)
}

// Failure policy per sub-check. Fail-open checks resolve a lookup
// failure to the admitting value, fail-closed checks to the rejecting
// one. Dropping a legitimate wallet is worse than occasionally
// admitting a contract, so the contract and tag bits fail open; the
// activity and count checks exist to down-rank wallets, so their
// failures must not admit more.
const (
	contractOnError = false // fail-open: treat as not a contract
	tagOnError      = false // fail-open: treat as untagged
	activeOnError   = false // fail-closed: treat as inactive
)

// Config holds the acceptance thresholds.
type Config struct {
	MaxTxCount            int
	RecencyWindow         time.Duration
	RequireRecentActivity bool
}

// Classifier decides whether a wallet belongs in the aggregate.
type Classifier struct {
	cfg      Config
	chain    CodeReader
	explorer Explorer
	logger   *zap.Logger
	now      func() time.Time
}

// New builds a Classifier.
func New(cfg Config, chain CodeReader, explorer Explorer, logger *zap.Logger) *Classifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxTxCount <= 0 {
		cfg.MaxTxCount = 10000
	}
	if cfg.RecencyWindow <= 0 {
		cfg.RecencyWindow = 45 * 24 * time.Hour
	}
	return &Classifier{
		cfg:      cfg,
		chain:    chain,
		explorer: explorer,
		logger:   logger,
		now:      time.Now,
	}
}

// Classify runs the four sub-checks for one wallet. A failing sub-check
// never fails the wallet outright; it resolves to its failure policy
// and is logged with the address and check name.
func (c *Classifier) Classify(ctx context.Context, address string) model.WalletVerdict {
	verdict := model.WalletVerdict{Address: address}

	isContract, err := c.chain.HasCode(ctx, address)
	if err != nil {
		c.logger.Warn("lookup failed", zap.String("check", "is_contract"), zap.String("address", address), zap.Error(err))
		isContract = contractOnError
	}
	verdict.IsContract = isContract

	tag, err := c.explorer.GetTag(ctx, address)
	if err != nil {
		c.logger.Warn("lookup failed", zap.String("check", "public_tag"), zap.String("address", address), zap.Error(err))
		verdict.HasPublicTag = tagOnError
	} else {
		verdict.HasPublicTag = tag != ""
	}

	latestTs, err := c.explorer.GetLatestTxTimestamp(ctx, address)
	if err != nil {
		c.logger.Warn("lookup failed", zap.String("check", "recent_activity"), zap.String("address", address), zap.Error(err))
		verdict.RecentlyActive = activeOnError
	} else {
		verdict.RecentlyActive = c.isRecent(latestTs)
	}

	count, err := c.explorer.GetTxCount(ctx, address)
	if err != nil {
		c.logger.Warn("lookup failed", zap.String("check", "tx_count"), zap.String("address", address), zap.Error(err))
		count = model.TxCountUnknown
	}
	verdict.TxCount = count

	return verdict
}

// Accept applies the acceptance rule to a verdict. It is a pure
// function of the verdict fields and the configured thresholds.
func (c *Classifier) Accept(verdict model.WalletVerdict) bool {
	if verdict.IsContract || verdict.HasPublicTag {
		return false
	}
	if verdict.TxCount < 0 || verdict.TxCount > c.cfg.MaxTxCount {
		return false
	}
	if c.cfg.RequireRecentActivity && !verdict.RecentlyActive {
		return false
	}
	return true
}

func (c *Classifier) isRecent(latestTs uint64) bool {
	if latestTs == 0 {
		return false
	}
	cutoff := c.now().Add(-c.cfg.RecencyWindow).Unix()
	return cutoff >= 0 && latestTs >= uint64(cutoff)
}
