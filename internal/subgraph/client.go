package subgraph

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"walletScope/internal/model"
)

// ErrSourceUnavailable marks the indexer as unreachable or its payload
// as malformed. It is fatal to the stage: an incomplete event set must
// never feed the aggregator.
var ErrSourceUnavailable = errors.New("subgraph unavailable")

// Side selects which half of the swap flow a stage collects.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Filter bounds the swap query for one stage.
type Filter struct {
	Token  string
	MinUsd decimal.Decimal
	FromTs uint64
	ToTs   uint64
	Side   Side
}

// Config holds runtime settings for the subgraph client.
type Config struct {
	URL          string
	PageSize     int
	MaxRetries   int
	RetryBackoff time.Duration
	Timeout      time.Duration
}

// Client fetches swap events from a Uniswap-v3-style subgraph.
type Client struct {
	cfg    Config
	http   *http.Client
	logger *zap.Logger
}

// NewClient builds a Client with its dependencies.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 1000
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

type swapRecord struct {
	ID        string          `json:"id"`
	Sender    string          `json:"sender"`
	Recipient string          `json:"recipient"`
	Amount0   decimal.Decimal `json:"amount0"`
	AmountUSD decimal.Decimal `json:"amountUSD"`
	Timestamp uint64          `json:"timestamp,string"`
}

type graphqlResponse struct {
	Data *struct {
		Swaps []swapRecord `json:"swaps"`
	} `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// FetchPage returns one page of events at the given offset. An empty
// page means the range is exhausted.
func (c *Client) FetchPage(ctx context.Context, filter Filter, skip int) ([]model.SwapEvent, error) {
	if c.cfg.URL == "" {
		return nil, fmt.Errorf("%w: url is required", ErrSourceUnavailable)
	}

	body, err := json.Marshal(map[string]string{"query": buildQuery(filter, c.cfg.PageSize, skip)})
	if err != nil {
		return nil, fmt.Errorf("marshal query: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", ErrSourceUnavailable, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrSourceUnavailable, resp.StatusCode)
	}

	var decoded graphqlResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrSourceUnavailable, err)
	}
	if len(decoded.Errors) > 0 {
		return nil, fmt.Errorf("%w: query error: %s", ErrSourceUnavailable, decoded.Errors[0].Message)
	}
	if decoded.Data == nil {
		return nil, fmt.Errorf("%w: swaps data not found", ErrSourceUnavailable)
	}

	events := make([]model.SwapEvent, 0, len(decoded.Data.Swaps))
	for _, rec := range decoded.Data.Swaps {
		events = append(events, model.SwapEvent{
			ID:          rec.ID,
			Sender:      rec.Sender,
			Recipient:   rec.Recipient,
			TokenAmount: rec.Amount0.Abs(),
			UsdAmount:   rec.AmountUSD,
			Timestamp:   rec.Timestamp,
		})
	}
	return events, nil
}

// FetchAll pages through the full range and returns the complete,
// order-preserving event set. Page fetches are retried with backoff;
// a page that still fails after all retries aborts the fetch.
func (c *Client) FetchAll(ctx context.Context, filter Filter) ([]model.SwapEvent, error) {
	all := make([]model.SwapEvent, 0, c.cfg.PageSize)
	skip := 0

	for {
		var page []model.SwapEvent
		err := withRetry(ctx, c.cfg.MaxRetries, c.cfg.RetryBackoff, func(ctx context.Context) error {
			var err error
			page, err = c.FetchPage(ctx, filter, skip)
			if err != nil {
				c.logger.Warn("fetch page failed", zap.Error(err), zap.Int("skip", skip))
			}
			return err
		})
		if err != nil {
			return nil, err
		}

		if len(page) == 0 {
			break
		}

		all = append(all, page...)
		skip += len(page)

		c.logger.Info("page fetched", zap.Int("events", len(page)), zap.Int("total", len(all)))
	}

	return all, nil
}

func buildQuery(filter Filter, first, skip int) string {
	amountCond := "amount0_gt: 0"
	if filter.Side == SideBuy {
		amountCond = "amount0_lt: 0"
	}
	return fmt.Sprintf(`
		query {
			swaps(
				where: {
					%s,
					amountUSD_gte: %s,
					token0: %q,
					timestamp_gte: %d,
					timestamp_lte: %d
				}
				first: %d
				skip: %d
			) {
				id
				sender
				recipient
				amount0
				amountUSD
				timestamp
			}
		}
	`, amountCond, filter.MinUsd.String(), filter.Token, filter.FromTs, filter.ToTs, first, skip)
}
