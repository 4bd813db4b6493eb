package explorer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"
)

const defaultBaseURL = "https://api.etherscan.io/api"

// Config holds runtime settings for the explorer client.
type Config struct {
	BaseURL        string
	APIKey         string
	Timeout        time.Duration
	RequestsPerSec float64
}

// Client talks to an Etherscan-compatible explorer API. Every call goes
// through a shared rate limiter so that concurrent classification
// workers stay under the explorer's request ceiling.
type Client struct {
	cfg     Config
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient builds an explorer client.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.RequestsPerSec <= 0 {
		cfg.RequestsPerSec = 5
	}
	return &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSec), 1),
	}
}

type apiResponse struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Result  json.RawMessage `json:"result"`
}

type txEntry struct {
	TimeStamp string `json:"timeStamp"`
}

type addressInfo struct {
	Tag string `json:"tag"`
}

func (c *Client) get(ctx context.Context, params url.Values) (*apiResponse, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	params.Set("apikey", c.cfg.APIKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("explorer status %d", resp.StatusCode)
	}

	var decoded apiResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("decode explorer response: %w", err)
	}
	return &decoded, nil
}

func txListParams(address string) url.Values {
	return url.Values{
		"module":     {"account"},
		"action":     {"txlist"},
		"address":    {address},
		"startblock": {"0"},
		"endblock":   {"99999999"},
	}
}

// GetTxCount returns the lifetime transaction count of the address.
func (c *Client) GetTxCount(ctx context.Context, address string) (int, error) {
	params := txListParams(address)
	params.Set("sort", "asc")

	resp, err := c.get(ctx, params)
	if err != nil {
		return 0, err
	}

	txs, err := decodeTxList(resp)
	if err != nil {
		return 0, err
	}
	return len(txs), nil
}

// GetLatestTxTimestamp returns the unix timestamp of the most recent
// transaction, or zero when the address has none.
func (c *Client) GetLatestTxTimestamp(ctx context.Context, address string) (uint64, error) {
	params := txListParams(address)
	params.Set("page", "1")
	params.Set("offset", "1")
	params.Set("sort", "desc")

	resp, err := c.get(ctx, params)
	if err != nil {
		return 0, err
	}

	txs, err := decodeTxList(resp)
	if err != nil {
		return 0, err
	}
	if len(txs) == 0 {
		return 0, nil
	}

	ts, err := strconv.ParseUint(txs[0].TimeStamp, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse tx timestamp: %w", err)
	}
	return ts, nil
}

// GetTag returns the public label the explorer attaches to the address,
// or an empty string when none exists.
func (c *Client) GetTag(ctx context.Context, address string) (string, error) {
	resp, err := c.get(ctx, url.Values{
		"module":  {"account"},
		"action":  {"getaddressinfo"},
		"address": {address},
	})
	if err != nil {
		return "", err
	}
	if resp.Status != "1" {
		return "", nil
	}

	var info addressInfo
	if err := json.Unmarshal(resp.Result, &info); err != nil {
		return "", fmt.Errorf("decode address info: %w", err)
	}
	return info.Tag, nil
}

// GetBalance returns the current ETH balance of the address.
func (c *Client) GetBalance(ctx context.Context, address string) (decimal.Decimal, error) {
	resp, err := c.get(ctx, url.Values{
		"module":  {"account"},
		"action":  {"balance"},
		"address": {address},
		"tag":     {"latest"},
	})
	if err != nil {
		return decimal.Zero, err
	}
	if resp.Status != "1" {
		return decimal.Zero, fmt.Errorf("explorer balance error: %s", resp.Message)
	}

	var wei string
	if err := json.Unmarshal(resp.Result, &wei); err != nil {
		return decimal.Zero, fmt.Errorf("decode balance: %w", err)
	}

	value, err := decimal.NewFromString(wei)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse balance: %w", err)
	}
	return value.Shift(-18), nil
}

// decodeTxList unwraps a txlist result. Etherscan reports an address
// with no transactions as status "0" with a non-array result, which is
// an empty list rather than an error.
func decodeTxList(resp *apiResponse) ([]txEntry, error) {
	var txs []txEntry
	if err := json.Unmarshal(resp.Result, &txs); err != nil {
		if resp.Status == "0" {
			return nil, nil
		}
		return nil, fmt.Errorf("explorer txlist error: %s", resp.Message)
	}
	return txs, nil
}
