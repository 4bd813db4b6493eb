package chain

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
)

// Client wraps go-ethereum RPC and provides helper methods.
type Client struct {
	rpcClient *rpc.Client
	ethClient *ethclient.Client

	mu        sync.RWMutex
	codeCache map[common.Address]bool
}

// NewClient creates a new chain client from the RPC URL.
func NewClient(ctx context.Context, rpcURL string) (*Client, error) {
	rpcClient, err := rpc.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, err
	}

	return &Client{
		rpcClient: rpcClient,
		ethClient: ethclient.NewClient(rpcClient),
		codeCache: make(map[common.Address]bool),
	}, nil
}

// Close closes the underlying RPC client.
func (c *Client) Close() {
	if c.rpcClient != nil {
		c.rpcClient.Close()
	}
}

// HasCode reports whether deployed code exists at the address, using an
// in-memory cache. Addresses repeat across buy and sell stages and a
// getCode answer does not change for a finished range.
func (c *Client) HasCode(ctx context.Context, address string) (bool, error) {
	addr := common.HexToAddress(address)

	c.mu.RLock()
	hasCode, ok := c.codeCache[addr]
	c.mu.RUnlock()
	if ok {
		return hasCode, nil
	}

	code, err := c.ethClient.CodeAt(ctx, addr, nil)
	if err != nil {
		return false, err
	}

	hasCode = len(code) > 0
	c.mu.Lock()
	c.codeCache[addr] = hasCode
	c.mu.Unlock()

	return hasCode, nil
}
