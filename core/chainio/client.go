// Package chainio wraps the JSON-RPC connection to one chain and the oracle
// contract deployed on it.
package chainio

import (
	"context"
	"math/big"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"golang.org/x/time/rate"

	"github.com/AvaProtocol/ap-oracle/metrics"
	"github.com/AvaProtocol/ap-oracle/pkg/logger"
)

// Backend is the subset of *ethclient.Client the node depends on.
type Backend interface {
	ChainID(ctx context.Context) (*big.Int, error)
	BlockNumber(ctx context.Context) (uint64, error)
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	NonceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
}

var _ Backend = (*ethclient.Client)(nil)

// Client rate limits and instruments every call made to a Backend. It never
// retries; callers bound and retry the calls they make through pkg/retry.
type Client struct {
	backend Backend
	chain   string
	limiter *rate.Limiter
	logger  logger.Logger
	metrics metrics.Recorder
}

type ClientOption func(*Client)

func WithRateLimit(rps float64) ClientOption {
	return func(c *Client) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), max(1, int(rps)))
		}
	}
}

func WithMetrics(m metrics.Recorder) ClientOption {
	return func(c *Client) {
		c.metrics = metrics.Ensure(m)
	}
}

func WithLogger(l logger.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger.EnsureLogger(l)
	}
}

func NewClient(chain string, backend Backend, opts ...ClientOption) *Client {
	c := &Client{
		backend: backend,
		chain:   chain,
		limiter: rate.NewLimiter(rate.Inf, 1),
		logger:  logger.NewNoOpLogger(),
		metrics: metrics.Noop{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Dial connects to rpcURL and wraps the connection.
func Dial(ctx context.Context, chain, rpcURL string, opts ...ClientOption) (*Client, error) {
	backend, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, err
	}
	return NewClient(chain, backend, opts...), nil
}

func (c *Client) Chain() string {
	return c.chain
}

func call[T any](ctx context.Context, c *Client, method string, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if err := c.limiter.Wait(ctx); err != nil {
		c.metrics.IncRpcCall(c.chain, method, "rate_limited")
		return zero, err
	}

	result, err := fn(ctx)
	if err != nil {
		c.metrics.IncRpcCall(c.chain, method, "error")
		c.logger.Debug("rpc call failed", "chain", c.chain, "method", method, "err", err)
		return zero, err
	}
	c.metrics.IncRpcCall(c.chain, method, "ok")
	return result, nil
}

func (c *Client) ChainID(ctx context.Context) (*big.Int, error) {
	return call(ctx, c, "eth_chainId", c.backend.ChainID)
}

func (c *Client) BlockNumber(ctx context.Context) (uint64, error) {
	return call(ctx, c, "eth_blockNumber", c.backend.BlockNumber)
}

func (c *Client) FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	return call(ctx, c, "eth_getLogs", func(ctx context.Context) ([]types.Log, error) {
		return c.backend.FilterLogs(ctx, q)
	})
}

// BalanceAt returns the balance at the latest block.
func (c *Client) BalanceAt(ctx context.Context, account common.Address) (*big.Int, error) {
	return call(ctx, c, "eth_getBalance", func(ctx context.Context) (*big.Int, error) {
		return c.backend.BalanceAt(ctx, account, nil)
	})
}

// TransactionCount returns the nonce of account at the latest block.
func (c *Client) TransactionCount(ctx context.Context, account common.Address) (uint64, error) {
	return call(ctx, c, "eth_getTransactionCount", func(ctx context.Context) (uint64, error) {
		return c.backend.NonceAt(ctx, account, nil)
	})
}

func (c *Client) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	return call(ctx, c, "eth_gasPrice", c.backend.SuggestGasPrice)
}

func (c *Client) CallContract(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
	return call(ctx, c, "eth_call", func(ctx context.Context) ([]byte, error) {
		return c.backend.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	})
}

func (c *Client) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	return call(ctx, c, "eth_estimateGas", func(ctx context.Context) (uint64, error) {
		return c.backend.EstimateGas(ctx, msg)
	})
}

func (c *Client) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	_, err := call(ctx, c, "eth_sendRawTransaction", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, c.backend.SendTransaction(ctx, tx)
	})
	return err
}
