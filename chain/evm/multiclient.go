package evm

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/google/uuid"

	"github.com/smartcontractkit/lottery-deployments/pkg/logger"
)

const (
	// Default retry configuration for RPC calls
	RPCDefaultRetryAttempts = 1
	RPCDefaultRetryDelay    = 1000 * time.Millisecond
	RPCDefaultRetryTimeout  = 10 * time.Second

	// Default retry configuration for dialing RPC endpoints
	RPCDefaultDialRetryAttempts = 1
	RPCDefaultDialRetryDelay    = 1000 * time.Millisecond
	RPCDefaultDialTimeout       = 10 * time.Second

	// Default timeout for health checks
	RPCDefaultHealthCheckTimeout = 2 * time.Second
)

// RetryConfig tunes how hard each endpoint is tried before failing over to the next one.
type RetryConfig struct {
	Attempts     uint
	Delay        time.Duration
	Timeout      time.Duration
	DialAttempts uint
	DialDelay    time.Duration
	DialTimeout  time.Duration
}

func defaultRetryConfig() RetryConfig {
	return RetryConfig{
		Attempts:     RPCDefaultRetryAttempts,
		Delay:        RPCDefaultRetryDelay,
		Timeout:      RPCDefaultRetryTimeout,
		DialAttempts: RPCDefaultDialRetryAttempts,
		DialDelay:    RPCDefaultDialRetryDelay,
		DialTimeout:  RPCDefaultDialTimeout,
	}
}

// RPC is a named JSON-RPC endpoint of a network, such as its host or one of its backup hosts.
type RPC struct {
	Name string
	URL  string
}

// WithRetryConfig overrides the default retry configuration of a MultiClient.
func WithRetryConfig(cfg RetryConfig) func(*MultiClient) {
	return func(mc *MultiClient) {
		mc.RetryConfig = cfg
	}
}

var _ OnchainClient = &MultiClient{}

type endpoint struct {
	name   string
	client *ethclient.Client
}

// MultiClient talks to a network through its host, failing over to the backup hosts. The
// endpoint which last served a call is tried first. Calls the deployment flow does not make
// always go to the embedded client of the first healthy endpoint.
type MultiClient struct {
	*ethclient.Client
	RetryConfig RetryConfig

	lggr      logger.Logger
	network   string
	mu        sync.RWMutex
	endpoints []endpoint
}

// NewMultiClient dials every RPC and keeps the ones answering eth_blockNumber.
func NewMultiClient(lggr logger.Logger, network string, rpcs []RPC, opts ...func(*MultiClient)) (*MultiClient, error) {
	if len(rpcs) == 0 {
		return nil, errors.New("no RPCs provided, need at least one")
	}

	mc := &MultiClient{lggr: lggr, network: network, RetryConfig: defaultRetryConfig()}
	for _, opt := range opts {
		opt(mc)
	}

	for _, rpc := range rpcs {
		client, err := mc.dial(rpc)
		if err != nil {
			lggr.Warnw("Skipping RPC which could not be dialed", "network", network, "rpc", rpc.Name, "err", err)
			continue
		}

		if err := healthCheck(client); err != nil {
			lggr.Warnw("Skipping unhealthy RPC", "network", network, "rpc", rpc.Name, "err", err)
			client.Close()

			continue
		}

		mc.endpoints = append(mc.endpoints, endpoint{name: rpc.Name, client: client})
	}

	if len(mc.endpoints) == 0 {
		return nil, fmt.Errorf("no valid RPC clients created for network %q", network)
	}
	mc.Client = mc.endpoints[0].client

	return mc, nil
}

// Endpoints returns the names of the healthy RPCs in the order they are tried.
func (mc *MultiClient) Endpoints() []string {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	names := make([]string, 0, len(mc.endpoints))
	for _, e := range mc.endpoints {
		names = append(names, e.name)
	}

	return names
}

func (mc *MultiClient) ChainID(ctx context.Context) (*big.Int, error) {
	return failover(ctx, mc, "ChainID", func(ctx context.Context, c *ethclient.Client) (*big.Int, error) {
		return c.ChainID(ctx)
	})
}

func (mc *MultiClient) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	_, err := failover(ctx, mc, "SendTransaction", func(ctx context.Context, c *ethclient.Client) (struct{}, error) {
		return struct{}{}, c.SendTransaction(ctx, tx)
	})

	return err
}

func (mc *MultiClient) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	return failover(ctx, mc, "CallContract", func(ctx context.Context, c *ethclient.Client) ([]byte, error) {
		return c.CallContract(ctx, msg, blockNumber)
	})
}

func (mc *MultiClient) CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error) {
	return failover(ctx, mc, "CodeAt", func(ctx context.Context, c *ethclient.Client) ([]byte, error) {
		return c.CodeAt(ctx, account, blockNumber)
	})
}

func (mc *MultiClient) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	return failover(ctx, mc, "HeaderByNumber", func(ctx context.Context, c *ethclient.Client) (*types.Header, error) {
		return c.HeaderByNumber(ctx, number)
	})
}

func (mc *MultiClient) NonceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (uint64, error) {
	return failover(ctx, mc, "NonceAt", func(ctx context.Context, c *ethclient.Client) (uint64, error) {
		return c.NonceAt(ctx, account, blockNumber)
	})
}

func (mc *MultiClient) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	return failover(ctx, mc, "PendingNonceAt", func(ctx context.Context, c *ethclient.Client) (uint64, error) {
		return c.PendingNonceAt(ctx, account)
	})
}

func (mc *MultiClient) BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error) {
	return failover(ctx, mc, "BalanceAt", func(ctx context.Context, c *ethclient.Client) (*big.Int, error) {
		return c.BalanceAt(ctx, account, blockNumber)
	})
}

func (mc *MultiClient) EstimateGas(ctx context.Context, call ethereum.CallMsg) (uint64, error) {
	return failover(ctx, mc, "EstimateGas", func(ctx context.Context, c *ethclient.Client) (uint64, error) {
		return c.EstimateGas(ctx, call)
	})
}

func (mc *MultiClient) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	return failover(ctx, mc, "SuggestGasPrice", func(ctx context.Context, c *ethclient.Client) (*big.Int, error) {
		return c.SuggestGasPrice(ctx)
	})
}

func (mc *MultiClient) SuggestGasTipCap(ctx context.Context) (*big.Int, error) {
	return failover(ctx, mc, "SuggestGasTipCap", func(ctx context.Context, c *ethclient.Client) (*big.Int, error) {
		return c.SuggestGasTipCap(ctx)
	})
}

// TransactionReceipt returns ethereum.NotFound without failing over while the transaction is
// pending.
func (mc *MultiClient) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	return failover(ctx, mc, "TransactionReceipt", func(ctx context.Context, c *ethclient.Client) (*types.Receipt, error) {
		return c.TransactionReceipt(ctx, txHash)
	})
}

// Close closes every endpoint.
func (mc *MultiClient) Close() {
	for _, e := range mc.snapshot() {
		e.client.Close()
	}
}

func (mc *MultiClient) snapshot() []endpoint {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	return append([]endpoint(nil), mc.endpoints...)
}

// failover runs call on each endpoint in turn, retrying it per RetryConfig, until one
// succeeds. Answers which are final, such as a pending receipt, end the loop.
func failover[T any](ctx context.Context, mc *MultiClient, op string, call func(context.Context, *ethclient.Client) (T, error)) (T, error) {
	traceID := uuid.NewString()

	var errs []error
	for _, e := range mc.snapshot() {
		out, err := retry.DoWithData(func() (T, error) {
			callCtx, cancel := ensureTimeout(ctx, mc.RetryConfig.Timeout)
			defer cancel()

			out, err := call(callCtx, e.client)
			if errors.Is(err, ethereum.NotFound) {
				return out, retry.Unrecoverable(err)
			}

			return out, err
		},
			retry.Context(ctx),
			retry.Attempts(mc.RetryConfig.Attempts),
			retry.Delay(mc.RetryConfig.Delay),
			retry.LastErrorOnly(true),
			retry.OnRetry(func(n uint, err error) {
				mc.lggr.Debugw("Retrying RPC call", "traceID", traceID, "network", mc.network, "op", op, "rpc", e.name, "attempt", n+1, "err", err)
			}),
		)
		if err == nil {
			mc.promote(e)
			return out, nil
		}
		if errors.Is(err, ethereum.NotFound) || ctx.Err() != nil {
			var zero T
			return zero, err
		}

		mc.lggr.Warnw("RPC call failed, trying next endpoint", "traceID", traceID, "network", mc.network, "op", op, "rpc", e.name, "err", err)
		errs = append(errs, fmt.Errorf("%s: %w", e.name, err))
	}

	var zero T

	return zero, fmt.Errorf("all RPCs failed %s for network %q: %w", op, mc.network, errors.Join(errs...))
}

// promote moves e to the front so the next call starts with the endpoint that last worked.
func (mc *MultiClient) promote(e endpoint) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	if mc.endpoints[0].client == e.client {
		return
	}

	reordered := []endpoint{e}
	for _, other := range mc.endpoints {
		if other.client != e.client {
			reordered = append(reordered, other)
		}
	}

	mc.lggr.Infow("Switching primary RPC", "network", mc.network, "rpc", e.name)
	mc.endpoints = reordered
}

func (mc *MultiClient) dial(rpc RPC) (*ethclient.Client, error) {
	return retry.DoWithData(func() (*ethclient.Client, error) {
		ctx, cancel := context.WithTimeout(context.Background(), mc.RetryConfig.DialTimeout)
		defer cancel()

		return ethclient.DialContext(ctx, rpc.URL)
	},
		retry.Attempts(mc.RetryConfig.DialAttempts),
		retry.Delay(mc.RetryConfig.DialDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			mc.lggr.Debugw("Retrying dial", "network", mc.network, "rpc", rpc.Name, "attempt", n+1, "err", err)
		}),
	)
}

func healthCheck(client *ethclient.Client) error {
	ctx, cancel := context.WithTimeout(context.Background(), RPCDefaultHealthCheckTimeout)
	defer cancel()

	if _, err := client.BlockNumber(ctx); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}

	return nil
}

// ensureTimeout bounds ctx by timeout unless it already has a deadline.
func ensureTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return context.WithCancel(ctx)
	}

	return context.WithTimeout(ctx, timeout)
}
