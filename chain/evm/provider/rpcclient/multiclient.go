// Package rpcclient provides an EVM client that fails over between several RPC endpoints.
package rpcclient

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/google/uuid"
	chainsel "github.com/smartcontractkit/chain-selectors"

	"github.com/encrypted-lottery/lottery-deployments/pkg/logger"
)

const (
	RPCDefaultRetryAttempts = 1
	RPCDefaultRetryDelay    = 1000 * time.Millisecond
	RPCDefaultRetryTimeout  = 10 * time.Second

	RPCDefaultDialRetryAttempts = 1
	RPCDefaultDialRetryDelay    = 1000 * time.Millisecond
	RPCDefaultDialTimeout       = 10 * time.Second

	RPCDefaultHealthCheckTimeout = 2 * time.Second
)

// RetryConfig controls retries of calls on one endpoint and of dialing each endpoint.
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

// WithRetryConfig overrides the default retry configuration.
func WithRetryConfig(cfg RetryConfig) func(*MultiClient) {
	return func(mc *MultiClient) {
		mc.RetryConfig = cfg
	}
}

// MultiClient is an ethclient that retries failed calls and moves on to backup endpoints. The
// endpoint that last answered becomes the primary.
type MultiClient struct {
	*ethclient.Client
	Backups     []*ethclient.Client
	RetryConfig RetryConfig

	lggr      logger.Logger
	chainName string
	mu        sync.RWMutex
}

// NewMultiClient dials every configured RPC and keeps those passing a health check.
func NewMultiClient(lggr logger.Logger, cfg RPCConfig, opts ...func(client *MultiClient)) (*MultiClient, error) {
	if len(cfg.RPCs) == 0 {
		return nil, errors.New("no RPCs provided, need at least one")
	}

	details, ok := chainsel.ChainBySelector(cfg.ChainSelector)
	if !ok {
		return nil, fmt.Errorf("chain with selector %d not found", cfg.ChainSelector)
	}

	mc := &MultiClient{
		RetryConfig: defaultRetryConfig(),
		lggr:        lggr,
		chainName:   details.Name,
	}
	for _, opt := range opts {
		opt(mc)
	}

	clients := make([]*ethclient.Client, 0, len(cfg.RPCs))
	for i, r := range cfg.RPCs {
		client, err := mc.dialWithRetry(r, lggr)
		if err != nil {
			lggr.Warnw("Dial failed, trying the next RPC",
				"index", i, "rpc", r.Name, "chain", details.Name, "err", err,
			)

			continue
		}
		if err = mc.rpcHealthCheck(context.Background(), client); err != nil {
			lggr.Warnw("Health check failed, trying the next RPC",
				"index", i, "rpc", r.Name, "chain", details.Name, "err", err,
			)
			client.Close()

			continue
		}
		clients = append(clients, client)
	}

	if len(clients) == 0 {
		return nil, errors.New("no valid RPC clients created")
	}

	mc.Client = clients[0]
	mc.Backups = clients[1:]

	return mc, nil
}

func (mc *MultiClient) rpcHealthCheck(ctx context.Context, client *ethclient.Client) error {
	ctx, cancel := context.WithTimeout(ctx, RPCDefaultHealthCheckTimeout)
	defer cancel()

	if _, err := client.BlockNumber(ctx); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}

	return nil
}

func (mc *MultiClient) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	return mc.retryWithBackups(ctx, "SendTransaction", func(ctx context.Context, client *ethclient.Client) error {
		return client.SendTransaction(ctx, tx)
	})
}

func (mc *MultiClient) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	return retryValue(ctx, mc, "CallContract", func(ctx context.Context, client *ethclient.Client) ([]byte, error) {
		return client.CallContract(ctx, msg, blockNumber)
	})
}

func (mc *MultiClient) CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error) {
	return retryValue(ctx, mc, "CodeAt", func(ctx context.Context, client *ethclient.Client) ([]byte, error) {
		return client.CodeAt(ctx, account, blockNumber)
	})
}

func (mc *MultiClient) PendingCodeAt(ctx context.Context, account common.Address) ([]byte, error) {
	return retryValue(ctx, mc, "PendingCodeAt", func(ctx context.Context, client *ethclient.Client) ([]byte, error) {
		return client.PendingCodeAt(ctx, account)
	})
}

func (mc *MultiClient) NonceAt(ctx context.Context, account common.Address, block *big.Int) (uint64, error) {
	return retryValue(ctx, mc, "NonceAt", func(ctx context.Context, client *ethclient.Client) (uint64, error) {
		return client.NonceAt(ctx, account, block)
	})
}

func (mc *MultiClient) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	return retryValue(ctx, mc, "PendingNonceAt", func(ctx context.Context, client *ethclient.Client) (uint64, error) {
		return client.PendingNonceAt(ctx, account)
	})
}

func (mc *MultiClient) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	return retryValue(ctx, mc, "HeaderByNumber", func(ctx context.Context, client *ethclient.Client) (*types.Header, error) {
		return client.HeaderByNumber(ctx, number)
	})
}

func (mc *MultiClient) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	return retryValue(ctx, mc, "SuggestGasPrice", func(ctx context.Context, client *ethclient.Client) (*big.Int, error) {
		return client.SuggestGasPrice(ctx)
	})
}

func (mc *MultiClient) SuggestGasTipCap(ctx context.Context) (*big.Int, error) {
	return retryValue(ctx, mc, "SuggestGasTipCap", func(ctx context.Context, client *ethclient.Client) (*big.Int, error) {
		return client.SuggestGasTipCap(ctx)
	})
}

func (mc *MultiClient) EstimateGas(ctx context.Context, call ethereum.CallMsg) (uint64, error) {
	return retryValue(ctx, mc, "EstimateGas", func(ctx context.Context, client *ethclient.Client) (uint64, error) {
		return client.EstimateGas(ctx, call)
	})
}

func (mc *MultiClient) BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error) {
	return retryValue(ctx, mc, "BalanceAt", func(ctx context.Context, client *ethclient.Client) (*big.Int, error) {
		return client.BalanceAt(ctx, account, blockNumber)
	})
}

func (mc *MultiClient) FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	return retryValue(ctx, mc, "FilterLogs", func(ctx context.Context, client *ethclient.Client) ([]types.Log, error) {
		return client.FilterLogs(ctx, q)
	})
}

// TransactionReceipt is not retried: a missing receipt is the expected answer while polling.
func (mc *MultiClient) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	return mc.primary().TransactionReceipt(ctx, txHash)
}

func retryValue[T any](
	ctx context.Context, mc *MultiClient, opName string, op func(context.Context, *ethclient.Client) (T, error),
) (T, error) {
	var result T
	err := mc.retryWithBackups(ctx, opName, func(ctx context.Context, client *ethclient.Client) error {
		var err error
		result, err = op(ctx, client)

		return err
	})

	return result, err
}

// retryWithBackups runs op on each endpoint in turn, retrying transient failures. Errors the
// node answered deterministically, such as reverts and missing data, are returned at once.
func (mc *MultiClient) retryWithBackups(ctx context.Context, opName string, op func(context.Context, *ethclient.Client) error) error {
	var err error
	traceID := uuid.New()

	for rpcIndex, client := range mc.clients() {
		retryCount := 0
		err = retry.Do(func() error {
			timeoutCtx, cancel := ensureTimeout(ctx, mc.RetryConfig.Timeout)
			defer cancel()

			if oerr := op(timeoutCtx, client); oerr != nil {
				mc.lggr.Debugw("RPC call failed",
					"traceID", traceID.String(), "chain", mc.chainName, "op", opName,
					"index", rpcIndex, "err", maybeDataErr(oerr),
				)

				return oerr
			}
			mc.reorderRPCs(rpcIndex)

			return nil
		},
			retry.Context(ctx),
			retry.Attempts(mc.RetryConfig.Attempts),
			retry.Delay(mc.RetryConfig.Delay),
			retry.LastErrorOnly(true),
			retry.RetryIf(isRetryable),
			retry.OnRetry(func(uint, error) { retryCount++ }),
		)
		if err == nil {
			if retryCount > 0 {
				mc.lggr.Infow("RPC call succeeded after retries",
					"traceID", traceID.String(), "chain", mc.chainName, "op", opName,
					"index", rpcIndex, "retries", retryCount,
				)
			}

			return nil
		}
		if !isRetryable(err) || ctx.Err() != nil {
			return err
		}
		mc.lggr.Infow("RPC call failed, trying next client",
			"traceID", traceID.String(), "chain", mc.chainName, "op", opName, "index", rpcIndex,
		)
	}

	return errors.Join(err, fmt.Errorf("all backup clients failed for chain %q", mc.chainName))
}

// isRetryable reports whether err may succeed on another attempt or another node.
func isRetryable(err error) bool {
	if errors.Is(err, ethereum.NotFound) {
		return false
	}

	var rerr rpc.Error
	if errors.As(err, &rerr) && strings.Contains(rerr.Error(), "execution reverted") {
		return false
	}

	return true
}

func (mc *MultiClient) dialWithRetry(r RPC, lggr logger.Logger) (*ethclient.Client, error) {
	endpoint, err := r.ToEndpoint()
	if err != nil {
		return nil, err
	}

	traceID := uuid.New()
	var client *ethclient.Client
	retryCount := 0
	err = retry.Do(func() error {
		ctx, cancel := context.WithTimeout(context.Background(), mc.RetryConfig.DialTimeout)
		defer cancel()

		var derr error
		client, derr = ethclient.DialContext(ctx, endpoint)
		if derr != nil {
			lggr.Debugw("Dial failed", "traceID", traceID.String(), "chain", mc.chainName, "rpc", r.Name, "err", derr)

			return derr
		}

		return nil
	},
		retry.Attempts(mc.RetryConfig.DialAttempts),
		retry.Delay(mc.RetryConfig.DialDelay),
		retry.OnRetry(func(uint, error) { retryCount++ }),
	)
	if err != nil {
		return nil, errors.Join(err, fmt.Errorf("failed to dial RPC %s for chain %s after retries", r.Name, mc.chainName))
	}
	if retryCount > 0 {
		lggr.Infow("Dialed RPC after retries", "traceID", traceID.String(), "rpc", r.Name, "retries", retryCount)
	}

	return client, nil
}

// ensureTimeout keeps the parent's deadline when it has one and applies timeout otherwise.
func ensureTimeout(parent context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, hasDeadline := parent.Deadline(); hasDeadline {
		return context.WithCancel(parent)
	}

	return context.WithTimeout(parent, timeout)
}

// reorderRPCs promotes the backup at rpcIndex to primary. Backups that were tried before it go to
// the end of the list, followed by the old primary.
func (mc *MultiClient) reorderRPCs(rpcIndex int) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	if rpcIndex < 1 || len(mc.Backups) == 0 {
		return
	}

	idx := rpcIndex - 1
	promoted := mc.Backups[idx]

	reordered := make([]*ethclient.Client, 0, len(mc.Backups))
	reordered = append(reordered, mc.Backups[idx+1:]...)
	reordered = append(reordered, mc.Backups[:idx]...)
	reordered = append(reordered, mc.Client)

	mc.Backups = reordered
	mc.Client = promoted
}

func (mc *MultiClient) primary() *ethclient.Client {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	return mc.Client
}

func (mc *MultiClient) clients() []*ethclient.Client {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	return append([]*ethclient.Client{mc.Client}, mc.Backups...)
}

func maybeDataErr(err error) error {
	var d rpc.DataError
	if errors.As(err, &d) {
		return fmt.Errorf("%s: %v", d.Error(), d.ErrorData())
	}

	return err
}
