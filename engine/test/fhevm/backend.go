// Package fhevm is an in-process mock of an encrypted-computation EVM chain. It executes the
// confidential token and TokenLottery contract semantics in Go, keeps the coprocessor plaintexts
// and ACL, and serves user decryption through a Gateway.
//
// The Backend satisfies the go-ethereum binding backends, so the same contract bindings and
// deployment code run against it and against a real RPC node.
package fhevm

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"slices"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/params"

	"github.com/encrypted-lottery/lottery-deployments/chain/evm"
	"github.com/encrypted-lottery/lottery-deployments/pkg/logger"
)

const (
	// blockGasLimit is the gas limit of every mined block.
	blockGasLimit = 30_000_000
	// estimatedGas is returned by EstimateGas for calls that do not revert.
	estimatedGas = 500_000
)

var (
	// DefaultChainID is the chain id of a Backend created without one.
	DefaultChainID = big.NewInt(1337)

	baseFee = big.NewInt(params.GWei)
	tipCap  = big.NewInt(params.GWei)
)

var (
	ErrSubscriptionsUnsupported = errors.New("log subscriptions are not supported by the fhevm mock")
	ErrInvalidChainID           = errors.New("invalid chain id for signer")
)

// Config configures a Backend.
type Config struct {
	// ChainID defaults to DefaultChainID.
	ChainID *big.Int
	// Alloc prefunds accounts.
	Alloc map[common.Address]*big.Int
	// Now defaults to time.Now. It drives block timestamps and gateway window checks.
	Now func() time.Time
	// Logger defaults to a no-op logger.
	Logger logger.Logger
}

type block struct {
	header   *types.Header
	receipts []*types.Receipt
}

// Backend is the mock chain. Every accepted transaction is mined in its own block.
type Backend struct {
	chainID *big.Int
	signer  types.Signer
	now     func() time.Time
	lggr    logger.Logger

	mu       sync.RWMutex
	state    *world
	blocks   []*block
	receipts map[common.Hash]*types.Receipt
	txs      map[common.Hash]*types.Transaction

	gateway *Gateway
}

var _ evm.OnchainClient = (*Backend)(nil)

// NewBackend creates a Backend with a genesis block.
func NewBackend(cfg Config) *Backend {
	chainID := cfg.ChainID
	if chainID == nil {
		chainID = DefaultChainID
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	lggr := cfg.Logger
	if lggr == nil {
		lggr = logger.Nop()
	}

	b := &Backend{
		chainID:  new(big.Int).Set(chainID),
		signer:   types.LatestSignerForChainID(chainID),
		now:      now,
		lggr:     lggr.Named("fhevm"),
		state:    newWorld(chainID),
		receipts: make(map[common.Hash]*types.Receipt),
		txs:      make(map[common.Hash]*types.Transaction),
	}
	for addr, amount := range cfg.Alloc {
		b.state.balances[addr] = new(big.Int).Set(amount)
	}
	b.blocks = append(b.blocks, &block{header: b.newHeader(common.Hash{}, 0)})
	b.gateway = newGateway(b)

	return b
}

// ChainID returns the chain id transactions must be signed for.
func (b *Backend) ChainID() *big.Int { return new(big.Int).Set(b.chainID) }

// Gateway returns the user decryption gateway attached to this chain.
func (b *Backend) Gateway() *Gateway { return b.gateway }

// Fund credits amount wei to addr.
func (b *Backend) Fund(addr common.Address, amount *big.Int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.state.balances[addr] = new(big.Int).Add(b.state.balance(addr), amount)
}

func (b *Backend) newHeader(parent common.Hash, number uint64) *types.Header {
	return &types.Header{
		ParentHash: parent,
		Number:     new(big.Int).SetUint64(number),
		Time:       uint64(b.now().Unix()),
		GasLimit:   blockGasLimit,
		Difficulty: new(big.Int),
		BaseFee:    new(big.Int).Set(baseFee),
	}
}

func (b *Backend) head() *types.Header {
	return b.blocks[len(b.blocks)-1].header
}

// nextBlock returns the context of the block the next transaction will be mined in.
func (b *Backend) nextBlock() blockContext {
	head := b.head()

	return blockContext{
		number:   head.Number.Uint64() + 1,
		time:     uint64(b.now().Unix()),
		prevHash: head.Hash(),
	}
}

// CodeAt returns the code marker of a deployed contract, or nil for accounts without code.
func (b *Backend) CodeAt(_ context.Context, contract common.Address, _ *big.Int) ([]byte, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if c, ok := b.state.contracts[contract]; ok {
		return codeMarker(c.kind()), nil
	}

	return nil, nil
}

// PendingCodeAt is CodeAt against the pending state, which equals the latest state.
func (b *Backend) PendingCodeAt(ctx context.Context, contract common.Address) ([]byte, error) {
	return b.CodeAt(ctx, contract, nil)
}

// CallContract executes a read-only call against a copy of the latest state.
func (b *Backend) CallContract(_ context.Context, call ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	b.mu.RLock()
	env := &execEnv{w: b.state.clone(), block: b.nextBlock(), origin: call.From}
	b.mu.RUnlock()

	if call.To == nil {
		_, _, err := construct(call.Data)

		return nil, asRevert(err)
	}

	out, err := env.dispatch(call.From, *call.To, call.Data)

	return out, asRevert(err)
}

// PendingCallContract is CallContract against the pending state.
func (b *Backend) PendingCallContract(ctx context.Context, call ethereum.CallMsg) ([]byte, error) {
	return b.CallContract(ctx, call, nil)
}

// HeaderByNumber returns the header of the given block, or the latest one for a nil number.
func (b *Backend) HeaderByNumber(_ context.Context, number *big.Int) (*types.Header, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if number == nil {
		return types.CopyHeader(b.head()), nil
	}
	if !number.IsUint64() || number.Uint64() >= uint64(len(b.blocks)) {
		return nil, ethereum.NotFound
	}

	return types.CopyHeader(b.blocks[number.Uint64()].header), nil
}

// PendingNonceAt returns the next nonce of account.
func (b *Backend) PendingNonceAt(_ context.Context, account common.Address) (uint64, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return b.state.nonces[account], nil
}

// NonceAt returns the nonce of account at the latest block.
func (b *Backend) NonceAt(ctx context.Context, account common.Address, _ *big.Int) (uint64, error) {
	return b.PendingNonceAt(ctx, account)
}

// BalanceAt returns the balance of account at the latest block.
func (b *Backend) BalanceAt(_ context.Context, account common.Address, _ *big.Int) (*big.Int, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return b.state.balance(account), nil
}

// SuggestGasPrice returns the legacy gas price.
func (b *Backend) SuggestGasPrice(context.Context) (*big.Int, error) {
	return new(big.Int).Add(baseFee, tipCap), nil
}

// SuggestGasTipCap returns the priority fee.
func (b *Backend) SuggestGasTipCap(context.Context) (*big.Int, error) {
	return new(big.Int).Set(tipCap), nil
}

// EstimateGas dry-runs call and fails with the revert reason if it reverts.
func (b *Backend) EstimateGas(ctx context.Context, call ethereum.CallMsg) (uint64, error) {
	if _, err := b.CallContract(ctx, call, nil); err != nil {
		return 0, err
	}

	return estimatedGas, nil
}

// SendTransaction validates tx, executes it against a copy of the state and mines it. Reverted
// transactions are mined with a failed receipt and leave the contract state untouched.
func (b *Backend) SendTransaction(_ context.Context, tx *types.Transaction) error {
	if tx.ChainId() != nil && tx.ChainId().Sign() != 0 && tx.ChainId().Cmp(b.chainID) != 0 {
		return fmt.Errorf("%w: have %s want %s", ErrInvalidChainID, tx.ChainId(), b.chainID)
	}

	from, err := types.Sender(b.signer, tx)
	if err != nil {
		return fmt.Errorf("invalid sender: %w", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.txs[tx.Hash()]; ok {
		return fmt.Errorf("already known: %s", tx.Hash())
	}

	nonce := b.state.nonces[from]
	switch {
	case tx.Nonce() < nonce:
		return fmt.Errorf("nonce too low: address %s, tx: %d state: %d", from, tx.Nonce(), nonce)
	case tx.Nonce() > nonce:
		return fmt.Errorf("nonce too high: address %s, tx: %d state: %d", from, tx.Nonce(), nonce)
	}
	if tx.Gas() > blockGasLimit {
		return fmt.Errorf("exceeds block gas limit: %d > %d", tx.Gas(), blockGasLimit)
	}

	blockCtx := b.nextBlock()
	env := &execEnv{w: b.state.clone(), block: blockCtx, origin: from}

	var created common.Address
	execErr := func() error {
		if tx.To() == nil {
			created = crypto.CreateAddress(from, tx.Nonce())
			c, _, cerr := construct(tx.Data())
			if cerr != nil {
				return cerr
			}
			env.w.contracts[created] = c

			return nil
		}
		_, derr := env.dispatch(from, *tx.To(), tx.Data())

		return derr
	}()

	status := types.ReceiptStatusSuccessful
	logs := env.logs
	if execErr != nil {
		status = types.ReceiptStatusFailed
		logs = nil
		b.lggr.Debugw("Transaction reverted", "tx", tx.Hash(), "from", from, "reason", asRevert(execErr))
	} else {
		b.state = env.w
	}
	b.state.nonces[from] = nonce + 1

	header := b.newHeader(b.head().Hash(), blockCtx.number)
	header.Time = blockCtx.time
	header.GasUsed = tx.Gas()
	blockHash := header.Hash()

	for i, lg := range logs {
		lg.TxHash = tx.Hash()
		lg.TxIndex = 0
		lg.BlockHash = blockHash
		lg.BlockNumber = blockCtx.number
		lg.Index = uint(i)
	}

	receipt := &types.Receipt{
		Type:              tx.Type(),
		Status:            status,
		CumulativeGasUsed: tx.Gas(),
		Logs:              logs,
		TxHash:            tx.Hash(),
		GasUsed:           tx.Gas(),
		EffectiveGasPrice: effectiveGasPrice(tx),
		BlockHash:         blockHash,
		BlockNumber:       new(big.Int).SetUint64(blockCtx.number),
		TransactionIndex:  0,
	}
	if tx.To() == nil && status == types.ReceiptStatusSuccessful {
		receipt.ContractAddress = created
	}
	if receipt.Logs == nil {
		receipt.Logs = []*types.Log{}
	}

	b.blocks = append(b.blocks, &block{header: header, receipts: []*types.Receipt{receipt}})
	b.receipts[tx.Hash()] = receipt
	b.txs[tx.Hash()] = tx

	return nil
}

func effectiveGasPrice(tx *types.Transaction) *big.Int {
	if tx.Type() == types.LegacyTxType || tx.Type() == types.AccessListTxType {
		return new(big.Int).Set(tx.GasPrice())
	}

	price := new(big.Int).Add(baseFee, tx.GasTipCap())
	if price.Cmp(tx.GasFeeCap()) > 0 {
		return new(big.Int).Set(tx.GasFeeCap())
	}

	return price
}

// TransactionReceipt returns the receipt of a mined transaction or ethereum.NotFound.
func (b *Backend) TransactionReceipt(_ context.Context, txHash common.Hash) (*types.Receipt, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	r, ok := b.receipts[txHash]
	if !ok {
		return nil, ethereum.NotFound
	}

	return r, nil
}

// TransactionByHash returns a mined transaction. Mined transactions are never pending.
func (b *Backend) TransactionByHash(_ context.Context, txHash common.Hash) (*types.Transaction, bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	tx, ok := b.txs[txHash]
	if !ok {
		return nil, false, ethereum.NotFound
	}

	return tx, false, nil
}

// BlockNumber returns the latest block number.
func (b *Backend) BlockNumber(context.Context) (uint64, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return b.head().Number.Uint64(), nil
}

// FilterLogs returns the logs of successful transactions matching q.
func (b *Backend) FilterLogs(_ context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	from, to := uint64(0), b.head().Number.Uint64()
	if q.FromBlock != nil {
		from = q.FromBlock.Uint64()
	}
	if q.ToBlock != nil && q.ToBlock.Sign() >= 0 && q.ToBlock.Uint64() < to {
		to = q.ToBlock.Uint64()
	}

	var out []types.Log
	for n := from; n <= to && n < uint64(len(b.blocks)); n++ {
		blk := b.blocks[n]
		if q.BlockHash != nil && blk.header.Hash() != *q.BlockHash {
			continue
		}
		for _, r := range blk.receipts {
			for _, lg := range r.Logs {
				if matchLog(lg, q) {
					out = append(out, *lg)
				}
			}
		}
	}

	return out, nil
}

// SubscribeFilterLogs is not supported.
func (b *Backend) SubscribeFilterLogs(
	context.Context, ethereum.FilterQuery, chan<- types.Log,
) (ethereum.Subscription, error) {
	return nil, ErrSubscriptionsUnsupported
}

func matchLog(lg *types.Log, q ethereum.FilterQuery) bool {
	if len(q.Addresses) > 0 && !slices.Contains(q.Addresses, lg.Address) {
		return false
	}
	if len(q.Topics) > len(lg.Topics) {
		return false
	}
	for i, alternatives := range q.Topics {
		if len(alternatives) == 0 {
			continue
		}
		if !slices.Contains(alternatives, lg.Topics[i]) {
			return false
		}
	}

	return true
}

// asRevert normalizes execution failures into a RevertError.
func asRevert(err error) error {
	if err == nil {
		return nil
	}

	return &RevertError{Reason: revertReason(err)}
}
