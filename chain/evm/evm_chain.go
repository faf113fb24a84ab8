package evm

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	chainsel "github.com/smartcontractkit/chain-selectors"
)

// ConfirmFunc is a function that takes a transaction, waits for the transaction to be confirmed,
// and returns the receipt of the mined transaction.
type ConfirmFunc func(tx *types.Transaction) (*types.Receipt, error)

// OnchainClient is an EVM chain client.
// For EVM specifically we can use existing geth interface to abstract chain clients.
type OnchainClient interface {
	bind.ContractBackend
	bind.DeployBackend

	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	NonceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (uint64, error)
}

// Chain represents the EVM chain the lottery is deployed on.
type Chain struct {
	Selector uint64

	Client OnchainClient
	// DeployerKey signs deployment transactions. It may be backed by a raw key, a mnemonic or KMS.
	DeployerKey *bind.TransactOpts
	Confirm     ConfirmFunc
	// Users are a set of keys that can be used to interact with the chain as players.
	// These are distinct from the deployer key.
	Users []*bind.TransactOpts

	// SignHash allows signing of arbitrary hashes using the deployer key's signing mechanism.
	SignHash func([]byte) ([]byte, error)
}

// ChainSelector returns the chain selector of the chain
func (c Chain) ChainSelector() uint64 {
	return c.Selector
}

// ChainID resolves the EVM chain id from the selector.
func (c Chain) ChainID() (*big.Int, error) {
	idStr, err := chainsel.GetChainIDFromSelector(c.Selector)
	if err != nil {
		return nil, fmt.Errorf("failed to get chain ID from selector %d: %w", c.Selector, err)
	}

	id, ok := new(big.Int).SetString(idStr, 10)
	if !ok {
		return nil, fmt.Errorf("failed to convert chain ID %s to big.Int", idStr)
	}

	return id, nil
}

// Name returns the name of the chain
func (c Chain) Name() string {
	details, ok := chainsel.ChainBySelector(c.Selector)
	if !ok || details.Name == "" {
		return fmt.Sprintf("%d", c.Selector)
	}

	return details.Name
}

// String returns chain name and selector "<name> (<selector>)"
func (c Chain) String() string {
	return fmt.Sprintf("%s (%d)", c.Name(), c.Selector)
}

// DeployerWallet returns the deployer key as a Wallet able to sign typed data.
func (c Chain) DeployerWallet() *Wallet {
	if c.DeployerKey == nil {
		return nil
	}

	return &Wallet{Opts: c.DeployerKey, SignHash: c.SignHash}
}
