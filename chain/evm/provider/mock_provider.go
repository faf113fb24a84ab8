package provider

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/params"
	chainsel "github.com/smartcontractkit/chain-selectors"

	"github.com/encrypted-lottery/lottery-deployments/chain/evm"
	"github.com/encrypted-lottery/lottery-deployments/engine/test/fhevm"
	"github.com/encrypted-lottery/lottery-deployments/pkg/logger"
)

var (
	// MockChainSelector is the selector of the local dev chain with chain id 1337.
	MockChainSelector = chainsel.GETH_TESTNET.Selector

	// prefundAmountWei is the balance every generated account starts with: 1,000,000 ether.
	prefundAmountWei = new(big.Int).Mul(big.NewInt(1_000_000), big.NewInt(params.Ether))
)

// MockChainProviderConfig holds the configuration to initialize the MockChainProvider.
type MockChainProviderConfig struct {
	// Optional: the deployer signer. A random key is used when nil.
	DeployerSignerGen SignerGenerator
	// Optional: number of additional prefunded player accounts.
	NumAdditionalAccounts uint
	// Optional: clock of the mock chain, defaults to time.Now.
	Now func() time.Time
	// Optional: defaults to a no-op logger.
	Logger logger.Logger
}

// MockChainProvider provides a chain backed by the in-process fhevm mock, with its decryption
// gateway.
type MockChainProvider struct {
	selector uint64
	config   MockChainProviderConfig

	backend *fhevm.Backend
	chain   *evm.Chain
}

// NewMockChainProvider creates a MockChainProvider. The selector must resolve to an EVM chain id;
// use MockChainSelector when in doubt.
func NewMockChainProvider(selector uint64, config MockChainProviderConfig) *MockChainProvider {
	return &MockChainProvider{selector: selector, config: config}
}

// Initialize creates the mock chain and prefunds the deployer and the additional accounts.
func (p *MockChainProvider) Initialize(ctx context.Context) (evm.Chain, error) {
	if p.chain != nil {
		return *p.chain, nil
	}

	lggr := p.config.Logger
	if lggr == nil {
		lggr = logger.Nop()
	}

	chainID, err := evm.Chain{Selector: p.selector}.ChainID()
	if err != nil {
		return evm.Chain{}, err
	}

	deployerGen := p.config.DeployerSignerGen
	if deployerGen == nil {
		deployerGen = TransactorRandom()
	}
	deployerKey, err := deployerGen.Generate(chainID)
	if err != nil {
		return evm.Chain{}, fmt.Errorf("failed to generate deployer key: %w", err)
	}

	backend := fhevm.NewBackend(fhevm.Config{
		ChainID: chainID,
		Now:     p.config.Now,
		Logger:  lggr,
	})
	backend.Fund(deployerKey.From, prefundAmountWei)

	users := make([]*bind.TransactOpts, 0, p.config.NumAdditionalAccounts)
	for range p.config.NumAdditionalAccounts {
		u, gerr := TransactorRandom().Generate(chainID)
		if gerr != nil {
			return evm.Chain{}, fmt.Errorf("failed to generate user transactor: %w", gerr)
		}
		backend.Fund(u.From, prefundAmountWei)
		users = append(users, u)
	}

	confirmFunc, err := ConfirmFuncGeth(time.Minute, WithTickInterval(5*time.Millisecond)).
		Generate(ctx, p.selector, backend, deployerKey.From)
	if err != nil {
		return evm.Chain{}, fmt.Errorf("failed to generate confirm function: %w", err)
	}

	p.backend = backend
	p.chain = &evm.Chain{
		Selector:    p.selector,
		Client:      backend,
		DeployerKey: deployerKey,
		Users:       users,
		Confirm:     confirmFunc,
		SignHash:    deployerGen.SignHash,
	}

	return *p.chain, nil
}

// Backend returns the mock chain. It is nil before Initialize.
func (p *MockChainProvider) Backend() *fhevm.Backend {
	return p.backend
}

// Name returns the name of the MockChainProvider.
func (*MockChainProvider) Name() string {
	return "Mock fhEVM Chain Provider"
}

// ChainSelector returns the chain selector of the mock chain.
func (p *MockChainProvider) ChainSelector() uint64 {
	return p.selector
}
