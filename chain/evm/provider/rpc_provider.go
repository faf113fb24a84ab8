package provider

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"

	"github.com/encrypted-lottery/lottery-deployments/chain/evm"
	"github.com/encrypted-lottery/lottery-deployments/chain/evm/provider/rpcclient"
	"github.com/encrypted-lottery/lottery-deployments/pkg/logger"
)

// ChainProvider initializes the EVM chain the lottery runs on.
type ChainProvider interface {
	Initialize(ctx context.Context) (evm.Chain, error)
	Name() string
	ChainSelector() uint64
}

var (
	_ ChainProvider = (*RPCChainProvider)(nil)
	_ ChainProvider = (*MockChainProvider)(nil)
)

// RPCChainProviderConfig holds the configuration to initialize the RPCChainProvider.
type RPCChainProviderConfig struct {
	// Required: A generator for the deployer key. The same key signs draws and decryption
	// requests when the CLI acts as the player.
	DeployerSignerGen SignerGenerator
	// Required: At least one RPC must be provided to connect to the EVM node.
	RPCs []rpcclient.RPC
	// Required: ConfirmFunctor generates the confirmation function for transactions. If in
	// doubt, use ConfirmFuncGeth.
	ConfirmFunctor ConfirmFunctor
	// Optional: ClientOpts configure the MultiClient, e.g. rpcclient.WithRetryConfig.
	ClientOpts []func(client *rpcclient.MultiClient)
	// Optional: generators for additional player accounts.
	UsersSignerGen []SignerGenerator
	// Optional: defaults to a production logger.
	Logger logger.Logger
}

func (c RPCChainProviderConfig) validate() error {
	var errs []error
	if c.DeployerSignerGen == nil {
		errs = append(errs, errors.New("deployer signer generator is required"))
	}
	if c.ConfirmFunctor == nil {
		errs = append(errs, errors.New("confirm functor is required"))
	}
	if len(c.RPCs) == 0 {
		errs = append(errs, errors.New("at least one RPC is required"))
	}

	return errors.Join(errs...)
}

// RPCChainProvider provides a chain connected to EVM nodes over RPC.
type RPCChainProvider struct {
	selector uint64
	config   RPCChainProviderConfig

	chain *evm.Chain
}

// NewRPCChainProvider creates a new RPCChainProvider with the given selector and configuration.
func NewRPCChainProvider(selector uint64, config RPCChainProviderConfig) *RPCChainProvider {
	return &RPCChainProvider{
		selector: selector,
		config:   config,
	}
}

// Initialize dials the RPCs and generates the signers. Subsequent calls return the same chain.
func (p *RPCChainProvider) Initialize(ctx context.Context) (evm.Chain, error) {
	if p.chain != nil {
		return *p.chain, nil
	}

	if p.config.Logger == nil {
		lggr, err := logger.New()
		if err != nil {
			return evm.Chain{}, fmt.Errorf("failed to create default logger: %w", err)
		}
		p.config.Logger = lggr
	}

	if err := p.config.validate(); err != nil {
		return evm.Chain{}, fmt.Errorf("failed to validate provider config: %w", err)
	}

	chainID, err := evm.Chain{Selector: p.selector}.ChainID()
	if err != nil {
		return evm.Chain{}, err
	}

	deployerKey, err := p.config.DeployerSignerGen.Generate(chainID)
	if err != nil {
		return evm.Chain{}, fmt.Errorf("failed to generate deployer key: %w", err)
	}

	users := make([]*bind.TransactOpts, 0, len(p.config.UsersSignerGen))
	for _, g := range p.config.UsersSignerGen {
		u, gerr := g.Generate(chainID)
		if gerr != nil {
			return evm.Chain{}, fmt.Errorf("failed to generate user transactor: %w", gerr)
		}
		users = append(users, u)
	}

	client, err := rpcclient.NewMultiClient(p.config.Logger, rpcclient.RPCConfig{
		ChainSelector: p.selector,
		RPCs:          p.config.RPCs,
	}, p.config.ClientOpts...)
	if err != nil {
		return evm.Chain{}, fmt.Errorf("failed to create multi-client: %w", err)
	}

	confirmFunc, err := p.config.ConfirmFunctor.Generate(ctx, p.selector, client, deployerKey.From)
	if err != nil {
		return evm.Chain{}, fmt.Errorf("failed to generate confirm function: %w", err)
	}

	p.chain = &evm.Chain{
		Selector:    p.selector,
		Client:      client,
		DeployerKey: deployerKey,
		Users:       users,
		Confirm:     confirmFunc,
		SignHash:    p.config.DeployerSignerGen.SignHash,
	}

	return *p.chain, nil
}

// Name returns the name of the RPCChainProvider.
func (*RPCChainProvider) Name() string {
	return "EVM RPC Chain Provider"
}

// ChainSelector returns the chain selector of the chain managed by this provider.
func (p *RPCChainProvider) ChainSelector() uint64 {
	return p.selector
}
