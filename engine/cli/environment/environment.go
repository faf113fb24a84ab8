// Package environment turns a lottery CLI configuration into a connected environment: the chain,
// the signing wallet, the lottery and token addresses, the decryption client and the stores.
package environment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/encrypted-lottery/lottery-deployments/chain/evm"
	"github.com/encrypted-lottery/lottery-deployments/chain/evm/provider"
	"github.com/encrypted-lottery/lottery-deployments/chain/evm/provider/rpcclient"
	"github.com/encrypted-lottery/lottery-deployments/contracts"
	"github.com/encrypted-lottery/lottery-deployments/dapp"
	"github.com/encrypted-lottery/lottery-deployments/datastore"
	"github.com/encrypted-lottery/lottery-deployments/deployment"
	"github.com/encrypted-lottery/lottery-deployments/drawlog"
	"github.com/encrypted-lottery/lottery-deployments/engine/cli/config"
	"github.com/encrypted-lottery/lottery-deployments/engine/test/fhevm"
	"github.com/encrypted-lottery/lottery-deployments/fhe"
	"github.com/encrypted-lottery/lottery-deployments/operations"
	"github.com/encrypted-lottery/lottery-deployments/pkg/logger"
)

// ErrLotteryNotFound is returned by Environment.RequireLottery when no lottery address is known.
var ErrLotteryNotFound = errors.New("TokenLottery address is not configured and not recorded in the datastore")

// confirmTimeout bounds the wait for a transaction on RPC networks.
const confirmTimeout = 2 * time.Minute

// Environment is everything a lottery command needs.
type Environment struct {
	Name    string
	Network config.NetworkType
	Logger  logger.Logger

	Chain  evm.Chain
	Wallet *evm.Wallet

	// Lottery is the zero address when unknown.
	Lottery common.Address
	Tokens  []dapp.TokenConfig

	// Decrypter is nil when the network has no decryption gateway.
	Decrypter dapp.DecryptClient
	// DecryptDurationDays is the validity window of decrypt authorizations.
	DecryptDurationDays int64

	Artifacts contracts.ArtifactSource
	DataStore datastore.MutableAddressRefStore
	Reporter  operations.Reporter
	// DrawLog is nil unless a DSN is configured.
	DrawLog drawlog.Store
	// Deployment is set on simulated networks, which are deployed while loading.
	Deployment *deployment.DeployTokensAndLotteryOutput

	closers []func() error
}

// LoadOptions configure Load.
type LoadOptions struct {
	reporter operations.Reporter
	players  uint
	now      func() time.Time
}

// LoadOption is a function that modifies LoadOptions.
type LoadOption func(*LoadOptions)

// WithReporter sets the reporter deployments are recorded with.
func WithReporter(reporter operations.Reporter) LoadOption {
	return func(o *LoadOptions) {
		o.reporter = reporter
	}
}

// WithPlayers prefunds n additional player accounts on simulated networks.
func WithPlayers(n uint) LoadOption {
	return func(o *LoadOptions) {
		o.players = n
	}
}

// WithClock sets the clock of simulated networks.
func WithClock(now func() time.Time) LoadOption {
	return func(o *LoadOptions) {
		o.now = now
	}
}

// Load validates cfg and connects the environment it describes. Simulated networks start an
// in-process chain with the tokens and the lottery already deployed.
func Load(ctx context.Context, cfg *config.Config, lggr logger.Logger, opts ...LoadOption) (*Environment, error) {
	options := &LoadOptions{reporter: operations.NewMemoryReporter()}
	for _, opt := range opts {
		opt(options)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	env := &Environment{
		Name:                string(cfg.Network.Type),
		Network:             cfg.Network.Type,
		Logger:              lggr,
		DecryptDurationDays: cfg.FHE.DecryptDurationDays,
		Reporter:            options.reporter,
	}

	var err error
	switch cfg.Network.Type {
	case config.NetworkSimulated:
		err = env.loadSimulated(ctx, cfg, options)
	case config.NetworkRPC:
		err = env.loadRPC(ctx, cfg)
	default:
		err = fmt.Errorf("unknown network %q", cfg.Network.Type)
	}
	if err != nil {
		return nil, errors.Join(err, env.Close())
	}

	if cfg.DrawLog.DSN != "" {
		store, derr := drawlog.OpenPostgres(ctx, cfg.DrawLog.DSN, lggr)
		if derr != nil {
			return nil, errors.Join(fmt.Errorf("failed to open draw log: %w", derr), env.Close())
		}
		env.DrawLog = store
		env.closers = append(env.closers, store.Close)
	}

	lggr.Infow("Environment loaded",
		"network", env.Network, "chain", env.Chain.String(), "wallet", env.Wallet.Address().Hex(),
		"lottery", env.Lottery.Hex(), "tokens", len(env.Tokens))

	return env, nil
}

func (e *Environment) loadSimulated(ctx context.Context, cfg *config.Config, options *LoadOptions) error {
	gen, err := signerGenerator(cfg.Wallet)
	if err != nil {
		return err
	}

	p := provider.NewMockChainProvider(provider.MockChainSelector, provider.MockChainProviderConfig{
		DeployerSignerGen:     gen,
		NumAdditionalAccounts: options.players,
		Now:                   options.now,
		Logger:                e.Logger,
	})
	chain, err := p.Initialize(ctx)
	if err != nil {
		return fmt.Errorf("failed to start simulated chain: %w", err)
	}
	e.Chain = chain
	e.Wallet = chain.DeployerWallet()
	e.Artifacts = fhevm.Artifacts()

	// Records of a previous run point at contracts that do not exist on a fresh chain.
	e.DataStore = datastore.NewMemoryAddressRefStore()

	out, err := deployment.Deploy(e.DeploymentEnvironment(func() context.Context { return ctx }), deployment.DefaultDeployInput())
	if err != nil {
		return fmt.Errorf("failed to deploy to simulated chain: %w", err)
	}
	e.Deployment = &out
	e.Lottery = out.Lottery.Address
	e.Tokens = tokensFromDeployment(out, cfg.Lottery.Tokens)

	client := fhe.NewClient(p.Backend().Gateway(), e.Logger)
	if err = client.Init(ctx); err != nil {
		return fmt.Errorf("failed to initialize encryption client: %w", err)
	}
	e.Decrypter = client

	return nil
}

func (e *Environment) loadRPC(ctx context.Context, cfg *config.Config) error {
	gen, err := signerGenerator(cfg.Wallet)
	if err != nil {
		return err
	}

	rpcs := make([]rpcclient.RPC, 0, len(cfg.Network.RPCs))
	for _, r := range cfg.Network.RPCs {
		rpc, rerr := r.ToRPC()
		if rerr != nil {
			return rerr
		}
		rpcs = append(rpcs, rpc)
	}

	chain, err := provider.NewRPCChainProvider(cfg.Network.ChainSelector, provider.RPCChainProviderConfig{
		DeployerSignerGen: gen,
		RPCs:              rpcs,
		ConfirmFunctor:    provider.ConfirmFuncGeth(confirmTimeout),
		Logger:            e.Logger,
	}).Initialize(ctx)
	if err != nil {
		return fmt.Errorf("failed to connect to chain %d: %w", cfg.Network.ChainSelector, err)
	}
	e.Chain = chain
	e.Wallet = chain.DeployerWallet()
	e.Artifacts = contracts.HardhatArtifacts{Root: cfg.Deploy.ArtifactsRoot}

	if cfg.Datastore.Path != "" {
		store, serr := datastore.OpenFileAddressRefStore(cfg.Datastore.Path)
		if serr != nil {
			return serr
		}
		e.DataStore = store
	} else {
		e.DataStore = datastore.NewMemoryAddressRefStore()
	}

	e.Lottery = cfg.LotteryAddress()
	if e.Lottery == (common.Address{}) {
		e.Lottery = recordedAddress(e.DataStore, chain.Selector, contracts.TokenLotteryName)
	}

	e.Tokens = configuredTokens(cfg.Lottery.Tokens)
	if len(e.Tokens) == 0 {
		e.Tokens = recordedTokens(e.DataStore, chain.Selector)
	}

	return nil
}

// signerGenerator picks the private key, the mnemonic or the KMS key, in that order. Nil means
// a random key.
func signerGenerator(w config.WalletConfig) (provider.SignerGenerator, error) {
	switch {
	case w.PrivateKey != "":
		return provider.TransactorFromRaw(w.PrivateKey), nil
	case w.Mnemonic != "":
		return provider.TransactorFromMnemonic(w.Mnemonic, w.AccountIndex), nil
	case w.KMS.KeyID != "":
		gen, err := provider.TransactorFromKMS(w.KMS.KeyID, w.KMS.KeyRegion, w.KMS.AWSProfile)
		if err != nil {
			return nil, fmt.Errorf("failed to create KMS signer: %w", err)
		}

		return gen, nil
	default:
		return nil, nil
	}
}

// tokensFromDeployment lists the deployed tokens. Titles set in the config win over the
// defaults.
func tokensFromDeployment(out deployment.DeployTokensAndLotteryOutput, configured []config.TokenConfig) []dapp.TokenConfig {
	titles := make(map[string]string, len(configured))
	for _, tc := range configured {
		titles[tc.Key] = tc.Title
	}

	tokens := make([]dapp.TokenConfig, 0, len(out.Tokens))
	for _, d := range out.Tokens {
		key := contracts.TokenKey(d.ContractName)
		title, ok := titles[key]
		if !ok {
			title = contracts.TokenTitles[d.ContractName]
		}
		tokens = append(tokens, dapp.TokenConfig{Key: key, Title: title, Address: d.Address})
	}

	return tokens
}

func configuredTokens(configured []config.TokenConfig) []dapp.TokenConfig {
	tokens := make([]dapp.TokenConfig, 0, len(configured))
	for _, tc := range configured {
		tokens = append(tokens, dapp.TokenConfig{
			Key:     tc.Key,
			Title:   tc.Title,
			Address: common.HexToAddress(tc.Address),
		})
	}

	return tokens
}

func recordedTokens(ds datastore.AddressRefStore, selector uint64) []dapp.TokenConfig {
	var tokens []dapp.TokenConfig
	for _, name := range contracts.TokenNames {
		addr := recordedAddress(ds, selector, name)
		if addr == (common.Address{}) {
			continue
		}
		tokens = append(tokens, dapp.TokenConfig{
			Key:     contracts.TokenKey(name),
			Title:   contracts.TokenTitles[name],
			Address: addr,
		})
	}

	return tokens
}

func recordedAddress(ds datastore.AddressRefStore, selector uint64, contractName string) common.Address {
	refs := ds.Filter(
		datastore.AddressRefByChainSelector(selector),
		datastore.AddressRefByType(datastore.ContractType(contractName)),
		datastore.AddressRefByVersion(deployment.ContractVersion),
	)
	if len(refs) == 0 {
		return common.Address{}
	}

	return refs[0].EVMAddress()
}

// RequireLottery returns the lottery address, or ErrLotteryNotFound.
func (e *Environment) RequireLottery() (common.Address, error) {
	if e.Lottery == (common.Address{}) {
		return common.Address{}, ErrLotteryNotFound
	}

	return e.Lottery, nil
}

// DeploymentEnvironment returns the deployment environment of the chain.
func (e *Environment) DeploymentEnvironment(getContext func() context.Context) *deployment.Environment {
	return deployment.NewEnvironment(e.Name, getContext, e.Logger, e.Chain, e.Artifacts, e.DataStore, e.Reporter)
}

// DappConfig returns the orchestrator configuration of the environment.
func (e *Environment) DappConfig(notifier dapp.Notifier, autoRefresh bool) dapp.Config {
	return dapp.Config{
		Client:              e.Chain.Client,
		Confirm:             e.Chain.Confirm,
		ChainSelector:       e.Chain.Selector,
		Lottery:             e.Lottery,
		Tokens:              e.Tokens,
		Decrypter:           e.Decrypter,
		DecryptDurationDays: e.DecryptDurationDays,
		DrawLog:             e.DrawLog,
		AutoRefresh:         autoRefresh,
		Notifier:            notifier,
		Logger:              e.Logger,
	}
}

// Close releases the stores opened by Load.
func (e *Environment) Close() error {
	var errs []error
	for i := len(e.closers) - 1; i >= 0; i-- {
		errs = append(errs, e.closers[i]())
	}
	e.closers = nil

	return errors.Join(errs...)
}
