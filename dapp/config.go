package dapp

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	"github.com/encrypted-lottery/lottery-deployments/chain/evm"
	"github.com/encrypted-lottery/lottery-deployments/drawlog"
	"github.com/encrypted-lottery/lottery-deployments/fhe"
	"github.com/encrypted-lottery/lottery-deployments/pkg/logger"
)

// TokenConfig is a token the application knows about.
type TokenConfig struct {
	// Key is the short identifier used as name and symbol when the chain cannot be read.
	Key     string
	Title   string
	Address common.Address
}

// DecryptClient is the confidential-compute client used for user decryption. *fhe.Client
// implements it.
type DecryptClient interface {
	Ready() bool
	GenerateKeypair() (fhe.Keypair, error)
	CreateEIP712(publicKey [32]byte, contracts []common.Address, window fhe.Window) (apitypes.TypedData, error)
	UserDecrypt(
		ctx context.Context,
		pairs []fhe.HandleContractPair,
		keypair fhe.Keypair,
		signature []byte,
		contracts []common.Address,
		user common.Address,
		window fhe.Window,
	) (map[fhe.Handle]*big.Int, error)
}

var _ DecryptClient = (*fhe.Client)(nil)

// Config configures an Orchestrator.
type Config struct {
	// Client serves reads and draw transactions. Required.
	Client evm.OnchainClient
	// Confirm waits for a draw transaction to be mined. Required.
	Confirm evm.ConfirmFunc
	// ChainSelector is recorded in the draw log.
	ChainSelector uint64

	Lottery common.Address
	Tokens  []TokenConfig

	// Decrypter is optional. Without it every decryption fails with ErrSDKNotReady.
	Decrypter DecryptClient
	// DecryptDurationDays is the validity window of decrypt authorizations.
	// Defaults to fhe.DefaultDurationDays.
	DecryptDurationDays int64

	// DrawLog is optional.
	DrawLog drawlog.Store
	// AutoRefresh refetches balances whenever they are signalled stale.
	AutoRefresh bool

	Notifier Notifier
	Logger   logger.Logger
	// Now defaults to time.Now.
	Now func() time.Time
}

// Validate checks the required fields.
func (c Config) Validate() error {
	var missing []string
	if c.Client == nil {
		missing = append(missing, "client")
	}
	if c.Confirm == nil {
		missing = append(missing, "confirm function")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrConfiguration, strings.Join(missing, ", "))
	}

	var errs []error
	seen := make(map[common.Address]bool, len(c.Tokens))
	for _, t := range c.Tokens {
		if t.Key == "" {
			errs = append(errs, fmt.Errorf("token %s has no key", t.Address.Hex()))
		}
		if seen[t.Address] {
			errs = append(errs, fmt.Errorf("token %s is configured twice", t.Address.Hex()))
		}
		seen[t.Address] = true
	}
	if c.DecryptDurationDays < 0 || c.DecryptDurationDays > fhe.MaxDurationDays {
		errs = append(errs, fmt.Errorf("decrypt duration must be between 1 and %d days", fhe.MaxDurationDays))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrConfiguration, errors.Join(errs...))
	}

	return nil
}

func (c Config) withDefaults() Config {
	if c.DecryptDurationDays == 0 {
		c.DecryptDurationDays = fhe.DefaultDurationDays
	}
	if c.Notifier == nil {
		c.Notifier = nopNotifier{}
	}
	if c.Logger == nil {
		c.Logger = logger.Nop()
	}
	if c.Now == nil {
		c.Now = time.Now
	}

	return c
}

// tokenConfig returns the configuration of the token at addr. The zero address is never
// configured.
func (c Config) tokenConfig(addr common.Address) (TokenConfig, bool) {
	if addr == (common.Address{}) {
		return TokenConfig{}, false
	}
	for _, t := range c.Tokens {
		if t.Address == addr {
			return t, true
		}
	}

	return TokenConfig{}, false
}
