package fhe

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"slices"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	"github.com/encrypted-lottery/lottery-deployments/pkg/logger"
)

var (
	ErrNotInitialized = errors.New("encryption client is not initialized")
	ErrUnauthorized   = errors.New("decryption not authorized")
	ErrSealedValue    = errors.New("failed to open sealed plaintext")
	ErrMissingValue   = errors.New("gateway response is missing a handle")
)

// GatewayMetadata describes the verifier the gateway checks authorizations against.
type GatewayMetadata struct {
	ChainID           *big.Int       `json:"chainId"`
	VerifyingContract common.Address `json:"verifyingContract"`
}

// UserDecryptRequest is the request a client sends to the gateway once the user signed the
// authorization.
type UserDecryptRequest struct {
	Pairs             []HandleContractPair `json:"handleContractPairs"`
	PublicKey         []byte               `json:"publicKey"`
	Signature         []byte               `json:"signature"`
	ContractAddresses []common.Address     `json:"contractAddresses"`
	User              common.Address       `json:"userAddress"`
	Window            Window               `json:"window"`
}

// Gateway re-encrypts ciphertexts for a user that proved, through a signed authorization, that
// the ACL grants them access.
type Gateway interface {
	// Metadata returns the verifier domain used to build authorizations.
	Metadata(ctx context.Context) (GatewayMetadata, error)
	// UserDecrypt returns, per requested handle, the plaintext sealed to the request public key.
	UserDecrypt(ctx context.Context, req UserDecryptRequest) (map[Handle][]byte, error)
}

// Client wraps a Gateway with key generation, authorization building and local opening of the
// sealed plaintexts. It must be initialized with Init before use.
type Client struct {
	gateway Gateway
	lggr    logger.Logger

	mu   sync.RWMutex
	meta *GatewayMetadata
}

// NewClient creates an uninitialized Client.
func NewClient(gateway Gateway, lggr logger.Logger) *Client {
	if lggr == nil {
		lggr = logger.Nop()
	}

	return &Client{gateway: gateway, lggr: lggr.Named("fhe")}
}

// Init fetches the gateway metadata. It is safe to call Init more than once.
func (c *Client) Init(ctx context.Context) error {
	if c.gateway == nil {
		return fmt.Errorf("%w: no gateway configured", ErrNotInitialized)
	}

	meta, err := c.gateway.Metadata(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch gateway metadata: %w", err)
	}

	c.mu.Lock()
	c.meta = &meta
	c.mu.Unlock()

	c.lggr.Debugw("Encryption client initialized",
		"chainID", meta.ChainID, "verifyingContract", meta.VerifyingContract)

	return nil
}

// Ready reports whether Init completed successfully.
func (c *Client) Ready() bool {
	if c == nil {
		return false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.meta != nil
}

func (c *Client) domain() (Domain, error) {
	if c == nil {
		return Domain{}, ErrNotInitialized
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.meta == nil {
		return Domain{}, ErrNotInitialized
	}

	return Domain{ChainID: c.meta.ChainID, VerifyingContract: c.meta.VerifyingContract}, nil
}

// GenerateKeypair creates an ephemeral key pair for a single decrypt request.
func (c *Client) GenerateKeypair() (Keypair, error) {
	return GenerateKeypair()
}

// CreateEIP712 builds the authorization payload the wallet must sign.
func (c *Client) CreateEIP712(
	publicKey [32]byte, contracts []common.Address, window Window,
) (apitypes.TypedData, error) {
	domain, err := c.domain()
	if err != nil {
		return apitypes.TypedData{}, err
	}
	if err = window.Validate(); err != nil {
		return apitypes.TypedData{}, err
	}
	if len(contracts) == 0 {
		return apitypes.TypedData{}, errors.New("at least one contract address is required")
	}

	return UserDecryptTypedData(domain, publicKey[:], contracts, window), nil
}

// UserDecrypt asks the gateway to re-encrypt the handles for keypair and opens the results.
// Handles equal to ZeroHandle are answered locally without a gateway round trip.
func (c *Client) UserDecrypt(
	ctx context.Context,
	pairs []HandleContractPair,
	keypair Keypair,
	signature []byte,
	contracts []common.Address,
	user common.Address,
	window Window,
) (map[Handle]*big.Int, error) {
	if !c.Ready() {
		return nil, ErrNotInitialized
	}
	if err := window.Validate(); err != nil {
		return nil, err
	}

	out := make(map[Handle]*big.Int, len(pairs))
	remote := make([]HandleContractPair, 0, len(pairs))
	for _, p := range pairs {
		if !slices.Contains(contracts, p.ContractAddress) {
			return nil, fmt.Errorf("%w: contract %s is not part of the authorization", ErrUnauthorized, p.ContractAddress)
		}
		if p.Handle.IsZero() {
			out[p.Handle] = new(big.Int)

			continue
		}
		remote = append(remote, p)
	}
	if len(remote) == 0 {
		return out, nil
	}

	sealed, err := c.gateway.UserDecrypt(ctx, UserDecryptRequest{
		Pairs:             remote,
		PublicKey:         keypair.PublicKey[:],
		Signature:         signature,
		ContractAddresses: contracts,
		User:              user,
		Window:            window,
	})
	if err != nil {
		return nil, fmt.Errorf("user decrypt failed: %w", err)
	}

	for _, p := range remote {
		blob, ok := sealed[p.Handle]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingValue, p.Handle)
		}

		value, err := keypair.OpenPlaintext(blob)
		if err != nil {
			return nil, fmt.Errorf("handle %s: %w", p.Handle, err)
		}
		out[p.Handle] = value
	}

	c.lggr.Debugw("User decrypt completed", "user", user, "handles", len(out))

	return out, nil
}
