package provider

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/cosmos/go-bip39"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/encrypted-lottery/lottery-deployments/chain/evm"
)

// SignerGenerator creates geth transact options for a chain and signs arbitrary digests with the
// same key. SignHash returns [R || S || V] with V in {0, 1}.
type SignerGenerator interface {
	Generate(chainID *big.Int) (*bind.TransactOpts, error)
	SignHash(hash []byte) ([]byte, error)
}

var (
	_ SignerGenerator = (*transactorFromRaw)(nil)
	_ SignerGenerator = (*transactorRandom)(nil)
	_ SignerGenerator = (*transactorFromMnemonic)(nil)
	_ SignerGenerator = (*transactorFromKMSSigner)(nil)
)

// Wallet generates the transact options of g for chainID and pairs them with g's hash signer.
func Wallet(g SignerGenerator, chainID *big.Int) (*evm.Wallet, error) {
	opts, err := g.Generate(chainID)
	if err != nil {
		return nil, err
	}

	return &evm.Wallet{Opts: opts, SignHash: g.SignHash}, nil
}

// GeneratorOptions contains configuration options for the SignerGenerator.
type GeneratorOptions struct {
	gasLimit uint64
}

// GeneratorOption is a function that modifies GeneratorOptions.
type GeneratorOption func(*GeneratorOptions)

// WithGasLimit fixes the gas limit of generated transactors instead of estimating it.
func WithGasLimit(gasLimit uint64) GeneratorOption {
	return func(opts *GeneratorOptions) {
		opts.gasLimit = gasLimit
	}
}

func applyOptions(opts []GeneratorOption) GeneratorOptions {
	var o GeneratorOptions
	for _, opt := range opts {
		opt(&o)
	}

	return o
}

// keyedTransactor builds transact options for key, applying the generator options.
func keyedTransactor(key *ecdsa.PrivateKey, chainID *big.Int, o GeneratorOptions) (*bind.TransactOpts, error) {
	transactor, err := bind.NewKeyedTransactorWithChainID(key, chainID)
	if err != nil {
		return nil, err
	}
	if o.gasLimit > 0 {
		transactor.GasLimit = o.gasLimit
	}

	return transactor, nil
}

func signWithKey(key *ecdsa.PrivateKey, hash []byte) ([]byte, error) {
	sig, err := crypto.Sign(hash, key)
	if err != nil {
		return nil, fmt.Errorf("failed to sign hash: %w", err)
	}

	return sig, nil
}

// TransactorFromRaw returns a generator which creates a transactor from a hex encoded private
// key, with or without the 0x prefix.
func TransactorFromRaw(privKey string, opts ...GeneratorOption) SignerGenerator {
	return &transactorFromRaw{
		privKey: strings.TrimPrefix(privKey, "0x"),
		opts:    applyOptions(opts),
	}
}

type transactorFromRaw struct {
	privKey string
	opts    GeneratorOptions
}

func (g *transactorFromRaw) key() (*ecdsa.PrivateKey, error) {
	key, err := crypto.HexToECDSA(g.privKey)
	if err != nil {
		return nil, fmt.Errorf("failed to convert private key to ECDSA: %w", err)
	}

	return key, nil
}

// Generate parses the private key and returns the bind transactor options.
func (g *transactorFromRaw) Generate(chainID *big.Int) (*bind.TransactOpts, error) {
	key, err := g.key()
	if err != nil {
		return nil, err
	}

	return keyedTransactor(key, chainID, g.opts)
}

// SignHash signs a hash using the private key stored in the generator.
func (g *transactorFromRaw) SignHash(hash []byte) ([]byte, error) {
	key, err := g.key()
	if err != nil {
		return nil, err
	}

	return signWithKey(key, hash)
}

// TransactorRandom returns a generator backed by a random key. The key is created on first use
// and reused afterwards.
func TransactorRandom() SignerGenerator {
	return &transactorRandom{}
}

type transactorRandom struct {
	once    sync.Once
	privKey *ecdsa.PrivateKey
	err     error
}

func (g *transactorRandom) key() (*ecdsa.PrivateKey, error) {
	g.once.Do(func() {
		g.privKey, g.err = crypto.GenerateKey()
		if g.err != nil {
			g.err = fmt.Errorf("failed to generate random private key: %w", g.err)
		}
	})

	return g.privKey, g.err
}

// Generate returns the bind transactor options of the random key.
func (g *transactorRandom) Generate(chainID *big.Int) (*bind.TransactOpts, error) {
	key, err := g.key()
	if err != nil {
		return nil, err
	}

	return keyedTransactor(key, chainID, GeneratorOptions{})
}

// SignHash signs a hash with the random key.
func (g *transactorRandom) SignHash(hash []byte) ([]byte, error) {
	key, err := g.key()
	if err != nil {
		return nil, err
	}

	return signWithKey(key, hash)
}

// TransactorFromMnemonic returns a generator for the account at m/44'/60'/0'/0/index of a BIP39
// mnemonic.
func TransactorFromMnemonic(mnemonic string, index uint32, opts ...GeneratorOption) SignerGenerator {
	return &transactorFromMnemonic{
		mnemonic: strings.Join(strings.Fields(mnemonic), " "),
		index:    index,
		opts:     applyOptions(opts),
	}
}

type transactorFromMnemonic struct {
	mnemonic string
	index    uint32
	opts     GeneratorOptions

	once    sync.Once
	privKey *ecdsa.PrivateKey
	err     error
}

func (g *transactorFromMnemonic) key() (*ecdsa.PrivateKey, error) {
	g.once.Do(func() {
		g.privKey, g.err = DeriveMnemonicKey(g.mnemonic, g.index)
	})

	return g.privKey, g.err
}

// Generate returns the bind transactor options of the derived key.
func (g *transactorFromMnemonic) Generate(chainID *big.Int) (*bind.TransactOpts, error) {
	key, err := g.key()
	if err != nil {
		return nil, err
	}

	return keyedTransactor(key, chainID, g.opts)
}

// SignHash signs a hash with the derived key.
func (g *transactorFromMnemonic) SignHash(hash []byte) ([]byte, error) {
	key, err := g.key()
	if err != nil {
		return nil, err
	}

	return signWithKey(key, hash)
}

// ErrInvalidMnemonic is returned for mnemonics that fail the BIP39 checksum.
var ErrInvalidMnemonic = errors.New("invalid mnemonic")

// DeriveMnemonicKey derives the private key at the Ethereum BIP44 path m/44'/60'/0'/0/index.
func DeriveMnemonicKey(mnemonic string, index uint32) (*ecdsa.PrivateKey, error) {
	seed, err := bip39.NewSeedWithErrorChecking(mnemonic, "")
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidMnemonic, err)
	}

	key, err := hdkeychain.NewMaster(seed, &chaincfg.MainNetParams)
	if err != nil {
		return nil, fmt.Errorf("failed to create master key: %w", err)
	}

	path := []uint32{
		hdkeychain.HardenedKeyStart + 44,
		hdkeychain.HardenedKeyStart + 60,
		hdkeychain.HardenedKeyStart + 0,
		0,
		index,
	}
	for _, child := range path {
		key, err = key.Derive(child)
		if err != nil {
			return nil, fmt.Errorf("failed to derive child %d: %w", child, err)
		}
	}

	priv, err := key.ECPrivKey()
	if err != nil {
		return nil, fmt.Errorf("failed to get private key: %w", err)
	}

	return crypto.ToECDSA(priv.Serialize())
}

// TransactorFromKMS returns a generator that signs with a KMS key. An empty awsProfileName uses
// the environment credentials.
func TransactorFromKMS(keyID, keyRegion, awsProfileName string) (SignerGenerator, error) {
	signer, err := NewKMSSigner(keyID, keyRegion, awsProfileName)
	if err != nil {
		return nil, fmt.Errorf("failed to create KMS signer: %w", err)
	}

	return TransactorFromKMSSigner(signer), nil
}

// TransactorFromKMSSigner creates a SignerGenerator from an existing KMSSigner instance.
func TransactorFromKMSSigner(signer *KMSSigner) SignerGenerator {
	return &transactorFromKMSSigner{signer: signer}
}

type transactorFromKMSSigner struct {
	signer *KMSSigner
}

// Generate uses KMS to create a bind.TransactOpts instance for signing transactions.
func (g *transactorFromKMSSigner) Generate(chainID *big.Int) (*bind.TransactOpts, error) {
	transactor, err := g.signer.TransactOpts(context.Background(), chainID)
	if err != nil {
		return nil, fmt.Errorf("failed to get transact opts from KMS signer: %w", err)
	}

	return transactor, nil
}

// SignHash signs a hash using the KMS signer.
func (g *transactorFromKMSSigner) SignHash(hash []byte) ([]byte, error) {
	return g.signer.SignHash(hash)
}
