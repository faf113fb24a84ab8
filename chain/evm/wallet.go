package evm

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

// ErrNoSigner is returned when a wallet has no signing capability attached.
var ErrNoSigner = errors.New("wallet has no signer")

// Wallet is a connected account that can sign transactions and EIP-712 payloads.
type Wallet struct {
	// Opts signs transactions sent through geth bindings.
	Opts *bind.TransactOpts
	// SignHash signs a 32 byte digest and returns a 65 byte [R || S || V] signature with V in {0, 1}.
	SignHash func(hash []byte) ([]byte, error)
}

// Address returns the account address of the wallet.
func (w *Wallet) Address() common.Address {
	if w == nil || w.Opts == nil {
		return common.Address{}
	}

	return w.Opts.From
}

// SignTypedData hashes the typed data following EIP-712 and signs the digest. The returned
// signature uses the wallet convention V in {27, 28}.
func (w *Wallet) SignTypedData(typedData apitypes.TypedData) ([]byte, error) {
	if w == nil || w.SignHash == nil {
		return nil, ErrNoSigner
	}

	hash, _, err := apitypes.TypedDataAndHash(typedData)
	if err != nil {
		return nil, fmt.Errorf("failed to hash typed data: %w", err)
	}

	sig, err := w.SignHash(hash)
	if err != nil {
		return nil, fmt.Errorf("failed to sign typed data: %w", err)
	}
	if len(sig) != 65 {
		return nil, fmt.Errorf("unexpected signature length %d", len(sig))
	}

	out := make([]byte, 65)
	copy(out, sig)
	if out[64] < 27 {
		out[64] += 27
	}

	return out, nil
}

// TransactOpts returns a copy of the wallet's transact options so callers can tweak gas or
// context without mutating the shared signer.
func (w *Wallet) TransactOpts() (*bind.TransactOpts, error) {
	if w == nil || w.Opts == nil {
		return nil, ErrNoSigner
	}
	opts := *w.Opts

	return &opts, nil
}
