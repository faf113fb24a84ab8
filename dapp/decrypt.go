package dapp

import (
	"context"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/encrypted-lottery/lottery-deployments/chain/evm"
	"github.com/encrypted-lottery/lottery-deployments/dapp/state"
	"github.com/encrypted-lottery/lottery-deployments/fhe"
)

// Decrypt reveals the connected wallet's balance of token. Preconditions are checked in order:
// a connected wallet, an encrypted balance, a ready encryption client, a signer. A zero handle is
// answered with 0 without a decryption request.
func (o *Orchestrator) Decrypt(ctx context.Context, token common.Address) (*big.Int, error) {
	w := o.Wallet()
	if w == nil {
		return nil, o.notifyErr(newError(ErrAuthorization, MsgConnectToDecrypt, nil))
	}

	tok, ok := o.store.Snapshot().Token(token)
	if !ok || tok.Handle == nil {
		return nil, o.notifyErr(newError(ErrNoEncryptedBalance, MsgNoEncryptedBalance, nil))
	}
	handle := *tok.Handle
	if handle.IsZero() {
		return new(big.Int), nil
	}

	if o.cfg.Decrypter == nil || !o.cfg.Decrypter.Ready() {
		return nil, o.notifyErr(newError(ErrSDKNotReady, MsgSDKInitializing, nil))
	}
	if w.SignHash == nil {
		return nil, o.notifyErr(newError(ErrAuthorization, MsgSignerRequired, nil))
	}

	o.store.Dispatch(state.DecryptStarted{Token: token})

	value, err := o.userDecrypt(ctx, w, token, handle)
	if err != nil {
		o.lggr.Errorw("Failed to decrypt balance", "token", token.Hex(), "error", err)
		derr := newError(decryptErrorKind(err), MsgDecryptFailed, err)
		o.store.Dispatch(state.DecryptFailed{Token: token, Err: derr.Error()})

		return nil, o.notifyErr(derr)
	}

	o.store.Dispatch(state.DecryptSucceeded{Token: token, Handle: handle, Value: value})
	o.lggr.Debugw("Balance decrypted", "token", token.Hex())

	return value, nil
}

func (o *Orchestrator) userDecrypt(ctx context.Context, w *evm.Wallet, token common.Address, handle fhe.Handle) (*big.Int, error) {
	keypair, err := o.cfg.Decrypter.GenerateKeypair()
	if err != nil {
		return nil, err
	}

	window := fhe.NewWindow(o.cfg.Now(), o.cfg.DecryptDurationDays)
	contracts := []common.Address{token}
	typedData, err := o.cfg.Decrypter.CreateEIP712(keypair.PublicKey, contracts, window)
	if err != nil {
		return nil, err
	}

	signature, err := w.SignTypedData(typedData)
	if err != nil {
		return nil, errors.Join(errSignatureRejected, err)
	}

	result, err := o.cfg.Decrypter.UserDecrypt(ctx,
		[]fhe.HandleContractPair{{Handle: handle, ContractAddress: token}},
		keypair, signature, contracts, w.Address(), window,
	)
	if errors.Is(err, fhe.ErrMissingValue) {
		return new(big.Int), nil
	}
	if err != nil {
		return nil, err
	}

	value, ok := result[handle]
	if !ok || value == nil {
		return new(big.Int), nil
	}

	return value, nil
}

var errSignatureRejected = errors.New("signature rejected")

func decryptErrorKind(err error) error {
	switch {
	case errors.Is(err, fhe.ErrNotInitialized):
		return ErrSDKNotReady
	case errors.Is(err, errSignatureRejected), errors.Is(err, fhe.ErrUnauthorized), errors.Is(err, evm.ErrNoSigner):
		return ErrAuthorization
	case errors.Is(err, fhe.ErrInvalidWindow):
		return ErrConfiguration
	default:
		return ErrNetwork
	}
}
