package fhevm

import (
	"context"
	"fmt"
	"math/big"
	"slices"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/encrypted-lottery/lottery-deployments/fhe"
)

// DecryptionVerifier is the address of the mock decryption verifier used as EIP-712 verifying
// contract.
var DecryptionVerifier = common.BytesToAddress(crypto.Keccak256([]byte("fhevm-mock:Decryption"))[12:])

// Gateway serves user decryption for a Backend. It checks the signed authorization and the ACL
// against the latest chain state, then seals each plaintext to the requester's public key.
type Gateway struct {
	backend *Backend
}

var _ fhe.Gateway = (*Gateway)(nil)

func newGateway(b *Backend) *Gateway {
	return &Gateway{backend: b}
}

// Metadata implements fhe.Gateway.
func (g *Gateway) Metadata(context.Context) (fhe.GatewayMetadata, error) {
	return fhe.GatewayMetadata{ChainID: g.backend.ChainID(), VerifyingContract: DecryptionVerifier}, nil
}

// UserDecrypt implements fhe.Gateway.
func (g *Gateway) UserDecrypt(_ context.Context, req fhe.UserDecryptRequest) (map[fhe.Handle][]byte, error) {
	if err := req.Window.Validate(); err != nil {
		return nil, err
	}
	if !req.Window.Contains(g.backend.now()) {
		return nil, fmt.Errorf("%w: authorization is outside its validity window", fhe.ErrUnauthorized)
	}
	if len(req.PublicKey) != 32 {
		return nil, fmt.Errorf("invalid public key length %d", len(req.PublicKey))
	}
	if len(req.ContractAddresses) == 0 {
		return nil, fmt.Errorf("%w: no contract addresses", fhe.ErrUnauthorized)
	}

	typedData := fhe.UserDecryptTypedData(
		fhe.Domain{ChainID: g.backend.ChainID(), VerifyingContract: DecryptionVerifier},
		req.PublicKey, req.ContractAddresses, req.Window,
	)
	signer, err := fhe.RecoverSigner(typedData, req.Signature)
	if err != nil {
		return nil, err
	}
	if signer != req.User {
		return nil, fmt.Errorf("%w: signature was produced by %s, not %s", fhe.ErrUnauthorized, signer, req.User)
	}

	var recipient [32]byte
	copy(recipient[:], req.PublicKey)

	g.backend.mu.RLock()
	plaintexts := make(map[fhe.Handle]*big.Int, len(req.Pairs))
	for _, p := range req.Pairs {
		copro := g.backend.state.copro
		switch {
		case !slices.Contains(req.ContractAddresses, p.ContractAddress):
			err = fmt.Errorf("%w: contract %s is not part of the authorization", fhe.ErrUnauthorized, p.ContractAddress)
		case !copro.known(p.Handle):
			err = fmt.Errorf("unknown handle %s", p.Handle)
		case !copro.isAllowed(p.Handle, req.User):
			err = fmt.Errorf("%w: user %s is not allowed to decrypt %s", fhe.ErrUnauthorized, req.User, p.Handle)
		case !copro.isAllowed(p.Handle, p.ContractAddress):
			err = fmt.Errorf("%w: contract %s is not allowed to decrypt %s", fhe.ErrUnauthorized, p.ContractAddress, p.Handle)
		default:
			plaintexts[p.Handle] = copro.plaintext(p.Handle)
		}
		if err != nil {
			break
		}
	}
	g.backend.mu.RUnlock()
	if err != nil {
		return nil, err
	}

	out := make(map[fhe.Handle][]byte, len(plaintexts))
	for h, v := range plaintexts {
		sealed, serr := fhe.SealPlaintext(v, recipient)
		if serr != nil {
			return nil, fmt.Errorf("failed to seal %s: %w", h, serr)
		}
		out[h] = sealed
	}

	return out, nil
}
