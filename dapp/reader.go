package dapp

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/errgroup"

	"github.com/encrypted-lottery/lottery-deployments/contracts"
	"github.com/encrypted-lottery/lottery-deployments/fhe"
)

// TokenMetadata is the name and symbol of a token.
type TokenMetadata struct {
	Name   string
	Symbol string
}

// Reader performs read-only contract calls. Failures are returned as ErrNetwork and never
// retried.
type Reader struct {
	backend bind.ContractBackend
}

// NewReader creates a Reader over backend.
func NewReader(backend bind.ContractBackend) *Reader {
	return &Reader{backend: backend}
}

// ListSupportedTokens returns the lottery's token addresses in construction order.
func (r *Reader) ListSupportedTokens(ctx context.Context, lottery common.Address) ([]common.Address, error) {
	if lottery == (common.Address{}) {
		return nil, newError(ErrConfiguration, MsgLotteryNotConfigured, nil)
	}

	tokens, err := contracts.NewTokenLottery(lottery, r.backend).GetSupportedTokens(&bind.CallOpts{Context: ctx})
	if err != nil {
		return nil, fmt.Errorf("%w: getSupportedTokens on %s: %w", ErrNetwork, lottery.Hex(), err)
	}

	return tokens, nil
}

// TokenMetadata reads name and symbol concurrently.
func (r *Reader) TokenMetadata(ctx context.Context, token common.Address) (TokenMetadata, error) {
	binding := contracts.NewConfidentialToken(token, r.backend)

	var md TokenMetadata
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		name, err := binding.Name(&bind.CallOpts{Context: gctx})
		if err != nil {
			return fmt.Errorf("name: %w", err)
		}
		md.Name = name

		return nil
	})
	g.Go(func() error {
		symbol, err := binding.Symbol(&bind.CallOpts{Context: gctx})
		if err != nil {
			return fmt.Errorf("symbol: %w", err)
		}
		md.Symbol = symbol

		return nil
	})
	if err := g.Wait(); err != nil {
		return TokenMetadata{}, fmt.Errorf("%w: token %s %w", ErrNetwork, token.Hex(), err)
	}

	return md, nil
}

// EncryptedBalance returns the ciphertext handle of owner's balance of token.
func (r *Reader) EncryptedBalance(ctx context.Context, token, owner common.Address) (fhe.Handle, error) {
	h, err := contracts.NewConfidentialToken(token, r.backend).
		ConfidentialBalanceOf(&bind.CallOpts{Context: ctx}, owner)
	if err != nil {
		return fhe.Handle{}, fmt.Errorf("%w: confidentialBalanceOf(%s) on %s: %w", ErrNetwork, owner.Hex(), token.Hex(), err)
	}

	return h, nil
}
