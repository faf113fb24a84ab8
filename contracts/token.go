package contracts

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/encrypted-lottery/lottery-deployments/fhe"
)

// ConfidentialToken is a binding to a deployed ERC7984 confidential token.
type ConfidentialToken struct {
	address  common.Address
	contract *bind.BoundContract
}

// NewConfidentialToken binds the token deployed at address.
func NewConfidentialToken(address common.Address, backend bind.ContractBackend) *ConfidentialToken {
	return &ConfidentialToken{
		address:  address,
		contract: bind.NewBoundContract(address, *TokenABI, backend, backend, backend),
	}
}

// Address returns the token address.
func (t *ConfidentialToken) Address() common.Address { return t.address }

// Name returns the token name.
func (t *ConfidentialToken) Name(opts *bind.CallOpts) (string, error) {
	return callString(t.contract, opts, "name")
}

// Symbol returns the token symbol.
func (t *ConfidentialToken) Symbol(opts *bind.CallOpts) (string, error) {
	return callString(t.contract, opts, "symbol")
}

// Decimals returns the token decimals.
func (t *ConfidentialToken) Decimals(opts *bind.CallOpts) (uint8, error) {
	var out []any
	if err := t.contract.Call(opts, &out, "decimals"); err != nil {
		return 0, err
	}
	if len(out) == 0 {
		return 0, errors.New("decimals returned no data")
	}

	d, ok := out[0].(uint8)
	if !ok {
		return 0, fmt.Errorf("decimals: expected uint8, got %T", out[0])
	}

	return d, nil
}

// ConfidentialBalanceOf returns the ciphertext handle of account's balance. Accounts that never
// received tokens hold the zero handle.
func (t *ConfidentialToken) ConfidentialBalanceOf(opts *bind.CallOpts, account common.Address) (fhe.Handle, error) {
	var out []any
	if err := t.contract.Call(opts, &out, "confidentialBalanceOf", account); err != nil {
		return fhe.Handle{}, err
	}
	if len(out) == 0 {
		return fhe.Handle{}, errors.New("confidentialBalanceOf returned no data")
	}

	raw, ok := out[0].([32]byte)
	if !ok {
		return fhe.Handle{}, fmt.Errorf("confidentialBalanceOf: expected [32]byte, got %T", out[0])
	}

	return fhe.Handle(raw), nil
}

// Mint mints amount clear units to to. The resulting balance stays encrypted.
func (t *ConfidentialToken) Mint(opts *bind.TransactOpts, to common.Address, amount uint64) (*types.Transaction, error) {
	return t.contract.Transact(opts, "mint", to, amount)
}

func callString(contract *bind.BoundContract, opts *bind.CallOpts, method string) (string, error) {
	var out []any
	if err := contract.Call(opts, &out, method); err != nil {
		return "", err
	}
	if len(out) == 0 {
		return "", fmt.Errorf("%s returned no data", method)
	}

	s, ok := out[0].(string)
	if !ok {
		return "", fmt.Errorf("%s: expected string, got %T", method, out[0])
	}

	return s, nil
}
