package fhevm

import (
	"maps"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/encrypted-lottery/lottery-deployments/contracts"
	"github.com/encrypted-lottery/lottery-deployments/fhe"
)

// token is an ERC7984 confidential token. Balances are ciphertext handles; the plaintexts live in
// the coprocessor.
type token struct {
	def      tokenDef
	balances map[common.Address]fhe.Handle
}

var _ contract = (*token)(nil)

func newToken(def tokenDef) *token {
	return &token{def: def, balances: make(map[common.Address]fhe.Handle)}
}

func (t *token) kind() string  { return t.def.contractName }
func (t *token) abi() *abi.ABI { return contracts.TokenABI }

func (t *token) clone() contract {
	return &token{def: t.def, balances: maps.Clone(t.balances)}
}

func (t *token) invoke(env *execEnv, self, _ common.Address, m *abi.Method, args []any) ([]any, error) {
	switch m.Name {
	case "name":
		return []any{t.def.name}, nil
	case "symbol":
		return []any{t.def.symbol}, nil
	case "decimals":
		return []any{t.def.decimals}, nil
	case "confidentialBalanceOf":
		account := args[0].(common.Address)

		return []any{[32]byte(t.balances[account])}, nil
	case "mint":
		to := args[0].(common.Address)
		amount := args[1].(uint64)
		if to == (common.Address{}) {
			return nil, revert("%s: mint to the zero address", t.def.contractName)
		}

		copro := env.w.copro
		balance := copro.add(t.balances[to], copro.trivialEncrypt(amount))
		copro.allow(balance, self)
		copro.allow(balance, to)
		t.balances[to] = balance

		return nil, nil
	default:
		return nil, revert("%s: unsupported method %s", t.def.contractName, m.Name)
	}
}
