package fhevm

import (
	"encoding/binary"
	"fmt"
	"math/big"
	"slices"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/encrypted-lottery/lottery-deployments/contracts"
)

const (
	minReward = 1
	maxReward = 100
)

// lottery is the TokenLottery contract: each draw picks one supported token and mints between
// minReward and maxReward units of it to the caller.
type lottery struct {
	tokens []common.Address
	draws  uint64
}

var _ contract = (*lottery)(nil)

func newLotteryFromArgs(args []any) (contract, error) {
	if len(args) != 1 {
		return nil, revert("TokenLottery: expected 1 constructor argument, got %d", len(args))
	}

	tokens, ok := args[0].([]common.Address)
	if !ok {
		return nil, revert("TokenLottery: invalid token list %T", args[0])
	}
	if len(tokens) == 0 {
		return nil, revert("TokenLottery: token list is empty")
	}
	for _, t := range tokens {
		if t == (common.Address{}) {
			return nil, revert("TokenLottery: token address is zero")
		}
	}

	return &lottery{tokens: slices.Clone(tokens)}, nil
}

func (l *lottery) kind() string  { return contracts.TokenLotteryName }
func (l *lottery) abi() *abi.ABI { return contracts.LotteryABI }

func (l *lottery) clone() contract {
	return &lottery{tokens: slices.Clone(l.tokens), draws: l.draws}
}

func (l *lottery) invoke(env *execEnv, self, caller common.Address, m *abi.Method, _ []any) ([]any, error) {
	switch m.Name {
	case "getSupportedTokens":
		return []any{slices.Clone(l.tokens)}, nil
	case "getTokenCount":
		return []any{big.NewInt(int64(len(l.tokens)))}, nil
	case "draw":
		return nil, l.draw(env, self, caller)
	default:
		return nil, revert("TokenLottery: unsupported method %s", m.Name)
	}
}

func (l *lottery) draw(env *execEnv, self, player common.Address) error {
	l.draws++

	var counter, ts [8]byte
	binary.BigEndian.PutUint64(counter[:], l.draws)
	binary.BigEndian.PutUint64(ts[:], env.block.time)
	seed := crypto.Keccak256(env.block.prevHash.Bytes(), player.Bytes(), self.Bytes(), counter[:], ts[:])

	tokenIdx := new(big.Int).Mod(new(big.Int).SetBytes(seed), big.NewInt(int64(len(l.tokens)))).Uint64()
	amountSeed := new(big.Int).SetBytes(crypto.Keccak256(seed))
	amount := new(big.Int).Mod(amountSeed, big.NewInt(maxReward-minReward+1)).Uint64() + minReward

	rewarded := l.tokens[tokenIdx]
	if _, err := env.call(self, rewarded, "mint", player, amount); err != nil {
		return revert("TokenLottery: mint failed: %s", revertReason(err))
	}

	event := contracts.LotteryABI.Events[contracts.LotteryRewardEvent]
	data, err := event.Inputs.NonIndexed().Pack(new(big.Int).SetUint64(amount))
	if err != nil {
		return fmt.Errorf("TokenLottery: failed to pack reward: %w", err)
	}
	env.emit(self, event, []common.Hash{
		common.BytesToHash(player.Bytes()),
		common.BytesToHash(rewarded.Bytes()),
	}, data)

	return nil
}
