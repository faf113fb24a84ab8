package contracts

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// ErrRewardNotFound is returned when a receipt carries no LotteryReward event.
var ErrRewardNotFound = errors.New("LotteryReward event was not found in the transaction receipt")

// LotteryReward is the decoded LotteryReward event.
type LotteryReward struct {
	Player common.Address
	Token  common.Address
	Amount *big.Int
	Raw    types.Log
}

// TokenLottery is a binding to a deployed TokenLottery contract.
type TokenLottery struct {
	address  common.Address
	backend  bind.ContractBackend
	contract *bind.BoundContract
}

// NewTokenLottery binds the lottery deployed at address.
func NewTokenLottery(address common.Address, backend bind.ContractBackend) *TokenLottery {
	return &TokenLottery{
		address:  address,
		backend:  backend,
		contract: bind.NewBoundContract(address, *LotteryABI, backend, backend, backend),
	}
}

// Address returns the lottery address.
func (l *TokenLottery) Address() common.Address { return l.address }

// GetSupportedTokens returns the token addresses in the order the lottery was constructed with.
func (l *TokenLottery) GetSupportedTokens(opts *bind.CallOpts) ([]common.Address, error) {
	var out []any
	if err := l.contract.Call(opts, &out, "getSupportedTokens"); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, errors.New("getSupportedTokens returned no data")
	}

	tokens, ok := out[0].([]common.Address)
	if !ok {
		return nil, fmt.Errorf("getSupportedTokens: expected []common.Address, got %T", out[0])
	}

	return tokens, nil
}

// GetTokenCount returns the number of supported tokens.
func (l *TokenLottery) GetTokenCount(opts *bind.CallOpts) (*big.Int, error) {
	var out []any
	if err := l.contract.Call(opts, &out, "getTokenCount"); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, errors.New("getTokenCount returned no data")
	}

	count, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("getTokenCount: expected *big.Int, got %T", out[0])
	}

	return count, nil
}

// Draw submits a draw transaction signed by opts.
func (l *TokenLottery) Draw(opts *bind.TransactOpts) (*types.Transaction, error) {
	return l.contract.Transact(opts, "draw")
}

// ParseLotteryReward decodes log as a LotteryReward event.
func (l *TokenLottery) ParseLotteryReward(log types.Log) (*LotteryReward, error) {
	return ParseLotteryReward(log)
}

// FilterLotteryReward returns the reward events of this lottery in the block range, optionally
// restricted to the given players. A nil end block means latest.
func (l *TokenLottery) FilterLotteryReward(
	ctx context.Context, start uint64, end *uint64, players ...common.Address,
) ([]*LotteryReward, error) {
	playerRule := make([]any, 0, len(players))
	for _, p := range players {
		playerRule = append(playerRule, p)
	}

	topics, err := abi.MakeTopics([]any{LotteryABI.Events[LotteryRewardEvent].ID}, playerRule)
	if err != nil {
		return nil, fmt.Errorf("failed to build topics: %w", err)
	}

	query := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(start),
		Addresses: []common.Address{l.address},
		Topics:    topics,
	}
	if end != nil {
		query.ToBlock = new(big.Int).SetUint64(*end)
	}

	logs, err := l.backend.FilterLogs(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to filter %s logs: %w", LotteryRewardEvent, err)
	}

	rewards := make([]*LotteryReward, 0, len(logs))
	for _, lg := range logs {
		reward, perr := ParseLotteryReward(lg)
		if perr != nil {
			continue
		}
		rewards = append(rewards, reward)
	}

	return rewards, nil
}

// ParseLotteryReward decodes log as a LotteryReward event. Logs of other events fail.
func ParseLotteryReward(log types.Log) (*LotteryReward, error) {
	event := LotteryABI.Events[LotteryRewardEvent]
	if len(log.Topics) != 3 || log.Topics[0] != event.ID {
		return nil, fmt.Errorf("log is not a %s event", LotteryRewardEvent)
	}

	reward := new(LotteryReward)
	if err := LotteryABI.UnpackIntoInterface(reward, LotteryRewardEvent, log.Data); err != nil {
		return nil, fmt.Errorf("failed to unpack %s data: %w", LotteryRewardEvent, err)
	}

	var indexed abi.Arguments
	for _, arg := range event.Inputs {
		if arg.Indexed {
			indexed = append(indexed, arg)
		}
	}
	if err := abi.ParseTopics(reward, indexed, log.Topics[1:]); err != nil {
		return nil, fmt.Errorf("failed to parse %s topics: %w", LotteryRewardEvent, err)
	}
	reward.Raw = log

	return reward, nil
}

// FindLotteryReward scans receipt logs in order and returns the first LotteryReward. Logs that
// do not decode as the event are skipped.
func FindLotteryReward(logs []*types.Log) (*LotteryReward, error) {
	for _, lg := range logs {
		if lg == nil {
			continue
		}
		if reward, err := ParseLotteryReward(*lg); err == nil {
			return reward, nil
		}
	}

	return nil, ErrRewardNotFound
}
