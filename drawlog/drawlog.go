// Package drawlog persists the public outcome of settled lottery draws. Decrypted balances are
// never stored.
package drawlog

import (
	"context"
	"errors"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrDuplicateRecord = errors.New("draw record already exists")
	ErrInvalidRecord   = errors.New("invalid draw record")
)

// Record is the outcome of one draw, as emitted by the LotteryReward event.
type Record struct {
	TxHash        common.Hash
	ChainSelector uint64
	Lottery       common.Address
	Player        common.Address
	Token         common.Address
	Amount        *big.Int
	BlockNumber   uint64
	// TxIndex is the position of the transaction in its block.
	TxIndex       uint
	Timestamp     time.Time
}

// Query selects draws. Zero fields do not filter.
type Query struct {
	ChainSelector uint64
	Lottery       common.Address
	Player        common.Address
	// Limit caps the number of records. Zero or less returns none.
	Limit int
}

func (r Record) validate() error {
	var errs []error
	if r.TxHash == (common.Hash{}) {
		errs = append(errs, errors.New("tx hash is required"))
	}
	if r.Player == (common.Address{}) {
		errs = append(errs, errors.New("player is required"))
	}
	if r.Amount == nil || r.Amount.Sign() < 0 {
		errs = append(errs, errors.New("amount must be a non-negative integer"))
	}
	if len(errs) > 0 {
		return errors.Join(append([]error{ErrInvalidRecord}, errs...)...)
	}

	return nil
}

// Store is an append-only log of draws.
type Store interface {
	// Append records a draw. Appending the same transaction twice fails with ErrDuplicateRecord.
	Append(ctx context.Context, r Record) error
	// Recent returns the draws matching q, newest first by draw time, then block and position in
	// the block.
	Recent(ctx context.Context, q Query) ([]Record, error)
}
