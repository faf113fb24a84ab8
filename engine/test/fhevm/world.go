package fhevm

import (
	"errors"
	"fmt"
	"maps"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// RevertError is returned by calls and gas estimations that revert. It mimics the JSON-RPC error
// of a node so the revert reason can be extracted the same way.
type RevertError struct {
	Reason string
}

func (e *RevertError) Error() string {
	if e.Reason == "" {
		return "execution reverted"
	}

	return "execution reverted: " + e.Reason
}

// ErrorCode returns the JSON-RPC error code nodes use for reverts.
func (e *RevertError) ErrorCode() int { return 3 }

// ErrorData returns the revert reason.
func (e *RevertError) ErrorData() any { return e.Reason }

func revert(format string, args ...any) error {
	return &RevertError{Reason: fmt.Sprintf(format, args...)}
}

// revertReason returns the reason of the innermost RevertError, or the error text.
func revertReason(err error) string {
	var rerr *RevertError
	if errors.As(err, &rerr) {
		return rerr.Reason
	}

	return err.Error()
}

// contract is the Go implementation of a deployed contract. Implementations must be cloneable
// so a transaction can run against a copy of the world and be discarded on revert.
type contract interface {
	kind() string
	abi() *abi.ABI
	clone() contract
	invoke(env *execEnv, self, caller common.Address, method *abi.Method, args []any) ([]any, error)
}

// world is the chain state: account nonces and balances, deployed contracts and the coprocessor.
type world struct {
	nonces    map[common.Address]uint64
	balances  map[common.Address]*big.Int
	contracts map[common.Address]contract
	copro     *coprocessor
}

func newWorld(chainID *big.Int) *world {
	return &world{
		nonces:    make(map[common.Address]uint64),
		balances:  make(map[common.Address]*big.Int),
		contracts: make(map[common.Address]contract),
		copro:     newCoprocessor(chainID),
	}
}

func (w *world) clone() *world {
	out := &world{
		nonces:    maps.Clone(w.nonces),
		balances:  make(map[common.Address]*big.Int, len(w.balances)),
		contracts: make(map[common.Address]contract, len(w.contracts)),
		copro:     w.copro.clone(),
	}
	for addr, bal := range w.balances {
		out.balances[addr] = new(big.Int).Set(bal)
	}
	for addr, c := range w.contracts {
		out.contracts[addr] = c.clone()
	}

	return out
}

func (w *world) balance(addr common.Address) *big.Int {
	if bal, ok := w.balances[addr]; ok {
		return new(big.Int).Set(bal)
	}

	return new(big.Int)
}

// blockContext is the block a transaction or call executes in.
type blockContext struct {
	number   uint64
	time     uint64
	prevHash common.Hash
}

// execEnv carries the state of a single transaction or call.
type execEnv struct {
	w      *world
	block  blockContext
	origin common.Address
	logs   []*types.Log
}

// emit appends an event log of self.
func (e *execEnv) emit(self common.Address, event abi.Event, indexed []common.Hash, data []byte) {
	topics := append([]common.Hash{event.ID}, indexed...)
	e.logs = append(e.logs, &types.Log{
		Address:     self,
		Topics:      topics,
		Data:        data,
		BlockNumber: e.block.number,
	})
}

// call invokes method on the contract at to with caller as msg.sender.
func (e *execEnv) call(caller, to common.Address, method string, args ...any) ([]any, error) {
	c, ok := e.w.contracts[to]
	if !ok {
		return nil, revert("call to non-contract %s", to)
	}

	m, ok := c.abi().Methods[method]
	if !ok {
		return nil, revert("%s has no method %s", c.kind(), method)
	}

	return c.invoke(e, to, caller, &m, args)
}

// dispatch decodes calldata and invokes the matching method, returning the packed outputs.
func (e *execEnv) dispatch(caller, to common.Address, data []byte) ([]byte, error) {
	c, ok := e.w.contracts[to]
	if !ok {
		// Plain value transfer or call to an EOA.
		return nil, nil
	}
	if len(data) < 4 {
		return nil, revert("%s: no fallback function", c.kind())
	}

	m, err := c.abi().MethodById(data[:4])
	if err != nil {
		return nil, revert("%s: unknown selector %x", c.kind(), data[:4])
	}

	args, err := m.Inputs.Unpack(data[4:])
	if err != nil {
		return nil, revert("%s.%s: invalid calldata: %v", c.kind(), m.Name, err)
	}

	out, err := c.invoke(e, to, caller, m, args)
	if err != nil {
		return nil, err
	}

	packed, err := m.Outputs.Pack(out...)
	if err != nil {
		return nil, fmt.Errorf("%s.%s: failed to pack outputs: %w", c.kind(), m.Name, err)
	}

	return packed, nil
}

var errUnknownCode = errors.New("unknown contract code")
