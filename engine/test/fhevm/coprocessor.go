package fhevm

import (
	"encoding/binary"
	"maps"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/encrypted-lottery/lottery-deployments/fhe"
)

// uint64Mask wraps euint64 arithmetic.
var uint64Mask = new(big.Int).SetUint64(^uint64(0))

// coprocessor stores the plaintexts behind ciphertext handles together with the access control
// list. Handles are immutable: every operation allocates a new handle.
type coprocessor struct {
	chainID *big.Int
	next    uint64
	values  map[fhe.Handle]*big.Int
	acl     map[fhe.Handle]map[common.Address]struct{}
}

func newCoprocessor(chainID *big.Int) *coprocessor {
	return &coprocessor{
		chainID: chainID,
		values:  make(map[fhe.Handle]*big.Int),
		acl:     make(map[fhe.Handle]map[common.Address]struct{}),
	}
}

func (c *coprocessor) clone() *coprocessor {
	out := &coprocessor{
		chainID: c.chainID,
		next:    c.next,
		values:  maps.Clone(c.values),
		acl:     make(map[fhe.Handle]map[common.Address]struct{}, len(c.acl)),
	}
	for h, allowed := range c.acl {
		out.acl[h] = maps.Clone(allowed)
	}

	return out
}

func (c *coprocessor) allocate(value *big.Int) fhe.Handle {
	c.next++

	var counter [8]byte
	binary.BigEndian.PutUint64(counter[:], c.next)
	h := fhe.BytesToHandle(crypto.Keccak256([]byte("fhevm-mock:handle"), c.chainID.Bytes(), counter[:]))

	c.values[h] = new(big.Int).And(value, uint64Mask)

	return h
}

// trivialEncrypt returns a handle for a public plaintext.
func (c *coprocessor) trivialEncrypt(value uint64) fhe.Handle {
	return c.allocate(new(big.Int).SetUint64(value))
}

// add returns a handle to a + b. The zero handle is treated as an encrypted zero.
func (c *coprocessor) add(a, b fhe.Handle) fhe.Handle {
	return c.allocate(new(big.Int).Add(c.plaintext(a), c.plaintext(b)))
}

func (c *coprocessor) plaintext(h fhe.Handle) *big.Int {
	if v, ok := c.values[h]; ok {
		return new(big.Int).Set(v)
	}

	return new(big.Int)
}

func (c *coprocessor) known(h fhe.Handle) bool {
	_, ok := c.values[h]

	return ok
}

func (c *coprocessor) allow(h fhe.Handle, addr common.Address) {
	allowed, ok := c.acl[h]
	if !ok {
		allowed = make(map[common.Address]struct{})
		c.acl[h] = allowed
	}
	allowed[addr] = struct{}{}
}

func (c *coprocessor) isAllowed(h fhe.Handle, addr common.Address) bool {
	_, ok := c.acl[h][addr]

	return ok
}
