// Package fhe is the client side of the confidential-computation protocol: ciphertext handles,
// ephemeral re-encryption key pairs, the EIP-712 user-decrypt authorization and the decrypt call
// against a gateway.
package fhe

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// HandleLength is the byte length of a ciphertext handle.
const HandleLength = 32

var ErrInvalidHandle = errors.New("invalid ciphertext handle")

// Handle is an opaque 32 byte reference to an encrypted value stored by the coprocessor. It is
// not the plaintext.
type Handle [HandleLength]byte

// ZeroHandle is the canonical zero ciphertext. Contracts return it for balances that were never
// written, so it is known to decrypt to zero without asking the gateway.
var ZeroHandle Handle

// BytesToHandle converts b to a Handle. If b is larger than HandleLength, b is cropped from the
// left.
func BytesToHandle(b []byte) Handle {
	return Handle(common.BytesToHash(b))
}

// ParseHandle parses a 0x prefixed, 32 byte hex encoded handle.
func ParseHandle(s string) (Handle, error) {
	raw := strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if len(raw) != HandleLength*2 {
		return Handle{}, fmt.Errorf("%w: %q has %d hex characters, want %d", ErrInvalidHandle, s, len(raw), HandleLength*2)
	}

	b, err := hex.DecodeString(raw)
	if err != nil {
		return Handle{}, fmt.Errorf("%w: %w", ErrInvalidHandle, err)
	}

	return BytesToHandle(b), nil
}

// IsZero reports whether h is the canonical zero ciphertext.
func (h Handle) IsZero() bool { return h == ZeroHandle }

// Hex returns the 0x prefixed hex encoding of the handle.
func (h Handle) Hex() string { return "0x" + hex.EncodeToString(h[:]) }

// String implements fmt.Stringer.
func (h Handle) String() string { return h.Hex() }

// Short returns an abbreviated form of the handle for display.
func (h Handle) Short() string {
	s := h.Hex()

	return s[:10] + "…" + s[len(s)-6:]
}

// MarshalText implements encoding.TextMarshaler.
func (h Handle) MarshalText() ([]byte, error) {
	return []byte(h.Hex()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (h *Handle) UnmarshalText(text []byte) error {
	parsed, err := ParseHandle(string(text))
	if err != nil {
		return err
	}
	*h = parsed

	return nil
}

// HandleContractPair binds a handle to the contract that holds it, which is the scope the ACL is
// checked against.
type HandleContractPair struct {
	Handle          Handle         `json:"handle"`
	ContractAddress common.Address `json:"contractAddress"`
}
