package fhe

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"

	"golang.org/x/crypto/nacl/box"
)

// Keypair is an ephemeral key pair generated per decrypt request. The gateway seals plaintexts to
// the public key and only the holder of the private key can open them.
type Keypair struct {
	PublicKey  [32]byte
	PrivateKey [32]byte
}

// GenerateKeypair creates a new ephemeral X25519 key pair.
func GenerateKeypair() (Keypair, error) {
	pub, priv, err := box.GenerateKey(rand.Reader)
	if err != nil {
		return Keypair{}, fmt.Errorf("failed to generate keypair: %w", err)
	}

	return Keypair{PublicKey: *pub, PrivateKey: *priv}, nil
}

// PublicKeyHex returns the 0x prefixed public key as it appears in the authorization payload.
func (k Keypair) PublicKeyHex() string {
	return "0x" + hex.EncodeToString(k.PublicKey[:])
}

// SealPlaintext seals a plaintext value for the owner of recipient. The value is encoded as a 32
// byte big endian integer.
func SealPlaintext(value *big.Int, recipient [32]byte) ([]byte, error) {
	if value == nil || value.Sign() < 0 || value.BitLen() > 256 {
		return nil, fmt.Errorf("plaintext out of range: %v", value)
	}

	msg := make([]byte, 32)
	value.FillBytes(msg)

	return box.SealAnonymous(nil, msg, &recipient, rand.Reader)
}

// OpenPlaintext opens a value sealed with SealPlaintext.
func (k Keypair) OpenPlaintext(sealed []byte) (*big.Int, error) {
	msg, ok := box.OpenAnonymous(nil, sealed, &k.PublicKey, &k.PrivateKey)
	if !ok {
		return nil, ErrSealedValue
	}
	if len(msg) != 32 {
		return nil, fmt.Errorf("%w: unexpected plaintext length %d", ErrSealedValue, len(msg))
	}

	return new(big.Int).SetBytes(msg), nil
}
