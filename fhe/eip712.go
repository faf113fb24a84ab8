package fhe

import (
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

const (
	// DomainName is the EIP-712 domain name of the decryption verifier.
	DomainName = "Decryption"
	// DomainVersion is the EIP-712 domain version of the decryption verifier.
	DomainVersion = "1"
	// UserDecryptPrimaryType is the primary type signed by the user to authorize a decryption.
	UserDecryptPrimaryType = "UserDecryptRequestVerification"

	// MaxDurationDays bounds the validity window of an authorization.
	MaxDurationDays = 365
	// DefaultDurationDays is the validity window requested by the lottery front end.
	DefaultDurationDays = 10
)

var ErrInvalidWindow = errors.New("invalid authorization validity window")

// Domain identifies the verifier that checks user-decrypt authorizations.
type Domain struct {
	ChainID           *big.Int
	VerifyingContract common.Address
}

// Window is the validity window of a user-decrypt authorization.
type Window struct {
	StartTimestamp int64 `json:"startTimestamp"`
	DurationDays   int64 `json:"durationDays"`
}

// NewWindow returns a window starting at now and lasting durationDays.
func NewWindow(now time.Time, durationDays int64) Window {
	return Window{StartTimestamp: now.Unix(), DurationDays: durationDays}
}

// Validate checks the duration bounds.
func (w Window) Validate() error {
	if w.StartTimestamp <= 0 {
		return fmt.Errorf("%w: start timestamp must be positive", ErrInvalidWindow)
	}
	if w.DurationDays <= 0 || w.DurationDays > MaxDurationDays {
		return fmt.Errorf("%w: duration must be between 1 and %d days, got %d", ErrInvalidWindow, MaxDurationDays, w.DurationDays)
	}

	return nil
}

// Contains reports whether t falls inside the window.
func (w Window) Contains(t time.Time) bool {
	start := time.Unix(w.StartTimestamp, 0)
	end := start.Add(time.Duration(w.DurationDays) * 24 * time.Hour)

	return !t.Before(start) && t.Before(end)
}

// UserDecryptTypedData builds the EIP-712 payload the wallet signs to authorize the holder of
// publicKey to decrypt handles held by contracts.
func UserDecryptTypedData(
	domain Domain, publicKey []byte, contracts []common.Address, window Window,
) apitypes.TypedData {
	addrs := make([]any, 0, len(contracts))
	for _, c := range contracts {
		addrs = append(addrs, c.Hex())
	}

	chainID := domain.ChainID
	if chainID == nil {
		chainID = new(big.Int)
	}

	return apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain": {
				{Name: "name", Type: "string"},
				{Name: "version", Type: "string"},
				{Name: "chainId", Type: "uint256"},
				{Name: "verifyingContract", Type: "address"},
			},
			UserDecryptPrimaryType: {
				{Name: "publicKey", Type: "bytes"},
				{Name: "contractAddresses", Type: "address[]"},
				{Name: "startTimestamp", Type: "uint256"},
				{Name: "durationDays", Type: "uint256"},
			},
		},
		PrimaryType: UserDecryptPrimaryType,
		Domain: apitypes.TypedDataDomain{
			Name:              DomainName,
			Version:           DomainVersion,
			ChainId:           (*math.HexOrDecimal256)(new(big.Int).Set(chainID)),
			VerifyingContract: domain.VerifyingContract.Hex(),
		},
		Message: apitypes.TypedDataMessage{
			"publicKey":         hexutil.Encode(publicKey),
			"contractAddresses": addrs,
			"startTimestamp":    strconv.FormatInt(window.StartTimestamp, 10),
			"durationDays":      strconv.FormatInt(window.DurationDays, 10),
		},
	}
}

// RecoverSigner returns the address that produced sig over the EIP-712 hash of typedData. Both
// the {0, 1} and the wallet {27, 28} recovery id conventions are accepted.
func RecoverSigner(typedData apitypes.TypedData, sig []byte) (common.Address, error) {
	if len(sig) != crypto.SignatureLength {
		return common.Address{}, fmt.Errorf("%w: signature must be %d bytes, got %d", ErrUnauthorized, crypto.SignatureLength, len(sig))
	}

	hash, _, err := apitypes.TypedDataAndHash(typedData)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to hash typed data: %w", err)
	}

	normalized := make([]byte, crypto.SignatureLength)
	copy(normalized, sig)
	if normalized[64] >= 27 {
		normalized[64] -= 27
	}

	pub, err := crypto.SigToPub(hash, normalized)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %w", ErrUnauthorized, err)
	}

	return crypto.PubkeyToAddress(*pub), nil
}
