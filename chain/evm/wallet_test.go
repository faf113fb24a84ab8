package evm

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testTypedData() apitypes.TypedData {
	return apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain": {
				{Name: "name", Type: "string"},
				{Name: "version", Type: "string"},
				{Name: "chainId", Type: "uint256"},
			},
			"Ping": {
				{Name: "value", Type: "uint256"},
			},
		},
		PrimaryType: "Ping",
		Domain: apitypes.TypedDataDomain{
			Name:    "Test",
			Version: "1",
			ChainId: math.NewHexOrDecimal256(1337),
		},
		Message: apitypes.TypedDataMessage{
			"value": "42",
		},
	}
}

func Test_Wallet_SignTypedData(t *testing.T) {
	t.Parallel()

	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	opts, err := bind.NewKeyedTransactorWithChainID(key, big.NewInt(1337))
	require.NoError(t, err)

	w := &Wallet{
		Opts: opts,
		SignHash: func(hash []byte) ([]byte, error) {
			return crypto.Sign(hash, key)
		},
	}

	sig, err := w.SignTypedData(testTypedData())
	require.NoError(t, err)
	require.Len(t, sig, 65)
	assert.GreaterOrEqual(t, sig[64], byte(27))

	hash, _, err := apitypes.TypedDataAndHash(testTypedData())
	require.NoError(t, err)

	recoverable := append([]byte{}, sig...)
	recoverable[64] -= 27
	pub, err := crypto.SigToPub(hash, recoverable)
	require.NoError(t, err)
	assert.Equal(t, w.Address(), crypto.PubkeyToAddress(*pub))
}

func Test_Wallet_NoSigner(t *testing.T) {
	t.Parallel()

	var w *Wallet
	_, err := w.SignTypedData(testTypedData())
	require.ErrorIs(t, err, ErrNoSigner)

	_, err = w.TransactOpts()
	require.ErrorIs(t, err, ErrNoSigner)
	assert.Equal(t, [20]byte{}, [20]byte(w.Address()))
}
