package provider

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_NewKMSSigner(t *testing.T) {
	t.Parallel()

	signer, err := NewKMSSigner("lottery-deployer", "eu-west-1", "")
	require.NoError(t, err)
	require.NotNil(t, signer.client)

	_, err = NewKMSSigner("", "eu-west-1", "")
	require.ErrorContains(t, err, "KMS key ID is required")
}

func Test_KMSSigner_PublicKey(t *testing.T) {
	t.Parallel()

	client := newFakeKMSClient(t)
	signer := newKMSSignerWithClient(client, "key")

	addr, err := signer.Address()
	require.NoError(t, err)
	assert.Equal(t, crypto.PubkeyToAddress(client.key.PublicKey), addr)

	// The key is cached after the first fetch.
	client.pubKeyErr = assert.AnError
	_, err = signer.PublicKey()
	require.NoError(t, err)

	_, err = newKMSSignerWithClient(client, "key").PublicKey()
	require.ErrorContains(t, err, "cannot get public key from KMS for KeyId=key")
}

func Test_KMSSigner_SignHash(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		highS bool
	}{
		{name: "canonical signature"},
		{name: "high S is normalized", highS: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			client := newFakeKMSClient(t)
			client.highS = tt.highS
			signer := newKMSSignerWithClient(client, "key")

			hash := crypto.Keccak256([]byte("draw"))
			sig, err := signer.SignHash(hash)
			require.NoError(t, err)
			require.Len(t, sig, 65)
			assert.LessOrEqual(t, sig[64], byte(1))

			pub, err := crypto.SigToPub(hash, sig)
			require.NoError(t, err)
			assert.Equal(t, crypto.PubkeyToAddress(client.key.PublicKey), crypto.PubkeyToAddress(*pub))
		})
	}
}

func Test_KMSSigner_SignHash_Errors(t *testing.T) {
	t.Parallel()

	client := newFakeKMSClient(t)
	client.signErr = assert.AnError
	_, err := newKMSSignerWithClient(client, "key").SignHash(make([]byte, 32))
	require.ErrorContains(t, err, "call to kms.Sign() failed")

	_, err = kmsToEVMSig([]byte("not der"), crypto.FromECDSAPub(&client.key.PublicKey), make([]byte, 32))
	require.ErrorContains(t, err, "failed to unmarshal KMS signature")
}

func Test_KMSSigner_TransactOpts(t *testing.T) {
	t.Parallel()

	client := newFakeKMSClient(t)
	signer := newKMSSignerWithClient(client, "key")

	_, err := signer.TransactOpts(t.Context(), nil)
	require.ErrorContains(t, err, "chainID is required")

	opts, err := signer.TransactOpts(t.Context(), testChainID)
	require.NoError(t, err)
	require.Equal(t, crypto.PubkeyToAddress(client.key.PublicKey), opts.From)

	to := common.HexToAddress("0x1")
	tx := types.NewTx(&types.DynamicFeeTx{ChainID: testChainID, Nonce: 3, To: &to, Gas: 21000})
	signed, err := opts.Signer(opts.From, tx)
	require.NoError(t, err)

	sender, err := types.Sender(types.LatestSignerForChainID(testChainID), signed)
	require.NoError(t, err)
	assert.Equal(t, opts.From, sender)

	_, err = opts.Signer(to, tx)
	require.Error(t, err)
}
