package fhevm

import (
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/encrypted-lottery/lottery-deployments/chain/evm"
	"github.com/encrypted-lottery/lottery-deployments/contracts"
	"github.com/encrypted-lottery/lottery-deployments/fhe"
	"github.com/encrypted-lottery/lottery-deployments/pkg/logger"
)

func testWallet(acc testAccount) *evm.Wallet {
	return &evm.Wallet{
		Opts: acc.opts,
		SignHash: func(hash []byte) ([]byte, error) {
			return crypto.Sign(hash, acc.key)
		},
	}
}

// drawOnce runs a draw for player and returns the reward and the player's balance handle of the
// rewarded token.
func drawOnce(t *testing.T, b *Backend, lotteryAddr common.Address, player testAccount) (*contracts.LotteryReward, fhe.Handle) {
	t.Helper()

	tx, err := contracts.NewTokenLottery(lotteryAddr, b).Draw(player.opts)
	require.NoError(t, err)
	reward, err := contracts.FindLotteryReward(mustReceipt(t, b, tx).Logs)
	require.NoError(t, err)

	h, err := contracts.NewConfidentialToken(reward.Token, b).
		ConfidentialBalanceOf(&bind.CallOpts{Context: t.Context()}, player.opts.From)
	require.NoError(t, err)

	return reward, h
}

func Test_Gateway_DecryptRoundTrip(t *testing.T) {
	t.Parallel()

	b := newTestBackend(t)
	deployer := newTestAccount(t, b)
	player := newTestAccount(t, b)
	_, lotteryAddr := deployAll(t, b, deployer)

	reward, handle := drawOnce(t, b, lotteryAddr, player)
	require.False(t, handle.IsZero())

	client := fhe.NewClient(b.Gateway(), logger.Test(t))
	require.NoError(t, client.Init(t.Context()))

	kp, err := client.GenerateKeypair()
	require.NoError(t, err)

	window := fhe.NewWindow(time.Now(), fhe.DefaultDurationDays)
	contractsList := []common.Address{reward.Token}
	td, err := client.CreateEIP712(kp.PublicKey, contractsList, window)
	require.NoError(t, err)

	sig, err := testWallet(player).SignTypedData(td)
	require.NoError(t, err)

	got, err := client.UserDecrypt(t.Context(),
		[]fhe.HandleContractPair{{Handle: handle, ContractAddress: reward.Token}},
		kp, sig, contractsList, player.opts.From, window,
	)
	require.NoError(t, err)
	assert.Equal(t, reward.Amount.String(), got[handle].String())
}

func Test_Gateway_Rejections(t *testing.T) {
	t.Parallel()

	b := newTestBackend(t)
	deployer := newTestAccount(t, b)
	player := newTestAccount(t, b)
	other := newTestAccount(t, b)
	_, lotteryAddr := deployAll(t, b, deployer)
	reward, handle := drawOnce(t, b, lotteryAddr, player)

	kp, err := fhe.GenerateKeypair()
	require.NoError(t, err)

	meta, err := b.Gateway().Metadata(t.Context())
	require.NoError(t, err)
	assert.Equal(t, DecryptionVerifier, meta.VerifyingContract)
	domain := fhe.Domain{ChainID: meta.ChainID, VerifyingContract: meta.VerifyingContract}

	request := func(t *testing.T, signer testAccount, user common.Address, contractsList []common.Address, window fhe.Window) fhe.UserDecryptRequest {
		t.Helper()

		td := fhe.UserDecryptTypedData(domain, kp.PublicKey[:], contractsList, window)
		sig, serr := testWallet(signer).SignTypedData(td)
		require.NoError(t, serr)

		return fhe.UserDecryptRequest{
			Pairs:             []fhe.HandleContractPair{{Handle: handle, ContractAddress: reward.Token}},
			PublicKey:         kp.PublicKey[:],
			Signature:         sig,
			ContractAddresses: contractsList,
			User:              user,
			Window:            window,
		}
	}

	valid := fhe.NewWindow(time.Now(), fhe.DefaultDurationDays)

	tests := []struct {
		name    string
		give    fhe.UserDecryptRequest
		wantErr string
	}{
		{
			name:    "signature from another account",
			give:    request(t, other, player.opts.From, []common.Address{reward.Token}, valid),
			wantErr: "decryption not authorized",
		},
		{
			name:    "user not in ACL",
			give:    request(t, other, other.opts.From, []common.Address{reward.Token}, valid),
			wantErr: "is not allowed to decrypt",
		},
		{
			name:    "expired window",
			give:    request(t, player, player.opts.From, []common.Address{reward.Token}, fhe.NewWindow(time.Now().Add(-48*time.Hour), 1)),
			wantErr: "outside its validity window",
		},
		{
			name:    "contract outside authorization",
			give:    request(t, player, player.opts.From, []common.Address{lotteryAddr}, valid),
			wantErr: "is not part of the authorization",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := b.Gateway().UserDecrypt(t.Context(), tt.give)
			require.ErrorContains(t, err, tt.wantErr)
			require.ErrorIs(t, err, fhe.ErrUnauthorized)
		})
	}

	got, err := b.Gateway().UserDecrypt(t.Context(), request(t, player, player.opts.From, []common.Address{reward.Token}, valid))
	require.NoError(t, err)
	value, err := kp.OpenPlaintext(got[handle])
	require.NoError(t, err)
	assert.Equal(t, reward.Amount.String(), value.String())
}
