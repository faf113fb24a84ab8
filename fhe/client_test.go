package fhe

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/encrypted-lottery/lottery-deployments/pkg/logger"
)

// mockGateway is a testify mock of the Gateway interface.
type mockGateway struct {
	mock.Mock
}

func (m *mockGateway) Metadata(ctx context.Context) (GatewayMetadata, error) {
	args := m.Called(ctx)

	return args.Get(0).(GatewayMetadata), args.Error(1)
}

func (m *mockGateway) UserDecrypt(ctx context.Context, req UserDecryptRequest) (map[Handle][]byte, error) {
	args := m.Called(ctx, req)
	if v := args.Get(0); v != nil {
		return v.(map[Handle][]byte), args.Error(1)
	}

	return nil, args.Error(1)
}

var (
	testToken    = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	testVerifier = common.HexToAddress("0x00000000000000000000000000000000000000bb")
	testMeta     = GatewayMetadata{ChainID: big.NewInt(1337), VerifyingContract: testVerifier}
)

func Test_ParseHandle(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		give    string
		want    Handle
		wantErr string
	}{
		{
			name: "zero handle",
			give: "0x0000000000000000000000000000000000000000000000000000000000000000",
			want: ZeroHandle,
		},
		{
			name: "non zero handle without prefix",
			give: "00000000000000000000000000000000000000000000000000000000000000ff",
			want: BytesToHandle([]byte{0xff}),
		},
		{
			name:    "too short",
			give:    "0x1234",
			wantErr: "invalid ciphertext handle",
		},
		{
			name:    "not hex",
			give:    "0xzz00000000000000000000000000000000000000000000000000000000000000",
			wantErr: "invalid ciphertext handle",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := ParseHandle(tt.give)
			if tt.wantErr != "" {
				require.ErrorContains(t, err, tt.wantErr)
				require.ErrorIs(t, err, ErrInvalidHandle)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func Test_Handle_TextRoundTrip(t *testing.T) {
	t.Parallel()

	h := BytesToHandle(crypto.Keccak256([]byte("balance")))
	text, err := h.MarshalText()
	require.NoError(t, err)

	var got Handle
	require.NoError(t, got.UnmarshalText(text))
	assert.Equal(t, h, got)
	assert.False(t, got.IsZero())
	assert.True(t, ZeroHandle.IsZero())
	assert.Len(t, h.Hex(), 66)
}

func Test_Keypair_SealOpen(t *testing.T) {
	t.Parallel()

	kp, err := GenerateKeypair()
	require.NoError(t, err)

	sealed, err := SealPlaintext(big.NewInt(77), kp.PublicKey)
	require.NoError(t, err)

	got, err := kp.OpenPlaintext(sealed)
	require.NoError(t, err)
	assert.Equal(t, int64(77), got.Int64())

	other, err := GenerateKeypair()
	require.NoError(t, err)
	_, err = other.OpenPlaintext(sealed)
	require.ErrorIs(t, err, ErrSealedValue)

	_, err = SealPlaintext(big.NewInt(-1), kp.PublicKey)
	require.Error(t, err)
}

func Test_Window(t *testing.T) {
	t.Parallel()

	now := time.Unix(1_700_000_000, 0)

	tests := []struct {
		name    string
		give    Window
		wantErr bool
	}{
		{name: "default window", give: NewWindow(now, DefaultDurationDays)},
		{name: "max window", give: NewWindow(now, MaxDurationDays)},
		{name: "zero duration", give: NewWindow(now, 0), wantErr: true},
		{name: "too long", give: NewWindow(now, MaxDurationDays+1), wantErr: true},
		{name: "missing start", give: Window{DurationDays: 1}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := tt.give.Validate()
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidWindow)
			} else {
				require.NoError(t, err)
			}
		})
	}

	w := NewWindow(now, 1)
	assert.True(t, w.Contains(now))
	assert.True(t, w.Contains(now.Add(23*time.Hour)))
	assert.False(t, w.Contains(now.Add(24*time.Hour)))
	assert.False(t, w.Contains(now.Add(-time.Second)))
}

func Test_RecoverSigner(t *testing.T) {
	t.Parallel()

	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	kp, err := GenerateKeypair()
	require.NoError(t, err)

	td := UserDecryptTypedData(
		Domain{ChainID: big.NewInt(1337), VerifyingContract: testVerifier},
		kp.PublicKey[:], []common.Address{testToken}, NewWindow(time.Now(), DefaultDurationDays),
	)

	hash, _, err := apitypes.TypedDataAndHash(td)
	require.NoError(t, err)
	sig, err := crypto.Sign(hash, key)
	require.NoError(t, err)

	got, err := RecoverSigner(td, sig)
	require.NoError(t, err)
	assert.Equal(t, crypto.PubkeyToAddress(key.PublicKey), got)

	sig[64] += 27
	got, err = RecoverSigner(td, sig)
	require.NoError(t, err)
	assert.Equal(t, crypto.PubkeyToAddress(key.PublicKey), got)

	_, err = RecoverSigner(td, sig[:10])
	require.ErrorIs(t, err, ErrUnauthorized)
}

func Test_Client_NotInitialized(t *testing.T) {
	t.Parallel()

	c := NewClient(nil, logger.Test(t))
	assert.False(t, c.Ready())

	require.ErrorIs(t, c.Init(t.Context()), ErrNotInitialized)

	_, err := c.CreateEIP712([32]byte{}, []common.Address{testToken}, NewWindow(time.Now(), 1))
	require.ErrorIs(t, err, ErrNotInitialized)

	_, err = c.UserDecrypt(t.Context(), nil, Keypair{}, nil, nil, common.Address{}, NewWindow(time.Now(), 1))
	require.ErrorIs(t, err, ErrNotInitialized)
}

func Test_Client_UserDecrypt(t *testing.T) {
	t.Parallel()

	user := common.HexToAddress("0x00000000000000000000000000000000000000cc")
	handle := BytesToHandle([]byte{1, 2, 3})
	window := NewWindow(time.Now(), DefaultDurationDays)

	kp, err := GenerateKeypair()
	require.NoError(t, err)
	sealed, err := SealPlaintext(big.NewInt(42), kp.PublicKey)
	require.NoError(t, err)

	gw := &mockGateway{}
	gw.On("Metadata", mock.Anything).Return(testMeta, nil)
	gw.On("UserDecrypt", mock.Anything, mock.MatchedBy(func(req UserDecryptRequest) bool {
		return req.User == user && len(req.Pairs) == 1 && req.Pairs[0].Handle == handle
	})).Return(map[Handle][]byte{handle: sealed}, nil)

	c := NewClient(gw, logger.Test(t))
	require.NoError(t, c.Init(t.Context()))
	require.True(t, c.Ready())

	td, err := c.CreateEIP712(kp.PublicKey, []common.Address{testToken}, window)
	require.NoError(t, err)
	assert.Equal(t, UserDecryptPrimaryType, td.PrimaryType)
	assert.Equal(t, testVerifier.Hex(), td.Domain.VerifyingContract)

	got, err := c.UserDecrypt(t.Context(),
		[]HandleContractPair{
			{Handle: handle, ContractAddress: testToken},
			{Handle: ZeroHandle, ContractAddress: testToken},
		},
		kp, make([]byte, 65), []common.Address{testToken}, user, window,
	)
	require.NoError(t, err)
	assert.Equal(t, int64(42), got[handle].Int64())
	assert.Equal(t, int64(0), got[ZeroHandle].Int64())
	gw.AssertExpectations(t)
}

func Test_Client_UserDecrypt_Errors(t *testing.T) {
	t.Parallel()

	user := common.HexToAddress("0x00000000000000000000000000000000000000cc")
	handle := BytesToHandle([]byte{9})
	window := NewWindow(time.Now(), DefaultDurationDays)

	kp, err := GenerateKeypair()
	require.NoError(t, err)

	t.Run("contract outside authorization", func(t *testing.T) {
		t.Parallel()

		gw := &mockGateway{}
		gw.On("Metadata", mock.Anything).Return(testMeta, nil)
		c := NewClient(gw, logger.Test(t))
		require.NoError(t, c.Init(t.Context()))

		_, err := c.UserDecrypt(t.Context(),
			[]HandleContractPair{{Handle: handle, ContractAddress: testToken}},
			kp, nil, []common.Address{testVerifier}, user, window,
		)
		require.ErrorIs(t, err, ErrUnauthorized)
		gw.AssertNotCalled(t, "UserDecrypt", mock.Anything, mock.Anything)
	})

	t.Run("gateway rejects", func(t *testing.T) {
		t.Parallel()

		gw := &mockGateway{}
		gw.On("Metadata", mock.Anything).Return(testMeta, nil)
		gw.On("UserDecrypt", mock.Anything, mock.Anything).Return(nil, errors.New("boom"))
		c := NewClient(gw, logger.Test(t))
		require.NoError(t, c.Init(t.Context()))

		_, err := c.UserDecrypt(t.Context(),
			[]HandleContractPair{{Handle: handle, ContractAddress: testToken}},
			kp, nil, []common.Address{testToken}, user, window,
		)
		require.ErrorContains(t, err, "boom")
	})

	t.Run("gateway omits handle", func(t *testing.T) {
		t.Parallel()

		gw := &mockGateway{}
		gw.On("Metadata", mock.Anything).Return(testMeta, nil)
		gw.On("UserDecrypt", mock.Anything, mock.Anything).Return(map[Handle][]byte{}, nil)
		c := NewClient(gw, logger.Test(t))
		require.NoError(t, c.Init(t.Context()))

		_, err := c.UserDecrypt(t.Context(),
			[]HandleContractPair{{Handle: handle, ContractAddress: testToken}},
			kp, nil, []common.Address{testToken}, user, window,
		)
		require.ErrorIs(t, err, ErrMissingValue)
	})
}
