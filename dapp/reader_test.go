package dapp

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_Reader(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	r := NewReader(f.chain.Client)

	tokens, err := r.ListSupportedTokens(t.Context(), f.lottery)
	require.NoError(t, err)
	assert.Equal(t, f.addresses(), tokens)

	md, err := r.TokenMetadata(t.Context(), tokens[0])
	require.NoError(t, err)
	assert.Equal(t, TokenMetadata{Name: "Confidential Tether USD", Symbol: "cUSDT"}, md)

	h, err := r.EncryptedBalance(t.Context(), tokens[0], f.chain.DeployerKey.From)
	require.NoError(t, err)
	assert.True(t, h.IsZero())
}

func Test_Reader_Errors(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	r := NewReader(f.chain.Client)
	nowhere := common.HexToAddress("0x00000000000000000000000000000000000000ff")

	_, err := r.ListSupportedTokens(t.Context(), common.Address{})
	require.ErrorIs(t, err, ErrConfiguration)

	_, err = r.ListSupportedTokens(t.Context(), nowhere)
	require.ErrorIs(t, err, ErrNetwork)

	_, err = r.TokenMetadata(t.Context(), nowhere)
	require.ErrorIs(t, err, ErrNetwork)

	_, err = r.EncryptedBalance(t.Context(), nowhere, f.chain.DeployerKey.From)
	require.ErrorIs(t, err, ErrNetwork)
}
