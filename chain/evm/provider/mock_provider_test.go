package provider

import (
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_MockChainProvider_Initialize(t *testing.T) {
	t.Parallel()

	c, backend := newMockChain(t, TransactorFromMnemonic(testMnemonic, 0))
	require.NotNil(t, backend)

	assert.Equal(t, MockChainSelector, c.Selector)
	assert.Equal(t, "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266", c.DeployerKey.From.Hex())
	require.Len(t, c.Users, 1)

	id, err := c.ChainID()
	require.NoError(t, err)
	assert.Equal(t, backend.ChainID().String(), id.String())

	for _, from := range []*bind.TransactOpts{c.DeployerKey, c.Users[0]} {
		bal, berr := c.Client.BalanceAt(t.Context(), from.From, nil)
		require.NoError(t, berr)
		assert.Equal(t, prefundAmountWei.String(), bal.String())
	}

	w := c.DeployerWallet()
	require.NotNil(t, w)
	assert.Equal(t, c.DeployerKey.From, w.Address())
}

func Test_MockChainProvider_Defaults(t *testing.T) {
	t.Parallel()

	p := NewMockChainProvider(MockChainSelector, MockChainProviderConfig{})
	assert.Nil(t, p.Backend())

	c, err := p.Initialize(t.Context())
	require.NoError(t, err)
	require.NotNil(t, c.DeployerKey)
	assert.Empty(t, c.Users)
	assert.Equal(t, "Mock fhEVM Chain Provider", p.Name())

	again, err := p.Initialize(t.Context())
	require.NoError(t, err)
	assert.Equal(t, c.DeployerKey.From, again.DeployerKey.From)

	_, err = NewMockChainProvider(42, MockChainProviderConfig{}).Initialize(t.Context())
	require.Error(t, err)
}
