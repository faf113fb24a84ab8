package provider

import (
	"testing"
	"time"

	chainsel "github.com/smartcontractkit/chain-selectors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/encrypted-lottery/lottery-deployments/chain/evm/provider/rpcclient"
	"github.com/encrypted-lottery/lottery-deployments/pkg/logger"
)

func Test_RPCChainProviderConfig_validate(t *testing.T) {
	t.Parallel()

	rpc := rpcclient.RPC{
		Name:               "Test",
		HTTPURL:            "http://localhost:8545",
		PreferredURLScheme: rpcclient.URLSchemePreferenceHTTP,
	}
	confirm := ConfirmFuncGeth(10 * time.Millisecond)

	tests := []struct {
		name    string
		config  RPCChainProviderConfig
		wantErr []string
	}{
		{
			name: "valid config",
			config: RPCChainProviderConfig{
				DeployerSignerGen: TransactorRandom(),
				RPCs:              []rpcclient.RPC{rpc},
				ConfirmFunctor:    confirm,
			},
		},
		{
			name: "missing deployer signer generator",
			config: RPCChainProviderConfig{
				RPCs:           []rpcclient.RPC{rpc},
				ConfirmFunctor: confirm,
			},
			wantErr: []string{"deployer signer generator is required"},
		},
		{
			name:    "everything missing",
			config:  RPCChainProviderConfig{},
			wantErr: []string{"deployer signer generator is required", "confirm functor is required", "at least one RPC is required"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := tt.config.validate()
			if len(tt.wantErr) == 0 {
				require.NoError(t, err)

				return
			}
			for _, want := range tt.wantErr {
				require.ErrorContains(t, err, want)
			}
		})
	}
}

func Test_RPCChainProvider_Initialize(t *testing.T) {
	t.Parallel()

	srv := newFakeRPCServer(t)
	selector := chainsel.ETHEREUM_TESTNET_SEPOLIA.Selector

	p := NewRPCChainProvider(selector, RPCChainProviderConfig{
		DeployerSignerGen: TransactorFromMnemonic(testMnemonic, 0),
		RPCs: []rpcclient.RPC{{
			Name: "fake", HTTPURL: srv.URL, PreferredURLScheme: rpcclient.URLSchemePreferenceHTTP,
		}},
		ConfirmFunctor: ConfirmFuncGeth(time.Second),
		UsersSignerGen: []SignerGenerator{TransactorRandom()},
		Logger:         logger.Test(t),
	})

	got, err := p.Initialize(t.Context())
	require.NoError(t, err)
	assert.Equal(t, selector, got.Selector)
	assert.Equal(t, "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266", got.DeployerKey.From.Hex())
	assert.Len(t, got.Users, 1)
	require.NotNil(t, got.Confirm)
	require.NotNil(t, got.SignHash)
	assert.Equal(t, selector, p.ChainSelector())
	assert.Equal(t, "EVM RPC Chain Provider", p.Name())

	again, err := p.Initialize(t.Context())
	require.NoError(t, err)
	assert.Same(t, got.DeployerKey, again.DeployerKey)
}

func Test_RPCChainProvider_Initialize_Errors(t *testing.T) {
	t.Parallel()

	srv := newFakeRPCServer(t)
	rpcs := []rpcclient.RPC{{Name: "fake", HTTPURL: srv.URL}}

	tests := []struct {
		name         string
		giveSelector uint64
		giveConfig   RPCChainProviderConfig
		wantErr      string
	}{
		{
			name:         "invalid config",
			giveSelector: chainsel.ETHEREUM_TESTNET_SEPOLIA.Selector,
			giveConfig:   RPCChainProviderConfig{RPCs: rpcs},
			wantErr:      "failed to validate provider config",
		},
		{
			name:         "unknown selector",
			giveSelector: 999,
			giveConfig:   RPCChainProviderConfig{DeployerSignerGen: TransactorRandom(), RPCs: rpcs, ConfirmFunctor: ConfirmFuncGeth(time.Second)},
			wantErr:      "failed to get chain ID from selector 999",
		},
		{
			name:         "bad deployer key",
			giveSelector: chainsel.ETHEREUM_TESTNET_SEPOLIA.Selector,
			giveConfig:   RPCChainProviderConfig{DeployerSignerGen: TransactorFromRaw("bad"), RPCs: rpcs, ConfirmFunctor: ConfirmFuncGeth(time.Second)},
			wantErr:      "failed to generate deployer key",
		},
		{
			name:         "bad user key",
			giveSelector: chainsel.ETHEREUM_TESTNET_SEPOLIA.Selector,
			giveConfig: RPCChainProviderConfig{
				DeployerSignerGen: TransactorRandom(), RPCs: rpcs, ConfirmFunctor: ConfirmFuncGeth(time.Second),
				UsersSignerGen: []SignerGenerator{TransactorFromRaw("bad")},
			},
			wantErr: "failed to generate user transactor",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			tt.giveConfig.Logger = logger.Test(t)
			_, err := NewRPCChainProvider(tt.giveSelector, tt.giveConfig).Initialize(t.Context())
			require.ErrorContains(t, err, tt.wantErr)
		})
	}
}
