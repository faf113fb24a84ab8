package dapp

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"math/big"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	_ "github.com/proullon/ramsql/driver"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/encrypted-lottery/lottery-deployments/chain/evm"
	"github.com/encrypted-lottery/lottery-deployments/chain/evm/provider"
	"github.com/encrypted-lottery/lottery-deployments/contracts"
	"github.com/encrypted-lottery/lottery-deployments/dapp/state"
	"github.com/encrypted-lottery/lottery-deployments/datastore"
	"github.com/encrypted-lottery/lottery-deployments/deployment"
	"github.com/encrypted-lottery/lottery-deployments/drawlog"
	"github.com/encrypted-lottery/lottery-deployments/engine/test/fhevm"
	"github.com/encrypted-lottery/lottery-deployments/fhe"
	"github.com/encrypted-lottery/lottery-deployments/operations"
	"github.com/encrypted-lottery/lottery-deployments/pkg/logger"
)

type fixture struct {
	chain   evm.Chain
	backend *fhevm.Backend
	lottery common.Address
	tokens  []TokenConfig
}

// newFixture deploys the tokens and the lottery on a fresh mock chain.
func newFixture(t *testing.T) fixture {
	t.Helper()

	p := provider.NewMockChainProvider(provider.MockChainSelector, provider.MockChainProviderConfig{
		Logger: logger.Test(t),
	})
	c, err := p.Initialize(t.Context())
	require.NoError(t, err)

	env := deployment.NewEnvironment("test", t.Context, logger.Test(t), c, fhevm.Artifacts(),
		datastore.NewMemoryAddressRefStore(), operations.NewMemoryReporter())
	out, err := deployment.Deploy(env, deployment.DefaultDeployInput())
	require.NoError(t, err)

	tokens := make([]TokenConfig, 0, len(out.Tokens))
	for _, d := range out.Tokens {
		tokens = append(tokens, TokenConfig{
			Key:     contracts.TokenKey(d.ContractName),
			Title:   contracts.TokenTitles[d.ContractName],
			Address: d.Address,
		})
	}

	return fixture{chain: c, backend: p.Backend(), lottery: out.Lottery.Address, tokens: tokens}
}

func (f fixture) config(t *testing.T) Config {
	t.Helper()

	return Config{
		Client:        f.chain.Client,
		Confirm:       f.chain.Confirm,
		ChainSelector: f.chain.Selector,
		Lottery:       f.lottery,
		Tokens:        f.tokens,
		Decrypter:     f.decrypter(t),
		Logger:        logger.Test(t),
	}
}

func (f fixture) decrypter(t *testing.T) *fhe.Client {
	t.Helper()

	client := fhe.NewClient(f.backend.Gateway(), logger.Test(t))
	require.NoError(t, client.Init(t.Context()))

	return client
}

func (f fixture) addresses() []common.Address {
	out := make([]common.Address, 0, len(f.tokens))
	for _, tc := range f.tokens {
		out = append(out, tc.Address)
	}

	return out
}

type noticeRecorder struct {
	mu      sync.Mutex
	notices []Notice
}

func (r *noticeRecorder) Notify(n Notice) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, n)
}

func (r *noticeRecorder) last() Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.notices) == 0 {
		return Notice{}
	}

	return r.notices[len(r.notices)-1]
}

type countingDecrypter struct {
	DecryptClient
	calls atomic.Int32
}

func (c *countingDecrypter) UserDecrypt(
	ctx context.Context,
	pairs []fhe.HandleContractPair,
	keypair fhe.Keypair,
	signature []byte,
	contracts []common.Address,
	user common.Address,
	window fhe.Window,
) (map[fhe.Handle]*big.Int, error) {
	c.calls.Add(1)

	return c.DecryptClient.UserDecrypt(ctx, pairs, keypair, signature, contracts, user, window)
}

// gatedClient blocks balance reads until released or, unless ignoreCancel is set, cancelled.
type gatedClient struct {
	evm.OnchainClient
	entered      chan struct{}
	release      chan struct{}
	ignoreCancel bool
}

func (g *gatedClient) CallContract(ctx context.Context, call ethereum.CallMsg, block *big.Int) ([]byte, error) {
	if len(call.Data) >= 4 && bytes.Equal(call.Data[:4], contracts.TokenABI.Methods["confidentialBalanceOf"].ID) {
		select {
		case g.entered <- struct{}{}:
		default:
		}
		if g.ignoreCancel {
			<-g.release
		} else {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-g.release:
			}
		}
	}

	return g.OnchainClient.CallContract(ctx, call, block)
}

func newOrchestrator(t *testing.T, cfg Config) *Orchestrator {
	t.Helper()

	o, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(o.Close)

	return o
}

func Test_Orchestrator_LoadTokens(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	o := newOrchestrator(t, f.config(t))

	require.NoError(t, o.LoadTokens(t.Context()))

	s := o.State()
	assert.False(t, s.Loading)
	assert.Empty(t, s.LoadError)
	require.Len(t, s.Tokens, len(f.tokens))
	for i, tok := range s.Tokens {
		assert.Equal(t, f.tokens[i].Address, tok.Address)
		assert.Equal(t, f.tokens[i].Title, tok.Title)
		assert.True(t, strings.HasPrefix(tok.Name, "Confidential "))
		assert.Equal(t, "c"+f.tokens[i].Key, tok.Symbol)
		assert.Equal(t, state.PhaseUnknown, tok.Phase)
	}
}

func Test_Orchestrator_LoadTokens_Fallback(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	tests := []struct {
		name       string
		lottery    common.Address
		tokens     []TokenConfig
		wantKind   error
		wantTokens int
	}{
		{
			name:       "lottery not configured",
			lottery:    common.Address{},
			tokens:     f.tokens,
			wantKind:   ErrConfiguration,
			wantTokens: len(f.tokens),
		},
		{
			name:       "supported token not configured",
			lottery:    f.lottery,
			tokens:     f.tokens[:3],
			wantKind:   ErrConfiguration,
			wantTokens: 3,
		},
		{
			name:       "no contract at lottery address",
			lottery:    common.HexToAddress("0x00000000000000000000000000000000000000ff"),
			tokens:     f.tokens,
			wantKind:   ErrNetwork,
			wantTokens: len(f.tokens),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			notices := &noticeRecorder{}
			cfg := f.config(t)
			cfg.Lottery = tt.lottery
			cfg.Tokens = tt.tokens
			cfg.Notifier = notices
			o := newOrchestrator(t, cfg)

			err := o.LoadTokens(t.Context())
			require.ErrorIs(t, err, tt.wantKind)

			s := o.State()
			assert.False(t, s.Loading)
			assert.NotEmpty(t, s.LoadError)
			require.Len(t, s.Tokens, tt.wantTokens)
			for i, tok := range s.Tokens {
				assert.Equal(t, tt.tokens[i].Key, tok.Name)
				assert.Equal(t, tt.tokens[i].Key, tok.Symbol)
				assert.Equal(t, tt.tokens[i].Title, tok.Title)
			}
			assert.Equal(t, SeverityError, notices.last().Severity)
		})
	}
}

func Test_Orchestrator_FullSession(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	db, err := sql.Open("ramsql", t.Name())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	draws := drawlog.NewSQLStore(db, logger.Test(t))
	require.NoError(t, draws.Migrate(t.Context()))

	decrypter := &countingDecrypter{DecryptClient: f.decrypter(t)}
	notices := &noticeRecorder{}
	cfg := f.config(t)
	cfg.Decrypter = decrypter
	cfg.DrawLog = draws
	cfg.Notifier = notices
	cfg.AutoRefresh = true
	o := newOrchestrator(t, cfg)

	var staleSignals atomic.Int32
	require.NoError(t, o.OnBalancesStale(func(context.Context) { staleSignals.Add(1) }))

	require.NoError(t, o.LoadTokens(t.Context()))
	player := f.chain.DeployerWallet()
	require.NoError(t, o.ConnectWallet(t.Context(), player))

	// Fresh accounts hold the zero ciphertext, which reads as 0 without a decrypt request.
	for _, tok := range o.State().Tokens {
		require.NotNil(t, tok.Handle)
		assert.True(t, tok.Handle.IsZero())
		assert.Equal(t, state.PhaseZeroShortcut, tok.Phase)

		v, derr := o.Decrypt(t.Context(), tok.Address)
		require.NoError(t, derr)
		assert.Equal(t, "0", v.String())
	}
	assert.Zero(t, decrypter.calls.Load())

	record, err := o.Draw(t.Context())
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.GreaterOrEqual(t, record.Amount.Int64(), int64(1))
	assert.LessOrEqual(t, record.Amount.Int64(), int64(100))
	assert.Contains(t, f.addresses(), record.TokenAddress)
	assert.Equal(t, player.Address(), record.Player)
	assert.NotEqual(t, state.UnknownTokenTitle, record.TokenTitle)
	assert.Equal(t, SeveritySuccess, notices.last().Severity)

	s := o.State()
	assert.Equal(t, state.DrawPhaseSettled, s.Draw.Phase)
	require.Len(t, s.History, 1)
	assert.Equal(t, *record, s.History[0])

	// The stale signal refreshed balances, so the rewarded token holds a new handle.
	rewarded, ok := s.Token(record.TokenAddress)
	require.True(t, ok)
	require.NotNil(t, rewarded.Handle)
	assert.False(t, rewarded.Handle.IsZero())
	assert.Equal(t, state.PhaseEncryptedFetched, rewarded.Phase)
	o.WaitStaleHandlers()
	assert.GreaterOrEqual(t, staleSignals.Load(), int32(3))

	value, err := o.Decrypt(t.Context(), record.TokenAddress)
	require.NoError(t, err)
	assert.Equal(t, record.Amount.String(), value.String())
	assert.Equal(t, int32(1), decrypter.calls.Load())

	decrypted, ok := o.State().Token(record.TokenAddress)
	require.True(t, ok)
	got, ok := decrypted.DecryptedValue()
	require.True(t, ok)
	assert.Equal(t, record.Amount.String(), got.String())

	logged, err := draws.Recent(t.Context(), drawlog.Query{
		ChainSelector: f.chain.Selector,
		Lottery:       f.lottery,
		Player:        player.Address(),
		Limit:         10,
	})
	require.NoError(t, err)
	require.Len(t, logged, 1)
	assert.Equal(t, record.TxHash, logged[0].TxHash)
	assert.Equal(t, f.lottery, logged[0].Lottery)
	assert.Equal(t, record.Amount.String(), logged[0].Amount.String())

	o.DisconnectWallet()
	for _, tok := range o.State().Tokens {
		assert.Nil(t, tok.Handle)
		assert.Nil(t, tok.Decrypted)
	}
}

func Test_Orchestrator_HistoryKeepsSixNewest(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	o := newOrchestrator(t, f.config(t))
	require.NoError(t, o.LoadTokens(t.Context()))
	require.NoError(t, o.ConnectWallet(t.Context(), f.chain.DeployerWallet()))

	var hashes []common.Hash
	for range 8 {
		r, err := o.Draw(t.Context())
		require.NoError(t, err)
		hashes = append(hashes, r.TxHash)
	}

	history := o.State().History
	require.Len(t, history, state.HistoryLimit)
	slices.Reverse(hashes)
	for i, r := range history {
		assert.Equal(t, hashes[i], r.TxHash)
	}
}

func Test_Orchestrator_Decrypt_Preconditions(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	// Give the deployer an encrypted balance first.
	seed := newOrchestrator(t, f.config(t))
	require.NoError(t, seed.LoadTokens(t.Context()))
	require.NoError(t, seed.ConnectWallet(t.Context(), f.chain.DeployerWallet()))
	record, err := seed.Draw(t.Context())
	require.NoError(t, err)

	watchOnly := &evm.Wallet{Opts: f.chain.DeployerKey}

	tests := []struct {
		name      string
		decrypter DecryptClient
		wallet    *evm.Wallet
		refresh   bool
		wantKind  error
		wantText  Message
	}{
		{
			name:     "wallet not connected",
			wantKind: ErrAuthorization,
			wantText: MsgConnectToDecrypt,
		},
		{
			name:     "balance not fetched",
			wallet:   f.chain.DeployerWallet(),
			wantKind: ErrNoEncryptedBalance,
			wantText: MsgNoEncryptedBalance,
		},
		{
			name:      "client not initialized",
			decrypter: fhe.NewClient(f.backend.Gateway(), logger.Test(t)),
			wallet:    f.chain.DeployerWallet(),
			refresh:   true,
			wantKind:  ErrSDKNotReady,
			wantText:  MsgSDKInitializing,
		},
		{
			name:     "no signer",
			wallet:   watchOnly,
			refresh:  true,
			wantKind: ErrAuthorization,
			wantText: MsgSignerRequired,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			notices := &noticeRecorder{}
			cfg := f.config(t)
			cfg.Notifier = notices
			if tt.decrypter != nil {
				cfg.Decrypter = tt.decrypter
			}
			o := newOrchestrator(t, cfg)
			require.NoError(t, o.LoadTokens(t.Context()))
			if tt.wallet != nil {
				require.NoError(t, o.ConnectWallet(t.Context(), tt.wallet))
			}
			if tt.refresh {
				require.NoError(t, o.RefreshBalances(t.Context()))
			}

			_, err := o.Decrypt(t.Context(), record.TokenAddress)
			require.ErrorIs(t, err, tt.wantKind)

			var de *Error
			require.ErrorAs(t, err, &de)
			assert.Equal(t, tt.wantText, de.Message)
			assert.Equal(t, SeverityError, notices.last().Severity)
			assert.Equal(t, string(tt.wantText), notices.last().Text)
		})
	}
}

func Test_Orchestrator_Decrypt_Unauthorized(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	o := newOrchestrator(t, f.config(t))
	require.NoError(t, o.LoadTokens(t.Context()))
	require.NoError(t, o.ConnectWallet(t.Context(), f.chain.DeployerWallet()))
	record, err := o.Draw(t.Context())
	require.NoError(t, err)
	require.NoError(t, o.RefreshBalances(t.Context()))

	// A signer of another account is not allowed by the ACL.
	other, err := provider.Wallet(provider.TransactorRandom(), f.backend.ChainID())
	require.NoError(t, err)
	impostor := &evm.Wallet{Opts: f.chain.DeployerKey, SignHash: other.SignHash}
	require.NoError(t, o.ConnectWallet(t.Context(), impostor))

	_, err = o.Decrypt(t.Context(), record.TokenAddress)
	require.ErrorIs(t, err, ErrAuthorization)

	tok, ok := o.State().Token(record.TokenAddress)
	require.True(t, ok)
	assert.Equal(t, state.PhaseDecryptFailed, tok.Phase)
	assert.NotEmpty(t, tok.Err)
}

func Test_Orchestrator_Draw_Guards(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	tests := []struct {
		name     string
		lottery  common.Address
		wallet   *evm.Wallet
		wantKind error
		wantText Message
	}{
		{
			name:     "wallet not connected",
			lottery:  f.lottery,
			wantKind: ErrAuthorization,
			wantText: MsgConnectToDraw,
		},
		{
			name:     "lottery not configured",
			wallet:   f.chain.DeployerWallet(),
			wantKind: ErrConfiguration,
			wantText: MsgLotteryNotConfigured,
		},
		{
			name:     "wallet cannot sign",
			lottery:  f.lottery,
			wallet:   &evm.Wallet{Opts: &bind.TransactOpts{From: f.chain.DeployerKey.From}},
			wantKind: ErrAuthorization,
			wantText: MsgNoDrawSigner,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := f.config(t)
			cfg.Lottery = tt.lottery
			o := newOrchestrator(t, cfg)
			if tt.wallet != nil {
				require.NoError(t, o.ConnectWallet(t.Context(), tt.wallet))
			}

			_, err := o.Draw(t.Context())
			require.ErrorIs(t, err, tt.wantKind)

			var de *Error
			require.ErrorAs(t, err, &de)
			assert.Equal(t, tt.wantText, de.Message)
			assert.Equal(t, state.DrawPhaseIdle, o.State().Draw.Phase)
		})
	}
}

func Test_Orchestrator_Draw_SingleInFlight(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	release := make(chan struct{})
	cfg := f.config(t)
	cfg.Confirm = func(tx *types.Transaction) (*types.Receipt, error) {
		<-release
		return f.chain.Confirm(tx)
	}
	o := newOrchestrator(t, cfg)
	require.NoError(t, o.LoadTokens(t.Context()))
	require.NoError(t, o.ConnectWallet(t.Context(), f.chain.DeployerWallet()))

	done := make(chan error, 1)
	go func() {
		_, err := o.Draw(t.Context())
		done <- err
	}()

	require.Eventually(t, func() bool {
		return o.State().Draw.Phase == state.DrawPhaseAwaitingConfirmation
	}, 5*time.Second, 5*time.Millisecond)

	_, err := o.Draw(t.Context())
	require.ErrorIs(t, err, ErrDrawInProgress)

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, state.DrawPhaseSettled, o.State().Draw.Phase)
	assert.Len(t, o.State().History, 1)
}

func Test_Orchestrator_Draw_Failures(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	tests := []struct {
		name      string
		confirm   func(tx *types.Transaction) (*types.Receipt, error)
		wantKind  error
		wantPhase state.DrawPhase
	}{
		{
			name: "not confirmed",
			confirm: func(*types.Transaction) (*types.Receipt, error) {
				return nil, errors.New("timed out waiting for receipt")
			},
			wantKind:  ErrTransaction,
			wantPhase: state.DrawPhaseFailed,
		},
		{
			name: "reverted",
			confirm: func(tx *types.Transaction) (*types.Receipt, error) {
				r, err := f.chain.Confirm(tx)
				if err != nil {
					return r, err
				}
				failed := *r
				failed.Status = types.ReceiptStatusFailed

				return &failed, nil
			},
			wantKind:  ErrTransaction,
			wantPhase: state.DrawPhaseFailed,
		},
		{
			name: "no reward event",
			confirm: func(tx *types.Transaction) (*types.Receipt, error) {
				r, err := f.chain.Confirm(tx)
				if err != nil {
					return r, err
				}
				stripped := *r
				stripped.Logs = nil

				return &stripped, nil
			},
			wantKind:  ErrEventNotFound,
			wantPhase: state.DrawPhaseSettled,
		},
	}

	// Subtests share the deployer account, so they run sequentially to keep nonces in order.
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			notices := &noticeRecorder{}
			cfg := f.config(t)
			cfg.Confirm = tt.confirm
			cfg.Notifier = notices
			o := newOrchestrator(t, cfg)
			require.NoError(t, o.LoadTokens(t.Context()))
			require.NoError(t, o.ConnectWallet(t.Context(), f.chain.DeployerWallet()))

			record, err := o.Draw(t.Context())
			require.ErrorIs(t, err, tt.wantKind)
			assert.Nil(t, record)

			s := o.State()
			assert.Equal(t, tt.wantPhase, s.Draw.Phase)
			assert.Empty(t, s.History)
			assert.Equal(t, SeverityError, notices.last().Severity)
		})
	}
}

func Test_Orchestrator_RefreshBalances_FallbackList(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	cfg := f.config(t)
	cfg.Lottery = common.Address{}
	cfg.Tokens = append(slices.Clone(f.tokens), TokenConfig{Key: "TBD", Title: "Not deployed yet"})
	o := newOrchestrator(t, cfg)

	require.ErrorIs(t, o.LoadTokens(t.Context()), ErrConfiguration)
	require.NoError(t, o.ConnectWallet(t.Context(), f.chain.DeployerWallet()))
	require.NoError(t, o.RefreshBalances(t.Context()))

	s := o.State()
	require.Len(t, s.Tokens, len(f.tokens)+1)
	for _, tok := range s.Tokens[:len(f.tokens)] {
		require.NotNil(t, tok.Handle)
		assert.Equal(t, state.PhaseZeroShortcut, tok.Phase)
	}
	assert.Nil(t, s.Tokens[len(f.tokens)].Handle, "unconfigured token balance is cleared")
}

func Test_Orchestrator_RefreshBalances_DiscardedAfterDisconnect(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	gated := &gatedClient{
		OnchainClient: f.chain.Client,
		entered:       make(chan struct{}, 1),
		release:       make(chan struct{}),
	}
	cfg := f.config(t)
	cfg.Client = gated
	o := newOrchestrator(t, cfg)
	require.NoError(t, o.LoadTokens(t.Context()))
	require.NoError(t, o.ConnectWallet(t.Context(), f.chain.DeployerWallet()))

	done := make(chan error, 1)
	go func() {
		done <- o.RefreshBalances(t.Context())
	}()

	<-gated.entered
	o.DisconnectWallet()

	require.NoError(t, <-done)
	s := o.State()
	assert.False(t, s.Fetching)
	for _, tok := range s.Tokens {
		assert.Nil(t, tok.Handle)
	}
}

func Test_Orchestrator_Close_DuringAutoRefresh(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	gated := &gatedClient{
		OnchainClient: f.chain.Client,
		entered:       make(chan struct{}, 1),
		release:       make(chan struct{}),
		ignoreCancel:  true,
	}
	cfg := f.config(t)
	cfg.Client = gated
	cfg.AutoRefresh = true
	o := newOrchestrator(t, cfg)
	require.NoError(t, o.LoadTokens(t.Context()))

	connected := make(chan error, 1)
	go func() {
		connected <- o.ConnectWallet(t.Context(), f.chain.DeployerWallet())
	}()
	<-gated.entered

	closed := make(chan struct{})
	go func() {
		o.Close()
		close(closed)
	}()
	select {
	case <-closed:
	case <-time.After(2 * time.Second):
		t.Fatal("Close waited for the in-flight balance fetch")
	}

	close(gated.release)
	require.NoError(t, <-connected)
	for _, tok := range o.State().Tokens {
		assert.Nil(t, tok.Handle)
	}

	// Closed sessions ignore later stale signals.
	o.MarkBalancesStale(t.Context())
	for _, tok := range o.State().Tokens {
		assert.Nil(t, tok.Handle)
	}
}

func Test_Orchestrator_OnBalancesStale_Reentrant(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	cfg := f.config(t)
	cfg.AutoRefresh = true
	o := newOrchestrator(t, cfg)

	var reloaded atomic.Bool
	handled := make(chan struct{})
	require.NoError(t, o.OnBalancesStale(func(ctx context.Context) {
		if reloaded.CompareAndSwap(false, true) {
			_ = o.LoadTokens(ctx)
			close(handled)
		}
	}))

	require.NoError(t, o.LoadTokens(t.Context()))
	select {
	case <-handled:
	case <-time.After(5 * time.Second):
		t.Fatal("stale handler calling back into the orchestrator did not return")
	}
	o.WaitStaleHandlers()
	assert.Len(t, o.State().Tokens, len(f.tokens))
}

func Test_Config_Validate(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{
			name:   "valid",
			mutate: func(*Config) {},
		},
		{
			name: "missing client and confirm",
			mutate: func(c *Config) {
				c.Client = nil
				c.Confirm = nil
			},
			wantErr: "missing client, confirm function",
		},
		{
			name: "duplicate token",
			mutate: func(c *Config) {
				c.Tokens = append(slices.Clone(c.Tokens), c.Tokens[0])
			},
			wantErr: "is configured twice",
		},
		{
			name: "token without key",
			mutate: func(c *Config) {
				c.Tokens = []TokenConfig{{Address: f.tokens[0].Address}}
			},
			wantErr: "has no key",
		},
		{
			name: "window too long",
			mutate: func(c *Config) {
				c.DecryptDurationDays = fhe.MaxDurationDays + 1
			},
			wantErr: "decrypt duration",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := f.config(t)
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, ErrConfiguration)
			require.ErrorContains(t, err, tt.wantErr)
		})
	}
}
