// Package dapp coordinates the lottery session: token listing, encrypted balances, user
// decryption and draws. State lives in a dapp/state Store and every user-facing failure is
// reported through a Notifier.
package dapp

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	evbus "github.com/asaskevich/EventBus"
	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/errgroup"

	"github.com/encrypted-lottery/lottery-deployments/chain/evm"
	"github.com/encrypted-lottery/lottery-deployments/dapp/state"
	"github.com/encrypted-lottery/lottery-deployments/pkg/logger"
)

// TopicBalancesStale is published asynchronously with the triggering context whenever the
// fetched balances no longer reflect the chain.
const TopicBalancesStale = "balances:stale"

// Orchestrator is safe for concurrent use.
type Orchestrator struct {
	cfg      Config
	reader   *Reader
	store    *state.Store
	bus      evbus.Bus
	lggr     logger.Logger
	notifier Notifier

	mu          sync.Mutex
	closed      bool
	wallet      *evm.Wallet
	fetchGen    uint64
	cancelFetch context.CancelFunc
}

// New creates an Orchestrator with an empty state.
func New(cfg Config) (*Orchestrator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()

	o := &Orchestrator{
		cfg:      cfg,
		reader:   NewReader(cfg.Client),
		store:    state.NewStore(state.New()),
		bus:      evbus.New(),
		lggr:     cfg.Logger.Named("dapp"),
		notifier: cfg.Notifier,
	}

	return o, nil
}

// Close stops reacting to stale balances and cancels an in-flight balance fetch. The cancelled
// fetch commits nothing.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.closed = true
	o.supersedeFetch()
}

func (o *Orchestrator) isClosed() bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	return o.closed
}

// State returns a snapshot of the session state.
func (o *Orchestrator) State() state.State {
	return o.store.Snapshot()
}

// Reader returns the chain reader used by the orchestrator.
func (o *Orchestrator) Reader() *Reader {
	return o.reader
}

// OnBalancesStale registers fn to run on its own goroutine every time balances are marked stale.
// fn may call back into the Orchestrator.
func (o *Orchestrator) OnBalancesStale(fn func(ctx context.Context)) error {
	if err := o.bus.SubscribeAsync(TopicBalancesStale, fn, false); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", TopicBalancesStale, err)
	}

	return nil
}

// WaitStaleHandlers blocks until every OnBalancesStale handler started so far has returned.
func (o *Orchestrator) WaitStaleHandlers() {
	o.bus.WaitAsync()
}

// MarkBalancesStale signals that balances must be fetched again. With AutoRefresh the balances are
// fetched before it returns. Nothing happens once the Orchestrator is closed.
func (o *Orchestrator) MarkBalancesStale(ctx context.Context) {
	if o.isClosed() {
		return
	}

	o.bus.Publish(TopicBalancesStale, ctx)
	if o.cfg.AutoRefresh {
		if err := o.RefreshBalances(ctx); err != nil {
			o.lggr.Warnw("Balance refresh failed", "error", err)
		}
	}
}

// Wallet returns the connected wallet, or nil.
func (o *Orchestrator) Wallet() *evm.Wallet {
	o.mu.Lock()
	defer o.mu.Unlock()

	return o.wallet
}

// Connected reports whether a wallet is connected.
func (o *Orchestrator) Connected() bool {
	return o.Wallet() != nil
}

// ConnectWallet makes w the account whose balances are shown and who draws.
func (o *Orchestrator) ConnectWallet(ctx context.Context, w *evm.Wallet) error {
	if w == nil || w.Address() == (common.Address{}) {
		return o.notifyErr(newError(ErrAuthorization, MsgConnectToDraw, evm.ErrNoSigner))
	}

	o.mu.Lock()
	previous := o.wallet
	o.wallet = w
	if previous != nil && previous.Address() != w.Address() {
		o.supersedeFetch()
		o.store.Dispatch(state.WalletDisconnected{})
	}
	o.mu.Unlock()

	o.lggr.Infow("Wallet connected", "address", w.Address().Hex())
	o.MarkBalancesStale(ctx)

	return nil
}

// DisconnectWallet clears every balance and drops the result of any fetch still running.
func (o *Orchestrator) DisconnectWallet() {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.wallet = nil
	o.supersedeFetch()
	o.store.Dispatch(state.WalletDisconnected{})
}

// supersedeFetch invalidates the in-flight fetch. o.mu must be held.
func (o *Orchestrator) supersedeFetch() {
	o.fetchGen++
	if o.cancelFetch != nil {
		o.cancelFetch()
		o.cancelFetch = nil
	}
}

// LoadTokens reads the supported tokens and their metadata. On failure the previous list is kept,
// or the configured tokens are listed under their keys.
func (o *Orchestrator) LoadTokens(ctx context.Context) error {
	o.store.Dispatch(state.TokensLoadStarted{})

	descriptors, err := o.loadDescriptors(ctx)
	if err != nil {
		o.lggr.Errorw("Failed to load tokens", "error", err)
		o.store.Dispatch(state.TokensLoadFailed{Err: err.Error(), Fallback: o.fallbackDescriptors()})

		return o.notifyErr(err)
	}

	o.store.Dispatch(state.TokensLoaded{Tokens: descriptors})
	o.lggr.Infow("Tokens loaded", "lottery", o.cfg.Lottery.Hex(), "count", len(descriptors))
	o.MarkBalancesStale(ctx)

	return nil
}

func (o *Orchestrator) loadDescriptors(ctx context.Context) ([]state.TokenDescriptor, error) {
	addresses, err := o.reader.ListSupportedTokens(ctx, o.cfg.Lottery)
	if err != nil {
		return nil, err
	}

	descriptors := make([]state.TokenDescriptor, len(addresses))
	g, gctx := errgroup.WithContext(ctx)
	for i, addr := range addresses {
		g.Go(func() error {
			tc, ok := o.cfg.tokenConfig(addr)
			if !ok {
				return newError(ErrConfiguration, MsgLoadTokensFailed,
					fmt.Errorf("missing configuration for token %s", addr.Hex()))
			}

			md, merr := o.reader.TokenMetadata(gctx, addr)
			if merr != nil {
				return merr
			}
			descriptors[i] = state.TokenDescriptor{Address: addr, Title: tc.Title, Name: md.Name, Symbol: md.Symbol}

			return nil
		})
	}
	if err = g.Wait(); err != nil {
		return nil, err
	}

	return descriptors, nil
}

func (o *Orchestrator) fallbackDescriptors() []state.TokenDescriptor {
	out := make([]state.TokenDescriptor, 0, len(o.cfg.Tokens))
	for _, t := range o.cfg.Tokens {
		out = append(out, state.TokenDescriptor{Address: t.Address, Title: t.Title, Name: t.Key, Symbol: t.Key})
	}

	return out
}

// RefreshBalances reads the encrypted balance of every listed token concurrently and commits them
// together. A token that cannot be read, or is not configured, has its balance cleared. A fetch
// superseded by a newer fetch or a wallet change commits nothing.
func (o *Orchestrator) RefreshBalances(ctx context.Context) error {
	o.mu.Lock()
	w := o.wallet
	if w == nil || o.closed {
		o.mu.Unlock()
		return nil
	}
	o.supersedeFetch()
	gen := o.fetchGen
	fctx, cancel := context.WithCancel(ctx)
	o.cancelFetch = cancel
	o.mu.Unlock()
	defer cancel()

	tokens := o.store.Snapshot().Tokens
	if len(tokens) == 0 {
		return nil
	}
	o.store.Dispatch(state.FetchStarted{})

	owner := w.Address()
	balances := make([]state.Balance, len(tokens))
	var failed atomic.Int32
	g, gctx := errgroup.WithContext(fctx)
	for i, tok := range tokens {
		balances[i].Token = tok.Address
		if _, ok := o.cfg.tokenConfig(tok.Address); !ok {
			continue
		}

		g.Go(func() error {
			h, err := o.reader.EncryptedBalance(gctx, tok.Address, owner)
			if err != nil {
				if cerr := gctx.Err(); cerr != nil {
					return cerr
				}
				o.lggr.Warnw("Failed to read encrypted balance", "token", tok.Address.Hex(), "error", err)
				failed.Add(1)

				return nil
			}
			balances[i].Handle = &h

			return nil
		})
	}
	werr := g.Wait()

	o.mu.Lock()
	defer o.mu.Unlock()
	if gen != o.fetchGen {
		o.lggr.Debugw("Discarding superseded balance fetch", "owner", owner.Hex())

		return nil
	}
	if werr != nil {
		o.store.Dispatch(state.FetchSucceeded{})

		return fmt.Errorf("%w: balance fetch interrupted: %w", ErrNetwork, werr)
	}

	o.store.Dispatch(state.FetchSucceeded{Balances: balances})
	if n := failed.Load(); n > 0 {
		o.notify(SeverityWarning, string(MsgBalanceFetchIncomplete))
	}

	return nil
}
