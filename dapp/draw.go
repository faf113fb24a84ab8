package dapp

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/encrypted-lottery/lottery-deployments/contracts"
	"github.com/encrypted-lottery/lottery-deployments/dapp/state"
	"github.com/encrypted-lottery/lottery-deployments/drawlog"
)

// Draw runs one lottery draw with the connected wallet and waits for it to be mined. Only one
// draw runs at a time.
//
// A mined draw settles. When its receipt carries a LotteryReward event the record is prepended to
// the history and returned, the rewarded token must be decrypted again and balances are marked
// stale. Without the event the draw still settles but ErrEventNotFound is returned.
func (o *Orchestrator) Draw(ctx context.Context) (*state.DrawRecord, error) {
	w := o.Wallet()
	if w == nil {
		return nil, o.notifyErr(newError(ErrAuthorization, MsgConnectToDraw, nil))
	}
	if o.cfg.Lottery == (common.Address{}) {
		return nil, o.notifyErr(newError(ErrConfiguration, MsgLotteryNotConfigured, nil))
	}
	opts, err := w.TransactOpts()
	if err != nil || opts.Signer == nil {
		return nil, o.notifyErr(newError(ErrAuthorization, MsgNoDrawSigner, err))
	}

	var busy bool
	o.store.Update(func(s state.State) []state.Event {
		if s.Draw.Phase.InFlight() {
			busy = true
			return nil
		}

		return []state.Event{state.DrawStarted{}}
	})
	if busy {
		return nil, o.notifyErr(newError(ErrDrawInProgress, MsgDrawInProgress, nil))
	}

	opts.Context = ctx
	tx, err := contracts.NewTokenLottery(o.cfg.Lottery, o.cfg.Client).Draw(opts)
	if err != nil {
		return nil, o.failDraw(common.Hash{}, err)
	}
	txHash := tx.Hash()
	o.store.Dispatch(state.DrawSubmitted{TxHash: txHash})
	o.lggr.Infow("Draw submitted", "tx", txHash.Hex(), "player", w.Address().Hex())

	receipt, err := o.cfg.Confirm(tx)
	if err != nil {
		return nil, o.failDraw(txHash, err)
	}
	if receipt == nil {
		return nil, o.failDraw(txHash, errors.New("no receipt"))
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return nil, o.failDraw(txHash, errors.New("transaction reverted"))
	}

	reward, err := contracts.FindLotteryReward(receipt.Logs)
	if err != nil {
		o.store.Dispatch(state.DrawSettled{TxHash: txHash})
		o.lggr.Warnw("Draw settled without reward event", "tx", txHash.Hex())
		o.MarkBalancesStale(ctx)

		return nil, o.notifyErr(newError(ErrEventNotFound, MsgDrawRewardNotFound, err))
	}

	settled := o.store.Dispatch(state.DrawSettled{TxHash: txHash, Record: &state.DrawRecord{
		TxHash:       txHash,
		Player:       reward.Player,
		TokenAddress: reward.Token,
		Amount:       reward.Amount,
		Timestamp:    o.cfg.Now().UTC(),
	}})
	record := settled.History[0]
	o.lggr.Infow("Draw settled",
		"tx", txHash.Hex(), "player", reward.Player.Hex(), "token", reward.Token.Hex(), "amount", reward.Amount)

	o.appendDrawLog(ctx, receipt, record)
	o.notify(SeveritySuccess, fmt.Sprintf("You won %s %s", record.Amount, tokenLabel(record)))
	o.MarkBalancesStale(ctx)

	return &record, nil
}

func (o *Orchestrator) failDraw(txHash common.Hash, cause error) error {
	o.lggr.Errorw("Lottery draw failed", "tx", txHash.Hex(), "error", cause)
	err := newError(ErrTransaction, MsgDrawFailed, cause)
	o.store.Dispatch(state.DrawFailed{TxHash: txHash, Err: err.Error()})

	return o.notifyErr(err)
}

func (o *Orchestrator) appendDrawLog(ctx context.Context, receipt *types.Receipt, r state.DrawRecord) {
	if o.cfg.DrawLog == nil {
		return
	}

	entry := drawlog.Record{
		TxHash:        r.TxHash,
		ChainSelector: o.cfg.ChainSelector,
		Lottery:       o.cfg.Lottery,
		Player:        r.Player,
		Token:         r.TokenAddress,
		Amount:        r.Amount,
		Timestamp:     r.Timestamp,
	}
	if receipt.BlockNumber != nil {
		entry.BlockNumber = receipt.BlockNumber.Uint64()
		entry.TxIndex = receipt.TransactionIndex
	}
	if err := o.cfg.DrawLog.Append(ctx, entry); err != nil {
		o.lggr.Warnw("Failed to record draw", "tx", r.TxHash.Hex(), "error", err)
	}
}

func tokenLabel(r state.DrawRecord) string {
	if r.TokenSymbol != "" {
		return r.TokenSymbol
	}

	return r.TokenTitle
}
