package lottery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/spf13/cobra"

	"github.com/encrypted-lottery/lottery-deployments/contracts"
	"github.com/encrypted-lottery/lottery-deployments/drawlog"
	"github.com/encrypted-lottery/lottery-deployments/engine/cli/commands/flags"
	"github.com/encrypted-lottery/lottery-deployments/engine/cli/commands/text"
	"github.com/encrypted-lottery/lottery-deployments/engine/cli/environment"
)

var (
	drawShort = "Executes a lottery draw"

	drawLong = text.LongDesc(`
		Calls draw() on the TokenLottery with the configured wallet, waits for the transaction
		to be mined and prints the LotteryReward event of the receipt.

		When a draw log database is configured the reward is recorded there as well.
	`)

	drawExample = text.Examples(`
		# Draw on the configured lottery
		lottery draw

		# Draw on another lottery
		lottery draw --address 0x5FbDB2315678afecb367f032d93F642f64180aa3
	`)
)

func newDrawCmd(cfg Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "draw",
		Short:   drawShort,
		Long:    drawLong,
		Example: drawExample,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDraw(cmd, cfg)
		},
	}

	flags.Config(cmd)
	flags.Address(cmd)

	return cmd
}

func runDraw(cmd *cobra.Command, cfg Config) error {
	ctx := cmd.Context()

	override, hasOverride, err := flags.LotteryAddress(cmd)
	if err != nil {
		return err
	}

	env, err := loadEnvironment(cmd, cfg)
	if err != nil {
		return err
	}
	defer closeEnvironment(cfg, env)

	lotteryAddr := override
	if !hasOverride {
		if lotteryAddr, err = env.RequireLottery(); err != nil {
			return err
		}
	}

	opts, err := env.Wallet.TransactOpts()
	if err != nil {
		return fmt.Errorf("no wallet to draw with: %w", err)
	}
	opts.Context = ctx

	// --- Execute

	cmd.Printf("Calling draw() on TokenLottery: %s\n", lotteryAddr.Hex())
	tx, err := contracts.NewTokenLottery(lotteryAddr, env.Chain.Client).Draw(opts)
	if err != nil {
		return fmt.Errorf("failed to send draw transaction: %w", err)
	}

	cmd.Printf("Waiting for transaction %s...\n", tx.Hash().Hex())
	receipt, err := env.Chain.Confirm(tx)
	if err != nil {
		return fmt.Errorf("draw transaction %s failed: %w", tx.Hash().Hex(), err)
	}
	if receipt == nil {
		cmd.Println("Transaction failed")

		return nil
	}

	// --- Report

	reward, err := contracts.FindLotteryReward(receipt.Logs)
	if errors.Is(err, contracts.ErrRewardNotFound) {
		cmd.Println(contracts.ErrRewardNotFound.Error())

		return nil
	}
	if err != nil {
		return err
	}

	cmd.Printf("LotteryReward => player: %s, token: %s, amount: %s\n",
		reward.Player.Hex(), reward.Token.Hex(), reward.Amount.String())

	recordDraw(ctx, cfg, env, lotteryAddr, tx.Hash(), receipt, reward)

	return nil
}

// recordDraw appends the reward to the draw log, when there is one. Failures are logged only.
func recordDraw(
	ctx context.Context,
	cfg Config,
	env *environment.Environment,
	lotteryAddr common.Address,
	txHash common.Hash,
	receipt *types.Receipt,
	reward *contracts.LotteryReward,
) {
	if env.DrawLog == nil {
		return
	}

	rec := drawlog.Record{
		TxHash:        txHash,
		ChainSelector: env.Chain.Selector,
		Lottery:       lotteryAddr,
		Player:        reward.Player,
		Token:         reward.Token,
		Amount:        reward.Amount,
		Timestamp:     time.Now().UTC(),
	}
	if receipt.BlockNumber != nil {
		rec.BlockNumber = receipt.BlockNumber.Uint64()
		rec.TxIndex = receipt.TransactionIndex
		if header, err := env.Chain.Client.HeaderByNumber(ctx, receipt.BlockNumber); err == nil {
			rec.Timestamp = time.Unix(int64(header.Time), 0).UTC() //nolint:gosec // block times fit in int64
		}
	}

	if err := env.DrawLog.Append(ctx, rec); err != nil {
		cfg.Logger.Warnw("Failed to record draw", "tx", txHash.Hex(), "error", err)
	}
}
