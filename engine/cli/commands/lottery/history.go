package lottery

import (
	"fmt"
	"math/big"
	"slices"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"github.com/encrypted-lottery/lottery-deployments/contracts"
	"github.com/encrypted-lottery/lottery-deployments/dapp/render"
	"github.com/encrypted-lottery/lottery-deployments/dapp/state"
	"github.com/encrypted-lottery/lottery-deployments/drawlog"
	"github.com/encrypted-lottery/lottery-deployments/engine/cli/commands/flags"
	"github.com/encrypted-lottery/lottery-deployments/engine/cli/commands/text"
	"github.com/encrypted-lottery/lottery-deployments/engine/cli/environment"
)

var (
	historyShort = "Prints the recent lottery rewards"

	historyLong = text.LongDesc(`
		Prints the most recent LotteryReward outcomes, newest first.

		Rewards are replayed from the lottery logs on chain, or read from the draw log database
		with --from-log. Only public outcomes are shown; balances stay encrypted.
	`)

	historyExample = text.Examples(`
		# Rewards of every player since the lottery was deployed
		lottery history

		# Rewards of one player, from the draw log database
		lottery history --player 0x70997970C51812dc3A010C7d01b50e0d17dc79C8 --from-log
	`)
)

type historyFlags struct {
	player    string
	fromBlock uint64
	fromLog   bool
}

func newHistoryCmd(cfg Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "history",
		Short:   historyShort,
		Long:    historyLong,
		Example: historyExample,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f := historyFlags{
				player:    flags.MustString(cmd.Flags().GetString("player")),
				fromBlock: flags.MustUint64(cmd.Flags().GetUint64("from-block")),
				fromLog:   flags.MustBool(cmd.Flags().GetBool("from-log")),
			}

			return runHistory(cmd, cfg, f)
		},
	}

	flags.Config(cmd)
	flags.Address(cmd)

	cmd.Flags().StringP("player", "p", "", "Only show rewards of this player")
	cmd.Flags().Uint64("from-block", 0, "First block to replay logs from")
	cmd.Flags().Bool("from-log", false, "Read rewards from the draw log database instead of the chain")

	return cmd
}

func runHistory(cmd *cobra.Command, cfg Config, f historyFlags) error {
	var players []common.Address
	if f.player != "" {
		if !common.IsHexAddress(f.player) {
			return fmt.Errorf("invalid --player %q", f.player)
		}
		players = append(players, common.HexToAddress(f.player))
	}

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

	// --- Load

	var records []state.DrawRecord
	if f.fromLog {
		records, err = loggedRecords(cmd, env, lotteryAddr, players)
	} else {
		records, err = chainRecords(cmd, env, lotteryAddr, f.fromBlock, players)
	}
	if err != nil {
		return err
	}

	o, err := openSession(cmd, env, false, false)
	if err != nil {
		return err
	}
	defer o.Close()

	// --- Render

	s := o.State()
	for _, r := range records {
		s = state.Reduce(s, state.DrawSettled{TxHash: r.TxHash, Record: &r})
	}
	render.History(cmd.OutOrStdout(), s)

	return nil
}

// chainRecords replays the reward logs, oldest first.
func chainRecords(
	cmd *cobra.Command, env *environment.Environment, lotteryAddr common.Address, fromBlock uint64, players []common.Address,
) ([]state.DrawRecord, error) {
	ctx := cmd.Context()

	rewards, err := contracts.NewTokenLottery(lotteryAddr, env.Chain.Client).
		FilterLotteryReward(ctx, fromBlock, nil, players...)
	if err != nil {
		return nil, err
	}

	records := make([]state.DrawRecord, 0, len(rewards))
	times := make(map[uint64]time.Time)
	for _, rw := range rewards {
		ts, ok := times[rw.Raw.BlockNumber]
		if !ok {
			header, herr := env.Chain.Client.HeaderByNumber(ctx, new(big.Int).SetUint64(rw.Raw.BlockNumber))
			if herr == nil {
				ts = time.Unix(int64(header.Time), 0) //nolint:gosec // block times fit in int64
			}
			times[rw.Raw.BlockNumber] = ts
		}
		records = append(records, state.DrawRecord{
			TxHash:       rw.Raw.TxHash,
			Player:       rw.Player,
			TokenAddress: rw.Token,
			Amount:       rw.Amount,
			Timestamp:    ts,
		})
	}

	return records, nil
}

// loggedRecords reads the newest draws of the lottery from the draw log, oldest first.
func loggedRecords(
	cmd *cobra.Command, env *environment.Environment, lotteryAddr common.Address, players []common.Address,
) ([]state.DrawRecord, error) {
	if env.DrawLog == nil {
		return nil, fmt.Errorf("--from-log requires drawlog.dsn to be configured")
	}

	q := drawlog.Query{
		ChainSelector: env.Chain.Selector,
		Lottery:       lotteryAddr,
		Limit:         state.HistoryLimit,
	}
	if len(players) > 0 {
		q.Player = players[0]
	}

	logged, err := env.DrawLog.Recent(cmd.Context(), q)
	if err != nil {
		return nil, fmt.Errorf("failed to read draw log: %w", err)
	}

	records := make([]state.DrawRecord, 0, len(logged))
	for _, r := range logged {
		records = append(records, state.DrawRecord{
			TxHash:       r.TxHash,
			Player:       r.Player,
			TokenAddress: r.Token,
			Amount:       r.Amount,
			Timestamp:    r.Timestamp,
		})
	}
	slices.Reverse(records)

	return records, nil
}
