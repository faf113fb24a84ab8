package drawlog

import (
	"database/sql"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	_ "github.com/proullon/ramsql/driver"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/encrypted-lottery/lottery-deployments/pkg/logger"
)

var (
	lotteryAddr = common.HexToAddress("0x9fE46736679d2D9a65F0992F2272dE9f3c7fa6e0")
	alice       = common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")
	bob         = common.HexToAddress("0x3C44CdDdB6a900fa2b585dd299e03d12FA4293BC")
	tokenAddr   = common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")
)

// openMemStoreForTest opens a migrated store on a fresh in-memory database.
func openMemStoreForTest(t *testing.T) *SQLStore {
	t.Helper()

	db, err := sql.Open("ramsql", t.Name())
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, db.Close())
	})

	store := NewSQLStore(db, logger.Test(t))
	require.NoError(t, store.Migrate(t.Context()))

	return store
}

func record(player common.Address, block uint64, amount int64) Record {
	return Record{
		TxHash:        common.BigToHash(new(big.Int).SetUint64(block)),
		ChainSelector: 3379446385462418246,
		Lottery:       lotteryAddr,
		Player:        player,
		Token:         tokenAddr,
		Amount:        big.NewInt(amount),
		BlockNumber:   block,
		Timestamp:     time.Unix(1_700_000_000+int64(block), 0).UTC(),
	}
}

func TestSQLStore_AppendAndRecent(t *testing.T) {
	t.Parallel()

	store := openMemStoreForTest(t)
	ctx := t.Context()

	require.NoError(t, store.Append(ctx, record(alice, 1, 10)))
	require.NoError(t, store.Append(ctx, record(bob, 2, 20)))
	require.NoError(t, store.Append(ctx, record(alice, 3, 30)))

	got, err := store.Recent(ctx, Query{Player: alice, Limit: 10})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, record(alice, 3, 30), got[0])
	assert.Equal(t, record(alice, 1, 10), got[1])

	all, err := store.Recent(ctx, Query{Limit: 2})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, uint64(3), all[0].BlockNumber)
	assert.Equal(t, uint64(2), all[1].BlockNumber)

	none, err := store.Recent(ctx, Query{Player: alice})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestSQLStore_Recent_Filters(t *testing.T) {
	t.Parallel()

	store := openMemStoreForTest(t)
	ctx := t.Context()

	otherLottery := common.HexToAddress("0xCf7Ed3AccA5a467e9e704C703E8D87F634fB0Fc9")
	otherChain := record(alice, 4, 40)
	otherChain.ChainSelector = 16015286601757825753

	// A later session restarts block numbers, so draw time decides what is newest.
	restarted := record(alice, 1, 50)
	restarted.TxHash = common.HexToHash("0xbeef")
	restarted.Lottery = otherLottery
	restarted.Timestamp = time.Unix(1_800_000_000, 0).UTC()

	sameBlockFirst := record(bob, 9, 60)
	sameBlockSecond := record(bob, 9, 70)
	sameBlockSecond.TxHash = common.HexToHash("0x0909")
	sameBlockSecond.TxIndex = 1

	for _, r := range []Record{record(alice, 2, 20), otherChain, restarted, sameBlockFirst, sameBlockSecond} {
		require.NoError(t, store.Append(ctx, r))
	}

	tests := []struct {
		name  string
		query Query
		want  []common.Hash
	}{
		{
			name:  "every draw, newest first",
			query: Query{Limit: 10},
			want: []common.Hash{
				restarted.TxHash, sameBlockSecond.TxHash, sameBlockFirst.TxHash, otherChain.TxHash,
				record(alice, 2, 0).TxHash,
			},
		},
		{
			name:  "one lottery",
			query: Query{Lottery: otherLottery, Limit: 10},
			want:  []common.Hash{restarted.TxHash},
		},
		{
			name:  "one chain and lottery",
			query: Query{ChainSelector: 3379446385462418246, Lottery: lotteryAddr, Limit: 10},
			want:  []common.Hash{sameBlockSecond.TxHash, sameBlockFirst.TxHash, record(alice, 2, 0).TxHash},
		},
		{
			name:  "player on one chain",
			query: Query{ChainSelector: 3379446385462418246, Player: alice, Limit: 10},
			want:  []common.Hash{restarted.TxHash, record(alice, 2, 0).TxHash},
		},
		{
			name:  "limit",
			query: Query{Limit: 2},
			want:  []common.Hash{restarted.TxHash, sameBlockSecond.TxHash},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := store.Recent(t.Context(), tt.query)
			require.NoError(t, err)

			hashes := make([]common.Hash, 0, len(got))
			for _, r := range got {
				hashes = append(hashes, r.TxHash)
			}
			assert.Equal(t, tt.want, hashes)
		})
	}
}

func Test_recentQuery(t *testing.T) {
	t.Parallel()

	query, args := recentQuery(Query{ChainSelector: 1, Lottery: lotteryAddr, Player: alice, Limit: 6})
	assert.Contains(t, query, "WHERE chain_selector = $1 AND lottery = $2 AND player = $3")
	assert.True(t, strings.HasSuffix(query, "LIMIT 6"))
	assert.Equal(t, []any{"1", lotteryAddr.Hex(), alice.Hex()}, args)

	query, args = recentQuery(Query{Limit: 1})
	assert.NotContains(t, query, "WHERE")
	assert.Empty(t, args)
}

func TestSQLStore_Migrate_IsIdempotent(t *testing.T) {
	t.Parallel()

	store := openMemStoreForTest(t)
	require.NoError(t, store.Append(t.Context(), record(alice, 1, 1)))
	require.NoError(t, store.Migrate(t.Context()))

	got, err := store.Recent(t.Context(), Query{Player: alice, Limit: 5})
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestSQLStore_Append_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		setup   func(t *testing.T, s *SQLStore)
		give    Record
		wantErr error
	}{
		{
			name:    "missing tx hash",
			give:    Record{Player: alice, Amount: big.NewInt(1)},
			wantErr: ErrInvalidRecord,
		},
		{
			name:    "missing player",
			give:    Record{TxHash: common.HexToHash("0x01"), Amount: big.NewInt(1)},
			wantErr: ErrInvalidRecord,
		},
		{
			name:    "negative amount",
			give:    Record{TxHash: common.HexToHash("0x01"), Player: alice, Amount: big.NewInt(-1)},
			wantErr: ErrInvalidRecord,
		},
		{
			name: "duplicate transaction",
			setup: func(t *testing.T, s *SQLStore) {
				t.Helper()
				require.NoError(t, s.Append(t.Context(), record(alice, 7, 1)))
			},
			give:    record(alice, 7, 1),
			wantErr: ErrDuplicateRecord,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			store := openMemStoreForTest(t)
			if tt.setup != nil {
				tt.setup(t, store)
			}

			err := store.Append(t.Context(), tt.give)
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}
