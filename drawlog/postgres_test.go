package drawlog

import (
	"testing"

	"github.com/rubenv/pgtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/encrypted-lottery/lottery-deployments/pkg/logger"
)

// openPostgresStoreForTest starts a throwaway postgres server. The test is skipped when no
// postgres binaries are installed.
func openPostgresStoreForTest(t *testing.T) *SQLStore {
	t.Helper()

	if testing.Short() {
		t.Skip("postgres tests are skipped in short mode")
	}
	pg, err := pgtest.Start()
	if err != nil {
		t.Skipf("postgres is not available: %v", err)
	}
	t.Cleanup(func() {
		assert.NoError(t, pg.Stop())
	})

	store := NewSQLStore(pg.DB, logger.Test(t))
	require.NoError(t, store.Migrate(t.Context()))

	return store
}

func TestSQLStore_Postgres(t *testing.T) {
	t.Parallel()

	store := openPostgresStoreForTest(t)
	ctx := t.Context()

	require.NoError(t, store.Append(ctx, record(alice, 1, 10)))
	require.NoError(t, store.Append(ctx, record(bob, 2, 20)))
	require.ErrorIs(t, store.Append(ctx, record(bob, 2, 20)), ErrDuplicateRecord)

	got, err := store.Recent(ctx, Query{Limit: 10})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, record(bob, 2, 20), got[0])
	assert.Equal(t, record(alice, 1, 10), got[1])

	filtered, err := store.Recent(ctx, Query{ChainSelector: 3379446385462418246, Lottery: lotteryAddr, Player: alice, Limit: 1})
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, record(alice, 1, 10), filtered[0])
}
