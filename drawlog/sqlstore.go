package drawlog

import (
	"context"
	"database/sql"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	_ "github.com/lib/pq"

	"github.com/encrypted-lottery/lottery-deployments/pkg/logger"
)

const (
	schema_DRAWS = `
		CREATE TABLE IF NOT EXISTS lottery_draws (
			tx_hash          TEXT PRIMARY KEY,
			chain_selector   TEXT NOT NULL,
			lottery          TEXT NOT NULL,
			player           TEXT NOT NULL,
			token            TEXT NOT NULL,
			amount           TEXT NOT NULL,
			block_number     BIGINT NOT NULL,
			tx_index         BIGINT NOT NULL,
			drawn_at         BIGINT NOT NULL
		);`

	query_DRAW_BY_TX = `
		SELECT tx_hash FROM lottery_draws
		WHERE tx_hash = $1`
	query_INSERT_DRAW = `
		INSERT INTO lottery_draws (tx_hash, chain_selector, lottery, player, token, amount, block_number, tx_index, drawn_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	query_RECENT_DRAWS = `
		SELECT tx_hash, chain_selector, lottery, player, token, amount, block_number, tx_index, drawn_at
		FROM lottery_draws`
	query_RECENT_DRAWS_ORDER = `
		ORDER BY drawn_at DESC, block_number DESC, tx_index DESC
		LIMIT `
)

// PostgresDriver is the database/sql driver name registered by lib/pq.
const PostgresDriver = "postgres"

// SQLStore is a Store backed by a database/sql connection.
type SQLStore struct {
	db   *sql.DB
	lggr logger.Logger
}

var _ Store = (*SQLStore)(nil)

// NewSQLStore wraps db. Call Migrate before the first Append.
func NewSQLStore(db *sql.DB, lggr logger.Logger) *SQLStore {
	if lggr == nil {
		lggr = logger.Nop()
	}

	return &SQLStore{db: db, lggr: lggr.Named("drawlog")}
}

// OpenPostgres connects to the postgres database at dsn and creates the schema.
func OpenPostgres(ctx context.Context, dsn string, lggr logger.Logger) (*SQLStore, error) {
	db, err := sql.Open(PostgresDriver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open draw log database: %w", err)
	}
	if err = db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to reach draw log database: %w", err)
	}

	store := NewSQLStore(db, lggr)
	if err = store.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

// Migrate creates the draws table when it does not exist.
func (s *SQLStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema_DRAWS); err != nil {
		return fmt.Errorf("failed to create draw log schema: %w", err)
	}

	return nil
}

// Close closes the underlying connection.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

func (s *SQLStore) Append(ctx context.Context, r Record) error {
	if err := r.validate(); err != nil {
		return err
	}

	exists, err := s.exists(ctx, r.TxHash)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%w: %s", ErrDuplicateRecord, r.TxHash.Hex())
	}

	_, err = s.db.ExecContext(ctx, query_INSERT_DRAW,
		r.TxHash.Hex(),
		strconv.FormatUint(r.ChainSelector, 10),
		r.Lottery.Hex(),
		r.Player.Hex(),
		r.Token.Hex(),
		r.Amount.String(),
		int64(r.BlockNumber), //nolint:gosec // block numbers fit in int64
		int64(r.TxIndex),     //nolint:gosec // tx indexes fit in int64
		r.Timestamp.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert draw %s: %w", r.TxHash.Hex(), err)
	}

	s.lggr.Debugw("Draw recorded", "tx", r.TxHash.Hex(), "player", r.Player.Hex(), "token", r.Token.Hex())

	return nil
}

func (s *SQLStore) exists(ctx context.Context, txHash common.Hash) (bool, error) {
	rows, err := s.db.QueryContext(ctx, query_DRAW_BY_TX, txHash.Hex())
	defer func(rows *sql.Rows) {
		if rows != nil {
			_ = rows.Close()
		}
	}(rows)
	if err != nil {
		return false, fmt.Errorf("failed to look up draw %s: %w", txHash.Hex(), err)
	}

	found := rows.Next()

	return found, rows.Err()
}

func (s *SQLStore) Recent(ctx context.Context, q Query) ([]Record, error) {
	if q.Limit <= 0 {
		return []Record{}, nil
	}

	query, args := recentQuery(q)
	rows, err := s.db.QueryContext(ctx, query, args...)
	defer func(rows *sql.Rows) {
		if rows != nil {
			_ = rows.Close()
		}
	}(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to query draws: %w", err)
	}

	records := make([]Record, 0, q.Limit)
	for len(records) < q.Limit && rows.Next() {
		r, serr := scanRecord(rows)
		if serr != nil {
			return records, serr
		}
		records = append(records, r)
	}

	return records, rows.Err()
}

// recentQuery builds the filtered query of q. The limit is written into the query since not every
// driver binds it as a parameter.
func recentQuery(q Query) (string, []any) {
	var (
		conds []string
		args  []any
	)
	add := func(column string, value any) {
		args = append(args, value)
		conds = append(conds, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if q.ChainSelector != 0 {
		add("chain_selector", strconv.FormatUint(q.ChainSelector, 10))
	}
	if q.Lottery != (common.Address{}) {
		add("lottery", q.Lottery.Hex())
	}
	if q.Player != (common.Address{}) {
		add("player", q.Player.Hex())
	}

	var b strings.Builder
	b.WriteString(query_RECENT_DRAWS)
	if len(conds) > 0 {
		b.WriteString("\n\t\tWHERE ")
		b.WriteString(strings.Join(conds, " AND "))
	}
	b.WriteString(query_RECENT_DRAWS_ORDER)
	b.WriteString(strconv.Itoa(q.Limit))

	return b.String(), args
}

func scanRecord(rows *sql.Rows) (Record, error) {
	var (
		txHash, selector, lottery, player, token, amount string
		blockNumber, txIndex, drawnAt                    int64
	)
	if err := rows.Scan(&txHash, &selector, &lottery, &player, &token, &amount, &blockNumber, &txIndex, &drawnAt); err != nil {
		return Record{}, fmt.Errorf("failed to scan draw: %w", err)
	}

	chainSelector, err := strconv.ParseUint(selector, 10, 64)
	if err != nil {
		return Record{}, fmt.Errorf("draw %s has an invalid chain selector %q: %w", txHash, selector, err)
	}
	value, ok := new(big.Int).SetString(amount, 10)
	if !ok {
		return Record{}, fmt.Errorf("draw %s has an invalid amount %q", txHash, amount)
	}

	return Record{
		TxHash:        common.HexToHash(txHash),
		ChainSelector: chainSelector,
		Lottery:       common.HexToAddress(lottery),
		Player:        common.HexToAddress(player),
		Token:         common.HexToAddress(token),
		Amount:        value,
		BlockNumber:   uint64(blockNumber), //nolint:gosec // stored from a uint64
		TxIndex:       uint(txIndex),       //nolint:gosec // stored from a uint
		Timestamp:     time.Unix(drawnAt, 0).UTC(),
	}, nil
}
