package postgres

import (
	"context"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"

	"solana-dex-ledger/internal/domain"
	"solana-dex-ledger/internal/storage"
)

// TradeStore implements storage.TradeStore using PostgreSQL.
//
// sol_amt and token_amt are NUMERIC(20,0) columns covering the full
// uint64 range; they are bound and scanned as decimal strings.
type TradeStore struct {
	pool *Pool
}

// NewTradeStore creates a new TradeStore.
func NewTradeStore(pool *Pool) *TradeStore {
	return &TradeStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TradeStore = (*TradeStore)(nil)

const insertTradeQuery = `
	INSERT INTO trades (
		blk_ts, slot, txid, idx, mint, decimals, trader, dex, pool, is_buy, sol_amt, token_amt, price_sol
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
`

// Insert adds a new trade. Returns ErrDuplicateKey if (txid, idx) exists.
func (s *TradeStore) Insert(ctx context.Context, t *domain.Trade) error {
	_, err := s.pool.Exec(ctx, insertTradeQuery, tradeArgs(t)...)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert trade: %w", err)
	}
	return nil
}

// InsertBatch adds multiple trades atomically, skipping rows whose
// (txid, idx) already exists. Returns the number of rows written.
func (s *TradeStore) InsertBatch(ctx context.Context, trades []*domain.Trade) (int64, error) {
	if len(trades) == 0 {
		return 0, nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := insertTradeQuery + ` ON CONFLICT (txid, idx) DO NOTHING`

	var written int64
	for _, t := range trades {
		tag, err := tx.Exec(ctx, query, tradeArgs(t)...)
		if err != nil {
			return 0, fmt.Errorf("insert trade in batch: %w", err)
		}
		written += tag.RowsAffected()
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit tx: %w", err)
	}

	return written, nil
}

// GetByTxid retrieves all trades of a transaction, ordered by idx ASC.
func (s *TradeStore) GetByTxid(ctx context.Context, txid string) ([]*domain.Trade, error) {
	query := selectTradeQuery + `
		WHERE txid = $1
		ORDER BY idx ASC
	`

	rows, err := s.pool.Query(ctx, query, txid)
	if err != nil {
		return nil, fmt.Errorf("get trades by txid: %w", err)
	}
	defer rows.Close()

	return scanTrades(rows)
}

// GetByMint retrieves trades for a mint within [startSlot, endSlot]
// (inclusive), ordered by (slot, idx) ASC.
func (s *TradeStore) GetByMint(ctx context.Context, mint string, startSlot, endSlot uint64) ([]*domain.Trade, error) {
	query := selectTradeQuery + `
		WHERE mint = $1 AND slot >= $2 AND slot <= $3
		ORDER BY slot ASC, idx ASC
	`

	rows, err := s.pool.Query(ctx, query, mint, int64(startSlot), int64(endSlot))
	if err != nil {
		return nil, fmt.Errorf("get trades by mint: %w", err)
	}
	defer rows.Close()

	return scanTrades(rows)
}

// GetByPool retrieves trades for a pool within [startSlot, endSlot]
// (inclusive), ordered by (slot, idx) ASC.
func (s *TradeStore) GetByPool(ctx context.Context, pool string, startSlot, endSlot uint64) ([]*domain.Trade, error) {
	query := selectTradeQuery + `
		WHERE pool = $1 AND slot >= $2 AND slot <= $3
		ORDER BY slot ASC, idx ASC
	`

	rows, err := s.pool.Query(ctx, query, pool, int64(startSlot), int64(endSlot))
	if err != nil {
		return nil, fmt.Errorf("get trades by pool: %w", err)
	}
	defer rows.Close()

	return scanTrades(rows)
}

// HighestSlot returns the largest slot present, 0 when empty.
func (s *TradeStore) HighestSlot(ctx context.Context) (uint64, error) {
	var slot int64
	err := s.pool.QueryRow(ctx, `SELECT COALESCE(MAX(slot), 0) FROM trades`).Scan(&slot)
	if err != nil {
		return 0, fmt.Errorf("get highest slot: %w", err)
	}
	return uint64(slot), nil
}

// tradeArgs binds a trade to the insert query parameters.
func tradeArgs(t *domain.Trade) []any {
	return []any{
		t.BlockTs,
		int64(t.Slot),
		t.Txid,
		int32(t.Idx),
		t.Mint,
		int16(t.Decimals),
		t.Trader,
		string(t.Dex),
		t.Pool,
		t.IsBuy,
		strconv.FormatUint(t.SolAmt, 10),
		strconv.FormatUint(t.TokenAmt, 10),
		t.PriceSol,
	}
}

const selectTradeQuery = `
	SELECT blk_ts, slot, txid, idx, mint, decimals, trader, dex, pool, is_buy, sol_amt, token_amt, price_sol, created_at
	FROM trades
`

// scanTrades scans multiple rows into a slice of Trade.
func scanTrades(rows pgx.Rows) ([]*domain.Trade, error) {
	var trades []*domain.Trade

	for rows.Next() {
		var t domain.Trade
		var slot int64
		var idx int32
		var decimals int16
		var dex, solAmt, tokenAmt string

		err := rows.Scan(
			&t.BlockTs,
			&slot,
			&t.Txid,
			&idx,
			&t.Mint,
			&decimals,
			&t.Trader,
			&dex,
			&t.Pool,
			&t.IsBuy,
			&solAmt,
			&tokenAmt,
			&t.PriceSol,
			&t.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan trade row: %w", err)
		}

		t.Slot = uint64(slot)
		t.Idx = uint32(idx)
		t.Decimals = uint8(decimals)
		t.Dex = domain.DexKind(dex)
		if t.SolAmt, err = strconv.ParseUint(solAmt, 10, 64); err != nil {
			return nil, fmt.Errorf("parse sol_amt: %w", err)
		}
		if t.TokenAmt, err = strconv.ParseUint(tokenAmt, 10, 64); err != nil {
			return nil, fmt.Errorf("parse token_amt: %w", err)
		}

		trades = append(trades, &t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trade rows: %w", err)
	}

	return trades, nil
}
