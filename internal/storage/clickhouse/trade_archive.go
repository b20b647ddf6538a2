package clickhouse

import (
	"context"
	"fmt"

	"solana-dex-ledger/internal/domain"
	"solana-dex-ledger/internal/storage"
)

// TradeArchive implements storage.TradeArchive using ClickHouse.
//
// The archive is an analytics mirror of the trades ledger. It never
// decides deduplication; ReplacingMergeTree collapses accidental
// duplicates on merge.
type TradeArchive struct {
	conn *Conn
}

// NewTradeArchive creates a new TradeArchive.
func NewTradeArchive(conn *Conn) *TradeArchive {
	return &TradeArchive{conn: conn}
}

// Compile-time interface check.
var _ storage.TradeArchive = (*TradeArchive)(nil)

// ArchiveBatch appends trades to the archive.
func (s *TradeArchive) ArchiveBatch(ctx context.Context, trades []*domain.Trade) error {
	if len(trades) == 0 {
		return nil
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO trade_archive (
			blk_ts, slot, txid, idx, mint, decimals, trader, dex, pool, is_buy, sol_amt, token_amt, price_sol
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, t := range trades {
		err = batch.Append(
			t.BlockTs, t.Slot, t.Txid, t.Idx,
			t.Mint, t.Decimals, t.Trader, string(t.Dex), t.Pool,
			t.IsBuy, t.SolAmt, t.TokenAmt, t.PriceSol,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetByMint retrieves archived trades for a mint within [startSlot, endSlot]
// (inclusive), ordered by (slot, idx) ASC.
func (s *TradeArchive) GetByMint(ctx context.Context, mint string, startSlot, endSlot uint64) ([]*domain.Trade, error) {
	query := `
		SELECT blk_ts, slot, txid, idx, mint, decimals, trader, dex, pool, is_buy, sol_amt, token_amt, price_sol
		FROM trade_archive
		WHERE mint = ? AND slot >= ? AND slot <= ?
		ORDER BY slot ASC, idx ASC
	`

	rows, err := s.conn.Query(ctx, query, mint, startSlot, endSlot)
	if err != nil {
		return nil, fmt.Errorf("query archive by mint: %w", err)
	}
	defer rows.Close()

	return scanArchivedTrades(rows)
}

// Close closes the underlying connection.
func (s *TradeArchive) Close() error {
	return s.conn.Close()
}

// chRows abstracts driver.Rows for scanning.
type chRows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

// scanArchivedTrades scans multiple rows into a slice of Trade.
func scanArchivedTrades(rows chRows) ([]*domain.Trade, error) {
	var trades []*domain.Trade

	for rows.Next() {
		var t domain.Trade
		var dex string

		err := rows.Scan(
			&t.BlockTs, &t.Slot, &t.Txid, &t.Idx,
			&t.Mint, &t.Decimals, &t.Trader, &dex, &t.Pool,
			&t.IsBuy, &t.SolAmt, &t.TokenAmt, &t.PriceSol,
		)
		if err != nil {
			return nil, fmt.Errorf("scan archived trade row: %w", err)
		}

		t.Dex = domain.DexKind(dex)
		trades = append(trades, &t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate archived trade rows: %w", err)
	}

	return trades, nil
}
