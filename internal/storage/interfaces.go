package storage

import (
	"context"

	"solana-dex-ledger/internal/domain"
)

// PoolStore provides access to pools storage.
type PoolStore interface {
	// Insert adds a new pool. Returns ErrDuplicateKey if addr exists.
	Insert(ctx context.Context, p *domain.Pool) error

	// InsertIgnore adds a new pool, keeping the existing row on conflict.
	// Returns true when a row was written.
	InsertIgnore(ctx context.Context, p *domain.Pool) (bool, error)

	// GetByAddr retrieves a pool by address. Returns ErrNotFound if not exists.
	GetByAddr(ctx context.Context, addr string) (*domain.Pool, error)

	// GetByMint retrieves all pools trading the given mint.
	GetByMint(ctx context.Context, mint string) ([]*domain.Pool, error)
}

// TradeStore provides access to trades storage.
type TradeStore interface {
	// Insert adds a new trade. Returns ErrDuplicateKey if (txid, idx) exists.
	Insert(ctx context.Context, t *domain.Trade) error

	// InsertBatch adds multiple trades atomically, skipping rows whose
	// (txid, idx) already exists. Returns the number of rows written.
	InsertBatch(ctx context.Context, trades []*domain.Trade) (int64, error)

	// GetByTxid retrieves all trades of a transaction, ordered by idx ASC.
	GetByTxid(ctx context.Context, txid string) ([]*domain.Trade, error)

	// GetByMint retrieves trades for a mint within [start, end] slots
	// (inclusive), ordered by (slot, idx) ASC.
	GetByMint(ctx context.Context, mint string, startSlot, endSlot uint64) ([]*domain.Trade, error)

	// GetByPool retrieves trades for a pool within [start, end] slots
	// (inclusive), ordered by (slot, idx) ASC.
	GetByPool(ctx context.Context, pool string, startSlot, endSlot uint64) ([]*domain.Trade, error)

	// HighestSlot returns the largest slot present, 0 when empty.
	HighestSlot(ctx context.Context) (uint64, error)
}

// TradeArchive is an optional analytics mirror of the trades ledger.
type TradeArchive interface {
	// ArchiveBatch appends trades to the archive. The archive is not the
	// dedup authority; duplicates are tolerated.
	ArchiveBatch(ctx context.Context, trades []*domain.Trade) error

	Close() error
}
