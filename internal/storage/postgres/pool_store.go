package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"solana-dex-ledger/internal/domain"
	"solana-dex-ledger/internal/storage"
)

// PoolStore implements storage.PoolStore using PostgreSQL.
type PoolStore struct {
	pool *Pool
}

// NewPoolStore creates a new PoolStore.
func NewPoolStore(pool *Pool) *PoolStore {
	return &PoolStore{pool: pool}
}

// Compile-time interface check.
var _ storage.PoolStore = (*PoolStore)(nil)

// Insert adds a new pool. Returns ErrDuplicateKey if addr exists.
func (s *PoolStore) Insert(ctx context.Context, p *domain.Pool) error {
	query := `
		INSERT INTO pools (addr, dex, mint_a, mint_b, decimals_a, decimals_b)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := s.pool.Exec(ctx, query,
		p.Addr,
		string(p.Dex),
		p.MintA,
		p.MintB,
		int16(p.DecimalsA),
		int16(p.DecimalsB),
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert pool: %w", err)
	}
	return nil
}

// InsertIgnore adds a new pool, keeping the existing row on conflict.
// Returns true when a row was written.
func (s *PoolStore) InsertIgnore(ctx context.Context, p *domain.Pool) (bool, error) {
	query := `
		INSERT INTO pools (addr, dex, mint_a, mint_b, decimals_a, decimals_b)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (addr) DO NOTHING
	`

	tag, err := s.pool.Exec(ctx, query,
		p.Addr,
		string(p.Dex),
		p.MintA,
		p.MintB,
		int16(p.DecimalsA),
		int16(p.DecimalsB),
	)
	if err != nil {
		return false, fmt.Errorf("insert pool ignore: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// GetByAddr retrieves a pool by address. Returns ErrNotFound if not exists.
func (s *PoolStore) GetByAddr(ctx context.Context, addr string) (*domain.Pool, error) {
	query := `
		SELECT addr, dex, mint_a, mint_b, decimals_a, decimals_b, created_at
		FROM pools
		WHERE addr = $1
	`

	var p domain.Pool
	var dex string
	var decimalsA, decimalsB int16

	err := s.pool.QueryRow(ctx, query, addr).Scan(
		&p.Addr,
		&dex,
		&p.MintA,
		&p.MintB,
		&decimalsA,
		&decimalsB,
		&p.CreatedAt,
	)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get pool by addr: %w", err)
	}

	p.Dex = domain.DexKind(dex)
	p.DecimalsA = uint8(decimalsA)
	p.DecimalsB = uint8(decimalsB)
	return &p, nil
}

// GetByMint retrieves all pools trading the given mint, newest first.
func (s *PoolStore) GetByMint(ctx context.Context, mint string) ([]*domain.Pool, error) {
	query := `
		SELECT addr, dex, mint_a, mint_b, decimals_a, decimals_b, created_at
		FROM pools
		WHERE mint_a = $1 OR mint_b = $1
		ORDER BY created_at DESC, addr ASC
	`

	rows, err := s.pool.Query(ctx, query, mint)
	if err != nil {
		return nil, fmt.Errorf("get pools by mint: %w", err)
	}
	defer rows.Close()

	return scanPools(rows)
}

// scanPools scans multiple rows into a slice of Pool.
func scanPools(rows pgx.Rows) ([]*domain.Pool, error) {
	var pools []*domain.Pool

	for rows.Next() {
		var p domain.Pool
		var dex string
		var decimalsA, decimalsB int16

		err := rows.Scan(
			&p.Addr,
			&dex,
			&p.MintA,
			&p.MintB,
			&decimalsA,
			&decimalsB,
			&p.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan pool row: %w", err)
		}

		p.Dex = domain.DexKind(dex)
		p.DecimalsA = uint8(decimalsA)
		p.DecimalsB = uint8(decimalsB)
		pools = append(pools, &p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pool rows: %w", err)
	}

	return pools, nil
}
