// Package registry resolves and caches pool metadata.
//
// Resolution order is cache, then database, then the creation event
// hint, then an on-chain account fetch. Concurrent requests for the
// same pool collapse into a single resolution, and the first sighting
// of a pool wins: later writers never overwrite an existing row.
package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
	"golang.org/x/sync/singleflight"

	"solana-dex-ledger/internal/domain"
	"solana-dex-ledger/internal/observability"
	"solana-dex-ledger/internal/solana"
	"solana-dex-ledger/internal/storage"
)

// ErrMetadataUnresolvable means the pool's metadata cannot be
// determined from the database, the event hint, or the chain. Events
// referencing such a pool are dropped, not retried.
var ErrMetadataUnresolvable = errors.New("pool metadata unresolvable")

// Registry resolves pool metadata with a read-through cache.
type Registry struct {
	store storage.PoolStore
	rpc   solana.RPCClient

	mu    sync.RWMutex
	cache map[string]*domain.Pool

	flight singleflight.Group
}

// New creates a Registry backed by the given store and RPC client.
func New(store storage.PoolStore, rpc solana.RPCClient) *Registry {
	return &Registry{
		store: store,
		rpc:   rpc,
		cache: make(map[string]*domain.Pool),
	}
}

// Resolve returns metadata for the pool at addr, resolving and
// persisting it on first sight. hint is the creation event that
// announced the pool, when one was seen; it may be nil.
//
// Returns ErrMetadataUnresolvable when no source can describe the pool.
func (r *Registry) Resolve(ctx context.Context, dex domain.DexKind, addr string, hint *domain.PoolCreated) (*domain.Pool, error) {
	if err := validatePoolAddr(dex, addr); err != nil {
		return nil, err
	}

	r.mu.RLock()
	cached, ok := r.cache[addr]
	r.mu.RUnlock()
	if ok {
		observability.RecordPoolResolve("cache")
		return cached, nil
	}

	v, err, _ := r.flight.Do(addr, func() (interface{}, error) {
		return r.resolve(ctx, dex, addr, hint)
	})
	if err != nil {
		return nil, err
	}

	pool := v.(*domain.Pool)
	r.mu.Lock()
	r.cache[addr] = pool
	r.mu.Unlock()
	return pool, nil
}

// Seed resolves a pool straight from its creation event.
func (r *Registry) Seed(ctx context.Context, pc *domain.PoolCreated) (*domain.Pool, error) {
	return r.Resolve(ctx, pc.Dex, pc.Pool, pc)
}

// CacheSize returns the number of pools held in memory.
func (r *Registry) CacheSize() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.cache)
}

func (r *Registry) resolve(ctx context.Context, dex domain.DexKind, addr string, hint *domain.PoolCreated) (*domain.Pool, error) {
	existing, err := r.store.GetByAddr(ctx, addr)
	if err == nil {
		observability.RecordPoolResolve("store")
		return existing, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("lookup pool %s: %w", addr, err)
	}

	pool, err := r.build(ctx, dex, addr, hint)
	if err != nil {
		return nil, err
	}

	written, err := r.store.InsertIgnore(ctx, pool)
	if err != nil {
		return nil, fmt.Errorf("insert pool %s: %w", addr, err)
	}
	if !written {
		// Another writer got there first; its row is the truth.
		if existing, err := r.store.GetByAddr(ctx, addr); err == nil {
			return existing, nil
		}
	}
	return pool, nil
}

// build assembles pool metadata from the hint or an account fetch.
func (r *Registry) build(ctx context.Context, dex domain.DexKind, addr string, hint *domain.PoolCreated) (*domain.Pool, error) {
	if hint != nil && hint.MintA != "" && hint.MintB != "" {
		pool := &domain.Pool{
			Addr:      addr,
			Dex:       dex,
			MintA:     hint.MintA,
			MintB:     hint.MintB,
			DecimalsA: hint.DecimalsA,
			DecimalsB: hint.DecimalsB,
		}
		if !hint.DecimalsKnown {
			if err := r.fillDecimals(ctx, pool); err != nil {
				return nil, err
			}
		}
		observability.RecordPoolResolve("hint")
		return pool, nil
	}

	info, err := r.rpc.GetAccountInfo(ctx, addr)
	if err != nil {
		return nil, fmt.Errorf("fetch pool account %s: %w", addr, err)
	}
	if info == nil {
		return nil, fmt.Errorf("pool account %s not found: %w", addr, ErrMetadataUnresolvable)
	}
	if program, ok := domain.DexProgram(dex); ok && info.Owner != program {
		return nil, fmt.Errorf("pool account %s owned by %s, not %s: %w", addr, info.Owner, program, ErrMetadataUnresolvable)
	}

	layout, err := parsePoolAccount(dex, info.Data)
	if err != nil {
		return nil, fmt.Errorf("parse pool account %s: %v: %w", addr, err, ErrMetadataUnresolvable)
	}

	pool := &domain.Pool{
		Addr:      addr,
		Dex:       dex,
		MintA:     layout.MintA,
		MintB:     layout.MintB,
		DecimalsA: layout.DecimalsA,
		DecimalsB: layout.DecimalsB,
	}
	if !layout.DecimalsKnown {
		if err := r.fillDecimals(ctx, pool); err != nil {
			return nil, err
		}
	}
	observability.RecordPoolResolve("chain")
	return pool, nil
}

// fillDecimals fetches mint accounts to fill in decimals. WSOL is
// resolved locally.
func (r *Registry) fillDecimals(ctx context.Context, pool *domain.Pool) error {
	var missing []string
	if pool.MintA != domain.WSOLMint {
		missing = append(missing, pool.MintA)
	}
	if pool.MintB != domain.WSOLMint {
		missing = append(missing, pool.MintB)
	}

	decimals := map[string]uint8{domain.WSOLMint: domain.WSOLDecimals}
	if len(missing) > 0 {
		infos, err := r.rpc.GetMultipleAccounts(ctx, missing)
		if err != nil {
			return fmt.Errorf("fetch mints for pool %s: %w", pool.Addr, err)
		}
		for i, info := range infos {
			if info == nil {
				return fmt.Errorf("mint %s not found: %w", missing[i], ErrMetadataUnresolvable)
			}
			d, err := parseMintDecimals(info.Data)
			if err != nil {
				return fmt.Errorf("parse mint %s: %v: %w", missing[i], err, ErrMetadataUnresolvable)
			}
			decimals[missing[i]] = d
		}
	}

	pool.DecimalsA = decimals[pool.MintA]
	pool.DecimalsB = decimals[pool.MintB]
	return nil
}

// validatePoolAddr checks the address is a 32-byte base58 pubkey.
// Pools of the anchor-based dexes are PDAs and therefore off-curve;
// raydium derives its pools with createAccountWithSeed, which lands on
// the curve, so it is exempt.
func validatePoolAddr(dex domain.DexKind, addr string) error {
	raw, err := base58.Decode(addr)
	if err != nil || len(raw) != 32 {
		return fmt.Errorf("pool address %q is not a 32-byte pubkey: %w", addr, ErrMetadataUnresolvable)
	}
	switch dex {
	case domain.DexPumpfun, domain.DexPumpAmm, domain.DexMeteoraDlmm, domain.DexMeteoraDamm:
		if isOnCurve(raw) {
			return fmt.Errorf("pool address %q is on-curve, expected a pda: %w", addr, ErrMetadataUnresolvable)
		}
	}
	return nil
}

func isOnCurve(point []byte) bool {
	if len(point) != 32 {
		return false
	}
	_, err := new(edwards25519.Point).SetBytes(point)
	return err == nil
}
