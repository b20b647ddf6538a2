package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"solana-dex-ledger/internal/domain"
	"solana-dex-ledger/internal/storage"
)

// PoolStore is an in-memory implementation of storage.PoolStore.
type PoolStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Pool // keyed by addr
}

// NewPoolStore creates a new in-memory pool store.
func NewPoolStore() *PoolStore {
	return &PoolStore{
		data: make(map[string]*domain.Pool),
	}
}

// Insert adds a new pool. Returns ErrDuplicateKey if addr exists.
func (s *PoolStore) Insert(_ context.Context, p *domain.Pool) error {
	if p == nil || p.Addr == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[p.Addr]; exists {
		return storage.ErrDuplicateKey
	}

	s.data[p.Addr] = clonePool(p)
	return nil
}

// InsertIgnore adds a new pool, keeping the existing row on conflict.
// Returns true when a row was written.
func (s *PoolStore) InsertIgnore(_ context.Context, p *domain.Pool) (bool, error) {
	if p == nil || p.Addr == "" {
		return false, storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[p.Addr]; exists {
		return false, nil
	}

	s.data[p.Addr] = clonePool(p)
	return true, nil
}

// GetByAddr retrieves a pool by address. Returns ErrNotFound if not exists.
func (s *PoolStore) GetByAddr(_ context.Context, addr string) (*domain.Pool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, exists := s.data[addr]
	if !exists {
		return nil, storage.ErrNotFound
	}
	copy := *p
	return &copy, nil
}

// GetByMint retrieves all pools trading the given mint, newest first.
func (s *PoolStore) GetByMint(_ context.Context, mint string) ([]*domain.Pool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Pool
	for _, p := range s.data {
		if p.MintA == mint || p.MintB == mint {
			copy := *p
			result = append(result, &copy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].Addr < result[j].Addr
	})

	return result, nil
}

// clonePool copies a pool, stamping CreatedAt the way the database default would.
func clonePool(p *domain.Pool) *domain.Pool {
	copy := *p
	if copy.CreatedAt.IsZero() {
		copy.CreatedAt = time.Now().UTC()
	}
	return &copy
}

var _ storage.PoolStore = (*PoolStore)(nil)
