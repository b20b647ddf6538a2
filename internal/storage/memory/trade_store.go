package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"solana-dex-ledger/internal/domain"
	"solana-dex-ledger/internal/storage"
)

// TradeStore is an in-memory implementation of storage.TradeStore.
type TradeStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Trade // keyed by (txid, idx)
}

// NewTradeStore creates a new in-memory trade store.
func NewTradeStore() *TradeStore {
	return &TradeStore{
		data: make(map[string]*domain.Trade),
	}
}

// tradeKey generates a unique key for a trade.
func tradeKey(txid string, idx uint32) string {
	return fmt.Sprintf("%s|%d", txid, idx)
}

// Insert adds a new trade. Returns ErrDuplicateKey if (txid, idx) exists.
func (s *TradeStore) Insert(_ context.Context, t *domain.Trade) error {
	if t == nil || t.Txid == "" {
		return storage.ErrInvalidInput
	}

	key := tradeKey(t.Txid, t.Idx)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[key]; exists {
		return storage.ErrDuplicateKey
	}

	s.data[key] = cloneTrade(t)
	return nil
}

// InsertBatch adds multiple trades, skipping rows whose (txid, idx)
// already exists. Returns the number of rows written.
func (s *TradeStore) InsertBatch(_ context.Context, trades []*domain.Trade) (int64, error) {
	if len(trades) == 0 {
		return 0, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var written int64
	for _, t := range trades {
		if t == nil || t.Txid == "" {
			return 0, storage.ErrInvalidInput
		}
		key := tradeKey(t.Txid, t.Idx)
		if _, exists := s.data[key]; exists {
			continue
		}
		s.data[key] = cloneTrade(t)
		written++
	}

	return written, nil
}

// GetByTxid retrieves all trades of a transaction, ordered by idx ASC.
func (s *TradeStore) GetByTxid(_ context.Context, txid string) ([]*domain.Trade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Trade
	for _, t := range s.data {
		if t.Txid == txid {
			copy := *t
			result = append(result, &copy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Idx < result[j].Idx
	})

	return result, nil
}

// GetByMint retrieves trades for a mint within [startSlot, endSlot]
// (inclusive), ordered by (slot, idx) ASC.
func (s *TradeStore) GetByMint(_ context.Context, mint string, startSlot, endSlot uint64) ([]*domain.Trade, error) {
	return s.filter(func(t *domain.Trade) bool {
		return t.Mint == mint && t.Slot >= startSlot && t.Slot <= endSlot
	})
}

// GetByPool retrieves trades for a pool within [startSlot, endSlot]
// (inclusive), ordered by (slot, idx) ASC.
func (s *TradeStore) GetByPool(_ context.Context, pool string, startSlot, endSlot uint64) ([]*domain.Trade, error) {
	return s.filter(func(t *domain.Trade) bool {
		return t.Pool == pool && t.Slot >= startSlot && t.Slot <= endSlot
	})
}

// HighestSlot returns the largest slot present, 0 when empty.
func (s *TradeStore) HighestSlot(_ context.Context) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var highest uint64
	for _, t := range s.data {
		if t.Slot > highest {
			highest = t.Slot
		}
	}
	return highest, nil
}

func (s *TradeStore) filter(keep func(*domain.Trade) bool) ([]*domain.Trade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Trade
	for _, t := range s.data {
		if keep(t) {
			copy := *t
			result = append(result, &copy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Slot != result[j].Slot {
			return result[i].Slot < result[j].Slot
		}
		if result[i].Txid != result[j].Txid {
			return result[i].Txid < result[j].Txid
		}
		return result[i].Idx < result[j].Idx
	})

	return result, nil
}

// cloneTrade copies a trade, stamping CreatedAt the way the database default would.
func cloneTrade(t *domain.Trade) *domain.Trade {
	copy := *t
	if copy.CreatedAt.IsZero() {
		copy.CreatedAt = time.Now().UTC()
	}
	return &copy
}

var _ storage.TradeStore = (*TradeStore)(nil)
