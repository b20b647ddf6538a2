// Package sequencer orders trades and filters recently seen ones.
//
// The recent window is a best-effort filter that keeps obvious replays
// (reconnect re-deliveries, overlapping backfills) away from the
// database. It never decides deduplication: the UNIQUE(txid, idx)
// constraint in storage remains the source of truth.
package sequencer

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/dgraph-io/ristretto"
	"github.com/eko/gocache/lib/v4/cache"
	"github.com/eko/gocache/lib/v4/store"
	rstore "github.com/eko/gocache/store/ristretto/v4"

	"solana-dex-ledger/internal/domain"
)

// DefaultWindow is how long a (txid, idx) sighting is remembered.
const DefaultWindow = 10 * time.Minute

// ErrInvalidOrdering is returned when trades are not in deterministic order.
var ErrInvalidOrdering = errors.New("trades are not in deterministic order")

// Sequencer tracks recently seen trade keys over a TTL window.
type Sequencer struct {
	window time.Duration
	seen   *cache.Cache[struct{}]
	rc     *ristretto.Cache
}

// New creates a Sequencer remembering keys for the given window.
func New(window time.Duration) (*Sequencer, error) {
	if window <= 0 {
		window = DefaultWindow
	}

	rc, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 1_000_000,
		MaxCost:     100_000,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("create recent window cache: %w", err)
	}

	return &Sequencer{
		window: window,
		seen:   cache.New[struct{}](rstore.NewRistretto(rc)),
		rc:     rc,
	}, nil
}

// Observe filters out trades whose (txid, idx) was seen within the
// window, remembers the rest, and returns them in deterministic order.
// The second return value is the number of trades filtered.
func (s *Sequencer) Observe(ctx context.Context, trades []*domain.Trade) ([]*domain.Trade, int) {
	var kept []*domain.Trade
	batch := make(map[string]struct{}, len(trades))

	for _, t := range trades {
		key := tradeKey(t)
		if _, dup := batch[key]; dup {
			continue
		}
		if _, err := s.seen.Get(ctx, key); err == nil {
			continue
		}
		batch[key] = struct{}{}
		kept = append(kept, t)
	}

	for key := range batch {
		_ = s.seen.Set(ctx, key, struct{}{}, store.WithExpiration(s.window), store.WithCost(1))
	}
	// Ristretto admits writes asynchronously; wait so the next batch
	// observes this one.
	s.rc.Wait()

	SortTrades(kept)
	return kept, len(trades) - len(kept)
}

// Seen reports whether the key was observed within the window.
func (s *Sequencer) Seen(ctx context.Context, txid string, idx uint32) bool {
	_, err := s.seen.Get(ctx, fmt.Sprintf("%s|%d", txid, idx))
	return err == nil
}

// Close releases the window cache.
func (s *Sequencer) Close() {
	s.rc.Close()
}

func tradeKey(t *domain.Trade) string {
	return fmt.Sprintf("%s|%d", t.Txid, t.Idx)
}

// SortTrades orders trades by (slot ASC, txid ASC, idx ASC). This is
// deterministic blockchain order: idx preserves intra-transaction
// execution order.
func SortTrades(trades []*domain.Trade) {
	sort.Slice(trades, func(i, j int) bool {
		return compareTrades(trades[i], trades[j]) < 0
	})
}

// ValidateOrdering checks trades are strictly ordered.
// Returns ErrInvalidOrdering if not.
func ValidateOrdering(trades []*domain.Trade) error {
	for i := 1; i < len(trades); i++ {
		if compareTrades(trades[i-1], trades[i]) >= 0 {
			return ErrInvalidOrdering
		}
	}
	return nil
}

// compareTrades returns:
//   - negative if a < b
//   - zero if a == b
//   - positive if a > b
//
// Order: (slot ASC, txid ASC, idx ASC)
func compareTrades(a, b *domain.Trade) int {
	if a.Slot != b.Slot {
		if a.Slot < b.Slot {
			return -1
		}
		return 1
	}
	if a.Txid != b.Txid {
		if a.Txid < b.Txid {
			return -1
		}
		return 1
	}
	if a.Idx != b.Idx {
		if a.Idx < b.Idx {
			return -1
		}
		return 1
	}
	return 0
}
