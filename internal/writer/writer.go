// Package writer persists normalized trades in batches.
//
// Trades are buffered and flushed on size or interval. Inserts go
// through TradeStore.InsertBatch, which skips rows already present, so
// replays surface as benign duplicate counts rather than errors.
// Transient database failures are retried with exponential backoff up
// to a bound; a batch that still fails is a fatal pipeline error, since
// dropping it silently would violate at-least-once delivery.
package writer

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/cenkalti/backoff/v4"

	"solana-dex-ledger/internal/domain"
	"solana-dex-ledger/internal/observability"
	"solana-dex-ledger/internal/sequencer"
	"solana-dex-ledger/internal/storage"
)

// Config controls batching and retry behavior.
type Config struct {
	BatchSize     int           // flush when this many trades are buffered
	FlushInterval time.Duration // flush at least this often
	QueueSize     int           // Enqueue blocks when this many trades are in flight
	MaxRetries    uint64        // insert attempts beyond the first
	RetryInterval time.Duration // initial backoff between attempts
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		BatchSize:     200,
		FlushInterval: 2 * time.Second,
		QueueSize:     10_000,
		MaxRetries:    5,
		RetryInterval: 200 * time.Millisecond,
	}
}

func (c *Config) applyDefaults() {
	d := DefaultConfig()
	if c.BatchSize <= 0 {
		c.BatchSize = d.BatchSize
	}
	if c.FlushInterval <= 0 {
		c.FlushInterval = d.FlushInterval
	}
	if c.QueueSize <= 0 {
		c.QueueSize = d.QueueSize
	}
	if c.RetryInterval <= 0 {
		c.RetryInterval = d.RetryInterval
	}
}

// Writer batches trades into the store, optionally mirroring them to
// an archive.
type Writer struct {
	store   storage.TradeStore
	archive storage.TradeArchive // may be nil
	cfg     Config

	in chan *domain.Trade

	written    int64
	duplicates int64
}

// New creates a Writer. archive may be nil.
func New(store storage.TradeStore, archive storage.TradeArchive, cfg Config) *Writer {
	cfg.applyDefaults()
	return &Writer{
		store:   store,
		archive: archive,
		cfg:     cfg,
		in:      make(chan *domain.Trade, cfg.QueueSize),
	}
}

// Enqueue hands trades to the writer. It blocks when the queue is full,
// applying backpressure to the pipeline.
func (w *Writer) Enqueue(ctx context.Context, trades ...*domain.Trade) error {
	for _, t := range trades {
		select {
		case w.in <- t:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Run drains the queue until ctx is cancelled, then performs a final
// flush of whatever is buffered. A batch that exhausts its retries
// makes Run return the insert error.
func (w *Writer) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.cfg.FlushInterval)
	defer ticker.Stop()

	buf := make([]*domain.Trade, 0, w.cfg.BatchSize)

	for {
		select {
		case t := <-w.in:
			buf = append(buf, t)
			if len(buf) >= w.cfg.BatchSize {
				if err := w.flush(ctx, buf); err != nil {
					return err
				}
				buf = buf[:0]
			}

		case <-ticker.C:
			if len(buf) > 0 {
				if err := w.flush(ctx, buf); err != nil {
					return err
				}
				buf = buf[:0]
			}

		case <-ctx.Done():
			buf = w.drain(buf)
			if len(buf) == 0 {
				return nil
			}
			// The final flush gets its own deadline; ctx is already dead.
			flushCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return w.flush(flushCtx, buf)
		}
	}
}

// Written returns the number of rows inserted so far.
func (w *Writer) Written() int64 { return w.written }

// Duplicates returns the number of trades skipped as already present.
func (w *Writer) Duplicates() int64 { return w.duplicates }

// drain empties whatever is still queued without blocking.
func (w *Writer) drain(buf []*domain.Trade) []*domain.Trade {
	for {
		select {
		case t := <-w.in:
			buf = append(buf, t)
		default:
			return buf
		}
	}
}

func (w *Writer) flush(ctx context.Context, batch []*domain.Trade) error {
	trades := make([]*domain.Trade, len(batch))
	copy(trades, batch)
	sequencer.SortTrades(trades)

	start := time.Now()

	var written int64
	insert := func() error {
		n, err := w.store.InsertBatch(ctx, trades)
		if err != nil {
			log.Printf("writer: insert batch of %d failed: %v", len(trades), err)
			observability.RecordWriteRetry()
			return err
		}
		written = n
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = w.cfg.RetryInterval
	bo.MaxElapsedTime = 0

	err := backoff.Retry(insert, backoff.WithContext(backoff.WithMaxRetries(bo, w.cfg.MaxRetries), ctx))
	if err != nil {
		return fmt.Errorf("persist batch of %d trades: %w", len(trades), err)
	}

	w.written += written
	w.duplicates += int64(len(trades)) - written
	observability.RecordWrite(written, int64(len(trades))-written, time.Since(start).Seconds())
	observability.UpdateWriterQueueDepth(len(w.in))

	if w.archive != nil {
		// The archive is best-effort; a failure must not stall the ledger.
		if err := w.archive.ArchiveBatch(ctx, trades); err != nil {
			log.Printf("writer: archive batch of %d failed: %v", len(trades), err)
		}
	}

	return nil
}
