package ingestion

import (
	"context"
	"errors"
	"hash/fnv"
	"log"
	"sort"
	"sync"

	"github.com/samber/lo"

	"solana-dex-ledger/internal/domain"
	"solana-dex-ledger/internal/observability"
	"solana-dex-ledger/internal/solana"
)

// Runner consumes the live log stream and feeds the processor.
//
// Notifications fan out over worker lanes keyed by transaction
// signature, so re-deliveries of the same transaction always land in
// the same lane and cannot race each other through the pipeline.
type Runner struct {
	ws        solana.WSClient
	rpc       solana.RPCClient
	processor *Processor
	programs  []string
	workers   int
	logger    *log.Logger
}

// RunnerOptions contains configuration for creating a Runner.
type RunnerOptions struct {
	WS        solana.WSClient
	RPC       solana.RPCClient
	Processor *Processor
	Programs  []string // defaults to all supported dex programs
	Workers   int      // defaults to 4
	Logger    *log.Logger
}

// NewRunner creates a new ingestion runner.
func NewRunner(opts RunnerOptions) *Runner {
	programs := opts.Programs
	if len(programs) == 0 {
		programs = lo.Keys(domain.ProgramDex)
		sort.Strings(programs)
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = 4
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	return &Runner{
		ws:        opts.WS,
		rpc:       opts.RPC,
		processor: opts.Processor,
		programs:  programs,
		workers:   workers,
		logger:    logger,
	}
}

// Run subscribes to the dex programs and processes notifications until
// the context is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.Printf("Starting ingestion runner: %d programs, %d workers", len(r.programs), r.workers)

	notifCh, err := subscribePrograms(ctx, r.ws, r.programs)
	if err != nil {
		return err
	}

	lanes := make([]chan solana.LogNotification, r.workers)
	var wg sync.WaitGroup
	for i := range lanes {
		lanes[i] = make(chan solana.LogNotification, 100)
		wg.Add(1)
		go func(lane <-chan solana.LogNotification) {
			defer wg.Done()
			for notif := range lane {
				r.handleNotification(ctx, notif)
			}
		}(lanes[i])
	}

	defer func() {
		for _, lane := range lanes {
			close(lane)
		}
		wg.Wait()
		r.logger.Println("Runner stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case notif, ok := <-notifCh:
			if !ok {
				return errors.New("log notification channel closed")
			}
			observability.RecordNotification(notif.Slot)

			// Failed transactions emit no trades.
			if notif.Err != nil {
				continue
			}

			lane := lanes[laneFor(notif.Signature, r.workers)]
			select {
			case lane <- notif:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

// handleNotification fetches the full transaction and runs the pipeline.
func (r *Runner) handleNotification(ctx context.Context, notif solana.LogNotification) {
	tx, err := retryGetTransaction(ctx, r.rpc, notif.Signature)
	if err != nil || tx == nil {
		if ctx.Err() != nil {
			return
		}
		observability.RecordTransactionFetch(false)
		r.logger.Printf("WARN: dropping tx %s (slot=%d) after %d fetch attempts: %v", notif.Signature, notif.Slot, maxFetchRetries, err)
		return
	}
	observability.RecordTransactionFetch(true)

	if _, err := r.processor.ProcessTransaction(ctx, tx); err != nil && ctx.Err() == nil {
		r.logger.Printf("process tx %s: %v", notif.Signature, err)
	}
}

// laneFor maps a signature onto a worker lane. Keying by signature
// serializes re-deliveries of the same transaction; trades of one pool
// from different transactions may interleave across lanes, which the
// (slot, txid, idx) sort before each write absorbs.
func laneFor(signature string, workers int) int {
	h := fnv.New32a()
	h.Write([]byte(signature))
	return int(h.Sum32()) % workers
}
