package ingestion

import (
	"context"
	"errors"
	"log"

	"solana-dex-ledger/internal/decoder"
	"solana-dex-ledger/internal/domain"
	"solana-dex-ledger/internal/normalize"
	"solana-dex-ledger/internal/observability"
	"solana-dex-ledger/internal/registry"
	"solana-dex-ledger/internal/sequencer"
	"solana-dex-ledger/internal/solana"
	"solana-dex-ledger/internal/writer"
)

// Processor turns one fetched transaction into persisted trades:
// decode, resolve pool metadata, normalize, filter recent duplicates,
// enqueue for the writer.
//
// Failures are per-event and non-fatal: a malformed payload, an
// unresolvable pool, or inconsistent metadata drops that event with a
// counter bump while the rest of the transaction proceeds.
type Processor struct {
	decoders  *decoder.Registry
	pools     *registry.Registry
	sequencer *sequencer.Sequencer
	writer    *writer.Writer
	logger    *log.Logger
}

// NewProcessor creates a Processor.
func NewProcessor(decoders *decoder.Registry, pools *registry.Registry, seq *sequencer.Sequencer, w *writer.Writer, logger *log.Logger) *Processor {
	if logger == nil {
		logger = log.Default()
	}
	return &Processor{
		decoders:  decoders,
		pools:     pools,
		sequencer: seq,
		writer:    w,
		logger:    logger,
	}
}

// ProcessTransaction runs the full pipeline for one transaction.
// Returns the number of trades handed to the writer.
func (p *Processor) ProcessTransaction(ctx context.Context, tx *solana.Transaction) (int, error) {
	swaps, creations, decodeErrs := p.decoders.DecodeTransaction(tx)

	for _, derr := range decodeErrs {
		observability.RecordDecodeError(string(derr.Dex))
		p.logger.Printf("decode error in tx %s: %v", derr.Txid, derr)
	}

	for i := range creations {
		pc := &creations[i]
		observability.RecordPoolCreation(string(pc.Dex))
		if _, err := p.pools.Seed(ctx, pc); err != nil {
			if errors.Is(err, registry.ErrMetadataUnresolvable) {
				observability.RecordPoolUnresolvable()
			}
			p.logger.Printf("seed pool %s from tx %s: %v", pc.Pool, pc.Txid, err)
		}
	}

	trades := make([]*domain.Trade, 0, len(swaps))
	for i := range swaps {
		evt := &swaps[i]
		observability.RecordEventDecoded(string(evt.Dex))

		trade, err := p.normalizeEvent(ctx, evt)
		if err != nil {
			p.dropEvent(evt, err)
			continue
		}
		trades = append(trades, trade)
		observability.RecordTradeNormalized()
	}

	if len(trades) == 0 {
		return 0, nil
	}

	kept, filtered := p.sequencer.Observe(ctx, trades)
	if filtered > 0 {
		observability.RecordDedupHits(filtered)
	}
	if len(kept) == 0 {
		return 0, nil
	}

	if err := p.writer.Enqueue(ctx, kept...); err != nil {
		return 0, err
	}
	return len(kept), nil
}

// normalizeEvent resolves the event's pool and normalizes it.
func (p *Processor) normalizeEvent(ctx context.Context, evt *domain.SwapEvent) (*domain.Trade, error) {
	pool, err := p.pools.Resolve(ctx, evt.Dex, evt.Pool, poolHint(evt))
	if err != nil {
		return nil, err
	}
	return normalize.Trade(evt, pool)
}

// poolHint builds a registry hint from events that carry their own pool
// metadata. Pumpfun bonding curves never announce mints in an account
// the registry could fetch, so the trade event itself seeds them.
func poolHint(evt *domain.SwapEvent) *domain.PoolCreated {
	if evt.Dex != domain.DexPumpfun || evt.Mint == "" {
		return nil
	}
	return &domain.PoolCreated{
		Dex:           domain.DexPumpfun,
		Pool:          evt.Pool,
		MintA:         evt.Mint,
		MintB:         domain.WSOLMint,
		DecimalsA:     6,
		DecimalsB:     domain.WSOLDecimals,
		DecimalsKnown: true,
		Slot:          evt.Slot,
		Txid:          evt.Txid,
	}
}

// dropEvent counts and logs a dropped swap event by reason.
func (p *Processor) dropEvent(evt *domain.SwapEvent, err error) {
	var reason string
	switch {
	case errors.Is(err, registry.ErrMetadataUnresolvable):
		reason = "pool_unresolvable"
		observability.RecordPoolUnresolvable()
	case errors.Is(err, normalize.ErrNotWSOLPair):
		reason = "not_wsol_pair"
	case errors.Is(err, normalize.ErrInconsistentPool):
		reason = "inconsistent_pool"
	case errors.Is(err, normalize.ErrZeroAmount):
		reason = "zero_amount"
	default:
		reason = "error"
	}
	observability.RecordEventDropped(reason)
	p.logger.Printf("drop swap tx=%s idx=%d dex=%s reason=%s: %v", evt.Txid, evt.Idx, evt.Dex, reason, err)
}
