package ingestion

import (
	"context"
	"fmt"
	"log"
	"time"

	"solana-dex-ledger/internal/observability"
	"solana-dex-ledger/internal/solana"
)

const (
	maxFetchRetries = 3
	baseRetryDelay  = 500 * time.Millisecond
)

// retryGetTransaction fetches a transaction with exponential backoff
// retry. A nil result is retried too: a live notification can arrive
// before the transaction is queryable at the same commitment.
func retryGetTransaction(ctx context.Context, rpc solana.RPCClient, signature string) (*solana.Transaction, error) {
	var lastErr error
	for attempt := 0; attempt < maxFetchRetries; attempt++ {
		start := time.Now()
		tx, err := rpc.GetTransaction(ctx, signature)
		observability.RecordRPCLatency("getTransaction", time.Since(start).Seconds())
		if err == nil && tx != nil {
			return tx, nil
		}
		if err == nil {
			lastErr = fmt.Errorf("transaction %s not yet available", signature)
		} else {
			lastErr = err
		}

		// Don't retry on context cancellation
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		// Exponential backoff: 500ms, 1s, 2s
		delay := baseRetryDelay * time.Duration(1<<attempt)
		log.Printf("[ws] Retry %d/%d for GetTransaction %s after %v: %v", attempt+1, maxFetchRetries, signature, delay, lastErr)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return nil, lastErr
}

// subscribePrograms opens one logs subscription per program (some
// providers only support one address per subscription) and merges the
// notifications into a single channel.
func subscribePrograms(ctx context.Context, ws solana.WSClient, programs []string) (<-chan solana.LogNotification, error) {
	var channels []<-chan solana.LogNotification
	for _, program := range programs {
		logsCh, err := ws.SubscribeLogs(ctx, solana.LogsFilter{
			Mentions: []string{program},
		})
		if err != nil {
			return nil, err
		}
		channels = append(channels, logsCh)
		log.Printf("[ws] Subscribed to program: %s", program)
	}

	merged := make(chan solana.LogNotification, 1000)
	for _, ch := range channels {
		go func(logsCh <-chan solana.LogNotification) {
			for notif := range logsCh {
				select {
				case merged <- notif:
				case <-ctx.Done():
					return
				}
			}
		}(ch)
	}

	return merged, nil
}
