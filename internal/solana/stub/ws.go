package stub

import (
	"context"
	"sync"

	"solana-dex-ledger/internal/solana"
)

// WSClient implements solana.WSClient for testing. Notifications are
// routed to subscriptions whose filter mentions the published program.
type WSClient struct {
	mu     sync.Mutex
	subs   []wsSub
	closed bool
}

type wsSub struct {
	mentions map[string]struct{}
	ch       chan solana.LogNotification
}

// NewWSClient creates a new stub WebSocket client.
func NewWSClient() *WSClient {
	return &WSClient{}
}

// SubscribeLogs registers a subscription and returns its channel.
func (c *WSClient) SubscribeLogs(ctx context.Context, filter solana.LogsFilter) (<-chan solana.LogNotification, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	mentions := make(map[string]struct{}, len(filter.Mentions))
	for _, m := range filter.Mentions {
		mentions[m] = struct{}{}
	}

	ch := make(chan solana.LogNotification, 100)
	c.subs = append(c.subs, wsSub{mentions: mentions, ch: ch})

	go func() {
		<-ctx.Done()
		c.mu.Lock()
		defer c.mu.Unlock()
		for i, sub := range c.subs {
			if sub.ch == ch {
				c.subs = append(c.subs[:i], c.subs[i+1:]...)
				close(ch)
				return
			}
		}
	}()

	return ch, nil
}

// SubscriberCount returns the number of active subscriptions.
func (c *WSClient) SubscriberCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.subs)
}

// Publish delivers a notification to all subscriptions mentioning program.
func (c *WSClient) Publish(program string, notif solana.LogNotification) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	for _, sub := range c.subs {
		if _, ok := sub.mentions[program]; ok {
			sub.ch <- notif
		}
	}
}

// Close closes all subscription channels.
func (c *WSClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	for _, sub := range c.subs {
		close(sub.ch)
	}
	c.subs = nil
	return nil
}

var _ solana.WSClient = (*WSClient)(nil)
