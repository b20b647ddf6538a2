package stub

import (
	"context"
	"errors"
	"sync"

	"solana-dex-ledger/internal/solana"
)

// ErrNotFound is returned when a transaction is not found.
var ErrNotFound = errors.New("not found")

// RPCClient implements solana.RPCClient for testing.
type RPCClient struct {
	mu           sync.Mutex
	Transactions map[string]*solana.Transaction
	Signatures   map[string][]solana.SignatureInfo
	Accounts     map[string]*solana.AccountInfo

	// AccountFetches counts GetAccountInfo calls per pubkey.
	AccountFetches map[string]int
}

// NewRPCClient creates a new stub RPC client.
func NewRPCClient() *RPCClient {
	return &RPCClient{
		Transactions:   make(map[string]*solana.Transaction),
		Signatures:     make(map[string][]solana.SignatureInfo),
		Accounts:       make(map[string]*solana.AccountInfo),
		AccountFetches: make(map[string]int),
	}
}

// GetTransaction retrieves a transaction by signature from the stub store.
func (c *RPCClient) GetTransaction(_ context.Context, signature string) (*solana.Transaction, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	tx, ok := c.Transactions[signature]
	if !ok {
		return nil, ErrNotFound
	}
	return tx, nil
}

// GetSignaturesForAddress retrieves signatures for an address from the stub store.
func (c *RPCClient) GetSignaturesForAddress(_ context.Context, address string, opts *solana.SignaturesOpts) ([]solana.SignatureInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	sigs, ok := c.Signatures[address]
	if !ok {
		return nil, nil
	}

	// Resume after the Before cursor, as the real RPC does.
	if opts != nil && opts.Before != "" {
		for i, info := range sigs {
			if info.Signature == opts.Before {
				sigs = sigs[i+1:]
				break
			}
		}
	}

	// Apply limit if specified
	if opts != nil && opts.Limit > 0 && opts.Limit < len(sigs) {
		return sigs[:opts.Limit], nil
	}

	return sigs, nil
}

// GetAccountInfo retrieves account info from the stub store; nil when absent.
func (c *RPCClient) GetAccountInfo(_ context.Context, pubkey string) (*solana.AccountInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.AccountFetches[pubkey]++
	return c.Accounts[pubkey], nil
}

// GetMultipleAccounts retrieves account info for several pubkeys positionally.
func (c *RPCClient) GetMultipleAccounts(_ context.Context, pubkeys []string) ([]*solana.AccountInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	infos := make([]*solana.AccountInfo, len(pubkeys))
	for i, pk := range pubkeys {
		c.AccountFetches[pk]++
		infos[i] = c.Accounts[pk]
	}
	return infos, nil
}

// AddTransaction adds a transaction to the stub store.
func (c *RPCClient) AddTransaction(tx *solana.Transaction) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Transactions[tx.Signature] = tx
}

// AddSignatures adds signatures for an address to the stub store.
func (c *RPCClient) AddSignatures(address string, sigs []solana.SignatureInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Signatures[address] = sigs
}

// AddAccount adds account info for a pubkey to the stub store.
func (c *RPCClient) AddAccount(pubkey string, info *solana.AccountInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Accounts[pubkey] = info
}
