package solana

import "context"

// RPCClient defines Solana RPC HTTP interface.
type RPCClient interface {
	// GetTransaction retrieves a transaction by signature.
	GetTransaction(ctx context.Context, signature string) (*Transaction, error)

	// GetSignaturesForAddress retrieves signatures for an address with pagination.
	GetSignaturesForAddress(ctx context.Context, address string, opts *SignaturesOpts) ([]SignatureInfo, error)

	// GetAccountInfo retrieves account data by public key; nil when absent.
	GetAccountInfo(ctx context.Context, pubkey string) (*AccountInfo, error)

	// GetMultipleAccounts retrieves account data for several public keys;
	// the result matches pubkeys positionally with nil for missing accounts.
	GetMultipleAccounts(ctx context.Context, pubkeys []string) ([]*AccountInfo, error)
}

// Transaction represents a Solana transaction.
type Transaction struct {
	Slot      int64
	Signature string
	BlockTime int64 // Unix timestamp (seconds)
	Meta      *TransactionMeta
	Message   *TransactionMessage
}

// TransactionMeta contains transaction metadata.
type TransactionMeta struct {
	Err         interface{}
	LogMessages []string

	// InnerInstructions maps a top-level instruction index to the CPI
	// instructions it triggered, in execution order.
	InnerInstructions map[int][]Instruction

	PreTokenBalances  []TokenBalance
	PostTokenBalances []TokenBalance
}

// TransactionMessage contains parsed transaction message.
// AccountKeys includes addresses loaded from lookup tables (writable
// first, then readonly), matching on-chain account index order.
type TransactionMessage struct {
	AccountKeys  []string
	Instructions []Instruction
}

// Instruction is one instruction with program and accounts resolved to
// addresses.
type Instruction struct {
	Program  string
	Accounts []string
	Data     string // base58
}

// TokenBalance is an SPL token account balance snapshot from tx metadata.
type TokenBalance struct {
	AccountIndex int
	Mint         string
	Decimals     uint8
	Amount       uint64 // raw units
}

// FeePayer returns the transaction fee payer (first account key), or empty.
func (t *Transaction) FeePayer() string {
	if t.Message == nil || len(t.Message.AccountKeys) == 0 {
		return ""
	}
	return t.Message.AccountKeys[0]
}
