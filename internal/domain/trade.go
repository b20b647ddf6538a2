package domain

import "time"

// Trade is a normalized swap against a WSOL pool.
// Corresponds to the trades table; (Txid, Idx) is unique.
type Trade struct {
	BlockTs   time.Time // block time of the containing transaction
	Slot      uint64    // Solana slot number
	Txid      string    // transaction signature
	Idx       uint32    // event index within the transaction
	Mint      string    // traded token mint
	Decimals  uint8     // decimals of the traded token
	Trader    string    // wallet that initiated the swap
	Dex       DexKind
	Pool      string  // pool account address
	IsBuy     bool    // true when SOL flows in (trader buys the token)
	SolAmt    uint64  // lamports of SOL moved
	TokenAmt  uint64  // raw token units moved
	PriceSol  float64 // SOL per whole token
	CreatedAt time.Time
}

// Key identifies a trade for dedup purposes.
type Key struct {
	Txid string
	Idx  uint32
}

// Key returns the dedup identity of the trade.
func (t *Trade) Key() Key {
	return Key{Txid: t.Txid, Idx: t.Idx}
}
