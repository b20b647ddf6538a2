package domain

import "time"

// Orientation tells how a swap's In/Out amounts map onto the pool sides.
// Most events are pool-local (the protocol log names side A or side B);
// meteora damm only reveals the mint held by the trader's source or
// destination token account, so those two variants carry the mint itself.
type Orientation uint8

const (
	// OrientMintAIn means the In amount entered the pool on the MintA side.
	OrientMintAIn Orientation = iota
	// OrientMintBIn means the In amount entered the pool on the MintB side.
	OrientMintBIn
	// OrientInMint means the In side is the mint named by OrientMint.
	OrientInMint
	// OrientOutMint means the Out side is the mint named by OrientMint.
	OrientOutMint
)

// SwapEvent is a protocol-neutral swap decoded from transaction logs,
// before pool metadata resolution. Amounts are raw on-chain units.
type SwapEvent struct {
	Dex        DexKind
	Pool       string    // pool account address (base58)
	Slot       uint64    // Solana slot number
	Txid       string    // transaction signature
	Idx        uint32    // event index within the transaction
	BlockTs    time.Time // block time of the containing transaction
	Trader     string    // wallet that initiated the swap; may be empty
	Mint       string    // traded token mint when the event carries it; may be empty
	InAmount   uint64    // raw amount entering the pool
	OutAmount  uint64    // raw amount leaving the pool
	Orient     Orientation
	OrientMint string // set for OrientInMint / OrientOutMint
}

// PoolCreated is a pool creation decoded from transaction logs. It seeds
// the registry without an account fetch when the event carries enough
// metadata (DecimalsKnown).
type PoolCreated struct {
	Dex       DexKind
	Pool      string // pool account address (base58)
	MintA     string
	MintB     string
	DecimalsA uint8
	DecimalsB uint8
	// DecimalsKnown is false when the creation event names the mints but
	// not their decimals; the registry then fetches the mint accounts.
	DecimalsKnown bool
	Slot          uint64
	Txid          string
}
