package domain

import "time"

// Pool is resolved pool metadata.
// Corresponds to the pools table; Addr is the primary key.
type Pool struct {
	Addr      string  // pool account address (base58)
	Dex       DexKind // owning DEX protocol
	MintA     string  // first token mint (pool-local side A)
	MintB     string  // second token mint (pool-local side B)
	DecimalsA uint8   // decimals of MintA
	DecimalsB uint8   // decimals of MintB
	CreatedAt time.Time
}

// IsWSOLPair reports whether one side of the pool is wrapped SOL.
func (p *Pool) IsWSOLPair() bool {
	return p.MintA == WSOLMint || p.MintB == WSOLMint
}

// TokenMint returns the non-WSOL side of the pool. For a WSOL/WSOL pool
// (never seen in practice) it returns MintA.
func (p *Pool) TokenMint() string {
	if p.MintA == WSOLMint {
		return p.MintB
	}
	return p.MintA
}

// TokenDecimals returns the decimals of the non-WSOL side.
func (p *Pool) TokenDecimals() uint8 {
	if p.MintA == WSOLMint {
		return p.DecimalsB
	}
	return p.DecimalsA
}
