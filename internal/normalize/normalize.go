// Package normalize turns decoded swap events into trades.
//
// Every trade is expressed against wrapped SOL: is_buy means SOL went
// into the pool and the token came out, and price_sol is SOL per whole
// token. Pools that do not pair with WSOL are dropped.
package normalize

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"

	"solana-dex-ledger/internal/domain"
)

// ErrNotWSOLPair means the pool does not pair with wrapped SOL; its
// swaps are skipped.
var ErrNotWSOLPair = errors.New("pool does not pair with wsol")

// ErrInconsistentPool means the event and the resolved pool metadata
// disagree about the traded mints. The trade is dropped rather than
// persisted with wrong amounts.
var ErrInconsistentPool = errors.New("event inconsistent with pool metadata")

// ErrZeroAmount means one swap leg is zero; such events carry no price
// information and are skipped.
var ErrZeroAmount = errors.New("zero amount swap")

// Trade normalizes a swap event against its resolved pool.
func Trade(evt *domain.SwapEvent, pool *domain.Pool) (*domain.Trade, error) {
	if !pool.IsWSOLPair() {
		return nil, fmt.Errorf("pool %s: %w", pool.Addr, ErrNotWSOLPair)
	}
	if evt.Dex != pool.Dex {
		return nil, fmt.Errorf("event dex %s, pool dex %s: %w", evt.Dex, pool.Dex, ErrInconsistentPool)
	}
	if evt.Mint != "" && evt.Mint != pool.TokenMint() {
		return nil, fmt.Errorf("event mint %s not in pool %s: %w", evt.Mint, pool.Addr, ErrInconsistentPool)
	}

	solIn, err := solEnteredPool(evt, pool)
	if err != nil {
		return nil, err
	}

	solAmt, tokenAmt := evt.InAmount, evt.OutAmount
	if !solIn {
		solAmt, tokenAmt = evt.OutAmount, evt.InAmount
	}
	if solAmt == 0 || tokenAmt == 0 {
		return nil, fmt.Errorf("tx %s idx %d: %w", evt.Txid, evt.Idx, ErrZeroAmount)
	}

	return &domain.Trade{
		BlockTs:  evt.BlockTs,
		Slot:     evt.Slot,
		Txid:     evt.Txid,
		Idx:      evt.Idx,
		Mint:     pool.TokenMint(),
		Decimals: pool.TokenDecimals(),
		Trader:   evt.Trader,
		Dex:      evt.Dex,
		Pool:     pool.Addr,
		IsBuy:    solIn,
		SolAmt:   solAmt,
		TokenAmt: tokenAmt,
		PriceSol: price(solAmt, tokenAmt, pool.TokenDecimals()),
	}, nil
}

// solEnteredPool resolves the event orientation to "did SOL go in".
func solEnteredPool(evt *domain.SwapEvent, pool *domain.Pool) (bool, error) {
	switch evt.Orient {
	case domain.OrientMintAIn:
		return pool.MintA == domain.WSOLMint, nil
	case domain.OrientMintBIn:
		return pool.MintB == domain.WSOLMint, nil
	case domain.OrientInMint:
		side, err := mintSide(evt.OrientMint, pool)
		return side, err
	case domain.OrientOutMint:
		side, err := mintSide(evt.OrientMint, pool)
		return !side, err
	default:
		return false, fmt.Errorf("unknown orientation %d: %w", evt.Orient, ErrInconsistentPool)
	}
}

// mintSide reports whether mint is the WSOL side of the pool. A mint
// belonging to neither side means the resolved metadata is wrong.
func mintSide(mint string, pool *domain.Pool) (bool, error) {
	switch mint {
	case domain.WSOLMint:
		return true, nil
	case pool.TokenMint():
		return false, nil
	default:
		return false, fmt.Errorf("mint %s not a side of pool %s: %w", mint, pool.Addr, ErrInconsistentPool)
	}
}

// price computes SOL per whole token from raw amounts:
// (solAmt / 1e9) / (tokenAmt / 10^decimals).
func price(solAmt, tokenAmt uint64, decimals uint8) float64 {
	sol := decimal.NewFromBigInt(new(big.Int).SetUint64(solAmt), -int32(domain.WSOLDecimals))
	token := decimal.NewFromBigInt(new(big.Int).SetUint64(tokenAmt), -int32(decimals))
	p, _ := sol.Div(token).Float64()
	return p
}
