package normalize

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-dex-ledger/internal/domain"
)

func wsolPool() *domain.Pool {
	return &domain.Pool{
		Addr:      "Pool1",
		Dex:       domain.DexPumpAmm,
		MintA:     "TokenMint1",
		MintB:     domain.WSOLMint,
		DecimalsA: 6,
		DecimalsB: 9,
	}
}

func swapEvent() *domain.SwapEvent {
	return &domain.SwapEvent{
		Dex:       domain.DexPumpAmm,
		Pool:      "Pool1",
		Slot:      5000,
		Txid:      "Tx1",
		Idx:       0,
		BlockTs:   time.Unix(1700000000, 0).UTC(),
		Trader:    "Trader1",
		InAmount:  2_000_000_000,
		OutAmount: 5_000_000,
		Orient:    domain.OrientMintBIn,
	}
}

func TestTrade_BuyDirectionAndPrice(t *testing.T) {
	// 2 SOL in, 5 tokens (6 decimals) out: a buy at 0.4 SOL per token.
	trade, err := Trade(swapEvent(), wsolPool())
	require.NoError(t, err)

	assert.True(t, trade.IsBuy)
	assert.Equal(t, uint64(2_000_000_000), trade.SolAmt)
	assert.Equal(t, uint64(5_000_000), trade.TokenAmt)
	assert.InDelta(t, 0.4, trade.PriceSol, 1e-12)
	assert.Equal(t, "TokenMint1", trade.Mint)
	assert.Equal(t, uint8(6), trade.Decimals)
	assert.Equal(t, "Pool1", trade.Pool)
	assert.Equal(t, "Trader1", trade.Trader)
	assert.Equal(t, uint64(5000), trade.Slot)
}

func TestTrade_SellDirection(t *testing.T) {
	evt := swapEvent()
	evt.Orient = domain.OrientMintAIn
	evt.InAmount = 5_000_000
	evt.OutAmount = 2_000_000_000

	trade, err := Trade(evt, wsolPool())
	require.NoError(t, err)

	assert.False(t, trade.IsBuy)
	assert.Equal(t, uint64(2_000_000_000), trade.SolAmt)
	assert.Equal(t, uint64(5_000_000), trade.TokenAmt)
	assert.InDelta(t, 0.4, trade.PriceSol, 1e-12)
}

func TestTrade_WSOLOnSideA(t *testing.T) {
	pool := wsolPool()
	pool.MintA = domain.WSOLMint
	pool.MintB = "TokenMint1"
	pool.DecimalsA = 9
	pool.DecimalsB = 6

	evt := swapEvent()
	evt.Orient = domain.OrientMintAIn

	trade, err := Trade(evt, pool)
	require.NoError(t, err)
	assert.True(t, trade.IsBuy)
	assert.Equal(t, "TokenMint1", trade.Mint)
	assert.Equal(t, uint8(6), trade.Decimals)
}

func TestTrade_OrientByMint(t *testing.T) {
	evt := swapEvent()
	evt.Orient = domain.OrientInMint
	evt.OrientMint = domain.WSOLMint

	trade, err := Trade(evt, wsolPool())
	require.NoError(t, err)
	assert.True(t, trade.IsBuy)

	// Out side named instead: token out means SOL in.
	evt = swapEvent()
	evt.Orient = domain.OrientOutMint
	evt.OrientMint = "TokenMint1"

	trade, err = Trade(evt, wsolPool())
	require.NoError(t, err)
	assert.True(t, trade.IsBuy)

	// Token in means a sell.
	evt = swapEvent()
	evt.Orient = domain.OrientInMint
	evt.OrientMint = "TokenMint1"
	evt.InAmount = 5_000_000
	evt.OutAmount = 2_000_000_000

	trade, err = Trade(evt, wsolPool())
	require.NoError(t, err)
	assert.False(t, trade.IsBuy)
}

func TestTrade_NotWSOLPair(t *testing.T) {
	pool := wsolPool()
	pool.MintB = "SomeOtherMint"

	_, err := Trade(swapEvent(), pool)
	assert.ErrorIs(t, err, ErrNotWSOLPair)
}

func TestTrade_InconsistentPool(t *testing.T) {
	// Orientation names a mint that is no side of the pool.
	evt := swapEvent()
	evt.Orient = domain.OrientInMint
	evt.OrientMint = "StrangerMint"
	_, err := Trade(evt, wsolPool())
	assert.ErrorIs(t, err, ErrInconsistentPool)

	// Event carries a mint hint that disagrees with the pool.
	evt = swapEvent()
	evt.Mint = "StrangerMint"
	_, err = Trade(evt, wsolPool())
	assert.ErrorIs(t, err, ErrInconsistentPool)

	// Dex mismatch between event and resolved pool.
	evt = swapEvent()
	evt.Dex = domain.DexRaydiumAmm
	_, err = Trade(evt, wsolPool())
	assert.ErrorIs(t, err, ErrInconsistentPool)
}

func TestTrade_ZeroAmountSkipped(t *testing.T) {
	evt := swapEvent()
	evt.OutAmount = 0
	_, err := Trade(evt, wsolPool())
	assert.ErrorIs(t, err, ErrZeroAmount)

	evt = swapEvent()
	evt.InAmount = 0
	_, err = Trade(evt, wsolPool())
	assert.ErrorIs(t, err, ErrZeroAmount)
}

func TestTrade_PricePrecision(t *testing.T) {
	// 1 lamport for a token with 0 decimals.
	evt := swapEvent()
	evt.InAmount = 1
	evt.OutAmount = 1

	pool := wsolPool()
	pool.DecimalsA = 0

	trade, err := Trade(evt, pool)
	require.NoError(t, err)
	assert.InDelta(t, 1e-9, trade.PriceSol, 1e-21)
}
