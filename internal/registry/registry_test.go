package registry

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"sync"
	"testing"

	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-dex-ledger/internal/domain"
	"solana-dex-ledger/internal/solana"
	"solana-dex-ledger/internal/solana/stub"
	"solana-dex-ledger/internal/storage/memory"
)

// offCurveAddr derives a deterministic off-curve pubkey from a seed,
// the same way PDA derivation walks bump seeds.
func offCurveAddr(t *testing.T, seed string) string {
	t.Helper()
	for bump := byte(255); bump > 0; bump-- {
		h := sha256.Sum256([]byte(fmt.Sprintf("%s|%d", seed, bump)))
		if !isOnCurve(h[:]) {
			return base58.Encode(h[:])
		}
	}
	t.Fatal("no off-curve point found")
	return ""
}

// onCurveAddr derives a deterministic on-curve pubkey from a seed.
func onCurveAddr(t *testing.T, seed string) string {
	t.Helper()
	for bump := byte(255); bump > 0; bump-- {
		h := sha256.Sum256([]byte(fmt.Sprintf("%s|%d", seed, bump)))
		if isOnCurve(h[:]) {
			return base58.Encode(h[:])
		}
	}
	t.Fatal("no on-curve point found")
	return ""
}

func rayPoolData(t *testing.T, coinMint, pcMint string, coinDec, pcDec uint8) string {
	t.Helper()
	data := make([]byte, rayAmmMinLen)
	binary.LittleEndian.PutUint64(data[rayAmmCoinDecimalsOff:], uint64(coinDec))
	binary.LittleEndian.PutUint64(data[rayAmmPCDecimalsOff:], uint64(pcDec))
	copyPubkey(t, data[rayAmmCoinMintOff:], coinMint)
	copyPubkey(t, data[rayAmmPCMintOff:], pcMint)
	return base64.StdEncoding.EncodeToString(data)
}

func dlmmPoolData(t *testing.T, tokenX, tokenY string) string {
	t.Helper()
	data := make([]byte, dlmmMinLen)
	copyPubkey(t, data[dlmmTokenXMintOff:], tokenX)
	copyPubkey(t, data[dlmmTokenYMintOff:], tokenY)
	return base64.StdEncoding.EncodeToString(data)
}

func mintData(decimals uint8) string {
	data := make([]byte, 82)
	data[splMintDecimalsOff] = decimals
	return base64.StdEncoding.EncodeToString(data)
}

func copyPubkey(t *testing.T, dst []byte, addr string) {
	t.Helper()
	raw, err := base58.Decode(addr)
	require.NoError(t, err)
	require.Len(t, raw, 32)
	copy(dst, raw)
}

func TestRegistry_ResolveRaydiumFromChain(t *testing.T) {
	ctx := context.Background()
	store := memory.NewPoolStore()
	rpc := stub.NewRPCClient()
	reg := New(store, rpc)

	poolAddr := onCurveAddr(t, "ray-pool")
	tokenMint := onCurveAddr(t, "token-mint")

	rpc.AddAccount(poolAddr, &solana.AccountInfo{
		Owner: domain.RaydiumAmmProgramID,
		Data:  rayPoolData(t, tokenMint, domain.WSOLMint, 6, 9),
	})

	pool, err := reg.Resolve(ctx, domain.DexRaydiumAmm, poolAddr, nil)
	require.NoError(t, err)
	assert.Equal(t, poolAddr, pool.Addr)
	assert.Equal(t, tokenMint, pool.MintA)
	assert.Equal(t, domain.WSOLMint, pool.MintB)
	assert.Equal(t, uint8(6), pool.DecimalsA)
	assert.Equal(t, uint8(9), pool.DecimalsB)

	// First sight persisted the row.
	stored, err := store.GetByAddr(ctx, poolAddr)
	require.NoError(t, err)
	assert.Equal(t, tokenMint, stored.MintA)

	// Second resolve is served from cache without another fetch.
	_, err = reg.Resolve(ctx, domain.DexRaydiumAmm, poolAddr, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, rpc.AccountFetches[poolAddr])
}

func TestRegistry_ResolveDlmmFetchesMintDecimals(t *testing.T) {
	ctx := context.Background()
	store := memory.NewPoolStore()
	rpc := stub.NewRPCClient()
	reg := New(store, rpc)

	poolAddr := offCurveAddr(t, "lb-pair")
	tokenMint := onCurveAddr(t, "token-x")

	rpc.AddAccount(poolAddr, &solana.AccountInfo{
		Owner: domain.MeteoraDlmmProgramID,
		Data:  dlmmPoolData(t, tokenMint, domain.WSOLMint),
	})
	rpc.AddAccount(tokenMint, &solana.AccountInfo{Data: mintData(5)})

	pool, err := reg.Resolve(ctx, domain.DexMeteoraDlmm, poolAddr, nil)
	require.NoError(t, err)
	assert.Equal(t, uint8(5), pool.DecimalsA)
	assert.Equal(t, uint8(domain.WSOLDecimals), pool.DecimalsB)
}

func TestRegistry_ResolveFromStoreSkipsRPC(t *testing.T) {
	ctx := context.Background()
	store := memory.NewPoolStore()
	rpc := stub.NewRPCClient()
	reg := New(store, rpc)

	poolAddr := offCurveAddr(t, "known-pool")
	require.NoError(t, store.Insert(ctx, &domain.Pool{
		Addr:      poolAddr,
		Dex:       domain.DexPumpAmm,
		MintA:     onCurveAddr(t, "mint-a"),
		MintB:     domain.WSOLMint,
		DecimalsA: 6,
		DecimalsB: 9,
	}))

	pool, err := reg.Resolve(ctx, domain.DexPumpAmm, poolAddr, nil)
	require.NoError(t, err)
	assert.Equal(t, uint8(6), pool.DecimalsA)
	assert.Empty(t, rpc.AccountFetches)
}

func TestRegistry_SeedFromCreationEvent(t *testing.T) {
	ctx := context.Background()
	store := memory.NewPoolStore()
	rpc := stub.NewRPCClient()
	reg := New(store, rpc)

	poolAddr := offCurveAddr(t, "curve")
	tokenMint := onCurveAddr(t, "new-token")

	pool, err := reg.Seed(ctx, &domain.PoolCreated{
		Dex:           domain.DexPumpfun,
		Pool:          poolAddr,
		MintA:         tokenMint,
		MintB:         domain.WSOLMint,
		DecimalsA:     6,
		DecimalsB:     9,
		DecimalsKnown: true,
	})
	require.NoError(t, err)
	assert.Equal(t, tokenMint, pool.MintA)
	assert.Empty(t, rpc.AccountFetches, "complete hints must not hit the chain")

	_, err = store.GetByAddr(ctx, poolAddr)
	assert.NoError(t, err)
}

func TestRegistry_SeedUnknownDecimalsFetchesMints(t *testing.T) {
	ctx := context.Background()
	store := memory.NewPoolStore()
	rpc := stub.NewRPCClient()
	reg := New(store, rpc)

	poolAddr := offCurveAddr(t, "damm-pool")
	tokenMint := onCurveAddr(t, "damm-token")
	rpc.AddAccount(tokenMint, &solana.AccountInfo{Data: mintData(8)})

	pool, err := reg.Seed(ctx, &domain.PoolCreated{
		Dex:   domain.DexMeteoraDamm,
		Pool:  poolAddr,
		MintA: tokenMint,
		MintB: domain.WSOLMint,
	})
	require.NoError(t, err)
	assert.Equal(t, uint8(8), pool.DecimalsA)
	assert.Equal(t, uint8(9), pool.DecimalsB)
	assert.Equal(t, 1, rpc.AccountFetches[tokenMint])
}

func TestRegistry_FirstSightWins(t *testing.T) {
	ctx := context.Background()
	store := memory.NewPoolStore()
	rpc := stub.NewRPCClient()
	reg := New(store, rpc)

	poolAddr := offCurveAddr(t, "contested-pool")
	firstMint := onCurveAddr(t, "first-mint")
	require.NoError(t, store.Insert(ctx, &domain.Pool{
		Addr:      poolAddr,
		Dex:       domain.DexPumpAmm,
		MintA:     firstMint,
		MintB:     domain.WSOLMint,
		DecimalsA: 6,
		DecimalsB: 9,
	}))

	// A later creation event with different metadata must not replace the row.
	pool, err := reg.Seed(ctx, &domain.PoolCreated{
		Dex:           domain.DexPumpAmm,
		Pool:          poolAddr,
		MintA:         onCurveAddr(t, "second-mint"),
		MintB:         domain.WSOLMint,
		DecimalsA:     2,
		DecimalsB:     9,
		DecimalsKnown: true,
	})
	require.NoError(t, err)
	assert.Equal(t, firstMint, pool.MintA)
	assert.Equal(t, uint8(6), pool.DecimalsA)
}

func TestRegistry_SingleFlight(t *testing.T) {
	ctx := context.Background()
	store := memory.NewPoolStore()
	rpc := stub.NewRPCClient()
	reg := New(store, rpc)

	poolAddr := offCurveAddr(t, "hot-pool")
	tokenMint := onCurveAddr(t, "hot-token")

	rpc.AddAccount(poolAddr, &solana.AccountInfo{
		Owner: domain.MeteoraDlmmProgramID,
		Data:  dlmmPoolData(t, tokenMint, domain.WSOLMint),
	})
	rpc.AddAccount(tokenMint, &solana.AccountInfo{Data: mintData(6)})

	const workers = 32
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = reg.Resolve(ctx, domain.DexMeteoraDlmm, poolAddr, nil)
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	assert.Equal(t, 1, rpc.AccountFetches[poolAddr], "concurrent resolves must collapse into one fetch")

	pools, err := store.GetByMint(ctx, tokenMint)
	require.NoError(t, err)
	assert.Len(t, pools, 1, "exactly one row inserted")
}

func TestRegistry_Unresolvable(t *testing.T) {
	ctx := context.Background()
	store := memory.NewPoolStore()
	rpc := stub.NewRPCClient()
	reg := New(store, rpc)

	// Missing account.
	_, err := reg.Resolve(ctx, domain.DexMeteoraDamm, offCurveAddr(t, "ghost"), nil)
	assert.ErrorIs(t, err, ErrMetadataUnresolvable)

	// Malformed address.
	_, err = reg.Resolve(ctx, domain.DexRaydiumAmm, "not-base58!", nil)
	assert.ErrorIs(t, err, ErrMetadataUnresolvable)

	// Anchor pool address on the curve cannot be a pda.
	_, err = reg.Resolve(ctx, domain.DexPumpAmm, onCurveAddr(t, "wallet"), nil)
	assert.ErrorIs(t, err, ErrMetadataUnresolvable)

	// Account owned by the wrong program.
	impostor := offCurveAddr(t, "impostor")
	rpc.AddAccount(impostor, &solana.AccountInfo{
		Owner: domain.PumpfunProgramID,
		Data:  dlmmPoolData(t, onCurveAddr(t, "x"), domain.WSOLMint),
	})
	_, err = reg.Resolve(ctx, domain.DexMeteoraDlmm, impostor, nil)
	assert.ErrorIs(t, err, ErrMetadataUnresolvable)
}

func TestRegistry_TruncatedAccountUnresolvable(t *testing.T) {
	ctx := context.Background()
	store := memory.NewPoolStore()
	rpc := stub.NewRPCClient()
	reg := New(store, rpc)

	poolAddr := onCurveAddr(t, "short-pool")
	rpc.AddAccount(poolAddr, &solana.AccountInfo{
		Owner: domain.RaydiumAmmProgramID,
		Data:  base64.StdEncoding.EncodeToString(make([]byte, 64)),
	})

	_, err := reg.Resolve(ctx, domain.DexRaydiumAmm, poolAddr, nil)
	assert.ErrorIs(t, err, ErrMetadataUnresolvable)
}
