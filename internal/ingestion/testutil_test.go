package ingestion

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"log"
	"sync"
	"testing"
	"time"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
	"github.com/near/borsh-go"
	"github.com/stretchr/testify/require"

	"solana-dex-ledger/internal/decoder"
	"solana-dex-ledger/internal/domain"
	"solana-dex-ledger/internal/registry"
	"solana-dex-ledger/internal/sequencer"
	"solana-dex-ledger/internal/solana"
	"solana-dex-ledger/internal/solana/stub"
	"solana-dex-ledger/internal/storage/memory"
	"solana-dex-ledger/internal/writer"
)

// tradeEventDisc is the anchor discriminator of the pump.fun Trade event.
var tradeEventDisc = [8]byte{189, 219, 127, 211, 78, 230, 97, 238}

// tradeEventBody mirrors the borsh layout the bonding curve program emits.
type tradeEventBody struct {
	Mint                 [32]uint8
	SolAmount            uint64
	TokenAmount          uint64
	IsBuy                bool
	User                 [32]uint8
	Timestamp            int64
	VirtualSolReserves   uint64
	VirtualTokenReserves uint64
	RealSolReserves      uint64
	RealTokenReserves    uint64
}

// pipeline wires a processor against in-memory stores and a running
// writer, the same shape cmd/ingest assembles.
type pipeline struct {
	rpc       *stub.RPCClient
	pools     *memory.PoolStore
	trades    *memory.TradeStore
	writer    *writer.Writer
	processor *Processor

	cancel     context.CancelFunc
	writerDone chan error
	stopOnce   sync.Once
}

func newPipeline(t *testing.T) *pipeline {
	t.Helper()
	return newPipelineWithStores(t, memory.NewPoolStore(), memory.NewTradeStore())
}

func newPipelineWithStores(t *testing.T, pools *memory.PoolStore, trades *memory.TradeStore) *pipeline {
	t.Helper()

	rpc := stub.NewRPCClient()
	reg := registry.New(pools, rpc)

	seq, err := sequencer.New(time.Minute)
	require.NoError(t, err)
	t.Cleanup(seq.Close)

	w := writer.New(trades, nil, writer.Config{
		BatchSize:     8,
		FlushInterval: 10 * time.Millisecond,
		QueueSize:     100,
		MaxRetries:    2,
		RetryInterval: time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	p := &pipeline{
		rpc:        rpc,
		pools:      pools,
		trades:     trades,
		writer:     w,
		processor:  NewProcessor(decoder.NewRegistry(), reg, seq, w, discardLogger()),
		cancel:     cancel,
		writerDone: done,
	}
	t.Cleanup(func() { p.stopWriter(t) })
	return p
}

// stopWriter cancels the writer and waits for its final flush.
func (p *pipeline) stopWriter(t *testing.T) {
	t.Helper()
	p.stopOnce.Do(func() {
		p.cancel()
		select {
		case <-p.writerDone:
		case <-time.After(5 * time.Second):
			t.Fatal("writer did not stop")
		}
	})
}

func discardLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

// seedKey derives a deterministic pubkey from a single byte.
func seedKey(seed byte) ([32]uint8, string) {
	var raw [32]uint8
	for i := range raw {
		raw[i] = seed
	}
	return raw, base58.Encode(raw[:])
}

// offCurveAddr derives a deterministic off-curve pubkey from a seed, the
// way program-derived addresses walk bumps until leaving the curve.
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

func isOnCurve(point []byte) bool {
	_, err := new(edwards25519.Point).SetBytes(point)
	return err == nil
}

// anchorDataLog builds a "Program data:" log line from a discriminator
// and a borsh event body.
func anchorDataLog(t *testing.T, disc [8]byte, body interface{}) string {
	t.Helper()
	encoded, err := borsh.Serialize(body)
	require.NoError(t, err)
	payload := append(disc[:], encoded...)
	return "Program data: " + base64.StdEncoding.EncodeToString(payload)
}

// curveTradeTx builds a full transaction carrying one pump.fun trade
// against the given bonding curve.
func curveTradeTx(t *testing.T, txid string, slot int64, curve string, mintSeed, traderSeed byte, solAmt, tokenAmt uint64, isBuy bool) *solana.Transaction {
	t.Helper()

	mintRaw, mint := seedKey(mintSeed)
	traderRaw, trader := seedKey(traderSeed)

	body := tradeEventBody{
		Mint:        mintRaw,
		SolAmount:   solAmt,
		TokenAmount: tokenAmt,
		IsBuy:       isBuy,
		User:        traderRaw,
		Timestamp:   1700000000,
	}

	logs := []string{
		fmt.Sprintf("Program %s invoke [1]", domain.PumpfunProgramID),
		anchorDataLog(t, tradeEventDisc, body),
		fmt.Sprintf("Program %s success", domain.PumpfunProgramID),
	}
	ix := solana.Instruction{
		Program:  domain.PumpfunProgramID,
		Accounts: []string{"global", "feeRecipient", mint, curve, "solVault", "tokenVault", trader},
	}

	return &solana.Transaction{
		Slot:      slot,
		Signature: txid,
		BlockTime: 1700000000,
		Meta:      &solana.TransactionMeta{LogMessages: logs},
		Message: &solana.TransactionMessage{
			AccountKeys:  []string{trader},
			Instructions: []solana.Instruction{ix},
		},
	}
}
