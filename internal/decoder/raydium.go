package decoder

import (
	"encoding/base64"
	"fmt"
	"strings"

	bin "github.com/gagliardetto/binary"

	"solana-dex-ledger/internal/domain"
)

// rayLogPrefix introduces the base64 bincode payload raydium amm writes to
// transaction logs.
const rayLogPrefix = "Program log: ray_log: "

// ray_log record types, first payload byte.
const (
	rayLogInit uint8 = iota
	rayLogDeposit
	rayLogWithdraw
	rayLogSwapBaseIn
	rayLogSwapBaseOut
)

// Swap direction in ray_log swap records: 1 means pc -> coin.
const rayDirectionPC2Coin = 1

// raySwapBaseInLog mirrors the on-chain SwapBaseInLog record. Fields are
// little-endian packed.
type raySwapBaseInLog struct {
	LogType    uint8
	AmountIn   uint64
	MinimumOut uint64
	Direction  uint64
	UserSource uint64
	PoolCoin   uint64
	PoolPC     uint64
	OutAmount  uint64
}

type raySwapBaseOutLog struct {
	LogType    uint8
	MaxIn      uint64
	AmountOut  uint64
	Direction  uint64
	UserSource uint64
	PoolCoin   uint64
	PoolPC     uint64
	DeductIn   uint64
}

type rayInitLog struct {
	LogType      uint8
	Time         uint64
	PCDecimals   uint8
	CoinDecimals uint8
	PCLotSize    uint64
	CoinLotSize  uint64
	PCAmount     uint64
	CoinAmount   uint64
	Market       pubkey
}

// Instruction account positions of the raydium amm program. Swap and
// initialize2 instructions carry an optional extra account, shifting the
// vault positions; only the fixed leading positions are used here.
const (
	rayInitIxPoolPos     = 4
	rayInitIxCoinMintPos = 8
	rayInitIxPCMintPos   = 9
	raySwapIxPoolPos     = 1
)

// raydiumAmm decodes ray_log records. The log itself carries no account
// addresses, so pool and trader come from the matched instruction.
type raydiumAmm struct{}

func NewRaydiumAmm() Decoder { return &raydiumAmm{} }

func (d *raydiumAmm) Dex() domain.DexKind { return domain.DexRaydiumAmm }

func (d *raydiumAmm) Program() string { return domain.RaydiumAmmProgramID }

func (d *raydiumAmm) DecodeLine(meta TxMeta, line string, inv Invocation) (*Event, error) {
	encoded, found := strings.CutPrefix(line, rayLogPrefix)
	if !found {
		return nil, nil
	}

	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("ray_log base64: %w", err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("empty ray_log payload")
	}

	switch raw[0] {
	case rayLogSwapBaseIn:
		var log raySwapBaseInLog
		if err := bin.NewBinDecoder(raw).Decode(&log); err != nil {
			return nil, fmt.Errorf("ray_log swap base in: %w", err)
		}
		return d.swapEvent(meta, inv, log.Direction, log.AmountIn, log.OutAmount)

	case rayLogSwapBaseOut:
		var log raySwapBaseOutLog
		if err := bin.NewBinDecoder(raw).Decode(&log); err != nil {
			return nil, fmt.Errorf("ray_log swap base out: %w", err)
		}
		return d.swapEvent(meta, inv, log.Direction, log.DeductIn, log.AmountOut)

	case rayLogInit:
		var log rayInitLog
		if err := bin.NewBinDecoder(raw).Decode(&log); err != nil {
			return nil, fmt.Errorf("ray_log init: %w", err)
		}
		if len(inv.Accounts) <= rayInitIxPCMintPos {
			return nil, fmt.Errorf("ray_log init: instruction accounts unavailable")
		}
		return &Event{Pool: &domain.PoolCreated{
			Dex:           domain.DexRaydiumAmm,
			Pool:          inv.Accounts[rayInitIxPoolPos],
			MintA:         inv.Accounts[rayInitIxCoinMintPos],
			MintB:         inv.Accounts[rayInitIxPCMintPos],
			DecimalsA:     log.CoinDecimals,
			DecimalsB:     log.PCDecimals,
			DecimalsKnown: true,
			Slot:          meta.Slot,
			Txid:          meta.Txid,
		}}, nil

	case rayLogDeposit, rayLogWithdraw:
		return nil, nil

	default:
		return nil, fmt.Errorf("unknown ray_log type %d", raw[0])
	}
}

// swapEvent builds the swap with coin as the pool's MintA and pc as
// MintB, the same side mapping the registry uses for amm accounts.
func (d *raydiumAmm) swapEvent(meta TxMeta, inv Invocation, direction, in, out uint64) (*Event, error) {
	if len(inv.Accounts) <= raySwapIxPoolPos {
		return nil, fmt.Errorf("ray_log swap: instruction accounts unavailable")
	}

	orient := domain.OrientMintAIn // coin -> pc
	if direction == rayDirectionPC2Coin {
		orient = domain.OrientMintBIn
	}

	// The swap instruction's last account is the trader wallet.
	trader := inv.Accounts[len(inv.Accounts)-1]

	return &Event{Swap: &domain.SwapEvent{
		Dex:       domain.DexRaydiumAmm,
		Pool:      inv.Accounts[raySwapIxPoolPos],
		Slot:      meta.Slot,
		Txid:      meta.Txid,
		BlockTs:   meta.BlockTs,
		Trader:    trader,
		InAmount:  in,
		OutAmount: out,
		Orient:    orient,
	}}, nil
}
