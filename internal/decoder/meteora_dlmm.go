package decoder

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/near/borsh-go"

	"solana-dex-ledger/internal/domain"
)

// Anchor event discriminators of the meteora dlmm program. The Swap
// discriminator is shared with meteora damm; the invocation frame keeps
// the two apart.
var (
	meteoraDlmmSwapDisc         = discriminator{81, 108, 227, 190, 205, 208, 10, 196}
	meteoraDlmmLbPairCreateDisc = discriminator{185, 74, 252, 125, 27, 215, 188, 111}
)

type meteoraDlmmSwapEvent struct {
	LbPair      pubkey
	From        pubkey
	StartBinID  int32
	EndBinID    int32
	AmountIn    uint64
	AmountOut   uint64
	SwapForY    bool
	Fee         uint64
	ProtocolFee uint64
	FeeBps      big.Int
	HostFee     uint64
}

type meteoraLbPairCreateEvent struct {
	LbPair  pubkey
	BinStep uint16
	TokenX  pubkey
	TokenY  pubkey
}

// meteoraDlmm decodes dlmm events. Token X is the pool's MintA, token Y
// is MintB.
type meteoraDlmm struct{}

func NewMeteoraDlmm() Decoder { return &meteoraDlmm{} }

func (d *meteoraDlmm) Dex() domain.DexKind { return domain.DexMeteoraDlmm }

func (d *meteoraDlmm) Program() string { return domain.MeteoraDlmmProgramID }

func (d *meteoraDlmm) DecodeLine(meta TxMeta, line string, _ Invocation) (*Event, error) {
	encoded, found := strings.CutPrefix(line, programDataPrefix)
	if !found {
		return nil, nil
	}
	disc, body, err := decodeProgramData(encoded)
	if err != nil {
		return nil, fmt.Errorf("meteora dlmm event payload: %w", err)
	}

	switch disc {
	case meteoraDlmmSwapDisc:
		var evt meteoraDlmmSwapEvent
		if err := borsh.Deserialize(&evt, body); err != nil {
			return nil, fmt.Errorf("meteora dlmm swap event: %w", err)
		}
		orient := domain.OrientMintBIn // y -> x
		if evt.SwapForY {
			orient = domain.OrientMintAIn
		}
		return &Event{Swap: &domain.SwapEvent{
			Dex:       domain.DexMeteoraDlmm,
			Pool:      evt.LbPair.String(),
			Slot:      meta.Slot,
			Txid:      meta.Txid,
			BlockTs:   meta.BlockTs,
			Trader:    evt.From.String(),
			InAmount:  evt.AmountIn,
			OutAmount: evt.AmountOut,
			Orient:    orient,
		}}, nil

	case meteoraDlmmLbPairCreateDisc:
		var evt meteoraLbPairCreateEvent
		if err := borsh.Deserialize(&evt, body); err != nil {
			return nil, fmt.Errorf("meteora dlmm lb pair create event: %w", err)
		}
		return &Event{Pool: &domain.PoolCreated{
			Dex:   domain.DexMeteoraDlmm,
			Pool:  evt.LbPair.String(),
			MintA: evt.TokenX.String(),
			MintB: evt.TokenY.String(),
			Slot:  meta.Slot,
			Txid:  meta.Txid,
		}}, nil

	default:
		return nil, nil
	}
}
