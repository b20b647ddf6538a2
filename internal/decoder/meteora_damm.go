package decoder

import (
	"fmt"
	"strings"

	"github.com/near/borsh-go"

	"solana-dex-ledger/internal/domain"
)

// Anchor event discriminators of the meteora dynamic amm program.
var (
	meteoraDammSwapDisc        = discriminator{81, 108, 227, 190, 205, 208, 10, 196}
	meteoraDammPoolCreatedDisc = discriminator{202, 44, 41, 88, 104, 220, 157, 82}
)

type meteoraDammSwapEvent struct {
	InAmount    uint64
	OutAmount   uint64
	TradeFee    uint64
	ProtocolFee uint64
	HostFee     uint64
}

type meteoraDammPoolCreatedEvent struct {
	LPMint     pubkey
	TokenAMint pubkey
	TokenBMint pubkey
	PoolType   uint8
	Pool       pubkey
}

// Instruction account positions of the damm swap instruction.
const (
	dammSwapIxPoolPos    = 0
	dammSwapIxUserSrcPos = 1
	dammSwapIxUserDstPos = 2
	dammSwapIxTraderPos  = 12
)

// meteoraDamm decodes dynamic amm events. The swap event names no
// accounts and no direction, so pool and trader come from the matched
// instruction and the direction from the mint held by the trader's
// source (or destination) token account.
type meteoraDamm struct{}

func NewMeteoraDamm() Decoder { return &meteoraDamm{} }

func (d *meteoraDamm) Dex() domain.DexKind { return domain.DexMeteoraDamm }

func (d *meteoraDamm) Program() string { return domain.MeteoraDammProgramID }

func (d *meteoraDamm) DecodeLine(meta TxMeta, line string, inv Invocation) (*Event, error) {
	encoded, found := strings.CutPrefix(line, programDataPrefix)
	if !found {
		return nil, nil
	}
	disc, body, err := decodeProgramData(encoded)
	if err != nil {
		return nil, fmt.Errorf("meteora damm event payload: %w", err)
	}

	switch disc {
	case meteoraDammSwapDisc:
		var evt meteoraDammSwapEvent
		if err := borsh.Deserialize(&evt, body); err != nil {
			return nil, fmt.Errorf("meteora damm swap event: %w", err)
		}
		return d.swapEvent(meta, inv, evt)

	case meteoraDammPoolCreatedDisc:
		var evt meteoraDammPoolCreatedEvent
		if err := borsh.Deserialize(&evt, body); err != nil {
			return nil, fmt.Errorf("meteora damm pool created event: %w", err)
		}
		return &Event{Pool: &domain.PoolCreated{
			Dex:   domain.DexMeteoraDamm,
			Pool:  evt.Pool.String(),
			MintA: evt.TokenAMint.String(),
			MintB: evt.TokenBMint.String(),
			Slot:  meta.Slot,
			Txid:  meta.Txid,
		}}, nil

	default:
		return nil, nil
	}
}

func (d *meteoraDamm) swapEvent(meta TxMeta, inv Invocation, evt meteoraDammSwapEvent) (*Event, error) {
	if len(inv.Accounts) <= dammSwapIxTraderPos {
		return nil, fmt.Errorf("meteora damm swap: instruction accounts unavailable")
	}

	swap := &domain.SwapEvent{
		Dex:       domain.DexMeteoraDamm,
		Pool:      inv.Accounts[dammSwapIxPoolPos],
		Slot:      meta.Slot,
		Txid:      meta.Txid,
		BlockTs:   meta.BlockTs,
		Trader:    inv.Accounts[dammSwapIxTraderPos],
		InAmount:  evt.InAmount - min(evt.ProtocolFee, evt.InAmount),
		OutAmount: evt.OutAmount,
	}

	if src, ok := inv.Balances[inv.Accounts[dammSwapIxUserSrcPos]]; ok {
		swap.Orient = domain.OrientInMint
		swap.OrientMint = src.Mint
		return &Event{Swap: swap}, nil
	}
	if dst, ok := inv.Balances[inv.Accounts[dammSwapIxUserDstPos]]; ok {
		swap.Orient = domain.OrientOutMint
		swap.OrientMint = dst.Mint
		return &Event{Swap: swap}, nil
	}
	return nil, fmt.Errorf("meteora damm swap: no user token balance for source or destination")
}
