package decoder

import (
	"fmt"
	"strings"

	"github.com/near/borsh-go"

	"solana-dex-ledger/internal/domain"
)

// Anchor event discriminators of the pump.fun bonding curve program.
var (
	pumpfunTradeDisc    = discriminator{189, 219, 127, 211, 78, 230, 97, 238}
	pumpfunCreateDisc   = discriminator{27, 114, 169, 77, 222, 235, 99, 118}
	pumpfunCompleteDisc = discriminator{95, 114, 97, 156, 212, 46, 152, 8}
)

// pumpfunTradeEvent is the borsh body of the pump.fun Trade event.
type pumpfunTradeEvent struct {
	Mint                 pubkey
	SolAmount            uint64
	TokenAmount          uint64
	IsBuy                bool
	User                 pubkey
	Timestamp            int64
	VirtualSolReserves   uint64
	VirtualTokenReserves uint64
	RealSolReserves      uint64
	RealTokenReserves    uint64
}

type pumpfunCreateEvent struct {
	Name         string
	Symbol       string
	URI          string
	Mint         pubkey
	BondingCurve pubkey
	User         pubkey
}

// Bonding curve position in the pump.fun buy/sell instruction accounts.
const pumpfunIxCurvePos = 3

// Bonding curve token sides are fixed: the launched token has 6 decimals
// and trades against SOL.
const (
	pumpfunTokenDecimals = 6
)

type pumpfun struct{}

func NewPumpfun() Decoder { return &pumpfun{} }

func (d *pumpfun) Dex() domain.DexKind { return domain.DexPumpfun }

func (d *pumpfun) Program() string { return domain.PumpfunProgramID }

func (d *pumpfun) DecodeLine(meta TxMeta, line string, inv Invocation) (*Event, error) {
	encoded, found := strings.CutPrefix(line, programDataPrefix)
	if !found {
		return nil, nil
	}
	disc, body, err := decodeProgramData(encoded)
	if err != nil {
		return nil, fmt.Errorf("pumpfun event payload: %w", err)
	}

	switch disc {
	case pumpfunTradeDisc:
		var evt pumpfunTradeEvent
		if err := borsh.Deserialize(&evt, body); err != nil {
			return nil, fmt.Errorf("pumpfun trade event: %w", err)
		}
		if len(inv.Accounts) <= pumpfunIxCurvePos {
			return nil, fmt.Errorf("pumpfun trade: instruction accounts unavailable")
		}

		// The curve always quotes the token (MintA) against SOL (MintB).
		swap := &domain.SwapEvent{
			Dex:     domain.DexPumpfun,
			Pool:    inv.Accounts[pumpfunIxCurvePos],
			Slot:    meta.Slot,
			Txid:    meta.Txid,
			BlockTs: meta.BlockTs,
			Trader:  evt.User.String(),
			Mint:    evt.Mint.String(),
		}
		if evt.IsBuy {
			swap.InAmount = evt.SolAmount
			swap.OutAmount = evt.TokenAmount
			swap.Orient = domain.OrientMintBIn
		} else {
			swap.InAmount = evt.TokenAmount
			swap.OutAmount = evt.SolAmount
			swap.Orient = domain.OrientMintAIn
		}
		return &Event{Swap: swap}, nil

	case pumpfunCreateDisc:
		var evt pumpfunCreateEvent
		if err := borsh.Deserialize(&evt, body); err != nil {
			return nil, fmt.Errorf("pumpfun create event: %w", err)
		}
		return &Event{Pool: &domain.PoolCreated{
			Dex:           domain.DexPumpfun,
			Pool:          evt.BondingCurve.String(),
			MintA:         evt.Mint.String(),
			MintB:         domain.WSOLMint,
			DecimalsA:     pumpfunTokenDecimals,
			DecimalsB:     domain.WSOLDecimals,
			DecimalsKnown: true,
			Slot:          meta.Slot,
			Txid:          meta.Txid,
		}}, nil

	case pumpfunCompleteDisc:
		// Curve graduation; trading moves to pump amm.
		return nil, nil

	default:
		return nil, nil
	}
}
