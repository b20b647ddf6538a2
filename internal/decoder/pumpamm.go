package decoder

import (
	"fmt"
	"strings"

	"github.com/near/borsh-go"

	"solana-dex-ledger/internal/domain"
)

// Anchor event discriminators of the pump amm program.
var (
	pumpAmmCreatePoolDisc = discriminator{177, 49, 12, 210, 160, 118, 167, 116}
	pumpAmmBuyDisc        = discriminator{103, 244, 82, 31, 44, 245, 119, 119}
	pumpAmmSellDisc       = discriminator{62, 47, 55, 10, 165, 3, 220, 42}
)

type pumpAmmCreatePoolEvent struct {
	Timestamp             int64
	Index                 uint16
	Creator               pubkey
	BaseMint              pubkey
	QuoteMint             pubkey
	BaseMintDecimals      uint8
	QuoteMintDecimals     uint8
	BaseAmountIn          uint64
	QuoteAmountIn         uint64
	PoolBaseAmount        uint64
	PoolQuoteAmount       uint64
	MinimumLiquidity      uint64
	InitialLiquidity      uint64
	LPTokenAmountOut      uint64
	PoolBump              uint8
	Pool                  pubkey
	LPMint                pubkey
	UserBaseTokenAccount  pubkey
	UserQuoteTokenAccount pubkey
}

type pumpAmmBuyEvent struct {
	Timestamp                        int64
	BaseAmountOut                    uint64
	MaxQuoteAmountIn                 uint64
	UserBaseTokenReserves            uint64
	UserQuoteTokenReserves           uint64
	PoolBaseTokenReserves            uint64
	PoolQuoteTokenReserves           uint64
	QuoteAmountIn                    uint64
	LPFeeBasisPoints                 uint64
	LPFee                            uint64
	ProtocolFeeBasisPoints           uint64
	ProtocolFee                      uint64
	QuoteAmountInWithLPFee           uint64
	UserQuoteAmountIn                uint64
	Pool                             pubkey
	User                             pubkey
	UserBaseTokenAccount             pubkey
	UserQuoteTokenAccount            pubkey
	ProtocolFeeRecipient             pubkey
	ProtocolFeeRecipientTokenAccount pubkey
}

type pumpAmmSellEvent struct {
	Timestamp                        int64
	BaseAmountIn                     uint64
	MinQuoteAmountOut                uint64
	UserBaseTokenReserves            uint64
	UserQuoteTokenReserves           uint64
	PoolBaseTokenReserves            uint64
	PoolQuoteTokenReserves           uint64
	QuoteAmountOut                   uint64
	LPFeeBasisPoints                 uint64
	LPFee                            uint64
	ProtocolFeeBasisPoints           uint64
	ProtocolFee                      uint64
	QuoteAmountOutWithoutLPFee       uint64
	UserQuoteAmountOut               uint64
	Pool                             pubkey
	User                             pubkey
	UserBaseTokenAccount             pubkey
	UserQuoteTokenAccount            pubkey
	ProtocolFeeRecipient             pubkey
	ProtocolFeeRecipientTokenAccount pubkey
}

// pumpAmm decodes pump amm events. Base is the pool's MintA, quote is
// MintB.
type pumpAmm struct{}

func NewPumpAmm() Decoder { return &pumpAmm{} }

func (d *pumpAmm) Dex() domain.DexKind { return domain.DexPumpAmm }

func (d *pumpAmm) Program() string { return domain.PumpAmmProgramID }

func (d *pumpAmm) DecodeLine(meta TxMeta, line string, _ Invocation) (*Event, error) {
	encoded, found := strings.CutPrefix(line, programDataPrefix)
	if !found {
		return nil, nil
	}
	disc, body, err := decodeProgramData(encoded)
	if err != nil {
		return nil, fmt.Errorf("pump amm event payload: %w", err)
	}

	switch disc {
	case pumpAmmBuyDisc:
		var evt pumpAmmBuyEvent
		if err := borsh.Deserialize(&evt, body); err != nil {
			return nil, fmt.Errorf("pump amm buy event: %w", err)
		}
		return &Event{Swap: &domain.SwapEvent{
			Dex:       domain.DexPumpAmm,
			Pool:      evt.Pool.String(),
			Slot:      meta.Slot,
			Txid:      meta.Txid,
			BlockTs:   meta.BlockTs,
			Trader:    evt.User.String(),
			InAmount:  evt.QuoteAmountInWithLPFee,
			OutAmount: evt.BaseAmountOut,
			Orient:    domain.OrientMintBIn,
		}}, nil

	case pumpAmmSellDisc:
		var evt pumpAmmSellEvent
		if err := borsh.Deserialize(&evt, body); err != nil {
			return nil, fmt.Errorf("pump amm sell event: %w", err)
		}
		return &Event{Swap: &domain.SwapEvent{
			Dex:       domain.DexPumpAmm,
			Pool:      evt.Pool.String(),
			Slot:      meta.Slot,
			Txid:      meta.Txid,
			BlockTs:   meta.BlockTs,
			Trader:    evt.User.String(),
			InAmount:  evt.BaseAmountIn,
			OutAmount: evt.UserQuoteAmountOut,
			Orient:    domain.OrientMintAIn,
		}}, nil

	case pumpAmmCreatePoolDisc:
		var evt pumpAmmCreatePoolEvent
		if err := borsh.Deserialize(&evt, body); err != nil {
			return nil, fmt.Errorf("pump amm create pool event: %w", err)
		}
		return &Event{Pool: &domain.PoolCreated{
			Dex:           domain.DexPumpAmm,
			Pool:          evt.Pool.String(),
			MintA:         evt.BaseMint.String(),
			MintB:         evt.QuoteMint.String(),
			DecimalsA:     evt.BaseMintDecimals,
			DecimalsB:     evt.QuoteMintDecimals,
			DecimalsKnown: true,
			Slot:          meta.Slot,
			Txid:          meta.Txid,
		}}, nil

	default:
		return nil, nil
	}
}
