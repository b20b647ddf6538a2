package registry

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"

	"github.com/mr-tron/base58"

	"solana-dex-ledger/internal/domain"
)

// Pool account layout offsets per DEX. Anchor accounts carry an 8-byte
// discriminator before their fields.
const (
	// Raydium AmmInfo.
	rayAmmCoinDecimalsOff = 32
	rayAmmPCDecimalsOff   = 40
	rayAmmCoinMintOff     = 464
	rayAmmPCMintOff       = 496
	rayAmmMinLen          = rayAmmPCMintOff + 32

	// Pump amm Pool: 8 discriminator + 1 bump + 2 index + 32 creator.
	pumpAmmBaseMintOff  = 43
	pumpAmmQuoteMintOff = 75
	pumpAmmMinLen       = pumpAmmQuoteMintOff + 32

	// Meteora dlmm LbPair.
	dlmmTokenXMintOff = 88
	dlmmTokenYMintOff = 120
	dlmmMinLen        = dlmmTokenYMintOff + 32

	// Meteora dynamic amm Pool: 8 discriminator + 32 lp_mint.
	dammTokenAMintOff = 40
	dammTokenBMintOff = 72
	dammMinLen        = dammTokenBMintOff + 32

	// SPL token Mint: 4 authority option + 32 authority + 8 supply.
	splMintDecimalsOff = 44
	splMintMinLen      = splMintDecimalsOff + 1
)

// poolLayout describes the metadata extracted from a raw pool account.
type poolLayout struct {
	MintA         string
	MintB         string
	DecimalsA     uint8
	DecimalsB     uint8
	DecimalsKnown bool
}

// parsePoolAccount extracts pool metadata from base64 account data.
// Only raydium stores decimals in the pool account itself; the other
// layouts need a follow-up mint fetch.
func parsePoolAccount(dex domain.DexKind, encoded string) (*poolLayout, error) {
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode account data: %w", err)
	}

	switch dex {
	case domain.DexRaydiumAmm:
		if len(data) < rayAmmMinLen {
			return nil, fmt.Errorf("raydium amm account too short: %d bytes", len(data))
		}
		return &poolLayout{
			MintA:         readPubkey(data, rayAmmCoinMintOff),
			MintB:         readPubkey(data, rayAmmPCMintOff),
			DecimalsA:     uint8(binary.LittleEndian.Uint64(data[rayAmmCoinDecimalsOff:])),
			DecimalsB:     uint8(binary.LittleEndian.Uint64(data[rayAmmPCDecimalsOff:])),
			DecimalsKnown: true,
		}, nil

	case domain.DexPumpAmm:
		if len(data) < pumpAmmMinLen {
			return nil, fmt.Errorf("pump amm pool account too short: %d bytes", len(data))
		}
		return &poolLayout{
			MintA: readPubkey(data, pumpAmmBaseMintOff),
			MintB: readPubkey(data, pumpAmmQuoteMintOff),
		}, nil

	case domain.DexMeteoraDlmm:
		if len(data) < dlmmMinLen {
			return nil, fmt.Errorf("lb pair account too short: %d bytes", len(data))
		}
		return &poolLayout{
			MintA: readPubkey(data, dlmmTokenXMintOff),
			MintB: readPubkey(data, dlmmTokenYMintOff),
		}, nil

	case domain.DexMeteoraDamm:
		if len(data) < dammMinLen {
			return nil, fmt.Errorf("meteora damm pool account too short: %d bytes", len(data))
		}
		return &poolLayout{
			MintA: readPubkey(data, dammTokenAMintOff),
			MintB: readPubkey(data, dammTokenBMintOff),
		}, nil

	default:
		// Pumpfun bonding curves do not name their mint; they resolve
		// from event hints only.
		return nil, fmt.Errorf("no pool account layout for dex %s", dex)
	}
}

// parseMintDecimals extracts the decimals byte from base64 SPL mint
// account data.
func parseMintDecimals(encoded string) (uint8, error) {
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return 0, fmt.Errorf("decode mint data: %w", err)
	}
	if len(data) < splMintMinLen {
		return 0, fmt.Errorf("mint account too short: %d bytes", len(data))
	}
	return data[splMintDecimalsOff], nil
}

func readPubkey(data []byte, off int) string {
	return base58.Encode(data[off : off+32])
}
