package domain

// DexKind identifies the DEX protocol a pool or trade belongs to.
// Values are stored verbatim in the pools.dex and trades.dex columns.
type DexKind string

const (
	DexRaydiumAmm  DexKind = "raydium_amm"
	DexPumpfun     DexKind = "pumpfun"
	DexPumpAmm     DexKind = "pump_amm"
	DexMeteoraDlmm DexKind = "meteora_dlmm"
	DexMeteoraDamm DexKind = "meteora_damm"
)

// On-chain program addresses for each supported DEX.
const (
	RaydiumAmmProgramID  = "675kPX9MHTjS2zt1qfr1NYHuzeLXfQM9H24wFSUt1Mp8"
	PumpfunProgramID     = "6EF8rrecthR5Dkzon8Nwu78hRvfCKubJ14M5uBEwF6P"
	PumpAmmProgramID     = "pAMMBay6oceH9fJKBRHGP5D4bD4sWpmSwMn52FMfXEA"
	MeteoraDlmmProgramID = "LBUZKhRxPF3XUpBCjp4YzTKgLccjZhTSDM9YuVaPwxo"
	MeteoraDammProgramID = "Eo7WjKq67rjJQSZxS6z3YkapzY3eMj6Xy8X5EQVn5UaB"
)

// WSOLMint is wrapped SOL, the quote asset every ingested pool must pair with.
const WSOLMint = "So11111111111111111111111111111111111111112"

// WSOLDecimals is the decimal count of the WSOL mint (lamports per SOL).
const WSOLDecimals = 9

// ProgramDex maps a program address to its DexKind. The map is closed:
// unknown programs are not decoded.
var ProgramDex = map[string]DexKind{
	RaydiumAmmProgramID:  DexRaydiumAmm,
	PumpfunProgramID:     DexPumpfun,
	PumpAmmProgramID:     DexPumpAmm,
	MeteoraDlmmProgramID: DexMeteoraDlmm,
	MeteoraDammProgramID: DexMeteoraDamm,
}

// DexProgram is the inverse of ProgramDex.
func DexProgram(kind DexKind) (string, bool) {
	for program, dex := range ProgramDex {
		if dex == kind {
			return program, true
		}
	}
	return "", false
}

// ValidDex reports whether kind is one of the supported DEX protocols.
func ValidDex(kind DexKind) bool {
	switch kind {
	case DexRaydiumAmm, DexPumpfun, DexPumpAmm, DexMeteoraDlmm, DexMeteoraDamm:
		return true
	}
	return false
}
