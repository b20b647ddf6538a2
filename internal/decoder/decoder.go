// Package decoder turns raw Solana transaction logs into protocol-neutral
// swap and pool-creation events. One decoder per supported DEX program;
// the set is closed and versioned with the binary.
package decoder

import (
	"encoding/base64"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/mr-tron/base58"

	"solana-dex-ledger/internal/domain"
	"solana-dex-ledger/internal/solana"
)

// TxMeta carries transaction-scoped context shared by all events of one
// transaction.
type TxMeta struct {
	Slot     uint64
	Txid     string
	BlockTs  time.Time
	FeePayer string
}

// TokenBalance is the token amount held by one account after the
// transaction (pre-balance when no post entry exists).
type TokenBalance struct {
	Mint     string
	Decimals uint8
	Amount   uint64
}

// Invocation is the instruction frame a log line was emitted under.
// Accounts is nil when the frame could not be matched to an instruction.
type Invocation struct {
	Program  string
	Accounts []string
	// Balances maps account address to its token balance for the whole
	// transaction. Shared by every frame.
	Balances map[string]TokenBalance
}

// Event is one decoded occurrence. Exactly one field is set.
type Event struct {
	Swap *domain.SwapEvent
	Pool *domain.PoolCreated
}

// Decoder parses log lines of a single DEX program.
type Decoder interface {
	Dex() domain.DexKind
	Program() string

	// DecodeLine parses one log line emitted under inv. Lines that carry
	// no event for this decoder return (nil, nil); malformed event
	// payloads return an error.
	DecodeLine(meta TxMeta, line string, inv Invocation) (*Event, error)
}

// DecodeError wraps a per-event decode failure with its origin.
type DecodeError struct {
	Dex  domain.DexKind
	Txid string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s event in tx %s: %v", e.Dex, e.Txid, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Registry dispatches transaction logs to the registered decoders.
type Registry struct {
	decoders map[string]Decoder
}

// NewRegistry creates a registry with all supported DEX decoders.
func NewRegistry() *Registry {
	r := &Registry{decoders: make(map[string]Decoder)}
	r.Register(NewRaydiumAmm())
	r.Register(NewPumpfun())
	r.Register(NewPumpAmm())
	r.Register(NewMeteoraDlmm())
	r.Register(NewMeteoraDamm())
	return r
}

// Register adds a decoder keyed by its program address.
func (r *Registry) Register(d Decoder) {
	r.decoders[d.Program()] = d
}

// Programs returns the registered program addresses.
func (r *Registry) Programs() []string {
	programs := make([]string, 0, len(r.decoders))
	for program := range r.decoders {
		programs = append(programs, program)
	}
	return programs
}

// frame is one entry of the program invocation stack built from
// "Program X invoke [n]" log lines.
type frame struct {
	program  string
	accounts []string
}

// DecodeTransaction walks the transaction's logs, attributes each line to
// the program that emitted it, and collects decoded events; anchor events
// delivered only as self-CPI inner instructions are recovered afterwards.
// Decode failures of individual events are returned alongside the
// successfully decoded ones; they never abort the transaction.
//
// Swap event indices are assigned in log order, so they reflect
// execution order within the transaction.
func (r *Registry) DecodeTransaction(tx *solana.Transaction) ([]domain.SwapEvent, []domain.PoolCreated, []*DecodeError) {
	if tx == nil || tx.Meta == nil || tx.Meta.Err != nil {
		return nil, nil, nil
	}

	meta := TxMeta{
		Slot:     uint64(tx.Slot),
		Txid:     tx.Signature,
		BlockTs:  time.Unix(tx.BlockTime, 0).UTC(),
		FeePayer: tx.FeePayer(),
	}

	balances := buildBalances(tx)

	var topIxs []solana.Instruction
	if tx.Message != nil {
		topIxs = tx.Message.Instructions
	}

	var (
		swaps  []domain.SwapEvent
		pools  []domain.PoolCreated
		errs   []*DecodeError
		stack  []frame
		topIdx = -1
		// position of the next unconsumed inner instruction per top-level
		// instruction index
		innerPos = make(map[int]int)
		// event payloads seen in log lines, per program; the event-CPI
		// pass skips these
		logged = make(map[string]int)
	)

	emit := func(evt *Event) {
		if evt.Swap != nil {
			evt.Swap.Idx = uint32(len(swaps))
			swaps = append(swaps, *evt.Swap)
		}
		if evt.Pool != nil {
			pools = append(pools, *evt.Pool)
		}
	}

	for _, line := range tx.Meta.LogMessages {
		if program, depth, ok := parseInvoke(line); ok {
			f := frame{program: program}
			if depth == 1 {
				topIdx++
				if topIdx < len(topIxs) {
					f.accounts = topIxs[topIdx].Accounts
				}
			} else if topIdx >= 0 {
				f.accounts = nextInnerAccounts(tx.Meta.InnerInstructions, innerPos, topIdx, program)
			}
			stack = append(stack, f)
			continue
		}
		if program, ok := parseFinish(line); ok {
			if n := len(stack); n > 0 && stack[n-1].program == program {
				stack = stack[:n-1]
			}
			continue
		}

		if len(stack) == 0 {
			continue
		}
		current := stack[len(stack)-1]
		dec, ok := r.decoders[current.program]
		if !ok {
			continue
		}

		if enc, found := strings.CutPrefix(line, programDataPrefix); found {
			if raw, decErr := base64.StdEncoding.DecodeString(enc); decErr == nil {
				logged[current.program+"\x00"+string(raw)]++
			}
		}

		inv := Invocation{
			Program:  current.program,
			Accounts: current.accounts,
			Balances: balances,
		}
		evt, err := dec.DecodeLine(meta, line, inv)
		if err != nil {
			errs = append(errs, &DecodeError{Dex: dec.Dex(), Txid: meta.Txid, Err: err})
			continue
		}
		if evt != nil {
			emit(evt)
		}
	}

	// Anchor programs deliver events as self-CPI inner instructions
	// (emit_cpi) as well; busy transactions get their logs truncated,
	// so the inner-instruction copy is the durable one. Payloads
	// already decoded from logs are skipped.
	innerIdxs := make([]int, 0, len(tx.Meta.InnerInstructions))
	for i := range tx.Meta.InnerInstructions {
		innerIdxs = append(innerIdxs, i)
	}
	sort.Ints(innerIdxs)

	for _, ti := range innerIdxs {
		// The event CPI itself only carries the event authority; the
		// instruction accounts come from the nearest preceding
		// instruction of the emitting program.
		lastAccounts := make(map[string][]string)
		if ti < len(topIxs) {
			lastAccounts[topIxs[ti].Program] = topIxs[ti].Accounts
		}

		for _, ix := range tx.Meta.InnerInstructions[ti] {
			dec, ok := r.decoders[ix.Program]
			if !ok {
				continue
			}
			payload, ok := eventCPIPayload(ix.Data)
			if !ok {
				lastAccounts[ix.Program] = ix.Accounts
				continue
			}
			key := ix.Program + "\x00" + string(payload)
			if logged[key] > 0 {
				logged[key]--
				continue
			}

			inv := Invocation{
				Program:  ix.Program,
				Accounts: lastAccounts[ix.Program],
				Balances: balances,
			}
			line := programDataPrefix + base64.StdEncoding.EncodeToString(payload)
			evt, err := dec.DecodeLine(meta, line, inv)
			if err != nil {
				errs = append(errs, &DecodeError{Dex: dec.Dex(), Txid: meta.Txid, Err: err})
				continue
			}
			if evt != nil {
				emit(evt)
			}
		}
	}

	return swaps, pools, errs
}

// anchorEventCPITag marks a self-CPI instruction carrying an anchor
// event; the discriminator and borsh body follow the tag.
var anchorEventCPITag = [8]byte{0xe4, 0x45, 0xa5, 0x2e, 0x51, 0xcb, 0x9a, 0x1d}

// eventCPIPayload extracts the event payload from a self-CPI
// instruction's base58 data, or reports false when the data is not an
// event CPI.
func eventCPIPayload(data string) ([]byte, bool) {
	if data == "" {
		return nil, false
	}
	raw, err := base58.Decode(data)
	if err != nil || len(raw) <= len(anchorEventCPITag) {
		return nil, false
	}
	var tag [8]byte
	copy(tag[:], raw[:8])
	if tag != anchorEventCPITag {
		return nil, false
	}
	return raw[8:], true
}

// buildBalances indexes the transaction's token balances by account
// address, post balances taking precedence.
func buildBalances(tx *solana.Transaction) map[string]TokenBalance {
	if tx.Message == nil {
		return nil
	}
	keys := tx.Message.AccountKeys
	balances := make(map[string]TokenBalance)
	add := func(entries []solana.TokenBalance, overwrite bool) {
		for _, tb := range entries {
			if tb.AccountIndex < 0 || tb.AccountIndex >= len(keys) {
				continue
			}
			addr := keys[tb.AccountIndex]
			if _, exists := balances[addr]; exists && !overwrite {
				continue
			}
			balances[addr] = TokenBalance{Mint: tb.Mint, Decimals: tb.Decimals, Amount: tb.Amount}
		}
	}
	add(tx.Meta.PostTokenBalances, true)
	add(tx.Meta.PreTokenBalances, false)
	return balances
}

// nextInnerAccounts finds the next inner instruction of program under the
// given top-level index and consumes it.
func nextInnerAccounts(inner map[int][]solana.Instruction, pos map[int]int, topIdx int, program string) []string {
	ixs := inner[topIdx]
	for i := pos[topIdx]; i < len(ixs); i++ {
		if ixs[i].Program == program {
			pos[topIdx] = i + 1
			return ixs[i].Accounts
		}
	}
	return nil
}

// parseInvoke matches "Program <id> invoke [n]".
func parseInvoke(line string) (program string, depth int, ok bool) {
	rest, found := strings.CutPrefix(line, "Program ")
	if !found {
		return "", 0, false
	}
	program, rest, found = strings.Cut(rest, " invoke [")
	if !found || !strings.HasSuffix(rest, "]") {
		return "", 0, false
	}
	depth, err := strconv.Atoi(strings.TrimSuffix(rest, "]"))
	if err != nil {
		return "", 0, false
	}
	return program, depth, true
}

// parseFinish matches "Program <id> success" and "Program <id> failed: ...".
func parseFinish(line string) (program string, ok bool) {
	rest, found := strings.CutPrefix(line, "Program ")
	if !found {
		return "", false
	}
	if program, cut := strings.CutSuffix(rest, " success"); cut && !strings.Contains(program, " ") {
		return program, true
	}
	program, tail, found := strings.Cut(rest, " failed: ")
	if found && tail != "" && !strings.Contains(program, " ") {
		return program, true
	}
	return "", false
}
