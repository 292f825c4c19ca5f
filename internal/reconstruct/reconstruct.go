// Package reconstruct implements the frame reconstructor: given a routine's
// recovered control-flow graph, it derives a structural summary of the
// routine's stack frame — frame size, callee-saved registers preserved in
// the preamble, and the set of stack-resident locals and arguments the
// routine's body touches, classified as scalars or buffers.
//
// The algorithm is a direct, line-for-line port of the reference
// implementation's find_stack_vars_x86 (Phases A-D), adapted to operate
// over the package's own symbolic bitvector IR (internal/symir) instead of
// a full symbolic-execution engine, since no such engine exists in the
// example corpus this module was grounded on.
package reconstruct

import (
	"errors"
	"fmt"
	"sort"

	"github.com/archscan/funcid/internal/arch"
	"github.com/archscan/funcid/internal/cfgmodel"
	"github.com/archscan/funcid/internal/symir"
)

// Sentinel errors describing why a routine could not be reconstructed, per
// the component's error-handling policy: these are degrade-to-skip
// conditions for the driver, never hard failures for the whole sweep.
var (
	ErrPreambleNotFound  = errors.New("reconstruct: preamble checks failed")
	ErrStartpointMissing = errors.New("reconstruct: routine has no entry block")
)

// FuncInfo is the structural summary produced for one routine, exactly the
// shape the specification's data model names.
type FuncInfo struct {
	FrameSize        uint64
	PushedRegs       []string // in push order (first pushed first)
	StackVars        []int64  // sorted, frame-base-relative offsets
	StackVarAccesses map[int64][]string
	StackArgs        []int64 // sorted
	StackArgAccesses map[int64][]string
	Buffers          map[int64]bool
	VarArgs          bool
}

// Reconstruct derives a FuncInfo for r. namespace should be unique per
// reconstruction call (the driver salts it with a run ID and the routine's
// address) so that every symbolic name minted here is globally distinct.
func Reconstruct(r *cfgmodel.Routine, a arch.Descriptor, namespace string) (*FuncInfo, error) {
	entry := r.EntryBlock()
	if entry == nil || len(entry.Insns) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrStartpointMissing, r.Name)
	}

	bits := a.Bits
	initialRegs := make(map[string]*symir.BV, len(a.GPRegisters)+1)
	for _, reg := range a.GPRegisters {
		initialRegs[reg] = symir.Fresh(namespace, reg+"0", bits)
	}
	initialRegs[a.SP] = symir.Fresh(namespace, "sp0", bits)
	sp0 := initialRegs[a.SP]

	regDict := make(map[string]string, len(a.GPRegisters))
	for _, reg := range a.GPRegisters {
		regDict[symir.Fingerprint(initialRegs[reg])] = reg
	}

	state0 := symir.NewState(initialRegs, bits)

	// Phase A: find the preamble length and the post-preamble state. The
	// goal SP is derived from the first successor of stepping the entry
	// block as one unit, not from a single instruction — a block's
	// terminating control-flow kind is only known once it's been stepped
	// in full.
	blockLen := len(entry.Insns)
	succBlock, jumpBlock, err := stepPrefix(state0, entry.Insns, blockLen)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPreambleNotFound, err)
	}

	var goalSP *symir.BV
	switch jumpBlock {
	case cfgmodel.JumpCall:
		goalSP = symir.AddC(succBlock.Regs[a.SP], a.Bytes())
	case cfgmodel.JumpRet:
		// No call inside the entry block: the preamble is the stretch of
		// instructions whose SP is strictly monotone-decreasing. Scan
		// fresh per-prefix successors, tracking the minimum SP seen; the
		// boundary is the first instruction where SP stops decreasing.
		goalSP = sp0
		minOff := int64(0)
		for i := 1; i < blockLen; i++ {
			si, _, err := stepPrefix(state0, entry.Insns, i)
			if err != nil {
				break
			}
			off, _, ok := symir.AnalyzeOffset(symir.Simplify(si.Regs[a.SP]), sp0)
			if !ok || off >= minOff {
				break
			}
			minOff = off
			goalSP = si.Regs[a.SP]
		}
	default:
		goalSP = succBlock.Regs[a.SP]
	}
	goalFP := symir.Fingerprint(symir.Simplify(goalSP))

	var succK *symir.State
	numPreamble := -1
	for k := 1; k <= len(entry.Insns); k++ {
		sk, _, err := stepPrefix(state0, entry.Insns, k)
		if err != nil {
			continue
		}
		if symir.Fingerprint(symir.Simplify(sk.Regs[a.SP])) == goalFP {
			succK = sk
			numPreamble = k
			break
		}
	}
	if numPreamble < 0 {
		return nil, fmt.Errorf("%w: %s", ErrPreambleNotFound, r.Name)
	}

	minOff, _, ok := symir.AnalyzeOffset(symir.Simplify(succK.Regs[a.SP]), sp0)
	if !ok {
		return nil, fmt.Errorf("%w: %s: irregular preamble stack delta", ErrPreambleNotFound, r.Name)
	}
	frameSize := uint64(-minOff) - a.Bytes()

	bpOffFromSP0, _, bpOK := symir.AnalyzeOffset(symir.Simplify(succK.Regs[a.BP]), sp0)
	bpBased := bpOK && bpOffFromSP0 == -int64(a.Bytes())

	// pushed registers: writes into [min_sp, initial_sp) during the
	// preamble whose stored value's identity matches one of the initial
	// register symbols.
	var pushedRegs []string
	for _, act := range succK.Actions {
		if !act.Write {
			continue
		}
		off, _, ok := symir.AnalyzeOffset(symir.Simplify(act.Addr), sp0)
		if !ok || off < minOff || off >= 0 {
			continue
		}
		if reg, known := regDict[symir.Fingerprint(symir.Simplify(act.Data))]; known {
			pushedRegs = append(pushedRegs, reg)
		}
	}

	// Phase B/C/D: body scan with sp/bp replaced by fresh "virtual frame"
	// symbols, over every instruction outside the preamble and outside
	// each endpoint's epilogue.
	symSP := symir.Fresh(namespace, "symsp", bits)
	var symBP *symir.BV
	if bpBased {
		symBP = symir.Fresh(namespace, "symbp", bits)
	}

	mainRegs := make(map[string]*symir.BV, len(succK.Regs))
	for k, v := range succK.Regs {
		mainRegs[k] = v
	}
	mainRegs[a.SP] = symSP
	if bpBased {
		mainRegs[a.BP] = symBP
	}

	insnByAddr := make(map[cfgmodel.Addr]cfgmodel.Instruction)
	for _, b := range r.Blocks {
		for _, ins := range b.Insns {
			insnByAddr[ins.Addr] = ins
		}
	}

	exclude := make(map[cfgmodel.Addr]bool)
	for _, ins := range entry.Insns[:numPreamble] {
		exclude[ins.Addr] = true
	}
	for _, ep := range r.Endpoints() {
		for _, addr := range epilogueAddrs(ep) {
			exclude[addr] = true
		}
	}

	info := &FuncInfo{
		FrameSize:        frameSize,
		PushedRegs:       pushedRegs,
		StackVarAccesses: make(map[int64][]string),
		StackArgAccesses: make(map[int64][]string),
		Buffers:          make(map[int64]bool),
	}
	seenVars := make(map[int64]bool)

	addAccess := func(off int64, kind string, buffer bool) {
		seenVars[off] = true
		info.StackVarAccesses[off] = append(info.StackVarAccesses[off], kind)
		if buffer {
			info.Buffers[off] = true
		}
	}

	for _, addr := range r.AllAddrs() {
		if exclude[addr] {
			continue
		}
		ins, present := insnByAddr[addr]
		if !present || ins.Jump == cfgmodel.JumpCall {
			continue
		}

		probe := symir.NewState(mainRegs, bits)
		succ, _, err := symir.Step(probe, ins.Bytes, addr)
		if err != nil {
			continue
		}

		for _, act := range succ.Actions {
			kind := "read"
			if act.Write {
				kind = "write"
			}
			if bpBased {
				if off, buf, ok := symir.AnalyzeOffset(symir.Simplify(act.Addr), symBP); ok {
					addAccess(off, kind, buf)
					continue
				}
			}
			if off, buf, ok := symir.AnalyzeOffset(symir.Simplify(act.Addr), symSP); ok {
				addAccess(off-int64(frameSize), kind, buf)
			}
		}

		// Address-of-local taken into a register (e.g. `lea eax, [ebp-8]`)
		// counts as a load access on that offset.
		for _, reg := range a.GPRegisters {
			if reg == a.BP && bpBased {
				continue
			}
			before := mainRegs[reg]
			after, present := succ.Regs[reg]
			if !present || after == before {
				continue
			}
			if bpBased {
				if off, buf, ok := symir.AnalyzeOffset(symir.Simplify(after), symBP); ok {
					addAccess(off, "load", buf)
					continue
				}
			}
			if off, buf, ok := symir.AnalyzeOffset(symir.Simplify(after), symSP); ok {
				addAccess(off-int64(frameSize), "load", buf)
			}
		}
	}

	for off := range seenVars {
		info.StackVars = append(info.StackVars, off)
	}
	sort.Slice(info.StackVars, func(i, j int) bool { return info.StackVars[i] < info.StackVars[j] })

	for _, v := range info.StackVars {
		if v > 0 {
			argOff := v - int64(a.Bytes())*2
			info.StackArgs = append(info.StackArgs, argOff)
			info.StackArgAccesses[argOff] = info.StackVarAccesses[v]
		}
	}
	sort.Slice(info.StackArgs, func(i, j int) bool { return info.StackArgs[i] < info.StackArgs[j] })

	if n := len(info.StackArgs); n > 0 {
		last := info.StackArgs[n-1]
		allLoads := true
		for _, kind := range info.StackArgAccesses[last] {
			if kind != "load" {
				allLoads = false
				break
			}
		}
		if allLoads {
			info.StackArgs = info.StackArgs[:n-1]
			delete(info.StackArgAccesses, last)
			info.VarArgs = true
		}
	}

	return info, nil
}

// stepPrefix threads a fresh k-instruction symbolic execution starting at
// state0, re-derived from scratch for every k the caller asks for — never
// from a previously cached successor — so the sp-based preamble search
// always inspects the result of actually executing the first k
// instructions, not a stale reference to an earlier step.
func stepPrefix(state0 *symir.State, insns []cfgmodel.Instruction, k int) (*symir.State, cfgmodel.JumpKind, error) {
	if k > len(insns) {
		return nil, cfgmodel.JumpNone, fmt.Errorf("prefix %d exceeds %d instructions", k, len(insns))
	}
	cur := state0.Copy()
	var actions []symir.MemAction
	var lastJump cfgmodel.JumpKind
	for i := 0; i < k; i++ {
		next, ins, err := symir.Step(cur, insns[i].Bytes, insns[i].Addr)
		if err != nil {
			return nil, cfgmodel.JumpNone, err
		}
		actions = append(actions, next.Actions...)
		next.Actions = actions
		cur = next
		lastJump = ins.Jump
	}
	return cur, lastJump, nil
}

// epilogueAddrs returns the contiguous tail of block that restores the
// stack (pop/leave/esp-adjust) and returns — the epilogue instructions the
// body scan must not treat as ordinary stack_var accesses.
func epilogueAddrs(block *cfgmodel.Block) []cfgmodel.Addr {
	var out []cfgmodel.Addr
	for i := len(block.Insns) - 1; i >= 0; i-- {
		m := block.Insns[i].Mnemonic
		switch m {
		case "ret", "retf", "pop", "leave":
			out = append(out, block.Insns[i].Addr)
			continue
		}
		if m == "add" || m == "mov" {
			// Counted as part of the epilogue whenever it sits in the
			// contiguous tail; the operands are not inspected, so a body
			// store directly before the epilogue is counted too.
			out = append(out, block.Insns[i].Addr)
			continue
		}
		break
	}
	return out
}
