package symir

import (
	"fmt"
	"strings"

	"golang.org/x/arch/x86/x86asm"

	"github.com/archscan/funcid/internal/cfgmodel"
)

// State is a symbolic x86 machine state: a register file plus the memory
// actions a single Step call observed. It deliberately does not model a
// byte-addressable symbolic memory array — the reconstructor only needs to
// know *which* addresses were touched and *what* value flowed through them,
// which is exactly what Actions records.
type State struct {
	Regs map[string]*BV // register name -> current value
	Bits int

	// Actions accumulates every memory access Step has produced so far,
	// mirroring the teacher's notion of "last_actions" on a stepped
	// successor.
	Actions []MemAction
}

// MemAction records one memory access observed during Step.
type MemAction struct {
	InsnAddr cfgmodel.Addr
	Addr     *BV
	Data     *BV // nil for a pure address computation (there is none here)
	Size     int
	Write    bool
}

// NewState builds a state from an explicit register assignment.
func NewState(regs map[string]*BV, bits int) *State {
	cp := make(map[string]*BV, len(regs))
	for k, v := range regs {
		cp[k] = v
	}
	return &State{Regs: cp, Bits: bits}
}

// Copy returns an independent state with the same register values and no
// recorded actions — used by the reconstructor every time it wants to
// single-step from a particular hypothetical machine state without
// disturbing the state it copied from.
func (s *State) Copy() *State {
	cp := make(map[string]*BV, len(s.Regs))
	for k, v := range s.Regs {
		cp[k] = v
	}
	return &State{Regs: cp, Bits: s.Bits}
}

func regName(r x86asm.Reg) string {
	return strings.ToLower(r.String())
}

// subReg32 maps 16/8-bit sub-registers onto their parent 32-bit register name,
// since this package's register file is 32-bit only (sufficient for
// prologue/epilogue analysis; narrower writes just update the same slot).
var subReg32 = map[string]string{
	"ax": "eax", "al": "eax", "ah": "eax",
	"bx": "ebx", "bl": "ebx", "bh": "ebx",
	"cx": "ecx", "cl": "ecx", "ch": "ecx",
	"dx": "edx", "dl": "edx", "dh": "edx",
	"si": "esi", "di": "edi", "bp": "ebp", "sp": "esp",
}

func parent32(name string) string {
	if p, ok := subReg32[name]; ok {
		return p
	}
	return name
}

func (s *State) get(name string) *BV {
	name = parent32(name)
	if v, ok := s.Regs[name]; ok {
		return v
	}
	v := Const(0, s.Bits)
	s.Regs[name] = v
	return v
}

func (s *State) set(name string, v *BV) {
	s.Regs[parent32(name)] = v
}

// addrOf builds the symbolic address expression of a memory operand.
func (s *State) addrOf(m x86asm.Mem) *BV {
	addr := Const(uint64(int64(m.Disp)), s.Bits)
	if m.Base != 0 {
		addr = Add(s.get(regName(m.Base)), addr)
	}
	if m.Index != 0 && m.Scale != 0 {
		scaled := Mul(s.get(regName(m.Index)), Const(uint64(m.Scale), s.Bits))
		addr = Add(addr, scaled)
	}
	return addr
}

// value resolves an instruction argument to a BV, recording a read action
// for memory operands.
func (s *State) value(insAddr cfgmodel.Addr, arg x86asm.Arg, size int) *BV {
	switch v := arg.(type) {
	case x86asm.Reg:
		return s.get(regName(v))
	case x86asm.Mem:
		addr := s.addrOf(v)
		data := Load(addr, size)
		s.Actions = append(s.Actions, MemAction{InsnAddr: insAddr, Addr: addr, Data: data, Size: size, Write: false})
		return data
	case x86asm.Imm:
		return Const(uint64(int64(v)), size*8)
	}
	return Const(0, size*8)
}

func opSize(bytes int) int {
	if bytes <= 0 {
		return 4
	}
	return bytes
}

// Step decodes and symbolically executes exactly one instruction at addr,
// returning the resulting state and a cfgmodel view of the instruction
// (used by the reconstructor to classify its jumpkind). code must start at
// addr. The receiver is left untouched; Step operates on a copy.
func Step(s *State, code []byte, addr cfgmodel.Addr) (*State, cfgmodel.Instruction, error) {
	inst, err := x86asm.Decode(code, 32)
	if err != nil {
		return nil, cfgmodel.Instruction{}, fmt.Errorf("decode at 0x%x: %w", addr, err)
	}

	ins := cfgmodel.Instruction{
		Addr:     addr,
		Len:      inst.Len,
		Bytes:    code[:inst.Len],
		Mnemonic: strings.ToLower(inst.Op.String()),
	}

	next := s.Copy()
	nextAddr := addr + cfgmodel.Addr(inst.Len)
	sp := next.get("esp")
	bits := next.Bits

	switch inst.Op {
	case x86asm.PUSH:
		size := opSize(inst.MemBytes)
		val := next.value(addr, inst.Args[0], 4)
		sp = SubC(sp, 4)
		next.Actions = append(next.Actions, MemAction{InsnAddr: addr, Addr: sp, Data: val, Size: size, Write: true})
		next.set("esp", sp)

	case x86asm.POP:
		val := Load(sp, 4)
		next.Actions = append(next.Actions, MemAction{InsnAddr: addr, Addr: sp, Data: val, Size: 4, Write: false})
		if r, ok := inst.Args[0].(x86asm.Reg); ok {
			next.set(regName(r), val)
		}
		sp = AddC(sp, 4)
		next.set("esp", sp)

	case x86asm.MOV, x86asm.MOVZX, x86asm.MOVSX:
		size := opSize(inst.MemBytes)
		if size == 0 {
			size = 4
		}
		val := next.value(addr, inst.Args[1], size)
		switch d := inst.Args[0].(type) {
		case x86asm.Reg:
			next.set(regName(d), val)
		case x86asm.Mem:
			a := next.addrOf(d)
			next.Actions = append(next.Actions, MemAction{InsnAddr: addr, Addr: a, Data: val, Size: size, Write: true})
		}

	case x86asm.LEA:
		if m, ok := inst.Args[1].(x86asm.Mem); ok {
			if d, ok := inst.Args[0].(x86asm.Reg); ok {
				next.set(regName(d), next.addrOf(m))
			}
		}

	case x86asm.ADD, x86asm.SUB, x86asm.AND, x86asm.OR, x86asm.XOR:
		if d, ok := inst.Args[0].(x86asm.Reg); ok {
			lhs := next.get(regName(d))
			rhs := next.value(addr, inst.Args[1], 4)
			var result *BV
			switch inst.Op {
			case x86asm.ADD:
				result = Add(lhs, rhs)
			case x86asm.SUB:
				result = Sub(lhs, rhs)
			case x86asm.AND:
				result = And(lhs, rhs)
			case x86asm.OR:
				result = Or(lhs, rhs)
			case x86asm.XOR:
				result = Xor(lhs, rhs)
			}
			next.set(regName(d), result)
			if regName(d) == "esp" {
				sp = result
			}
		}

	case x86asm.LEAVE:
		bp := next.get("ebp")
		sp = bp
		val := Load(sp, 4)
		next.Actions = append(next.Actions, MemAction{InsnAddr: addr, Addr: sp, Data: val, Size: 4, Write: false})
		next.set("ebp", val)
		sp = AddC(sp, 4)
		next.set("esp", sp)

	case x86asm.CALL:
		ins.Jump = cfgmodel.JumpCall
		sp = SubC(sp, 4)
		next.Actions = append(next.Actions, MemAction{InsnAddr: addr, Addr: sp, Data: Const(uint64(nextAddr), bits), Size: 4, Write: true})
		next.set("esp", sp)
		if rel, ok := inst.Args[0].(x86asm.Rel); ok {
			ins.Targets = []cfgmodel.Addr{cfgmodel.Addr(int64(nextAddr) + int64(rel))}
		}

	case x86asm.RET, x86asm.RETF:
		ins.Jump = cfgmodel.JumpRet
		val := Load(sp, 4)
		next.Actions = append(next.Actions, MemAction{InsnAddr: addr, Addr: sp, Data: val, Size: 4, Write: false})
		sp = AddC(sp, 4)
		if len(inst.Args) > 0 {
			if imm, ok := inst.Args[0].(x86asm.Imm); ok {
				sp = AddC(sp, uint64(int64(imm)))
			}
		}
		next.set("esp", sp)

	case x86asm.JMP:
		ins.Jump = cfgmodel.JumpBranch
		if rel, ok := inst.Args[0].(x86asm.Rel); ok {
			ins.Targets = []cfgmodel.Addr{cfgmodel.Addr(int64(nextAddr) + int64(rel))}
		}

	case x86asm.NOP, x86asm.CMP, x86asm.TEST:
		// No register/memory state change this package tracks.

	default:
		if strings.HasPrefix(ins.Mnemonic, "j") {
			ins.Jump = cfgmodel.JumpBranch
			if rel, ok := inst.Args[0].(x86asm.Rel); ok {
				ins.Targets = []cfgmodel.Addr{cfgmodel.Addr(int64(nextAddr) + int64(rel))}
			}
		}
	}

	return next, ins, nil
}
