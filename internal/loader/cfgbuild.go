package loader

import (
	"strings"

	"golang.org/x/arch/x86/x86asm"

	"github.com/archscan/funcid/internal/cfgmodel"
)

// BuildCFG recovers a control-flow graph from symbol table boundaries: for
// every FUNC symbol with a non-zero size in an executable segment, it
// linearly disassembles the symbol's byte range and splits it into basic
// blocks at branch/call/return boundaries. This is deliberately the
// simplest CFG recovery strategy that works (a linear sweep bounded by
// known function extents), standing in for the "already-recovered CFG" the
// specification assumes as an external input — funcid's own job starts at
// frame reconstruction, not disassembly, so this exists only so the CLI
// has something to feed the driver without a separate tool in hand.
func (img *Image) BuildCFG() []*cfgmodel.Routine {
	var routines []*cfgmodel.Routine
	for _, sym := range img.Symbols {
		if sym.Info != 0 && sym.Info != 2 { // STT_FUNC == 2; tolerate unset
			continue
		}
		if sym.Size == 0 {
			continue
		}
		seg := img.segmentFor(sym.Value)
		if seg == nil || !seg.IsExecutable() {
			continue
		}
		code := segBytes(img, seg, sym.Value, sym.Size)
		if len(code) == 0 {
			continue
		}
		routines = append(routines, disassembleRoutine(sym.Name, sym.Value, code))
	}
	return routines
}

func (img *Image) segmentFor(addr uint64) *Segment {
	for i := range img.Segments {
		s := &img.Segments[i]
		if addr >= s.VAddr && addr < s.VAddr+s.MemSz {
			return s
		}
	}
	return nil
}

func segBytes(img *Image, seg *Segment, addr, size uint64) []byte {
	off := addr - seg.VAddr
	if off >= uint64(len(seg.Data)) {
		return nil
	}
	end := off + size
	if end > uint64(len(seg.Data)) {
		end = uint64(len(seg.Data))
	}
	return seg.Data[off:end]
}

// disassembleRoutine linearly decodes code (which starts at entry) and
// splits it into basic blocks at control-flow instructions.
func disassembleRoutine(name string, entry uint64, code []byte) *cfgmodel.Routine {
	r := &cfgmodel.Routine{Name: name, Entry: cfgmodel.Addr(entry)}

	var cur cfgmodel.Block
	cur.Start = cfgmodel.Addr(entry)
	pos := 0
	addr := entry
	isSyscallRoutine := false

	flush := func(end cfgmodel.Addr) {
		if len(cur.Insns) == 0 {
			return
		}
		cur.End = end
		r.Blocks = append(r.Blocks, cur)
		cur = cfgmodel.Block{}
	}

	for pos < len(code) {
		inst, err := x86asm.Decode(code[pos:], 32)
		if err != nil || inst.Len == 0 {
			break
		}
		mnemonic := strings.ToLower(inst.Op.String())
		ins := cfgmodel.Instruction{
			Addr:     cfgmodel.Addr(addr),
			Len:      inst.Len,
			Bytes:    code[pos : pos+inst.Len],
			Mnemonic: mnemonic,
		}
		if mnemonic == "int" && len(inst.Args) > 0 {
			if imm, ok := inst.Args[0].(x86asm.Imm); ok && imm == 0x80 {
				isSyscallRoutine = true
			}
		}

		switch {
		case inst.Op == x86asm.CALL:
			ins.Jump = cfgmodel.JumpCall
			if rel, ok := inst.Args[0].(x86asm.Rel); ok {
				ins.Targets = []cfgmodel.Addr{cfgmodel.Addr(int64(addr)+int64(inst.Len)) + cfgmodel.Addr(rel)}
			}
		case inst.Op == x86asm.RET || inst.Op == x86asm.RETF:
			ins.Jump = cfgmodel.JumpRet
		case inst.Op == x86asm.JMP || strings.HasPrefix(mnemonic, "j"):
			ins.Jump = cfgmodel.JumpBranch
			if rel, ok := inst.Args[0].(x86asm.Rel); ok {
				ins.Targets = []cfgmodel.Addr{cfgmodel.Addr(int64(addr)+int64(inst.Len)) + cfgmodel.Addr(rel)}
			}
		}

		if cur.Start == 0 && len(cur.Insns) == 0 {
			cur.Start = cfgmodel.Addr(addr)
		}
		cur.Insns = append(cur.Insns, ins)

		pos += inst.Len
		addr += uint64(inst.Len)

		if ins.Jump != cfgmodel.JumpNone {
			flush(cfgmodel.Addr(addr))
			cur.Start = cfgmodel.Addr(addr)
		}
	}
	flush(cfgmodel.Addr(addr))

	r.IsSyscall = isSyscallRoutine
	return r
}
