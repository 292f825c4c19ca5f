// Package abi describes the calling convention the probe uses to invoke a
// routine under emulation. The specification names cdecl as the only
// calling convention in scope (stack-passed arguments, caller cleans up,
// word-sized return value in the accumulator register) — the convention
// every compiler the example corpus targets uses for plain C functions on
// x86.
package abi

import "fmt"

// Machine is the minimal emulator surface a calling convention needs:
// register access and 32-bit memory access, the same shape
// internal/probe.Emulator already exposes.
type Machine interface {
	SetReg(name string, val uint64) error
	Reg(name string) uint64
	MemWriteU32(addr uint64, val uint32) error
	MemReadU32(addr uint64) (uint32, error)
}

// Convention names a calling convention. cdecl is the only one implemented;
// the type exists so a future convention (stdcall, fastcall) has somewhere
// to live without disturbing callers.
type Convention struct {
	Name string
}

// Cdecl: arguments pushed right-to-left, caller-cleaned, word return value
// in eax.
var Cdecl = Convention{Name: "cdecl"}

// SetupCall lays out a call frame at the top of the stack (sp, growing
// down): the return address immediately below the arguments, exactly as a
// `call` instruction would leave them, so execution can simply jump to
// entry with esp/eip set by the caller. Returns the new stack pointer.
func (c Convention) SetupCall(m Machine, sp uint64, args []uint32, retAddr uint64) (uint64, error) {
	if c != Cdecl {
		return 0, fmt.Errorf("abi: unsupported calling convention %q", c.Name)
	}
	frame := uint64(4 * (1 + len(args)))
	sp -= frame
	cur := sp
	if err := m.MemWriteU32(cur, uint32(retAddr)); err != nil {
		return 0, fmt.Errorf("write return address: %w", err)
	}
	cur += 4
	for i, a := range args {
		if err := m.MemWriteU32(cur, a); err != nil {
			return 0, fmt.Errorf("write arg %d: %w", i, err)
		}
		cur += 4
	}
	if err := m.SetReg("esp", sp); err != nil {
		return 0, fmt.Errorf("set esp: %w", err)
	}
	return sp, nil
}

// ReturnValue reads the word-sized return value per cdecl: eax.
func (c Convention) ReturnValue(m Machine) uint64 {
	return m.Reg("eax")
}

// StackArg reads the word at stack argument index idx (0-based) relative to
// sp, which must point at the return address (i.e. immediately after a call
// has transferred control, before any prologue runs).
func (c Convention) StackArg(m Machine, sp uint64, idx int) (uint32, error) {
	return m.MemReadU32(sp + 4 + uint64(4*idx))
}
