package abi

import (
	"fmt"
	"testing"
)

// fakeMachine is a word-per-aligned-address memory map plus a register file,
// enough to exercise Convention without a real emulator.
type fakeMachine struct {
	mem  map[uint64]uint32
	regs map[string]uint64
}

func newFakeMachine() *fakeMachine {
	return &fakeMachine{mem: make(map[uint64]uint32), regs: make(map[string]uint64)}
}

func (f *fakeMachine) SetReg(name string, val uint64) error { f.regs[name] = val; return nil }
func (f *fakeMachine) Reg(name string) uint64                { return f.regs[name] }

func (f *fakeMachine) MemWriteU32(addr uint64, val uint32) error {
	if addr%4 != 0 {
		return fmt.Errorf("unaligned write at %#x", addr)
	}
	f.mem[addr] = val
	return nil
}

func (f *fakeMachine) MemReadU32(addr uint64) (uint32, error) {
	return f.mem[addr], nil
}

func TestSetupCallLayout(t *testing.T) {
	m := newFakeMachine()
	const sp0 = 0x1000
	const retAddr = 0xdeadbeef
	args := []uint32{10, 20, 30}

	newSP, err := Cdecl.SetupCall(m, sp0, args, retAddr)
	if err != nil {
		t.Fatalf("SetupCall() error: %v", err)
	}
	wantSP := uint64(sp0 - 4*(1+len(args)))
	if newSP != wantSP {
		t.Fatalf("SetupCall() sp = %#x, want %#x", newSP, wantSP)
	}
	if m.Reg("esp") != newSP {
		t.Fatalf("esp = %#x, want %#x", m.Reg("esp"), newSP)
	}

	gotRet, _ := m.MemReadU32(newSP)
	if gotRet != retAddr {
		t.Fatalf("return address at sp = %#x, want %#x", gotRet, retAddr)
	}
	for i, want := range args {
		got, _ := m.MemReadU32(newSP + 4 + uint64(4*i))
		if got != want {
			t.Fatalf("arg %d = %d, want %d", i, got, want)
		}
	}
}

func TestSetupCallUnsupportedConvention(t *testing.T) {
	m := newFakeMachine()
	_, err := Convention{Name: "stdcall"}.SetupCall(m, 0x1000, nil, 0)
	if err == nil {
		t.Fatalf("SetupCall() with an unsupported convention did not error")
	}
}

func TestReturnValue(t *testing.T) {
	m := newFakeMachine()
	m.SetReg("eax", 42)
	if got := Cdecl.ReturnValue(m); got != 42 {
		t.Fatalf("ReturnValue() = %d, want 42", got)
	}
}

func TestStackArg(t *testing.T) {
	m := newFakeMachine()
	const sp = 0x2000
	m.MemWriteU32(sp, 0xdeadbeef) // return address
	m.MemWriteU32(sp+4, 111)      // arg 0
	m.MemWriteU32(sp+8, 222)      // arg 1

	got0, err := Cdecl.StackArg(m, sp, 0)
	if err != nil || got0 != 111 {
		t.Fatalf("StackArg(0) = (%d,%v), want (111,nil)", got0, err)
	}
	got1, err := Cdecl.StackArg(m, sp, 1)
	if err != nil || got1 != 222 {
		t.Fatalf("StackArg(1) = (%d,%v), want (222,nil)", got1, err)
	}
}
