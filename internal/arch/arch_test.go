package arch

import "testing"

func TestBytes(t *testing.T) {
	if got := X86.Bytes(); got != 4 {
		t.Fatalf("X86.Bytes() = %d, want 4", got)
	}
}

func TestDefaultSymbolicExcludesSPAndIP(t *testing.T) {
	syms := X86.DefaultSymbolic()
	for _, r := range syms {
		if r == X86.SP || r == X86.IP {
			t.Fatalf("DefaultSymbolic() included %s, want it excluded", r)
		}
	}
	found := false
	for _, r := range syms {
		if r == "eax" {
			found = true
		}
	}
	if !found {
		t.Fatalf("DefaultSymbolic() = %v, want it to include eax", syms)
	}
}
