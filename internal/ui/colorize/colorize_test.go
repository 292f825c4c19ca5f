package colorize

import "testing"

// All assertions disable color via FUNCID_NO_COLOR so the expected output is
// deterministic and independent of terminal capability detection.
func withNoColor(t *testing.T) {
	t.Helper()
	t.Setenv("FUNCID_NO_COLOR", "1")
}

func TestIsDisabled(t *testing.T) {
	withNoColor(t)
	if !IsDisabled() {
		t.Fatalf("IsDisabled() = false with FUNCID_NO_COLOR set")
	}
}

func TestAddressFormatsAsUppercaseHex(t *testing.T) {
	withNoColor(t)
	if got := Address(0xdead); got != "0000DEAD" {
		t.Fatalf("Address(0xdead) = %q, want %q", got, "0000DEAD")
	}
}

func TestPassthroughHelpersWhenDisabled(t *testing.T) {
	withNoColor(t)
	cases := []struct {
		name string
		fn   func(string) string
		in   string
	}{
		{"Tag", Tag, "#match"},
		{"FuncName", FuncName, "sub_1000"},
		{"Detail", Detail, "no match"},
		{"Match", Match, "strlen"},
		{"Border", Border, "|"},
		{"Comment", Comment, "; note"},
		{"Header", Header, "funcid"},
		{"HexBytes", HexBytes, "55 89 e5"},
		{"Error", Error, "boom"},
		{"String", String, "hello"},
	}
	for _, c := range cases {
		if got := c.fn(c.in); got != c.in {
			t.Errorf("%s(%q) = %q, want unchanged passthrough when colors are disabled", c.name, c.in, got)
		}
	}
}

func TestInstructionPassthroughWhenDisabled(t *testing.T) {
	withNoColor(t)
	insn := "mov eax, [ebp+8]"
	if got := Instruction(insn); got != insn {
		t.Fatalf("Instruction() = %q, want unchanged passthrough when colors are disabled", got)
	}
}
