package probe

import (
	"testing"

	"github.com/archscan/funcid/internal/catalogue"
	"github.com/archscan/funcid/internal/cfgmodel"
)

// addRoutine builds a tiny cdecl `int add(int a, int b)`:
//
//	mov eax, [esp+4]
//	add eax, [esp+8]
//	ret
func addRoutine() *cfgmodel.Routine {
	const entry = cfgmodel.Addr(CodeBase + 0x1000)
	insns := []cfgmodel.Instruction{
		{Addr: entry, Len: 4, Bytes: []byte{0x8B, 0x44, 0x24, 0x04}, Mnemonic: "mov"},
		{Addr: entry + 4, Len: 4, Bytes: []byte{0x03, 0x44, 0x24, 0x08}, Mnemonic: "add"},
		{Addr: entry + 8, Len: 1, Bytes: []byte{0xC3}, Mnemonic: "ret", Jump: cfgmodel.JumpRet},
	}
	return &cfgmodel.Routine{
		Name:  "sub_add",
		Entry: entry,
		Blocks: []cfgmodel.Block{
			{Start: entry, End: entry + 9, Insns: insns},
		},
	}
}

func TestRunnerTestAcceptsCorrectAddition(t *testing.T) {
	rn := NewRunner(nil)
	r := addRoutine()
	td := catalogue.TestData{
		InputArgs:         []any{int64(5), int64(7)},
		ExpectedReturnVal: catalogue.RetVal(12),
	}
	ok, err := rn.Test(r, td)
	if err != nil {
		t.Fatalf("Test() error: %v", err)
	}
	if !ok {
		t.Fatalf("Test() = false, want true for 5+7=12")
	}
}

func TestRunnerTestRejectsWrongExpectation(t *testing.T) {
	rn := NewRunner(nil)
	r := addRoutine()
	td := catalogue.TestData{
		InputArgs:         []any{int64(5), int64(7)},
		ExpectedReturnVal: catalogue.RetVal(13), // wrong on purpose
	}
	ok, err := rn.Test(r, td)
	if err != nil {
		t.Fatalf("Test() error: %v", err)
	}
	if ok {
		t.Fatalf("Test() = true, want false for a deliberately wrong expectation")
	}
}

func TestRunnerGetOutStateExposesReturnRegister(t *testing.T) {
	rn := NewRunner(nil)
	r := addRoutine()
	td := catalogue.TestData{InputArgs: []any{int64(2), int64(3)}}
	out, err := rn.GetOutState(r, td)
	if err != nil {
		t.Fatalf("GetOutState() error: %v", err)
	}
	defer out.Close()
	if got := out.Reg("eax"); got != 5 {
		t.Fatalf("out.Reg(eax) = %d, want 5", got)
	}
}

func TestRunnerTestRespectsMaxSteps(t *testing.T) {
	rn := NewRunner(nil)
	r := addRoutine()
	td := catalogue.TestData{
		InputArgs:         []any{int64(1), int64(1)},
		ExpectedReturnVal: catalogue.RetVal(2),
		MaxSteps:          1, // too few steps to reach the ret
	}
	if _, err := rn.Test(r, td); err == nil {
		t.Fatalf("Test() with MaxSteps=1 did not error, want ErrMultistate (routine never reached the sentinel)")
	}
}
