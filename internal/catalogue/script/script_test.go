package script

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/archscan/funcid/internal/reconstruct"
)

func fakeInfoWithArgs(n int) *reconstruct.FuncInfo {
	info := &reconstruct.FuncInfo{}
	for i := 0; i < n; i++ {
		info.StackArgs = append(info.StackArgs, int64(i*4))
	}
	return info
}

const fixture = `
var candidate = {
    name: "toupper_script",
    numArgs: 1,
    varArgs: false,
    genTestData: function() {
        return {
            inputArgs: [65, [1,2,3]],
            expectedOutputArgs: [null, null],
            expectedReturnVal: 97,
            expectedStdout: "ok\n"
        };
    }
};
`

func writeFixture(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "candidate.js")
	if err := os.WriteFile(path, []byte(fixture), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}

func TestLoadParsesCandidateMetadata(t *testing.T) {
	c, err := Load(writeFixture(t))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if c.Name() != "toupper_script" {
		t.Fatalf("Name() = %q, want toupper_script", c.Name())
	}
	if c.NumArgs() != 1 {
		t.Fatalf("NumArgs() = %d, want 1", c.NumArgs())
	}
	if c.VarArgs() {
		t.Fatalf("VarArgs() = true, want false")
	}
}

func TestLoadMissingCandidateObject(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.js")
	if err := os.WriteFile(path, []byte("var x = 1;"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("Load() on a script with no `candidate` object did not error")
	}
}

func TestGenInputOutputPairDecodesArgs(t *testing.T) {
	c, err := Load(writeFixture(t))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	td := c.GenInputOutputPair()
	if len(td.InputArgs) != 2 {
		t.Fatalf("InputArgs has %d entries, want 2", len(td.InputArgs))
	}
	scalar, ok := td.InputArgs[0].(int64)
	if !ok || scalar != 65 {
		t.Fatalf("InputArgs[0] = %v (%T), want int64(65)", td.InputArgs[0], td.InputArgs[0])
	}
	buf, ok := td.InputArgs[1].([]byte)
	if !ok || len(buf) != 3 || buf[0] != 1 || buf[2] != 3 {
		t.Fatalf("InputArgs[1] = %v, want []byte{1,2,3}", td.InputArgs[1])
	}
	if td.ExpectedReturnVal == nil || *td.ExpectedReturnVal != 97 {
		t.Fatalf("ExpectedReturnVal = %v, want pointer to 97", td.ExpectedReturnVal)
	}
	if string(td.ExpectedStdout) != "ok\n" {
		t.Fatalf("ExpectedStdout = %q, want %q", td.ExpectedStdout, "ok\n")
	}
}

func TestPreTestArityMatch(t *testing.T) {
	c, err := Load(writeFixture(t))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if !c.PreTest(fakeInfoWithArgs(1)) {
		t.Fatalf("PreTest() false for matching arity")
	}
	if c.PreTest(fakeInfoWithArgs(2)) {
		t.Fatalf("PreTest() true for mismatched arity with varArgs=false")
	}
}
