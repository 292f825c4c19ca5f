// Package script lets an operator add candidates without recompiling the
// binary: a small JavaScript file describing a library function's name,
// arity and test-vector generator, run through goja. This exists for the
// same reason the teacher's corpus reaches for an embedded scripting
// engine in several of its own tools — extensibility that doesn't require
// a Go toolchain on the analyst's machine — rather than because the
// specification demands it.
package script

import (
	"fmt"
	"os"

	"github.com/dop251/goja"

	"github.com/archscan/funcid/internal/catalogue"
	"github.com/archscan/funcid/internal/reconstruct"
)

// Candidate wraps one loaded script. The script must define a top-level
// object named `candidate` with fields:
//
//	name      : string
//	numArgs   : number
//	varArgs   : bool (optional)
//	genTestData() -> { inputArgs, expectedOutputArgs, expectedReturnVal,
//	                   expectedStdout }
//
// inputArgs/expectedOutputArgs entries are either a JS number (treated as
// a scalar) or a JS array of small integers (treated as a byte buffer).
type Candidate struct {
	vm   *goja.Runtime
	obj  *goja.Object
	name string
	nArg int
	vArg bool
}

// Load compiles path and extracts its candidate object.
func Load(path string) (*Candidate, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("script: read %s: %w", path, err)
	}
	vm := goja.New()
	if _, err := vm.RunString(string(src)); err != nil {
		return nil, fmt.Errorf("script: run %s: %w", path, err)
	}
	v := vm.Get("candidate")
	if v == nil || goja.IsUndefined(v) {
		return nil, fmt.Errorf("script: %s: no top-level `candidate` object", path)
	}
	obj := v.ToObject(vm)

	c := &Candidate{vm: vm, obj: obj}
	c.name = obj.Get("name").String()
	c.nArg = int(obj.Get("numArgs").ToInteger())
	if va := obj.Get("varArgs"); va != nil && !goja.IsUndefined(va) {
		c.vArg = va.ToBoolean()
	}
	if c.name == "" {
		return nil, fmt.Errorf("script: %s: candidate.name is required", path)
	}
	return c, nil
}

func (c *Candidate) Name() string  { return c.name }
func (c *Candidate) NumArgs() int  { return c.nArg }
func (c *Candidate) VarArgs() bool { return c.vArg }

func (c *Candidate) PreTest(info *reconstruct.FuncInfo) bool {
	if c.vArg {
		return len(info.StackArgs) >= c.nArg
	}
	return len(info.StackArgs) == c.nArg
}

func (c *Candidate) GenInputOutputPair() catalogue.TestData {
	fn, ok := goja.AssertFunction(c.obj.Get("genTestData"))
	if !ok {
		return catalogue.TestData{}
	}
	res, err := fn(c.obj)
	if err != nil {
		return catalogue.TestData{}
	}
	obj := res.ToObject(c.vm)

	td := catalogue.TestData{}
	if rv := obj.Get("expectedReturnVal"); rv != nil && !goja.IsUndefined(rv) && !goja.IsNull(rv) {
		td.ExpectedReturnVal = catalogue.RetVal(rv.ToInteger())
	}
	td.InputArgs = decodeArgs(c.vm, obj.Get("inputArgs"))
	td.ExpectedOutputArgs = decodeArgs(c.vm, obj.Get("expectedOutputArgs"))
	if so := obj.Get("expectedStdout"); so != nil && !goja.IsUndefined(so) {
		td.ExpectedStdout = []byte(so.String())
	}
	return td
}

// decodeArgs turns a JS array of (number | number[]) into Go (int64 |
// []byte) values, matching what internal/probe's call() already knows how
// to marshal.
func decodeArgs(vm *goja.Runtime, v goja.Value) []any {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return nil
	}
	arr, ok := v.Export().([]any)
	if !ok {
		return nil
	}
	out := make([]any, len(arr))
	for i, el := range arr {
		switch t := el.(type) {
		case []any:
			b := make([]byte, len(t))
			for j, bv := range t {
				switch n := bv.(type) {
				case float64:
					b[j] = byte(int64(n))
				case int64:
					b[j] = byte(n)
				}
			}
			out[i] = b
		case float64:
			out[i] = int64(t)
		case int64:
			out[i] = t
		case nil:
			out[i] = nil
		}
	}
	return out
}
