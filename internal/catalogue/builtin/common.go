// Package builtin registers the catalogue's built-in candidates: pure-Go
// oracle implementations of the libc functions the specification names
// (strlen, strcpy, memcpy, ...), each grounded on the teacher's emulated
// libc stub of the same name (internal/stubs/libc/{string,memory,printf,
// locale}.go in the source repo this was grounded on) — the stub's job
// there was "behave like the real libc function inside the emulator"; here
// the same behavioral knowledge generates the input/output pairs the probe
// checks a recovered routine against, rather than being executed in place
// of one.
package builtin

import (
	"math/rand"

	"github.com/archscan/funcid/internal/catalogue"
	"github.com/archscan/funcid/internal/reconstruct"
)

// rng is seeded fixed, not from time, per the specification's determinism
// property: the same routine probed twice must reach the same verdict.
var rng = rand.New(rand.NewSource(0xC0FFEE))

func randBytes(n int) []byte {
	b := make([]byte, n)
	rng.Read(b)
	for i, c := range b {
		if c == 0 {
			b[i] = 1
		}
	}
	return b
}

func randASCII(n int) string {
	const alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	out := make([]byte, n)
	for i := range out {
		out[i] = alphabet[rng.Intn(len(alphabet))]
	}
	return string(out)
}

// base implements the parts of catalogue.Candidate that don't vary per
// function: name, arity and the default arity-based PreTest. Concrete
// candidates embed it and supply GenInputOutputPair (and override PreTest
// when a cheaper structural rejection is possible).
type base struct {
	name    string
	numArgs int
	varArgs bool
}

func (b base) Name() string    { return b.name }
func (b base) NumArgs() int    { return b.numArgs }
func (b base) VarArgs() bool   { return b.varArgs }

func (b base) PreTest(info *reconstruct.FuncInfo) bool {
	if b.varArgs {
		return len(info.StackArgs) >= b.numArgs
	}
	return len(info.StackArgs) == b.numArgs
}

func register(name string, arity int, factory func() catalogue.Candidate) {
	catalogue.Default.Register(name, arity, factory)
}
