package builtin

import (
	"bytes"

	"github.com/archscan/funcid/internal/catalogue"
	"github.com/archscan/funcid/internal/cfgmodel"
	"github.com/archscan/funcid/internal/probe"
)

// free and realloc are the specification's special-case candidates: their
// correctness isn't visible as "the same memory the caller pointed at now
// holds X" or "the return value is Y" the way every generic candidate's
// contract is, so the generic probe loop can't judge them — free returns
// nothing and touches no caller-visible memory, and realloc's interesting
// output (the copied content) lives at a brand new address the generic
// loop never thinks to inspect. Both implement catalogue.SpecialMatcher
// and are driven directly by the identifier driver's special-case pass
// instead of the generic arity-filtered probing loop.

type freeCand struct{ base }

func init() {
	register("free", 1, func() catalogue.Candidate { return freeCand{base{"free", 1, false}} })
}

// GenInputOutputPair is never consulted: the driver routes SpecialMatcher
// candidates through TryMatch exclusively.
func (freeCand) GenInputOutputPair() catalogue.TestData { return catalogue.TestData{} }

// TryMatch checks the structural properties a real free must have that an
// arbitrary single-pointer-argument void function need not: it tolerates a
// NULL pointer as a no-op, it does not fault on a pointer to an ordinary
// buffer (one of the probe's argument scratch buffers),
// and — the one piece of allocator bookkeeping this probe can actually
// observe — it never scribbles over the payload of the block it was
// handed. A real free's own bookkeeping lives in the allocator's metadata
// adjacent to the user pointer, never inside it; a candidate that zeroes,
// overwrites, or otherwise touches the freed bytes isn't free. (A full
// check of heap metadata itself would need a modeled allocator with a free
// list the probe's bump allocator doesn't have — see DESIGN.md.)
func (freeCand) TryMatch(r *cfgmodel.Routine, run catalogue.OutStateRunner) (bool, error) {
	nullState, err := run.GetOutState(r, catalogue.TestData{InputArgs: []any{int64(0)}})
	if err != nil {
		return false, nil
	}
	nullState.Close()

	payload := randBytes(64)
	ptrState, err := run.GetOutState(r, catalogue.TestData{InputArgs: []any{append([]byte{}, payload...)}})
	if err != nil {
		return false, nil
	}
	defer ptrState.Close()

	// The call's only []byte argument always lands at probe.ArgBase: each
	// GetOutState call runs on a freshly constructed emulator, so the
	// argument-scratch cursor always starts at the same address.
	got, err := ptrState.ReadMem(probe.ArgBase, len(payload))
	if err != nil {
		return false, nil
	}
	return bytes.Equal(got, payload), nil
}

type reallocCand struct{ base }

func init() {
	register("realloc", 2, func() catalogue.Candidate { return reallocCand{base{"realloc", 2, false}} })
}

func (reallocCand) GenInputOutputPair() catalogue.TestData { return catalogue.TestData{} }

// TryMatch calls the routine with a buffer of known content and a larger
// requested size, then reads the content back from wherever the routine's
// return value (not the original argument) points — the one check the
// generic in-place output-argument loop structurally cannot express.
func (reallocCand) TryMatch(r *cfgmodel.Routine, run catalogue.OutStateRunner) (bool, error) {
	orig := randBytes(16)
	newSize := int64(len(orig) * 2)

	state, err := run.GetOutState(r, catalogue.TestData{InputArgs: []any{append([]byte{}, orig...), newSize}})
	if err != nil {
		return false, nil
	}
	defer state.Close()

	newPtr := state.Reg("eax")
	if newPtr == 0 {
		return false, nil
	}
	got, err := state.ReadMem(newPtr, len(orig))
	if err != nil {
		return false, nil
	}
	return bytes.Equal(got, orig), nil
}
