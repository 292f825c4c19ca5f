// Package catalogue is the candidate catalogue: the process-wide mapping
// from library-function name to a Candidate able to generate test vectors
// and judge whether a routine matches. The registration pattern (a
// self-registering map populated by each candidate's init(), queried by
// name/arity) is grounded in the teacher's stub registry
// (internal/stubs/registry.go), repurposed here from "install an emulator
// hook for an imported symbol" to "offer a library-function hypothesis for
// a recovered routine."
package catalogue

import (
	"fmt"
	"sort"
	"sync"

	"github.com/archscan/funcid/internal/cfgmodel"
	"github.com/archscan/funcid/internal/reconstruct"
)

// TestData is one generated test vector, exactly the shape the
// specification's data model names. Arguments and expected outputs are
// either an int64 (passed/compared as a scalar register value) or a []byte
// (passed as a pointer to a NUL-terminated buffer written into scratch
// memory; compared by reading the same length back out). A nil entry in
// ExpectedOutputArgs means "don't care" for that argument.
type TestData struct {
	InputArgs          []any
	ExpectedOutputArgs []any
	// ExpectedReturnVal is optional ("don't care" when nil) — the probe
	// skips the return-value comparison entirely for a candidate (such as
	// puts, whose exact non-negative count this catalogue doesn't model)
	// that only constrains its output buffers or stdout.
	ExpectedReturnVal *int64
	// ReturnOffsetArg, when non-nil, overrides ExpectedReturnVal: the
	// return value must equal the address the probe mapped
	// InputArgs[*ReturnOffsetArg] to, plus ReturnOffset. Needed for
	// pointer-returning functions whose contract is "returns (an offset
	// into) one of its own arguments" — strcpy/strcat return their
	// destination pointer unchanged (offset 0); strchr/strrchr/strstr
	// return a pointer into their haystack argument at the match position.
	// None of these addresses are known until the probe allocates scratch
	// space for the argument, so they can't be literal at
	// vector-generation time.
	ReturnOffsetArg *int
	ReturnOffset    int64
	MaxSteps        int
	PreloadedStdin  []byte
	ExpectedStdout  []byte
}

// RetVal returns a pointer to v, for populating TestData.ExpectedReturnVal
// from a literal.
func RetVal(v int64) *int64 { return &v }

// Candidate is one library-function hypothesis. NumArgs/VarArgs are
// compared against a routine's reconstructed FuncInfo before any behavioral
// test is attempted (the arity-filter pass), and PreTest gives a candidate
// a last chance to reject a routine cheaply (e.g. "the body doesn't touch
// memory at all, so this can't be memcpy") before GenInputOutputPair is
// even called.
type Candidate interface {
	Name() string
	NumArgs() int
	VarArgs() bool
	GenInputOutputPair() TestData
	PreTest(info *reconstruct.FuncInfo) bool
}

// OutState is a read-only view of the machine state after a concrete call,
// used only by special-case candidates (free, realloc) whose correctness
// can't be judged by an input/output pair because the function's visible
// effect is allocator bookkeeping rather than a return value or buffer
// contents.
type OutState interface {
	ReadMem(addr uint64, size int) ([]byte, error)
	Reg(name string) uint64
	Close() error
}

// OutStateRunner is the probe capability special-case candidates need:
// run a call and hand back the resulting machine state for inspection,
// without the generic pass/fail verdict Test would apply.
type OutStateRunner interface {
	GetOutState(r *cfgmodel.Routine, td TestData) (OutState, error)
}

// SpecialMatcher is implemented by candidates (free, realloc) that require
// a bespoke match procedure instead of the generic input/output probing
// pass, per the specification's special-case pass.
type SpecialMatcher interface {
	Candidate
	TryMatch(r *cfgmodel.Routine, run OutStateRunner) (bool, error)
}

// Registry is the catalogue: name -> Candidate factory.
type Registry struct {
	mu    sync.RWMutex
	byArity map[int][]string
	funcs map[string]func() Candidate
	enabled map[string]bool // nil means "all enabled"
}

// Default is the process-wide catalogue every built-in candidate registers
// itself into via init().
var Default = NewRegistry()

func NewRegistry() *Registry {
	return &Registry{
		byArity: make(map[int][]string),
		funcs:   make(map[string]func() Candidate),
	}
}

// Register adds a candidate factory under name. Panics on duplicate
// registration — a programming error, not a runtime condition.
func (r *Registry) Register(name string, arity int, factory func() Candidate) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.funcs[name]; exists {
		panic(fmt.Sprintf("catalogue: duplicate candidate %q", name))
	}
	r.funcs[name] = factory
	r.byArity[arity] = append(r.byArity[arity], name)
}

// SetProfile restricts which built-in candidates are active. A nil or
// empty set means "all enabled" (the default).
func (r *Registry) SetProfile(names []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(names) == 0 {
		r.enabled = nil
		return
	}
	r.enabled = make(map[string]bool, len(names))
	for _, n := range names {
		r.enabled[n] = true
	}
}

// ForArity returns every enabled candidate whose arity matches numArgs —
// the pool the driver's arity-filter pass iterates for a given routine.
func (r *Registry) ForArity(numArgs int) []Candidate {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := append([]string{}, r.byArity[numArgs]...)
	sort.Strings(names)
	var out []Candidate
	for _, name := range names {
		if r.enabled != nil && !r.enabled[name] {
			continue
		}
		out = append(out, r.funcs[name]())
	}
	return out
}

// ByName looks up a single candidate irrespective of arity filtering, used
// by the special-case pass (which targets specific names like "free").
func (r *Registry) ByName(name string) (Candidate, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	factory, ok := r.funcs[name]
	if !ok {
		return nil, false
	}
	return factory(), true
}

// Names returns every registered candidate name, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []string
	for name := range r.funcs {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
