// Package symir implements a small symbolic bitvector expression IR.
//
// No symbolic-execution library appears anywhere in the example corpus —
// every substrate available there (Unicorn) is concrete-only — so this
// package exists to give the frame reconstructor the handful of symbolic
// primitives §4.1 of the specification requires: fresh symbols, structural
// simplification, symbolic-ness tests, and constrained evaluation. It is
// deliberately small: a handful of node kinds and a constant-folding
// constructor, not a general solver.
package symir

import (
	"fmt"
	"strconv"
	"strings"
)

// Op identifies a binary operator.
type Op int

const (
	OpAdd Op = iota
	OpSub
	OpAnd
	OpOr
	OpXor
	OpMul
)

var opNames = map[Op]string{
	OpAdd: "+", OpSub: "-", OpAnd: "&", OpOr: "|", OpXor: "^", OpMul: "*",
}

// Kind identifies the shape of a BV node.
type Kind int

const (
	KindConst Kind = iota
	KindSymbol
	KindBin
	KindLoad // symbolic memory load: Load(addr, size)
)

// BV is an immutable symbolic (or concrete) bitvector expression.
type BV struct {
	Kind Kind
	Bits int

	// KindConst
	Val uint64

	// KindSymbol
	Name string

	// KindBin
	Op   Op
	X, Y *BV

	// KindLoad
	Addr *BV
	Size int
}

func mask(bits int) uint64 {
	if bits >= 64 {
		return ^uint64(0)
	}
	return (uint64(1) << uint(bits)) - 1
}

// Const builds a concrete bitvector constant.
func Const(val uint64, bits int) *BV {
	return &BV{Kind: KindConst, Bits: bits, Val: val & mask(bits)}
}

// symCounter is process-wide and is always combined with a caller-supplied
// namespace (the driver's per-routine run salt) so names minted while
// reconstructing routine R never collide with names minted for routine S,
// matching the distinctness requirement on symbolic names.
var symCounter int

// Fresh creates a new, globally distinct symbolic bitvector. namespace is
// typically "<runID>:<routine entry in hex>" so that names are unique per
// reconstruction.
func Fresh(namespace, hint string, bits int) *BV {
	symCounter++
	return &BV{
		Kind: KindSymbol,
		Bits: bits,
		Name: fmt.Sprintf("%s/%s#%d", namespace, hint, symCounter),
	}
}

// Load builds a symbolic memory-load expression of size bytes at addr.
func Load(addr *BV, size int) *BV {
	return &BV{Kind: KindLoad, Bits: size * 8, Addr: addr, Size: size}
}

func bin(op Op, x, y *BV) *BV {
	bits := x.Bits
	if y.Bits > bits {
		bits = y.Bits
	}
	// constant folding keeps trees small and makes Simplify a no-op for
	// anything built through these constructors.
	if x.Kind == KindConst && y.Kind == KindConst {
		var v uint64
		switch op {
		case OpAdd:
			v = x.Val + y.Val
		case OpSub:
			v = x.Val - y.Val
		case OpAnd:
			v = x.Val & y.Val
		case OpOr:
			v = x.Val | y.Val
		case OpXor:
			v = x.Val ^ y.Val
		case OpMul:
			v = x.Val * y.Val
		}
		return Const(v, bits)
	}
	// x + 0 == x, x - 0 == x
	if y.Kind == KindConst && y.Val == 0 && (op == OpAdd || op == OpSub) {
		return x
	}
	return &BV{Kind: KindBin, Bits: bits, Op: op, X: x, Y: y}
}

func Add(x, y *BV) *BV { return bin(OpAdd, x, y) }
func Sub(x, y *BV) *BV { return bin(OpSub, x, y) }
func And(x, y *BV) *BV { return bin(OpAnd, x, y) }
func Or(x, y *BV) *BV  { return bin(OpOr, x, y) }
func Xor(x, y *BV) *BV { return bin(OpXor, x, y) }
func Mul(x, y *BV) *BV { return bin(OpMul, x, y) }

// AddC/SubC are convenience wrappers for the extremely common case of
// adding/subtracting a plain Go constant.
func AddC(x *BV, c uint64) *BV { return Add(x, Const(c, x.Bits)) }
func SubC(x *BV, c uint64) *BV { return Sub(x, Const(c, x.Bits)) }

// IsSymbolic reports whether the expression still contains a Symbol or Load
// leaf — i.e. whether it depends on anything not yet concretized.
func IsSymbolic(e *BV) bool {
	switch e.Kind {
	case KindConst:
		return false
	case KindSymbol, KindLoad:
		return true
	case KindBin:
		return IsSymbolic(e.X) || IsSymbolic(e.Y)
	}
	return true
}

// Simplify re-applies constant folding to an expression tree, which is
// useful after substitution produces new constant subtrees.
func Simplify(e *BV) *BV {
	switch e.Kind {
	case KindConst, KindSymbol:
		return e
	case KindLoad:
		addr := Simplify(e.Addr)
		if addr == e.Addr {
			return e
		}
		return Load(addr, e.Size)
	case KindBin:
		x, y := Simplify(e.X), Simplify(e.Y)
		if x == e.X && y == e.Y {
			return e
		}
		return bin(e.Op, x, y)
	}
	return e
}

// Bindings maps symbol names to concrete values, used to evaluate an
// expression under a hypothesis (e.g. "every default-symbolic register is
// zero") without mutating the expression tree itself.
type Bindings map[string]uint64

// Eval attempts to fully concretize e under the given bindings. ok is false
// if any symbol (or symbolic load) in e has no binding.
func Eval(e *BV, b Bindings) (val uint64, ok bool) {
	switch e.Kind {
	case KindConst:
		return e.Val, true
	case KindSymbol:
		v, present := b[e.Name]
		return v & mask(e.Bits), present
	case KindLoad:
		// Symbolic loads never concretize under a register-only binding
		// set; memory contents aren't modeled structurally here.
		return 0, false
	case KindBin:
		x, xok := Eval(e.X, b)
		if !xok {
			return 0, false
		}
		y, yok := Eval(e.Y, b)
		if !yok {
			return 0, false
		}
		var v uint64
		switch e.Op {
		case OpAdd:
			v = x + y
		case OpSub:
			v = x - y
		case OpAnd:
			v = x & y
		case OpOr:
			v = x | y
		case OpXor:
			v = x ^ y
		case OpMul:
			v = x * y
		}
		return v & mask(e.Bits), true
	}
	return 0, false
}

// AnyInt concretizes e assuming it carries no unresolved symbols (i.e.
// IsSymbolic(e) is false). It panics if that assumption doesn't hold,
// mirroring a solver's any_int on a definitely-concrete AST.
func AnyInt(e *BV) uint64 {
	v, ok := Eval(Simplify(e), nil)
	if !ok {
		panic("symir: AnyInt on symbolic expression")
	}
	return v
}

// Solutions returns the set of values e can take under the given bindings,
// here always a single value (one binding in, one value out) or none. It
// exists to mirror the solver's any_n_int(expr, n) used by the teacher's
// preamble check ("does this AST have exactly one solution, and is it
// arch.Bytes?").
func Solutions(e *BV, b Bindings) []uint64 {
	if v, ok := Eval(e, b); ok {
		return []uint64{v}
	}
	return nil
}

// Fingerprint returns a canonical string for structural (not pointer)
// identity comparisons — e.g. "does this memory-write's data expression
// match register R's initial symbolic value", which must be judged by
// content, not by Go pointer equality.
func Fingerprint(e *BV) string {
	var sb strings.Builder
	fingerprint(e, &sb)
	return sb.String()
}

func fingerprint(e *BV, sb *strings.Builder) {
	switch e.Kind {
	case KindConst:
		sb.WriteString("c:")
		sb.WriteString(strconv.FormatUint(e.Val, 16))
	case KindSymbol:
		sb.WriteString("s:")
		sb.WriteString(e.Name)
	case KindLoad:
		sb.WriteString("ld" + strconv.Itoa(e.Size) + "(")
		fingerprint(e.Addr, sb)
		sb.WriteString(")")
	case KindBin:
		sb.WriteString("(")
		fingerprint(e.X, sb)
		sb.WriteString(opNames[e.Op])
		fingerprint(e.Y, sb)
		sb.WriteString(")")
	}
}
