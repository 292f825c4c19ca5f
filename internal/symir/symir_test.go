package symir

import "testing"

func TestConstantFolding(t *testing.T) {
	e := Add(Const(2, 32), Const(3, 32))
	if e.Kind != KindConst || e.Val != 5 {
		t.Fatalf("Add(2,3) = %+v, want constant 5", e)
	}
}

func TestAddSubZeroSimplify(t *testing.T) {
	x := Fresh("test", "x", 32)
	if got := AddC(x, 0); got != x {
		t.Fatalf("AddC(x,0) did not return x unchanged")
	}
	if got := SubC(x, 0); got != x {
		t.Fatalf("SubC(x,0) did not return x unchanged")
	}
}

func TestFreshDistinct(t *testing.T) {
	a := Fresh("ns", "r", 32)
	b := Fresh("ns", "r", 32)
	if Fingerprint(a) == Fingerprint(b) {
		t.Fatalf("two Fresh() calls produced identical fingerprints")
	}
}

func TestFingerprintStructuralEquality(t *testing.T) {
	x := Fresh("ns", "x", 32)
	a := AddC(x, 4)
	b := Add(x, Const(4, 32))
	if Fingerprint(a) != Fingerprint(b) {
		t.Fatalf("structurally identical expressions produced different fingerprints: %q vs %q", Fingerprint(a), Fingerprint(b))
	}
}

func TestIsSymbolic(t *testing.T) {
	x := Fresh("ns", "x", 32)
	if IsSymbolic(Const(1, 32)) {
		t.Fatalf("constant reported as symbolic")
	}
	if !IsSymbolic(AddC(x, 4)) {
		t.Fatalf("expression containing a fresh symbol reported as concrete")
	}
}

func TestEvalBindings(t *testing.T) {
	x := Fresh("ns", "x", 32)
	e := AddC(x, 10)
	v, ok := Eval(e, Bindings{x.Name: 5})
	if !ok || v != 15 {
		t.Fatalf("Eval(x+10, x=5) = (%d,%v), want (15,true)", v, ok)
	}
	if _, ok := Eval(e, Bindings{}); ok {
		t.Fatalf("Eval succeeded with no binding for a free symbol")
	}
}

func TestAnyIntPanicsOnSymbolic(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("AnyInt on a symbolic expression did not panic")
		}
	}()
	AnyInt(Fresh("ns", "x", 32))
}
