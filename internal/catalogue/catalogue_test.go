package catalogue

import (
	"testing"

	"github.com/archscan/funcid/internal/reconstruct"
)

type fakeCandidate struct {
	name  string
	arity int
}

func (f fakeCandidate) Name() string    { return f.name }
func (f fakeCandidate) NumArgs() int    { return f.arity }
func (f fakeCandidate) VarArgs() bool   { return false }
func (f fakeCandidate) GenInputOutputPair() TestData        { return TestData{} }
func (f fakeCandidate) PreTest(*reconstruct.FuncInfo) bool { return true }

func TestRegisterAndForArity(t *testing.T) {
	r := NewRegistry()
	r.Register("strlen", 1, func() Candidate { return fakeCandidate{"strlen", 1} })
	r.Register("atoi", 1, func() Candidate { return fakeCandidate{"atoi", 1} })
	r.Register("memcpy", 3, func() Candidate { return fakeCandidate{"memcpy", 3} })

	one := r.ForArity(1)
	if len(one) != 2 {
		t.Fatalf("ForArity(1) returned %d candidates, want 2", len(one))
	}
	if one[0].Name() != "atoi" || one[1].Name() != "strlen" {
		t.Fatalf("ForArity(1) = [%s %s], want sorted [atoi strlen]", one[0].Name(), one[1].Name())
	}

	three := r.ForArity(3)
	if len(three) != 1 || three[0].Name() != "memcpy" {
		t.Fatalf("ForArity(3) = %v, want [memcpy]", three)
	}

	if len(r.ForArity(99)) != 0 {
		t.Fatalf("ForArity(99) returned candidates for an unregistered arity")
	}
}

func TestRegisterDuplicatePanics(t *testing.T) {
	r := NewRegistry()
	r.Register("strlen", 1, func() Candidate { return fakeCandidate{"strlen", 1} })
	defer func() {
		if recover() == nil {
			t.Fatalf("Register() on a duplicate name did not panic")
		}
	}()
	r.Register("strlen", 1, func() Candidate { return fakeCandidate{"strlen", 1} })
}

func TestByName(t *testing.T) {
	r := NewRegistry()
	r.Register("atoi", 1, func() Candidate { return fakeCandidate{"atoi", 1} })

	if _, ok := r.ByName("missing"); ok {
		t.Fatalf("ByName() found a candidate that was never registered")
	}
	cand, ok := r.ByName("atoi")
	if !ok || cand.Name() != "atoi" {
		t.Fatalf("ByName(atoi) = (%v,%v), want (atoi,true)", cand, ok)
	}
}

func TestSetProfileFiltersForArity(t *testing.T) {
	r := NewRegistry()
	r.Register("strlen", 1, func() Candidate { return fakeCandidate{"strlen", 1} })
	r.Register("atoi", 1, func() Candidate { return fakeCandidate{"atoi", 1} })

	r.SetProfile([]string{"atoi"})
	got := r.ForArity(1)
	if len(got) != 1 || got[0].Name() != "atoi" {
		t.Fatalf("ForArity(1) after SetProfile([atoi]) = %v, want [atoi]", got)
	}

	// ByName bypasses the profile filter entirely.
	if _, ok := r.ByName("strlen"); !ok {
		t.Fatalf("ByName() honored the profile filter, but it should bypass it")
	}

	r.SetProfile(nil)
	if len(r.ForArity(1)) != 2 {
		t.Fatalf("SetProfile(nil) did not re-enable every candidate")
	}
}

func TestNamesSorted(t *testing.T) {
	r := NewRegistry()
	r.Register("strlen", 1, func() Candidate { return fakeCandidate{"strlen", 1} })
	r.Register("atoi", 1, func() Candidate { return fakeCandidate{"atoi", 1} })

	names := r.Names()
	if len(names) != 2 || names[0] != "atoi" || names[1] != "strlen" {
		t.Fatalf("Names() = %v, want sorted [atoi strlen]", names)
	}
}
