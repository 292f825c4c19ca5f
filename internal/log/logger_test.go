package log

import (
	"errors"
	"testing"
)

func TestHex(t *testing.T) {
	cases := map[uint64]string{
		0:      "0x0",
		0x10:   "0x10",
		0xdead: "0xdead",
	}
	for in, want := range cases {
		if got := Hex(in); got != want {
			t.Errorf("Hex(%#x) = %q, want %q", in, got, want)
		}
	}
}

func TestNewNopDoesNotPanic(t *testing.T) {
	l := NewNop()
	l.Trace(0x1000, "reconstruct", "strlen", "ok")
	l.TraceSimple("probe", "strlen", "multistate")
	l.Reconstructed(0x1000, "strlen", 16, 2)
	l.ReconstructFailed(0x1000, "strlen", errors.New("boom"))
	l.ProbeFailed(0x1000, "strlen", "strlen", errors.New("boom"))
	l.MatchFound(0x1000, "strlen", "strlen")
	l.NoMatch(0x1000, "strlen", 4)
}

func TestSetOnTraceInvokedByTrace(t *testing.T) {
	l := NewNop()
	var gotPC uint64
	var gotCat, gotName, gotDetail string
	l.SetOnTrace(func(pc uint64, category, name, detail string) {
		gotPC, gotCat, gotName, gotDetail = pc, category, name, detail
	})
	l.Trace(0x2000, "match", "strlen", "candidate=strlen")
	if gotPC != 0x2000 || gotCat != "match" || gotName != "strlen" || gotDetail != "candidate=strlen" {
		t.Fatalf("trace callback got (%#x,%s,%s,%s), want (0x2000,match,strlen,candidate=strlen)", gotPC, gotCat, gotName, gotDetail)
	}
}

func TestWithCategoryPreservesOnTrace(t *testing.T) {
	l := NewNop()
	called := false
	l.SetOnTrace(func(uint64, string, string, string) { called = true })
	sub := l.WithCategory("probe")
	sub.Trace(0, "probe", "atoi", "ok")
	if !called {
		t.Fatalf("WithCategory() dropped the onTrace callback")
	}
}
