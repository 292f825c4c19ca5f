package builtin

import (
	"bytes"
	"testing"

	"github.com/archscan/funcid/internal/catalogue"
)

// Every built-in candidate self-registers via init(), so importing this
// package is enough to populate catalogue.Default — exactly what
// cmd/funcid's blank import relies on.
func TestBuiltinsRegisterThemselves(t *testing.T) {
	for _, name := range []string{
		"strlen", "strcpy", "strncpy", "strcat", "strncat", "strcmp", "strncmp",
		"strchr", "strrchr", "strstr",
		"memcpy", "memmove", "memset", "memcmp",
		"toupper", "tolower", "isalpha", "isdigit", "isspace",
		"atoi", "puts", "printf", "free", "realloc",
	} {
		if _, ok := catalogue.Default.ByName(name); !ok {
			t.Errorf("candidate %q did not self-register into catalogue.Default", name)
		}
	}
}

func TestCandidateArityMatchesRegistration(t *testing.T) {
	cases := map[string]int{
		"strlen": 1, "strcpy": 2, "strncpy": 3, "strcat": 2, "strncat": 3,
		"strcmp": 2, "strncmp": 3, "strchr": 2, "strrchr": 2, "strstr": 2,
		"memcpy": 3, "memmove": 3, "memset": 3, "memcmp": 3,
		"toupper": 1, "tolower": 1, "isalpha": 1, "isdigit": 1, "isspace": 1,
		"atoi": 1, "puts": 1, "free": 1, "realloc": 2,
	}
	for name, arity := range cases {
		cand, ok := catalogue.Default.ByName(name)
		if !ok {
			t.Fatalf("candidate %q not registered", name)
		}
		if cand.NumArgs() != arity {
			t.Errorf("%s.NumArgs() = %d, want %d", name, cand.NumArgs(), arity)
		}
	}
}

func TestStrcpyGenInputOutputPairShape(t *testing.T) {
	cand, _ := catalogue.Default.ByName("strcpy")
	td := cand.GenInputOutputPair()
	if len(td.InputArgs) != 2 {
		t.Fatalf("strcpy TestData.InputArgs has %d entries, want 2", len(td.InputArgs))
	}
	dst, ok := td.InputArgs[0].([]byte)
	if !ok {
		t.Fatalf("strcpy arg0 is %T, want []byte", td.InputArgs[0])
	}
	src, ok := td.InputArgs[1].([]byte)
	if !ok {
		t.Fatalf("strcpy arg1 is %T, want []byte", td.InputArgs[1])
	}
	if len(dst) != len(src)+1 {
		t.Fatalf("strcpy dst buffer len = %d, want len(src)+1 = %d", len(dst), len(src)+1)
	}
	if td.ReturnOffsetArg == nil || *td.ReturnOffsetArg != 0 {
		t.Fatalf("strcpy ReturnOffsetArg = %v, want a pointer to 0", td.ReturnOffsetArg)
	}
	want, ok := td.ExpectedOutputArgs[0].([]byte)
	if !ok || len(want) != len(src)+1 || want[len(want)-1] != 0 {
		t.Fatalf("strcpy ExpectedOutputArgs[0] = %v, want src+NUL", td.ExpectedOutputArgs[0])
	}
}

func TestStrchrReturnOffsetWithinBounds(t *testing.T) {
	cand, _ := catalogue.Default.ByName("strchr")
	for i := 0; i < 20; i++ {
		td := cand.GenInputOutputPair()
		s := td.InputArgs[0].([]byte)
		if td.ReturnOffsetArg == nil || *td.ReturnOffsetArg != 0 {
			t.Fatalf("strchr ReturnOffsetArg = %v, want a pointer to 0", td.ReturnOffsetArg)
		}
		if td.ReturnOffset < 0 || td.ReturnOffset >= int64(len(s)) {
			t.Fatalf("strchr ReturnOffset = %d out of bounds for a %d-byte haystack", td.ReturnOffset, len(s))
		}
	}
}

func TestMemcmpReturnValueSignMatchesBytesCompare(t *testing.T) {
	cand, _ := catalogue.Default.ByName("memcmp")
	for i := 0; i < 20; i++ {
		td := cand.GenInputOutputPair()
		if td.ExpectedReturnVal == nil || *td.ExpectedReturnVal < -1 || *td.ExpectedReturnVal > 1 {
			t.Fatalf("memcmp ExpectedReturnVal = %v, want folded to {-1,0,1}", td.ExpectedReturnVal)
		}
		want := int64(0)
		if c := bytes.Compare(td.InputArgs[0].([]byte), td.InputArgs[1].([]byte)); c < 0 {
			want = -1
		} else if c > 0 {
			want = 1
		}
		if *td.ExpectedReturnVal != want {
			t.Fatalf("memcmp ExpectedReturnVal = %d, want %d (sign of bytes.Compare)", *td.ExpectedReturnVal, want)
		}
	}
}

func TestFreeIsSpecialMatcher(t *testing.T) {
	cand, _ := catalogue.Default.ByName("free")
	if _, ok := cand.(catalogue.SpecialMatcher); !ok {
		t.Fatalf("free candidate does not implement catalogue.SpecialMatcher")
	}
}

func TestReallocIsSpecialMatcher(t *testing.T) {
	cand, _ := catalogue.Default.ByName("realloc")
	if _, ok := cand.(catalogue.SpecialMatcher); !ok {
		t.Fatalf("realloc candidate does not implement catalogue.SpecialMatcher")
	}
}
