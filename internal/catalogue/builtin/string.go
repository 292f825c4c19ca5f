package builtin

import (
	"strings"

	"github.com/archscan/funcid/internal/catalogue"
)

// argRef builds a *int for TestData.ReturnOffsetArg; exists only to avoid
// repeating `i := i; &i` at every call site below.
func argRef(i int) *int { v := i; return &v }

type strlenCand struct{ base }

func init() {
	register("strlen", 1, func() catalogue.Candidate { return strlenCand{base{"strlen", 1, false}} })
}

func (strlenCand) GenInputOutputPair() catalogue.TestData {
	s := randASCII(1 + rng.Intn(32))
	return catalogue.TestData{
		InputArgs:          []any{[]byte(s)},
		ExpectedOutputArgs: []any{nil},
		ExpectedReturnVal:  catalogue.RetVal(int64(len(s))),
	}
}

type strcpyCand struct{ base }

func init() {
	register("strcpy", 2, func() catalogue.Candidate { return strcpyCand{base{"strcpy", 2, false}} })
}

func (strcpyCand) GenInputOutputPair() catalogue.TestData {
	src := randASCII(1 + rng.Intn(24))
	dst := make([]byte, len(src)+1) // garbage dst, sized to exactly fit src+NUL
	for i := range dst {
		dst[i] = 0xAA
	}
	want := append([]byte(src), 0)
	return catalogue.TestData{
		InputArgs:          []any{dst, []byte(src)},
		ExpectedOutputArgs: []any{want, nil},
		ReturnOffsetArg:    argRef(0),
	}
}

type strncpyCand struct{ base }

func init() {
	register("strncpy", 3, func() catalogue.Candidate { return strncpyCand{base{"strncpy", 3, false}} })
}

func (strncpyCand) GenInputOutputPair() catalogue.TestData {
	src := randASCII(4 + rng.Intn(8))
	n := len(src) - 1 // shorter than src: exercises the no-NUL-padding path
	dst := make([]byte, len(src)+1)
	for i := range dst {
		dst[i] = 0xAA
	}
	want := append([]byte(src[:n]), 0xAA) // strncpy leaves dst[n] untouched when n < len(src)
	return catalogue.TestData{
		InputArgs:          []any{dst, []byte(src), int64(n)},
		ExpectedOutputArgs: []any{want, nil, nil},
		ReturnOffsetArg:    argRef(0),
	}
}

type strcatCand struct{ base }

func init() {
	register("strcat", 2, func() catalogue.Candidate { return strcatCand{base{"strcat", 2, false}} })
}

func (strcatCand) GenInputOutputPair() catalogue.TestData {
	head := randASCII(1 + rng.Intn(8))
	tail := randASCII(1 + rng.Intn(8))
	dst := make([]byte, len(head)+1, len(head)+len(tail)+1)
	copy(dst, head)
	dst[len(head)] = 0
	dst = dst[:len(head)+len(tail)+1] // reserve the room strcat will append into
	want := append(append([]byte(head), tail...), 0)
	return catalogue.TestData{
		InputArgs:          []any{dst, []byte(tail)},
		ExpectedOutputArgs: []any{want, nil},
		ReturnOffsetArg:    argRef(0),
	}
}

type strncatCand struct{ base }

func init() {
	register("strncat", 3, func() catalogue.Candidate { return strncatCand{base{"strncat", 3, false}} })
}

func (strncatCand) GenInputOutputPair() catalogue.TestData {
	head := randASCII(1 + rng.Intn(8))
	tail := randASCII(6 + rng.Intn(6))
	n := len(tail) - 2
	dst := make([]byte, len(head)+1, len(head)+n+1)
	copy(dst, head)
	dst[len(head)] = 0
	dst = dst[:len(head)+n+1]
	want := append(append([]byte(head), tail[:n]...), 0)
	return catalogue.TestData{
		InputArgs:          []any{dst, []byte(tail), int64(n)},
		ExpectedOutputArgs: []any{want, nil, nil},
		ReturnOffsetArg:    argRef(0),
	}
}

type strcmpCand struct{ base }

func init() {
	register("strcmp", 2, func() catalogue.Candidate { return strcmpCand{base{"strcmp", 2, false}} })
}

func (strcmpCand) GenInputOutputPair() catalogue.TestData {
	a := randASCII(1 + rng.Intn(16))
	var b string
	if rng.Intn(2) == 0 {
		b = a
	} else {
		b = randASCII(len(a))
	}
	return catalogue.TestData{
		InputArgs:         []any{[]byte(a), []byte(b)},
		ExpectedReturnVal: catalogue.RetVal(int64(sign(strings.Compare(a, b)))),
	}
}

type strncmpCand struct{ base }

func init() {
	register("strncmp", 3, func() catalogue.Candidate { return strncmpCand{base{"strncmp", 3, false}} })
}

func (strncmpCand) GenInputOutputPair() catalogue.TestData {
	a := randASCII(4 + rng.Intn(8))
	n := len(a) - 1
	b := a[:n] + randASCII(1)
	return catalogue.TestData{
		InputArgs:         []any{[]byte(a), []byte(b), int64(n)},
		ExpectedReturnVal: catalogue.RetVal(int64(sign(strings.Compare(a[:n], b[:n])))),
	}
}

// sign folds a three-way comparison onto {-1,0,1}: real strcmp
// implementations vary in the exact magnitude returned for "not equal",
// only its sign is part of the contract.
func sign(c int) int {
	switch {
	case c < 0:
		return -1
	case c > 0:
		return 1
	default:
		return 0
	}
}

type strchrCand struct{ base }

func init() {
	register("strchr", 2, func() catalogue.Candidate { return strchrCand{base{"strchr", 2, false}} })
}

func (strchrCand) GenInputOutputPair() catalogue.TestData {
	s := randASCII(4 + rng.Intn(12))
	ch := s[rng.Intn(len(s))]
	idx := strings.IndexByte(s, ch)
	return catalogue.TestData{
		InputArgs:       []any{[]byte(s), int64(ch)},
		ReturnOffsetArg: argRef(0),
		ReturnOffset:    int64(idx),
	}
}

type strrchrCand struct{ base }

func init() {
	register("strrchr", 2, func() catalogue.Candidate { return strrchrCand{base{"strrchr", 2, false}} })
}

func (strrchrCand) GenInputOutputPair() catalogue.TestData {
	s := randASCII(4 + rng.Intn(12))
	ch := s[rng.Intn(len(s))]
	idx := strings.LastIndexByte(s, ch)
	return catalogue.TestData{
		InputArgs:       []any{[]byte(s), int64(ch)},
		ReturnOffsetArg: argRef(0),
		ReturnOffset:    int64(idx),
	}
}

type strstrCand struct{ base }

func init() {
	register("strstr", 2, func() catalogue.Candidate { return strstrCand{base{"strstr", 2, false}} })
}

func (strstrCand) GenInputOutputPair() catalogue.TestData {
	needle := randASCII(2 + rng.Intn(3))
	s := randASCII(3) + needle + randASCII(3)
	idx := strings.Index(s, needle)
	return catalogue.TestData{
		InputArgs:       []any{[]byte(s), []byte(needle)},
		ReturnOffsetArg: argRef(0),
		ReturnOffset:    int64(idx),
	}
}
