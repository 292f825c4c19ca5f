package builtin

import (
	"bytes"

	"github.com/archscan/funcid/internal/catalogue"
)

type memcpyCand struct{ base }

func init() {
	register("memcpy", 3, func() catalogue.Candidate { return memcpyCand{base{"memcpy", 3, false}} })
}

func (memcpyCand) GenInputOutputPair() catalogue.TestData {
	n := 4 + rng.Intn(16)
	src := randBytes(n)
	dst := make([]byte, n)
	for i := range dst {
		dst[i] = 0xAA
	}
	return catalogue.TestData{
		InputArgs:          []any{dst, src, int64(n)},
		ExpectedOutputArgs: []any{append([]byte{}, src...), nil, nil},
		ReturnOffsetArg:    argRef(0),
	}
}

type memmoveCand struct{ base }

func init() {
	register("memmove", 3, func() catalogue.Candidate { return memmoveCand{base{"memmove", 3, false}} })
}

func (memmoveCand) GenInputOutputPair() catalogue.TestData {
	// Non-overlapping src/dst here (the probe gives each input argument its
	// own scratch allocation) — this doesn't exercise memmove's defining
	// overlap-safety property, only that it copies correctly in the
	// non-overlapping case it shares with memcpy. Distinguishing the two
	// behaviorally would require aliasing both pointers into the same
	// scratch buffer, which the generic probe harness doesn't support.
	n := 4 + rng.Intn(16)
	src := randBytes(n)
	dst := make([]byte, n)
	for i := range dst {
		dst[i] = 0xAA
	}
	return catalogue.TestData{
		InputArgs:          []any{dst, src, int64(n)},
		ExpectedOutputArgs: []any{append([]byte{}, src...), nil, nil},
		ReturnOffsetArg:    argRef(0),
	}
}

type memsetCand struct{ base }

func init() {
	register("memset", 3, func() catalogue.Candidate { return memsetCand{base{"memset", 3, false}} })
}

func (memsetCand) GenInputOutputPair() catalogue.TestData {
	n := 4 + rng.Intn(16)
	val := byte(1 + rng.Intn(200)) // avoid 0: the NUL the probe appends after each buffer would otherwise coincide
	buf := make([]byte, n)
	for i := range buf {
		buf[i] = 0xAA
	}
	want := bytes.Repeat([]byte{val}, n)
	return catalogue.TestData{
		InputArgs:          []any{buf, int64(val), int64(n)},
		ExpectedOutputArgs: []any{want, nil, nil},
		ReturnOffsetArg:    argRef(0),
	}
}

type memcmpCand struct{ base }

func init() {
	register("memcmp", 3, func() catalogue.Candidate { return memcmpCand{base{"memcmp", 3, false}} })
}

func (memcmpCand) GenInputOutputPair() catalogue.TestData {
	n := 4 + rng.Intn(12)
	a := randBytes(n)
	b := append([]byte{}, a...)
	if rng.Intn(2) == 0 {
		b[rng.Intn(n)] ^= 0xFF
	}
	return catalogue.TestData{
		InputArgs:         []any{a, b, int64(n)},
		ExpectedReturnVal: catalogue.RetVal(int64(sign(bytes.Compare(a, b)))),
	}
}
