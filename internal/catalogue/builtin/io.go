package builtin

import (
	"github.com/archscan/funcid/internal/catalogue"
)

type putsCand struct{ base }

func init() {
	register("puts", 1, func() catalogue.Candidate { return putsCand{base{"puts", 1, false}} })
}

func (putsCand) GenInputOutputPair() catalogue.TestData {
	s := randASCII(1 + rng.Intn(16))
	return catalogue.TestData{
		InputArgs:      []any{[]byte(s)},
		ExpectedStdout: append([]byte(s), '\n'),
	}
}

// printfCand only ever generates a format string with no conversion
// specifiers: verifying a real printf's format-directive handling would
// need a format-string interpreter of its own, and is out of scope for a
// catalogue entry whose job is to tell printf apart from its neighbors, not
// to reimplement it. VarArgs is still true since the real function takes
// optional trailing arguments the probe simply never supplies.
type printfCand struct{ base }

func init() {
	register("printf", 1, func() catalogue.Candidate { return printfCand{base{"printf", 1, true}} })
}

func (printfCand) GenInputOutputPair() catalogue.TestData {
	s := randASCII(1 + rng.Intn(16))
	return catalogue.TestData{
		InputArgs:         []any{[]byte(s)},
		ExpectedStdout:    []byte(s),
		ExpectedReturnVal: catalogue.RetVal(int64(len(s))),
	}
}
