package builtin

import (
	"strconv"

	"github.com/archscan/funcid/internal/catalogue"
)

type atoiCand struct{ base }

func init() {
	register("atoi", 1, func() catalogue.Candidate { return atoiCand{base{"atoi", 1, false}} })
}

func (atoiCand) GenInputOutputPair() catalogue.TestData {
	n := rng.Intn(200000) - 100000
	s := strconv.Itoa(n)
	return catalogue.TestData{
		InputArgs:         []any{[]byte(s)},
		ExpectedReturnVal: catalogue.RetVal(int64(n)),
	}
}
