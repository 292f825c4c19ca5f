package builtin

import (
	"github.com/archscan/funcid/internal/catalogue"
)

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

type toupperCand struct{ base }

func init() {
	register("toupper", 1, func() catalogue.Candidate { return toupperCand{base{"toupper", 1, false}} })
}

func (toupperCand) GenInputOutputPair() catalogue.TestData {
	c := byte('a' + rng.Intn(26))
	return catalogue.TestData{
		InputArgs:         []any{int64(c)},
		ExpectedReturnVal: catalogue.RetVal(int64(c - 'a' + 'A')),
	}
}

type tolowerCand struct{ base }

func init() {
	register("tolower", 1, func() catalogue.Candidate { return tolowerCand{base{"tolower", 1, false}} })
}

func (tolowerCand) GenInputOutputPair() catalogue.TestData {
	c := byte('A' + rng.Intn(26))
	return catalogue.TestData{
		InputArgs:         []any{int64(c)},
		ExpectedReturnVal: catalogue.RetVal(int64(c - 'A' + 'a')),
	}
}

type isalphaCand struct{ base }

func init() {
	register("isalpha", 1, func() catalogue.Candidate { return isalphaCand{base{"isalpha", 1, false}} })
}

func (isalphaCand) GenInputOutputPair() catalogue.TestData {
	var c byte
	if rng.Intn(2) == 0 {
		c = byte('a' + rng.Intn(26))
	} else {
		c = byte('0' + rng.Intn(10))
	}
	alpha := (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
	return catalogue.TestData{
		InputArgs:         []any{int64(c)},
		ExpectedReturnVal: catalogue.RetVal(boolToInt(alpha)),
	}
}

type isdigitCand struct{ base }

func init() {
	register("isdigit", 1, func() catalogue.Candidate { return isdigitCand{base{"isdigit", 1, false}} })
}

func (isdigitCand) GenInputOutputPair() catalogue.TestData {
	var c byte
	if rng.Intn(2) == 0 {
		c = byte('0' + rng.Intn(10))
	} else {
		c = byte('a' + rng.Intn(26))
	}
	digit := c >= '0' && c <= '9'
	return catalogue.TestData{
		InputArgs:         []any{int64(c)},
		ExpectedReturnVal: catalogue.RetVal(boolToInt(digit)),
	}
}

type isspaceCand struct{ base }

func init() {
	register("isspace", 1, func() catalogue.Candidate { return isspaceCand{base{"isspace", 1, false}} })
}

func (isspaceCand) GenInputOutputPair() catalogue.TestData {
	spaces := []byte{' ', '\t', '\n', '\v', '\f', '\r'}
	var c byte
	if rng.Intn(2) == 0 {
		c = spaces[rng.Intn(len(spaces))]
	} else {
		c = byte('a' + rng.Intn(26))
	}
	space := false
	for _, s := range spaces {
		if c == s {
			space = true
			break
		}
	}
	return catalogue.TestData{
		InputArgs:         []any{int64(c)},
		ExpectedReturnVal: catalogue.RetVal(boolToInt(space)),
	}
}
