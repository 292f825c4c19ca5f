// Package driver implements the identifier driver: for every non-syscall
// routine in a recovered CFG, reconstruct its stack frame, probe it
// against the candidate catalogue's arity-filtered pool, and report at most
// one matching library function. Grounded on the reference
// implementation's identify.py driving loop: a generic pass (reconstruct ->
// filter by arity and var_args -> per-candidate test loop) over every
// routine, followed by a dedicated special-case pass over the fixed list
// ["free", "realloc"] that considers only routines the generic pass left
// unmatched.
package driver

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/archscan/funcid/internal/arch"
	"github.com/archscan/funcid/internal/catalogue"
	"github.com/archscan/funcid/internal/cfgmodel"
	"github.com/archscan/funcid/internal/log"
	"github.com/archscan/funcid/internal/probe"
	"github.com/archscan/funcid/internal/reconstruct"
	"github.com/archscan/funcid/internal/trace"
)

// DefaultNumTests is the number of independently generated TestData
// vectors a generic candidate must pass before it's accepted as a match.
const DefaultNumTests = 10

// specialCaseFuncs is the fixed list of special-case candidates the
// driver's second pass considers, in order, per spec.
var specialCaseFuncs = []string{"free", "realloc"}

// Options configures one identification run.
type Options struct {
	Arch      arch.Descriptor
	Catalogue *catalogue.Registry
	Segments  []probe.ImageSegment
	NumTests  int
	MaxSteps  int
	Logger    *log.Logger
	// OnResult, if set, is called synchronously once per routine, in
	// routine order, after both the generic and the special-case pass have
	// finished — the hook internal/tui's progress view is fed from.
	OnResult func(Result)
}

// Result is the driver's verdict for one routine.
type Result struct {
	Routine   *cfgmodel.Routine
	Info      *reconstruct.FuncInfo
	Candidate string // "" if no candidate matched
	Err       error  // non-nil only when reconstruction itself failed
}

// Run identifies every non-syscall routine in routines. Each routine is
// handled independently and a failure on one (a reconstruction error, a
// probe that never terminates) never aborts the sweep — it is recorded in
// that routine's Result and the driver moves on, per the component's
// degrade-to-skip error policy.
func Run(routines []*cfgmodel.Routine, opts Options) []Result {
	if opts.Catalogue == nil {
		opts.Catalogue = catalogue.Default
	}
	if opts.NumTests <= 0 {
		opts.NumTests = DefaultNumTests
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.NewNop()
	}

	runID := uuid.NewString()
	runner := probe.NewRunner(opts.Segments)

	results := make([]Result, 0, len(routines))
	for _, r := range routines {
		if r.IsSyscall {
			continue
		}
		results = append(results, identifyGeneric(r, opts, runID, runner, logger))
	}

	// Special-case pass: runs only after the generic pass has finished
	// over every routine, and only considers routines it left unmatched —
	// folding this into the per-routine generic loop would let an
	// overly permissive special matcher (free's "did not crash" check)
	// shadow a correct generic match for an unrelated single-argument
	// routine tried later in arity order.
	for i := range results {
		res := &results[i]
		if res.Err != nil || res.Candidate != "" {
			continue
		}
		applySpecialCase(res, opts, runner, logger)
	}

	if opts.OnResult != nil {
		for _, res := range results {
			opts.OnResult(res)
		}
	}
	return results
}

func identifyGeneric(r *cfgmodel.Routine, opts Options, runID string, runner *probe.Runner, logger *log.Logger) Result {
	// Every symbolic name minted for this routine is namespaced by the
	// run ID and the routine's own address, so two routines (in this run
	// or across two runs against the same binary) never collide even
	// though symir's fresh-symbol counter is process-global.
	namespace := fmt.Sprintf("%s:%08x", runID, r.Entry)

	info, err := reconstruct.Reconstruct(r, opts.Arch, namespace)
	if err != nil {
		logger.ReconstructFailed(uint64(r.Entry), r.Name, err)
		detail := "preamble_not_found"
		if errors.Is(err, reconstruct.ErrStartpointMissing) {
			detail = "startpoint_missing"
		}
		logger.Trace(uint64(r.Entry), string(trace.Reconstruct), r.Name, detail)
		return Result{Routine: r, Err: err}
	}
	logger.Reconstructed(uint64(r.Entry), r.Name, info.FrameSize, len(info.StackVars))

	arity := len(info.StackArgs)
	candidates := opts.Catalogue.ForArity(arity)

	tried := 0
	for _, cand := range candidates {
		if _, special := cand.(catalogue.SpecialMatcher); special {
			// Special-case candidates are never considered in the
			// generic pass, regardless of arity match — only in the
			// dedicated pass below, against routines still unmatched.
			continue
		}
		if cand.VarArgs() != info.VarArgs {
			continue
		}
		if !cand.PreTest(info) {
			continue
		}
		tried++

		if matchesGeneric(r, cand, opts, runner, logger) {
			logger.MatchFound(uint64(r.Entry), r.Name, cand.Name())
			logger.Trace(uint64(r.Entry), string(trace.Match), r.Name, "candidate="+cand.Name())
			return Result{Routine: r, Info: info, Candidate: cand.Name()}
		}
	}

	logger.NoMatch(uint64(r.Entry), r.Name, tried)
	logger.Trace(uint64(r.Entry), string(trace.NoMatch), r.Name, fmt.Sprintf("tried=%d", tried))
	return Result{Routine: r, Info: info}
}

// applySpecialCase runs the specification's dedicated second pass for one
// routine the generic pass left unmatched: try each fixed special-case
// candidate's name, in order, filtering by arity and var_args exactly as
// the generic pass does, and accept the first one whose bespoke TryMatch
// succeeds.
func applySpecialCase(res *Result, opts Options, runner *probe.Runner, logger *log.Logger) {
	r, info := res.Routine, res.Info
	for _, name := range specialCaseFuncs {
		cand, ok := opts.Catalogue.ByName(name)
		if !ok {
			continue
		}
		sm, ok := cand.(catalogue.SpecialMatcher)
		if !ok {
			continue
		}
		if sm.NumArgs() != len(info.StackArgs) || sm.VarArgs() != info.VarArgs {
			continue
		}

		matched, err := sm.TryMatch(r, runner)
		if err != nil {
			logger.ProbeFailed(uint64(r.Entry), r.Name, sm.Name(), err)
			continue
		}
		if matched {
			logger.MatchFound(uint64(r.Entry), r.Name, sm.Name())
			logger.Trace(uint64(r.Entry), string(trace.Match), r.Name, "candidate="+sm.Name())
			res.Candidate = sm.Name()
			return
		}
	}
}

// matchesGeneric runs NumTests independently generated vectors through
// the probe; the candidate is accepted only if every single one passes, so
// a routine that merely coincides with a candidate on one lucky input
// doesn't get credited with the match.
func matchesGeneric(r *cfgmodel.Routine, cand catalogue.Candidate, opts Options, runner *probe.Runner, logger *log.Logger) bool {
	for i := 0; i < opts.NumTests; i++ {
		td := cand.GenInputOutputPair()
		if td.MaxSteps == 0 {
			td.MaxSteps = opts.MaxSteps
		}
		ok, err := runner.Test(r, td)
		if err != nil {
			logger.ProbeFailed(uint64(r.Entry), r.Name, cand.Name(), err)
			logger.Trace(uint64(r.Entry), string(trace.Probe), r.Name, "multistate")
			return false
		}
		if !ok {
			return false
		}
	}
	return true
}
