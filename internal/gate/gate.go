// Package gate runs a TaskVersion's ordered GateSpec list through the
// Sandbox and evaluates each result against its configured pass
// criterion (spec.md §4.5).
package gate

import (
	"context"
	"regexp"
	"time"

	"github.com/randalmurphal/governor/internal/events"
	"github.com/randalmurphal/governor/internal/sandbox"
	"github.com/randalmurphal/governor/internal/store"
)

// Pass-criteria variants a GateSpec.PassCriteria may name.
const (
	CriterionExitCodeZero   = "exit_code_zero"
	criterionExitCodeZeroAlt = "exit_code_0" // accepted synonym, canonicalized on load
	CriterionOutputContains = "output_contains"
	CriterionOutputMatches  = "output_matches"
)

// Canonicalize maps the accepted `exit_code_0` config synonym to the
// canonical `exit_code_zero` criterion name; every other value passes
// through unchanged (spec.md §9).
func Canonicalize(criterion string) string {
	if criterion == criterionExitCodeZeroAlt {
		return CriterionExitCodeZero
	}
	return criterion
}

// Runner is the subset of sandbox.Runner the Gate Runner needs.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (*sandbox.Result, error)
}

// Evaluator runs a task version's gate list in order through a
// Sandbox Runner, stopping at the first failure.
type Evaluator struct {
	runner Runner
	bus    *events.Bus
}

// New creates an Evaluator that executes gates via runner.
func New(runner Runner, bus *events.Bus) *Evaluator {
	return &Evaluator{runner: runner, bus: bus}
}

// RunAll executes specs in order, returning one GateResult per spec.
// Execution stops as soon as a gate fails or errors; results for gates
// that were never reached are not included (spec.md §4.5 ordering).
func (e *Evaluator) RunAll(ctx context.Context, specs []store.GateSpec) ([]store.GateResult, bool) {
	results := make([]store.GateResult, 0, len(specs))
	for _, spec := range specs {
		result := e.runOne(ctx, spec)
		results = append(results, result)
		e.publish(spec, result)
		if !result.Passed {
			return results, false
		}
	}
	return results, true
}

func (e *Evaluator) runOne(ctx context.Context, spec store.GateSpec) store.GateResult {
	gateCtx := ctx
	var cancel context.CancelFunc
	if spec.Timeout > 0 {
		gateCtx, cancel = context.WithTimeout(ctx, spec.Timeout)
		defer cancel()
	}

	start := time.Now()
	res, err := e.runner.Run(gateCtx, spec.Command, spec.Args...)
	duration := time.Since(start)

	gr := store.GateResult{Name: spec.Name, Duration: duration}
	if res != nil {
		gr.ExitCode = res.ExitCode
		gr.Stdout = res.Stdout
		gr.Stderr = res.Stderr
	}
	if err != nil {
		gr.Error = err.Error()
		gr.Passed = false
		return gr
	}

	gr.Passed = e.satisfies(spec, gr)
	return gr
}

func (e *Evaluator) satisfies(spec store.GateSpec, gr store.GateResult) bool {
	switch Canonicalize(spec.PassCriteria) {
	case CriterionExitCodeZero:
		return gr.ExitCode == 0
	case CriterionOutputContains:
		return contains(gr.Stdout, spec.Expected) || contains(gr.Stderr, spec.Expected)
	case CriterionOutputMatches:
		re, err := regexp.Compile(spec.Expected)
		if err != nil {
			return false
		}
		return re.MatchString(gr.Stdout) || re.MatchString(gr.Stderr)
	default:
		return false
	}
}

func contains(haystack, needle string) bool {
	if needle == "" {
		return true
	}
	return regexp.MustCompile(regexp.QuoteMeta(needle)).MatchString(haystack)
}

func (e *Evaluator) publish(spec store.GateSpec, gr store.GateResult) {
	if e.bus == nil {
		return
	}
	kind := events.KindGatePassed
	if !gr.Passed {
		kind = events.KindGateFailed
	}
	e.bus.Publish(events.Event{
		Kind:    events.KindGateExecuted,
		Payload: map[string]any{"gate": spec.Name, "passed": gr.Passed, "exit_code": gr.ExitCode},
	})
	e.bus.Publish(events.Event{
		Kind:    kind,
		Payload: map[string]any{"gate": spec.Name},
	})
}
