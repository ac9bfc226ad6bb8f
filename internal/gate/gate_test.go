package gate

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/governor/internal/sandbox"
	"github.com/randalmurphal/governor/internal/store"
)

type fakeRunner struct {
	results map[string]*sandbox.Result
	errs    map[string]error
	calls   []string
}

func (f *fakeRunner) Run(ctx context.Context, name string, args ...string) (*sandbox.Result, error) {
	f.calls = append(f.calls, name)
	return f.results[name], f.errs[name]
}

func TestCanonicalize_AcceptsExitCode0Synonym(t *testing.T) {
	assert.Equal(t, CriterionExitCodeZero, Canonicalize("exit_code_0"))
	assert.Equal(t, CriterionExitCodeZero, Canonicalize("exit_code_zero"))
	assert.Equal(t, "output_contains", Canonicalize("output_contains"))
}

func TestRunAll_ExitCodeZero_Passes(t *testing.T) {
	r := &fakeRunner{results: map[string]*sandbox.Result{"go": {ExitCode: 0}}}
	e := New(r, nil)

	results, ok := e.RunAll(context.Background(), []store.GateSpec{
		{Name: "build", Command: "go", Args: []string{"build", "./..."}, PassCriteria: "exit_code_0"},
	})
	require.True(t, ok)
	assert.True(t, results[0].Passed)
}

func TestRunAll_OutputContains(t *testing.T) {
	r := &fakeRunner{results: map[string]*sandbox.Result{"go": {ExitCode: 0, Stdout: "PASS\nok  \tpkg\t0.01s"}}}
	e := New(r, nil)

	results, ok := e.RunAll(context.Background(), []store.GateSpec{
		{Name: "test", Command: "go", Args: []string{"test", "./..."}, PassCriteria: CriterionOutputContains, Expected: "ok"},
	})
	require.True(t, ok)
	assert.True(t, results[0].Passed)
}

func TestRunAll_OutputMatches(t *testing.T) {
	r := &fakeRunner{results: map[string]*sandbox.Result{"go": {ExitCode: 0, Stdout: "coverage: 87.3% of statements"}}}
	e := New(r, nil)

	results, ok := e.RunAll(context.Background(), []store.GateSpec{
		{Name: "cov", Command: "go", Args: nil, PassCriteria: CriterionOutputMatches, Expected: `coverage: \d+(\.\d+)?% `},
	})
	require.True(t, ok)
	assert.True(t, results[0].Passed)
}

func TestRunAll_StopsAtFirstFailure(t *testing.T) {
	r := &fakeRunner{results: map[string]*sandbox.Result{
		"go":  {ExitCode: 1},
		"lint": {ExitCode: 0},
	}}
	e := New(r, nil)

	results, ok := e.RunAll(context.Background(), []store.GateSpec{
		{Name: "build", Command: "go", PassCriteria: CriterionExitCodeZero},
		{Name: "lint", Command: "lint", PassCriteria: CriterionExitCodeZero},
	})
	require.False(t, ok)
	require.Len(t, results, 1)
	assert.False(t, results[0].Passed)
	assert.Equal(t, []string{"go"}, r.calls)
}
