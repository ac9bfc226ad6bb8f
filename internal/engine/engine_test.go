package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/governor/internal/errs"
	"github.com/randalmurphal/governor/internal/sandbox"
)

type fakeRunner struct {
	res *sandbox.Result
	err error
}

func (f *fakeRunner) Run(ctx context.Context, name string, args ...string) (*sandbox.Result, error) {
	return f.res, f.err
}

func TestCLIEngine_StartCollectsOutput(t *testing.T) {
	r := &fakeRunner{res: &sandbox.Result{ExitCode: 0, Stdout: "plan produced"}}
	e := NewCLIEngine("planner-cli", "planner", nil, r, nil)

	ch, err := e.Start(context.Background(), "plan the next task")
	require.NoError(t, err)

	out, collectErr := Collect(ch)
	require.NoError(t, collectErr)
	assert.Equal(t, "plan produced", out)
	assert.Equal(t, "planner-cli", e.Name())
}

func TestCLIEngine_NonZeroExitIsEngineFailure(t *testing.T) {
	r := &fakeRunner{res: &sandbox.Result{ExitCode: 1, Stderr: "boom"}}
	e := NewCLIEngine("planner-cli", "planner", nil, r, nil)

	ch, err := e.Start(context.Background(), "plan")
	require.NoError(t, err)

	_, collectErr := Collect(ch)
	require.Error(t, collectErr)
	assert.Equal(t, errs.CodeEngineFailure, errs.CodeOf(collectErr))
}

func TestNoEngine_StartReturnsEmptyClosedStream(t *testing.T) {
	var e NoEngine
	ch, err := e.Start(context.Background(), "anything")
	require.NoError(t, err)

	out, collectErr := Collect(ch)
	require.NoError(t, collectErr)
	assert.Empty(t, out)
	assert.Equal(t, "none", e.Name())
}
