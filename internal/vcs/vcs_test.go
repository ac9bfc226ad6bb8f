package vcs

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/governor/internal/sandbox"
)

type fakeRunner struct {
	byArgs map[string]*sandbox.Result
}

func key(args []string) string {
	out := ""
	for _, a := range args {
		out += a + "|"
	}
	return out
}

func (f *fakeRunner) Run(ctx context.Context, name string, args ...string) (*sandbox.Result, error) {
	if res, ok := f.byArgs[key(args)]; ok {
		return res, nil
	}
	return &sandbox.Result{ExitCode: 1, Stderr: "unexpected invocation: " + key(args)}, nil
}

func TestIsRepo_TrueWhenInsideWorkTree(t *testing.T) {
	r := &fakeRunner{byArgs: map[string]*sandbox.Result{
		key([]string{"rev-parse", "--is-inside-work-tree"}): {ExitCode: 0, Stdout: "true\n"},
	}}
	a := New(r)
	ok, err := a.IsRepo(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCommit_StagesThenCommitsThenReadsSHA(t *testing.T) {
	r := &fakeRunner{byArgs: map[string]*sandbox.Result{
		key([]string{"add", "--", "main.go"}):  {ExitCode: 0},
		key([]string{"commit", "-m", "feat: x"}): {ExitCode: 0},
		key([]string{"rev-parse", "HEAD"}):       {ExitCode: 0, Stdout: "abc123\n"},
	}}
	a := New(r)

	sha, err := a.Commit(context.Background(), []string{"main.go"}, "feat: x")
	require.NoError(t, err)
	assert.Equal(t, "abc123", sha)
}

func TestCommit_RequiresAtLeastOneFile(t *testing.T) {
	a := New(&fakeRunner{byArgs: map[string]*sandbox.Result{}})
	_, err := a.Commit(context.Background(), nil, "feat: x")
	assert.Error(t, err)
}

func TestFormatCommitMessage_MatchesStructuredFormat(t *testing.T) {
	msg := FormatCommitMessage("", "t1", 3, "add retry logic", CommitTrailer{
		TaskID: "t1", Phase: "coder", RunID: "r1", Gates: "2/2 passed", Approver: "reviewer1",
	})
	assert.Contains(t, msg, "feat(task-t1 v3): add retry logic")
	assert.Contains(t, msg, "Task-Id: t1")
	assert.Contains(t, msg, "Run-Id: r1")
	assert.Contains(t, msg, "Gates: 2/2 passed")
	assert.Contains(t, msg, "Approver: reviewer1")
}
