package cli

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// withTestProjectRoot points the package-level projectRoot flag at a
// fresh temp directory for the duration of the test, restoring it
// afterward, matching the teacher's withPauseTestDir chdir-and-restore
// pattern but against the --project-root flag this CLI uses instead
// of a process-wide working directory.
func withTestProjectRoot(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	orig := projectRoot
	projectRoot = dir
	t.Cleanup(func() { projectRoot = orig })
	return dir
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	rootCmd.SetArgs(args)
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestInit_WritesConfigAndDatabase(t *testing.T) {
	dir := withTestProjectRoot(t)

	out, err := run(t, "init", "--engine", "claude-cli")
	require.NoError(t, err)
	assert.Contains(t, out, "initialized governor project")

	assert.FileExists(t, dir+"/.governor/config.yaml")
	assert.FileExists(t, dir+"/.governor/governor.db")

	_, err = run(t, "init")
	assert.Error(t, err)
}

func TestProjectCreateAndList(t *testing.T) {
	withTestProjectRoot(t)

	_, err := run(t, "project", "create", "widgets")
	require.NoError(t, err)

	out, err := run(t, "project", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "widgets")
}

func TestTaskNewRequiresProjectAndTitle(t *testing.T) {
	withTestProjectRoot(t)

	_, err := run(t, "task", "new")
	assert.Error(t, err)
}

func TestTaskNewUnderExistingProject(t *testing.T) {
	withTestProjectRoot(t)

	_, err := run(t, "project", "create", "widgets")
	require.NoError(t, err)

	out, err := run(t, "project", "list")
	require.NoError(t, err)
	projectID := strings.Fields(out)[0]

	out, err = run(t, "task", "new", projectID, "add logging")
	require.NoError(t, err)
	assert.Contains(t, out, "v1")
}

func TestCRSplit_RequiresAtLeastTwoChildren(t *testing.T) {
	withTestProjectRoot(t)

	_, err := run(t, "project", "create", "widgets")
	require.NoError(t, err)
	out, err := run(t, "project", "list")
	require.NoError(t, err)
	projectID := strings.Fields(out)[0]

	out, err = run(t, "task", "new", projectID, "big task")
	require.NoError(t, err)
	taskID := strings.Fields(out)[2]

	_, err = run(t, "cr", "split", projectID, taskID, "only one child")
	assert.Error(t, err)
}

func TestControlPauseAndContinue(t *testing.T) {
	withTestProjectRoot(t)

	_, err := run(t, "project", "create", "widgets")
	require.NoError(t, err)
	out, err := run(t, "project", "list")
	require.NoError(t, err)
	projectID := strings.Fields(out)[0]

	out, err = run(t, "control", "pause", projectID)
	require.NoError(t, err)
	assert.Contains(t, out, "paused")

	out, err = run(t, "control", "continue", projectID)
	require.NoError(t, err)
	assert.Contains(t, out, "resumed")
}
