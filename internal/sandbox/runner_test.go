package sandbox

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/governor/internal/errs"
)

func TestRun_AllowedCommandSucceeds(t *testing.T) {
	r := NewRunner(t.TempDir(), CommandPolicy{Allowed: []string{"echo"}}, nil)
	res, err := r.Run(context.Background(), "echo", "hello")
	require.NoError(t, err)
	assert.Equal(t, 0, res.ExitCode)
	assert.Contains(t, res.Stdout, "hello")
}

func TestRun_RejectsCommandNotAllowlisted(t *testing.T) {
	r := NewRunner(t.TempDir(), CommandPolicy{Allowed: []string{"echo"}}, nil)
	_, err := r.Run(context.Background(), "rm", "-rf", "/")
	require.Error(t, err)
	assert.Equal(t, errs.CodeForbidden, errs.CodeOf(err))
}

func TestRun_BlockedOverridesAllowed(t *testing.T) {
	r := NewRunner(t.TempDir(), CommandPolicy{Allowed: []string{"echo"}, Blocked: []string{"echo"}}, nil)
	_, err := r.Run(context.Background(), "echo", "hi")
	require.Error(t, err)
	assert.Equal(t, errs.CodeForbidden, errs.CodeOf(err))
}

func TestRun_TimeoutEscalatesAndClassifiesTimeout(t *testing.T) {
	r := NewRunner(t.TempDir(), CommandPolicy{Allowed: []string{"sleep"}}, nil)
	r.WithGracePeriod(50 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	res, err := r.Run(ctx, "sleep", "5")
	require.Error(t, err)
	assert.Equal(t, errs.CodeTimeout, errs.CodeOf(err))
	assert.True(t, res.TimedOut)
}

func TestRun_NonZeroExitCodeCaptured(t *testing.T) {
	r := NewRunner(t.TempDir(), CommandPolicy{Allowed: []string{"false"}}, nil)
	res, err := r.Run(context.Background(), "false")
	require.NoError(t, err)
	assert.NotEqual(t, 0, res.ExitCode)
}
