package api

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/governor/internal/artifact"
	"github.com/randalmurphal/governor/internal/errs"
	"github.com/randalmurphal/governor/internal/events"
	"github.com/randalmurphal/governor/internal/gate"
	"github.com/randalmurphal/governor/internal/governance"
	"github.com/randalmurphal/governor/internal/orchestrator"
	"github.com/randalmurphal/governor/internal/sandbox"
	"github.com/randalmurphal/governor/internal/store"
	"github.com/randalmurphal/governor/internal/vcs"
)

func newTestService(t *testing.T) Service {
	t.Helper()
	db, err := store.Open(t.TempDir() + "/governor.db")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	gov := governance.New(db, nil)
	artifacts := artifact.New(t.TempDir(), db)
	return New(db, artifacts, gov, nil, nil, nil, nil)
}

func TestCreateProject_PersistsProject(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	p, err := svc.CreateProject(ctx, CreateProjectRequest{Name: "widgets", Root: "/tmp/widgets", DefaultEngine: "cli"})
	require.NoError(t, err)
	assert.NotEmpty(t, p.ID)

	got, err := svc.GetProject(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "widgets", got.Name)
}

func TestCreateTask_CreatesVersionOneAndListsIt(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	p, err := svc.CreateProject(ctx, CreateProjectRequest{Name: "widgets"})
	require.NoError(t, err)

	task, version, err := svc.CreateTask(ctx, CreateTaskRequest{ProjectID: p.ID, Title: "add logging"})
	require.NoError(t, err)
	assert.Equal(t, 1, version.Version)

	versions, err := svc.ListTaskVersions(ctx, task.ID)
	require.NoError(t, err)
	assert.Len(t, versions, 1)

	tasks, err := svc.ListTasks(ctx, p.ID)
	require.NoError(t, err)
	assert.Len(t, tasks, 1)
}

func TestSplitTask_RequiresAtLeastTwoChildSpecs(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	p, err := svc.CreateProject(ctx, CreateProjectRequest{Name: "widgets"})
	require.NoError(t, err)
	task, _, err := svc.CreateTask(ctx, CreateTaskRequest{ProjectID: p.ID, Title: "big task"})
	require.NoError(t, err)

	_, err = svc.SplitTask(ctx, SplitTaskRequest{
		ProjectID:  p.ID,
		TaskID:     task.ID,
		ChildSpecs: []store.ChildSpec{{Title: "part one"}},
	})
	assert.Error(t, err)
}

func TestSplitTask_SubmitsChangeRequestForApproval(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	p, err := svc.CreateProject(ctx, CreateProjectRequest{Name: "widgets"})
	require.NoError(t, err)
	task, _, err := svc.CreateTask(ctx, CreateTaskRequest{ProjectID: p.ID, Title: "big task"})
	require.NoError(t, err)

	cr, err := svc.SplitTask(ctx, SplitTaskRequest{
		ProjectID: p.ID,
		TaskID:    task.ID,
		ChildSpecs: []store.ChildSpec{
			{Title: "part one"},
			{Title: "part two"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, store.CRSubmitted, cr.Status)
	assert.Equal(t, store.CRKindSplit, cr.Kind)
}

func TestPauseAndContinue_ToggleControlState(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	p, err := svc.CreateProject(ctx, CreateProjectRequest{Name: "widgets"})
	require.NoError(t, err)

	require.NoError(t, svc.Pause(ctx, p.ID))
	require.NoError(t, svc.SetLimits(ctx, p.ID, 7))
	require.NoError(t, svc.Continue(ctx, p.ID))
}

func TestRunPlanner_WithoutPlannerConfigured_Errors(t *testing.T) {
	svc := newTestService(t)
	_, err := svc.RunPlanner(context.Background(), RunPhaseRequest{})
	assert.Error(t, err)
}

func TestVCSStatus_WithoutAdapterConfigured_Errors(t *testing.T) {
	svc := newTestService(t)
	_, err := svc.VCSStatus(context.Background())
	assert.Error(t, err)
}

func TestRunCoder_TargetingTaskNotApproved_ReturnsPreconditions(t *testing.T) {
	db, err := store.Open(t.TempDir() + "/governor.db")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.CreateProject(&store.Project{ID: "p1", Name: "widgets"}))
	require.NoError(t, db.EnsureControlState("p1", 3))

	gov := governance.New(db, nil)
	artifacts := artifact.New(t.TempDir(), db)
	bus := events.New()
	runner := sandbox.NewRunner(t.TempDir(), sandbox.CommandPolicy{}, bus)
	coder := orchestrator.NewCoder(db, artifacts, gov, gate.New(runner, bus), vcs.New(runner), bus)

	svc := New(db, artifacts, gov, nil, nil, coder, nil)
	ctx := context.Background()

	task, _, err := svc.CreateTask(ctx, CreateTaskRequest{ProjectID: "p1", Title: "still pending"})
	require.NoError(t, err)

	attempted, err := svc.RunCoder(ctx, RunPhaseRequest{ProjectID: "p1", TaskID: task.ID})
	assert.False(t, attempted)
	require.Error(t, err)
	var govErr *errs.Error
	require.ErrorAs(t, err, &govErr)
	assert.Equal(t, errs.CodePreconditions, govErr.Code)
}
