package store

import (
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "governor.db")
	db, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestProjectCRUD(t *testing.T) {
	db := newTestDB(t)

	p := &Project{ID: uuid.NewString(), Name: "demo", Root: "/tmp/demo", CurrentPhase: PhaseNone}
	require.NoError(t, db.CreateProject(p))

	got, err := db.GetProjectByName("demo")
	require.NoError(t, err)
	assert.Equal(t, p.ID, got.ID)

	got.DefaultEngine = "claude"
	require.NoError(t, db.UpdateProject(got))

	reloaded, err := db.GetProject(p.ID)
	require.NoError(t, err)
	assert.Equal(t, "claude", reloaded.DefaultEngine)

	list, err := db.ListProjects()
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, db.DeleteProject(p.ID))
	_, err = db.GetProject(p.ID)
	assert.Error(t, err)
}

func TestProjectCreate_DuplicateNameConflict(t *testing.T) {
	db := newTestDB(t)
	p := &Project{ID: uuid.NewString(), Name: "demo", Root: "/tmp/demo"}
	require.NoError(t, db.CreateProject(p))

	dupe := &Project{ID: uuid.NewString(), Name: "demo", Root: "/tmp/demo2"}
	err := db.CreateProject(dupe)
	require.Error(t, err)
}

func TestTaskAndVersionLifecycle(t *testing.T) {
	db := newTestDB(t)
	p := &Project{ID: uuid.NewString(), Name: "demo", Root: "/tmp/demo"}
	require.NoError(t, db.CreateProject(p))

	task := &Task{ID: uuid.NewString(), ProjectID: p.ID, Title: "add feature", Status: TaskPending}
	tx, err := db.SQL().Begin()
	require.NoError(t, err)
	require.NoError(t, CreateTaskTx(tx, task))
	require.NoError(t, tx.Commit())

	tx, err = db.SQL().Begin()
	require.NoError(t, err)
	v1num, err := NextVersionTx(tx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, v1num)

	v1 := &TaskVersion{ID: uuid.NewString(), TaskID: task.ID, Version: v1num, Title: task.Title}
	require.NoError(t, CreateTaskVersionTx(tx, v1))
	require.NoError(t, tx.Commit())

	tx, err = db.SQL().Begin()
	require.NoError(t, err)
	v2num, err := NextVersionTx(tx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, v2num)
	v2 := &TaskVersion{ID: uuid.NewString(), TaskID: task.ID, Version: v2num, Title: "add feature v2"}
	require.NoError(t, CreateTaskVersionTx(tx, v2))
	require.NoError(t, tx.Commit())

	versions, err := db.ListTaskVersions(task.ID)
	require.NoError(t, err)
	require.Len(t, versions, 2)
	assert.Equal(t, 1, versions[0].Version)
	assert.Equal(t, 2, versions[1].Version)

	// cascade delete: deleting the task removes its versions too.
	require.NoError(t, db.DeleteTask(task.ID))
	versions, err = db.ListTaskVersions(task.ID)
	require.NoError(t, err)
	assert.Empty(t, versions)
}

func TestHasSuccessfulRun(t *testing.T) {
	db := newTestDB(t)
	p := &Project{ID: uuid.NewString(), Name: "demo", Root: "/tmp/demo"}
	require.NoError(t, db.CreateProject(p))
	task := &Task{ID: uuid.NewString(), ProjectID: p.ID, Title: "t", Status: TaskPending}
	tx, err := db.SQL().Begin()
	require.NoError(t, err)
	require.NoError(t, CreateTaskTx(tx, task))
	require.NoError(t, tx.Commit())

	ok, err := db.HasSuccessfulRun(task.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	run := &Run{ID: uuid.NewString(), ProjectID: p.ID, TaskID: task.ID, Phase: PhaseCoder, Status: RunRunning}
	require.NoError(t, db.CreateRun(run))
	require.NoError(t, db.FinishRun(run.ID, RunSuccess, []GateResult{{Name: "tests", Passed: true}}, ""))

	ok, err = db.HasSuccessfulRun(task.ID)
	require.NoError(t, err)
	assert.True(t, ok)
}
