package orchestrator

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/randalmurphal/governor/internal/artifact"
	"github.com/randalmurphal/governor/internal/engine"
	"github.com/randalmurphal/governor/internal/errs"
	"github.com/randalmurphal/governor/internal/events"
	"github.com/randalmurphal/governor/internal/gate"
	"github.com/randalmurphal/governor/internal/governance"
	"github.com/randalmurphal/governor/internal/hosting"
	"github.com/randalmurphal/governor/internal/store"
	"github.com/randalmurphal/governor/internal/vcs"
)

// CoderState names the coder loop's states (spec.md §4.8's state
// machine diagram).
type CoderState string

const (
	CoderIdle       CoderState = "idle"
	CoderSelecting  CoderState = "selecting"
	CoderExecuting  CoderState = "executing"
	CoderCommitting CoderState = "committing"
	CoderPaused     CoderState = "paused"
)

const coderInstruction = "You are the Coder. Implement the task below against the sandboxed working tree, then stop.\n\n"

// Coder drives the per-project coder loop: select the next APPROVED
// task with satisfied dependencies, execute it under sandbox, run its
// gates, and commit on success (spec.md §4.8).
type Coder struct {
	db         *store.DB
	artifacts  *artifact.Store
	gov        *governance.Service
	gateRun    *gate.Evaluator
	vcsAdapter *vcs.Adapter
	bus        *events.Bus

	hostingProvider hosting.Provider // optional; nil skips PR creation entirely
	hostingOwner    string
	hostingRepo     string
	hostingBase     string

	mu    sync.Mutex
	state map[string]CoderState // projectID -> state, for observability
}

// NewCoder creates a Coder.
func NewCoder(db *store.DB, artifacts *artifact.Store, gov *governance.Service, gateRun *gate.Evaluator, vcsAdapter *vcs.Adapter, bus *events.Bus) *Coder {
	return &Coder{db: db, artifacts: artifacts, gov: gov, gateRun: gateRun, vcsAdapter: vcsAdapter, bus: bus, state: make(map[string]CoderState)}
}

// WithHosting attaches an optional PR-creation adapter: after a
// successful coder commit, the Coder opens a pull request for
// owner/repo targeting base. Disabled by default (provider nil).
func (c *Coder) WithHosting(provider hosting.Provider, owner, repo, base string) *Coder {
	c.hostingProvider = provider
	c.hostingOwner = owner
	c.hostingRepo = repo
	c.hostingBase = base
	return c
}

// State returns a project's last-observed coder loop state.
func (c *Coder) State(projectID string) CoderState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state[projectID]
}

func (c *Coder) setState(projectID string, s CoderState) {
	c.mu.Lock()
	c.state[projectID] = s
	c.mu.Unlock()
}

// Tick runs one iteration of the coder loop for projectID: it selects
// the next ready task (if any), executes it, and returns whether a
// task was found and attempted.
func (c *Coder) Tick(ctx context.Context, projectID string, eng engine.Engine, maxAttempts int) (attempted bool, err error) {
	cs, err := c.db.GetControlState(projectID)
	if err != nil {
		return false, err
	}
	if cs.Paused {
		c.setState(projectID, CoderPaused)
		return false, nil
	}

	c.setState(projectID, CoderSelecting)
	task, err := c.selectNext(projectID)
	if err != nil {
		return false, err
	}
	if task == nil {
		c.setState(projectID, CoderIdle)
		return false, nil
	}

	c.setState(projectID, CoderExecuting)
	if err := c.executeTask(ctx, projectID, task, eng, maxAttempts); err != nil {
		return true, err
	}
	c.setState(projectID, CoderIdle)
	return true, nil
}

// selectNext finds the first APPROVED task (highest priority first, ties
// going to the earliest created) for projectID whose declared
// dependencies are all COMPLETED.
func (c *Coder) selectNext(projectID string) (*store.Task, error) {
	tasks, err := c.db.ListTasks(projectID)
	if err != nil {
		return nil, err
	}

	var best *store.Task
	for _, t := range tasks {
		if t.Status != store.TaskApproved {
			continue
		}
		ready, err := c.dependenciesSatisfied(t)
		if err != nil {
			return nil, err
		}
		if !ready {
			continue
		}
		if best == nil || t.Priority > best.Priority {
			best = t
		}
	}
	return best, nil
}

func (c *Coder) dependenciesSatisfied(t *store.Task) (bool, error) {
	if t.ActiveVersionID == "" {
		return true, nil
	}
	version, err := c.db.GetTaskVersion(t.ActiveVersionID)
	if err != nil {
		return false, err
	}
	for _, depID := range version.Dependencies {
		dep, err := c.db.GetTask(depID)
		if err != nil {
			if errs.Is(err, errs.CodeNotFound) {
				continue
			}
			return false, err
		}
		if dep.Status != store.TaskCompleted {
			return false, nil
		}
	}
	return true, nil
}

// executeTask runs one coder attempt end to end: set IN_PROGRESS,
// start the engine under sandbox, persist the transcript, run gates,
// commit on all-pass, or revert/reject on failure (spec.md §4.8).
func (c *Coder) executeTask(ctx context.Context, projectID string, task *store.Task, eng engine.Engine, maxAttempts int) error {
	task.Status = store.TaskInProgress
	task.Attempts++
	if err := c.db.UpdateTask(task); err != nil {
		return err
	}
	c.publish(events.KindTaskStatusChanged, projectID, task.ID)

	version, err := c.db.GetTaskVersion(task.ActiveVersionID)
	if err != nil {
		return err
	}

	run := &store.Run{ID: uuid.NewString(), ProjectID: projectID, TaskID: task.ID, Engine: eng.Name(), Phase: store.PhaseCoder, Status: store.RunRunning}
	if err := c.db.CreateRun(run); err != nil {
		return err
	}
	c.publish(events.KindRunStarted, projectID, run.ID)
	c.publish(events.KindPhaseStarted, projectID, task.ID)

	prompt := coderInstruction + "Task: " + version.Title + "\n" + version.Description
	ch, err := eng.Start(ctx, prompt)
	if err != nil {
		return c.finishFailed(run, task, maxAttempts, "engine_start")
	}
	output, collectErr := engine.Collect(ch)
	if collectErr != nil {
		return c.finishFailed(run, task, maxAttempts, "engine_failure")
	}
	if _, err := c.artifacts.Put([]byte(output), store.ArtifactTranscript, artifact.Metadata{ProjectID: projectID, RunID: run.ID, TaskID: task.ID}); err != nil {
		return err
	}

	results, allPass := c.gateRun.RunAll(ctx, version.GateSpecs)
	if !allPass {
		_ = c.db.FinishRun(run.ID, store.RunFailure, results, "gate_failure")
		return c.revertOrReject(task, maxAttempts)
	}

	status, err := c.vcsAdapter.Status(ctx)
	var sha string
	if err == nil && status.HasChanges {
		c.setState(projectID, CoderCommitting)
		trailer := vcs.CommitTrailer{TaskID: task.ID, Version: version.Version, Phase: string(store.PhaseCoder), RunID: run.ID, Gates: summarizeGates(results)}
		files := append(append([]string{}, status.Staged...), status.Unstaged...)
		message := vcs.FormatCommitMessage(commitType(task), task.ID, version.Version, version.Title, trailer)
		sha, err = c.vcsAdapter.Commit(ctx, files, message)
		if err != nil {
			_ = c.db.FinishRun(run.ID, store.RunFailure, results, "commit_failure")
			return c.revertOrReject(task, maxAttempts)
		}
		c.publish(events.KindVCSCommitted, projectID, task.ID)
		c.openPullRequest(ctx, task, version, status.Branch)
	}

	if err := c.db.FinishRun(run.ID, store.RunSuccess, results, ""); err != nil {
		return err
	}
	c.publish(events.KindPhaseCompleted, projectID, task.ID)
	c.publish(events.KindRunEnded, projectID, run.ID)

	task.Status = store.TaskCompleted
	if task.Metadata == nil {
		task.Metadata = map[string]any{}
	}
	if sha != "" {
		task.Metadata["commit_sha"] = sha
	}
	if err := c.db.UpdateTask(task); err != nil {
		return err
	}
	c.publish(events.KindTaskStatusChanged, projectID, task.ID)
	return nil
}

func (c *Coder) finishFailed(run *store.Run, task *store.Task, maxAttempts int, reason string) error {
	_ = c.db.FinishRun(run.ID, store.RunFailure, nil, reason)
	c.publish(events.KindPhaseFailed, run.ProjectID, task.ID)
	c.publish(events.KindRunEnded, run.ProjectID, run.ID)
	return c.revertOrReject(task, maxAttempts)
}

// revertOrReject reverts a failed task to APPROVED for another attempt,
// or marks it REJECTED with reason=exhausted once attempts are spent
// (spec.md §4.8, §9's resolved exhaustion-status ambiguity).
func (c *Coder) revertOrReject(task *store.Task, maxAttempts int) error {
	if task.Attempts >= maxAttempts {
		_, err := c.gov.SetStatus(task.ID, store.TaskRejected, map[string]any{"reason": "exhausted"})
		return err
	}
	_, err := c.gov.SetStatus(task.ID, store.TaskApproved, nil)
	return err
}

// openPullRequest best-effort opens a PR for the branch a coder commit
// just landed on. Failure here never fails the coder run: PR creation
// is enrichment, not a gate (spec.md §4.5 gates remain the sole pass
// criteria for task completion).
func (c *Coder) openPullRequest(ctx context.Context, task *store.Task, version *store.TaskVersion, head string) {
	if c.hostingProvider == nil || head == "" {
		return
	}
	pr, err := c.hostingProvider.CreatePR(ctx, c.hostingOwner, c.hostingRepo, hosting.CreateOptions{
		Title: fmt.Sprintf("[%s] %s", task.ID, version.Title),
		Body:  version.Description,
		Head:  head,
		Base:  c.hostingBase,
	})
	if err != nil {
		return
	}
	if task.Metadata == nil {
		task.Metadata = map[string]any{}
	}
	task.Metadata["pull_request_url"] = pr.URL
}

func commitType(task *store.Task) string {
	if task.Metadata != nil {
		if t, ok := task.Metadata["commit_type"].(string); ok && t != "" {
			return t
		}
	}
	return "feat"
}

func summarizeGates(results []store.GateResult) string {
	passed := 0
	for _, r := range results {
		if r.Passed {
			passed++
		}
	}
	return fmt.Sprintf("%d/%d passed", passed, len(results))
}

func (c *Coder) publish(kind events.Kind, projectID, entityID string) {
	if c.bus == nil {
		return
	}
	c.bus.Publish(events.Event{Kind: kind, ProjectID: projectID, EntityID: entityID})
}
