package orchestrator

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/randalmurphal/governor/internal/artifact"
	"github.com/randalmurphal/governor/internal/engine"
	"github.com/randalmurphal/governor/internal/errs"
	"github.com/randalmurphal/governor/internal/events"
	"github.com/randalmurphal/governor/internal/governance"
	"github.com/randalmurphal/governor/internal/store"
)

const architectInstruction = "You are the Architect. Produce a JSON object with an \"options\" array (each with id, title, pros, cons, tradeoffs) and an \"adrs\" array of markdown strings.\n\n"

// Architect runs the Architect phase for one task: it records candidate
// architecture options and ADRs and submits an update ChangeRequest
// refining the task; a new TaskVersion exists only once that request
// is approved and applied (spec.md §4.8).
type Architect struct {
	db        *store.DB
	artifacts *artifact.Store
	gov       *governance.Service
	bus       *events.Bus
}

// NewArchitect creates an Architect.
func NewArchitect(db *store.DB, artifacts *artifact.Store, gov *governance.Service, bus *events.Bus) *Architect {
	return &Architect{db: db, artifacts: artifacts, gov: gov, bus: bus}
}

// Run executes the Architect phase for taskID. The prompt given to eng
// carries only the active TaskVersion's title and description; plan,
// spec and prior ADR artifacts are not included.
func (a *Architect) Run(ctx context.Context, projectID, taskID string, eng engine.Engine) (*store.Run, error) {
	task, err := a.db.GetTask(taskID)
	if err != nil {
		return nil, err
	}
	version, err := a.db.GetTaskVersion(task.ActiveVersionID)
	if err != nil {
		return nil, err
	}

	run := &store.Run{ID: uuid.NewString(), ProjectID: projectID, TaskID: taskID, Engine: eng.Name(), Phase: store.PhaseArchitect, Status: store.RunRunning}
	if err := a.db.CreateRun(run); err != nil {
		return nil, err
	}
	a.publish(events.KindRunStarted, projectID, run.ID)
	a.publish(events.KindPhaseStarted, projectID, taskID)

	prompt := architectInstruction + "Task: " + version.Title + "\n" + version.Description
	ch, err := eng.Start(ctx, prompt)
	if err != nil {
		return a.fail(run, "engine_start", err)
	}
	output, err := engine.Collect(ch)
	if err != nil {
		return a.fail(run, "engine_failure", err)
	}

	if _, err := a.artifacts.Put([]byte(output), store.ArtifactTranscript, artifact.Metadata{ProjectID: projectID, RunID: run.ID, TaskID: taskID}); err != nil {
		return nil, err
	}

	arch, ok := ParseArchitecture(output)
	if !ok {
		return a.fail(run, "architecture_parse", errs.New(errs.CodeParse, "architect output did not contain a parseable options array"))
	}

	// Each ADR is an independent content-addressed artifact, so they
	// persist concurrently rather than one at a time.
	var g errgroup.Group
	for i, adr := range arch.ADRs {
		i, adr := i, adr
		g.Go(func() error {
			meta := artifact.Metadata{ProjectID: projectID, RunID: run.ID, TaskID: taskID}
			if _, err := a.artifacts.Put([]byte(adr), store.ArtifactADR, meta); err != nil {
				return errs.Wrap(errs.CodeStorage, "persist adr "+strconv.Itoa(i), err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	archJSON, err := json.Marshal(arch)
	if err != nil {
		return nil, errs.Wrap(errs.CodeInternal, "marshal architecture artifact", err)
	}
	if _, err := a.artifacts.Put(archJSON, store.ArtifactArchitecture, artifact.Metadata{ProjectID: projectID, RunID: run.ID, TaskID: taskID}); err != nil {
		return nil, err
	}

	cr, err := a.gov.ProposeChangeRequest(projectID, taskID, store.CRKindUpdate, store.ProposedDelta{
		Description: strings.TrimSpace(version.Description + "\n\n" + summarizeOptions(arch)),
	})
	if err != nil {
		return nil, err
	}
	if _, err := a.gov.Submit(cr.ID); err != nil {
		return nil, err
	}

	if err := a.db.FinishRun(run.ID, store.RunSuccess, nil, ""); err != nil {
		return nil, err
	}
	run.Status = store.RunSuccess
	a.publish(events.KindPhaseCompleted, projectID, taskID)
	a.publish(events.KindRunEnded, projectID, run.ID)
	return run, nil
}

func summarizeOptions(arch ParsedArchitecture) string {
	var b strings.Builder
	b.WriteString("Architecture options:\n")
	for _, o := range arch.Options {
		b.WriteString("- " + o.Title + "\n")
	}
	return b.String()
}

func (a *Architect) fail(run *store.Run, reason string, cause error) (*store.Run, error) {
	_ = a.db.FinishRun(run.ID, store.RunFailure, nil, reason)
	run.Status = store.RunFailure
	run.Error = reason
	a.publish(events.KindPhaseFailed, run.ProjectID, run.TaskID)
	a.publish(events.KindRunEnded, run.ProjectID, run.ID)
	return run, cause
}

func (a *Architect) publish(kind events.Kind, projectID, entityID string) {
	if a.bus == nil {
		return
	}
	a.bus.Publish(events.Event{Kind: kind, ProjectID: projectID, EntityID: entityID})
}
