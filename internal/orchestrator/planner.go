package orchestrator

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/randalmurphal/governor/internal/artifact"
	"github.com/randalmurphal/governor/internal/engine"
	"github.com/randalmurphal/governor/internal/errs"
	"github.com/randalmurphal/governor/internal/events"
	"github.com/randalmurphal/governor/internal/governance"
	"github.com/randalmurphal/governor/internal/store"
)

// plannerInstruction is prepended to the spec content before the
// engine session starts. It is deliberately minimal: the engine's own
// system prompt, not governor, carries the bulk of the planning
// instructions.
const plannerInstruction = "You are the Planner. Produce a JSON object with a \"tasks\" array; each task has title, description, priority, acceptance_criteria, dependencies, and gates.\n\n"

// Planner runs the Planner phase for a project: it turns spec content
// into an initial set of PENDING tasks (spec.md §4.8).
type Planner struct {
	db        *store.DB
	artifacts *artifact.Store
	gov       *governance.Service
	bus       *events.Bus
}

// NewPlanner creates a Planner.
func NewPlanner(db *store.DB, artifacts *artifact.Store, gov *governance.Service, bus *events.Bus) *Planner {
	return &Planner{db: db, artifacts: artifacts, gov: gov, bus: bus}
}

// Run executes the Planner phase against specContent using eng,
// persisting the spec, transcript, and plan as artifacts and creating
// one Task+TaskVersion per parsed entry.
func (p *Planner) Run(ctx context.Context, projectID string, specContent string, eng engine.Engine) (*store.Run, error) {
	if _, err := p.artifacts.Put([]byte(specContent), store.ArtifactSpec, artifact.Metadata{ProjectID: projectID}); err != nil {
		return nil, err
	}

	run := &store.Run{ID: uuid.NewString(), ProjectID: projectID, Engine: eng.Name(), Phase: store.PhasePlanner, Status: store.RunRunning}
	if err := p.db.CreateRun(run); err != nil {
		return nil, err
	}
	p.publish(events.KindRunStarted, projectID, run.ID)
	p.publish(events.KindPhaseStarted, projectID, run.ID)

	ch, err := eng.Start(ctx, plannerInstruction+specContent)
	if err != nil {
		return p.fail(run, "engine_start", err)
	}
	output, err := engine.Collect(ch)
	if err != nil {
		return p.fail(run, "engine_failure", err)
	}

	if _, err := p.artifacts.Put([]byte(output), store.ArtifactTranscript, artifact.Metadata{ProjectID: projectID, RunID: run.ID}); err != nil {
		return nil, err
	}

	plan, ok := ParsePlan(output)
	if !ok {
		return p.fail(run, "plan_parse", errs.New(errs.CodeParse, "planner output did not contain a parseable tasks array"))
	}

	for _, entry := range plan.Tasks {
		if _, _, err := p.gov.CreateTask(governance.CreateTaskInput{
			ProjectID:          projectID,
			Title:              entry.Title,
			Description:        entry.Description,
			Priority:           entry.Priority,
			AcceptanceCriteria: entry.AcceptanceCriteria,
			Dependencies:       entry.Dependencies,
			GateSpecs:          entry.GateSpecs,
			Phase:              store.PhasePlanner,
		}); err != nil {
			return p.fail(run, "task_create", err)
		}
	}

	planJSON, err := json.Marshal(plan)
	if err != nil {
		return nil, errs.Wrap(errs.CodeInternal, "marshal plan artifact", err)
	}
	if _, err := p.artifacts.Put(planJSON, store.ArtifactPlan, artifact.Metadata{ProjectID: projectID, RunID: run.ID}); err != nil {
		return nil, err
	}

	if err := p.db.FinishRun(run.ID, store.RunSuccess, nil, ""); err != nil {
		return nil, err
	}
	run.Status = store.RunSuccess
	p.publish(events.KindPhaseCompleted, projectID, run.ID)
	p.publish(events.KindRunEnded, projectID, run.ID)
	return run, nil
}

func (p *Planner) fail(run *store.Run, reason string, cause error) (*store.Run, error) {
	_ = p.db.FinishRun(run.ID, store.RunFailure, nil, reason)
	run.Status = store.RunFailure
	run.Error = reason
	p.publish(events.KindPhaseFailed, run.ProjectID, run.ID)
	p.publish(events.KindRunEnded, run.ProjectID, run.ID)
	return run, cause
}

func (p *Planner) publish(kind events.Kind, projectID, entityID string) {
	if p.bus == nil {
		return
	}
	p.bus.Publish(events.Event{Kind: kind, ProjectID: projectID, EntityID: entityID})
}
