package api

import (
	"context"
	"io"

	"github.com/google/uuid"

	"github.com/randalmurphal/governor/internal/errs"
	"github.com/randalmurphal/governor/internal/governance"
	"github.com/randalmurphal/governor/internal/store"
)

func (s *service) CreateProject(ctx context.Context, req CreateProjectRequest) (*store.Project, error) {
	p := &store.Project{
		ID:            uuid.NewString(),
		Name:          req.Name,
		Root:          req.Root,
		DefaultEngine: req.DefaultEngine,
		CurrentPhase:  store.PhaseNone,
	}
	if err := s.db.CreateProject(p); err != nil {
		return nil, err
	}
	if err := s.db.EnsureControlState(p.ID, 3); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *service) GetProject(ctx context.Context, id string) (*store.Project, error) {
	return s.db.GetProject(id)
}

func (s *service) ListProjects(ctx context.Context) ([]*store.Project, error) {
	return s.db.ListProjects()
}

func (s *service) DeleteProject(ctx context.Context, id string) error {
	return s.db.DeleteProject(id)
}

func (s *service) CreateTask(ctx context.Context, req CreateTaskRequest) (*store.Task, *store.TaskVersion, error) {
	return s.gov.CreateTask(governance.CreateTaskInput{
		ProjectID:          req.ProjectID,
		Title:              req.Title,
		Description:        req.Description,
		Priority:           req.Priority,
		AcceptanceCriteria: req.AcceptanceCriteria,
		Dependencies:       req.Dependencies,
		GateSpecs:          req.GateSpecs,
	})
}

func (s *service) GetTask(ctx context.Context, id string) (*store.Task, error) {
	return s.db.GetTask(id)
}

func (s *service) ListTasks(ctx context.Context, projectID string) ([]*store.Task, error) {
	return s.db.ListTasks(projectID)
}

func (s *service) ListTaskVersions(ctx context.Context, taskID string) ([]*store.TaskVersion, error) {
	return s.db.ListTaskVersions(taskID)
}

// SplitTask proposes and submits a split ChangeRequest; applying it
// (and thereby creating the child tasks) still requires the normal
// approve-then-apply flow of spec.md §4.7.
func (s *service) SplitTask(ctx context.Context, req SplitTaskRequest) (*store.ChangeRequest, error) {
	if len(req.ChildSpecs) < 2 {
		return nil, errs.New(errs.CodeValidation, "split requires at least two child specs")
	}
	cr, err := s.gov.ProposeChangeRequest(req.ProjectID, req.TaskID, store.CRKindSplit, store.ProposedDelta{
		ChildSpecs: req.ChildSpecs,
	})
	if err != nil {
		return nil, err
	}
	return s.gov.Submit(cr.ID)
}

// MergeTasks proposes and submits a merge ChangeRequest targeting
// TargetTaskID, naming SourceIDs as the tasks it absorbs.
func (s *service) MergeTasks(ctx context.Context, req MergeTasksRequest) (*store.ChangeRequest, error) {
	if len(req.SourceIDs) < 2 {
		return nil, errs.New(errs.CodeValidation, "merge requires at least two source task ids")
	}
	cr, err := s.gov.ProposeChangeRequest(req.ProjectID, req.TargetTaskID, store.CRKindMerge, store.ProposedDelta{
		MergeTaskIDs: req.SourceIDs,
	})
	if err != nil {
		return nil, err
	}
	return s.gov.Submit(cr.ID)
}

func (s *service) CreateChangeRequest(ctx context.Context, req CreateChangeRequestRequest) (*store.ChangeRequest, error) {
	return s.gov.ProposeChangeRequest(req.ProjectID, req.TargetTaskID, req.Kind, req.Delta)
}

func (s *service) SubmitChangeRequest(ctx context.Context, id string) (*store.ChangeRequest, error) {
	return s.gov.Submit(id)
}

func (s *service) DecideChangeRequest(ctx context.Context, req DecideChangeRequestRequest) (*store.Approval, error) {
	return s.gov.Decide(req.ChangeRequestID, req.Approver, req.Decision, req.Notes)
}

func (s *service) ApplyChangeRequest(ctx context.Context, id string) (*store.TaskVersion, error) {
	return s.gov.Apply(id)
}

func (s *service) SetTaskStatus(ctx context.Context, req SetTaskStatusRequest) (*store.Task, error) {
	return s.gov.SetStatus(req.TaskID, req.Status, req.Metadata)
}

func (s *service) ListArtifacts(ctx context.Context, taskID string) ([]*store.Artifact, error) {
	return s.db.ListArtifactsForTask(taskID)
}

func (s *service) GetArtifact(ctx context.Context, id string) (*store.Artifact, error) {
	return s.db.GetArtifact(id)
}

func (s *service) DownloadArtifact(ctx context.Context, id string) (io.ReadCloser, error) {
	return s.artifacts.Open(id)
}

func (s *service) RunPlanner(ctx context.Context, req RunPhaseRequest) (*store.Run, error) {
	if s.planner == nil {
		return nil, errs.New(errs.CodeInternal, "planner not configured")
	}
	task, err := s.db.GetTask(req.TaskID)
	if err != nil {
		return nil, err
	}
	return s.planner.Run(ctx, req.ProjectID, task.Description, req.Engine)
}

func (s *service) RunArchitect(ctx context.Context, req RunPhaseRequest) (*store.Run, error) {
	if s.architect == nil {
		return nil, errs.New(errs.CodeInternal, "architect not configured")
	}
	return s.architect.Run(ctx, req.ProjectID, req.TaskID, req.Engine)
}

// RunCoder ticks the coder loop once for a project. When req.TaskID is
// set, the caller is asking for that specific task to be picked up, so
// its status is checked up front: a task not in APPROVED fails the
// boundary spec.md §8 names rather than being silently skipped by the
// loop's own selection.
func (s *service) RunCoder(ctx context.Context, req RunPhaseRequest) (bool, error) {
	if s.coder == nil {
		return false, errs.New(errs.CodeInternal, "coder not configured")
	}
	if req.TaskID != "" {
		task, err := s.db.GetTask(req.TaskID)
		if err != nil {
			return false, err
		}
		if task.Status != store.TaskApproved {
			return false, errs.Preconditions("task " + req.TaskID + " is not APPROVED")
		}
	}
	maxAttempts := req.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	return s.coder.Tick(ctx, req.ProjectID, req.Engine, maxAttempts)
}

