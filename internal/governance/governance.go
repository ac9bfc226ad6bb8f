// Package governance implements the Task/TaskVersion/ChangeRequest/
// Approval lifecycle (spec.md §5): creating and updating tasks,
// proposing and deciding change requests, and applying an approved
// change request's delta — including split and merge — as one atomic
// version bump.
package governance

import (
	"database/sql"
	"sync"

	"github.com/google/uuid"

	"github.com/randalmurphal/governor/internal/errs"
	"github.com/randalmurphal/governor/internal/events"
	"github.com/randalmurphal/governor/internal/store"
)

// Service mediates every mutation to a project's tasks, versions,
// change requests, and approvals, serializing per-task mutations
// through an in-process lock so version numbering stays gap-free even
// under concurrent callers (spec.md §5's Task invariant).
type Service struct {
	db  *store.DB
	bus *events.Bus

	mu    sync.Mutex
	locks map[string]*sync.Mutex // taskID -> lock, never evicted (see taskLock)
}

// New creates a governance Service backed by db, publishing lifecycle
// events to bus (which may be nil).
func New(db *store.DB, bus *events.Bus) *Service {
	return &Service{db: db, bus: bus, locks: make(map[string]*sync.Mutex)}
}

// taskLock returns the mutex guarding taskID's version numbering,
// creating it on first use. Locks are never evicted: the teacher's PID
// guard is similarly long-lived for the process lifetime, and a
// per-task mutex is cheap enough that churn isn't a concern here.
func (s *Service) taskLock(taskID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[taskID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[taskID] = l
	}
	return l
}

// CreateTaskInput describes a new task and its initial version content.
type CreateTaskInput struct {
	ProjectID          string
	Title              string
	Description        string
	Priority           int
	AcceptanceCriteria []string
	Dependencies       []string
	GateSpecs          []store.GateSpec
	Phase              store.Phase
}

// CreateTask creates a Task and its version-1 TaskVersion atomically.
func (s *Service) CreateTask(in CreateTaskInput) (*store.Task, *store.TaskVersion, error) {
	if in.Title == "" {
		return nil, nil, errs.New(errs.CodeValidation, "task title is required")
	}

	tx, err := s.db.SQL().Begin()
	if err != nil {
		return nil, nil, errs.Wrap(errs.CodeStorage, "begin create-task transaction", err)
	}
	defer tx.Rollback()

	taskID := uuid.NewString()
	versionID := uuid.NewString()

	t := &store.Task{
		ID:           taskID,
		ProjectID:    in.ProjectID,
		Title:        in.Title,
		Description:  in.Description,
		Priority:     in.Priority,
		Status:       store.TaskPending,
		CurrentPhase: in.Phase,
		Metadata:     map[string]any{},
	}
	if err := store.CreateTaskTx(tx, t); err != nil {
		return nil, nil, err
	}

	v := &store.TaskVersion{
		ID:                 versionID,
		TaskID:             taskID,
		Version:            1,
		Title:              in.Title,
		Description:        in.Description,
		AcceptanceCriteria: in.AcceptanceCriteria,
		Dependencies:       in.Dependencies,
		GateSpecs:          in.GateSpecs,
		PhaseAtCreation:    in.Phase,
	}
	if err := store.CreateTaskVersionTx(tx, v); err != nil {
		return nil, nil, err
	}

	t.ActiveVersionID = versionID
	if err := updateActiveVersionTx(tx, taskID, versionID); err != nil {
		return nil, nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, errs.Wrap(errs.CodeStorage, "commit create-task transaction", err)
	}

	s.publish(events.KindTaskCreated, in.ProjectID, taskID, 1)
	s.publish(events.KindTaskVersionCreated, in.ProjectID, taskID, 1)
	return t, v, nil
}

// ProposeChangeRequest records a draft ChangeRequest against an
// existing task. It does not mutate the task: only Apply (after
// approval) does.
func (s *Service) ProposeChangeRequest(projectID, targetTaskID string, kind store.ChangeRequestKind, delta store.ProposedDelta) (*store.ChangeRequest, error) {
	if _, err := s.db.GetTask(targetTaskID); err != nil {
		return nil, err
	}
	if kind == store.CRKindSplit && len(delta.ChildSpecs) < 2 {
		return nil, errs.New(errs.CodeValidation, "a split requires at least two child specs")
	}
	if kind == store.CRKindMerge && len(delta.MergeTaskIDs) < 2 {
		return nil, errs.New(errs.CodeValidation, "a merge requires at least two source task ids")
	}

	cr := &store.ChangeRequest{
		ID:            uuid.NewString(),
		ProjectID:     projectID,
		TargetTaskID:  targetTaskID,
		Kind:          kind,
		Status:        store.CRDraft,
		ProposedDelta: delta,
	}
	if err := s.db.CreateChangeRequest(cr); err != nil {
		return nil, err
	}
	s.publish(events.KindChangeRequestCreated, projectID, cr.ID, 0)
	return cr, nil
}

// Submit transitions a draft ChangeRequest to submitted, making it
// eligible for approval decisions.
func (s *Service) Submit(crID string) (*store.ChangeRequest, error) {
	cr, err := s.db.GetChangeRequest(crID)
	if err != nil {
		return nil, err
	}
	if cr.Status != store.CRDraft {
		return nil, errs.Conflict("change request " + crID + " is not in draft status")
	}
	if err := s.setStatus(crID, store.CRSubmitted); err != nil {
		return nil, err
	}
	cr.Status = store.CRSubmitted
	s.publish(events.KindChangeRequestSubmitted, cr.ProjectID, cr.ID, 0)
	return cr, nil
}

// Decide records an Approval against a submitted ChangeRequest and, on
// approval, marks the request approved — it does not apply the delta;
// call Apply separately so the caller can gate application on further
// preconditions (e.g. all gates currently passing).
func (s *Service) Decide(crID, approver string, decision store.ApprovalDecision, notes string) (*store.Approval, error) {
	tx, err := s.db.SQL().Begin()
	if err != nil {
		return nil, errs.Wrap(errs.CodeStorage, "begin decide transaction", err)
	}
	defer tx.Rollback()

	cr, err := store.GetChangeRequestTx(tx, crID)
	if err != nil {
		return nil, err
	}
	if cr.Status != store.CRSubmitted {
		return nil, errs.Conflict("change request " + crID + " is not awaiting a decision")
	}

	a := &store.Approval{
		ID:              uuid.NewString(),
		ProjectID:       cr.ProjectID,
		ChangeRequestID: crID,
		Approver:        approver,
		Decision:        decision,
		Notes:           notes,
	}
	if err := store.CreateApprovalTx(tx, a); err != nil {
		return nil, err
	}

	newStatus := store.CRRejected
	if decision == store.DecisionApprove {
		newStatus = store.CRApproved
	}
	if err := store.UpdateChangeRequestStatusTx(tx, crID, newStatus); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, errs.Wrap(errs.CodeStorage, "commit decide transaction", err)
	}

	kind := events.KindChangeRequestRejected
	if decision == store.DecisionApprove {
		kind = events.KindChangeRequestApproved
	}
	s.publish(kind, cr.ProjectID, crID, 0)
	s.publish(events.KindApprovalRecorded, cr.ProjectID, a.ID, 0)
	return a, nil
}

// Apply applies an approved ChangeRequest's delta to its target task,
// producing a new gap-free TaskVersion. Split and merge both require
// an approved ChangeRequest of the matching kind (spec.md §5 invariant:
// "Split/Merge requires an approved ChangeRequest").
func (s *Service) Apply(crID string) (*store.TaskVersion, error) {
	cr, err := s.db.GetChangeRequest(crID)
	if err != nil {
		return nil, err
	}
	if cr.Status != store.CRApproved {
		return nil, errs.Conflict("change request " + crID + " is not approved")
	}

	lock := s.taskLock(cr.TargetTaskID)
	lock.Lock()
	defer lock.Unlock()

	tx, err := s.db.SQL().Begin()
	if err != nil {
		return nil, errs.Wrap(errs.CodeStorage, "begin apply transaction", err)
	}
	defer tx.Rollback()

	task, err := s.db.GetTask(cr.TargetTaskID)
	if err != nil {
		return nil, err
	}

	nextVersion, err := store.NextVersionTx(tx, cr.TargetTaskID)
	if err != nil {
		return nil, err
	}

	delta := cr.ProposedDelta
	v := &store.TaskVersion{
		ID:                 uuid.NewString(),
		TaskID:             cr.TargetTaskID,
		Version:            nextVersion,
		Title:              coalesce(delta.Title, task.Title),
		Description:        coalesce(delta.Description, task.Description),
		Dependencies:       delta.Dependencies,
		GateSpecs:          delta.GateSpecs,
		PhaseAtCreation:    task.CurrentPhase,
	}
	if err := store.CreateTaskVersionTx(tx, v); err != nil {
		return nil, err
	}
	if err := updateActiveVersionTx(tx, cr.TargetTaskID, v.ID); err != nil {
		return nil, err
	}
	if err := store.UpdateChangeRequestStatusTx(tx, crID, store.CRImplemented); err != nil {
		return nil, err
	}

	if cr.Kind == store.CRKindSplit {
		childIDs := make([]string, 0, len(delta.ChildSpecs))
		for _, child := range delta.ChildSpecs {
			childID := uuid.NewString()
			ct := &store.Task{
				ID:           childID,
				ProjectID:    cr.ProjectID,
				Title:        child.Title,
				Description:  child.Description,
				Status:       store.TaskPending,
				CurrentPhase: task.CurrentPhase,
				Metadata:     map[string]any{"split_from": cr.TargetTaskID},
			}
			if err := store.CreateTaskTx(tx, ct); err != nil {
				return nil, err
			}
			cv := &store.TaskVersion{
				ID:                 uuid.NewString(),
				TaskID:             childID,
				Version:            1,
				Title:              child.Title,
				Description:        child.Description,
				AcceptanceCriteria: child.AcceptanceCriteria,
				GateSpecs:          child.GateSpecs,
				PhaseAtCreation:    task.CurrentPhase,
			}
			if err := store.CreateTaskVersionTx(tx, cv); err != nil {
				return nil, err
			}
			if err := updateActiveVersionTx(tx, childID, cv.ID); err != nil {
				return nil, err
			}
			childIDs = append(childIDs, childID)
		}

		// The original task is superseded by its children (spec.md §4.7,
		// scenario S2): it stops accepting further work rather than
		// coexisting with the tasks that replaced it.
		sourceMeta := mergeMetadata(task.Metadata, map[string]any{"superseded_by": childIDs})
		if err := store.UpdateTaskStatusTx(tx, cr.TargetTaskID, store.TaskCancelled, sourceMeta); err != nil {
			return nil, err
		}
	}

	if cr.Kind == store.CRKindMerge {
		// The target task absorbs the merge: it already received the new
		// TaskVersion above, so here we just record provenance and retire
		// the tasks it absorbed (spec.md §4.7).
		targetMeta := mergeMetadata(task.Metadata, map[string]any{"merged_from": delta.MergeTaskIDs})
		if err := store.UpdateTaskStatusTx(tx, cr.TargetTaskID, task.Status, targetMeta); err != nil {
			return nil, err
		}
		for _, sourceID := range delta.MergeTaskIDs {
			source, err := s.db.GetTask(sourceID)
			if err != nil {
				return nil, err
			}
			sourceMeta := mergeMetadata(source.Metadata, map[string]any{"superseded_by": []string{cr.TargetTaskID}})
			if err := store.UpdateTaskStatusTx(tx, sourceID, store.TaskCancelled, sourceMeta); err != nil {
				return nil, err
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, errs.Wrap(errs.CodeStorage, "commit apply transaction", err)
	}

	s.publish(events.KindChangeRequestApplied, cr.ProjectID, crID, 0)
	s.publish(events.KindTaskVersionCreated, cr.ProjectID, cr.TargetTaskID, nextVersion)
	return v, nil
}

// SetStatus transitions a task's status directly, for phase-driven
// lifecycle changes outside the ChangeRequest flow (e.g. a gate
// failure moving a task back to APPROVED, or attempt exhaustion
// moving it to REJECTED with metadata.reason=exhausted).
func (s *Service) SetStatus(taskID string, status store.TaskStatus, metadata map[string]any) (*store.Task, error) {
	t, err := s.db.GetTask(taskID)
	if err != nil {
		return nil, err
	}
	t.Status = status
	if metadata != nil {
		if t.Metadata == nil {
			t.Metadata = map[string]any{}
		}
		for k, v := range metadata {
			t.Metadata[k] = v
		}
	}
	if err := s.db.UpdateTask(t); err != nil {
		return nil, err
	}
	s.publish(events.KindTaskStatusChanged, t.ProjectID, taskID, 0)
	return t, nil
}

func (s *Service) setStatus(crID string, status store.ChangeRequestStatus) error {
	tx, err := s.db.SQL().Begin()
	if err != nil {
		return errs.Wrap(errs.CodeStorage, "begin change-request status transaction", err)
	}
	defer tx.Rollback()
	if err := store.UpdateChangeRequestStatusTx(tx, crID, status); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return errs.Wrap(errs.CodeStorage, "commit change-request status transaction", err)
	}
	return nil
}

func (s *Service) publish(kind events.Kind, projectID, entityID string, version int) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(events.Event{Kind: kind, ProjectID: projectID, EntityID: entityID, Version: version})
}

func updateActiveVersionTx(tx *sql.Tx, taskID, versionID string) error {
	_, err := tx.Exec(`UPDATE tasks SET active_version_id = ? WHERE id = ?`, versionID, taskID)
	if err != nil {
		return errs.Wrap(errs.CodeStorage, "update task active version", err)
	}
	return nil
}

func coalesce(override, fallback string) string {
	if override != "" {
		return override
	}
	return fallback
}

// mergeMetadata returns a copy of base with overlay's keys applied on
// top, without mutating either argument.
func mergeMetadata(base, overlay map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(overlay))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range overlay {
		out[k] = v
	}
	return out
}
