// Package api models the programmatic surface spec.md §6 describes:
// project/task/change-request/artifact/run/VCS/control-state
// operations behind a typed Service interface. It intentionally stops
// at the transport boundary — no HTTP mux, no Connect/gRPC service,
// no protobuf — mirroring the teacher's TaskService/ProjectServer
// method shapes (internal/api/task_server.go, project_server.go)
// without their RPC plumbing, since spec.md §1 scopes the interactive
// client and its transport out of this repo.
package api

import (
	"context"
	"io"

	"github.com/randalmurphal/governor/internal/artifact"
	"github.com/randalmurphal/governor/internal/engine"
	"github.com/randalmurphal/governor/internal/governance"
	"github.com/randalmurphal/governor/internal/orchestrator"
	"github.com/randalmurphal/governor/internal/store"
	"github.com/randalmurphal/governor/internal/vcs"
)

// Service is the full programmatic surface a future transport layer
// (HTTP/Connect/websocket) would expose. Service itself never listens
// on a network; it is called directly by internal/cli today.
type Service interface {
	CreateProject(ctx context.Context, req CreateProjectRequest) (*store.Project, error)
	GetProject(ctx context.Context, id string) (*store.Project, error)
	ListProjects(ctx context.Context) ([]*store.Project, error)
	DeleteProject(ctx context.Context, id string) error

	CreateTask(ctx context.Context, req CreateTaskRequest) (*store.Task, *store.TaskVersion, error)
	GetTask(ctx context.Context, id string) (*store.Task, error)
	ListTasks(ctx context.Context, projectID string) ([]*store.Task, error)
	ListTaskVersions(ctx context.Context, taskID string) ([]*store.TaskVersion, error)

	SplitTask(ctx context.Context, req SplitTaskRequest) (*store.ChangeRequest, error)
	MergeTasks(ctx context.Context, req MergeTasksRequest) (*store.ChangeRequest, error)

	CreateChangeRequest(ctx context.Context, req CreateChangeRequestRequest) (*store.ChangeRequest, error)
	SubmitChangeRequest(ctx context.Context, id string) (*store.ChangeRequest, error)
	DecideChangeRequest(ctx context.Context, req DecideChangeRequestRequest) (*store.Approval, error)
	ApplyChangeRequest(ctx context.Context, id string) (*store.TaskVersion, error)

	SetTaskStatus(ctx context.Context, req SetTaskStatusRequest) (*store.Task, error)

	ListArtifacts(ctx context.Context, taskID string) ([]*store.Artifact, error)
	GetArtifact(ctx context.Context, id string) (*store.Artifact, error)
	DownloadArtifact(ctx context.Context, id string) (io.ReadCloser, error)

	RunPlanner(ctx context.Context, req RunPhaseRequest) (*store.Run, error)
	RunArchitect(ctx context.Context, req RunPhaseRequest) (*store.Run, error)
	RunCoder(ctx context.Context, req RunPhaseRequest) (attempted bool, err error)

	VCSStatus(ctx context.Context) (*vcs.Status, error)
	VCSInit(ctx context.Context) error
	VCSCommit(ctx context.Context, files []string, message string) (string, error)
	VCSDiff(ctx context.Context) (string, error)

	Pause(ctx context.Context, projectID string) error
	Continue(ctx context.Context, projectID string) error
	SetLimits(ctx context.Context, projectID string, maxAttempts int) error
}

// CreateProjectRequest is the input to Service.CreateProject.
type CreateProjectRequest struct {
	Name          string
	Root          string
	DefaultEngine string
}

// CreateTaskRequest is the input to Service.CreateTask, mirroring
// governance.CreateTaskInput (spec.md §3's Task/TaskVersion fields).
type CreateTaskRequest struct {
	ProjectID          string
	Title              string
	Description        string
	Priority           int
	AcceptanceCriteria []string
	Dependencies       []string
	GateSpecs          []store.GateSpec
}

// SplitTaskRequest proposes splitting a task into at least two child
// specs (spec.md §4.7's Split operation).
type SplitTaskRequest struct {
	ProjectID  string
	TaskID     string
	ChildSpecs []store.ChildSpec
}

// MergeTasksRequest proposes merging at least two source tasks into
// one target (spec.md §4.7's Merge operation).
type MergeTasksRequest struct {
	ProjectID    string
	TargetTaskID string
	SourceIDs    []string
}

// CreateChangeRequestRequest is the input to Service.CreateChangeRequest.
type CreateChangeRequestRequest struct {
	ProjectID    string
	TargetTaskID string
	Kind         store.ChangeRequestKind
	Delta        store.ProposedDelta
}

// DecideChangeRequestRequest is the input to Service.DecideChangeRequest.
type DecideChangeRequestRequest struct {
	ChangeRequestID string
	Approver        string
	Decision        store.ApprovalDecision
	Notes           string
}

// SetTaskStatusRequest is the input to Service.SetTaskStatus.
type SetTaskStatusRequest struct {
	TaskID   string
	Status   store.TaskStatus
	Metadata map[string]any
}

// RunPhaseRequest names the (project, task) pair and engine a phase
// runner should act on.
type RunPhaseRequest struct {
	ProjectID   string
	TaskID      string
	Engine      engine.Engine
	MaxAttempts int // consulted only by RunCoder
}

// service is the Service implementation, wiring each operation to the
// governance, orchestrator, vcs, and artifact packages it delegates to.
type service struct {
	db         *store.DB
	artifacts  *artifact.Store
	gov        *governance.Service
	planner    *orchestrator.Planner
	architect  *orchestrator.Architect
	coder      *orchestrator.Coder
	vcsAdapter *vcs.Adapter
}

// New builds a Service backed by the given components. db, artifacts
// and gov are required. planner, architect, coder and vcsAdapter may be
// nil when a caller doesn't need them (e.g. a read-only tool with no
// vcs.Adapter); the corresponding operations return an error if invoked.
func New(db *store.DB, artifacts *artifact.Store, gov *governance.Service, planner *orchestrator.Planner, architect *orchestrator.Architect, coder *orchestrator.Coder, vcsAdapter *vcs.Adapter) Service {
	return &service{
		db:         db,
		artifacts:  artifacts,
		gov:        gov,
		planner:    planner,
		architect:  architect,
		coder:      coder,
		vcsAdapter: vcsAdapter,
	}
}
