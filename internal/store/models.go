package store

import "time"

// TaskStatus is the lifecycle state of a Task (spec.md §3).
type TaskStatus string

const (
	TaskPending          TaskStatus = "PENDING"
	TaskInProgress       TaskStatus = "IN_PROGRESS"
	TaskAwaitingApproval TaskStatus = "AWAITING_APPROVAL"
	TaskApproved         TaskStatus = "APPROVED"
	TaskRejected         TaskStatus = "REJECTED"
	TaskCompleted        TaskStatus = "COMPLETED"
	TaskCancelled        TaskStatus = "CANCELLED"
)

// ChangeRequestStatus is the lifecycle state of a ChangeRequest.
type ChangeRequestStatus string

const (
	CRDraft       ChangeRequestStatus = "DRAFT"
	CRSubmitted   ChangeRequestStatus = "SUBMITTED"
	CRApproved    ChangeRequestStatus = "APPROVED"
	CRRejected    ChangeRequestStatus = "REJECTED"
	CRImplemented ChangeRequestStatus = "IMPLEMENTED"
)

// ChangeRequestKind distinguishes a plain edit from a split/merge CR.
type ChangeRequestKind string

const (
	CRKindUpdate ChangeRequestKind = "update"
	CRKindSplit  ChangeRequestKind = "split"
	CRKindMerge  ChangeRequestKind = "merge"
)

// ApprovalDecision is the outcome an Approval records.
type ApprovalDecision string

const (
	DecisionApprove ApprovalDecision = "APPROVE"
	DecisionReject  ApprovalDecision = "REJECT"
)

// ArtifactKind enumerates the artifact kinds spec.md §3 names.
type ArtifactKind string

const (
	ArtifactSpec         ArtifactKind = "SPEC"
	ArtifactPlan         ArtifactKind = "PLAN"
	ArtifactArchitecture ArtifactKind = "ARCHITECTURE"
	ArtifactADR          ArtifactKind = "ADR"
	ArtifactTranscript   ArtifactKind = "TRANSCRIPT"
	ArtifactDiff         ArtifactKind = "DIFF"
	ArtifactLog          ArtifactKind = "LOG"
	ArtifactOther        ArtifactKind = "OTHER"
)

// RunStatus is the lifecycle state of a Run.
type RunStatus string

const (
	RunRunning   RunStatus = "RUNNING"
	RunSuccess   RunStatus = "SUCCESS"
	RunFailure   RunStatus = "FAILURE"
	RunTimeout   RunStatus = "TIMEOUT"
	RunCancelled RunStatus = "CANCELLED"
)

// Phase names the four ordered phases spec.md §1 defines.
type Phase string

const (
	PhasePlanner   Phase = "planner"
	PhaseArchitect Phase = "architect"
	PhaseReview    Phase = "review"
	PhaseCoder     Phase = "coder"
	PhaseNone      Phase = "none"
)

// Project is a governed workspace root (spec.md §3).
type Project struct {
	ID               string
	Name             string
	Root             string
	CurrentPhase     Phase
	DefaultEngine    string
	SelectedOptionID string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Task is a governed unit of work (spec.md §3).
type Task struct {
	ID              string
	ProjectID       string
	Title           string
	Description     string
	Priority        int
	Status          TaskStatus
	CurrentPhase    Phase
	Attempts        int
	ActiveVersionID string
	Metadata        map[string]any
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// GateSpec is a single ordered gate within a TaskVersion's suggested
// gate list (spec.md §4.5).
type GateSpec struct {
	Name         string        `json:"name"`
	Command      string        `json:"command"`
	Args         []string      `json:"args"`
	PassCriteria string        `json:"pass_criteria"`
	Expected     string        `json:"expected,omitempty"`
	Timeout      time.Duration `json:"timeout"`
}

// TaskVersion is an immutable snapshot of a task's mutable fields
// (spec.md §3).
type TaskVersion struct {
	ID                 string
	TaskID             string
	Version            int
	Title              string
	Description        string
	AcceptanceCriteria []string
	Dependencies       []string
	GateSpecs          []GateSpec
	PhaseAtCreation    Phase
	CreatedAt          time.Time
}

// ProposedDelta is the payload a ChangeRequest carries: the proposed
// mutation to apply to the target task on approval.
type ProposedDelta struct {
	Title        string     `json:"title,omitempty"`
	Description  string     `json:"description,omitempty"`
	GateSpecs    []GateSpec `json:"gates,omitempty"`
	Dependencies []string   `json:"dependencies,omitempty"`
	Engine       string     `json:"engine,omitempty"`
	ChildSpecs   []ChildSpec `json:"child_specs,omitempty"`
	MergeTaskIDs []string   `json:"merge_task_ids,omitempty"`
}

// ChildSpec describes one child task produced by a split.
type ChildSpec struct {
	Title              string     `json:"title"`
	Description        string     `json:"description"`
	AcceptanceCriteria []string   `json:"acceptance_criteria,omitempty"`
	GateSpecs          []GateSpec `json:"gates,omitempty"`
}

// ChangeRequest is a proposed, reviewable delta to a task (spec.md §3).
type ChangeRequest struct {
	ID             string
	ProjectID      string
	TargetTaskID   string
	Kind           ChangeRequestKind
	Status         ChangeRequestStatus
	ProposedDelta  ProposedDelta
	DiffArtifactID string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Approval is an immutable decision record (spec.md §3).
type Approval struct {
	ID              string
	ProjectID       string
	ChangeRequestID string
	TaskVersionID   string
	Approver        string
	Decision        ApprovalDecision
	Notes           string
	CreatedAt       time.Time
}

// Artifact is content-addressed stored output (spec.md §3).
type Artifact struct {
	ID        string
	ProjectID string
	Kind      ArtifactKind
	Path      string
	Hash      string
	Size      int64
	RunID     string
	TaskID    string
	CreatedAt time.Time
}

// GateResult is one gate's outcome from a Gate Runner pass (spec.md §4.5).
type GateResult struct {
	Name     string        `json:"name"`
	Passed   bool          `json:"passed"`
	ExitCode int           `json:"exit_code"`
	Stdout   string        `json:"stdout"`
	Stderr   string        `json:"stderr"`
	Duration time.Duration `json:"duration"`
	Error    string        `json:"error,omitempty"`
}

// Run is a single phase execution (spec.md §3).
type Run struct {
	ID          string
	ProjectID   string
	TaskID      string
	Engine      string
	Phase       Phase
	Status      RunStatus
	GateResults []GateResult
	Error       string
	StartedAt   time.Time
	EndedAt     *time.Time
}

// ControlState mediates the coder loop for a project (spec.md §3).
type ControlState struct {
	ProjectID     string
	Paused        bool
	MaxAttempts   int
	CurrentTaskID string
}
