// Package vcs wraps the git CLI through Sandbox, giving the Coder
// phase a small, atomic commit surface (spec.md §4.9). This
// re-implements the operations directly against `git` rather than
// through any private wrapper module, since none is fetchable here.
package vcs

import (
	"context"
	"fmt"
	"strings"

	"github.com/randalmurphal/governor/internal/errs"
	"github.com/randalmurphal/governor/internal/sandbox"
)

// Runner is the subset of sandbox.Runner the VCS adapter needs.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (*sandbox.Result, error)
}

// Status summarizes a working tree's state.
type Status struct {
	Branch     string
	Staged     []string
	Unstaged   []string
	HasChanges bool
}

// Adapter drives git for one project root through a Sandbox Runner.
type Adapter struct {
	runner Runner
}

// New creates a VCS Adapter that runs git via runner.
func New(runner Runner) *Adapter {
	return &Adapter{runner: runner}
}

// IsRepo reports whether root is already a git repository.
func (a *Adapter) IsRepo(ctx context.Context) (bool, error) {
	res, err := a.runner.Run(ctx, "git", "rev-parse", "--is-inside-work-tree")
	if err != nil {
		if errs.Is(err, errs.CodeEngineFailure) || errs.Is(err, errs.CodeForbidden) {
			return false, err
		}
		return false, nil
	}
	return res.ExitCode == 0, nil
}

// Init initializes a new git repository at root.
func (a *Adapter) Init(ctx context.Context) error {
	_, err := a.run(ctx, "init")
	return err
}

// Status reports the current branch and staged/unstaged file lists.
func (a *Adapter) Status(ctx context.Context) (*Status, error) {
	branchRes, err := a.run(ctx, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return nil, err
	}
	porcelain, err := a.run(ctx, "status", "--porcelain=v1")
	if err != nil {
		return nil, err
	}

	st := &Status{Branch: strings.TrimSpace(branchRes.Stdout)}
	for _, line := range strings.Split(porcelain.Stdout, "\n") {
		if len(line) < 3 {
			continue
		}
		indexState, worktreeState, path := line[0], line[1], strings.TrimSpace(line[3:])
		if indexState != ' ' && indexState != '?' {
			st.Staged = append(st.Staged, path)
		}
		if worktreeState != ' ' {
			st.Unstaged = append(st.Unstaged, path)
		}
	}
	st.HasChanges = len(st.Staged) > 0 || len(st.Unstaged) > 0
	return st, nil
}

// Commit stages exactly files and commits them with message, returning
// the new commit SHA. The working tree is left untouched if staging or
// committing fails (spec.md §4.9's atomicity guarantee).
func (a *Adapter) Commit(ctx context.Context, files []string, message string) (string, error) {
	if len(files) == 0 {
		return "", errs.New(errs.CodeValidation, "commit requires at least one file")
	}

	addArgs := append([]string{"add", "--"}, files...)
	if _, err := a.run(ctx, addArgs...); err != nil {
		return "", err
	}

	if _, err := a.run(ctx, "commit", "-m", message); err != nil {
		return "", err
	}

	sha, err := a.run(ctx, "rev-parse", "HEAD")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(sha.Stdout), nil
}

// Diff returns the unstaged diff of the working tree.
func (a *Adapter) Diff(ctx context.Context) (string, error) {
	res, err := a.run(ctx, "diff")
	if err != nil {
		return "", err
	}
	return res.Stdout, nil
}

func (a *Adapter) run(ctx context.Context, args ...string) (*sandbox.Result, error) {
	res, err := a.runner.Run(ctx, "git", args...)
	if err != nil {
		return nil, err
	}
	if res.ExitCode != 0 {
		return nil, errs.Newf(errs.CodeEngineFailure, "git %s failed: %s", strings.Join(args, " "), strings.TrimSpace(res.Stderr))
	}
	return res, nil
}

// CommitTrailer carries the structured metadata spec.md §4.8 requires
// on every coder commit.
type CommitTrailer struct {
	TaskID   string
	Version  int
	Phase    string
	RunID    string
	Gates    string
	Approver string
}

// FormatCommitMessage builds the `<type>(task-<id> v<version>): <title>`
// message with a trailer block, per spec.md §4.8 and scenario S6: a
// `Gates: N/M passed` line, an optional `Approver`, and a `Run-Id`
// identifying the run that produced the commit. typ defaults to "feat"
// when empty.
func FormatCommitMessage(typ, taskID string, version int, title string, trailer CommitTrailer) string {
	if typ == "" {
		typ = "feat"
	}
	header := fmt.Sprintf("%s(task-%s v%d): %s", typ, taskID, version, title)

	var b strings.Builder
	b.WriteString(header)
	b.WriteString("\n\n")
	b.WriteString(fmt.Sprintf("Task-Id: %s\n", trailer.TaskID))
	b.WriteString(fmt.Sprintf("Phase: %s\n", trailer.Phase))
	b.WriteString(fmt.Sprintf("Run-Id: %s\n", trailer.RunID))
	b.WriteString(fmt.Sprintf("Gates: %s\n", trailer.Gates))
	if trailer.Approver != "" {
		b.WriteString(fmt.Sprintf("Approver: %s\n", trailer.Approver))
	}
	return b.String()
}
