// Package cli implements the govr command-line interface: a thin
// cobra tree over internal/api.Service for local operation and
// scripting (spec.md §1 explicitly scopes a full interactive client
// out of this repo; this is the "local operation" surface SPEC_FULL.md
// §2 describes).
package cli

import (
	"github.com/spf13/cobra"
)

const (
	groupProject    = "project"
	groupTask       = "task"
	groupGovernance = "governance"
	groupRun        = "run"
	groupVCS        = "vcs"
	groupControl    = "control"
)

var (
	projectRoot string
	jsonOut     bool
)

var rootCmd = &cobra.Command{
	Use:   "govr",
	Short: "Governed AI-assisted engineering control plane",
	Long: `govr drives task governance through Planner -> Architect ->
Review/Approval -> Coder, with human approval as the sole authority to
mutate task state once a task moves past draft.

Quick start:
  govr project create "widgets"       Create a project
  govr task new <project-id> "title"  Create a task
  govr run planner <project-id> <task-id>
  govr cr decide <cr-id> <approver> approve
  govr run coder <project-id>`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&projectRoot, "project-root", ".", "project root directory")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "output as JSON")

	rootCmd.AddGroup(
		&cobra.Group{ID: groupProject, Title: "Project:"},
		&cobra.Group{ID: groupTask, Title: "Task:"},
		&cobra.Group{ID: groupGovernance, Title: "Change Requests:"},
		&cobra.Group{ID: groupRun, Title: "Phases:"},
		&cobra.Group{ID: groupVCS, Title: "Version Control:"},
		&cobra.Group{ID: groupControl, Title: "Coder Loop Control:"},
	)

	addCmd(newInitCmd(), groupProject)
	addCmd(newProjectCmd(), groupProject)
	addCmd(newTaskCmd(), groupTask)
	addCmd(newCRCmd(), groupGovernance)
	addCmd(newRunCmd(), groupRun)
	addCmd(newVCSCmd(), groupVCS)
	addCmd(newControlCmd(), groupControl)
}

func addCmd(cmd *cobra.Command, groupID string) {
	cmd.GroupID = groupID
	rootCmd.AddCommand(cmd)
}
