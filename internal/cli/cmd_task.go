package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/governor/internal/api"
	"github.com/randalmurphal/governor/internal/store"
)

func newTaskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Manage tasks",
	}
	cmd.AddCommand(newTaskNewCmd(), newTaskListCmd(), newTaskShowCmd(), newTaskVersionsCmd())
	return cmd
}

func newTaskNewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "new <project-id> <title>",
		Short: "Create a task",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			description, _ := cmd.Flags().GetString("description")
			priority, _ := cmd.Flags().GetInt("priority")

			task, version, err := a.svc.CreateTask(cmd.Context(), api.CreateTaskRequest{
				ProjectID:   args[0],
				Title:       args[1],
				Description: description,
				Priority:    priority,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created task %s v%d: %s\n", task.ID, version.Version, task.Title)
			return nil
		},
	}
	cmd.Flags().String("description", "", "task description")
	cmd.Flags().Int("priority", 0, "task priority (higher runs first)")
	return cmd
}

func newTaskListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list <project-id>",
		Short: "List a project's tasks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			tasks, err := a.svc.ListTasks(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			for _, t := range tasks {
				fmt.Printf("%s\t%s\t%s\tattempts=%d\n", t.ID, t.Status, t.Title, t.Attempts)
			}
			return nil
		},
	}
}

func newTaskShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <task-id>",
		Short: "Show a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			t, err := a.svc.GetTask(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Printf("id:       %s\ntitle:    %s\nstatus:   %s\nphase:    %s\nattempts: %d\n",
				t.ID, t.Title, t.Status, t.CurrentPhase, t.Attempts)
			return nil
		},
	}
}

func newTaskVersionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "versions <task-id>",
		Short: "List a task's versions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			versions, err := a.svc.ListTaskVersions(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			for _, v := range versions {
				fmt.Printf("v%d\t%s\tgates=%d\tdeps=%d\n", v.Version, v.Title, len(v.GateSpecs), len(v.Dependencies))
			}
			return nil
		},
	}
}

func newCRCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cr",
		Short: "Manage change requests",
	}
	cmd.AddCommand(newCRSplitCmd(), newCRMergeCmd(), newCRSubmitCmd(), newCRDecideCmd(), newCRApplyCmd())
	return cmd
}

func newCRSplitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "split <project-id> <task-id> <child-title> <child-title> [...]",
		Short: "Propose splitting a task into child tasks (at least two)",
		Args:  cobra.MinimumNArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			var children []store.ChildSpec
			for _, title := range args[2:] {
				children = append(children, store.ChildSpec{Title: title})
			}

			cr, err := a.svc.SplitTask(cmd.Context(), api.SplitTaskRequest{
				ProjectID:  args[0],
				TaskID:     args[1],
				ChildSpecs: children,
			})
			if err != nil {
				return err
			}
			fmt.Printf("submitted split change request %s (status=%s)\n", cr.ID, cr.Status)
			return nil
		},
	}
	return cmd
}

func newCRMergeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "merge <project-id> <target-task-id> <source-id> <source-id> [...]",
		Short: "Propose merging at least two tasks into one target",
		Args:  cobra.MinimumNArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			cr, err := a.svc.MergeTasks(cmd.Context(), api.MergeTasksRequest{
				ProjectID:    args[0],
				TargetTaskID: args[1],
				SourceIDs:    args[2:],
			})
			if err != nil {
				return err
			}
			fmt.Printf("submitted merge change request %s (status=%s)\n", cr.ID, cr.Status)
			return nil
		},
	}
}

func newCRSubmitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "submit <cr-id>",
		Short: "Submit a draft change request for review",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			cr, err := a.svc.SubmitChangeRequest(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Printf("%s is now %s\n", cr.ID, cr.Status)
			return nil
		},
	}
}

func newCRDecideCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "decide <cr-id> <approver> <approve|reject>",
		Short: "Record an approval decision on a submitted change request",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			var decision store.ApprovalDecision
			switch args[2] {
			case "approve":
				decision = store.DecisionApprove
			case "reject":
				decision = store.DecisionReject
			default:
				return fmt.Errorf("decision must be approve or reject, got %q", args[2])
			}

			notes, _ := cmd.Flags().GetString("notes")
			approval, err := a.svc.DecideChangeRequest(cmd.Context(), api.DecideChangeRequestRequest{
				ChangeRequestID: args[0],
				Approver:        args[1],
				Decision:        decision,
				Notes:           notes,
			})
			if err != nil {
				return err
			}
			fmt.Printf("recorded %s by %s\n", approval.Decision, approval.Approver)
			return nil
		},
	}
	cmd.Flags().String("notes", "", "approval/rejection notes")
	return cmd
}

func newCRApplyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "apply <cr-id>",
		Short: "Apply an approved change request, bumping the task version",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			version, err := a.svc.ApplyChangeRequest(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Printf("task %s is now v%d\n", version.TaskID, version.Version)
			return nil
		},
	}
}
