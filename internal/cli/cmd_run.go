package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/governor/internal/api"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a phase against the configured engine",
	}
	cmd.AddCommand(newRunPlannerCmd(), newRunArchitectCmd(), newRunCoderCmd())
	return cmd
}

func newRunPlannerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "planner <project-id> <task-id>",
		Short: "Run the Planner phase for a task's spec content",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			engineName, _ := cmd.Flags().GetString("engine")
			run, err := a.svc.RunPlanner(cmd.Context(), api.RunPhaseRequest{
				ProjectID: args[0],
				TaskID:    args[1],
				Engine:    a.engineFor(engineName),
			})
			if err != nil {
				return err
			}
			fmt.Printf("run %s: %s\n", run.ID, run.Status)
			return nil
		},
	}
	cmd.Flags().String("engine", "", "override the project's default engine")
	return cmd
}

func newRunArchitectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "architect <project-id> <task-id>",
		Short: "Run the Architect phase for a task",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			engineName, _ := cmd.Flags().GetString("engine")
			run, err := a.svc.RunArchitect(cmd.Context(), api.RunPhaseRequest{
				ProjectID: args[0],
				TaskID:    args[1],
				Engine:    a.engineFor(engineName),
			})
			if err != nil {
				return err
			}
			fmt.Printf("run %s: %s\n", run.ID, run.Status)
			return nil
		},
	}
	cmd.Flags().String("engine", "", "override the project's default engine")
	return cmd
}

func newRunCoderCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "coder <project-id>",
		Short: "Tick the coder loop once for a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			engineName, _ := cmd.Flags().GetString("engine")
			maxAttempts, _ := cmd.Flags().GetInt("max-attempts")
			attempted, err := a.svc.RunCoder(cmd.Context(), api.RunPhaseRequest{
				ProjectID:   args[0],
				Engine:      a.engineFor(engineName),
				MaxAttempts: maxAttempts,
			})
			if err != nil {
				return err
			}
			if !attempted {
				fmt.Println("no ready task found")
				return nil
			}
			fmt.Println("coder tick complete")
			return nil
		},
	}
	cmd.Flags().String("engine", "", "override the project's default engine")
	cmd.Flags().Int("max-attempts", 3, "attempts before a failing task is rejected")
	return cmd
}
