package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newControlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "control",
		Short: "Pause, resume, or configure the coder loop",
	}
	cmd.AddCommand(newControlPauseCmd(), newControlContinueCmd(), newControlLimitsCmd())
	return cmd
}

func newControlPauseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pause <project-id>",
		Short: "Pause the coder loop for a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.svc.Pause(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "paused")
			return nil
		},
	}
}

func newControlContinueCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "continue <project-id>",
		Short: "Resume the coder loop for a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.svc.Continue(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "resumed")
			return nil
		},
	}
}

func newControlLimitsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "limits <project-id> <max-attempts>",
		Short: "Set the coder loop's max attempts before a task is rejected",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			maxAttempts, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("max-attempts must be an integer: %w", err)
			}

			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.svc.SetLimits(cmd.Context(), args[0], maxAttempts); err != nil {
				return err
			}
			fmt.Printf("max_attempts set to %d\n", maxAttempts)
			return nil
		},
	}
}
