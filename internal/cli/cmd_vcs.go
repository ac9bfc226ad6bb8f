package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newVCSCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vcs",
		Short: "Inspect or drive the version-control adapter",
	}
	cmd.AddCommand(newVCSStatusCmd(), newVCSInitCmd(), newVCSDiffCmd())
	return cmd
}

func newVCSStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show working tree status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			status, err := a.svc.VCSStatus(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("branch: %s\nstaged: %v\nunstaged: %v\nhas_changes: %v\n",
				status.Branch, status.Staged, status.Unstaged, status.HasChanges)
			return nil
		},
	}
}

func newVCSInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize a git repository at the project root",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()
			return a.svc.VCSInit(cmd.Context())
		},
	}
}

func newVCSDiffCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "diff",
		Short: "Show the working tree diff",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			diff, err := a.svc.VCSDiff(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Println(diff)
			return nil
		},
	}
}
