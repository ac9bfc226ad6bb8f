package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/governor/internal/api"
)

func newProjectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "project",
		Short: "Manage projects",
	}
	cmd.AddCommand(newProjectCreateCmd(), newProjectListCmd(), newProjectShowCmd())
	return cmd
}

func newProjectCreateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			engineName, _ := cmd.Flags().GetString("engine")
			p, err := a.svc.CreateProject(cmd.Context(), api.CreateProjectRequest{
				Name:          args[0],
				Root:          projectRoot,
				DefaultEngine: engineName,
			})
			if err != nil {
				return err
			}
			fmt.Printf("created project %s (%s)\n", p.Name, p.ID)
			return nil
		},
	}
	cmd.Flags().String("engine", "", "default engine for this project")
	return cmd
}

func newProjectListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List projects",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			projects, err := a.svc.ListProjects(cmd.Context())
			if err != nil {
				return err
			}
			for _, p := range projects {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", p.ID, p.Name, p.CurrentPhase)
			}
			return nil
		},
	}
}

func newProjectShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <project-id>",
		Short: "Show a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			p, err := a.svc.GetProject(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Printf("id:      %s\nname:    %s\nroot:    %s\nphase:   %s\nengine:  %s\n",
				p.ID, p.Name, p.Root, p.CurrentPhase, p.DefaultEngine)
			return nil
		},
	}
}
