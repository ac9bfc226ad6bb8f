package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/governor/internal/config"
	"github.com/randalmurphal/governor/internal/store"
)

// newInitCmd creates the init command: it lays down .governor/config.yaml
// and the project's sqlite database, the fast local-only equivalent of
// the teacher's "instant initialization" (no project-type detection or
// global registry — those back the interactive client this repo omits).
func newInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize a project's .governor directory",
		Long: `Initialize governor in the current directory.

Creates .governor/config.yaml with built-in defaults and an empty
sqlite database for task tracking. Re-run with --force to overwrite
an existing config file.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			force, _ := cmd.Flags().GetBool("force")
			engine, _ := cmd.Flags().GetString("engine")

			configPath := filepath.Join(projectRoot, config.GovernorDir, config.ConfigFileName+".yaml")
			if _, err := os.Stat(configPath); err == nil && !force {
				return fmt.Errorf("%s already exists; pass --force to overwrite", configPath)
			}

			cfg := config.Default()
			if engine != "" {
				cfg.DefaultEngine = engine
			}
			if err := cfg.Save(projectRoot); err != nil {
				return err
			}

			db, err := store.Open(projectRoot + "/" + cfg.Database.SQLite.Path)
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			fmt.Fprintf(cmd.OutOrStdout(), "initialized governor project at %s\n", projectRoot)
			return nil
		},
	}
	cmd.Flags().Bool("force", false, "overwrite an existing config file")
	cmd.Flags().String("engine", "", "default engine for this project")
	return cmd
}
