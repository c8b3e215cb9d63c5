package migrate

import (
	"fmt"

	"github.com/spf13/cobra"

	"tila/internal/app"
	"tila/internal/cli/common"
	"tila/internal/cli/styles"
)

// NewMigrateCmd builds the migrate command group
func NewMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
		Long:  "Apply or roll back PostgreSQL migrations. SQLite stores create their schema on open.",
	}
	cmd.AddCommand(newUpCmd(), newDownCmd())
	return cmd
}

func newUpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := common.LoadConfig()
			if err != nil {
				return err
			}
			if cfg.Database.Driver != "postgres" {
				fmt.Fprintln(cmd.OutOrStdout(), styles.LockedStyle.Render("Nothing to do: the "+cfg.Database.Driver+" schema is applied on open"))
				return nil
			}

			status, err := app.Migrate(cfg)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), styles.EarnedStyle.Render(
				fmt.Sprintf("✓ Schema migrated from version %d to %d", status.From, status.To)))
			return nil
		},
	}
}

func newDownCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			steps, _ := cmd.Flags().GetInt("steps")
			if steps <= 0 {
				return fmt.Errorf("--steps must be positive")
			}
			cfg, err := common.LoadConfig()
			if err != nil {
				return err
			}

			status, err := app.Rollback(cfg, steps)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), styles.EarnedStyle.Render(
				fmt.Sprintf("✓ Schema rolled back from version %d to %d", status.From, status.To)))
			return nil
		},
	}
	cmd.Flags().Int("steps", 1, "number of migrations to roll back")
	return cmd
}
