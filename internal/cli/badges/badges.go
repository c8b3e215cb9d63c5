package badges

import "github.com/spf13/cobra"

// NewBadgesCmd builds the badges command group
func NewBadgesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "badges",
		Short: "Badge catalog and per-user progress",
		Long:  "List the badge catalog, inspect a user's progress and trigger an evaluation",
	}
	cmd.AddCommand(newListCmd(), newProgressCmd(), newEvaluateCmd())
	return cmd
}
