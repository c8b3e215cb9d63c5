package badges

import (
	"fmt"

	"github.com/spf13/cobra"

	"tila/internal/cli/common"
)

func newProgressCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "progress",
		Short: "Show a user's badge progress",
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, _ := cmd.Flags().GetString("user")
			if userID == "" {
				return fmt.Errorf("--user is required")
			}

			a, err := common.OpenApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			stats, err := a.Service.GetStats(cmd.Context(), userID)
			if err != nil {
				return err
			}
			progress, err := a.Service.GetBadgeProgress(cmd.Context(), userID)
			if err != nil {
				return err
			}
			RenderProgress(cmd.OutOrStdout(), stats, progress)
			return nil
		},
	}
	cmd.Flags().StringP("user", "u", "", "user id")
	return cmd
}

func newEvaluateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Award any badges a user now qualifies for",
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, _ := cmd.Flags().GetString("user")
			if userID == "" {
				return fmt.Errorf("--user is required")
			}

			a, err := common.OpenApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			result, err := a.Service.EvaluateBadges(cmd.Context(), userID)
			if err != nil {
				return err
			}
			RenderEvaluation(cmd.OutOrStdout(), result)
			return nil
		},
	}
	cmd.Flags().StringP("user", "u", "", "user id")
	return cmd
}
