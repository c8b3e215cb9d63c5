package rescan

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"tila/internal/cli/common"
	"tila/internal/cli/styles"
	"tila/pkg/models"
)

// NewRescanCmd builds the rescan command
func NewRescanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rescan",
		Short: "Re-evaluate badges for every user",
		Long:  "Award badges retroactively, e.g. after adding badges to the catalog. Safe to repeat.",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := common.OpenApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			report, err := a.Rescanner.Run(cmd.Context())
			if report != nil {
				RenderReport(cmd.OutOrStdout(), report)
			}
			return err
		},
	}
}

// RenderReport prints the rescan summary
func RenderReport(w io.Writer, r *models.RescanReport) {
	fmt.Fprintln(w, styles.TitleStyle.Render("Badge rescan"))
	fmt.Fprintln(w, "  "+styles.KeyValue("Users processed", r.UsersProcessed))
	fmt.Fprintln(w, "  "+styles.KeyValue("Users awarded", r.UsersAwarded))
	fmt.Fprintln(w, "  "+styles.KeyValue("Badges awarded", r.BadgesAwarded))
	fmt.Fprintln(w, "  "+styles.KeyValue("Bonus points", r.PointsAwarded))
	if r.Failures > 0 {
		fmt.Fprintln(w, "  "+styles.ErrorStyle.Render(fmt.Sprintf("%d users failed, see logs", r.Failures)))
	}
	fmt.Fprintln(w, "  "+styles.KeyValue("Duration", r.Duration.Round(time.Millisecond)))
}
