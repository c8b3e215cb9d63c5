package badges

import (
	"fmt"
	"io"
	"time"

	"tila/internal/cli/styles"
	"tila/pkg/models"
	"tila/pkg/utils"
)

const barWidth = 20

// RenderCatalog prints badges in catalog order
func RenderCatalog(w io.Writer, defs []models.BadgeDefinition) {
	fmt.Fprintln(w, styles.TitleStyle.Render(fmt.Sprintf("Badge catalog (%d badges)", len(defs))))
	fmt.Fprintln(w)

	var category models.BadgeCategory
	for _, b := range defs {
		if b.Category != category {
			category = b.Category
			fmt.Fprintln(w, styles.SubtitleStyle.Render(string(category)))
		}
		fmt.Fprintf(w, "  %s %-20s %s  %s\n",
			b.Icon,
			b.Name,
			styles.PointsStyle.Render(fmt.Sprintf("+%d", b.Points)),
			styles.LockedStyle.Render(b.Criterion.String()),
		)
	}
}

// RenderProgress prints the user's counters then one line per badge
func RenderProgress(w io.Writer, stats *models.UserStats, p *models.BadgeProgressResponse) {
	summary := fmt.Sprintf("%s\n%s\n%s\n%s\n%s",
		styles.KeyValue("User", stats.UserID),
		styles.KeyValue("Total points", stats.TotalPoints),
		styles.KeyValue("Streak", fmt.Sprintf("%d days (longest %d)", stats.CurrentStreak, stats.LongestStreak)),
		styles.KeyValue("Badges", fmt.Sprintf("%d/%d (%d%%)", p.TotalEarned, p.TotalAvailable, p.CompletionPercentage)),
		styles.KeyValue("Badge points", fmt.Sprintf("%d/%d", p.TotalBadgePoints, p.TotalAvailablePoints)),
	)
	fmt.Fprintln(w, styles.BoxStyle.Render(summary))
	fmt.Fprintln(w)

	if len(p.EarnedBadges) > 0 {
		fmt.Fprintln(w, styles.SubtitleStyle.Render("Earned"))
		for _, b := range p.EarnedBadges {
			earned := ""
			if b.EarnedAt != nil {
				earned = utils.TimeAgo(*b.EarnedAt, time.Now())
			}
			fmt.Fprintf(w, "  %s %s %s\n",
				styles.EarnedStyle.Render("✓ "+b.Badge.Name),
				styles.PointsStyle.Render(fmt.Sprintf("+%d", b.Badge.Points)),
				styles.LockedStyle.Render(earned),
			)
		}
		fmt.Fprintln(w)
	}

	if len(p.AvailableBadges) > 0 {
		fmt.Fprintln(w, styles.SubtitleStyle.Render("In progress"))
		for _, b := range p.AvailableBadges {
			fmt.Fprintf(w, "  %-20s %s %3d%% (%d/%d)\n",
				styles.LockedStyle.Render(b.Badge.Name),
				styles.ProgressBar(b.Percentage, barWidth),
				b.Percentage,
				b.Current,
				b.Required,
			)
		}
	}
}

// RenderEvaluation prints the congratulation line and each new badge
func RenderEvaluation(w io.Writer, r *models.EvaluationResult) {
	fmt.Fprintln(w, r.Message())
	for _, b := range r.AwardedBadges {
		fmt.Fprintf(w, "  %s %s\n",
			styles.EarnedStyle.Render(b.Name),
			styles.PointsStyle.Render(fmt.Sprintf("+%d", b.Points)),
		)
	}
}
