package badges

import (
	"github.com/spf13/cobra"

	"tila/internal/catalog"
	"tila/internal/cli/common"
)

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the badge catalog",
		Long:  "Show every badge in evaluation order with its criterion and bonus points",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := common.LoadConfig()
			if err != nil {
				return err
			}
			cat, err := catalog.Load(cfg.Gamification.CatalogPath)
			if err != nil {
				return err
			}
			RenderCatalog(cmd.OutOrStdout(), cat.All())
			return nil
		},
	}
}
