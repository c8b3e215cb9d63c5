// Package cli assembles the tila command tree
package cli

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"tila/internal/cli/badges"
	"tila/internal/cli/common"
	"tila/internal/cli/config"
	"tila/internal/cli/migrate"
	"tila/internal/cli/rescan"
	"tila/internal/cli/token"
)

// NewRootCmd builds the tila command
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "tila",
		Short:         "TILA gamification engine",
		Long:          "Administer the TILA badge engine: schema migrations, badge catalog, rescans and tokens",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringP("config", "c", "", "config file (default configs/$APP_ENV.yaml)")
	root.PersistentFlags().BoolP("verbose", "v", false, "log at the configured level instead of warn")
	viper.BindPFlag(common.KeyConfigFile, root.PersistentFlags().Lookup("config"))
	viper.BindPFlag(common.KeyVerbose, root.PersistentFlags().Lookup("verbose"))

	root.AddCommand(
		badges.NewBadgesCmd(),
		config.NewConfigCmd(),
		migrate.NewMigrateCmd(),
		rescan.NewRescanCmd(),
		token.NewTokenCmd(),
	)
	return root
}
