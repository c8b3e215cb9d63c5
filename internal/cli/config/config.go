package config

import "github.com/spf13/cobra"

// NewConfigCmd builds the config command group
func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration commands",
		Long:  "Inspect the configuration tila resolves from yaml, .env and TILA_* variables",
	}
	cmd.AddCommand(newShowCmd())
	return cmd
}
