package token

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"tila/internal/cli/common"
	"tila/internal/core"
	"tila/pkg/models"
)

// NewTokenCmd builds the token command
func NewTokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a development access token",
		Long:  "Sign a bearer token with the configured JWT secret, for local testing of the API and websocket",
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, _ := cmd.Flags().GetString("user")
			admin, _ := cmd.Flags().GetBool("admin")
			ttl, _ := cmd.Flags().GetDuration("ttl")
			if userID == "" {
				return fmt.Errorf("--user is required")
			}

			cfg, err := common.LoadConfig()
			if err != nil {
				return err
			}
			authSvc, err := core.NewAuthService(cfg.JWT.Secret, cfg.JWT.Issuer)
			if err != nil {
				return fmt.Errorf("%w (set TILA_JWT_SECRET)", err)
			}

			role := models.UserRoleUser
			if admin {
				role = models.UserRoleAdmin
			}
			token, _, err := authSvc.IssueToken(userID, role, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringP("user", "u", "", "user id to put in the token")
	cmd.Flags().Bool("admin", false, "grant the admin role")
	cmd.Flags().Duration("ttl", 24*time.Hour, "token lifetime")
	return cmd
}
