package cmd

import (
	"fmt"
	"time"

	"github.com/BrohansCoding/GoogleWorkplaceAssistant-sub000/infra/middleware"

	"github.com/spf13/cobra"
)

func newTokenCmd() *cobra.Command {
	var ttl time.Duration

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an API bearer token for a user",
		Long:  `Sign a JWT with $JWT_SECRET for --user, for local testing of the HTTP API.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := resolveUser()
			if err != nil {
				return err
			}
			token, err := middleware.IssueToken(cfg.JWTSecret, userID, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "Token lifetime")
	return cmd
}
