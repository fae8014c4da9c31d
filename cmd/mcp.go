package cmd

import (
	"github.com/BrohansCoding/GoogleWorkplaceAssistant-sub000/internal/bootstrap"
	"github.com/BrohansCoding/GoogleWorkplaceAssistant-sub000/internal/mcp"
	"github.com/BrohansCoding/GoogleWorkplaceAssistant-sub000/pkg/logger"

	"github.com/spf13/cobra"
)

func newMCPCmd() *cobra.Command {
	var offline bool

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve classification tools over MCP stdio",
		Long: `Start a Model Context Protocol server on stdin/stdout exposing the
classify_threads, list_categories, create_category and delete_category tools
for one user of the local registry.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := resolveUser()
			if err != nil {
				return err
			}
			deps, cleanup, err := bootstrap.NewLocalDependencies(cfg, offline)
			if err != nil {
				return err
			}
			defer cleanup()

			logger.WithField("user_id", userID.String()).Info("Serving MCP on stdio")
			return mcp.Serve(mcp.NewServer(deps.Service, userID, version))
		},
	}
	cmd.Flags().BoolVar(&offline, "offline", false, "Rule scoring only, never call the language model")
	return cmd
}
