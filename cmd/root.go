// Package cmd implements the classifier command line.
package cmd

import (
	"fmt"
	"os"

	"github.com/BrohansCoding/GoogleWorkplaceAssistant-sub000/config"
	"github.com/BrohansCoding/GoogleWorkplaceAssistant-sub000/pkg/logger"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// localUserID is the default user of CLI and MCP runs, so a
// local database keeps one registry across invocations.
var localUserID = uuid.NewSHA1(uuid.NameSpaceOID, []byte("classifier.local"))

var (
	version = "dev"
	cfg     *config.Config
	userArg string
)

var rootCmd = &cobra.Command{
	Use:   "classifier",
	Short: "Sorts mail threads into built-in and custom categories",
	Long: `classifier sorts mail threads into five built-in categories plus any
custom categories a user defines, scoring with keyword rules and, when custom
categories exist, a hosted language model.

It can run as:
  - An HTTP API and background worker (serve, worker)
  - A one-shot CLI over a local SQLite database (classify, categories)
  - An MCP server for AI assistants (mcp)`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Local development keeps settings in .env.
		envErr := godotenv.Load()

		loaded, err := config.Load()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded

		// stdout carries results for classify and the protocol for mcp.
		out := os.Stdout
		switch cmd.Name() {
		case "classify", "mcp", "list", "create", "delete", "token":
			out = os.Stderr
		}
		logger.Init(logger.Config{
			Level:   logger.ParseLevel(cfg.LogLevel),
			Output:  out,
			Service: "classifier-" + cmd.Name(),
			Pretty:  cfg.LogPretty || cfg.IsDevelopment(),
		})
		if envErr != nil {
			logger.Debug("No .env file found, using environment variables")
		}
		return nil
	},
}

// SetVersion sets the version reported by --version and the MCP server.
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

// Execute runs the root command. With no subcommand it serves the API and
// worker together.
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "classifier version %s\n" .Version}}`)

	if len(os.Args) == 1 {
		os.Args = append(os.Args, "serve", "--with-worker")
	}

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&userArg, "user", "", "User ID for local commands (default: a fixed local user)")

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newWorkerCmd())
	rootCmd.AddCommand(newClassifyCmd())
	rootCmd.AddCommand(newCategoriesCmd())
	rootCmd.AddCommand(newMCPCmd())
	rootCmd.AddCommand(newTokenCmd())
}

// resolveUser returns the --user flag or the local default user.
func resolveUser() (uuid.UUID, error) {
	if userArg == "" {
		return localUserID, nil
	}
	id, err := uuid.Parse(userArg)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid --user %q: %w", userArg, err)
	}
	return id, nil
}
