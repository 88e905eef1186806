// Package cli implements the circlectl command tree. Commands operate on the
// engine directly over its SQLite database; there is no server between the
// CLI and the store.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"circle-core/internal/config"
)

var (
	version = "dev"
	commit  = "none"
)

// Execute runs the CLI.
func Execute() int {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		output, _ := rootCmd.PersistentFlags().GetString("output")
		if output == "json" {
			_ = printJSON(os.Stdout, map[string]any{"error": err.Error()})
		} else {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		return 1
	}
	return 0
}

func newRootCmd() *cobra.Command {
	var (
		dbPath      string
		catalogPath string
		output      string
		actingKey   string
	)

	rootCmd := &cobra.Command{
		Use:           "circlectl",
		Short:         "Coordination circle membership and delegation CLI",
		Long:          "Command-line interface for managing circles, roles, memberships, and scope delegations.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := config.LoadDotEnv(".env"); err != nil {
				return err
			}
			cfg, err := config.LoadFromEnv()
			if err != nil {
				return err
			}
			// Precedence: flag > env > default.
			if !cmd.Flags().Changed("db") {
				dbPath = cfg.DBPath
			}
			if !cmd.Flags().Changed("catalog") && cfg.ScopeCatalogPath != "" {
				catalogPath = cfg.ScopeCatalogPath
			}
			return validateOutputFormat(output)
		},
	}

	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "circles.sqlite", "Path to the SQLite database")
	rootCmd.PersistentFlags().StringVar(&catalogPath, "catalog", "", "Path to a scope catalog YAML override")
	rootCmd.PersistentFlags().StringVarP(&output, "output", "o", "table", "Output format (table, json)")
	rootCmd.PersistentFlags().StringVar(&actingKey, "as", "", "Acting principal key, e.g. individual:alice")

	rootCmd.AddCommand(newCircleCmd())
	rootCmd.AddCommand(newRoleCmd())
	rootCmd.AddCommand(newMemberCmd())
	rootCmd.AddCommand(newDelegationCmd())
	rootCmd.AddCommand(newAuthorizeCmd())
	rootCmd.AddCommand(newAuditCmd())
	rootCmd.AddCommand(newScopesCmd())
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}
