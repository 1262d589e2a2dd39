// Package app provides the entry point for the dvproxy command-line
// application.
package app

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/stacklok/dataverse-devauth/pkg/logger"
)

var rootCmd = &cobra.Command{
	Use:               "dvproxy",
	DisableAutoGenTag: true,
	Short:             "dvproxy is a local development proxy for Dataverse environments",
	Long: `dvproxy runs a local HTTP proxy in front of a Dataverse environment.
Requests under the protected API prefix are authenticated with short-lived
tokens resolved from the developer's ambient identity (CLI session, managed
identity, or client credentials); application pages are forwarded to a local
dev server with a small fetch-wrapping snippet injected so browser code gets
the same treatment.

It refuses to run in production environments.`,
	Run: func(cmd *cobra.Command, _ []string) {
		// If no subcommand is provided, print help
		if err := cmd.Help(); err != nil {
			logger.Errorf("Error displaying help: %v", err)
		}
	},
}

// NewRootCmd creates a new root command for the dvproxy CLI.
func NewRootCmd() *cobra.Command {
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug mode")
	if err := viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug")); err != nil {
		logger.Fatalf("Failed to bind debug flag: %v", err)
	}

	rootCmd.AddCommand(serveCmd)

	return rootCmd
}
