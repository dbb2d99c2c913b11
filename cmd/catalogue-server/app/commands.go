// Package app provides the CLI commands for the resource catalogue server.
package app

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "catalogue-server",
	Short: "Research infrastructure resource catalogue API server",
	Long: `catalogue-server runs the resource catalogue API, exposing the
moderated registry of providers, services, datasources, training resources
and interoperability records together with its public read-only mirror.`,
	Run: func(cmd *cobra.Command, _ []string) {
		// If no subcommand is provided, print help
		if err := cmd.Help(); err != nil {
			cmd.PrintErrf("Error displaying help: %v\n", err)
		}
	},
}

// NewRootCmd creates the root command with all subcommands attached.
func NewRootCmd() *cobra.Command {
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug mode")
	if err := viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug")); err != nil {
		rootCmd.PrintErrf("Warning: Failed to bind debug flag: %v\n", err)
	}

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)

	return rootCmd
}
