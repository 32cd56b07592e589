// Package cmd implements the CLI commands for ebay-connector.
package cmd

import (
	"github.com/spf13/cobra"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "ebay-connector",
	Short: "Connect the core commerce platform to eBay",
	Long: "A service that publishes core products as eBay listings, keeps stock,\n" +
		"prices, orders and returns in sync in both directions, and receives\n" +
		"eBay platform notifications.",
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "config.yaml", "config file path")
	rootCmd.AddCommand(versionCommand())
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
