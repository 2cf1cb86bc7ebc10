package cmd

import (
	"github.com/spf13/cobra"
)

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   "rankwatch",
		Short: "Track where domains rank for search keywords over time",
		Long: `rankwatch periodically checks the search ranking of registered
(domain, keyword) pairs according to each pair's check frequency, records
every check as history, and prunes history older than a retention horizon.`,
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.rankwatch/rankwatch.toml or ./rankwatch.toml)")
}
