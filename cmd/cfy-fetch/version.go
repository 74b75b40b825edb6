package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version of cfy-fetch",
	Args:  cobra.NoArgs,
	// Skips loading the config, so the version can be printed even with an
	// invalid config.
	PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("cfy-fetch", rootCmd.Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
