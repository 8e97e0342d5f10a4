package cli

import (
	"github.com/spf13/cobra"
)

var policiesCmd = &cobra.Command{
	Use:   "policies",
	Short: "List the category policies in effect",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Policies(cmd.OutOrStdout())
	},
}

var benchmarkKeyCmd = &cobra.Command{
	Use:   "benchmark-key NAME...",
	Short: "Print the normalised lookup key for fund names",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		getApp().BenchmarkKey(cmd.OutOrStdout(), args)
	},
}
