package cli

import (
	"github.com/spf13/cobra"
)

var notifyCategory string

var notifyTestCmd = &cobra.Command{
	Use:   "notify-test",
	Short: "Send a simulated scoring notification through the configured channel",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().NotifyTest(cmd.Context(), notifyCategory)
	},
}

func init() {
	notifyTestCmd.Flags().StringVar(&notifyCategory, "category", "", "Category named in the test message")
}
