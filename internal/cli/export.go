package cli

import (
	"github.com/spf13/cobra"

	"fundscore/internal/app"
)

var (
	exportCategory string
	exportPNGPath  string
	exportCSVPath  string
	exportXLSXPath string
	exportMaxRows  int
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export a category ranking as CSV, XLSX and/or PNG chart",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.ExportOptions{
			Category: exportCategory,
			PNGPath:  exportPNGPath,
			CSVPath:  exportCSVPath,
			XLSXPath: exportXLSXPath,
			MaxRows:  exportMaxRows,
		}

		return getApp().Export(cmd.Context(), opts)
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportCategory, "category", "", "Category to export")
	exportCmd.Flags().StringVar(&exportPNGPath, "png", "", "Path to write PNG chart")
	exportCmd.Flags().StringVar(&exportCSVPath, "csv", "", "Path to write CSV data")
	exportCmd.Flags().StringVar(&exportXLSXPath, "xlsx", "", "Path to write XLSX workbook")
	exportCmd.Flags().IntVar(&exportMaxRows, "max-rows", 0, "Maximum rows to export (defaults to config)")
}
