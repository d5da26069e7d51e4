package cli

import (
	"github.com/spf13/cobra"

	"github.com/y0ug/hashscan/internal/export"
	"github.com/y0ug/hashscan/internal/scanner"
)

var templateCmd = &cobra.Command{
	Use:   "template",
	Short: "Write an empty reference file skeleton",
	Long: `Template writes a reference file with the filename column and one
empty column per supported algorithm. Fill in the expected digests and
feed the file to hashscan verify.`,
	Example: `  hashscan template > golden.csv
  hashscan template -o golden.json`,
	RunE: runTemplate,
}

func init() {
	templateCmd.Flags().StringP("output", "o", "", "Report file, .csv or .json (default: CSV on stdout)")
	rootCmd.AddCommand(templateCmd)
}

func runTemplate(cmd *cobra.Command, args []string) error {
	return writeTable(cmd, export.ReferenceTable(scanner.ReferenceTemplate()))
}
