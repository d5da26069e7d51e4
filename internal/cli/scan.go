package cli

import (
	"github.com/spf13/cobra"

	"github.com/y0ug/hashscan/internal/export"
	"github.com/y0ug/hashscan/internal/history"
	"github.com/y0ug/hashscan/internal/scanner"
)

var scanCmd = &cobra.Command{
	Use:   "scan [paths...]",
	Short: "Compute file signatures under the given paths",
	Long: `Scan hashes every readable, non-empty file under the given paths
through all supported algorithms in a single read pass and writes the
signatures as a CSV or JSON report.`,
	Example: `  hashscan scan /opt/app
  hashscan scan -r -o report.csv /opt/app /usr/local/bin
  hashscan scan -r --include-hidden -o report.json /etc`,
	Args: cobra.MinimumNArgs(1),
	RunE: runScan,
}

func init() {
	addScanFlags(scanCmd)
	rootCmd.AddCommand(scanCmd)
}

// addScanFlags registers the flag set shared by the scanning commands.
func addScanFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.BoolP("recurse", "r", false, "Descend into subdirectories")
	f.Bool("include-hidden", false, "Include dot-prefixed files and directories")
	f.Bool("include-version-data", false, "Collect executable version resources")
	f.Bool("include-certificate-data", false, "Collect code-signing certificate details")
	f.Bool("include-root-path", false, "Write absolute file paths into the report")
	f.StringP("output", "o", "", "Report file, .csv or .json (default: CSV on stdout)")
	f.Int64P("concurrency", "c", scanner.DefaultConcurrency, "Files hashed in parallel")
}

func scanOptionsFromFlags(cmd *cobra.Command) scanner.ScanOptions {
	recurse, _ := cmd.Flags().GetBool("recurse")
	includeHidden, _ := cmd.Flags().GetBool("include-hidden")
	versionData, _ := cmd.Flags().GetBool("include-version-data")
	certificateData, _ := cmd.Flags().GetBool("include-certificate-data")
	rootPath, _ := cmd.Flags().GetBool("include-root-path")
	return scanner.ScanOptions{
		Recurse:                recurse,
		IncludeHidden:          includeHidden,
		IncludeVersionData:     versionData,
		IncludeCertificateData: certificateData,
		IncludeRootPath:        rootPath,
	}
}

func newScannerFromFlags(cmd *cobra.Command) *scanner.Scanner {
	concurrency, _ := cmd.Flags().GetInt64("concurrency")
	return scanner.NewScanner(nil, logger, concurrency)
}

// writeTable writes the report to --output, or as CSV on the command's
// stdout when no output file is set.
func writeTable(cmd *cobra.Command, table *export.Table) error {
	output, _ := cmd.Flags().GetString("output")
	if output == "" {
		return export.WriteCSV(cmd.OutOrStdout(), table)
	}
	if err := export.Save(output, table); err != nil {
		return err
	}
	logger.WithField("output", output).Info("Report written")
	return nil
}

func runScan(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	scan := newScannerFromFlags(cmd)
	result, err := scan.ComputeSignatures(ctx, args, scanOptionsFromFlags(cmd))
	if err != nil {
		return err
	}

	if store := openHistory(); store != nil {
		defer store.Close(ctx)
		recordRun(ctx, store, history.RunScan, args, result, scanner.MatchCounts{})
	}

	return writeTable(cmd, export.SignatureTable(result.Records))
}
