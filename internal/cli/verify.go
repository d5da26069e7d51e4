package cli

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/y0ug/hashscan/internal/export"
	"github.com/y0ug/hashscan/internal/history"
	"github.com/y0ug/hashscan/internal/models"
	"github.com/y0ug/hashscan/internal/scanner"
)

var verifyCmd = &cobra.Command{
	Use:   "verify [paths...]",
	Short: "Check scanned files against a reference file",
	Long: `Verify scans the given paths and compares every computed digest with
the expected digests from a reference file. Each report row carries one
match column per algorithm: True, False, or a placeholder when either
side has no digest to compare.`,
	Example: `  hashscan verify -f golden.csv /opt/app
  hashscan verify -r -f golden.json -o result.json /opt/app`,
	Args: cobra.MinimumNArgs(1),
	RunE: runVerify,
}

func init() {
	addScanFlags(verifyCmd)
	f := verifyCmd.Flags()
	f.StringP("references", "f", "", "Reference file with expected digests, .csv or .json")
	f.String("placeholder", models.DefaultMissingPlaceholder, "Cell text when a digest is absent on either side")
	verifyCmd.MarkFlagRequired("references")
	rootCmd.AddCommand(verifyCmd)
}

func runVerify(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	referencesPath, _ := cmd.Flags().GetString("references")
	references, err := scanner.LoadReferences(referencesPath)
	if err != nil {
		return err
	}

	scan := newScannerFromFlags(cmd)
	result, err := scan.ComputeSignatures(ctx, args, scanOptionsFromFlags(cmd))
	if err != nil {
		return err
	}

	placeholder, _ := cmd.Flags().GetString("placeholder")
	matched := scanner.VerifySignatures(result.Records, references, placeholder)
	counts := scanner.SummarizeMatches(matched)

	logger.WithFields(logrus.Fields{
		"matched":    counts.Matched,
		"mismatched": counts.Mismatched,
		"missing":    counts.Missing,
	}).Info("Verification finished")

	if notifier := openNotifier(); notifier != nil {
		notifier.NotifyMismatches(matched)
	}

	if store := openHistory(); store != nil {
		defer store.Close(ctx)
		recordRun(ctx, store, history.RunVerify, args, result, counts)
	}

	return writeTable(cmd, export.MatchedTable(matched))
}
