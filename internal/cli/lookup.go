package cli

import (
	"github.com/spf13/cobra"

	"github.com/y0ug/hashscan/internal/export"
	"github.com/y0ug/hashscan/internal/history"
	"github.com/y0ug/hashscan/internal/models"
	"github.com/y0ug/hashscan/internal/repository"
	"github.com/y0ug/hashscan/internal/scanner"
)

var lookupCmd = &cobra.Command{
	Use:   "lookup [paths...]",
	Short: "Match scanned files against the signature repository",
	Long: `Lookup scans the given paths and queries the signature repository for
every computed digest of the selected algorithms. Matched files carry
the repository's descriptive attributes as extra report columns; files
the repository does not know keep a bare signature row.`,
	Example: `  hashscan lookup /opt/app
  hashscan lookup --algorithms md5,sha256 -o matches.csv /opt/app
  hashscan lookup --root-uri https://repo.example.com/api/v1/json/ /opt/app`,
	Args: cobra.MinimumNArgs(1),
	RunE: runLookup,
}

func init() {
	addScanFlags(lookupCmd)
	f := lookupCmd.Flags()
	f.String("root-uri", "", "Signature repository root URI (default: $REPOSITORY_ROOT_URI)")
	f.String("algorithms", "", "Comma-separated algorithms to look up (default: $REPOSITORY_ALGORITHMS or md5)")
	rootCmd.AddCommand(lookupCmd)
}

func runLookup(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := repository.LoadConfig()
	if err != nil {
		return err
	}
	if rootURI, _ := cmd.Flags().GetString("root-uri"); rootURI != "" {
		if err := repository.ValidateRootURI(rootURI); err != nil {
			return err
		}
		cfg.RootURI = rootURI
	}
	if algorithmsStr, _ := cmd.Flags().GetString("algorithms"); algorithmsStr != "" {
		algorithms, err := models.ParseAlgorithms(algorithmsStr)
		if err != nil {
			return err
		}
		cfg.Algorithms = algorithms
	}

	client := repository.NewClientFromConfig(ctx, cfg, logger)
	merger := repository.NewMerger(client, logger, cfg.MaxConcurrency)

	scan := newScannerFromFlags(cmd)
	result, err := scan.ComputeSignatures(ctx, args, scanOptionsFromFlags(cmd))
	if err != nil {
		return err
	}

	lookup, err := merger.Lookup(ctx, result.Records, repository.LookupOptions{Algorithms: cfg.Algorithms})
	if err != nil {
		return err
	}
	result.Partial = result.Partial || lookup.Partial

	if store := openHistory(); store != nil {
		defer store.Close(ctx)
		recordRun(ctx, store, history.RunLookup, args, result, scanner.MatchCounts{})
	}

	return writeTable(cmd, export.MergedTable(lookup.Records))
}
