package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/y0ug/hashscan/internal/history"
)

var runsCmd = &cobra.Command{
	Use:   "runs [id]",
	Short: "List recorded runs",
	Long: `Runs lists the persisted run summaries newest first, or prints one
summary in full when an ID is given. Requires a configured history
store (HISTORY_TYPE).`,
	Example: `  hashscan runs
  hashscan runs --kind verify --page 2
  hashscan runs 20260823-141502.123456789-scan`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRuns,
}

func init() {
	f := runsCmd.Flags()
	f.Int("page", 1, "Page number")
	f.Int("per-page", 50, "Summaries per page")
	f.String("kind", "", "Filter by run kind (scan, verify, lookup)")
	rootCmd.AddCommand(runsCmd)
}

func runRuns(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	store, err := requireHistory()
	if err != nil {
		return err
	}
	defer store.Close(ctx)

	if len(args) == 1 {
		run, err := store.GetRun(ctx, args[0])
		if err != nil {
			return err
		}
		return printJSON(cmd, run)
	}

	page, _ := cmd.Flags().GetInt("page")
	perPage, _ := cmd.Flags().GetInt("per-page")

	var kind *history.RunKind
	if kindStr, _ := cmd.Flags().GetString("kind"); kindStr != "" {
		value := history.RunKind(strings.ToLower(kindStr))
		switch value {
		case history.RunScan, history.RunVerify, history.RunLookup:
			kind = &value
		default:
			return fmt.Errorf("unknown run kind %q", kindStr)
		}
	}

	runs, total, err := store.LoadRunsPaginated(ctx, page, perPage, kind)
	if err != nil {
		return err
	}

	return printJSON(cmd, map[string]any{
		"runs":     runs,
		"page":     page,
		"per_page": perPage,
		"total":    total,
	})
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show aggregated run history",
	RunE:  runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	store, err := requireHistory()
	if err != nil {
		return err
	}
	defer store.Close(ctx)

	stats, err := store.GetStats(ctx)
	if err != nil {
		return err
	}
	return printJSON(cmd, stats)
}

// requireHistory returns the configured history store, or an error
// telling the user how to enable one.
func requireHistory() (history.Store, error) {
	cfg, err := history.LoadConfig()
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return nil, fmt.Errorf("run history is not configured; set HISTORY_TYPE to bolt or redis")
	}
	return history.NewStore(cfg)
}

// printJSON writes v to the command's stdout as indented JSON.
func printJSON(cmd *cobra.Command, v any) error {
	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
