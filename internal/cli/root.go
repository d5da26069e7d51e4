// Package cli implements the hashscan command tree.
package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/y0ug/hashscan/internal/history"
	"github.com/y0ug/hashscan/internal/notifications"
	"github.com/y0ug/hashscan/internal/scanner"
)

// Version is set at build time.
var Version = "dev"

// logger is shared by every command. initLogging configures it before
// any RunE executes; tests may redirect its output.
var logger = logrus.New()

var logLevel string

var rootCmd = &cobra.Command{
	Use:   "hashscan",
	Short: "File signature scanner and integrity verifier",
	Long: `Hashscan walks directory trees, hashes every file through MD5, SHA1,
SHA256 and SHA512 in a single read pass, and writes the signatures as
CSV or JSON reports. Computed signatures can be checked against a local
reference file or matched against a remote signature repository.`,
}

// Execute runs the CLI. An interrupt cancels the command context, so a
// long scan stops launching new files and reports what it finished.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// SetVersion sets the version string.
func SetVersion(v string) {
	Version = v
	rootCmd.Version = v
}

func init() {
	cobra.OnInitialize(initLogging, initEnv)
	rootCmd.Version = Version
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log verbosity (trace, debug, info, warn, error)")
	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

func initEnv() {
	if err := godotenv.Load(); err != nil {
		logger.Debug("No .env file found for hashscan configuration. Proceeding with environment variables.")
	}
}

func initLogging() {
	logger.SetFormatter(&logrus.JSONFormatter{})
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
}

// openHistory returns the configured run history store, nil when
// HISTORY_TYPE is unset or the store cannot be opened. A broken store
// never aborts a scan.
func openHistory() history.Store {
	cfg, err := history.LoadConfig()
	if err != nil {
		logger.WithError(err).Warn("Run history disabled: invalid configuration")
		return nil
	}
	if cfg == nil {
		return nil
	}
	store, err := history.NewStore(cfg)
	if err != nil {
		logger.WithError(err).Warn("Run history disabled: store unavailable")
		return nil
	}
	return store
}

// openNotifier returns the configured notifier, nil when SHOUTRRR_URLS
// is unset or the sender cannot be built.
func openNotifier() *notifications.Notifier {
	cfg, err := notifications.LoadNotificationConfig()
	if err != nil {
		logger.WithError(err).Warn("Notifications disabled: invalid configuration")
		return nil
	}
	if cfg == nil {
		return nil
	}
	notifier, err := notifications.NewNotifier(cfg.ShoutrrrURLs)
	if err != nil {
		logger.WithError(err).Warn("Notifications disabled: sender unavailable")
		return nil
	}
	return notifier
}

// recordRun persists a run summary when a history store is configured.
func recordRun(ctx context.Context, store history.Store, kind history.RunKind, roots []string, result *scanner.ScanResult, counts scanner.MatchCounts) {
	if store == nil {
		return
	}
	summary := history.RunSummary{
		ID:             history.NewRunID(kind, result.Stats.StartedAt),
		Kind:           kind,
		Roots:          roots,
		StartedAt:      result.Stats.StartedAt,
		FinishedAt:     result.Stats.FinishedAt,
		FilesProcessed: result.Stats.FilesProcessed,
		FilesSkipped:   result.Stats.FilesSkipped,
		Matched:        counts.Matched,
		Mismatched:     counts.Mismatched,
		Missing:        counts.Missing,
		Partial:        result.Partial,
	}
	if err := store.AddRun(ctx, summary); err != nil {
		logger.WithError(err).Warn("Failed to record run history")
	}
}
