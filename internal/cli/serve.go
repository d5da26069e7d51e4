package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/y0ug/hashscan/internal/history"
	"github.com/y0ug/hashscan/internal/notifications"
	"github.com/y0ug/hashscan/internal/repository"
	"github.com/y0ug/hashscan/internal/scanner"
	"github.com/y0ug/hashscan/internal/webserver"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API server",
	Long: `Serve exposes scanning, verification and repository lookups over an
HTTP API. Run history, mismatch notifications and JWT authentication
switch on through their environment variables (HISTORY_TYPE,
SHOUTRRR_URLS, JWT_SECRET).`,
	Example: `  hashscan serve
  PORT=9090 HISTORY_TYPE=bolt HISTORY_PATH=runs.db hashscan serve`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().Int64P("concurrency", "c", scanner.DefaultConcurrency, "Files hashed in parallel")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	concurrency, _ := cmd.Flags().GetInt64("concurrency")
	scan := scanner.NewScanner(nil, logger, concurrency)

	repositoryCfg, err := repository.LoadConfig()
	if err != nil {
		return err
	}
	client := repository.NewClientFromConfig(ctx, repositoryCfg, logger)
	merger := repository.NewMerger(client, logger, repositoryCfg.MaxConcurrency)

	historyCfg, err := history.LoadConfig()
	if err != nil {
		return err
	}
	var store history.Store
	if historyCfg != nil {
		store, err = history.NewStore(historyCfg)
		if err != nil {
			return err
		}
		defer store.Close(ctx)
		logger.Infof("Run history initialized (%s)", historyCfg.Type)
	}

	notificationCfg, err := notifications.LoadNotificationConfig()
	if err != nil {
		return err
	}
	var notifier *notifications.Notifier
	if notificationCfg != nil {
		notifier, err = notifications.NewNotifier(notificationCfg.ShoutrrrURLs)
		if err != nil {
			return err
		}
		logger.Info("Notifier initialized successfully")
	}

	webServerConfig, err := webserver.NewWebserverConfig()
	if err != nil {
		return err
	}
	ws := webserver.NewWebServer(scan, merger, store, notifier, webServerConfig, logger)

	server, err := webserver.StartWebServer(ctx, ws)
	if err != nil {
		return err
	}

	<-ctx.Done()
	logger.Info("Received shutdown signal. Stopping server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to gracefully shutdown the server: %w", err)
	}

	logger.Info("Shutdown complete. Exiting.")
	return nil
}
