package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"pdf-conversion-service/internal/api"
	"pdf-conversion-service/internal/config"
	"pdf-conversion-service/internal/heartbeat"
	"pdf-conversion-service/internal/housekeeping"
	"pdf-conversion-service/internal/log"
	"pdf-conversion-service/internal/registry"
	"pdf-conversion-service/internal/supervisor"
)

var (
	version = "dev"

	flagVerbose bool
)

func main() {
	rootCmd.PersistentFlags().BoolVar(&flagVerbose, "verbose", false, "verbose logging")
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)

	if err := rootCmd.Execute(); err != nil {
		slog.Error("conversion server failed", "err", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "conversion-server",
	Short: "Supervisor for out-of-process PDF to DOCX conversion jobs",
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and job supervisor",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(version)
	},
}

func serve() error {
	cfg := config.Load()
	logger := log.New(flagVerbose)
	slog.SetDefault(logger)

	for _, dir := range []string{cfg.UploadDir, cfg.OutputDir, cfg.WorkDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
		<-ch
		cancel()
	}()

	// Orphans from a previous run are purged before accepting new jobs.
	if err := housekeeping.Purge(ctx, logger, cfg.RetentionWindow, cfg.UploadDir, cfg.OutputDir, cfg.WorkDir); err != nil {
		logger.Warn("startup purge incomplete", "err", err)
	}

	reg := registry.New()
	hb := heartbeat.New()
	sup := supervisor.New(cfg, reg, hb, logger)
	server := api.New(cfg, reg, hb, sup, logger)

	httpServer := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: server.Router(),
	}

	logger.Info("api listening", "port", cfg.HTTPPort, "worker_bin", cfg.WorkerBin)
	errCh := make(chan error, 1)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	return httpServer.Shutdown(shutdownCtx)
}
