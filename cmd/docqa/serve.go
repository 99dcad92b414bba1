package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"docqa/internal/config"
	"docqa/internal/extract"
	"docqa/internal/httpapi"
	"docqa/internal/ingest"
	"docqa/internal/service"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Serves POST /api/upload, POST /api/query and GET /api/status/{collection}.
Uploaded documents are ingested by a background worker pool.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides server.addr)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	if serveAddr != "" {
		cfg.Server.Addr = serveAddr
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	worker := ingest.NewWorker(a.pipeline, ingest.WorkerOptions{
		Workers:    cfg.Ingest.Workers,
		QueueSize:  cfg.Ingest.QueueSize,
		JobTimeout: config.Seconds(cfg.Ingest.JobTimeoutSecs),
	}, logger)
	uploader := service.NewUploader(cfg.Server.UploadDir, extract.ValidatePDF, worker, a.status, logger)
	handler := httpapi.NewHandler(a.query, uploader, service.NewRemover(a.cache, a.status, logger), a.status, cfg.Server.MaxUploadMB, logger)

	shutdown := config.Seconds(cfg.Server.ShutdownTimeoutSecs)
	serveErr := httpapi.Serve(ctx, cfg.Server.Addr, handler, shutdown, logger)

	wctx, cancel := context.WithTimeout(context.Background(), shutdown)
	defer cancel()
	if err := worker.Shutdown(wctx); err != nil {
		logger.Warn("ingestion worker did not drain", "error", err)
	}
	if serveErr != nil {
		return fmt.Errorf("http server: %w", serveErr)
	}
	return nil
}
